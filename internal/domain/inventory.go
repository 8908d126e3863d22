package domain

import (
	"time"
)

// InventoryStatus representa o ciclo de vida do inventário como um todo.
type InventoryStatus string

const (
	InventoryOpen   InventoryStatus = "aberto"
	InventoryClosed InventoryStatus = "fechado"
)

// Inventory é a raiz de agregação: carrega o limiar mínimo de contagens por
// setor e as flags que determinam quais prompts extras o coletor exibe
// (lote e validade).
type Inventory struct {
	ID                    string          `json:"id"`
	Name                  string          `json:"name"`
	MinimumCountThreshold int             `json:"minimum_count_threshold"`
	AllowsLot             bool            `json:"allows_lot"`
	AllowsExpiry          bool            `json:"allows_expiry"`
	Status                InventoryStatus `json:"status"`
	ClosureJustification  string          `json:"closure_justification,omitempty"`
	ClosedAt              *time.Time      `json:"closed_at,omitempty"`
	CreatedAt             time.Time       `json:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at"`
}

// ClosureBlockers agrupa os impedimentos estruturados para o fechamento do
// inventário. Se todos estiverem vazios, uma confirmação simples basta;
// caso contrário, só um administrador com justificativa (>= 10 caracteres)
// pode forçar o fechamento.
type ClosureBlockers struct {
	SectorsNeverOpened     []string `json:"sectors_never_opened"`
	SectorsNotFinalized    []string `json:"sectors_not_finalized"`
	PendingDivergenceCount int      `json:"pending_divergence_count"`
}

// Empty indica que não há nenhum impedimento para o fechamento.
func (b ClosureBlockers) Empty() bool {
	return len(b.SectorsNeverOpened) == 0 &&
		len(b.SectorsNotFinalized) == 0 &&
		b.PendingDivergenceCount == 0
}

// MinJustificationLen é o tamanho mínimo da justificativa exigida para
// forçar o fechamento de um inventário com impedimentos.
const MinJustificationLen = 10
