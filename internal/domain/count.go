package domain

import (
	"time"
)

// CountRecord é o registro imutável de uma contagem: uma vez gravado no
// ledger nunca é alterado ou removido por este core. A correção de uma
// contagem acontece gravando um NOVO registro (recontagem), e as
// quantidades dos registros de um mesmo produto são ADITIVAS, não
// substitutivas: uma recontagem soma unidades encontradas, não restabelece
// o total.
type CountRecord struct {
	ID          string     `json:"id"`
	InventoryID string     `json:"inventory_id"`
	SectorID    string     `json:"sector_id"`
	ProductID   string     `json:"product_id"`
	Quantity    int        `json:"quantity"`
	Lot         *string    `json:"lot,omitempty"`
	Expiry      *time.Time `json:"expiry,omitempty"`
	Divergent   bool       `json:"divergent"` // Flag por registro: quantidade difere do saldo esperado
	OperatorID  string     `json:"operator_id"`
	CreatedAt   time.Time  `json:"created_at"` // Timestamp atribuído pelo servidor (âncora de ordenação)
}

// CountCommitRequest é o payload de commit de uma contagem
// (coletor -> ledger).
type CountCommitRequest struct {
	InventoryID string     `json:"inventory_id" validate:"required,uuid"`
	SectorID    string     `json:"sector_id" validate:"required,uuid"`
	Code        string     `json:"code" validate:"required"` // Código lido (barras ou interno, conforme o modo)
	SearchMode  SearchMode `json:"search_mode"`
	Quantity    int        `json:"quantity" validate:"required,gt=0"`
	Lot         *string    `json:"lot,omitempty"`
	Expiry      *time.Time `json:"expiry,omitempty"`
	OperatorID  string     `json:"-"` // Preenchido a partir do token, nunca do payload
}

// CountFilter define a paginação da leitura em massa do ledger.
type CountFilter struct {
	Page  int
	Limit int
}
