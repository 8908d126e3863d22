package domain

import (
	"time"
)

// SectorStatus representa o ciclo de vida de um setor dentro de um inventário.
// Transições válidas: pending -> counting (primeira abertura),
// counting -> finalized (fechamento com gate de mínimo) e
// finalized -> counting (reabertura administrativa, sem gate).
type SectorStatus string

const (
	SectorPending   SectorStatus = "pendente"
	SectorCounting  SectorStatus = "em_contagem"
	SectorFinalized SectorStatus = "finalizado"
)

// Sector representa uma subdivisão do piso da loja, delimitada por uma faixa
// numérica [RangeStart, RangeEnd]. Um código numérico lido pertence a no
// máximo um setor do inventário: a não-sobreposição das faixas é um
// pré-requisito de integridade garantido pelo catálogo, não por este core.
type Sector struct {
	ID          string       `json:"id"`
	InventoryID string       `json:"inventory_id"`
	RangeStart  int64        `json:"range_start"`
	RangeEnd    int64        `json:"range_end"`
	Prefix      string       `json:"prefix"`
	Status      SectorStatus `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Contains indica se o código numérico lido pertence à faixa deste setor.
func (s Sector) Contains(code int64) bool {
	return code >= s.RangeStart && code <= s.RangeEnd
}
