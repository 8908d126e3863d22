package domain

import (
	"time"
)

// Product representa um item (SKU) do catálogo de um inventário.
// É um dado de referência, carregado em massa antes da contagem começar:
// o core de contagem apenas lê, nunca altera o catálogo.
type Product struct {
	ID           string    `json:"id"`
	InventoryID  string    `json:"inventory_id"`
	Barcode      string    `json:"barcode"`       // Código de barras (EAN)
	InternalCode string    `json:"internal_code"` // Código interno da farmácia
	Description  string    `json:"description"`
	Balance      int       `json:"balance"`   // Saldo esperado (quantidade em sistema)
	UnitCost     float64   `json:"unit_cost"` // Custo unitário, usado no impacto crítico
	RequiresLot  bool      `json:"requires_lot"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SearchMode define o modo de busca de produto selecionado pelo operador
// no coletor. Os modos nunca são tentados em paralelo: ou o código lido é
// resolvido como código de barras, ou como código interno.
type SearchMode string

const (
	SearchByBarcode      SearchMode = "barras"
	SearchByInternalCode SearchMode = "interno"
)

// ProductFilter define os parâmetros de paginação para a leitura em massa
// do catálogo (usada pelo classificador de divergências, que nunca pode
// assumir que uma única página é o catálogo completo).
type ProductFilter struct {
	Page  int
	Limit int
}
