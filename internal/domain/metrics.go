package domain

import "time"

// DivergenceMetrics é o payload de métricas do dashboard produzido pelo
// classificador batch. Os predicados por SKU são independentes e
// não-exclusivos: um mesmo produto pode, por exemplo, ser "recontado" e ao
// mesmo tempo "sem divergência": os contadores são computados por
// predicado, não por partição.
type DivergenceMetrics struct {
	InventoryID string `json:"inventory_id"`

	// Nível do inventário
	Estimate     int `json:"estimate"`      // Soma dos saldos esperados
	TotalCounted int `json:"total_counted"` // Soma de todas as quantidades contadas
	Difference   int `json:"difference"`    // TotalCounted - Estimate

	// Contadores por SKU
	PendingSkus           int `json:"pending_skus"`            // Sem nenhum registro de contagem
	SkusWithoutDivergence int `json:"skus_without_divergence"` // >= 1 registro e total == saldo
	AwaitingRecount       int `json:"awaiting_recount"`        // Exatamente 1 registro, marcado divergente
	Recounted             int `json:"recounted"`               // >= 2 registros
	ConfirmedDivergence   int `json:"confirmed_divergence"`    // Recontado e total != saldo
	CriticalRuptures      int `json:"critical_ruptures"`       // Saldo > 0, visitado, nada encontrado
	UnexpectedEntries     int `json:"unexpected_entries"`      // Saldo == 0, algo encontrado
	CriticalImpact        int `json:"critical_impact"`         // Ruptura crítica com custo unitário alto

	GeneratedAt time.Time `json:"generated_at"`
}
