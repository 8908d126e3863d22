package domain

import (
	"time"
)

// Este arquivo define o read-model derivado que alimenta o dashboard de
// monitoramento. Nada aqui é persistido: o snapshot é calculado sob demanda
// a partir do ledger e reconstruído incrementalmente pelo agregador do
// consumidor a cada evento de contagem recebido.

// SectorStats acumula os totais de um setor.
type SectorStats struct {
	SectorID      string       `json:"sector_id"`
	Prefix        string       `json:"prefix"`
	Status        SectorStatus `json:"status"`
	TotalCounts   int          `json:"total_counts"`
	TotalQuantity int          `json:"total_quantity"`
	LastCountAt   *time.Time   `json:"last_count_at,omitempty"`
}

// OperatorStats acumula os totais de um operador, incluindo o ponteiro de
// "setor atual" (setor da contagem mais recente do operador).
type OperatorStats struct {
	OperatorID      string     `json:"operator_id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	AvatarURL       string     `json:"avatar_url,omitempty"`
	TotalCounts     int        `json:"total_counts"`
	TotalQuantity   int        `json:"total_quantity"`
	CurrentSectorID string     `json:"current_sector_id,omitempty"`
	LastCountAt     *time.Time `json:"last_count_at,omitempty"`
}

// TimelineBucket acumula as contagens de um minuto do relógio.
// A chave Minute é sempre truncada para granularidade de minuto.
type TimelineBucket struct {
	Minute   time.Time `json:"minute"`
	Counts   int       `json:"counts"`
	Quantity int       `json:"quantity"`
}

// StreamSnapshot é o read-model completo enviado uma única vez na abertura
// de cada assinatura do stream (e novamente após cada reconexão). O
// consumidor trata o snapshot como autoritativo: substitui o estado local
// por inteiro, nunca faz merge.
type StreamSnapshot struct {
	InventoryID string           `json:"inventory_id"`
	Sectors     []SectorStats    `json:"sectors"`
	Timeline    []TimelineBucket `json:"timeline"`
	Operators   []OperatorStats  `json:"operators"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// --- Protocolo do stream ---

// StreamEventType nomeia os três tipos de evento do canal de push.
type StreamEventType string

const (
	EventSnapshot  StreamEventType = "snapshot"
	EventContagem  StreamEventType = "contagem"
	EventHeartbeat StreamEventType = "heartbeat"
)

// CountEvent é o payload de um evento `contagem`: o registro completo mais
// o nome de exibição do operador já resolvido (o consumidor não tem acesso
// ao cadastro de operadores).
type CountEvent struct {
	Record       CountRecord `json:"record"`
	OperatorName string      `json:"operator_name"`
}

// StreamEvent é o envelope único que trafega no canal de push. Exatamente
// um dos payloads é não-nulo, conforme o Type; heartbeat não carrega
// payload algum além da própria entrega.
type StreamEvent struct {
	Type     StreamEventType `json:"type"`
	Snapshot *StreamSnapshot `json:"snapshot,omitempty"`
	Count    *CountEvent     `json:"count,omitempty"`
}
