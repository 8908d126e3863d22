package monitorservice

import (
	"sync"
	"time"

	"gocontagem/internal/domain"
)

// MaxTimelineBuckets limita a timeline a 24h em resolução de 1 minuto.
// Ao estourar, os buckets mais antigos são descartados primeiro.
const MaxTimelineBuckets = 1440

// Aggregator é o read-model local de UM assinante do dashboard,
// reconstruído a partir de snapshot + deltas. É um objeto explícito e sem
// framework: qualquer camada de apresentação consome via Snapshot() por
// polling ou notificação própria.
//
// O estado é protegido por mutex porque a goroutine do stream escreve
// enquanto a renderização lê, mas não há estado compartilhado entre
// assinantes: cada um só é escrito pelo seu próprio stream.
type Aggregator struct {
	mu sync.RWMutex

	inventoryID string
	sectors     []domain.SectorStats
	sectorIdx   map[string]int
	operators   []domain.OperatorStats
	operatorIdx map[string]int
	timeline    []domain.TimelineBucket
	generatedAt time.Time
}

// NewAggregator cria um agregador vazio; o primeiro snapshot do stream
// popula o estado.
func NewAggregator() *Aggregator {
	return &Aggregator{
		sectorIdx:   make(map[string]int),
		operatorIdx: make(map[string]int),
	}
}

// ApplySnapshot substitui o estado local POR INTEIRO. O snapshot é
// autoritativo e idempotente: aplicar o mesmo snapshot duas vezes produz o
// mesmo estado: nunca há merge.
func (a *Aggregator) ApplySnapshot(s domain.StreamSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.inventoryID = s.InventoryID
	a.generatedAt = s.GeneratedAt

	a.sectors = append([]domain.SectorStats(nil), s.Sectors...)
	a.sectorIdx = make(map[string]int, len(a.sectors))
	for i, st := range a.sectors {
		a.sectorIdx[st.SectorID] = i
	}

	a.operators = append([]domain.OperatorStats(nil), s.Operators...)
	a.operatorIdx = make(map[string]int, len(a.operators))
	for i, st := range a.operators {
		a.operatorIdx[st.OperatorID] = i
	}

	a.timeline = append([]domain.TimelineBucket(nil), s.Timeline...)
	a.trimTimeline()
}

// ApplyEvent dobra um evento do stream no estado local. Heartbeats não
// carregam payload; snapshots delegam para ApplySnapshot.
func (a *Aggregator) ApplyEvent(e domain.StreamEvent) {
	switch e.Type {
	case domain.EventSnapshot:
		if e.Snapshot != nil {
			a.ApplySnapshot(*e.Snapshot)
		}
	case domain.EventContagem:
		if e.Count != nil {
			a.applyCount(*e.Count)
		}
	case domain.EventHeartbeat:
		// Liveness é tratada pelo Client; aqui não há nada a acumular.
	}
}

// applyCount aplica o delta de um registro de contagem.
func (a *Aggregator) applyCount(ev domain.CountEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec := ev.Record
	at := rec.CreatedAt

	// Setor: +1 contagem, +quantidade, último timestamp. Setores
	// desconhecidos NÃO são criados no cliente: só aparecem via próximo
	// snapshot.
	if i, ok := a.sectorIdx[rec.SectorID]; ok {
		a.sectors[i].TotalCounts++
		a.sectors[i].TotalQuantity += rec.Quantity
		t := at
		a.sectors[i].LastCountAt = &t
	}

	// Timeline: trunca para o minuto; mesmo minuto do último bucket
	// incrementa no lugar, senão abre bucket novo.
	minute := at.Truncate(time.Minute)
	if n := len(a.timeline); n > 0 && a.timeline[n-1].Minute.Equal(minute) {
		a.timeline[n-1].Counts++
		a.timeline[n-1].Quantity += rec.Quantity
	} else {
		a.timeline = append(a.timeline, domain.TimelineBucket{
			Minute:   minute,
			Counts:   1,
			Quantity: rec.Quantity,
		})
		a.trimTimeline()
	}

	// Operador: conhecido incrementa e move o setor atual; desconhecido
	// vira um stub mínimo (nome best-effort do evento), sabidamente
	// desatualizado até o próximo snapshot.
	if i, ok := a.operatorIdx[rec.OperatorID]; ok {
		a.operators[i].TotalCounts++
		a.operators[i].TotalQuantity += rec.Quantity
		a.operators[i].CurrentSectorID = rec.SectorID
		t := at
		a.operators[i].LastCountAt = &t
	} else {
		t := at
		a.operators = append(a.operators, domain.OperatorStats{
			OperatorID:      rec.OperatorID,
			Name:            ev.OperatorName,
			Email:           "",
			TotalCounts:     1,
			TotalQuantity:   rec.Quantity,
			CurrentSectorID: rec.SectorID,
			LastCountAt:     &t,
		})
		a.operatorIdx[rec.OperatorID] = len(a.operators) - 1
	}
}

// trimTimeline descarta os buckets mais antigos além do teto.
func (a *Aggregator) trimTimeline() {
	if excess := len(a.timeline) - MaxTimelineBuckets; excess > 0 {
		a.timeline = append([]domain.TimelineBucket(nil), a.timeline[excess:]...)
	}
}

// Snapshot devolve uma cópia consistente do estado local para renderização.
func (a *Aggregator) Snapshot() domain.StreamSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return domain.StreamSnapshot{
		InventoryID: a.inventoryID,
		Sectors:     append([]domain.SectorStats(nil), a.sectors...),
		Timeline:    append([]domain.TimelineBucket(nil), a.timeline...),
		Operators:   append([]domain.OperatorStats(nil), a.operators...),
		GeneratedAt: a.generatedAt,
	}
}
