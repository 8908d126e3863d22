package monitorservice_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"gocontagem/internal/domain"
	"gocontagem/internal/service/monitorservice"
)

func baseSnapshot(inventoryID, sectorID, operatorID string) domain.StreamSnapshot {
	return domain.StreamSnapshot{
		InventoryID: inventoryID,
		Sectors: []domain.SectorStats{
			{SectorID: sectorID, Prefix: "A", Status: domain.SectorCounting, TotalCounts: 10, TotalQuantity: 40},
		},
		Operators: []domain.OperatorStats{
			{OperatorID: operatorID, Name: "Maria", Email: "maria@farmacia.com", TotalCounts: 10, TotalQuantity: 40},
		},
		Timeline: []domain.TimelineBucket{
			{Minute: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC), Counts: 10, Quantity: 40},
		},
		GeneratedAt: time.Date(2026, 8, 30, 10, 1, 0, 0, time.UTC),
	}
}

func countEvent(sectorID, operatorID string, quantity int, at time.Time) domain.StreamEvent {
	return domain.StreamEvent{
		Type: domain.EventContagem,
		Count: &domain.CountEvent{
			Record: domain.CountRecord{
				ID:         uuid.New().String(),
				SectorID:   sectorID,
				ProductID:  uuid.New().String(),
				Quantity:   quantity,
				OperatorID: operatorID,
				CreatedAt:  at,
			},
			OperatorName: "Maria",
		},
	}
}

// TestApplySnapshot_Idempotent testa que reaplicar o mesmo snapshot produz
// exatamente o mesmo estado: substituição total, nunca merge.
func TestApplySnapshot_Idempotent(t *testing.T) {
	agg := monitorservice.NewAggregator()
	snap := baseSnapshot(uuid.New().String(), uuid.New().String(), uuid.New().String())

	agg.ApplySnapshot(snap)
	first := agg.Snapshot()

	agg.ApplySnapshot(snap)
	second := agg.Snapshot()

	assert.Equal(t, first, second)
	assert.Equal(t, 10, second.Sectors[0].TotalCounts)
	assert.Len(t, second.Operators, 1)
}

// TestApplySnapshot_ReplacesDriftedState testa que um snapshot de
// reconexão descarta qualquer estado acumulado localmente.
func TestApplySnapshot_ReplacesDriftedState(t *testing.T) {
	agg := monitorservice.NewAggregator()
	sectorID := uuid.New().String()
	operatorID := uuid.New().String()
	snap := baseSnapshot(uuid.New().String(), sectorID, operatorID)

	agg.ApplySnapshot(snap)

	// Deltas locais que NÃO estão no snapshot seguinte (janela de staleness).
	agg.ApplyEvent(countEvent(sectorID, operatorID, 3, time.Date(2026, 8, 30, 10, 2, 0, 0, time.UTC)))
	agg.ApplyEvent(countEvent(sectorID, operatorID, 2, time.Date(2026, 8, 30, 10, 2, 30, 0, time.UTC)))
	assert.Equal(t, 12, agg.Snapshot().Sectors[0].TotalCounts)

	// O snapshot autoritativo volta ao estado do servidor.
	agg.ApplySnapshot(snap)
	assert.Equal(t, 10, agg.Snapshot().Sectors[0].TotalCounts)
	assert.Equal(t, 40, agg.Snapshot().Sectors[0].TotalQuantity)
}

// TestApplyCount_DeltaConservation testa a invariante snapshot(n) + k
// contagens = totais n+k.
func TestApplyCount_DeltaConservation(t *testing.T) {
	agg := monitorservice.NewAggregator()
	sectorID := uuid.New().String()
	operatorID := uuid.New().String()
	agg.ApplySnapshot(baseSnapshot(uuid.New().String(), sectorID, operatorID))

	at := time.Date(2026, 8, 30, 10, 5, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		agg.ApplyEvent(countEvent(sectorID, operatorID, 2, at.Add(time.Duration(i)*time.Second)))
	}

	got := agg.Snapshot()
	assert.Equal(t, 15, got.Sectors[0].TotalCounts)      // 10 + 5
	assert.Equal(t, 50, got.Sectors[0].TotalQuantity)    // 40 + 5*2
	assert.Equal(t, 15, got.Operators[0].TotalCounts)
	assert.Equal(t, sectorID, got.Operators[0].CurrentSectorID)
	assert.NotNil(t, got.Sectors[0].LastCountAt)
}

// TestApplyCount_TimelineBucketing testa o truncamento por minuto:
// 10:02:03 e 10:02:47 caem no mesmo bucket, 10:03:01 abre outro.
func TestApplyCount_TimelineBucketing(t *testing.T) {
	agg := monitorservice.NewAggregator()
	sectorID := uuid.New().String()
	operatorID := uuid.New().String()
	agg.ApplySnapshot(domain.StreamSnapshot{
		InventoryID: uuid.New().String(),
		Sectors:     []domain.SectorStats{{SectorID: sectorID}},
		Operators:   []domain.OperatorStats{{OperatorID: operatorID}},
	})

	agg.ApplyEvent(countEvent(sectorID, operatorID, 1, time.Date(2026, 8, 30, 10, 2, 3, 0, time.UTC)))
	agg.ApplyEvent(countEvent(sectorID, operatorID, 4, time.Date(2026, 8, 30, 10, 2, 47, 0, time.UTC)))
	agg.ApplyEvent(countEvent(sectorID, operatorID, 2, time.Date(2026, 8, 30, 10, 3, 1, 0, time.UTC)))

	timeline := agg.Snapshot().Timeline
	assert.Len(t, timeline, 2)
	assert.Equal(t, time.Date(2026, 8, 30, 10, 2, 0, 0, time.UTC), timeline[0].Minute)
	assert.Equal(t, 2, timeline[0].Counts)
	assert.Equal(t, 5, timeline[0].Quantity)
	assert.Equal(t, time.Date(2026, 8, 30, 10, 3, 0, 0, time.UTC), timeline[1].Minute)
	assert.Equal(t, 1, timeline[1].Counts)
}

// TestTimeline_RingCap testa o teto de 24h: ao estourar, os buckets mais
// antigos são descartados primeiro.
func TestTimeline_RingCap(t *testing.T) {
	agg := monitorservice.NewAggregator()
	sectorID := uuid.New().String()
	operatorID := uuid.New().String()
	agg.ApplySnapshot(domain.StreamSnapshot{
		InventoryID: uuid.New().String(),
		Sectors:     []domain.SectorStats{{SectorID: sectorID}},
		Operators:   []domain.OperatorStats{{OperatorID: operatorID}},
	})

	start := time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC)
	total := monitorservice.MaxTimelineBuckets + 60
	for i := 0; i < total; i++ {
		agg.ApplyEvent(countEvent(sectorID, operatorID, 1, start.Add(time.Duration(i)*time.Minute)))
	}

	timeline := agg.Snapshot().Timeline
	assert.Len(t, timeline, monitorservice.MaxTimelineBuckets)
	// O bucket mais antigo restante é o que sobrou após descartar os 60 primeiros.
	assert.Equal(t, start.Add(60*time.Minute), timeline[0].Minute)
	assert.Equal(t, start.Add(time.Duration(total-1)*time.Minute), timeline[len(timeline)-1].Minute)
}

// TestApplyCount_UnknownSectorIgnored testa que um setor desconhecido não é
// criado no cliente: só o próximo snapshot o traz.
func TestApplyCount_UnknownSectorIgnored(t *testing.T) {
	agg := monitorservice.NewAggregator()
	sectorID := uuid.New().String()
	operatorID := uuid.New().String()
	agg.ApplySnapshot(baseSnapshot(uuid.New().String(), sectorID, operatorID))

	agg.ApplyEvent(countEvent(uuid.New().String(), operatorID, 2, time.Date(2026, 8, 30, 10, 9, 0, 0, time.UTC)))

	got := agg.Snapshot()
	assert.Len(t, got.Sectors, 1)
	assert.Equal(t, 10, got.Sectors[0].TotalCounts) // setor conhecido intocado
	// A timeline e o operador ainda acumulam o evento.
	assert.Equal(t, 11, got.Operators[0].TotalCounts)
}

// TestApplyCount_UnknownOperatorStub testa o stub mínimo de operador ainda
// não visto, com o nome best-effort do evento.
func TestApplyCount_UnknownOperatorStub(t *testing.T) {
	agg := monitorservice.NewAggregator()
	sectorID := uuid.New().String()
	agg.ApplySnapshot(baseSnapshot(uuid.New().String(), sectorID, uuid.New().String()))

	newOperator := uuid.New().String()
	ev := countEvent(sectorID, newOperator, 3, time.Date(2026, 8, 30, 10, 10, 0, 0, time.UTC))
	ev.Count.OperatorName = "João"
	agg.ApplyEvent(ev)

	got := agg.Snapshot()
	assert.Len(t, got.Operators, 2)
	stub := got.Operators[1]
	assert.Equal(t, newOperator, stub.OperatorID)
	assert.Equal(t, "João", stub.Name)
	assert.Empty(t, stub.Email) // desatualizado até o próximo snapshot
	assert.Equal(t, 1, stub.TotalCounts)
	assert.Equal(t, 3, stub.TotalQuantity)

	// Segunda contagem do mesmo operador incrementa o stub, não duplica.
	agg.ApplyEvent(countEvent(sectorID, newOperator, 1, time.Date(2026, 8, 30, 10, 11, 0, 0, time.UTC)))
	assert.Len(t, agg.Snapshot().Operators, 2)
	assert.Equal(t, 2, agg.Snapshot().Operators[1].TotalCounts)
}

// TestHeartbeat_DoesNotMutateState testa que heartbeat não acumula nada.
func TestHeartbeat_DoesNotMutateState(t *testing.T) {
	agg := monitorservice.NewAggregator()
	snap := baseSnapshot(uuid.New().String(), uuid.New().String(), uuid.New().String())
	agg.ApplySnapshot(snap)

	before := agg.Snapshot()
	agg.ApplyEvent(domain.StreamEvent{Type: domain.EventHeartbeat})
	after := agg.Snapshot()

	assert.Equal(t, before, after)
}
