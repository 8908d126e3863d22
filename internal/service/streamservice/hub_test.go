package streamservice_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gocontagem/internal/domain"
	apperror "gocontagem/internal/errors"
	"gocontagem/internal/pkg/logger"
	"gocontagem/internal/service/streamservice"
)

// MockSnapshotProvider é uma implementação mock da interface SnapshotProvider.
type MockSnapshotProvider struct {
	mock.Mock
}

func (m *MockSnapshotProvider) BuildSnapshot(ctx context.Context, inventoryID string) (domain.StreamSnapshot, error) {
	args := m.Called(ctx, inventoryID)
	return args.Get(0).(domain.StreamSnapshot), args.Error(1)
}

func newTestHub(provider *MockSnapshotProvider, bufferSize int, heartbeat time.Duration) *streamservice.Hub {
	return streamservice.NewHub(provider, bufferSize, heartbeat, logger.NewLogger("error"))
}

// receiveEvent lê um evento do canal com timeout, para o teste não travar.
func receiveEvent(t *testing.T, events <-chan domain.StreamEvent) domain.StreamEvent {
	t.Helper()
	select {
	case ev, ok := <-events:
		if !ok {
			t.Fatal("canal de eventos fechado inesperadamente")
		}
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("nenhum evento recebido dentro do timeout")
	}
	return domain.StreamEvent{}
}

// TestSubscribe_SnapshotIsFirstEvent testa o contrato de abertura: toda
// assinatura nova começa com um evento snapshot.
func TestSubscribe_SnapshotIsFirstEvent(t *testing.T) {
	provider := new(MockSnapshotProvider)
	inventoryID := uuid.New().String()
	snap := domain.StreamSnapshot{InventoryID: inventoryID, GeneratedAt: time.Now()}
	provider.On("BuildSnapshot", mock.AnythingOfType("context.backgroundCtx"), inventoryID).
		Return(snap, nil)

	hub := newTestHub(provider, 8, time.Hour)
	defer hub.Close()

	sub, err := hub.Subscribe(context.Background(), inventoryID)
	assert.NoError(t, err)
	defer sub.Close()

	first := receiveEvent(t, sub.Events())
	assert.Equal(t, domain.EventSnapshot, first.Type)
	assert.NotNil(t, first.Snapshot)
	assert.Equal(t, inventoryID, first.Snapshot.InventoryID)
	provider.AssertExpectations(t)
}

// TestSubscribe_CountDuringSnapshotBuildIsDelivered testa que um evento
// publicado ENQUANTO o snapshot da assinatura ainda está sendo montado não
// se perde: fica retido e chega logo depois do snapshot.
func TestSubscribe_CountDuringSnapshotBuildIsDelivered(t *testing.T) {
	provider := new(MockSnapshotProvider)
	inventoryID := uuid.New().String()
	snap := domain.StreamSnapshot{InventoryID: inventoryID, GeneratedAt: time.Now()}

	hub := newTestHub(provider, 8, time.Hour)
	defer hub.Close()

	// Publica durante a montagem do snapshot, quando o assinante já está
	// registrado mas ainda não recebeu o primeiro evento.
	provider.On("BuildSnapshot", mock.AnythingOfType("context.backgroundCtx"), inventoryID).
		Run(func(args mock.Arguments) {
			hub.Publish(inventoryID, domain.CountEvent{OperatorName: "Maria"})
		}).
		Return(snap, nil)

	sub, err := hub.Subscribe(context.Background(), inventoryID)
	assert.NoError(t, err)
	defer sub.Close()

	first := receiveEvent(t, sub.Events())
	assert.Equal(t, domain.EventSnapshot, first.Type)

	second := receiveEvent(t, sub.Events())
	assert.Equal(t, domain.EventContagem, second.Type)
	assert.Equal(t, "Maria", second.Count.OperatorName)
	provider.AssertExpectations(t)
}

// TestSubscribe_SnapshotFailureAbortsSubscription testa que falha na
// montagem do snapshot aborta e remove a assinatura por inteiro.
func TestSubscribe_SnapshotFailureAbortsSubscription(t *testing.T) {
	provider := new(MockSnapshotProvider)
	inventoryID := uuid.New().String()
	provider.On("BuildSnapshot", mock.AnythingOfType("context.backgroundCtx"), inventoryID).
		Return(domain.StreamSnapshot{}, apperror.NewDBError("Falha ao montar snapshot", assert.AnError))

	hub := newTestHub(provider, 8, time.Hour)
	defer hub.Close()

	sub, err := hub.Subscribe(context.Background(), inventoryID)

	assert.Error(t, err)
	assert.Nil(t, sub)

	// Nenhum assinante fantasma: o Publish não tem para quem entregar e não
	// pode entrar em pânico.
	hub.Publish(inventoryID, domain.CountEvent{})
}

// TestPublish_FanOutPerInventory testa o fan-out particionado: assinantes
// do mesmo inventário recebem, os de outro não.
func TestPublish_FanOutPerInventory(t *testing.T) {
	provider := new(MockSnapshotProvider)
	invA := uuid.New().String()
	invB := uuid.New().String()
	provider.On("BuildSnapshot", mock.AnythingOfType("context.backgroundCtx"), mock.AnythingOfType("string")).
		Return(domain.StreamSnapshot{}, nil)

	hub := newTestHub(provider, 8, time.Hour)
	defer hub.Close()

	subA1, err := hub.Subscribe(context.Background(), invA)
	assert.NoError(t, err)
	defer subA1.Close()
	subA2, err := hub.Subscribe(context.Background(), invA)
	assert.NoError(t, err)
	defer subA2.Close()
	subB, err := hub.Subscribe(context.Background(), invB)
	assert.NoError(t, err)
	defer subB.Close()

	// Descarta os snapshots de abertura.
	receiveEvent(t, subA1.Events())
	receiveEvent(t, subA2.Events())
	receiveEvent(t, subB.Events())

	event := domain.CountEvent{
		Record:       domain.CountRecord{ID: uuid.New().String(), InventoryID: invA, Quantity: 2},
		OperatorName: "Maria",
	}
	hub.Publish(invA, event)

	for _, sub := range []*streamservice.Subscription{subA1, subA2} {
		got := receiveEvent(t, sub.Events())
		assert.Equal(t, domain.EventContagem, got.Type)
		assert.Equal(t, 2, got.Count.Record.Quantity)
		assert.Equal(t, "Maria", got.Count.OperatorName)
	}

	// O assinante do outro inventário não recebe nada.
	select {
	case ev := <-subB.Events():
		t.Fatalf("assinante de outro inventário recebeu evento: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

// TestPublish_SlowSubscriberDropsEvent testa que um assinante com buffer
// cheio tem o evento descartado sem bloquear o produtor.
func TestPublish_SlowSubscriberDropsEvent(t *testing.T) {
	provider := new(MockSnapshotProvider)
	inventoryID := uuid.New().String()
	provider.On("BuildSnapshot", mock.AnythingOfType("context.backgroundCtx"), inventoryID).
		Return(domain.StreamSnapshot{}, nil)

	// Buffer 2: snapshot de abertura ocupa 1 vaga, sobra 1.
	hub := newTestHub(provider, 2, time.Hour)
	defer hub.Close()

	sub, err := hub.Subscribe(context.Background(), inventoryID)
	assert.NoError(t, err)
	defer sub.Close()

	// Ninguém consome: a partir do segundo Publish o buffer está cheio.
	for i := 0; i < 5; i++ {
		hub.Publish(inventoryID, domain.CountEvent{
			Record: domain.CountRecord{ID: uuid.New().String(), Quantity: i},
		})
	}

	// O que sobrou no canal: snapshot + exatamente 1 contagem. Os demais
	// foram descartados, nunca enfileirados.
	first := receiveEvent(t, sub.Events())
	assert.Equal(t, domain.EventSnapshot, first.Type)
	second := receiveEvent(t, sub.Events())
	assert.Equal(t, domain.EventContagem, second.Type)
	assert.Equal(t, 0, second.Count.Record.Quantity)

	select {
	case ev := <-sub.Events():
		t.Fatalf("evento extra não deveria ter sido enfileirado: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

// TestHeartbeat_PeriodicDelivery testa a emissão periódica do heartbeat.
func TestHeartbeat_PeriodicDelivery(t *testing.T) {
	provider := new(MockSnapshotProvider)
	inventoryID := uuid.New().String()
	provider.On("BuildSnapshot", mock.AnythingOfType("context.backgroundCtx"), inventoryID).
		Return(domain.StreamSnapshot{}, nil)

	hub := newTestHub(provider, 8, 30*time.Millisecond)
	defer hub.Close()

	sub, err := hub.Subscribe(context.Background(), inventoryID)
	assert.NoError(t, err)
	defer sub.Close()

	receiveEvent(t, sub.Events()) // snapshot de abertura

	heartbeats := 0
	deadline := time.After(2 * time.Second)
	for heartbeats < 2 {
		select {
		case ev := <-sub.Events():
			if ev.Type == domain.EventHeartbeat {
				heartbeats++
			}
		case <-deadline:
			t.Fatal("heartbeats não chegaram dentro do timeout")
		}
	}
}

// TestClose_ShutsDownAllSubscriptions testa o shutdown: todos os canais são
// fechados e Publish posterior é inofensivo.
func TestClose_ShutsDownAllSubscriptions(t *testing.T) {
	provider := new(MockSnapshotProvider)
	inventoryID := uuid.New().String()
	provider.On("BuildSnapshot", mock.AnythingOfType("context.backgroundCtx"), inventoryID).
		Return(domain.StreamSnapshot{}, nil)

	hub := newTestHub(provider, 8, time.Hour)

	sub, err := hub.Subscribe(context.Background(), inventoryID)
	assert.NoError(t, err)
	receiveEvent(t, sub.Events())

	hub.Close()

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok, "canal deveria estar fechado após o shutdown")
	case <-time.After(2 * time.Second):
		t.Fatal("canal não foi fechado após o shutdown")
	}

	hub.Publish(inventoryID, domain.CountEvent{}) // sem pânico
}
