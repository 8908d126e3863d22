package streamservice

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"gocontagem/internal/domain"
	"gocontagem/internal/pkg/logger"
)

// SnapshotProvider define o contrato que o Hub espera para montar o
// snapshot inicial de uma assinatura.
type SnapshotProvider interface {
	BuildSnapshot(ctx context.Context, inventoryID string) (domain.StreamSnapshot, error)
}

// Subscription é o lado do consumidor de uma assinatura do stream. O canal
// devolvido por Events é fechado quando a assinatura termina (Close do
// consumidor ou shutdown do Hub).
type Subscription struct {
	id          string
	inventoryID string
	events      chan domain.StreamEvent
	hub         *Hub
	closeOnce   sync.Once

	mu      sync.Mutex
	ready   bool
	closed  bool
	pending []domain.StreamEvent
}

// Events devolve o canal de eventos da assinatura.
func (s *Subscription) Events() <-chan domain.StreamEvent {
	return s.events
}

// Close encerra a assinatura e remove o inscrito do Hub.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.hub.unsubscribe(s.inventoryID, s.id)
		s.mu.Lock()
		s.closed = true
		close(s.events)
		s.mu.Unlock()
	})
}

// send entrega um evento respeitando a fase da assinatura: enquanto o
// snapshot inicial ainda não foi entregue, os deltas ficam retidos; depois,
// envio não-bloqueante (buffer cheio descarta). Devolve false no descarte.
func (s *Subscription) send(ev domain.StreamEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return true
	}
	if !s.ready {
		s.pending = append(s.pending, ev)
		return true
	}
	select {
	case s.events <- ev:
		return true
	default:
		return false
	}
}

// deliverSnapshot coloca o snapshot como primeiro evento do canal e drena
// os deltas retidos durante a montagem.
func (s *Subscription) deliverSnapshot(snapshot domain.StreamSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	// O canal ainda não recebeu nada (os deltas estavam retidos no slice),
	// então o snapshot sempre cabe.
	s.events <- domain.StreamEvent{Type: domain.EventSnapshot, Snapshot: &snapshot}
	for _, ev := range s.pending {
		select {
		case s.events <- ev:
		default:
		}
	}
	s.pending = nil
	s.ready = true
}

// Hub é o fan-out do servidor: um produtor lógico (o append no ledger)
// alimenta N conexões de assinantes independentes, particionadas por
// inventário. Não há backpressure nem replay: um assinante lento tem o
// evento descartado e se recupera pelo próprio timeout de liveness,
// reconectando e recebendo um snapshot fresco (nunca bloqueia o produtor).
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]*Subscription // inventoryID -> subID -> assinatura
	snapshots   SnapshotProvider
	bufferSize  int
	logger      logger.Logger

	done      chan struct{}
	closeOnce sync.Once
}

// NewHub cria o Hub e inicia o ticker de heartbeat (período fixo; o
// heartbeat não carrega payload, serve só para o consumidor detectar
// conexão silenciosamente morta).
func NewHub(snapshots SnapshotProvider, bufferSize int, heartbeatPeriod time.Duration, log logger.Logger) *Hub {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	if heartbeatPeriod <= 0 {
		heartbeatPeriod = 30 * time.Second
	}

	h := &Hub{
		subscribers: make(map[string]map[string]*Subscription),
		snapshots:   snapshots,
		bufferSize:  bufferSize,
		logger:      log,
		done:        make(chan struct{}),
	}

	go h.heartbeatLoop(heartbeatPeriod)

	return h
}

// Subscribe registra um novo assinante para um inventário. O snapshot é
// sempre o primeiro evento do canal: toda conexão nova (inclusive
// reconexão) começa com um snapshot, que é o único mecanismo de resync
// (não existe replay de eventos perdidos).
//
// O registro acontece ANTES da montagem do snapshot: eventos publicados
// durante a consulta ficam retidos na assinatura e são entregues logo após
// o snapshot, sem janela perdida entre a consulta e o registro.
func (h *Hub) Subscribe(ctx context.Context, inventoryID string) (*Subscription, error) {
	sub := &Subscription{
		id:          uuid.New().String(),
		inventoryID: inventoryID,
		events:      make(chan domain.StreamEvent, h.bufferSize),
		hub:         h,
	}

	h.mu.Lock()
	if h.subscribers[inventoryID] == nil {
		h.subscribers[inventoryID] = make(map[string]*Subscription)
	}
	h.subscribers[inventoryID][sub.id] = sub
	subscribers := len(h.subscribers[inventoryID])
	h.mu.Unlock()

	snapshot, err := h.snapshots.BuildSnapshot(ctx, inventoryID)
	if err != nil {
		sub.Close()
		h.logger.Error("Falha ao montar snapshot para nova assinatura.", err)
		return nil, err
	}

	sub.deliverSnapshot(snapshot)

	h.logger.Info("Nova assinatura do stream registrada.", map[string]interface{}{
		"inventory_id": inventoryID,
		"subscribers":  subscribers,
	})

	return sub, nil
}

// Publish distribui um evento de contagem para todos os assinantes do
// inventário. Envio não-bloqueante: buffer cheio descarta o evento para
// aquele assinante.
func (h *Hub) Publish(inventoryID string, event domain.CountEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, sub := range h.subscribers[inventoryID] {
		if !sub.send(domain.StreamEvent{Type: domain.EventContagem, Count: &event}) {
			h.logger.Warn("Assinante lento: evento de contagem descartado.", map[string]interface{}{
				"inventory_id":  inventoryID,
				"subscriber_id": id,
			})
		}
	}
}

// heartbeatLoop emite o heartbeat periódico para todos os assinantes de
// todos os inventários.
func (h *Hub) heartbeatLoop(period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			h.mu.RLock()
			for _, subs := range h.subscribers {
				for _, sub := range subs {
					// Buffer cheio: o assinante já está atrasado; o
					// heartbeat perdido vai disparar o timeout de
					// liveness dele, que é o comportamento desejado.
					sub.send(domain.StreamEvent{Type: domain.EventHeartbeat})
				}
			}
			h.mu.RUnlock()
		}
	}
}

// unsubscribe remove um assinante do registro.
func (h *Hub) unsubscribe(inventoryID, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.subscribers[inventoryID]; ok {
		delete(subs, subID)
		if len(subs) == 0 {
			delete(h.subscribers, inventoryID)
		}
	}
}

// Close encerra o Hub: para o heartbeat e fecha todas as assinaturas.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)

		h.mu.Lock()
		subs := make([]*Subscription, 0)
		for _, byID := range h.subscribers {
			for _, sub := range byID {
				subs = append(subs, sub)
			}
		}
		h.subscribers = make(map[string]map[string]*Subscription)
		h.mu.Unlock()

		// Fechar fora do lock: Subscription.Close reentra em unsubscribe.
		for _, sub := range subs {
			sub.Close()
		}
	})
}
