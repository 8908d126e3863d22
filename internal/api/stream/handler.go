package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"gocontagem/internal/domain"
	apperror "gocontagem/internal/errors"
	"gocontagem/internal/pkg/logger"
	"gocontagem/internal/pkg/middleware"
	"gocontagem/internal/service/streamservice"
)

// StreamHub define o contrato que o Handler espera do fan-out.
type StreamHub interface {
	Subscribe(ctx context.Context, inventoryID string) (*streamservice.Subscription, error)
}

// Handler serve o canal de push de monitoramento por SSE (Server-Sent
// Events): eventos nomeados `snapshot`, `contagem` e `heartbeat` numa
// conexão longa, um inventário por conexão. SSE foi escolhido porque o
// EventSource do dashboard não consegue definir headers: a credencial
// viaja no query param `token`, validada pelo middleware de autenticação.
type Handler struct {
	Hub    StreamHub
	Logger logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Hub e o Logger.
func NewHandler(hub StreamHub, log logger.Logger) *Handler {
	return &Handler{
		Hub:    hub,
		Logger: log,
	}
}

// SubscribeHandler lida com GET /v1/inventarios/{id}/stream.
// @Summary Assina o stream de monitoramento de um inventário
// @Description Conexão SSE de vida longa. O primeiro evento é sempre um snapshot completo; depois, um evento `contagem` por registro commitado e um `heartbeat` a cada 30s. Não há replay: reconectar significa receber um snapshot fresco.
// @Tags stream
// @Produce text/event-stream
// @Param id path string true "ID do inventário"
// @Param token query string true "Credencial JWT (o transporte não aceita headers)"
// @Success 200 {string} string "stream de eventos"
// @Failure 401 {object} domain.ErrorResponse "Token inválido"
// @Failure 403 {object} domain.ErrorResponse "Token de outro inventário"
// @Router /inventarios/{id}/stream [get]
func (h *Handler) SubscribeHandler(w http.ResponseWriter, r *http.Request) {
	inventoryID := r.PathValue("id")

	// A credencial é escopada a UM inventário.
	claims, ok := middleware.GetOperatorClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, apperror.NewUnauthorizedError("Token não processado.").Error(), http.StatusUnauthorized)
		return
	}
	if claims.InventoryID != inventoryID {
		http.Error(w, apperror.NewUnauthorizedError("Token não pertence a este inventário.").Error(), http.StatusForbidden)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming não suportado por este servidor.", http.StatusInternalServerError)
		return
	}

	sub, err := h.Hub.Subscribe(r.Context(), inventoryID)
	if err != nil {
		h.Logger.Error("Falha ao abrir assinatura do stream.", err)
		http.Error(w, "Falha ao abrir o stream.", http.StatusInternalServerError)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			// Dashboard fechou a aba: a assinatura cai junto.
			return
		case ev, open := <-sub.Events():
			if !open {
				return
			}
			if err := writeEvent(w, ev); err != nil {
				h.Logger.Warn("Falha ao escrever evento SSE; encerrando conexão.", map[string]interface{}{
					"inventory_id": inventoryID,
				})
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent serializa um evento do domínio no formato de evento nomeado
// do SSE.
func writeEvent(w http.ResponseWriter, ev domain.StreamEvent) error {
	var payload interface{}
	switch ev.Type {
	case domain.EventSnapshot:
		payload = ev.Snapshot
	case domain.EventContagem:
		payload = ev.Count
	case domain.EventHeartbeat:
		payload = struct{}{}
	default:
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
