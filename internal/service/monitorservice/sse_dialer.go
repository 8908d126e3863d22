package monitorservice

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"gocontagem/internal/domain"
	"gocontagem/internal/pkg/logger"
)

// SSEDialer é o transporte concreto do consumidor: abre a conexão
// text/event-stream do servidor e decodifica os eventos nomeados
// (snapshot/contagem/heartbeat) para o envelope do domínio.
//
// A credencial viaja no query param `token` porque o transporte de
// assinatura não consegue definir headers.
type SSEDialer struct {
	BaseURL string // e.g. "http://localhost:8080"
	Token   string
	Client  *http.Client
	Logger  logger.Logger
}

// sseStream implementa Stream sobre uma resposta HTTP aberta.
type sseStream struct {
	events chan domain.StreamEvent
	cancel context.CancelFunc
}

func (s *sseStream) Events() <-chan domain.StreamEvent { return s.events }

func (s *sseStream) Close() error {
	s.cancel()
	return nil
}

// Dial abre a assinatura SSE de um inventário.
func (d *SSEDialer) Dial(ctx context.Context, inventoryID string) (Stream, error) {
	httpClient := d.Client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	streamCtx, cancel := context.WithCancel(ctx)

	url := fmt.Sprintf("%s/v1/inventarios/%s/stream?token=%s", d.BaseURL, inventoryID, d.Token)
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("assinatura do stream rejeitada: status %d", resp.StatusCode)
	}

	s := &sseStream{
		events: make(chan domain.StreamEvent),
		cancel: cancel,
	}

	go func() {
		defer close(s.events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		var eventName, data string
		for scanner.Scan() {
			line := scanner.Text()

			switch {
			case line == "":
				// Linha em branco fecha um evento SSE completo.
				if eventName != "" {
					if ev, ok := decodeEvent(eventName, data, d.Logger); ok {
						select {
						case s.events <- ev:
						case <-streamCtx.Done():
							return
						}
					}
				}
				eventName, data = "", ""
			case strings.HasPrefix(line, "event:"):
				eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			case strings.HasPrefix(line, "data:"):
				data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			}
			// Comentários (":") e campos desconhecidos são ignorados.
		}
		// Erro de leitura ou EOF: canal fecha e o Client decide reconectar.
	}()

	return s, nil
}

// decodeEvent converte um evento SSE nomeado no envelope do domínio.
func decodeEvent(name, data string, log logger.Logger) (domain.StreamEvent, bool) {
	switch domain.StreamEventType(name) {
	case domain.EventSnapshot:
		var snapshot domain.StreamSnapshot
		if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
			if log != nil {
				log.Error("Snapshot SSE malformado; descartando.", err)
			}
			return domain.StreamEvent{}, false
		}
		return domain.StreamEvent{Type: domain.EventSnapshot, Snapshot: &snapshot}, true

	case domain.EventContagem:
		var count domain.CountEvent
		if err := json.Unmarshal([]byte(data), &count); err != nil {
			if log != nil {
				log.Error("Evento de contagem SSE malformado; descartando.", err)
			}
			return domain.StreamEvent{}, false
		}
		return domain.StreamEvent{Type: domain.EventContagem, Count: &count}, true

	case domain.EventHeartbeat:
		return domain.StreamEvent{Type: domain.EventHeartbeat}, true
	}

	return domain.StreamEvent{}, false
}
