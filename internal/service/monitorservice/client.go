package monitorservice

import (
	"context"
	"time"

	"gocontagem/internal/domain"
	"gocontagem/internal/pkg/logger"
)

// Stream é uma conexão viva com o canal de push. O canal de Events é
// fechado pelo transporte quando a conexão morre.
type Stream interface {
	Events() <-chan domain.StreamEvent
	Close() error
}

// Dialer abre uma nova conexão de assinatura. Cada Dial bem-sucedido
// começa, por contrato, com um evento snapshot.
type Dialer interface {
	Dial(ctx context.Context, inventoryID string) (Stream, error)
}

// ClientConfig agrupa os parâmetros de liveness e reconexão do consumidor.
type ClientConfig struct {
	LivenessTimeout    time.Duration // Silêncio máximo antes de declarar a conexão morta (heartbeat + folga)
	ReconnectBaseDelay time.Duration // Backoff inicial
	ReconnectMaxDelay  time.Duration // Teto do backoff
}

// Client mantém UM agregador alimentado por uma assinatura do stream,
// cuidando de liveness e reconexão:
//
//   - o timer de liveness é rearmado a CADA evento recebido (snapshot,
//     contagem ou heartbeat); silêncio além do timeout declara a conexão
//     morta, fecha à força e reconecta: nunca segue renderizando estado
//     cada vez mais velho em silêncio;
//   - backoff exponencial com teto; o contador de tentativas zera em
//     qualquer snapshot recebido com sucesso;
//   - não há replay: eventos perdidos durante a desconexão só se refletem
//     no próximo snapshot (janela de staleness aceita do protocolo).
//
// Falhas de transporte não são expostas como erro ao usuário: são tratadas
// uniformemente com fechar+reconectar.
type Client struct {
	dialer      Dialer
	agg         *Aggregator
	inventoryID string
	cfg         ClientConfig
	logger      logger.Logger
}

// NewClient cria o consumidor do stream de um inventário.
func NewClient(dialer Dialer, agg *Aggregator, inventoryID string, cfg ClientConfig, log logger.Logger) *Client {
	if cfg.LivenessTimeout <= 0 {
		cfg.LivenessTimeout = 45 * time.Second
	}
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = time.Second
	}
	if cfg.ReconnectMaxDelay <= 0 {
		cfg.ReconnectMaxDelay = 30 * time.Second
	}

	return &Client{
		dialer:      dialer,
		agg:         agg,
		inventoryID: inventoryID,
		cfg:         cfg,
		logger:      log,
	}
}

// Aggregator expõe o read-model local alimentado por este cliente.
func (c *Client) Aggregator() *Aggregator { return c.agg }

// Run consome o stream até o contexto ser cancelado (fechar o dashboard
// cancela o contexto, derrubando a assinatura e qualquer timer de
// reconexão pendente).
func (c *Client) Run(ctx context.Context) {
	attempt := 0

	for {
		if ctx.Err() != nil {
			return
		}

		stream, err := c.dialer.Dial(ctx, c.inventoryID)
		if err != nil {
			c.logger.Warn("Falha ao conectar no stream; aguardando backoff.", map[string]interface{}{
				"inventory_id": c.inventoryID,
				"attempt":      attempt,
			})
			if !c.wait(ctx, c.backoff(attempt)) {
				return
			}
			attempt++
			continue
		}

		gotSnapshot := c.consume(ctx, stream)
		stream.Close()

		if ctx.Err() != nil {
			return
		}

		// O contador de tentativas zera em qualquer snapshot recebido.
		if gotSnapshot {
			attempt = 0
		}

		if !c.wait(ctx, c.backoff(attempt)) {
			return
		}
		attempt++
	}
}

// consume dobra eventos no agregador até a conexão morrer (canal fechado
// ou timeout de liveness). Devolve true se pelo menos um snapshot chegou.
func (c *Client) consume(ctx context.Context, stream Stream) bool {
	liveness := time.NewTimer(c.cfg.LivenessTimeout)
	defer liveness.Stop()

	gotSnapshot := false

	for {
		select {
		case <-ctx.Done():
			return gotSnapshot

		case ev, ok := <-stream.Events():
			if !ok {
				// Transporte fechou por baixo: reconectar.
				return gotSnapshot
			}

			// Qualquer evento (inclusive heartbeat) rearma a liveness.
			if !liveness.Stop() {
				<-liveness.C
			}
			liveness.Reset(c.cfg.LivenessTimeout)

			c.agg.ApplyEvent(ev)
			if ev.Type == domain.EventSnapshot {
				gotSnapshot = true
			}

		case <-liveness.C:
			// Conexão silenciosamente morta: fechar à força e reconectar.
			c.logger.Warn("Stream sem eventos além do timeout de liveness; forçando reconexão.", map[string]interface{}{
				"inventory_id": c.inventoryID,
				"timeout":      c.cfg.LivenessTimeout.String(),
			})
			return gotSnapshot
		}
	}
}

// backoff calcula o atraso exponencial da tentativa: base, dobrando a cada
// tentativa, com teto.
func (c *Client) backoff(attempt int) time.Duration {
	delay := c.cfg.ReconnectBaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay >= c.cfg.ReconnectMaxDelay {
			return c.cfg.ReconnectMaxDelay
		}
	}
	return delay
}

// wait dorme respeitando o cancelamento; false se o contexto morreu.
func (c *Client) wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
