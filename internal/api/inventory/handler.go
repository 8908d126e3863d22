package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"gocontagem/internal/domain"
	apperror "gocontagem/internal/errors"
	"gocontagem/internal/pkg/logger"
	"gocontagem/internal/pkg/middleware"
)

// InventoryService define o contrato que o Handler espera da camada de Serviço.
type InventoryService interface {
	Blockers(ctx context.Context, inventoryID string) (domain.ClosureBlockers, error)
	Close(ctx context.Context, inventoryID string, justification string, isAdmin bool) error
	Reopen(ctx context.Context, inventoryID string) error
}

// MetricsService define o contrato do classificador de divergências.
type MetricsService interface {
	Compute(ctx context.Context, inventoryID string, forceRefresh bool) (domain.DivergenceMetrics, error)
}

// CloseRequest é o payload do fechamento de inventário.
type CloseRequest struct {
	Justification string `json:"justification"`
}

// Handler agrupa os métodos de Handler de inventário.
type Handler struct {
	Service InventoryService
	Metrics MetricsService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando os Services e o Logger.
func NewHandler(svc InventoryService, metrics MetricsService, log logger.Logger) *Handler {
	return &Handler{
		Service: svc,
		Metrics: metrics,
		Logger:  log,
	}
}

// handleServiceResponse processa erros de serviço e envia respostas
// padronizadas. Bloqueios de fechamento carregam os impedimentos
// estruturados no corpo.
func (h *Handler) handleServiceResponse(w http.ResponseWriter, r *http.Request, data interface{}, err error, successStatus int) {
	if err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(successStatus)
		if data != nil {
			json.NewEncoder(w).Encode(data)
		}
		return
	}

	status, category, message := apperror.MapToHTTPStatus(err)

	if status >= 500 {
		h.Logger.Error(fmt.Sprintf("Erro de Servidor: %s", category), err)
	} else {
		h.Logger.Debug(fmt.Sprintf("Requisição rejeitada com status %d. Categoria: %s", status, category), map[string]interface{}{"path": r.URL.Path})
	}

	errorResponse := map[string]interface{}{
		"code":     status,
		"category": category,
		"message":  message,
	}

	if blocked, ok := err.(*apperror.ClosureBlockedError); ok && blocked.Blockers != nil {
		errorResponse["blockers"] = blocked.Blockers
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse)
}

// GetBlockersHandler lida com GET /v1/inventarios/{id}/impedimentos.
// @Summary Lista os impedimentos de fechamento do inventário
// @Tags inventarios
// @Produce json
// @Param id path string true "ID do inventário"
// @Success 200 {object} domain.ClosureBlockers
// @Router /inventarios/{id}/impedimentos [get]
func (h *Handler) GetBlockersHandler(w http.ResponseWriter, r *http.Request) {
	inventoryID := r.PathValue("id")

	blockers, err := h.Service.Blockers(r.Context(), inventoryID)
	h.handleServiceResponse(w, r, blockers, err, http.StatusOK)
}

// CloseInventoryHandler lida com POST /v1/inventarios/{id}/fechar.
// @Summary Fecha um inventário
// @Description Sem impedimentos, uma confirmação simples basta. Com impedimentos, só um administrador com justificativa (>= 10 caracteres) força o fechamento; a justificativa é persistida junto do evento.
// @Tags inventarios
// @Accept json
// @Produce json
// @Param id path string true "ID do inventário"
// @Param fechamento body CloseRequest false "Justificativa do override administrativo"
// @Success 204 "Inventário fechado"
// @Failure 400 {object} domain.ErrorResponse "Justificativa curta demais"
// @Failure 422 {object} domain.ErrorResponse "Impedimentos pendentes (carrega blockers)"
// @Router /inventarios/{id}/fechar [post]
func (h *Handler) CloseInventoryHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	inventoryID := r.PathValue("id")

	var req CloseRequest
	if r.Body != nil {
		// Corpo vazio é válido: fechamento limpo não exige justificativa.
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	claims, ok := middleware.GetOperatorClaimsFromContext(ctx)
	if !ok {
		h.handleServiceResponse(w, r, nil, apperror.NewUnauthorizedError("Token não processado."), 0)
		return
	}

	err := h.Service.Close(ctx, inventoryID, req.Justification, claims.Role == domain.RoleAdmin)
	h.handleServiceResponse(w, r, nil, err, http.StatusNoContent)
}

// ReopenInventoryHandler lida com POST /v1/inventarios/{id}/reabrir.
// @Summary Reabre um inventário fechado
// @Tags inventarios
// @Produce json
// @Param id path string true "ID do inventário"
// @Success 204 "Inventário reaberto"
// @Failure 409 {object} domain.ErrorResponse "Inventário não está fechado"
// @Router /inventarios/{id}/reabrir [post]
func (h *Handler) ReopenInventoryHandler(w http.ResponseWriter, r *http.Request) {
	inventoryID := r.PathValue("id")

	err := h.Service.Reopen(r.Context(), inventoryID)
	h.handleServiceResponse(w, r, nil, err, http.StatusNoContent)
}

// GetMetricsHandler lida com GET /v1/inventarios/{id}/metricas.
// @Summary Métricas de divergência do inventário
// @Description Computação batch sobre o histórico completo (fetch-all paginado). Consistência eventual: `?refresh=true` força o recálculo ignorando o cache.
// @Tags inventarios
// @Produce json
// @Param id path string true "ID do inventário"
// @Param refresh query bool false "Força recálculo"
// @Success 200 {object} domain.DivergenceMetrics
// @Failure 500 {object} domain.ErrorResponse "Falha de leitura (retryable; nada parcial é emitido)"
// @Router /inventarios/{id}/metricas [get]
func (h *Handler) GetMetricsHandler(w http.ResponseWriter, r *http.Request) {
	inventoryID := r.PathValue("id")
	forceRefresh := r.URL.Query().Get("refresh") == "true"

	metrics, err := h.Metrics.Compute(r.Context(), inventoryID, forceRefresh)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, 0)
		return
	}

	h.handleServiceResponse(w, r, metrics, nil, http.StatusOK)
}
