package sector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	apperror "gocontagem/internal/errors"
	"gocontagem/internal/pkg/logger"
)

// SectorService define o contrato que o Handler espera da camada de Serviço.
type SectorService interface {
	Close(ctx context.Context, sectorID string) error
	Reopen(ctx context.Context, sectorID string) error
}

// Handler agrupa os métodos de Handler de setor.
type Handler struct {
	Service SectorService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc SectorService, log logger.Logger) *Handler {
	return &Handler{
		Service: svc,
		Logger:  log,
	}
}

// handleServiceResponse processa erros de serviço e envia respostas
// padronizadas. Para bloqueios de fechamento, o corpo carrega os detalhes
// estruturados (quantas contagens faltam), permitindo ao chamador decidir
// entre resolver a pendência ou invocar o override administrativo.
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

	var blocked *apperror.ClosureBlockedError
	if ok := asClosureBlocked(err, &blocked); ok {
		errorResponse["missing_counts"] = blocked.Missing
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse)
}

// asClosureBlocked extrai o erro estruturado de bloqueio, se for o caso.
func asClosureBlocked(err error, target **apperror.ClosureBlockedError) bool {
	if blocked, ok := err.(*apperror.ClosureBlockedError); ok {
		*target = blocked
		return true
	}
	return false
}

// CloseSectorHandler lida com POST /v1/setores/{id}/fechar.
// @Summary Finaliza um setor
// @Description Validação dura no servidor: rejeita com bloqueio estruturado se o total de contagens do setor estiver abaixo do limiar mínimo do inventário.
// @Tags setores
// @Produce json
// @Param id path string true "ID do setor"
// @Success 204 "Setor finalizado"
// @Failure 409 {object} domain.ErrorResponse "Setor não está em contagem"
// @Failure 422 {object} domain.ErrorResponse "Abaixo do limiar mínimo (carrega missing_counts)"
// @Router /setores/{id}/fechar [post]
func (h *Handler) CloseSectorHandler(w http.ResponseWriter, r *http.Request) {
	sectorID := r.PathValue("id")

	err := h.Service.Close(r.Context(), sectorID)
	h.handleServiceResponse(w, r, nil, err, http.StatusNoContent)
}

// ReopenSectorHandler lida com POST /v1/setores/{id}/reabrir.
// @Summary Reabre um setor finalizado
// @Description Ação administrativa explícita (finalized -> counting), sem gate de limiar.
// @Tags setores
// @Produce json
// @Param id path string true "ID do setor"
// @Success 204 "Setor reaberto"
// @Failure 409 {object} domain.ErrorResponse "Setor não está finalizado"
// @Router /setores/{id}/reabrir [post]
func (h *Handler) ReopenSectorHandler(w http.ResponseWriter, r *http.Request) {
	sectorID := r.PathValue("id")

	err := h.Service.Reopen(r.Context(), sectorID)
	h.handleServiceResponse(w, r, nil, err, http.StatusNoContent)
}
