package count

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

// CountService define o contrato que o Handler espera da camada de Serviço.
type CountService interface {
	Commit(ctx context.Context, req domain.CountCommitRequest) (domain.CountRecord, error)
}

// Handler agrupa os métodos de Handler de contagem.
type Handler struct {
	Service CountService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc CountService, log logger.Logger) *Handler {
	return &Handler{
		Service: svc,
		Logger:  log,
	}
}

// handleServiceResponse processa erros de serviço e envia respostas padronizadas ao cliente.
func (h *Handler) handleServiceResponse(w http.ResponseWriter, r *http.Request, data interface{}, err error, successStatus int) {
	if err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(successStatus)
		if data != nil {
			if jsonErr := json.NewEncoder(w).Encode(data); jsonErr != nil {
				h.Logger.Error("Falha ao codificar JSON de resposta", jsonErr)
				http.Error(w, "Erro ao codificar resposta", http.StatusInternalServerError)
			}
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

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse)
}

// CommitCountHandler lida com POST /v1/contagens.
// @Summary Registra uma contagem
// @Description Resolve o produto pelo código lido (barras ou interno), grava UM novo registro imutável no ledger e publica o evento para os dashboards. Recontagens são registros novos, nunca alteração dos anteriores.
// @Tags contagens
// @Accept json
// @Produce json
// @Param contagem body domain.CountCommitRequest true "Dados da contagem"
// @Success 201 {object} domain.CountRecord "Registro gravado"
// @Failure 400 {object} domain.ErrorResponse "Payload inválido"
// @Failure 404 {object} domain.ErrorResponse "Produto não encontrado para o código lido"
// @Failure 500 {object} domain.ErrorResponse "Erro interno do servidor"
// @Router /contagens [post]
func (h *Handler) CommitCountHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.CountCommitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload inválido. Verifique o formato JSON."), 0)
		return
	}

	// O operador vem sempre do token, nunca do payload.
	claims, ok := middleware.GetOperatorClaimsFromContext(ctx)
	if !ok {
		h.handleServiceResponse(w, r, nil, apperror.NewUnauthorizedError("Token não processado."), 0)
		return
	}
	req.OperatorID = claims.OperatorID

	record, err := h.Service.Commit(ctx, req)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, 0)
		return
	}

	h.handleServiceResponse(w, r, record, nil, http.StatusCreated)
}
