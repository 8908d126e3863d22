package operator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"gocontagem/internal/domain"
	apperror "gocontagem/internal/errors"
	"gocontagem/internal/pkg/logger"
)

// OperatorService define o contrato que o Handler espera da camada de Serviço.
type OperatorService interface {
	Login(ctx context.Context, email string, password string) (string, error)
}

// Handler agrupa os métodos de Handler do operador.
type Handler struct {
	Service OperatorService
	Logger  logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Service e o Logger.
func NewHandler(svc OperatorService, log logger.Logger) *Handler {
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
			json.NewEncoder(w).Encode(data)
		}
		return
	}

	status, category, message := apperror.MapToHTTPStatus(err)

	if status >= 500 {
		h.Logger.Error(fmt.Sprintf("Erro interno no serviço de operador: %s", category), err)
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

// LoginHandler lida com POST /v1/login.
// @Summary Autentica um operador
// @Description Verifica email e senha e emite o JWT escopado ao inventário do operador, a mesma credencial usada nas rotas de mutação e no query param do stream.
// @Tags operadores
// @Accept json
// @Produce json
// @Param credenciais body domain.LoginRequest true "Email e senha"
// @Success 200 {object} map[string]string "token de acesso"
// @Failure 401 {object} domain.ErrorResponse "Credenciais inválidas"
// @Router /login [post]
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("Payload JSON inválido."), 0)
		return
	}

	tokenString, err := h.Service.Login(ctx, req.Email, req.Password)
	if err != nil {
		h.handleServiceResponse(w, r, nil, err, 0)
		return
	}

	h.handleServiceResponse(w, r, map[string]string{"token": tokenString}, nil, http.StatusOK)
}
