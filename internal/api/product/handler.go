package product

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

// ProductLookup define o contrato de busca que o Handler espera.
type ProductLookup interface {
	FindByBarcode(ctx context.Context, inventoryID, barcode string) (domain.Product, error)
	FindByInternalCode(ctx context.Context, inventoryID, internalCode string) (domain.Product, error)
}

// Handler agrupa os métodos de Handler de produto.
type Handler struct {
	Lookup ProductLookup
	Logger logger.Logger
}

// NewHandler cria uma nova instância do Handler, injetando o Lookup e o Logger.
func NewHandler(lookup ProductLookup, log logger.Logger) *Handler {
	return &Handler{
		Lookup: lookup,
		Logger: log,
	}
}

// handleServiceResponse processa erros e envia respostas padronizadas ao cliente.
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

// SearchProductHandler lida com GET /v1/produtos/busca?modo=&codigo=.
// @Summary Busca um produto pelo código lido
// @Description Resolução por código de barras (modo=barras, padrão) ou código interno (modo=interno), dentro do inventário do token. Hot path do loop de scan: servido por Cache-Aside no Redis.
// @Tags produtos
// @Produce json
// @Param modo query string false "barras | interno" default(barras)
// @Param codigo query string true "Código lido"
// @Success 200 {object} domain.Product
// @Failure 404 {object} domain.ErrorResponse "Produto não encontrado"
// @Router /produtos/busca [get]
func (h *Handler) SearchProductHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claims, ok := middleware.GetOperatorClaimsFromContext(ctx)
	if !ok {
		h.handleServiceResponse(w, r, nil, apperror.NewUnauthorizedError("Token não processado."), 0)
		return
	}

	code := r.URL.Query().Get("codigo")
	if code == "" {
		h.handleServiceResponse(w, r, nil, apperror.NewValidationError("O parâmetro 'codigo' é obrigatório."), 0)
		return
	}

	var (
		product domain.Product
		err     error
	)
	switch domain.SearchMode(r.URL.Query().Get("modo")) {
	case domain.SearchByInternalCode:
		product, err = h.Lookup.FindByInternalCode(ctx, claims.InventoryID, code)
	default:
		product, err = h.Lookup.FindByBarcode(ctx, claims.InventoryID, code)
	}

	h.handleServiceResponse(w, r, product, err, http.StatusOK)
}
