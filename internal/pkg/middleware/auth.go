package middleware

import (
	"context"
	"net/http"

	"gocontagem/internal/domain"
	apperror "gocontagem/internal/errors"
	"gocontagem/internal/pkg/token"
)

// ContextKey é a chave usada para armazenar as claims do operador no contexto.
// Usamos um tipo próprio para garantir que esta chave seja única e não haja
// conflito com outras chaves string.
type ContextKey int

const (
	OperatorClaimsKey ContextKey = iota
)

// OperatorClaims representa os dados do operador extraídos do token JWT,
// que serão anexados ao contexto.
type OperatorClaims struct {
	OperatorID  string
	Role        domain.OperatorRole
	InventoryID string
}

// TokenService define o contrato de validação necessário para o middleware.
type TokenService interface {
	ValidateToken(tokenString string) (*token.CustomClaims, error)
}

// NewAuthMiddleware cria uma função de middleware que valida um JWT e anexa
// as claims (OperatorID, Role e InventoryID) ao contexto da requisição.
//
// O token é aceito de duas formas: no header `Authorization: Bearer <token>`
// (rotas normais) ou no query param `?token=`, já que o transporte do stream
// (EventSource) não consegue definir headers, e a credencial da
// assinatura viaja obrigatoriamente na query string.
func NewAuthMiddleware(tokenSvc TokenService) func(next http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {

			// 1. Extrair o Token (header ou query param)
			tokenString := extractToken(r)
			if tokenString == "" {
				http.Error(w, apperror.NewUnauthorizedError("Token de autorização ausente ou malformado.").Error(), http.StatusUnauthorized)
				return
			}

			// 2. Validar o Token
			claims, err := tokenSvc.ValidateToken(tokenString)
			if err != nil {
				http.Error(w, apperror.NewUnauthorizedError("Token inválido ou expirado.").Error(), http.StatusUnauthorized)
				return
			}

			// 3. Anexar Claims ao Contexto
			operatorClaims := OperatorClaims{
				OperatorID:  claims.OperatorID,
				Role:        domain.OperatorRole(claims.Role),
				InventoryID: claims.InventoryID,
			}

			ctx := context.WithValue(r.Context(), OperatorClaimsKey, operatorClaims)
			next.ServeHTTP(w, r.WithContext(ctx))
		}
	}
}

// extractToken procura a credencial no header Authorization e, na ausência,
// no query param `token`.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		return authHeader[7:]
	}
	return r.URL.Query().Get("token")
}

// GetOperatorClaimsFromContext é uma função utilitária para extrair as claims no handler.
func GetOperatorClaimsFromContext(ctx context.Context) (OperatorClaims, bool) {
	claims, ok := ctx.Value(OperatorClaimsKey).(OperatorClaims)
	return claims, ok
}

// PermissionMiddleware restringe o acesso às roles informadas. Usado apenas
// no override administrativo de fechamento: o restante da autorização é
// responsabilidade do diretório de identidade externo.
func PermissionMiddleware(requiredRoles ...domain.OperatorRole) func(next http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {

			claims, ok := GetOperatorClaimsFromContext(r.Context())
			if !ok {
				http.Error(w, apperror.NewUnauthorizedError("Autorização necessária. Token não processado.").Error(), http.StatusUnauthorized)
				return
			}

			isAuthorized := false
			for _, requiredRole := range requiredRoles {
				if claims.Role == requiredRole {
					isAuthorized = true
					break
				}
			}

			if !isAuthorized {
				http.Error(w, apperror.NewUnauthorizedError("Acesso negado. Você não tem a permissão necessária.").Error(), http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		}
	}
}
