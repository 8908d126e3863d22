package operatorservice

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"gocontagem/internal/domain"
	apperror "gocontagem/internal/errors"
	"gocontagem/internal/pkg/logger"
)

// OperatorRepository define o contrato de persistência que o Serviço de
// Operador espera.
type OperatorRepository interface {
	FindByEmail(ctx context.Context, email string) (domain.Operator, error)
}

// TokenGenerator define o contrato de emissão de JWT.
type TokenGenerator interface {
	GenerateToken(operatorID string, role string, inventoryID string) (string, error)
}

// Service implementa o login do operador: a credencial emitida aqui é a
// mesma usada pelos coletores nas rotas de mutação e pelos dashboards no
// query param do stream. O cadastro de operadores e as políticas de acesso
// são mantidos pelo diretório externo.
type Service struct {
	repo     OperatorRepository
	tokenSvc TokenGenerator
	logger   logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Operador.
func NewService(repo OperatorRepository, tokenSvc TokenGenerator, log logger.Logger) *Service {
	return &Service{repo: repo, tokenSvc: tokenSvc, logger: log}
}

// Login autentica um operador, verifica a senha e gera um JWT escopado ao
// inventário em que ele está alocado.
func (s *Service) Login(ctx context.Context, email string, password string) (string, error) {
	if email == "" || password == "" {
		return "", apperror.NewValidationError("Email e senha são obrigatórios.")
	}

	operator, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		// Não diferenciar "não existe" de "senha errada" na resposta.
		return "", apperror.NewUnauthorizedError("Credenciais inválidas.")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(operator.PasswordHash), []byte(password)); err != nil {
		s.logger.Warn("Tentativa de login com senha incorreta.", map[string]interface{}{"email": email})
		return "", apperror.NewUnauthorizedError("Credenciais inválidas.")
	}

	tokenString, err := s.tokenSvc.GenerateToken(operator.ID, string(operator.Role), operator.InventoryID)
	if err != nil {
		s.logger.Error("Falha ao gerar token de acesso.", err)
		return "", apperror.NewInternalError("Falha ao gerar token de acesso.", err)
	}

	s.logger.Info("Operador autenticado.", map[string]interface{}{"operator_id": operator.ID})
	return tokenString, nil
}
