package operatorrepo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gocontagem/internal/domain"
	"gocontagem/internal/errors"
	"gocontagem/internal/pkg/logger"
)

// OperatorRepository é o acesso ao cadastro de operadores alocados aos
// inventários. O cadastro em si (criação, papéis, políticas de acesso) é
// mantido pelo diretório externo; aqui só lemos o necessário para login e
// resolução de nome de exibição.
type OperatorRepository struct {
	DB        *sql.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewOperatorRepository cria e retorna uma nova instância do Repositório de Operadores.
func NewOperatorRepository(db *sql.DB, dbTimeout time.Duration, logger logger.Logger) *OperatorRepository {
	return &OperatorRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

const selectColumns = `id, inventory_id, name, email, password_hash, role, COALESCE(avatar_url, ''), created_at, updated_at`

// FindByEmail busca um operador pelo email (login).
func (r *OperatorRepository) FindByEmail(ctx context.Context, email string) (domain.Operator, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM operators WHERE email = $1`, selectColumns)

	var op domain.Operator
	err := r.DB.QueryRowContext(ctxTimeout, query, email).Scan(
		&op.ID, &op.InventoryID, &op.Name, &op.Email, &op.PasswordHash, &op.Role,
		&op.AvatarURL, &op.CreatedAt, &op.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return domain.Operator{}, errors.NewNotFoundError("Operador não encontrado para o email informado.")
	}
	if err != nil {
		r.logger.Error("Falha ao buscar operador por email.", err)
		return domain.Operator{}, errors.NewDBError("Falha ao buscar operador", err)
	}

	return op, nil
}

// FindByID busca um operador pelo ID (resolução de nome de exibição no
// caminho de publicação do evento de contagem).
func (r *OperatorRepository) FindByID(ctx context.Context, id string) (domain.Operator, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM operators WHERE id = $1`, selectColumns)

	var op domain.Operator
	err := r.DB.QueryRowContext(ctxTimeout, query, id).Scan(
		&op.ID, &op.InventoryID, &op.Name, &op.Email, &op.PasswordHash, &op.Role,
		&op.AvatarURL, &op.CreatedAt, &op.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return domain.Operator{}, errors.NewNotFoundError(fmt.Sprintf("Operador %s não encontrado.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar operador por ID.", err)
		return domain.Operator{}, errors.NewDBError("Falha ao buscar operador", err)
	}

	return op, nil
}
