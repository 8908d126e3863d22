package inventoryrepo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gocontagem/internal/domain"
	"gocontagem/internal/errors"
	"gocontagem/internal/pkg/logger"
)

// InventoryRepository é o acesso à raiz de agregação Inventory.
type InventoryRepository struct {
	DB        *sql.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewInventoryRepository cria e retorna uma nova instância do Repositório de Inventários.
func NewInventoryRepository(db *sql.DB, dbTimeout time.Duration, logger logger.Logger) *InventoryRepository {
	return &InventoryRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

// FindByID busca um inventário pelo ID.
func (r *InventoryRepository) FindByID(ctx context.Context, id string) (domain.Inventory, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `
        SELECT id, name, minimum_count_threshold, allows_lot, allows_expiry, status,
               COALESCE(closure_justification, ''), closed_at, created_at, updated_at
        FROM inventories
        WHERE id = $1`

	var inv domain.Inventory
	var closedAt sql.NullTime
	err := r.DB.QueryRowContext(ctxTimeout, query, id).Scan(
		&inv.ID, &inv.Name, &inv.MinimumCountThreshold, &inv.AllowsLot, &inv.AllowsExpiry,
		&inv.Status, &inv.ClosureJustification, &closedAt, &inv.CreatedAt, &inv.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return domain.Inventory{}, errors.NewNotFoundError(fmt.Sprintf("Inventário %s não encontrado.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar inventário no DB.", err)
		return domain.Inventory{}, errors.NewDBError("Falha ao buscar inventário", err)
	}

	if closedAt.Valid {
		t := closedAt.Time
		inv.ClosedAt = &t
	}

	return inv, nil
}

// Close marca o inventário como fechado, persistindo a justificativa do
// override administrativo junto do evento de fechamento (string vazia no
// fechamento limpo).
func (r *InventoryRepository) Close(ctx context.Context, id string, justification string) error {
	r.logger.Debug("Fechando inventário.", map[string]interface{}{"inventory_id": id, "forced": justification != ""})

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `
        UPDATE inventories
        SET status = $1, closure_justification = $2, closed_at = now(), updated_at = now()
        WHERE id = $3 AND status = $4`

	result, err := r.DB.ExecContext(ctxTimeout, query, domain.InventoryClosed, justification, id, domain.InventoryOpen)
	if err != nil {
		r.logger.Error("Falha ao fechar inventário.", err)
		return errors.NewDBError("Falha ao fechar inventário", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if rowsAffected == 0 {
		return errors.NewConflictError(fmt.Sprintf("O inventário %s não está aberto.", id))
	}

	return nil
}

// Reopen reverte o fechamento do inventário. Ação administrativa explícita,
// sem gate. A justificativa e o closed_at do último fechamento ficam
// intactos como trilha de auditoria: um novo fechamento os sobrescreve.
func (r *InventoryRepository) Reopen(ctx context.Context, id string) error {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `
        UPDATE inventories
        SET status = $1, updated_at = now()
        WHERE id = $2 AND status = $3`

	result, err := r.DB.ExecContext(ctxTimeout, query, domain.InventoryOpen, id, domain.InventoryClosed)
	if err != nil {
		r.logger.Error("Falha ao reabrir inventário.", err)
		return errors.NewDBError("Falha ao reabrir inventário", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if rowsAffected == 0 {
		return errors.NewConflictError(fmt.Sprintf("O inventário %s não está fechado.", id))
	}

	return nil
}
