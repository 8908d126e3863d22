package sectorrepo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gocontagem/internal/domain"
	"gocontagem/internal/errors"
	"gocontagem/internal/pkg/logger"
)

// SectorRepository é o acesso aos setores de um inventário.
type SectorRepository struct {
	DB        *sql.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewSectorRepository cria e retorna uma nova instância do Repositório de Setores.
func NewSectorRepository(db *sql.DB, dbTimeout time.Duration, logger logger.Logger) *SectorRepository {
	return &SectorRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

const selectColumns = `id, inventory_id, range_start, range_end, prefix, status, created_at, updated_at`

// FindByID busca um setor pelo ID.
func (r *SectorRepository) FindByID(ctx context.Context, id string) (domain.Sector, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM sectors WHERE id = $1`, selectColumns)

	var s domain.Sector
	err := r.DB.QueryRowContext(ctxTimeout, query, id).Scan(
		&s.ID, &s.InventoryID, &s.RangeStart, &s.RangeEnd, &s.Prefix, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return domain.Sector{}, errors.NewNotFoundError(fmt.Sprintf("Setor %s não encontrado.", id))
	}
	if err != nil {
		r.logger.Error("Falha ao buscar setor no DB.", err)
		return domain.Sector{}, errors.NewDBError("Falha ao buscar setor", err)
	}

	return s, nil
}

// FindByInventory lista todos os setores de um inventário (um inventário
// tem dezenas de setores, não milhares, sem paginação).
func (r *SectorRepository) FindByInventory(ctx context.Context, inventoryID string) ([]domain.Sector, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := fmt.Sprintf(`SELECT %s FROM sectors WHERE inventory_id = $1 ORDER BY range_start`, selectColumns)

	rows, err := r.DB.QueryContext(ctxTimeout, query, inventoryID)
	if err != nil {
		r.logger.Error("Falha ao listar setores do inventário.", err)
		return nil, errors.NewDBError("Falha ao listar setores", err)
	}
	defer rows.Close()

	var sectors []domain.Sector
	for rows.Next() {
		var s domain.Sector
		if err := rows.Scan(
			&s.ID, &s.InventoryID, &s.RangeStart, &s.RangeEnd, &s.Prefix, &s.Status, &s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, errors.NewDBError("Falha ao ler setor", err)
		}
		sectors = append(sectors, s)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar setores", err)
	}

	return sectors, nil
}

// ResolveByCode resolve o setor dono de um código numérico lido pelo
// coletor. Exatamente uma faixa deve conter o código; a não-sobreposição
// das faixas é garantida pelo catálogo, não verificada aqui.
func (r *SectorRepository) ResolveByCode(ctx context.Context, inventoryID string, code int64) (domain.Sector, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	query := fmt.Sprintf(`
        SELECT %s FROM sectors
        WHERE inventory_id = $1 AND range_start <= $2 AND range_end >= $2`, selectColumns)

	var s domain.Sector
	err := r.DB.QueryRowContext(ctxTimeout, query, inventoryID, code).Scan(
		&s.ID, &s.InventoryID, &s.RangeStart, &s.RangeEnd, &s.Prefix, &s.Status, &s.CreatedAt, &s.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return domain.Sector{}, errors.NewNotFoundError(fmt.Sprintf("Nenhum setor contém o código %d.", code))
	}
	if err != nil {
		r.logger.Error("Falha ao resolver setor pelo código.", err)
		return domain.Sector{}, errors.NewDBError("Falha ao resolver setor", err)
	}

	return s, nil
}

// UpdateStatus aplica uma transição de status ao setor, exigindo o status
// de origem esperado. Se zero linhas forem afetadas, a transição era
// inválida (outro ator já mexeu no setor ou o status de origem não bate).
func (r *SectorRepository) UpdateStatus(ctx context.Context, sectorID string, from, to domain.SectorStatus) error {
	r.logger.Debug("Aplicando transição de status de setor.", map[string]interface{}{
		"sector_id": sectorID, "from": string(from), "to": string(to),
	})

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `
        UPDATE sectors
        SET status = $1, updated_at = now()
        WHERE id = $2 AND status = $3`

	result, err := r.DB.ExecContext(ctxTimeout, query, to, sectorID, from)
	if err != nil {
		r.logger.Error("Falha ao atualizar status do setor.", err)
		return errors.NewDBError("Falha ao atualizar status do setor", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewDBError("Falha ao verificar linhas afetadas", err)
	}
	if rowsAffected == 0 {
		return errors.NewConflictError(fmt.Sprintf("O setor %s não está no status %s.", sectorID, from))
	}

	return nil
}
