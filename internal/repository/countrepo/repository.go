package countrepo

import (
	"context"
	"database/sql"
	"time"

	"gocontagem/internal/domain"
	"gocontagem/internal/errors"
	"gocontagem/internal/pkg/logger"
)

// CountRepository é o acesso ao ledger de contagens. O ledger é append-only:
// este repositório expõe Insert e leituras, nunca Update ou Delete. O
// timestamp de cada registro é atribuído pelo servidor de banco (now()),
// que é a única âncora de ordenação entre coletores concorrentes.
type CountRepository struct {
	DB        *sql.DB
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewCountRepository cria e retorna uma nova instância do Repositório do Ledger.
func NewCountRepository(db *sql.DB, dbTimeout time.Duration, logger logger.Logger) *CountRepository {
	return &CountRepository{
		DB:        db,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

// Insert grava um novo registro de contagem e devolve o registro com o
// timestamp atribuído pelo servidor.
func (r *CountRepository) Insert(ctx context.Context, record domain.CountRecord) (domain.CountRecord, error) {
	r.logger.Debug("Gravando registro de contagem no ledger.", map[string]interface{}{
		"sector_id":  record.SectorID,
		"product_id": record.ProductID,
		"quantity":   record.Quantity,
	})

	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `
        INSERT INTO count_records (id, inventory_id, sector_id, product_id, quantity, lot, expiry, divergent, operator_id, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
        RETURNING created_at`

	err := r.DB.QueryRowContext(ctxTimeout, query,
		record.ID,
		record.InventoryID,
		record.SectorID,
		record.ProductID,
		record.Quantity,
		record.Lot,
		record.Expiry,
		record.Divergent,
		record.OperatorID,
	).Scan(&record.CreatedAt)

	if err != nil {
		r.logger.Error("Falha ao gravar registro de contagem.", err)
		return domain.CountRecord{}, errors.NewDBError("Falha ao gravar registro de contagem", err)
	}

	return record, nil
}

// FindAllByInventory lê uma página do ledger de um inventário, em ordem de
// gravação. O chamador (classificador) é responsável por iterar até a
// página vir incompleta: uma única página nunca pode ser assumida como o
// ledger inteiro.
func (r *CountRepository) FindAllByInventory(ctx context.Context, inventoryID string, filter domain.CountFilter) ([]domain.CountRecord, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	offset := (filter.Page - 1) * filter.Limit

	const query = `
        SELECT id, inventory_id, sector_id, product_id, quantity, lot, expiry, divergent, operator_id, created_at
        FROM count_records
        WHERE inventory_id = $1
        ORDER BY created_at, id
        LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctxTimeout, query, inventoryID, filter.Limit, offset)
	if err != nil {
		r.logger.Error("Falha ao ler página do ledger.", err)
		return nil, errors.NewDBError("Falha ao ler o ledger de contagens", err)
	}
	defer rows.Close()

	var records []domain.CountRecord
	for rows.Next() {
		var rec domain.CountRecord
		if err := rows.Scan(
			&rec.ID, &rec.InventoryID, &rec.SectorID, &rec.ProductID, &rec.Quantity,
			&rec.Lot, &rec.Expiry, &rec.Divergent, &rec.OperatorID, &rec.CreatedAt,
		); err != nil {
			r.logger.Error("Falha ao ler linha do ledger.", err)
			return nil, errors.NewDBError("Falha ao ler registro de contagem", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar o ledger de contagens", err)
	}

	return records, nil
}

// CountBySector conta quantos registros o setor acumulou. Alimenta o gate
// de fechamento de setor (limiar mínimo de contagens).
func (r *CountRepository) CountBySector(ctx context.Context, sectorID string) (int, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `SELECT COUNT(*) FROM count_records WHERE sector_id = $1`

	var total int
	if err := r.DB.QueryRowContext(ctxTimeout, query, sectorID).Scan(&total); err != nil {
		r.logger.Error("Falha ao contar registros do setor.", err)
		return 0, errors.NewDBError("Falha ao contar registros do setor", err)
	}

	return total, nil
}

// PendingDivergenceCount conta os produtos com divergência pendente:
// exatamente um registro, marcado como divergente (ainda aguardando
// recontagem). Alimenta os impedimentos de fechamento do inventário.
func (r *CountRepository) PendingDivergenceCount(ctx context.Context, inventoryID string) (int, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `
        SELECT COUNT(*) FROM (
            SELECT product_id
            FROM count_records
            WHERE inventory_id = $1
            GROUP BY product_id
            HAVING COUNT(*) = 1 AND bool_and(divergent)
        ) pendentes`

	var total int
	if err := r.DB.QueryRowContext(ctxTimeout, query, inventoryID).Scan(&total); err != nil {
		r.logger.Error("Falha ao contar divergências pendentes.", err)
		return 0, errors.NewDBError("Falha ao contar divergências pendentes", err)
	}

	return total, nil
}

// --- Queries de agregação do snapshot ---
// O snapshot do stream é montado direto no banco: uma query por coleção do
// read-model, sempre cobrindo todos os setores (mesmo os sem contagem).

// SectorStats agrega os totais por setor do inventário.
func (r *CountRepository) SectorStats(ctx context.Context, inventoryID string) ([]domain.SectorStats, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `
        SELECT s.id, s.prefix, s.status, COUNT(c.id), COALESCE(SUM(c.quantity), 0), MAX(c.created_at)
        FROM sectors s
        LEFT JOIN count_records c ON c.sector_id = s.id
        WHERE s.inventory_id = $1
        GROUP BY s.id, s.prefix, s.status, s.range_start
        ORDER BY s.range_start`

	rows, err := r.DB.QueryContext(ctxTimeout, query, inventoryID)
	if err != nil {
		r.logger.Error("Falha ao agregar totais por setor.", err)
		return nil, errors.NewDBError("Falha ao agregar totais por setor", err)
	}
	defer rows.Close()

	var stats []domain.SectorStats
	for rows.Next() {
		var st domain.SectorStats
		var last sql.NullTime
		if err := rows.Scan(&st.SectorID, &st.Prefix, &st.Status, &st.TotalCounts, &st.TotalQuantity, &last); err != nil {
			return nil, errors.NewDBError("Falha ao ler totais do setor", err)
		}
		if last.Valid {
			t := last.Time
			st.LastCountAt = &t
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar totais por setor", err)
	}

	return stats, nil
}

// OperatorStats agrega os totais por operador, incluindo o setor atual
// (setor do registro mais recente de cada operador).
func (r *CountRepository) OperatorStats(ctx context.Context, inventoryID string) ([]domain.OperatorStats, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `
        SELECT o.id, o.name, o.email, COALESCE(o.avatar_url, ''), COUNT(c.id), COALESCE(SUM(c.quantity), 0), MAX(c.created_at)
        FROM operators o
        JOIN count_records c ON c.operator_id = o.id
        WHERE c.inventory_id = $1
        GROUP BY o.id, o.name, o.email, o.avatar_url
        ORDER BY o.name`

	rows, err := r.DB.QueryContext(ctxTimeout, query, inventoryID)
	if err != nil {
		r.logger.Error("Falha ao agregar totais por operador.", err)
		return nil, errors.NewDBError("Falha ao agregar totais por operador", err)
	}
	defer rows.Close()

	var stats []domain.OperatorStats
	for rows.Next() {
		var st domain.OperatorStats
		var last sql.NullTime
		if err := rows.Scan(&st.OperatorID, &st.Name, &st.Email, &st.AvatarURL, &st.TotalCounts, &st.TotalQuantity, &last); err != nil {
			return nil, errors.NewDBError("Falha ao ler totais do operador", err)
		}
		if last.Valid {
			t := last.Time
			st.LastCountAt = &t
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar totais por operador", err)
	}

	// Setor atual: DISTINCT ON pega o registro mais recente por operador.
	const currentQuery = `
        SELECT DISTINCT ON (operator_id) operator_id, sector_id
        FROM count_records
        WHERE inventory_id = $1
        ORDER BY operator_id, created_at DESC, id DESC`

	currentRows, err := r.DB.QueryContext(ctxTimeout, currentQuery, inventoryID)
	if err != nil {
		r.logger.Error("Falha ao resolver setor atual dos operadores.", err)
		return nil, errors.NewDBError("Falha ao resolver setor atual", err)
	}
	defer currentRows.Close()

	current := make(map[string]string)
	for currentRows.Next() {
		var operatorID, sectorID string
		if err := currentRows.Scan(&operatorID, &sectorID); err != nil {
			return nil, errors.NewDBError("Falha ao ler setor atual", err)
		}
		current[operatorID] = sectorID
	}
	if err := currentRows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar setor atual", err)
	}

	for i := range stats {
		stats[i].CurrentSectorID = current[stats[i].OperatorID]
	}

	return stats, nil
}

// TimelineBuckets agrega as contagens das últimas 24 horas por minuto.
func (r *CountRepository) TimelineBuckets(ctx context.Context, inventoryID string) ([]domain.TimelineBucket, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	const query = `
        SELECT date_trunc('minute', created_at) AS minute, COUNT(*), SUM(quantity)
        FROM count_records
        WHERE inventory_id = $1 AND created_at > now() - INTERVAL '24 hours'
        GROUP BY 1
        ORDER BY 1`

	rows, err := r.DB.QueryContext(ctxTimeout, query, inventoryID)
	if err != nil {
		r.logger.Error("Falha ao agregar a timeline.", err)
		return nil, errors.NewDBError("Falha ao agregar a timeline", err)
	}
	defer rows.Close()

	var buckets []domain.TimelineBucket
	for rows.Next() {
		var b domain.TimelineBucket
		if err := rows.Scan(&b.Minute, &b.Counts, &b.Quantity); err != nil {
			return nil, errors.NewDBError("Falha ao ler bucket da timeline", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar a timeline", err)
	}

	return buckets, nil
}
