package productrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"gocontagem/internal/domain"
	"gocontagem/internal/errors"
	"gocontagem/internal/pkg/cache"
	"gocontagem/internal/pkg/logger"
)

// Chaves de cache por modo de busca. O lookup de produto é o hot path do
// loop de scan do coletor, por isso usa Cache-Aside no Redis.
const (
	barcodeCacheKey  = "product:barcode:%s:%s"  // inventário + código de barras
	internalCacheKey = "product:internal:%s:%s" // inventário + código interno
)

const productCacheTTL = 10 * time.Minute

// ProductRepository é o acesso ao catálogo de produtos de um inventário.
// O catálogo é read-mostly para este core: carga acontece fora (importador).
type ProductRepository struct {
	DB        *sql.DB
	Cache     cache.Client
	DBTimeout time.Duration
	logger    logger.Logger
}

// NewProductRepository cria e retorna uma nova instância do Repositório.
func NewProductRepository(db *sql.DB, cacheClient cache.Client, dbTimeout time.Duration, logger logger.Logger) *ProductRepository {
	return &ProductRepository{
		DB:        db,
		Cache:     cacheClient,
		DBTimeout: dbTimeout,
		logger:    logger,
	}
}

const selectColumns = `id, inventory_id, barcode, internal_code, description, balance, unit_cost, requires_lot, created_at, updated_at`

// FindByBarcode resolve um produto pelo código de barras dentro do
// inventário, com estratégia Cache-Aside.
func (r *ProductRepository) FindByBarcode(ctx context.Context, inventoryID, barcode string) (domain.Product, error) {
	key := fmt.Sprintf(barcodeCacheKey, inventoryID, barcode)
	query := fmt.Sprintf(`SELECT %s FROM products WHERE inventory_id = $1 AND barcode = $2`, selectColumns)
	return r.findOneCached(ctx, key, query, inventoryID, barcode)
}

// FindByInternalCode resolve um produto pelo código interno dentro do
// inventário, com estratégia Cache-Aside.
func (r *ProductRepository) FindByInternalCode(ctx context.Context, inventoryID, internalCode string) (domain.Product, error) {
	key := fmt.Sprintf(internalCacheKey, inventoryID, internalCode)
	query := fmt.Sprintf(`SELECT %s FROM products WHERE inventory_id = $1 AND internal_code = $2`, selectColumns)
	return r.findOneCached(ctx, key, query, inventoryID, internalCode)
}

// findOneCached implementa o padrão Cache-Aside: tenta o Redis, cai para o
// Postgres no miss e repovoa o cache em caso de sucesso. Falha de cache
// nunca falha a busca: apenas degrada para o banco.
func (r *ProductRepository) findOneCached(ctx context.Context, key, query string, args ...interface{}) (domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	var product domain.Product

	// 1. Tentar obter do Cache (Redis)
	cachedData, err := r.Cache.Get(ctxTimeout, key)
	if err == nil {
		if json.Unmarshal([]byte(cachedData), &product) == nil {
			// Cache HIT
			return product, nil
		}
	} else if err != cache.ErrCacheMiss {
		r.logger.Warn("Falha no cache de produto, caindo para o banco.", map[string]interface{}{"key": key})
	}

	// 2. Cache MISS: buscar no banco
	err = r.DB.QueryRowContext(ctxTimeout, query, args...).Scan(
		&product.ID, &product.InventoryID, &product.Barcode, &product.InternalCode,
		&product.Description, &product.Balance, &product.UnitCost, &product.RequiresLot,
		&product.CreatedAt, &product.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return domain.Product{}, errors.NewNotFoundError("Produto não encontrado para o código informado.")
	}
	if err != nil {
		r.logger.Error("Falha ao buscar produto no DB.", err)
		return domain.Product{}, errors.NewDBError("Falha ao buscar produto", err)
	}

	// 3. Repovoar o cache (best-effort)
	if data, marshalErr := json.Marshal(product); marshalErr == nil {
		if cacheErr := r.Cache.Set(ctxTimeout, key, string(data), productCacheTTL); cacheErr != nil {
			r.logger.Warn("Falha ao repovoar cache de produto.", map[string]interface{}{"key": key})
		}
	}

	return product, nil
}

// FindAllByInventory lê uma página do catálogo do inventário, em ordem
// estável. Usado pelo classificador de divergências, que itera até a
// página vir incompleta.
func (r *ProductRepository) FindAllByInventory(ctx context.Context, inventoryID string, filter domain.ProductFilter) ([]domain.Product, error) {
	ctxTimeout, cancel := context.WithTimeout(ctx, r.DBTimeout)
	defer cancel()

	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	offset := (filter.Page - 1) * filter.Limit

	query := fmt.Sprintf(`
        SELECT %s FROM products
        WHERE inventory_id = $1
        ORDER BY internal_code, id
        LIMIT $2 OFFSET $3`, selectColumns)

	rows, err := r.DB.QueryContext(ctxTimeout, query, inventoryID, filter.Limit, offset)
	if err != nil {
		r.logger.Error("Falha ao ler página do catálogo.", err)
		return nil, errors.NewDBError("Falha ao ler o catálogo de produtos", err)
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID, &p.InventoryID, &p.Barcode, &p.InternalCode,
			&p.Description, &p.Balance, &p.UnitCost, &p.RequiresLot,
			&p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, errors.NewDBError("Falha ao ler produto do catálogo", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDBError("Falha ao iterar o catálogo de produtos", err)
	}

	return products, nil
}
