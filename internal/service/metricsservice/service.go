package metricsservice

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gocontagem/internal/domain"
	apperror "gocontagem/internal/errors"
	"gocontagem/internal/pkg/cache"
	"gocontagem/internal/pkg/logger"
)

// ProductRepository define a leitura em massa do catálogo que o
// classificador espera.
type ProductRepository interface {
	FindAllByInventory(ctx context.Context, inventoryID string, filter domain.ProductFilter) ([]domain.Product, error)
}

// CountRepository define a leitura em massa do ledger que o classificador
// espera.
type CountRepository interface {
	FindAllByInventory(ctx context.Context, inventoryID string, filter domain.CountFilter) ([]domain.CountRecord, error)
}

const metricsCacheKey = "metrics:%s"

// Service é o classificador de divergências: computação batch, pull-based,
// sobre o histórico COMPLETO de produtos e contagens de um inventário.
// Roda sob demanda (carga inicial / refresh explícito), não continuamente;
// é read-only, então execuções concorrentes são seguras: o pior caso é um
// resultado transitoriamente desatualizado, aceito pelo contrato de
// consistência eventual.
type Service struct {
	products ProductRepository
	counts   CountRepository
	cache    cache.Client
	logger   logger.Logger

	pageSize      int
	costThreshold float64 // Custo unitário acima do qual uma ruptura crítica vira impacto crítico
	cacheTTL      time.Duration
}

// NewService cria e retorna uma nova instância do Classificador.
func NewService(products ProductRepository, counts CountRepository, cacheClient cache.Client, pageSize int, costThreshold float64, cacheTTL time.Duration, log logger.Logger) *Service {
	if pageSize <= 0 {
		pageSize = 500
	}
	if costThreshold <= 0 {
		costThreshold = 200
	}

	return &Service{
		products:      products,
		counts:        counts,
		cache:         cacheClient,
		logger:        log,
		pageSize:      pageSize,
		costThreshold: costThreshold,
		cacheTTL:      cacheTTL,
	}
}

// Compute produz as métricas agregadas do inventário. Com forceRefresh
// false, um payload recente em cache é devolvido direto; o refresh manual
// do dashboard passa forceRefresh true.
//
// Qualquer falha de fetch aborta a computação inteira e vira um erro
// retryable: resultados parciais nunca são emitidos.
func (s *Service) Compute(ctx context.Context, inventoryID string, forceRefresh bool) (domain.DivergenceMetrics, error) {
	key := fmt.Sprintf(metricsCacheKey, inventoryID)

	if !forceRefresh && s.cache != nil {
		if cached, err := s.cache.Get(ctx, key); err == nil {
			var metrics domain.DivergenceMetrics
			if json.Unmarshal([]byte(cached), &metrics) == nil {
				return metrics, nil
			}
		}
	}

	// 1. Fetch-all paginado do catálogo e do ledger: uma página nunca
	// pode ser assumida como o conjunto completo.
	products, err := s.fetchAllProducts(ctx, inventoryID)
	if err != nil {
		s.logger.Error("Classificador abortado: falha ao ler o catálogo.", err)
		return domain.DivergenceMetrics{}, apperror.NewInternalError("Falha ao ler o catálogo para classificação.", err)
	}

	records, err := s.fetchAllRecords(ctx, inventoryID)
	if err != nil {
		s.logger.Error("Classificador abortado: falha ao ler o ledger.", err)
		return domain.DivergenceMetrics{}, apperror.NewInternalError("Falha ao ler o ledger para classificação.", err)
	}

	metrics := s.classify(inventoryID, products, records)

	// Cache best-effort do payload (refresh manual repovoa).
	if s.cache != nil && s.cacheTTL > 0 {
		if data, marshalErr := json.Marshal(metrics); marshalErr == nil {
			if cacheErr := s.cache.Set(ctx, key, string(data), s.cacheTTL); cacheErr != nil {
				s.logger.Warn("Falha ao cachear payload de métricas.", map[string]interface{}{"inventory_id": inventoryID})
			}
		}
	}

	return metrics, nil
}

// classify agrega o ledger por produto e avalia os predicados por SKU.
// Os predicados são independentes e NÃO-exclusivos: um produto recontado
// com total igual ao saldo conta em `recounted` E em
// `skus_without_divergence` ao mesmo tempo.
func (s *Service) classify(inventoryID string, products []domain.Product, records []domain.CountRecord) domain.DivergenceMetrics {
	type productCounts struct {
		total       int  // Soma das quantidades de todos os registros (recontagens são ADITIVAS)
		records     int  // Quantos registros existem
		firstDiverg bool // Flag divergente do único registro (relevante com records == 1)
	}

	byProduct := make(map[string]*productCounts, len(products))
	for _, rec := range records {
		pc := byProduct[rec.ProductID]
		if pc == nil {
			pc = &productCounts{}
			byProduct[rec.ProductID] = pc
		}
		pc.total += rec.Quantity
		pc.records++
		if pc.records == 1 {
			pc.firstDiverg = rec.Divergent
		}
	}

	metrics := domain.DivergenceMetrics{
		InventoryID: inventoryID,
		GeneratedAt: time.Now().UTC(),
	}

	for _, rec := range records {
		metrics.TotalCounted += rec.Quantity
	}

	for _, p := range products {
		metrics.Estimate += p.Balance

		pc := byProduct[p.ID]
		if pc == nil {
			// Nenhum registro: SKU pendente de visita.
			metrics.PendingSkus++
			continue
		}

		if pc.total == p.Balance {
			metrics.SkusWithoutDivergence++
		}
		if pc.records == 1 && pc.firstDiverg {
			metrics.AwaitingRecount++
		}

		recounted := pc.records >= 2
		if recounted {
			metrics.Recounted++
			if pc.total != p.Balance {
				metrics.ConfirmedDivergence++
			}
		}

		// Ruptura crítica: havia saldo esperado, o produto FOI visitado
		// (>= 1 registro) e nada foi encontrado.
		criticalRupture := p.Balance > 0 && pc.total == 0
		if criticalRupture {
			metrics.CriticalRuptures++
			if p.UnitCost > s.costThreshold {
				metrics.CriticalImpact++
			}
		}

		// Entrada inesperada: saldo zero em sistema, mas algo foi contado.
		if p.Balance == 0 && pc.total > 0 {
			metrics.UnexpectedEntries++
		}
	}

	metrics.Difference = metrics.TotalCounted - metrics.Estimate

	s.logger.Info("Classificação de divergências concluída.", map[string]interface{}{
		"inventory_id":  inventoryID,
		"products":      len(products),
		"records":       len(records),
		"total_counted": metrics.TotalCounted,
	})

	return metrics
}

// fetchAllProducts itera o catálogo até receber uma página incompleta.
func (s *Service) fetchAllProducts(ctx context.Context, inventoryID string) ([]domain.Product, error) {
	var all []domain.Product
	for page := 1; ; page++ {
		batch, err := s.products.FindAllByInventory(ctx, inventoryID, domain.ProductFilter{Page: page, Limit: s.pageSize})
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < s.pageSize {
			return all, nil
		}
	}
}

// fetchAllRecords itera o ledger até receber uma página incompleta.
func (s *Service) fetchAllRecords(ctx context.Context, inventoryID string) ([]domain.CountRecord, error) {
	var all []domain.CountRecord
	for page := 1; ; page++ {
		batch, err := s.counts.FindAllByInventory(ctx, inventoryID, domain.CountFilter{Page: page, Limit: s.pageSize})
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < s.pageSize {
			return all, nil
		}
	}
}
