package metricsservice_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gocontagem/internal/domain"
	"gocontagem/internal/pkg/logger"
	"gocontagem/internal/service/metricsservice"
)

// MockProductRepository é uma implementação mock da interface ProductRepository.
type MockProductRepository struct {
	mock.Mock
}

func (m *MockProductRepository) FindAllByInventory(ctx context.Context, inventoryID string, filter domain.ProductFilter) ([]domain.Product, error) {
	args := m.Called(ctx, inventoryID, filter)
	return args.Get(0).([]domain.Product), args.Error(1)
}

// MockCountRepository é uma implementação mock da interface CountRepository.
type MockCountRepository struct {
	mock.Mock
}

func (m *MockCountRepository) FindAllByInventory(ctx context.Context, inventoryID string, filter domain.CountFilter) ([]domain.CountRecord, error) {
	args := m.Called(ctx, inventoryID, filter)
	return args.Get(0).([]domain.CountRecord), args.Error(1)
}

// newTestService monta o classificador sem cache (o cache é acelerador,
// não parte da semântica).
func newTestService(products *MockProductRepository, counts *MockCountRepository, costThreshold float64) *metricsservice.Service {
	return metricsservice.NewService(products, counts, nil, 500, costThreshold, 0, logger.NewLogger("error"))
}

// singlePage configura os mocks para devolver tudo em uma página só.
func singlePage(products *MockProductRepository, counts *MockCountRepository, inventoryID string, ps []domain.Product, rs []domain.CountRecord) {
	products.On("FindAllByInventory", mock.AnythingOfType("context.backgroundCtx"), inventoryID, mock.AnythingOfType("domain.ProductFilter")).
		Return(ps, nil)
	counts.On("FindAllByInventory", mock.AnythingOfType("context.backgroundCtx"), inventoryID, mock.AnythingOfType("domain.CountFilter")).
		Return(rs, nil)
}

func record(productID string, quantity int, divergent bool) domain.CountRecord {
	return domain.CountRecord{
		ID:         uuid.New().String(),
		ProductID:  productID,
		Quantity:   quantity,
		Divergent:  divergent,
		OperatorID: uuid.New().String(),
		CreatedAt:  time.Now(),
	}
}

// TestCompute_AdditiveRecountResolvesDivergence testa a semântica aditiva
// da recontagem: saldo 10, primeira contagem 7 (divergente), recontagem +3
// leva o total a 10: o produto conta em `recounted` E em
// `skus_without_divergence` ao mesmo tempo.
func TestCompute_AdditiveRecountResolvesDivergence(t *testing.T) {
	mockProducts := new(MockProductRepository)
	mockCounts := new(MockCountRepository)
	svc := newTestService(mockProducts, mockCounts, 200)

	inventoryID := uuid.New().String()
	productID := uuid.New().String()
	singlePage(mockProducts, mockCounts, inventoryID,
		[]domain.Product{{ID: productID, InventoryID: inventoryID, Balance: 10, UnitCost: 15.50}},
		[]domain.CountRecord{
			record(productID, 7, true), // primeira passada: 7 != 10
			record(productID, 3, true), // recontagem ADITIVA: 7 + 3 = 10
		})

	metrics, err := svc.Compute(context.Background(), inventoryID, true)

	assert.NoError(t, err)
	assert.Equal(t, 10, metrics.Estimate)
	assert.Equal(t, 10, metrics.TotalCounted)
	assert.Equal(t, 0, metrics.Difference)
	assert.Equal(t, 1, metrics.Recounted)
	assert.Equal(t, 1, metrics.SkusWithoutDivergence) // predicados não-exclusivos
	assert.Equal(t, 0, metrics.AwaitingRecount)       // só com exatamente 1 registro
	assert.Equal(t, 0, metrics.ConfirmedDivergence)
}

// TestCompute_AwaitingRecount testa o SKU com uma única contagem divergente.
func TestCompute_AwaitingRecount(t *testing.T) {
	mockProducts := new(MockProductRepository)
	mockCounts := new(MockCountRepository)
	svc := newTestService(mockProducts, mockCounts, 200)

	inventoryID := uuid.New().String()
	productID := uuid.New().String()
	singlePage(mockProducts, mockCounts, inventoryID,
		[]domain.Product{{ID: productID, InventoryID: inventoryID, Balance: 10}},
		[]domain.CountRecord{record(productID, 7, true)})

	metrics, err := svc.Compute(context.Background(), inventoryID, true)

	assert.NoError(t, err)
	assert.Equal(t, 1, metrics.AwaitingRecount)
	assert.Equal(t, 0, metrics.Recounted)
	assert.Equal(t, 0, metrics.SkusWithoutDivergence)
	assert.Equal(t, -3, metrics.Difference)
}

// TestCompute_ConfirmedDivergence testa a divergência confirmada por
// recontagem que ainda não bate com o saldo.
func TestCompute_ConfirmedDivergence(t *testing.T) {
	mockProducts := new(MockProductRepository)
	mockCounts := new(MockCountRepository)
	svc := newTestService(mockProducts, mockCounts, 200)

	inventoryID := uuid.New().String()
	productID := uuid.New().String()
	singlePage(mockProducts, mockCounts, inventoryID,
		[]domain.Product{{ID: productID, InventoryID: inventoryID, Balance: 10}},
		[]domain.CountRecord{
			record(productID, 7, true),
			record(productID, 1, true), // total 8, ainda != 10
		})

	metrics, err := svc.Compute(context.Background(), inventoryID, true)

	assert.NoError(t, err)
	assert.Equal(t, 1, metrics.Recounted)
	assert.Equal(t, 1, metrics.ConfirmedDivergence)
	assert.Equal(t, 0, metrics.SkusWithoutDivergence)
}

// TestCompute_RupturesEntriesAndPending testa os predicados de ruptura
// crítica (com e sem impacto de custo), entrada inesperada e SKU pendente.
func TestCompute_RupturesEntriesAndPending(t *testing.T) {
	mockProducts := new(MockProductRepository)
	mockCounts := new(MockCountRepository)
	svc := newTestService(mockProducts, mockCounts, 200)

	inventoryID := uuid.New().String()
	ruptureCheap := uuid.New().String()  // saldo 5, visitado, nada achado, custo baixo
	ruptureCostly := uuid.New().String() // idem, custo acima do limiar
	unexpected := uuid.New().String()    // saldo 0, mas 4 unidades contadas
	pending := uuid.New().String()       // nunca visitado

	singlePage(mockProducts, mockCounts, inventoryID,
		[]domain.Product{
			{ID: ruptureCheap, InventoryID: inventoryID, Balance: 5, UnitCost: 12},
			{ID: ruptureCostly, InventoryID: inventoryID, Balance: 3, UnitCost: 890.90},
			{ID: unexpected, InventoryID: inventoryID, Balance: 0, UnitCost: 30},
			{ID: pending, InventoryID: inventoryID, Balance: 8, UnitCost: 55},
		},
		[]domain.CountRecord{
			record(ruptureCheap, 0, true),
			record(ruptureCostly, 0, true),
			record(unexpected, 4, true),
		})

	metrics, err := svc.Compute(context.Background(), inventoryID, true)

	assert.NoError(t, err)
	assert.Equal(t, 2, metrics.CriticalRuptures)
	assert.Equal(t, 1, metrics.CriticalImpact) // só o SKU acima do limiar de custo
	assert.Equal(t, 1, metrics.UnexpectedEntries)
	assert.Equal(t, 1, metrics.PendingSkus) // pendente NÃO é ruptura: nunca foi visitado
	assert.Equal(t, 16, metrics.Estimate)   // 5 + 3 + 0 + 8
	assert.Equal(t, 4, metrics.TotalCounted)
	assert.Equal(t, -12, metrics.Difference)
}

// TestCompute_PaginatedFetchAll testa que o classificador consome TODAS as
// páginas antes de classificar.
func TestCompute_PaginatedFetchAll(t *testing.T) {
	mockProducts := new(MockProductRepository)
	mockCounts := new(MockCountRepository)
	svc := metricsservice.NewService(mockProducts, mockCounts, nil, 2, 200, 0, logger.NewLogger("error"))

	inventoryID := uuid.New().String()
	p1 := uuid.New().String()
	p2 := uuid.New().String()
	p3 := uuid.New().String()

	// Catálogo em duas páginas: 2 + 1.
	mockProducts.On("FindAllByInventory", mock.AnythingOfType("context.backgroundCtx"), inventoryID, domain.ProductFilter{Page: 1, Limit: 2}).
		Return([]domain.Product{
			{ID: p1, InventoryID: inventoryID, Balance: 1},
			{ID: p2, InventoryID: inventoryID, Balance: 1},
		}, nil)
	mockProducts.On("FindAllByInventory", mock.AnythingOfType("context.backgroundCtx"), inventoryID, domain.ProductFilter{Page: 2, Limit: 2}).
		Return([]domain.Product{
			{ID: p3, InventoryID: inventoryID, Balance: 1},
		}, nil)

	// Ledger em duas páginas: 2 + 1.
	mockCounts.On("FindAllByInventory", mock.AnythingOfType("context.backgroundCtx"), inventoryID, domain.CountFilter{Page: 1, Limit: 2}).
		Return([]domain.CountRecord{record(p1, 1, false), record(p2, 1, false)}, nil)
	mockCounts.On("FindAllByInventory", mock.AnythingOfType("context.backgroundCtx"), inventoryID, domain.CountFilter{Page: 2, Limit: 2}).
		Return([]domain.CountRecord{record(p3, 1, false)}, nil)

	metrics, err := svc.Compute(context.Background(), inventoryID, true)

	assert.NoError(t, err)
	assert.Equal(t, 3, metrics.Estimate)
	assert.Equal(t, 3, metrics.TotalCounted)
	assert.Equal(t, 3, metrics.SkusWithoutDivergence)
	assert.Equal(t, 0, metrics.PendingSkus)
	mockProducts.AssertExpectations(t)
	mockCounts.AssertExpectations(t)
}

// TestCompute_FetchFailureAborts testa que falha de leitura aborta a
// computação inteira: nada de resultado parcial.
func TestCompute_FetchFailureAborts(t *testing.T) {
	mockProducts := new(MockProductRepository)
	mockCounts := new(MockCountRepository)
	svc := newTestService(mockProducts, mockCounts, 200)

	inventoryID := uuid.New().String()
	mockProducts.On("FindAllByInventory", mock.AnythingOfType("context.backgroundCtx"), inventoryID, mock.AnythingOfType("domain.ProductFilter")).
		Return([]domain.Product(nil), assert.AnError)

	_, err := svc.Compute(context.Background(), inventoryID, true)

	assert.Error(t, err)
	mockCounts.AssertNotCalled(t, "FindAllByInventory", mock.Anything, mock.Anything, mock.Anything)
}
