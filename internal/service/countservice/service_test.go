package countservice_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"gocontagem/internal/domain"
	apperror "gocontagem/internal/errors"
	"gocontagem/internal/pkg/logger"
	"gocontagem/internal/service/countservice"
)

// MockProductResolver é uma implementação mock da interface ProductResolver.
type MockProductResolver struct {
	mock.Mock
}

func (m *MockProductResolver) FindByBarcode(ctx context.Context, inventoryID, barcode string) (domain.Product, error) {
	args := m.Called(ctx, inventoryID, barcode)
	return args.Get(0).(domain.Product), args.Error(1)
}

func (m *MockProductResolver) FindByInternalCode(ctx context.Context, inventoryID, internalCode string) (domain.Product, error) {
	args := m.Called(ctx, inventoryID, internalCode)
	return args.Get(0).(domain.Product), args.Error(1)
}

// MockCountLedger é uma implementação mock da interface CountLedger.
type MockCountLedger struct {
	mock.Mock
}

func (m *MockCountLedger) Insert(ctx context.Context, record domain.CountRecord) (domain.CountRecord, error) {
	args := m.Called(ctx, record)
	return args.Get(0).(domain.CountRecord), args.Error(1)
}

// MockOperatorResolver é uma implementação mock da interface OperatorResolver.
type MockOperatorResolver struct {
	mock.Mock
}

func (m *MockOperatorResolver) FindByID(ctx context.Context, id string) (domain.Operator, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(domain.Operator), args.Error(1)
}

// MockPublisher é uma implementação mock da interface Publisher.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(inventoryID string, event domain.CountEvent) {
	m.Called(inventoryID, event)
}

func newTestService() (*countservice.Service, *MockProductResolver, *MockCountLedger, *MockOperatorResolver, *MockPublisher) {
	mockProducts := new(MockProductResolver)
	mockLedger := new(MockCountLedger)
	mockOperators := new(MockOperatorResolver)
	mockPublisher := new(MockPublisher)
	svc := countservice.NewService(mockProducts, mockLedger, mockOperators, mockPublisher, logger.NewLogger("error"))
	return svc, mockProducts, mockLedger, mockOperators, mockPublisher
}

func validRequest(inventoryID, operatorID string) domain.CountCommitRequest {
	return domain.CountCommitRequest{
		InventoryID: inventoryID,
		SectorID:    uuid.New().String(),
		Code:        "7891234567890",
		SearchMode:  domain.SearchByBarcode,
		Quantity:    7,
		OperatorID:  operatorID,
	}
}

// TestCommit_Success_DivergentFlag testa o commit com a flag de divergência
// POR REGISTRO: quantidade 7 contra saldo 10 marca divergente.
func TestCommit_Success_DivergentFlag(t *testing.T) {
	svc, mockProducts, mockLedger, mockOperators, mockPublisher := newTestService()

	inventoryID := uuid.New().String()
	operatorID := uuid.New().String()
	req := validRequest(inventoryID, operatorID)

	product := domain.Product{ID: uuid.New().String(), InventoryID: inventoryID, Barcode: req.Code, Balance: 10}
	mockProducts.On("FindByBarcode", mock.AnythingOfType("context.backgroundCtx"), inventoryID, req.Code).
		Return(product, nil)

	mockLedger.On("Insert", mock.AnythingOfType("context.backgroundCtx"), mock.MatchedBy(func(rec domain.CountRecord) bool {
		return rec.ProductID == product.ID && rec.Quantity == 7 && rec.Divergent && rec.ID != ""
	})).Return(domain.CountRecord{
		ID:          uuid.New().String(),
		InventoryID: inventoryID,
		SectorID:    req.SectorID,
		ProductID:   product.ID,
		Quantity:    7,
		Divergent:   true,
		OperatorID:  operatorID,
		CreatedAt:   time.Now(), // timestamp atribuído pelo servidor
	}, nil)

	mockOperators.On("FindByID", mock.AnythingOfType("context.backgroundCtx"), operatorID).
		Return(domain.Operator{ID: operatorID, Name: "Maria"}, nil)
	mockPublisher.On("Publish", inventoryID, mock.MatchedBy(func(ev domain.CountEvent) bool {
		return ev.OperatorName == "Maria" && ev.Record.Divergent
	})).Return()

	created, err := svc.Commit(context.Background(), req)

	assert.NoError(t, err)
	assert.True(t, created.Divergent)
	assert.NotZero(t, created.CreatedAt)
	mockLedger.AssertExpectations(t)
	mockPublisher.AssertExpectations(t)
}

// TestCommit_Success_MatchingQuantity testa que quantidade igual ao saldo
// não marca divergência.
func TestCommit_Success_MatchingQuantity(t *testing.T) {
	svc, mockProducts, mockLedger, mockOperators, mockPublisher := newTestService()

	inventoryID := uuid.New().String()
	operatorID := uuid.New().String()
	req := validRequest(inventoryID, operatorID)
	req.Quantity = 10

	product := domain.Product{ID: uuid.New().String(), InventoryID: inventoryID, Barcode: req.Code, Balance: 10}
	mockProducts.On("FindByBarcode", mock.AnythingOfType("context.backgroundCtx"), inventoryID, req.Code).
		Return(product, nil)
	mockLedger.On("Insert", mock.AnythingOfType("context.backgroundCtx"), mock.MatchedBy(func(rec domain.CountRecord) bool {
		return !rec.Divergent
	})).Return(domain.CountRecord{ID: uuid.New().String(), InventoryID: inventoryID, Quantity: 10, OperatorID: operatorID}, nil)
	mockOperators.On("FindByID", mock.AnythingOfType("context.backgroundCtx"), operatorID).
		Return(domain.Operator{ID: operatorID, Name: "Maria"}, nil)
	mockPublisher.On("Publish", inventoryID, mock.AnythingOfType("domain.CountEvent")).Return()

	created, err := svc.Commit(context.Background(), req)

	assert.NoError(t, err)
	assert.False(t, created.Divergent)
}

// TestCommit_ZeroQuantityRecordsRupture testa que quantidade zero é um
// commit válido: o registro "visitei e não encontrei nada" entra no ledger
// marcado como divergente quando há saldo esperado.
func TestCommit_ZeroQuantityRecordsRupture(t *testing.T) {
	svc, mockProducts, mockLedger, mockOperators, mockPublisher := newTestService()

	inventoryID := uuid.New().String()
	operatorID := uuid.New().String()
	req := validRequest(inventoryID, operatorID)
	req.Quantity = 0

	product := domain.Product{ID: uuid.New().String(), InventoryID: inventoryID, Barcode: req.Code, Balance: 4}
	mockProducts.On("FindByBarcode", mock.AnythingOfType("context.backgroundCtx"), inventoryID, req.Code).
		Return(product, nil)
	mockLedger.On("Insert", mock.AnythingOfType("context.backgroundCtx"), mock.MatchedBy(func(rec domain.CountRecord) bool {
		return rec.ProductID == product.ID && rec.Quantity == 0 && rec.Divergent
	})).Return(domain.CountRecord{ID: uuid.New().String(), InventoryID: inventoryID, Quantity: 0, Divergent: true, OperatorID: operatorID}, nil)
	mockOperators.On("FindByID", mock.AnythingOfType("context.backgroundCtx"), operatorID).
		Return(domain.Operator{ID: operatorID, Name: "Maria"}, nil)
	mockPublisher.On("Publish", inventoryID, mock.AnythingOfType("domain.CountEvent")).Return()

	created, err := svc.Commit(context.Background(), req)

	assert.NoError(t, err)
	assert.Equal(t, 0, created.Quantity)
	assert.True(t, created.Divergent)
	mockLedger.AssertExpectations(t)
}

// TestCommit_InternalCodeMode testa a resolução pelo código interno.
func TestCommit_InternalCodeMode(t *testing.T) {
	svc, mockProducts, mockLedger, mockOperators, mockPublisher := newTestService()

	inventoryID := uuid.New().String()
	operatorID := uuid.New().String()
	req := validRequest(inventoryID, operatorID)
	req.Code = "SKU-42"
	req.SearchMode = domain.SearchByInternalCode

	product := domain.Product{ID: uuid.New().String(), InventoryID: inventoryID, InternalCode: "SKU-42", Balance: 7}
	mockProducts.On("FindByInternalCode", mock.AnythingOfType("context.backgroundCtx"), inventoryID, "SKU-42").
		Return(product, nil)
	mockLedger.On("Insert", mock.AnythingOfType("context.backgroundCtx"), mock.AnythingOfType("domain.CountRecord")).
		Return(domain.CountRecord{ID: uuid.New().String(), InventoryID: inventoryID, OperatorID: operatorID}, nil)
	mockOperators.On("FindByID", mock.AnythingOfType("context.backgroundCtx"), operatorID).
		Return(domain.Operator{ID: operatorID, Name: "Maria"}, nil)
	mockPublisher.On("Publish", inventoryID, mock.AnythingOfType("domain.CountEvent")).Return()

	_, err := svc.Commit(context.Background(), req)

	assert.NoError(t, err)
	mockProducts.AssertNotCalled(t, "FindByBarcode", mock.Anything, mock.Anything, mock.Anything)
}

// TestCommit_Fail_ProductNotFound testa que produto não resolvido não gera
// escrita no ledger.
func TestCommit_Fail_ProductNotFound(t *testing.T) {
	svc, mockProducts, mockLedger, _, mockPublisher := newTestService()

	inventoryID := uuid.New().String()
	req := validRequest(inventoryID, uuid.New().String())

	mockProducts.On("FindByBarcode", mock.AnythingOfType("context.backgroundCtx"), inventoryID, req.Code).
		Return(domain.Product{}, apperror.NewNotFoundError("Produto não encontrado."))

	_, err := svc.Commit(context.Background(), req)

	assert.Error(t, err)
	assert.IsType(t, &apperror.NotFoundError{}, err)
	mockLedger.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	mockPublisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

// TestCommit_Fail_Validation testa as validações de entrada.
func TestCommit_Fail_Validation(t *testing.T) {
	svc, mockProducts, _, _, _ := newTestService()

	inventoryID := uuid.New().String()

	// Quantidade negativa.
	req := validRequest(inventoryID, uuid.New().String())
	req.Quantity = -3
	_, err := svc.Commit(context.Background(), req)
	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)

	// Código vazio.
	req = validRequest(inventoryID, uuid.New().String())
	req.Code = ""
	_, err = svc.Commit(context.Background(), req)
	assert.Error(t, err)
	assert.IsType(t, &apperror.ValidationError{}, err)

	mockProducts.AssertNotCalled(t, "FindByBarcode", mock.Anything, mock.Anything, mock.Anything)
}

// TestCommit_PublishesEvenWithoutOperatorName testa que a falha na
// resolução do nome do operador não desfaz o commit: o evento sai com o
// nome vazio.
func TestCommit_PublishesEvenWithoutOperatorName(t *testing.T) {
	svc, mockProducts, mockLedger, mockOperators, mockPublisher := newTestService()

	inventoryID := uuid.New().String()
	operatorID := uuid.New().String()
	req := validRequest(inventoryID, operatorID)

	product := domain.Product{ID: uuid.New().String(), InventoryID: inventoryID, Barcode: req.Code, Balance: 7}
	mockProducts.On("FindByBarcode", mock.AnythingOfType("context.backgroundCtx"), inventoryID, req.Code).
		Return(product, nil)
	mockLedger.On("Insert", mock.AnythingOfType("context.backgroundCtx"), mock.AnythingOfType("domain.CountRecord")).
		Return(domain.CountRecord{ID: uuid.New().String(), InventoryID: inventoryID, OperatorID: operatorID}, nil)
	mockOperators.On("FindByID", mock.AnythingOfType("context.backgroundCtx"), operatorID).
		Return(domain.Operator{}, apperror.NewNotFoundError("Operador não encontrado."))
	mockPublisher.On("Publish", inventoryID, mock.MatchedBy(func(ev domain.CountEvent) bool {
		return ev.OperatorName == ""
	})).Return()

	created, err := svc.Commit(context.Background(), req)

	assert.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	mockPublisher.AssertExpectations(t)
}
