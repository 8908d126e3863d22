package countservice

import (
	"context"

	"github.com/google/uuid"

	"gocontagem/internal/domain"
	apperror "gocontagem/internal/errors"
	"gocontagem/internal/pkg/logger"
)

// ProductResolver define o contrato de resolução de produto que o Serviço
// de Contagem espera (barras ou interno, nunca os dois em paralelo).
type ProductResolver interface {
	FindByBarcode(ctx context.Context, inventoryID, barcode string) (domain.Product, error)
	FindByInternalCode(ctx context.Context, inventoryID, internalCode string) (domain.Product, error)
}

// CountLedger define o contrato append-only do ledger de contagens.
type CountLedger interface {
	Insert(ctx context.Context, record domain.CountRecord) (domain.CountRecord, error)
}

// OperatorResolver resolve o nome de exibição do operador para o evento do stream.
type OperatorResolver interface {
	FindByID(ctx context.Context, id string) (domain.Operator, error)
}

// Publisher define o contrato de publicação para o fan-out do stream.
type Publisher interface {
	Publish(inventoryID string, event domain.CountEvent)
}

// Service implementa o caminho de commit de contagem: resolve o produto,
// calcula a flag de divergência, grava o registro no ledger e publica o
// evento para os dashboards assinantes.
type Service struct {
	products  ProductResolver
	ledger    CountLedger
	operators OperatorResolver
	publisher Publisher
	logger    logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Contagem.
func NewService(products ProductResolver, ledger CountLedger, operators OperatorResolver, publisher Publisher, log logger.Logger) *Service {
	return &Service{
		products:  products,
		ledger:    ledger,
		operators: operators,
		publisher: publisher,
		logger:    log,
	}
}

// Commit grava exatamente UM novo registro de contagem. Nunca altera um
// registro anterior: recontagens são novos registros, e as quantidades de
// um mesmo produto são aditivas.
//
// A falha de resolução de produto é um erro local do cliente (NotFound) e
// não gera escrita no ledger.
func (s *Service) Commit(ctx context.Context, req domain.CountCommitRequest) (domain.CountRecord, error) {
	s.logger.Debug("Iniciando commit de contagem.", map[string]interface{}{
		"sector_id": req.SectorID,
		"code":      req.Code,
		"mode":      string(req.SearchMode),
		"quantity":  req.Quantity,
	})

	// 1. Validação de Regras de Negócio
	if req.Code == "" {
		return domain.CountRecord{}, apperror.NewValidationError("O código lido não pode ser vazio.")
	}
	// Zero é válido: registra "visitei e não encontrei nada", o que marca
	// uma ruptura no local em vez de deixar o produto como nunca visitado.
	if req.Quantity < 0 {
		return domain.CountRecord{}, apperror.NewValidationError("A quantidade contada não pode ser negativa.")
	}
	if req.SectorID == "" || req.InventoryID == "" {
		return domain.CountRecord{}, apperror.NewValidationError("Setor e inventário são obrigatórios.")
	}

	// 2. Resolução do produto conforme o modo de busca selecionado
	product, err := s.resolveProduct(ctx, req)
	if err != nil {
		return domain.CountRecord{}, err
	}

	// 3. Montagem do registro imutável.
	// A flag de divergência é POR REGISTRO: compara a quantidade deste
	// evento com o saldo esperado, não o total acumulado do produto.
	record := domain.CountRecord{
		ID:          uuid.New().String(),
		InventoryID: req.InventoryID,
		SectorID:    req.SectorID,
		ProductID:   product.ID,
		Quantity:    req.Quantity,
		Lot:         req.Lot,
		Expiry:      req.Expiry,
		Divergent:   req.Quantity != product.Balance,
		OperatorID:  req.OperatorID,
	}

	// 4. Append no ledger (timestamp atribuído pelo servidor)
	created, err := s.ledger.Insert(ctx, record)
	if err != nil {
		s.logger.Error("Falha ao gravar contagem no ledger.", err)
		return domain.CountRecord{}, err
	}

	// 5. Publicação para o stream (best-effort: a contagem já está
	// persistida; uma falha na resolução do nome não desfaz o commit).
	operatorName := ""
	if op, opErr := s.operators.FindByID(ctx, created.OperatorID); opErr == nil {
		operatorName = op.Name
	} else {
		s.logger.Warn("Não foi possível resolver o nome do operador para o evento.", map[string]interface{}{
			"operator_id": created.OperatorID,
		})
	}

	s.publisher.Publish(created.InventoryID, domain.CountEvent{
		Record:       created,
		OperatorName: operatorName,
	})

	s.logger.Info("Contagem registrada com sucesso.", map[string]interface{}{
		"record_id": created.ID,
		"sector_id": created.SectorID,
		"divergent": created.Divergent,
	})

	return created, nil
}

// resolveProduct aplica o modo de busca selecionado pelo operador.
func (s *Service) resolveProduct(ctx context.Context, req domain.CountCommitRequest) (domain.Product, error) {
	switch req.SearchMode {
	case domain.SearchByInternalCode:
		return s.products.FindByInternalCode(ctx, req.InventoryID, req.Code)
	case domain.SearchByBarcode, "":
		// Código de barras é o modo padrão do coletor.
		return s.products.FindByBarcode(ctx, req.InventoryID, req.Code)
	default:
		return domain.Product{}, apperror.NewValidationError("Modo de busca desconhecido.")
	}
}
