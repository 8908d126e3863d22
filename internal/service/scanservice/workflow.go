package scanservice

import (
	"context"
	"strconv"
	"time"

	"gocontagem/internal/domain"
	apperror "gocontagem/internal/errors"
	"gocontagem/internal/pkg/logger"
)

// State enumera os estados do fluxo de contagem de um coletor.
type State string

const (
	StateSectorSelection State = "selecao_setor"        // Aguardando leitura de código de setor
	StateSectorOpen      State = "setor_aberto"         // Loop de leitura de produtos
	StateAwaitingExtra   State = "aguardando_extra"     // Re-prompt de quantidade/lote antes do commit
	StateConfirmClose    State = "confirmar_fechamento" // Aguardando confirmação do operador
)

// ExtraKind nomeia o dado extra pendente de um commit.
type ExtraKind string

const (
	ExtraQuantity ExtraKind = "quantidade"
	ExtraLot      ExtraKind = "lote"
)

// Extra é o dado complementar fornecido pelo operador no re-prompt.
type Extra struct {
	Quantity int
	Lot      string
	Expiry   *time.Time
}

// SubmitResult é o resultado do contrato de submit do loop de produtos:
// ou a leitura foi absorvida pelo debounce, ou virou um registro commitado,
// ou exige um dado extra antes do commit. Erros de resolução são soft e
// aparecem apenas em ErrorMessage().
type SubmitResult struct {
	Absorbed   bool
	Committed  *domain.CountRecord
	NeedsExtra ExtraKind
	Product    *domain.Product
}

// Clock abstrai o relógio monotônico do debounce, para permitir testes
// determinísticos.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// SectorResolver define o contrato de resolução e transição de setor.
type SectorResolver interface {
	ResolveByCode(ctx context.Context, inventoryID string, code int64) (domain.Sector, error)
	UpdateStatus(ctx context.Context, sectorID string, from, to domain.SectorStatus) error
}

// ProductResolver define o contrato de resolução de produto por código.
type ProductResolver interface {
	FindByBarcode(ctx context.Context, inventoryID, barcode string) (domain.Product, error)
	FindByInternalCode(ctx context.Context, inventoryID, internalCode string) (domain.Product, error)
}

// Committer define o contrato de commit no ledger (countservice).
type Committer interface {
	Commit(ctx context.Context, req domain.CountCommitRequest) (domain.CountRecord, error)
}

// SectorCloser define o contrato de fechamento gated de setor (sectorservice).
type SectorCloser interface {
	Close(ctx context.Context, sectorID string) error
}

// Config agrupa os parâmetros de tempo do fluxo.
type Config struct {
	SectorDebounce  time.Duration // Intervalo mínimo entre leituras de setor (~350ms)
	ProductDebounce time.Duration // Intervalo mínimo entre leituras de produto (~100ms)
	SoftErrorTTL    time.Duration // Tempo de exibição dos erros transitórios (~3s)
	Clock           Clock
}

// Workflow é a máquina de estados de UM coletor: transforma códigos lidos
// em registros de contagem commitados.
//
// O fluxo é single-threaded por dispositivo (cooperativo, sem lock). Vários
// coletores podem contar o MESMO setor ao mesmo tempo: o fluxo não sabe da
// existência dos outros: o ledger é o único ponto de serialização.
type Workflow struct {
	inventory  domain.Inventory
	operatorID string

	sectors   SectorResolver
	products  ProductResolver
	committer Committer
	closer    SectorCloser
	logger    logger.Logger

	cfg   Config
	clock Clock

	state         State
	currentSector *domain.Sector

	// Toggles do operador
	searchMode   domain.SearchMode
	multipleMode bool // Quantidade explícita a cada leitura (padrão: 1 por leitura)
	lotCapture   bool // Captura de lote/validade (só se o inventário permitir)

	// Debounce por canal de entrada (relógio monotônico)
	lastSectorScan  time.Time
	lastProductScan time.Time

	// Erro transitório auto-expirável
	softErr      string
	softErrUntil time.Time

	// Commit pendente de dado extra
	pendingProduct  *domain.Product
	pendingQuantity int
	pendingExtra    ExtraKind
}

// NewWorkflow cria o fluxo de contagem de um coletor para um inventário.
func NewWorkflow(inventory domain.Inventory, operatorID string, sectors SectorResolver, products ProductResolver, committer Committer, closer SectorCloser, cfg Config, log logger.Logger) *Workflow {
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	if cfg.SectorDebounce <= 0 {
		cfg.SectorDebounce = 350 * time.Millisecond
	}
	if cfg.ProductDebounce <= 0 {
		cfg.ProductDebounce = 100 * time.Millisecond
	}
	if cfg.SoftErrorTTL <= 0 {
		cfg.SoftErrorTTL = 3 * time.Second
	}

	return &Workflow{
		inventory:  inventory,
		operatorID: operatorID,
		sectors:    sectors,
		products:   products,
		committer:  committer,
		closer:     closer,
		logger:     log,
		cfg:        cfg,
		clock:      cfg.Clock,
		state:      StateSectorSelection,
		searchMode: domain.SearchByBarcode,
	}
}

// State devolve o estado atual do fluxo.
func (w *Workflow) State() State { return w.state }

// CurrentSector devolve o setor aberto, ou nil.
func (w *Workflow) CurrentSector() *domain.Sector { return w.currentSector }

// ErrorMessage devolve a mensagem de erro transitória ainda visível, ou
// vazio se já expirou. Erros de leitura nunca abortam a sessão.
func (w *Workflow) ErrorMessage() string {
	if w.clock.Now().Before(w.softErrUntil) {
		return w.softErr
	}
	return ""
}

// SetSearchMode troca o modo de resolução de produto (barras ou interno).
func (w *Workflow) SetSearchMode(mode domain.SearchMode) {
	w.searchMode = mode
}

// SetMultipleMode liga/desliga o modo múltiplo (quantidade explícita a cada
// leitura).
func (w *Workflow) SetMultipleMode(enabled bool) {
	w.multipleMode = enabled
}

// SetLotCapture liga/desliga a captura de lote/validade. Só é permitido se
// o inventário habilitar o prompt.
func (w *Workflow) SetLotCapture(enabled bool) error {
	if enabled && !w.inventory.AllowsLot {
		return apperror.NewValidationError("Este inventário não permite captura de lote.")
	}
	w.lotCapture = enabled
	return nil
}

// --- Seleção de setor ---

// SubmitSectorCode processa um código de setor lido. Devolve o setor aberto
// em caso de sucesso; nil quando a leitura foi absorvida pelo debounce ou
// gerou um erro transitório (consultável em ErrorMessage). Erro duro apenas
// para uso fora de estado.
func (w *Workflow) SubmitSectorCode(ctx context.Context, raw string) (*domain.Sector, error) {
	if w.state != StateSectorSelection {
		return nil, apperror.NewConflictError("Leitura de setor fora do estado de seleção.")
	}

	// Debounce: leitores de hardware disparam a mesma leitura em rajada.
	now := w.clock.Now()
	if !w.lastSectorScan.IsZero() && now.Sub(w.lastSectorScan) < w.cfg.SectorDebounce {
		return nil, nil
	}
	w.lastSectorScan = now

	code, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		w.setSoftError("Código de setor inválido.")
		return nil, nil
	}

	sector, err := w.sectors.ResolveByCode(ctx, w.inventory.ID, code)
	if err != nil {
		// Nenhuma faixa contém o código: erro transitório, o fluxo
		// permanece em seleção de setor.
		w.setSoftError("Setor não encontrado.")
		return nil, nil
	}

	if sector.Status == domain.SectorFinalized {
		w.setSoftError("Setor já finalizado. Reabertura é uma ação administrativa.")
		return nil, nil
	}

	// Primeira abertura: pending -> counting. Se o setor já está em
	// contagem (outro coletor abriu antes), apenas acopla: contagem
	// concorrente no mesmo setor é permitida por design.
	if sector.Status == domain.SectorPending {
		if err := w.sectors.UpdateStatus(ctx, sector.ID, domain.SectorPending, domain.SectorCounting); err != nil {
			w.logger.Warn("Transição pending->counting falhou; assumindo setor já aberto por outro coletor.", map[string]interface{}{
				"sector_id": sector.ID,
			})
		}
		sector.Status = domain.SectorCounting
	}

	w.currentSector = &sector
	w.state = StateSectorOpen
	w.logger.Info("Setor aberto no coletor.", map[string]interface{}{
		"sector_id": sector.ID,
		"prefix":    sector.Prefix,
	})

	return &sector, nil
}

// --- Loop de produtos ---

// SubmitProductCode processa um código de produto lido no setor aberto.
// Implementa o contrato submit(code) -> {committed} | {needsExtra} | {erro
// transitório}. Enquanto houver dado extra pendente, novas leituras são
// rejeitadas até ProvideExtra ou CancelExtra.
func (w *Workflow) SubmitProductCode(ctx context.Context, code string) (SubmitResult, error) {
	if w.state == StateAwaitingExtra {
		return SubmitResult{}, apperror.NewConflictError("Há um dado pendente. Informe-o ou cancele antes de continuar lendo.")
	}
	if w.state != StateSectorOpen {
		return SubmitResult{}, apperror.NewConflictError("Leitura de produto sem setor aberto.")
	}

	// Debounce mais curto que o de setor: leitura de código de barras
	// chega em taxa bem maior.
	now := w.clock.Now()
	if !w.lastProductScan.IsZero() && now.Sub(w.lastProductScan) < w.cfg.ProductDebounce {
		return SubmitResult{Absorbed: true}, nil
	}
	w.lastProductScan = now

	product, err := w.resolveProduct(ctx, code)
	if err != nil {
		w.setSoftError("Produto não encontrado para o código lido.")
		return SubmitResult{}, nil
	}

	// Modo múltiplo: toda leitura exige quantidade explícita.
	if w.multipleMode {
		w.pendingProduct = &product
		w.pendingQuantity = 0
		w.pendingExtra = ExtraQuantity
		w.state = StateAwaitingExtra
		return SubmitResult{NeedsExtra: ExtraQuantity, Product: &product}, nil
	}

	// Captura de lote habilitada: quantidade padrão 1, mas o lote precisa
	// ser informado antes do commit.
	if w.lotCapture {
		w.pendingProduct = &product
		w.pendingQuantity = 1
		w.pendingExtra = ExtraLot
		w.state = StateAwaitingExtra
		return SubmitResult{NeedsExtra: ExtraLot, Product: &product}, nil
	}

	// Caminho direto: uma leitura = um registro de quantidade 1.
	return w.commit(ctx, product, 1, nil, nil)
}

// ProvideExtra fornece o dado pendente e destrava o commit. Se o modo
// múltiplo e a captura de lote estiverem ambos ativos, a quantidade vem
// primeiro e o lote é pedido em seguida.
func (w *Workflow) ProvideExtra(ctx context.Context, extra Extra) (SubmitResult, error) {
	if w.state != StateAwaitingExtra || w.pendingProduct == nil {
		return SubmitResult{}, apperror.NewConflictError("Não há dado pendente para fornecer.")
	}

	switch w.pendingExtra {
	case ExtraQuantity:
		// Zero informa "visitei e não encontrei nada" e gera um registro
		// de ruptura no local.
		if extra.Quantity < 0 {
			return SubmitResult{}, apperror.NewValidationError("A quantidade informada não pode ser negativa.")
		}
		w.pendingQuantity = extra.Quantity

		// Encadeia o prompt de lote quando a captura está ativa.
		if w.lotCapture {
			w.pendingExtra = ExtraLot
			return SubmitResult{NeedsExtra: ExtraLot, Product: w.pendingProduct}, nil
		}

		product := *w.pendingProduct
		quantity := w.pendingQuantity
		w.clearPending()
		return w.commit(ctx, product, quantity, nil, nil)

	case ExtraLot:
		if extra.Lot == "" {
			return SubmitResult{}, apperror.NewValidationError("O lote informado não pode ser vazio.")
		}
		var expiry *time.Time
		if w.inventory.AllowsExpiry {
			expiry = extra.Expiry
		}

		product := *w.pendingProduct
		quantity := w.pendingQuantity
		lot := extra.Lot
		w.clearPending()
		return w.commit(ctx, product, quantity, &lot, expiry)
	}

	return SubmitResult{}, apperror.NewConflictError("Dado pendente desconhecido.")
}

// CancelExtra descarta o commit pendente e volta ao loop de leitura sem
// gravar nada.
func (w *Workflow) CancelExtra() {
	if w.state != StateAwaitingExtra {
		return
	}
	w.clearPending()
}

// commit delega ao serviço de contagem e devolve o registro gravado.
// Um commit sempre gera exatamente um CountRecord novo.
func (w *Workflow) commit(ctx context.Context, product domain.Product, quantity int, lot *string, expiry *time.Time) (SubmitResult, error) {
	req := domain.CountCommitRequest{
		InventoryID: w.inventory.ID,
		SectorID:    w.currentSector.ID,
		Code:        w.codeFor(product),
		SearchMode:  w.searchMode,
		Quantity:    quantity,
		Lot:         lot,
		Expiry:      expiry,
		OperatorID:  w.operatorID,
	}

	record, err := w.committer.Commit(ctx, req)
	if err != nil {
		// Falha de commit é transitória do ponto de vista do coletor: o
		// operador simplesmente lê de novo.
		w.logger.Error("Commit de contagem falhou no coletor.", err)
		w.setSoftError("Falha ao registrar a contagem. Leia o código novamente.")
		return SubmitResult{}, nil
	}

	return SubmitResult{Committed: &record}, nil
}

// --- Fechamento do setor ---

// RequestClose pede o fechamento do setor aberto: o fluxo entra em
// confirmação e aguarda Confirm ou CancelClose.
func (w *Workflow) RequestClose() error {
	if w.state != StateSectorOpen {
		return apperror.NewConflictError("Fechamento só pode ser pedido com setor aberto e sem pendências.")
	}
	w.state = StateConfirmClose
	return nil
}

// ConfirmClose confirma o fechamento. O gate do limiar mínimo é validação
// DURA, aplicada no servidor: abaixo do mínimo o fechamento é rejeitado com
// o erro estruturado e o fluxo volta ao loop de leitura. No sucesso o
// coletor desacopla do setor e volta à seleção.
func (w *Workflow) ConfirmClose(ctx context.Context) error {
	if w.state != StateConfirmClose {
		return apperror.NewConflictError("Não há fechamento aguardando confirmação.")
	}

	if err := w.closer.Close(ctx, w.currentSector.ID); err != nil {
		w.state = StateSectorOpen
		return err
	}

	w.logger.Info("Setor finalizado pelo coletor.", map[string]interface{}{
		"sector_id": w.currentSector.ID,
	})

	w.currentSector = nil
	w.state = StateSectorSelection
	return nil
}

// CancelClose volta ao loop de leitura sem fechar.
func (w *Workflow) CancelClose() {
	if w.state == StateConfirmClose {
		w.state = StateSectorOpen
	}
}

// --- Auxiliares ---

func (w *Workflow) resolveProduct(ctx context.Context, code string) (domain.Product, error) {
	if w.searchMode == domain.SearchByInternalCode {
		return w.products.FindByInternalCode(ctx, w.inventory.ID, code)
	}
	return w.products.FindByBarcode(ctx, w.inventory.ID, code)
}

// codeFor devolve o código do produto no modo de busca ativo, para que o
// registro reflita o que foi lido.
func (w *Workflow) codeFor(product domain.Product) string {
	if w.searchMode == domain.SearchByInternalCode {
		return product.InternalCode
	}
	return product.Barcode
}

func (w *Workflow) setSoftError(msg string) {
	w.softErr = msg
	w.softErrUntil = w.clock.Now().Add(w.cfg.SoftErrorTTL)
}

func (w *Workflow) clearPending() {
	w.pendingProduct = nil
	w.pendingQuantity = 0
	w.pendingExtra = ""
	w.state = StateSectorOpen
}
