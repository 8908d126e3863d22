package inventoryservice

import (
	"context"
	"strings"

	"gocontagem/internal/domain"
	apperror "gocontagem/internal/errors"
	"gocontagem/internal/pkg/logger"
)

// InventoryRepository define o contrato de persistência que o Serviço de
// Inventário espera.
type InventoryRepository interface {
	FindByID(ctx context.Context, id string) (domain.Inventory, error)
	Close(ctx context.Context, id string, justification string) error
	Reopen(ctx context.Context, id string) error
}

// SectorRepository lista os setores para o cálculo dos impedimentos.
type SectorRepository interface {
	FindByInventory(ctx context.Context, inventoryID string) ([]domain.Sector, error)
}

// CountRepository conta as divergências pendentes para o cálculo dos
// impedimentos.
type CountRepository interface {
	PendingDivergenceCount(ctx context.Context, inventoryID string) (int, error)
}

// Service implementa o fechamento gated e a reabertura de inventário.
type Service struct {
	inventories InventoryRepository
	sectors     SectorRepository
	counts      CountRepository
	logger      logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Inventário.
func NewService(inventories InventoryRepository, sectors SectorRepository, counts CountRepository, log logger.Logger) *Service {
	return &Service{
		inventories: inventories,
		sectors:     sectors,
		counts:      counts,
		logger:      log,
	}
}

// Blockers computa os impedimentos de fechamento do inventário: setores
// nunca abertos, setores não finalizados e divergências pendentes.
func (s *Service) Blockers(ctx context.Context, inventoryID string) (domain.ClosureBlockers, error) {
	sectors, err := s.sectors.FindByInventory(ctx, inventoryID)
	if err != nil {
		return domain.ClosureBlockers{}, err
	}

	blockers := domain.ClosureBlockers{
		SectorsNeverOpened:  []string{},
		SectorsNotFinalized: []string{},
	}

	for _, sector := range sectors {
		switch sector.Status {
		case domain.SectorPending:
			blockers.SectorsNeverOpened = append(blockers.SectorsNeverOpened, sector.ID)
		case domain.SectorCounting:
			blockers.SectorsNotFinalized = append(blockers.SectorsNotFinalized, sector.ID)
		}
	}

	pending, err := s.counts.PendingDivergenceCount(ctx, inventoryID)
	if err != nil {
		return domain.ClosureBlockers{}, err
	}
	blockers.PendingDivergenceCount = pending

	return blockers, nil
}

// Close fecha o inventário. Sem impedimentos, uma confirmação simples
// basta (justificativa vazia). Com impedimentos, só um administrador pode
// forçar, com justificativa de pelo menos MinJustificationLen caracteres,
// e a justificativa é persistida junto do evento de fechamento.
func (s *Service) Close(ctx context.Context, inventoryID string, justification string, isAdmin bool) error {
	inventory, err := s.inventories.FindByID(ctx, inventoryID)
	if err != nil {
		return err
	}
	if inventory.Status != domain.InventoryOpen {
		return apperror.NewConflictError("O inventário não está aberto.")
	}

	blockers, err := s.Blockers(ctx, inventoryID)
	if err != nil {
		return err
	}

	justification = strings.TrimSpace(justification)

	if !blockers.Empty() {
		if !isAdmin {
			s.logger.Info("Fechamento de inventário bloqueado.", map[string]interface{}{
				"inventory_id":          inventoryID,
				"sectors_never_opened":  len(blockers.SectorsNeverOpened),
				"sectors_not_finalized": len(blockers.SectorsNotFinalized),
				"pending_divergences":   blockers.PendingDivergenceCount,
			})
			return apperror.NewInventoryClosureBlockedError("Existem impedimentos para o fechamento.", blockers)
		}
		if len(justification) < domain.MinJustificationLen {
			return apperror.NewValidationError("A justificativa do fechamento forçado deve ter pelo menos 10 caracteres.")
		}
	} else {
		// Fechamento limpo não carrega justificativa.
		justification = ""
	}

	if err := s.inventories.Close(ctx, inventoryID, justification); err != nil {
		return err
	}

	s.logger.Info("Inventário fechado.", map[string]interface{}{
		"inventory_id": inventoryID,
		"forced":       justification != "",
	})
	return nil
}

// Reopen reverte o fechamento do inventário. Ação explícita, sem gate.
func (s *Service) Reopen(ctx context.Context, inventoryID string) error {
	if err := s.inventories.Reopen(ctx, inventoryID); err != nil {
		return err
	}

	s.logger.Info("Inventário reaberto.", map[string]interface{}{"inventory_id": inventoryID})
	return nil
}
