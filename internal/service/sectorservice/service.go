package sectorservice

import (
	"context"
	"fmt"

	"gocontagem/internal/domain"
	apperror "gocontagem/internal/errors"
	"gocontagem/internal/pkg/logger"
)

// SectorRepository define o contrato de persistência que o Serviço de
// Setor espera.
type SectorRepository interface {
	FindByID(ctx context.Context, id string) (domain.Sector, error)
	UpdateStatus(ctx context.Context, sectorID string, from, to domain.SectorStatus) error
}

// InventoryRepository resolve o inventário dono do setor (fonte do limiar
// mínimo).
type InventoryRepository interface {
	FindByID(ctx context.Context, id string) (domain.Inventory, error)
}

// CountRepository conta os registros acumulados do setor.
type CountRepository interface {
	CountBySector(ctx context.Context, sectorID string) (int, error)
}

// Service implementa os gates de fechamento e a reabertura de setor.
type Service struct {
	sectors     SectorRepository
	inventories InventoryRepository
	counts      CountRepository
	logger      logger.Logger
}

// NewService cria e retorna uma nova instância do Serviço de Setor.
func NewService(sectors SectorRepository, inventories InventoryRepository, counts CountRepository, log logger.Logger) *Service {
	return &Service{
		sectors:     sectors,
		inventories: inventories,
		counts:      counts,
		logger:      log,
	}
}

// Close finaliza um setor em contagem. Validação DURA no servidor: se o
// total de registros do setor estiver abaixo do limiar mínimo do
// inventário, o fechamento é rejeitado com o bloqueio estruturado (quantas
// contagens faltam), não com um erro genérico.
func (s *Service) Close(ctx context.Context, sectorID string) error {
	sector, err := s.sectors.FindByID(ctx, sectorID)
	if err != nil {
		return err
	}

	if sector.Status != domain.SectorCounting {
		return apperror.NewConflictError(fmt.Sprintf("O setor %s não está em contagem.", sectorID))
	}

	inventory, err := s.inventories.FindByID(ctx, sector.InventoryID)
	if err != nil {
		return err
	}

	total, err := s.counts.CountBySector(ctx, sectorID)
	if err != nil {
		return err
	}

	if total < inventory.MinimumCountThreshold {
		missing := inventory.MinimumCountThreshold - total
		s.logger.Info("Fechamento de setor bloqueado pelo limiar mínimo.", map[string]interface{}{
			"sector_id": sectorID,
			"total":     total,
			"threshold": inventory.MinimumCountThreshold,
		})
		return apperror.NewSectorClosureBlockedError(
			fmt.Sprintf("O setor tem %d contagens; o mínimo é %d.", total, inventory.MinimumCountThreshold),
			missing,
		)
	}

	if err := s.sectors.UpdateStatus(ctx, sectorID, domain.SectorCounting, domain.SectorFinalized); err != nil {
		return err
	}

	s.logger.Info("Setor finalizado.", map[string]interface{}{"sector_id": sectorID, "total": total})
	return nil
}

// Reopen reverte a finalização de um setor (finalized -> counting). Ação
// administrativa explícita, SEM gate de limiar.
func (s *Service) Reopen(ctx context.Context, sectorID string) error {
	if err := s.sectors.UpdateStatus(ctx, sectorID, domain.SectorFinalized, domain.SectorCounting); err != nil {
		return err
	}

	s.logger.Info("Setor reaberto.", map[string]interface{}{"sector_id": sectorID})
	return nil
}
