package streamservice

import (
	"context"
	"time"

	"gocontagem/internal/domain"
	"gocontagem/internal/pkg/logger"
)

// StatsRepository define o contrato que o montador de snapshot espera da
// camada de Persistência (as queries de agregação sobre o ledger).
type StatsRepository interface {
	SectorStats(ctx context.Context, inventoryID string) ([]domain.SectorStats, error)
	OperatorStats(ctx context.Context, inventoryID string) ([]domain.OperatorStats, error)
	TimelineBuckets(ctx context.Context, inventoryID string) ([]domain.TimelineBucket, error)
}

// SnapshotBuilder monta o read-model completo de um inventário a partir
// das agregações do ledger. Implementa SnapshotProvider para o Hub.
type SnapshotBuilder struct {
	repo   StatsRepository
	logger logger.Logger
}

// NewSnapshotBuilder cria e retorna um novo montador de snapshot.
func NewSnapshotBuilder(repo StatsRepository, log logger.Logger) *SnapshotBuilder {
	return &SnapshotBuilder{repo: repo, logger: log}
}

// BuildSnapshot lê as três coleções do read-model. Qualquer falha aborta o
// snapshot inteiro: um snapshot parcial quebraria o contrato de substituição
// autoritativa no consumidor.
func (b *SnapshotBuilder) BuildSnapshot(ctx context.Context, inventoryID string) (domain.StreamSnapshot, error) {
	sectors, err := b.repo.SectorStats(ctx, inventoryID)
	if err != nil {
		return domain.StreamSnapshot{}, err
	}

	operators, err := b.repo.OperatorStats(ctx, inventoryID)
	if err != nil {
		return domain.StreamSnapshot{}, err
	}

	timeline, err := b.repo.TimelineBuckets(ctx, inventoryID)
	if err != nil {
		return domain.StreamSnapshot{}, err
	}

	b.logger.Debug("Snapshot montado.", map[string]interface{}{
		"inventory_id": inventoryID,
		"sectors":      len(sectors),
		"operators":    len(operators),
		"buckets":      len(timeline),
	})

	return domain.StreamSnapshot{
		InventoryID: inventoryID,
		Sectors:     sectors,
		Timeline:    timeline,
		Operators:   operators,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
