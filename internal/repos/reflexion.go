package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
	"github.com/avocetlabs/fledge-backend/internal/types"
)

type ReflexionRepo interface {
	Create(ctx context.Context, tx *gorm.DB, episode *types.ReflexionEpisode) error
	// GetByIDs returns episodes in the same order as ids; unknown ids are
	// skipped. Retrieval rank comes from the vector store, so order matters.
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ReflexionEpisode, error)
	ListRecentByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.ReflexionEpisode, error)
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
}

type reflexionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReflexionRepo(db *gorm.DB, baseLog *logger.Logger) ReflexionRepo {
	return &reflexionRepo{
		db:  db,
		log: baseLog.With("repo", "ReflexionRepo"),
	}
}

func (r *reflexionRepo) Create(ctx context.Context, tx *gorm.DB, episode *types.ReflexionEpisode) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if episode == nil || episode.UserID == uuid.Nil {
		return nil
	}
	if episode.ID == uuid.Nil {
		episode.ID = uuid.New()
	}
	return transaction.WithContext(ctx).Create(episode).Error
}

func (r *reflexionRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(ctx).Delete(&types.ReflexionEpisode{}, "id = ?", id).Error
}

func (r *reflexionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ReflexionEpisode, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []*types.ReflexionEpisode
	err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*types.ReflexionEpisode, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	out := make([]*types.ReflexionEpisode, 0, len(ids))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *reflexionRepo) ListRecentByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.ReflexionEpisode, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 10
	}
	var rows []*types.ReflexionEpisode
	err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
