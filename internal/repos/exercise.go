package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
	"github.com/avocetlabs/fledge-backend/internal/types"
)

type ExerciseRepo interface {
	Get(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Exercise, error)
	// GetByIDs returns exercises in the same order as ids; unknown ids are
	// skipped.
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Exercise, error)
	Create(ctx context.Context, tx *gorm.DB, exercise *types.Exercise) error
}

type exerciseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewExerciseRepo(db *gorm.DB, baseLog *logger.Logger) ExerciseRepo {
	return &exerciseRepo{
		db:  db,
		log: baseLog.With("repo", "ExerciseRepo"),
	}
}

func (r *exerciseRepo) Get(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Exercise, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var row types.Exercise
	err := transaction.WithContext(ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *exerciseRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Exercise, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []*types.Exercise
	err := transaction.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]*types.Exercise, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	out := make([]*types.Exercise, 0, len(ids))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *exerciseRepo) Create(ctx context.Context, tx *gorm.DB, exercise *types.Exercise) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if exercise == nil {
		return nil
	}
	if exercise.ID == uuid.Nil {
		exercise.ID = uuid.New()
	}
	return transaction.WithContext(ctx).Create(exercise).Error
}
