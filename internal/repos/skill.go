package repos

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
	"github.com/avocetlabs/fledge-backend/internal/types"
)

type SkillRepo interface {
	Upsert(ctx context.Context, tx *gorm.DB, entry *types.SkillEntry) error
	ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.SkillEntry, error)
	Get(ctx context.Context, tx *gorm.DB, userID uuid.UUID, skillName string) (*types.SkillEntry, error)
}

type skillRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSkillRepo(db *gorm.DB, baseLog *logger.Logger) SkillRepo {
	return &skillRepo{
		db:  db,
		log: baseLog.With("repo", "SkillRepo"),
	}
}

func (r *skillRepo) Upsert(ctx context.Context, tx *gorm.DB, entry *types.SkillEntry) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if entry == nil || entry.UserID == uuid.Nil || entry.SkillName == "" {
		return nil
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return transaction.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}, {Name: "skill_name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"level", "last_practiced", "exercises_completed", "success_rate", "updated_at",
			}),
		}).
		Create(entry).Error
}

func (r *skillRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.SkillEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil {
		return nil, nil
	}
	var rows []*types.SkillEntry
	err := transaction.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("skill_name asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *skillRepo) Get(ctx context.Context, tx *gorm.DB, userID uuid.UUID, skillName string) (*types.SkillEntry, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	if userID == uuid.Nil || skillName == "" {
		return nil, nil
	}
	var row types.SkillEntry
	err := transaction.WithContext(ctx).
		Where("user_id = ? AND skill_name = ?", userID, skillName).
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
