package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
	"github.com/avocetlabs/fledge-backend/internal/repos"
	"github.com/avocetlabs/fledge-backend/internal/types"
)

// SkillService maintains per-user mastery records. Values are trusted as
// given; callers own monotonicity. Storage failures propagate, no retry.
type SkillService interface {
	UpdateSkill(ctx context.Context, userID uuid.UUID, skillName string, level, exercisesCompleted int, successRate float64) error
	ListUserSkills(ctx context.Context, userID uuid.UUID) ([]*types.SkillEntry, error)
}

type skillService struct {
	db     *gorm.DB
	log    *logger.Logger
	skills repos.SkillRepo
	now    func() time.Time
}

func NewSkillService(db *gorm.DB, log *logger.Logger, skills repos.SkillRepo) SkillService {
	return &skillService{
		db:     db,
		log:    log.With("service", "SkillService"),
		skills: skills,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *skillService) UpdateSkill(ctx context.Context, userID uuid.UUID, skillName string, level, exercisesCompleted int, successRate float64) error {
	skillName = strings.TrimSpace(skillName)
	if userID == uuid.Nil || skillName == "" {
		return fmt.Errorf("user id and skill name required")
	}
	entry := &types.SkillEntry{
		UserID:             userID,
		SkillName:          skillName,
		Level:              level,
		LastPracticed:      s.now(),
		ExercisesCompleted: exercisesCompleted,
		SuccessRate:        successRate,
	}
	if err := s.skills.Upsert(ctx, nil, entry); err != nil {
		return fmt.Errorf("upsert skill: %w", err)
	}
	return nil
}

func (s *skillService) ListUserSkills(ctx context.Context, userID uuid.UUID) ([]*types.SkillEntry, error) {
	return s.skills.ListByUser(ctx, nil, userID)
}
