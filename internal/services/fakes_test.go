package services

import (
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
	"github.com/avocetlabs/fledge-backend/internal/platform/vector"
	"github.com/avocetlabs/fledge-backend/internal/types"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("production")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

type fakeSkillRepo struct {
	skills  []*types.SkillEntry
	listErr error
	upserts []*types.SkillEntry
}

func (f *fakeSkillRepo) Upsert(ctx context.Context, tx *gorm.DB, entry *types.SkillEntry) error {
	f.upserts = append(f.upserts, entry)
	return nil
}

func (f *fakeSkillRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.SkillEntry, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.skills, nil
}

func (f *fakeSkillRepo) Get(ctx context.Context, tx *gorm.DB, userID uuid.UUID, skillName string) (*types.SkillEntry, error) {
	for _, s := range f.skills {
		if s.UserID == userID && s.SkillName == skillName {
			return s, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeReflexionRepo struct {
	created   []*types.ReflexionEpisode
	createErr error
	getErr    error
	deleteErr error
	deleted   []uuid.UUID
}

func (f *fakeReflexionRepo) Create(ctx context.Context, tx *gorm.DB, episode *types.ReflexionEpisode) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, episode)
	return nil
}

func (f *fakeReflexionRepo) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	kept := f.created[:0]
	for _, r := range f.created {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	f.created = kept
	return nil
}

func (f *fakeReflexionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.ReflexionEpisode, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	byID := make(map[uuid.UUID]*types.ReflexionEpisode, len(f.created))
	for _, r := range f.created {
		byID[r.ID] = r
	}
	out := make([]*types.ReflexionEpisode, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeReflexionRepo) ListRecentByUser(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.ReflexionEpisode, error) {
	out := []*types.ReflexionEpisode{}
	for _, r := range f.created {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeExerciseRepo struct {
	exercises map[uuid.UUID]*types.Exercise
	getErr    error
	created   []*types.Exercise
}

func newFakeExerciseRepo(exercises ...*types.Exercise) *fakeExerciseRepo {
	m := make(map[uuid.UUID]*types.Exercise, len(exercises))
	for _, e := range exercises {
		m[e.ID] = e
	}
	return &fakeExerciseRepo{exercises: m}
}

func (f *fakeExerciseRepo) Get(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.Exercise, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	e, ok := f.exercises[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return e, nil
}

func (f *fakeExerciseRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]*types.Exercise, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	out := make([]*types.Exercise, 0, len(ids))
	for _, id := range ids {
		if e, ok := f.exercises[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeExerciseRepo) Create(ctx context.Context, tx *gorm.DB, exercise *types.Exercise) error {
	f.exercises[exercise.ID] = exercise
	f.created = append(f.created, exercise)
	return nil
}

type fakeMistakeRepo struct {
	sets      map[string]map[string]struct{}
	recordErr error
	listErr   error
}

func newFakeMistakeRepo() *fakeMistakeRepo {
	return &fakeMistakeRepo{sets: map[string]map[string]struct{}{}}
}

func (f *fakeMistakeRepo) Record(ctx context.Context, exerciseType, mistake string) error {
	if f.recordErr != nil {
		return f.recordErr
	}
	set, ok := f.sets[exerciseType]
	if !ok {
		set = map[string]struct{}{}
		f.sets[exerciseType] = set
	}
	set[mistake] = struct{}{}
	return nil
}

func (f *fakeMistakeRepo) List(ctx context.Context, exerciseType string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := []string{}
	for m := range f.sets[exerciseType] {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

// fakeIndex implements SemanticIndexService with canned matches keyed by
// query text.
type fakeIndex struct {
	episodeMatches  map[string][]vector.Match
	exerciseMatches map[string][]vector.Match
	searchErr       error
	indexErr        error
	indexedEpisodes []*types.ReflexionEpisode
	indexedExercise []*types.Exercise
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		episodeMatches:  map[string][]vector.Match{},
		exerciseMatches: map[string][]vector.Match{},
	}
}

func (f *fakeIndex) IndexEpisode(ctx context.Context, episode *types.ReflexionEpisode) error {
	if f.indexErr != nil {
		return f.indexErr
	}
	f.indexedEpisodes = append(f.indexedEpisodes, episode)
	return nil
}

func (f *fakeIndex) SearchEpisodes(ctx context.Context, userID uuid.UUID, query string, limit int) ([]vector.Match, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := f.episodeMatches[query]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeIndex) IndexExercise(ctx context.Context, exercise *types.Exercise) error {
	if f.indexErr != nil {
		return f.indexErr
	}
	f.indexedExercise = append(f.indexedExercise, exercise)
	return nil
}

func (f *fakeIndex) SearchExercises(ctx context.Context, topic string, limit int) ([]vector.Match, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	out := f.exerciseMatches[topic]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type fakeScheduler struct {
	updates []schedulerUpdate
	due     []types.SpacedRepetitionState
}

type schedulerUpdate struct {
	userID     uuid.UUID
	exerciseID uuid.UUID
	success    bool
}

func (f *fakeScheduler) UpdateSpacedRepetition(userID, exerciseID uuid.UUID, success bool) types.SpacedRepetitionState {
	f.updates = append(f.updates, schedulerUpdate{userID: userID, exerciseID: exerciseID, success: success})
	return types.SpacedRepetitionState{UserID: userID, ExerciseID: exerciseID}
}

func (f *fakeScheduler) GetDueForReview(userID uuid.UUID, limit int) []types.SpacedRepetitionState {
	out := f.due
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

type fakeContextService struct {
	userCtx *types.EnhancedUserContext
}

func (f *fakeContextService) BuildEnhancedContext(ctx context.Context, userID uuid.UUID) *types.EnhancedUserContext {
	if f.userCtx != nil {
		return f.userCtx
	}
	return &types.EnhancedUserContext{
		UserID:       userID.String(),
		CurrentLevel: 1,
	}
}

func (f *fakeContextService) AnalyzeUserProgress(skills []*types.SkillEntry) types.ProgressAnalysis {
	return types.ProgressAnalysis{}
}

var errFakeStorage = fmt.Errorf("storage unavailable")
