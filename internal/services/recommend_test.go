package services

import (
	"bytes"
	"context"
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/avocetlabs/fledge-backend/internal/observability"
	"github.com/avocetlabs/fledge-backend/internal/platform/vector"
	"github.com/avocetlabs/fledge-backend/internal/types"
)

// fakePerformance pins predicted difficulty per exercise so scoring is
// deterministic.
type fakePerformance struct {
	predictions map[uuid.UUID]int
	fallback    int
}

func (f *fakePerformance) RecordAttempt(ctx context.Context, exerciseID, userID uuid.UUID, success bool, timeSpentSeconds float64, hintsUsed int) types.PerformanceMetrics {
	return types.PerformanceMetrics{}
}

func (f *fakePerformance) PredictDifficulty(ctx context.Context, exerciseID, userID uuid.UUID) int {
	return f.predictionFor(exerciseID)
}

func (f *fakePerformance) PredictDifficultyFor(ctx context.Context, exerciseID, userID uuid.UUID, exercise *types.Exercise, userCtx *types.EnhancedUserContext) int {
	return f.predictionFor(exerciseID)
}

func (f *fakePerformance) predictionFor(exerciseID uuid.UUID) int {
	if pd, ok := f.predictions[exerciseID]; ok {
		return pd
	}
	if f.fallback > 0 {
		return f.fallback
	}
	return 5
}

func (f *fakePerformance) Metrics(exerciseID uuid.UUID) (types.PerformanceMetrics, bool) {
	return types.PerformanceMetrics{}, false
}

func (f *fakePerformance) RecordCommonMistake(ctx context.Context, exerciseType, mistake string) error {
	return nil
}

func (f *fakePerformance) GetCommonMistakes(ctx context.Context, exerciseType string) []string {
	return nil
}

type recommendFixture struct {
	svc         RecommendationService
	index       *fakeIndex
	exercises   *fakeExerciseRepo
	scheduler   *fakeScheduler
	performance *fakePerformance
	userCtx     *types.EnhancedUserContext
}

func newRecommendFixture(t *testing.T, userCtx *types.EnhancedUserContext) *recommendFixture {
	t.Helper()
	index := newFakeIndex()
	exercises := newFakeExerciseRepo()
	scheduler := &fakeScheduler{}
	performance := &fakePerformance{predictions: map[uuid.UUID]int{}}
	svc := NewRecommendationService(
		testLogger(t),
		&fakeContextService{userCtx: userCtx},
		index,
		exercises,
		performance,
		scheduler,
		nil,
	)
	return &recommendFixture{
		svc:         svc,
		index:       index,
		exercises:   exercises,
		scheduler:   scheduler,
		performance: performance,
		userCtx:     userCtx,
	}
}

func (f *recommendFixture) addExercise(topic string, pd int) *types.Exercise {
	e := &types.Exercise{ID: uuid.New(), Topic: topic, Title: topic + " drill", Difficulty: 5, Approved: true}
	f.exercises.exercises[e.ID] = e
	f.performance.predictions[e.ID] = pd
	return e
}

func TestWeaknessStrategyScoringAndReasoning(t *testing.T) {
	userCtx := &types.EnhancedUserContext{
		CurrentLevel:     3,
		RecentWeaknesses: []string{"calls", "songs", "plumage"},
	}
	f := newRecommendFixture(t, userCtx)

	// pd == level plus the weakness bonus pushes the raw score past 1, so the
	// clamp holds it at exactly 1.
	callsEx := f.addExercise("calls", 3)
	f.index.exerciseMatches["calls"] = []vector.Match{{ID: callsEx.ID.String(), Score: 0.9}}
	songsEx := f.addExercise("songs", 6)
	f.index.exerciseMatches["songs"] = []vector.Match{{ID: songsEx.ID.String(), Score: 0.8}}
	// The third weakness is past the two-topic window and must not be fetched.
	plumageEx := f.addExercise("plumage", 3)
	f.index.exerciseMatches["plumage"] = []vector.Match{{ID: plumageEx.ID.String(), Score: 0.7}}

	recs := f.svc.GetRecommendations(context.Background(), uuid.New(), 10)

	if len(recs) != 2 {
		t.Fatalf("len(recs)=%d, want 2", len(recs))
	}
	if recs[0].ExerciseID != callsEx.ID {
		t.Fatalf("top recommendation=%v, want calls exercise", recs[0].ExerciseID)
	}
	if recs[0].RelevanceScore != 1 {
		t.Fatalf("clamped score=%v, want 1", recs[0].RelevanceScore)
	}
	if recs[0].Reasoning != "Recommended to improve understanding of calls" {
		t.Fatalf("Reasoning=%q", recs[0].Reasoning)
	}
	// songs: 0.5 + (3-3)*0.15 + 0.2 = 0.7
	if math.Abs(recs[1].RelevanceScore-0.7) > 1e-9 {
		t.Fatalf("songs score=%v, want 0.7", recs[1].RelevanceScore)
	}
	for _, rec := range recs {
		if rec.ExerciseID == plumageEx.ID {
			t.Fatalf("third weakness should not produce candidates")
		}
	}
}

func TestChallengeStrategyFiltersByPredictedDifficulty(t *testing.T) {
	userCtx := &types.EnhancedUserContext{
		CurrentLevel:    3,
		RecentStrengths: []string{"beak-id"},
	}
	f := newRecommendFixture(t, userCtx)

	hard := f.addExercise("beak-id", 5)
	easy := f.addExercise("beak-id", 4)
	f.index.exerciseMatches["beak-id"] = []vector.Match{
		{ID: hard.ID.String(), Score: 0.9},
		{ID: easy.ID.String(), Score: 0.8},
	}

	recs := f.svc.GetRecommendations(context.Background(), uuid.New(), 10)

	if len(recs) != 1 {
		t.Fatalf("len(recs)=%d, want 1 (pd must exceed level+1)", len(recs))
	}
	if recs[0].ExerciseID != hard.ID {
		t.Fatalf("kept exercise=%v, want the pd=5 one", recs[0].ExerciseID)
	}
	if recs[0].Reasoning != "Challenge exercise to advance beyond current level in beak-id" {
		t.Fatalf("Reasoning=%q", recs[0].Reasoning)
	}
}

func TestReviewStrategyBoostExceedsClamp(t *testing.T) {
	userCtx := &types.EnhancedUserContext{CurrentLevel: 3}
	f := newRecommendFixture(t, userCtx)

	due := f.addExercise("migration", 3)
	f.scheduler.due = []types.SpacedRepetitionState{{ExerciseID: due.ID}}

	recs := f.svc.GetRecommendations(context.Background(), uuid.New(), 10)

	if len(recs) != 1 {
		t.Fatalf("len(recs)=%d, want 1", len(recs))
	}
	// Base 0.5 + 0.45 = 0.95, then ×1.2 after the clamp: 1.14.
	if math.Abs(recs[0].RelevanceScore-1.14) > 1e-9 {
		t.Fatalf("boosted score=%v, want 1.14", recs[0].RelevanceScore)
	}
	if recs[0].Reasoning != "Scheduled review to reinforce learning" {
		t.Fatalf("Reasoning=%q", recs[0].Reasoning)
	}
}

func TestEstimatedSuccessRateClamps(t *testing.T) {
	userCtx := &types.EnhancedUserContext{
		CurrentLevel:     2,
		RecentWeaknesses: []string{"calls", "songs"},
	}
	f := newRecommendFixture(t, userCtx)

	// pd far above level: 1 - 8×0.1 = 0.2 exactly at the floor.
	hard := f.addExercise("calls", 10)
	f.index.exerciseMatches["calls"] = []vector.Match{{ID: hard.ID.String(), Score: 0.9}}
	// pd below level: 1 - (-1)×0.1 = 1.1, capped at 0.95.
	easy := f.addExercise("songs", 1)
	f.index.exerciseMatches["songs"] = []vector.Match{{ID: easy.ID.String(), Score: 0.9}}

	recs := f.svc.GetRecommendations(context.Background(), uuid.New(), 10)
	if len(recs) != 2 {
		t.Fatalf("len(recs)=%d, want 2", len(recs))
	}
	byID := map[uuid.UUID]types.ExerciseRecommendation{}
	for _, rec := range recs {
		byID[rec.ExerciseID] = rec
	}
	if got := byID[hard.ID].EstimatedSuccessRate; math.Abs(got-0.2) > 1e-9 {
		t.Fatalf("hard EstimatedSuccessRate=%v, want 0.2", got)
	}
	if got := byID[easy.ID].EstimatedSuccessRate; math.Abs(got-0.95) > 1e-9 {
		t.Fatalf("easy EstimatedSuccessRate=%v, want 0.95", got)
	}
}

func TestGetRecommendationsEmptyHistory(t *testing.T) {
	f := newRecommendFixture(t, &types.EnhancedUserContext{CurrentLevel: 1})

	recs := f.svc.GetRecommendations(context.Background(), uuid.New(), 5)
	if recs == nil {
		t.Fatalf("expected non-nil slice")
	}
	if len(recs) != 0 {
		t.Fatalf("len(recs)=%d, want 0", len(recs))
	}
}

func TestGetRecommendationsDegradedRetrieval(t *testing.T) {
	userCtx := &types.EnhancedUserContext{
		CurrentLevel:     3,
		RecentWeaknesses: []string{"calls"},
	}
	f := newRecommendFixture(t, userCtx)
	f.index.searchErr = errFakeStorage

	due := f.addExercise("migration", 3)
	f.scheduler.due = []types.SpacedRepetitionState{{ExerciseID: due.ID}}

	// Weakness retrieval fails but the review strategy still contributes.
	recs := f.svc.GetRecommendations(context.Background(), uuid.New(), 5)
	if len(recs) != 1 || recs[0].ExerciseID != due.ID {
		t.Fatalf("recs=%v, want only the due review", recs)
	}
}

func TestGetRecommendationsSortAndTruncate(t *testing.T) {
	userCtx := &types.EnhancedUserContext{
		CurrentLevel:     3,
		RecentWeaknesses: []string{"calls"},
	}
	f := newRecommendFixture(t, userCtx)

	matched := f.addExercise("calls", 3)   // 0.5+0.45+0.2 -> clamp 1
	mismatch := f.addExercise("calls", 8)  // 0.5+(3-5)*0.15+0.2 = 0.4
	f.index.exerciseMatches["calls"] = []vector.Match{
		{ID: mismatch.ID.String(), Score: 0.9},
		{ID: matched.ID.String(), Score: 0.8},
	}

	recs := f.svc.GetRecommendations(context.Background(), uuid.New(), 1)
	if len(recs) != 1 {
		t.Fatalf("len(recs)=%d, want 1", len(recs))
	}
	if recs[0].ExerciseID != matched.ID {
		t.Fatalf("truncation must keep the highest-scoring candidate")
	}
}

func TestGetOptimalNextExerciseTopicFilter(t *testing.T) {
	userCtx := &types.EnhancedUserContext{
		CurrentLevel:     3,
		RecentWeaknesses: []string{"calls", "songs"},
	}
	f := newRecommendFixture(t, userCtx)

	calls := f.addExercise("calls", 3)
	songs := f.addExercise("songs", 5)
	f.index.exerciseMatches["calls"] = []vector.Match{{ID: calls.ID.String(), Score: 0.9}}
	f.index.exerciseMatches["songs"] = []vector.Match{{ID: songs.ID.String(), Score: 0.9}}

	got := f.svc.GetOptimalNextExercise(context.Background(), uuid.New(), "songs")
	if got == nil || got.ExerciseID != songs.ID {
		t.Fatalf("GetOptimalNextExercise=%v, want the songs exercise", got)
	}

	if missing := f.svc.GetOptimalNextExercise(context.Background(), uuid.New(), "plumage"); missing != nil {
		t.Fatalf("expected nil for unmatched topic, got %v", missing)
	}

	unfiltered := f.svc.GetOptimalNextExercise(context.Background(), uuid.New(), "")
	if unfiltered == nil || !strings.Contains(unfiltered.Reasoning, "Recommended to improve") {
		t.Fatalf("unfiltered=%v", unfiltered)
	}
}

func TestGetRecommendationsRecordsStrategyYield(t *testing.T) {
	t.Setenv("METRICS_ENABLED", "true")
	m := observability.Init(nil)
	if m == nil {
		t.Fatalf("metrics should be enabled")
	}

	userCtx := &types.EnhancedUserContext{CurrentLevel: 3}
	index := newFakeIndex()
	exercises := newFakeExerciseRepo()
	scheduler := &fakeScheduler{}
	performance := &fakePerformance{predictions: map[uuid.UUID]int{}}
	svc := NewRecommendationService(
		testLogger(t),
		&fakeContextService{userCtx: userCtx},
		index,
		exercises,
		performance,
		scheduler,
		m,
	)

	due := &types.Exercise{ID: uuid.New(), Topic: "migration", Title: "migration drill", Difficulty: 5, Approved: true}
	exercises.exercises[due.ID] = due
	performance.predictions[due.ID] = 3
	scheduler.due = []types.SpacedRepetitionState{{ExerciseID: due.ID}}

	recs := svc.GetRecommendations(context.Background(), uuid.New(), 10)
	if len(recs) != 1 {
		t.Fatalf("len(recs)=%d, want 1", len(recs))
	}

	var buf bytes.Buffer
	if err := m.WritePrometheus(&buf); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	text := buf.String()
	if !strings.Contains(text, `fl_recommendation_candidates_total{strategy="review"} 1`) {
		t.Fatalf("missing review yield series:\n%s", text)
	}
	if !strings.Contains(text, "fl_recommendation_duration_seconds_count 1") {
		t.Fatalf("missing recommendation latency series:\n%s", text)
	}
}
