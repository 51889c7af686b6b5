package handlers_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avocetlabs/fledge-backend/internal/handlers"
	"github.com/avocetlabs/fledge-backend/internal/observability"
	"github.com/avocetlabs/fledge-backend/internal/platform/apierr"
	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
	"github.com/avocetlabs/fledge-backend/internal/server"
	"github.com/avocetlabs/fledge-backend/internal/types"
)

type stubServices struct {
	userCtx   *types.EnhancedUserContext
	recs      []types.ExerciseRecommendation
	next      *types.ExerciseRecommendation
	due       []types.SpacedRepetitionState
	skills    []*types.SkillEntry
	reflexion *types.ReflexionEpisode
	mistakes  map[string][]string

	createErr error

	recordedAttempts []recordedAttempt
	recordedSkills   []string
	recordedLimits   []int
}

type recordedAttempt struct {
	exerciseID uuid.UUID
	userID     uuid.UUID
	success    bool
	timeSpent  float64
	hints      int
}

func (s *stubServices) BuildEnhancedContext(ctx context.Context, userID uuid.UUID) *types.EnhancedUserContext {
	if s.userCtx != nil {
		return s.userCtx
	}
	return &types.EnhancedUserContext{UserID: userID.String(), CurrentLevel: 1}
}

func (s *stubServices) AnalyzeUserProgress(skills []*types.SkillEntry) types.ProgressAnalysis {
	return types.ProgressAnalysis{}
}

func (s *stubServices) GetRecommendations(ctx context.Context, userID uuid.UUID, limit int) []types.ExerciseRecommendation {
	s.recordedLimits = append(s.recordedLimits, limit)
	return s.recs
}

func (s *stubServices) GetOptimalNextExercise(ctx context.Context, userID uuid.UUID, topic string) *types.ExerciseRecommendation {
	return s.next
}

func (s *stubServices) UpdateSpacedRepetition(userID, exerciseID uuid.UUID, success bool) types.SpacedRepetitionState {
	return types.SpacedRepetitionState{UserID: userID, ExerciseID: exerciseID}
}

func (s *stubServices) GetDueForReview(userID uuid.UUID, limit int) []types.SpacedRepetitionState {
	return s.due
}

func (s *stubServices) RecordAttempt(ctx context.Context, exerciseID, userID uuid.UUID, success bool, timeSpentSeconds float64, hintsUsed int) types.PerformanceMetrics {
	s.recordedAttempts = append(s.recordedAttempts, recordedAttempt{exerciseID, userID, success, timeSpentSeconds, hintsUsed})
	return types.PerformanceMetrics{ExerciseID: exerciseID, TotalAttempts: 1}
}

func (s *stubServices) PredictDifficulty(ctx context.Context, exerciseID, userID uuid.UUID) int {
	return 7
}

func (s *stubServices) PredictDifficultyFor(ctx context.Context, exerciseID, userID uuid.UUID, exercise *types.Exercise, userCtx *types.EnhancedUserContext) int {
	return 7
}

func (s *stubServices) Metrics(exerciseID uuid.UUID) (types.PerformanceMetrics, bool) {
	return types.PerformanceMetrics{}, false
}

func (s *stubServices) RecordCommonMistake(ctx context.Context, exerciseType, mistake string) error {
	s.mistakes[exerciseType] = append(s.mistakes[exerciseType], mistake)
	return nil
}

func (s *stubServices) GetCommonMistakes(ctx context.Context, exerciseType string) []string {
	return s.mistakes[exerciseType]
}

func (s *stubServices) UpdateSkill(ctx context.Context, userID uuid.UUID, skillName string, level, exercisesCompleted int, successRate float64) error {
	s.recordedSkills = append(s.recordedSkills, skillName)
	return nil
}

func (s *stubServices) ListUserSkills(ctx context.Context, userID uuid.UUID) ([]*types.SkillEntry, error) {
	return s.skills, nil
}

func (s *stubServices) BuildReflexion(episode types.LearningEpisode) *types.ReflexionEpisode {
	return s.reflexion
}

func (s *stubServices) RecordEpisode(ctx context.Context, episode types.LearningEpisode) (*types.ReflexionEpisode, error) {
	if s.reflexion != nil {
		return s.reflexion, nil
	}
	return &types.ReflexionEpisode{ID: uuid.New(), UserID: episode.UserID, Topic: episode.Topic}, nil
}

func (s *stubServices) QueryExperiences(ctx context.Context, userID uuid.UUID, query string, limit int) []*types.ReflexionEpisode {
	return nil
}

func (s *stubServices) CreateExercise(ctx context.Context, exercise *types.Exercise) error {
	return s.createErr
}

func (s *stubServices) GetExercise(ctx context.Context, id uuid.UUID) (*types.Exercise, error) {
	return nil, fmt.Errorf("not found")
}

func newTestRouter(t *testing.T, stub *stubServices) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	if stub.mistakes == nil {
		stub.mistakes = map[string][]string{}
	}
	log, err := logger.New("production")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return server.NewRouter(server.RouterConfig{
		UserHandler:     handlers.NewUserHandler(log, stub, stub, stub, nil),
		AttemptHandler:  handlers.NewAttemptHandler(log, stub, nil),
		SkillHandler:    handlers.NewSkillHandler(log, stub),
		EpisodeHandler:  handlers.NewEpisodeHandler(log, stub),
		ExerciseHandler: handlers.NewExerciseHandler(log, stub),
		MistakeHandler:  handlers.NewMistakeHandler(log, stub),
	})
}

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthcheck(t *testing.T) {
	router := newTestRouter(t, &stubServices{})
	rec := doRequest(router, http.MethodGet, "/healthcheck", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("status=%d body=%q", rec.Code, rec.Body.String())
	}
}

func TestGetContext(t *testing.T) {
	userID := uuid.New()
	router := newTestRouter(t, &stubServices{
		userCtx: &types.EnhancedUserContext{UserID: userID.String(), CurrentLevel: 4},
	})
	rec := doRequest(router, http.MethodGet, "/api/users/"+userID.String()+"/context", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	var got types.EnhancedUserContext
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.CurrentLevel != 4 {
		t.Fatalf("CurrentLevel=%d, want 4", got.CurrentLevel)
	}
}

func TestInvalidUserIDRejected(t *testing.T) {
	router := newTestRouter(t, &stubServices{})
	rec := doRequest(router, http.MethodGet, "/api/users/not-a-uuid/context", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid_user_id") {
		t.Fatalf("body=%s, want invalid_user_id code", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected request id header on responses")
	}
}

func TestGetRecommendationsLimit(t *testing.T) {
	stub := &stubServices{}
	router := newTestRouter(t, stub)
	userID := uuid.New().String()

	rec := doRequest(router, http.MethodGet, "/api/users/"+userID+"/recommendations", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	rec = doRequest(router, http.MethodGet, "/api/users/"+userID+"/recommendations?limit=3", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if len(stub.recordedLimits) != 2 || stub.recordedLimits[0] != 5 || stub.recordedLimits[1] != 3 {
		t.Fatalf("limits=%v, want [5 3]", stub.recordedLimits)
	}

	rec = doRequest(router, http.MethodGet, "/api/users/"+userID+"/recommendations?limit=0", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("limit=0 status=%d, want 400", rec.Code)
	}
}

func TestNextExerciseNoContent(t *testing.T) {
	router := newTestRouter(t, &stubServices{})
	rec := doRequest(router, http.MethodGet, "/api/users/"+uuid.New().String()+"/next-exercise", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status=%d, want 204", rec.Code)
	}
}

func TestRecordAttempt(t *testing.T) {
	stub := &stubServices{}
	router := newTestRouter(t, stub)
	userID := uuid.New()
	exerciseID := uuid.New()

	body := fmt.Sprintf(`{"exercise_id":%q,"success":true,"time_spent":42.5,"hints_used":1}`, exerciseID)
	rec := doRequest(router, http.MethodPost, "/api/users/"+userID.String()+"/attempts", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(stub.recordedAttempts) != 1 {
		t.Fatalf("attempts=%d, want 1", len(stub.recordedAttempts))
	}
	got := stub.recordedAttempts[0]
	if got.exerciseID != exerciseID || got.userID != userID || !got.success || got.timeSpent != 42.5 || got.hints != 1 {
		t.Fatalf("recorded=%+v", got)
	}

	bad := fmt.Sprintf(`{"exercise_id":%q,"time_spent":-1}`, exerciseID)
	rec = doRequest(router, http.MethodPost, "/api/users/"+userID.String()+"/attempts", bad)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("negative time status=%d, want 400", rec.Code)
	}
}

func TestGetPredictedDifficulty(t *testing.T) {
	router := newTestRouter(t, &stubServices{})
	path := "/api/users/" + uuid.New().String() + "/exercises/" + uuid.New().String() + "/predicted-difficulty"
	rec := doRequest(router, http.MethodGet, path, "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"predicted_difficulty":7`) {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestUpdateSkill(t *testing.T) {
	stub := &stubServices{}
	router := newTestRouter(t, stub)
	userID := uuid.New().String()

	rec := doRequest(router, http.MethodPost, "/api/users/"+userID+"/skills",
		`{"skill_name":"beak-id","level":3,"exercises_completed":12,"success_rate":0.8}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
	if len(stub.recordedSkills) != 1 || stub.recordedSkills[0] != "beak-id" {
		t.Fatalf("recorded=%v", stub.recordedSkills)
	}

	rec = doRequest(router, http.MethodPost, "/api/users/"+userID+"/skills",
		`{"skill_name":"beak-id","success_rate":1.5}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range success_rate status=%d, want 400", rec.Code)
	}
}

func TestRecordEpisode(t *testing.T) {
	router := newTestRouter(t, &stubServices{})
	userID := uuid.New().String()

	rec := doRequest(router, http.MethodPost, "/api/users/"+userID+"/episodes",
		`{"topic":"songs","activity":"audio quiz","performance":{"score":88,"attempts_used":1}}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doRequest(router, http.MethodPost, "/api/users/"+userID+"/episodes",
		`{"topic":"songs","performance":{"score":150}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("out-of-range score status=%d, want 400", rec.Code)
	}

	rec = doRequest(router, http.MethodGet, "/api/users/"+userID+"/episodes", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing query status=%d, want 400", rec.Code)
	}
}

func TestMistakesRoundTrip(t *testing.T) {
	router := newTestRouter(t, &stubServices{})

	rec := doRequest(router, http.MethodPost, "/api/exercise-types/audio-quiz/mistakes",
		`{"mistake":"confused chickadee with titmouse"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doRequest(router, http.MethodGet, "/api/exercise-types/audio-quiz/mistakes", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "chickadee") {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestCreateExerciseMapsTypedErrors(t *testing.T) {
	stub := &stubServices{
		createErr: apierr.New(http.StatusBadRequest, "invalid_difficulty", fmt.Errorf("difficulty must be in [1,10]")),
	}
	router := newTestRouter(t, stub)

	rec := doRequest(router, http.MethodPost, "/api/exercises",
		`{"title":"Sparrow song","topic":"songs","exercise_type":"audio-quiz","difficulty":12}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "invalid_difficulty") {
		t.Fatalf("body=%s, want invalid_difficulty code", rec.Body.String())
	}
}

func TestGetDueReviewsRecordsGauge(t *testing.T) {
	t.Setenv("METRICS_ENABLED", "true")
	m := observability.Init(nil)
	if m == nil {
		t.Fatalf("metrics should be enabled")
	}

	userID := uuid.New()
	stub := &stubServices{
		due:      []types.SpacedRepetitionState{{UserID: userID, ExerciseID: uuid.New()}},
		mistakes: map[string][]string{},
	}
	gin.SetMode(gin.TestMode)
	log, err := logger.New("production")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	router := server.NewRouter(server.RouterConfig{
		Metrics:         m,
		UserHandler:     handlers.NewUserHandler(log, stub, stub, stub, m),
		AttemptHandler:  handlers.NewAttemptHandler(log, stub, nil),
		SkillHandler:    handlers.NewSkillHandler(log, stub),
		EpisodeHandler:  handlers.NewEpisodeHandler(log, stub),
		ExerciseHandler: handlers.NewExerciseHandler(log, stub),
		MistakeHandler:  handlers.NewMistakeHandler(log, stub),
	})

	rec := doRequest(router, http.MethodGet, "/api/users/"+userID.String()+"/due-reviews", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rec.Code, rec.Body.String())
	}

	metricsRec := doRequest(router, http.MethodGet, "/metrics", "")
	if metricsRec.Code != http.StatusOK {
		t.Fatalf("metrics status=%d", metricsRec.Code)
	}
	want := fmt.Sprintf(`fl_due_reviews{user="%s"} 1`, userID)
	if !strings.Contains(metricsRec.Body.String(), want) {
		t.Fatalf("missing due-review gauge %q in:\n%s", want, metricsRec.Body.String())
	}
}
