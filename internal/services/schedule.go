package services

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
	"github.com/avocetlabs/fledge-backend/internal/types"
)

const reviewBaseInterval = 24 * time.Hour

// SpacedRepetitionService keeps per-(user, exercise) review timing. It is a
// deliberately simple exponential-backoff scheduler, not SM-2 or FSRS: the
// interval multiplier doubles on success and hard-resets to 1 on failure,
// with a one-day base unit. Due checks are pull-based; nothing ticks.
type SpacedRepetitionService interface {
	UpdateSpacedRepetition(userID, exerciseID uuid.UUID, success bool) types.SpacedRepetitionState
	// GetDueForReview returns up to limit exercises whose nextReview has
	// passed, most overdue first.
	GetDueForReview(userID uuid.UUID, limit int) []types.SpacedRepetitionState
}

type reviewKey struct {
	userID     uuid.UUID
	exerciseID uuid.UUID
}

type reviewEntry struct {
	mu    sync.Mutex
	state types.SpacedRepetitionState
}

// The states map is a load-or-create arena: entries are never deleted within
// the process lifetime. The map mutex only guards membership; each entry
// carries its own lock so writers for one key never block other keys.
type spacedRepetitionService struct {
	log    *logger.Logger
	mu     sync.Mutex
	states map[reviewKey]*reviewEntry
	now    func() time.Time
}

func NewSpacedRepetitionService(log *logger.Logger) SpacedRepetitionService {
	return &spacedRepetitionService{
		log:    log.With("service", "SpacedRepetitionService"),
		states: make(map[reviewKey]*reviewEntry),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *spacedRepetitionService) entryFor(userID, exerciseID uuid.UUID) *reviewEntry {
	key := reviewKey{userID: userID, exerciseID: exerciseID}
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.states[key]
	if !ok {
		entry = &reviewEntry{
			state: types.SpacedRepetitionState{
				UserID:               userID,
				ExerciseID:           exerciseID,
				ConsecutiveSuccesses: 0,
				IntervalMultiplier:   1,
				NextReview:           s.now(),
			},
		}
		s.states[key] = entry
	}
	return entry
}

func (s *spacedRepetitionService) UpdateSpacedRepetition(userID, exerciseID uuid.UUID, success bool) types.SpacedRepetitionState {
	if userID == uuid.Nil || exerciseID == uuid.Nil {
		return types.SpacedRepetitionState{}
	}
	entry := s.entryFor(userID, exerciseID)

	entry.mu.Lock()
	defer entry.mu.Unlock()
	now := s.now()
	if success {
		entry.state.ConsecutiveSuccesses++
		entry.state.IntervalMultiplier *= 2
	} else {
		entry.state.ConsecutiveSuccesses = 0
		entry.state.IntervalMultiplier = 1
	}
	entry.state.LastAttempt = now
	entry.state.NextReview = now.Add(time.Duration(float64(reviewBaseInterval) * entry.state.IntervalMultiplier))
	return entry.state
}

func (s *spacedRepetitionService) GetDueForReview(userID uuid.UUID, limit int) []types.SpacedRepetitionState {
	// Always hand back a non-nil slice so callers serialize an empty list
	// rather than null.
	if userID == uuid.Nil || limit <= 0 {
		return []types.SpacedRepetitionState{}
	}
	now := s.now()

	s.mu.Lock()
	entries := make([]*reviewEntry, 0, len(s.states))
	for key, entry := range s.states {
		if key.userID == userID {
			entries = append(entries, entry)
		}
	}
	s.mu.Unlock()

	due := make([]types.SpacedRepetitionState, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		state := entry.state
		entry.mu.Unlock()
		if !state.NextReview.After(now) {
			due = append(due, state)
		}
	}

	// Map iteration order is random; sort by urgency so truncation is
	// deterministic.
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].NextReview.Equal(due[j].NextReview) {
			return due[i].ExerciseID.String() < due[j].ExerciseID.String()
		}
		return due[i].NextReview.Before(due[j].NextReview)
	})
	if len(due) > limit {
		due = due[:limit]
	}
	return due
}
