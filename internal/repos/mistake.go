package repos

import (
	"context"
	"fmt"
	"sort"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/avocetlabs/fledge-backend/internal/platform/logger"
)

// MistakeRepo is the append-only, deduplicated list of common mistakes per
// exercise type. Redis sets give dedup-on-insert for free; results are sorted
// before returning because SMEMBERS order is unspecified.
type MistakeRepo interface {
	Record(ctx context.Context, exerciseType, mistake string) error
	List(ctx context.Context, exerciseType string) ([]string, error)
}

type mistakeRepo struct {
	log *logger.Logger
	rdb *goredis.Client
}

func NewMistakeRepo(rdb *goredis.Client, baseLog *logger.Logger) MistakeRepo {
	return &mistakeRepo{
		log: baseLog.With("repo", "MistakeRepo"),
		rdb: rdb,
	}
}

func (r *mistakeRepo) key(exerciseType string) string {
	return "fledge:mistakes:" + strings.TrimSpace(strings.ToLower(exerciseType))
}

func (r *mistakeRepo) Record(ctx context.Context, exerciseType, mistake string) error {
	if r.rdb == nil {
		return fmt.Errorf("redis unavailable")
	}
	exerciseType = strings.TrimSpace(exerciseType)
	mistake = strings.TrimSpace(mistake)
	if exerciseType == "" || mistake == "" {
		return nil
	}
	return r.rdb.SAdd(ctx, r.key(exerciseType), mistake).Err()
}

func (r *mistakeRepo) List(ctx context.Context, exerciseType string) ([]string, error) {
	if r.rdb == nil {
		return nil, fmt.Errorf("redis unavailable")
	}
	exerciseType = strings.TrimSpace(exerciseType)
	if exerciseType == "" {
		return nil, nil
	}
	out, err := r.rdb.SMembers(ctx, r.key(exerciseType)).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}
