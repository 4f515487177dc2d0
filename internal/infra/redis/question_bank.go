package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"strconv"
	"time"

	"eduquiz-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// QuestionSetLoader fetches stored question sets from a backing store.
type QuestionSetLoader interface {
	LoadQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error)
}

// QuestionBank caches question sets in Redis (hash per set) and falls
// back to a loader on cache miss. Questions are stored as:
// HSET qset:{setID} {index} {question JSON}
type QuestionBank struct {
	client *redis.Client
	loader QuestionSetLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewQuestionBank(client *redis.Client, loader QuestionSetLoader, ttl time.Duration) *QuestionBank {
	return &QuestionBank{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (b *QuestionBank) GetQuestionSet(ctx context.Context, setID string) (domain.QuestionSet, error) {
	key := b.key(setID)

	fields, err := b.client.HGetAll(ctx, key).Result()
	if err == nil && len(fields) > 0 {
		return buildSetFromCache(setID, fields)
	}

	result, err, _ := b.sf.Do(setID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		fields, err := b.client.HGetAll(ctx, key).Result()
		if err == nil && len(fields) > 0 {
			cached, err := buildSetFromCache(setID, fields)
			if err != nil {
				return domain.QuestionSet{}, err
			}
			return cached, nil
		}

		set, err := b.loader.LoadQuestionSet(ctx, setID)
		if err != nil {
			return domain.QuestionSet{}, err
		}

		ttl := b.ttlWithJitter()
		pipe := b.client.Pipeline()
		for i, q := range set.Questions {
			raw, err := json.Marshal(q)
			if err != nil {
				return domain.QuestionSet{}, err
			}
			pipe.HSet(ctx, key, strconv.Itoa(i), raw)
		}
		if ttl > 0 {
			pipe.Expire(ctx, key, ttl)
		}
		_, _ = pipe.Exec(ctx)

		return set, nil
	})
	if err != nil {
		return domain.QuestionSet{}, err
	}
	return result.(domain.QuestionSet), nil
}

func (b *QuestionBank) key(setID string) string {
	return "qset:" + setID
}

func buildSetFromCache(setID string, fields map[string]string) (domain.QuestionSet, error) {
	questions := make([]domain.Question, len(fields))
	for field, raw := range fields {
		i, err := strconv.Atoi(field)
		if err != nil || i < 0 || i >= len(questions) {
			return domain.QuestionSet{}, domain.ErrQuestionSetNotFound
		}
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			return domain.QuestionSet{}, err
		}
		questions[i] = q
	}
	return domain.QuestionSet{ID: setID, Questions: questions}, nil
}

func (b *QuestionBank) ttlWithJitter() time.Duration {
	if b.ttl <= 0 {
		return 0
	}
	jitterMax := int64(b.ttl) / 10
	return b.ttl + time.Duration(b.rnd.Int63n(jitterMax+1))
}
