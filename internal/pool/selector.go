package pool

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/mind-engage/mindengage-qbank/internal/bank"
	"github.com/mind-engage/mindengage-qbank/internal/logger"
)

// Source is the read side of the bank the selector draws from.
// *bank.SQLStore satisfies it.
type Source interface {
	CountEligible(ctx context.Context, scope bank.Scope) (int, error)
	SampleEligibleIDs(ctx context.Context, scope bank.Scope, n int) ([]int64, error)
	GetQuestion(ctx context.Context, id int64) (bank.Question, error)
}

// Selector assembles random exams from questions that have exactly one
// correct answer.
type Selector struct {
	src     Source
	log     *logger.Logger
	retries int
	backoff time.Duration

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

type Option func(*Selector)

// WithRand injects the source of randomness used for option order.
func WithRand(r *rand.Rand) Option { return func(s *Selector) { s.rng = r } }

// WithReadRetries sets how many times a failed store read is retried.
func WithReadRetries(n int) Option {
	return func(s *Selector) {
		if n >= 0 {
			s.retries = n
		}
	}
}

func WithRetryInterval(d time.Duration) Option { return func(s *Selector) { s.backoff = d } }

func WithLogger(l *logger.Logger) Option { return func(s *Selector) { s.log = l } }

func NewSelector(src Source, opts ...Option) *Selector {
	s := &Selector{
		src:     src,
		log:     logger.Nop(),
		retries: 2,
		backoff: 25 * time.Millisecond,
		rng:     rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64())),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = s.log.With("component", "pool")
	return s
}

func (s *Selector) CountEligible(ctx context.Context, scope bank.Scope) (int, error) {
	return retryRead(ctx, s, "count eligible", func() (int, error) {
		return s.src.CountEligible(ctx, scope)
	})
}

// DrawRandom returns min(count, eligible) distinct eligible questions with
// their options shuffled. An empty pool yields an empty slice.
func (s *Selector) DrawRandom(ctx context.Context, scope bank.Scope, count Count) ([]bank.Question, error) {
	eligible, err := s.CountEligible(ctx, scope)
	if err != nil {
		return nil, err
	}
	n := count.Resolve(eligible)
	if n == 0 {
		return []bank.Question{}, nil
	}
	ids, err := retryRead(ctx, s, "sample eligible", func() ([]int64, error) {
		return s.src.SampleEligibleIDs(ctx, scope, n)
	})
	if err != nil {
		return nil, err
	}

	out := make([]bank.Question, 0, len(ids))
	for _, id := range ids {
		q, err := retryRead(ctx, s, "get question", func() (bank.Question, error) {
			return s.src.GetQuestion(ctx, id)
		})
		// Edits between sampling and loading can delete a question or clear
		// its correct answer; such questions are left out of the exam.
		if errors.Is(err, bank.ErrNotFound) {
			s.log.Debug("sampled question vanished", "question_id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if !q.Eligible() {
			s.log.Debug("sampled question no longer eligible", "question_id", id)
			continue
		}
		s.shuffle(q.Options)
		out = append(out, q)
	}
	s.log.Debug("exam drawn", "scope", scope.String(), "requested", count.String(), "drawn", len(out))
	return out, nil
}

func (s *Selector) shuffle(opts []bank.AnswerOption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	Shuffle(s.rng, opts)
}

// retryRead retries op on ErrStore only. Every other error is permanent.
func retryRead[T any](ctx context.Context, s *Selector, what string, op func() (T, error)) (T, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.backoff
	eb.MaxInterval = 8 * s.backoff
	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !errors.Is(err, bank.ErrStore) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(eb),
		backoff.WithMaxTries(uint(s.retries+1)),
		backoff.WithNotify(func(err error, next time.Duration) {
			s.log.Warn("store read failed, retrying", "op", what, "retry_in", next, "error", err)
		}),
	)
}
