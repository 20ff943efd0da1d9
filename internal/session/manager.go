package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/mindengage-qbank/internal/bank"
	"github.com/mind-engage/mindengage-qbank/internal/grading"
	"github.com/mind-engage/mindengage-qbank/internal/logger"
	"github.com/mind-engage/mindengage-qbank/internal/pool"
	syncx "github.com/mind-engage/mindengage-qbank/internal/sync"
)

// Drawer supplies the questions of a new session. *pool.Selector satisfies it.
type Drawer interface {
	DrawRandom(ctx context.Context, scope bank.Scope, count pool.Count) ([]bank.Question, error)
}

type EventAppender interface {
	Append(ctx context.Context, e syncx.Event) error
}

// Manager runs sessions on top of a Store. Every mutation loads the session
// under its exclusive lease, applies one state machine step and writes the
// session back before releasing.
type Manager struct {
	drawer     Drawer
	store      Store
	leases     *LeaseSigner
	events     EventAppender
	log        *logger.Logger
	sessionTTL time.Duration
	leaseTTL   time.Duration
	now        func() time.Time
}

type ManagerOption func(*Manager)

func WithEvents(e EventAppender) ManagerOption { return func(m *Manager) { m.events = e } }

func WithLogger(l *logger.Logger) ManagerOption { return func(m *Manager) { m.log = l } }

func WithTTL(session, lease time.Duration) ManagerOption {
	return func(m *Manager) {
		if session > 0 {
			m.sessionTTL = session
		}
		if lease > 0 {
			m.leaseTTL = lease
		}
	}
}

func WithClock(now func() time.Time) ManagerOption { return func(m *Manager) { m.now = now } }

func NewManager(drawer Drawer, store Store, leases *LeaseSigner, opts ...ManagerOption) *Manager {
	m := &Manager{
		drawer:     drawer,
		store:      store,
		leases:     leases,
		log:        logger.Nop(),
		sessionTTL: 2 * time.Hour,
		leaseTTL:   30 * time.Second,
		now:        time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	m.log = m.log.With("component", "session")
	return m
}

// Start draws a fresh exam and returns its first view with the lease token
// that authorizes later mutations.
func (m *Manager) Start(ctx context.Context, scope bank.Scope, count pool.Count, mode Mode) (View, string, error) {
	qs, err := m.drawer.DrawRandom(ctx, scope, count)
	if err != nil {
		return View{}, "", err
	}
	if len(qs) == 0 {
		return View{}, "", fmt.Errorf("scope %s has no question with a correct answer: %w", scope, ErrNoExamPossible)
	}
	s := newSession(uuid.NewString(), mode, scope, count, qs, m.now())
	if err := m.store.Put(ctx, s, m.sessionTTL); err != nil {
		return View{}, "", err
	}
	token, err := m.leases.Issue(s.ID, m.sessionTTL)
	if err != nil {
		return View{}, "", fmt.Errorf("issue lease: %w", err)
	}
	m.log.Info("session started", "session_id", s.ID, "mode", mode, "scope", scope.String(), "questions", len(qs))
	return s.View(), token, nil
}

func (m *Manager) Get(ctx context.Context, id string) (View, error) {
	s, err := m.store.Get(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.View(), nil
}

// Navigate moves a deferred session to question index.
func (m *Manager) Navigate(ctx context.Context, id, lease string, index int) (View, error) {
	return m.viewAfter(ctx, id, lease, func(s *Session) error {
		d, err := deferredOf(s)
		if err != nil {
			return err
		}
		return d.Goto(index)
	})
}

// Step moves a deferred session one question forward or back.
func (m *Manager) Step(ctx context.Context, id, lease string, forward bool) (View, error) {
	return m.viewAfter(ctx, id, lease, func(s *Session) error {
		d, err := deferredOf(s)
		if err != nil {
			return err
		}
		if forward {
			return d.Next()
		}
		return d.Prev()
	})
}

func (m *Manager) Choose(ctx context.Context, id, lease string, questionID, optionID int64) (View, error) {
	return m.viewAfter(ctx, id, lease, func(s *Session) error {
		d, err := deferredOf(s)
		if err != nil {
			return err
		}
		return d.Choose(questionID, optionID)
	})
}

func (m *Manager) Clear(ctx context.Context, id, lease string, questionID int64) (View, error) {
	return m.viewAfter(ctx, id, lease, func(s *Session) error {
		d, err := deferredOf(s)
		if err != nil {
			return err
		}
		return d.Clear(questionID)
	})
}

// Submit closes a deferred session and grades it.
func (m *Manager) Submit(ctx context.Context, id, lease string) (grading.Report, error) {
	s, err := m.mutate(ctx, id, lease, func(s *Session) error {
		d, err := deferredOf(s)
		if err != nil {
			return err
		}
		res, err := d.Submit(m.now())
		if err != nil {
			return err
		}
		rep := grading.Grade(res)
		s.Report = &rep
		return nil
	})
	if err != nil {
		return grading.Report{}, err
	}
	return *s.Report, nil
}

// Answer judges the current instant question. The returned view carries
// the feedback.
func (m *Manager) Answer(ctx context.Context, id, lease string, optionID int64) (View, error) {
	return m.viewAfter(ctx, id, lease, func(s *Session) error {
		in, err := instantOf(s)
		if err != nil {
			return err
		}
		_, err = in.Select(optionID)
		return err
	})
}

// Advance leaves instant feedback; after the last question the view carries
// the report.
func (m *Manager) Advance(ctx context.Context, id, lease string) (View, error) {
	return m.viewAfter(ctx, id, lease, func(s *Session) error {
		in, err := instantOf(s)
		if err != nil {
			return err
		}
		res, err := in.Advance(m.now())
		if err != nil {
			return err
		}
		if res != nil {
			rep := grading.Grade(*res)
			s.Report = &rep
		}
		return nil
	})
}

func (m *Manager) viewAfter(ctx context.Context, id, lease string, fn func(*Session) error) (View, error) {
	s, err := m.mutate(ctx, id, lease, fn)
	if err != nil {
		return View{}, err
	}
	return s.View(), nil
}

func (m *Manager) mutate(ctx context.Context, id, lease string, fn func(*Session) error) (*Session, error) {
	if err := m.leases.Verify(lease, id); err != nil {
		return nil, err
	}
	holder := uuid.NewString()
	if err := m.store.Acquire(ctx, id, holder, m.leaseTTL); err != nil {
		return nil, err
	}
	defer func() {
		// Release even when the request context is already cancelled.
		if err := m.store.Release(context.WithoutCancel(ctx), id, holder); err != nil {
			m.log.Warn("lease release failed", "session_id", id, "error", err)
		}
	}()

	s, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	done := s.Done()
	if err := fn(s); err != nil {
		return nil, err
	}
	ttl := m.remaining(s)
	if ttl <= 0 {
		return nil, fmt.Errorf("session %s expired: %w", id, ErrSessionNotFound)
	}
	if err := m.store.Put(ctx, s, ttl); err != nil {
		return nil, err
	}
	if !done && s.Done() {
		m.completed(ctx, s)
	}
	return s, nil
}

// remaining is how long s may still be stored. Expiry is fixed at start so
// the stored session never outlives the lease token issued with it.
func (m *Manager) remaining(s *Session) time.Duration {
	return s.CreatedAt.Add(m.sessionTTL).Sub(m.now())
}

func (m *Manager) completed(ctx context.Context, s *Session) {
	rep := s.Report
	m.log.Info("session completed", "session_id", s.ID, "mode", s.Mode,
		"correct", rep.CorrectCount, "total", rep.TotalCount, "percentage", rep.Percentage, "band", rep.Band)
	if m.events == nil {
		return
	}
	ev, err := syncx.NewEvent("SessionCompleted", "session:"+s.ID, map[string]any{
		"mode":       s.Mode,
		"scope":      s.Scope.String(),
		"correct":    rep.CorrectCount,
		"total":      rep.TotalCount,
		"percentage": rep.Percentage,
		"band":       rep.Band,
	})
	if err == nil {
		err = m.events.Append(ctx, ev)
	}
	if err != nil {
		m.log.Warn("event append failed", "type", "SessionCompleted", "session_id", s.ID, "error", err)
	}
}

func deferredOf(s *Session) (*Deferred, error) {
	if s.Deferred == nil {
		return nil, fmt.Errorf("session %s is %s: %w", s.ID, s.Mode, ErrTransition)
	}
	return s.Deferred, nil
}

func instantOf(s *Session) (*Instant, error) {
	if s.Instant == nil {
		return nil, fmt.Errorf("session %s is %s: %w", s.ID, s.Mode, ErrTransition)
	}
	return s.Instant, nil
}
