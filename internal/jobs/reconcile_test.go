package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chatvault/server-go/internal/model"
	"github.com/chatvault/server-go/internal/service"
)

type fakeSessionRepo struct {
	active  []model.Session
	listErr error
}

func (f *fakeSessionRepo) FindByUserID(ctx context.Context, userID string) (*model.Session, error) {
	return nil, nil
}

func (f *fakeSessionRepo) ListActive(ctx context.Context) ([]model.Session, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.active, nil
}

func (f *fakeSessionRepo) Upsert(ctx context.Context, params model.UpsertSessionParams) (*model.Session, error) {
	return nil, nil
}

func (f *fakeSessionRepo) SetActive(ctx context.Context, userID string, active bool) error {
	return nil
}

func (f *fakeSessionRepo) Delete(ctx context.Context, userID string) error {
	return nil
}

type fakeChecker struct {
	mu      sync.Mutex
	ready   map[string]bool
	checked []string
	err     error
}

func (f *fakeChecker) IsReady(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ready[userID]
}

func (f *fakeChecker) CheckExistingSession(ctx context.Context, userID string) (*service.ExistingSessionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checked = append(f.checked, userID)
	if f.err != nil {
		return nil, f.err
	}
	return &service.ExistingSessionResult{HasSession: true, Connected: true}, nil
}

func (f *fakeChecker) checkedUsers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.checked...)
}

func activeSessions(userIDs ...string) []model.Session {
	sessions := make([]model.Session, 0, len(userIDs))
	for _, id := range userIDs {
		sessions = append(sessions, model.Session{UserID: id, Active: true})
	}
	return sessions
}

func TestReconcileJob(t *testing.T) {
	t.Run("reconnects only sessions that are not live", func(t *testing.T) {
		repo := &fakeSessionRepo{active: activeSessions("user-1", "user-2", "user-3")}
		checker := &fakeChecker{ready: map[string]bool{"user-2": true}}

		job := NewReconcileJob(repo, checker, time.Hour, 2)
		job.reconcile()

		assert.ElementsMatch(t, []string{"user-1", "user-3"}, checker.checkedUsers())
	})

	t.Run("does nothing when every session is live", func(t *testing.T) {
		repo := &fakeSessionRepo{active: activeSessions("user-1", "user-2")}
		checker := &fakeChecker{ready: map[string]bool{"user-1": true, "user-2": true}}

		job := NewReconcileJob(repo, checker, time.Hour, 2)
		job.reconcile()

		assert.Empty(t, checker.checkedUsers())
	})

	t.Run("a listing failure skips the pass", func(t *testing.T) {
		repo := &fakeSessionRepo{listErr: errors.New("db down")}
		checker := &fakeChecker{}

		job := NewReconcileJob(repo, checker, time.Hour, 2)
		job.reconcile()

		assert.Empty(t, checker.checkedUsers())
	})

	t.Run("a failing check does not stop the others", func(t *testing.T) {
		repo := &fakeSessionRepo{active: activeSessions("user-1", "user-2", "user-3")}
		checker := &fakeChecker{err: errors.New("connect failed")}

		job := NewReconcileJob(repo, checker, time.Hour, 1)
		job.reconcile()

		assert.Len(t, checker.checkedUsers(), 3)
	})

	t.Run("runs a pass immediately on start", func(t *testing.T) {
		repo := &fakeSessionRepo{active: activeSessions("user-1")}
		checker := &fakeChecker{}

		job := NewReconcileJob(repo, checker, time.Hour, 2)
		job.Start()
		defer job.Stop()

		assert.Eventually(t, func() bool {
			return len(checker.checkedUsers()) == 1
		}, 2*time.Second, 5*time.Millisecond)
	})

	t.Run("clamps non-positive concurrency", func(t *testing.T) {
		job := NewReconcileJob(&fakeSessionRepo{}, &fakeChecker{}, time.Hour, 0)

		assert.Equal(t, 1, job.concurrency)
	})
}
