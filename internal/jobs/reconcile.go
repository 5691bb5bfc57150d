package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/chatvault/server-go/internal/repository"
	"github.com/chatvault/server-go/internal/service"
)

// A reconcile pass may re-run full initializations, so it gets a deadline
// well above the per-session init timeout.
const reconcilePassTimeout = 10 * time.Minute

type sessionChecker interface {
	IsReady(userID string) bool
	CheckExistingSession(ctx context.Context, userID string) (*service.ExistingSessionResult, error)
}

// ReconcileJob reconnects sessions whose stored record says active but whose
// live connection is gone, e.g. after a server restart.
type ReconcileJob struct {
	sessionRepo repository.SessionRepository
	checker     sessionChecker
	interval    time.Duration
	concurrency int
	done        chan struct{}
}

func NewReconcileJob(
	sessionRepo repository.SessionRepository,
	checker sessionChecker,
	interval time.Duration,
	concurrency int,
) *ReconcileJob {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ReconcileJob{
		sessionRepo: sessionRepo,
		checker:     checker,
		interval:    interval,
		concurrency: concurrency,
		done:        make(chan struct{}),
	}
}

func (j *ReconcileJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("reconcile job started")
}

func (j *ReconcileJob) Stop() {
	close(j.done)
	log.Info().Msg("reconcile job stopped")
}

func (j *ReconcileJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.reconcile()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.reconcile()
		}
	}
}

func (j *ReconcileJob) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), reconcilePassTimeout)
	defer cancel()

	records, err := j.sessionRepo.ListActive(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list active sessions")
		return
	}

	var stale []string
	for _, record := range records {
		if !j.checker.IsReady(record.UserID) {
			stale = append(stale, record.UserID)
		}
	}
	if len(stale) == 0 {
		return
	}

	log.Info().Int("count", len(stale)).Msg("reconnecting stale sessions")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.concurrency)
	for _, userID := range stale {
		userID := userID
		g.Go(func() error {
			result, err := j.checker.CheckExistingSession(gctx, userID)
			if err != nil {
				log.Error().Err(err).Str("userId", userID).Msg("reconcile check failed")
				return nil
			}
			if !result.Connected {
				log.Warn().Str("userId", userID).Msg("session could not be reconnected")
			}
			return nil
		})
	}
	// Workers handle their own failures; one stuck session must not stop
	// the others.
	_ = g.Wait()
}
