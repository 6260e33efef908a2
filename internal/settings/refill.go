package settings

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/synapse-qa/synapse-backend/internal/logging"
)

// DefaultRefillSpec runs at midnight; the parser accepts a seconds field.
const DefaultRefillSpec = "0 0 0 * * *"

// RefillScheduler resets every stored credit counter on a cron schedule, which
// puts owners back on the default allowance.
type RefillScheduler struct {
	resetter Resetter
	spec     string
	cron     *cron.Cron
}

func NewRefillScheduler(resetter Resetter, spec string) *RefillScheduler {
	if spec == "" {
		spec = DefaultRefillSpec
	}
	return &RefillScheduler{resetter: resetter, spec: spec}
}

// Start registers the job and starts the scheduler in its own goroutine.
func (s *RefillScheduler) Start() error {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(s.spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return err
	}
	s.cron = c
	c.Start()
	logging.L().Infow("credit refill scheduled", "spec", s.spec)
	return nil
}

// Stop waits for a running job to finish.
func (s *RefillScheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// RunOnce performs one refill and returns how many counters were reset.
func (s *RefillScheduler) RunOnce(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := s.resetter.DeletePrefix(ctx, CreditsPrefix)
	if err != nil {
		logging.L().Errorw("credit refill failed", "error", err, "reset", n)
		return n
	}
	logging.L().Infow("credit refill completed", "reset", n)
	return n
}
