// Package schedule triggers the periodic library report for every bound
// owner on a cron expression. The report handler itself decides whether the
// cached artifact is still fresh, so a tight schedule stays cheap.
package schedule

import (
	"context"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/PyuraMazo/galgame-box/pkg/command"
	"github.com/PyuraMazo/galgame-box/pkg/creds"
	"github.com/PyuraMazo/galgame-box/pkg/logger"
)

// Handler runs one command, same contract as the gateway's.
type Handler interface {
	Handle(ctx context.Context, cmd *command.Command) error
}

type Scheduler struct {
	expr     string
	creds    *creds.Store
	handler  Handler
	gron     *gronx.Gronx
	stop     chan struct{}
	stopOnce sync.Once
}

func New(expr string, store *creds.Store, handler Handler) *Scheduler {
	return &Scheduler{
		expr:    expr,
		creds:   store,
		handler: handler,
		gron:    gronx.New(),
		stop:    make(chan struct{}),
	}
}

// Start launches the cron loop. An empty expression disables scheduling; an
// invalid one is refused at startup instead of silently never firing.
func (s *Scheduler) Start(ctx context.Context) {
	if s.expr == "" {
		logger.InfoC("schedule", "periodic report disabled")
		return
	}
	if !s.gron.IsValid(s.expr) {
		logger.ErrorC("schedule", "invalid cron expression: "+s.expr)
		return
	}
	go s.loop(ctx)
}

func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Scheduler) loop(ctx context.Context) {
	// minute granularity matches the cron grammar
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			due, err := s.gron.IsDue(s.expr, time.Now())
			if err != nil || !due {
				continue
			}
			s.runAll(ctx)
		case <-s.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// runAll fires one report per bound owner, delivered to the chat the binding
// was made in. One owner's failure never blocks the rest.
func (s *Scheduler) runAll(ctx context.Context) {
	owners, err := s.creds.List()
	if err != nil {
		logger.ErrorC("schedule", "list bound owners: "+err.Error())
		return
	}

	for _, owner := range owners {
		rec, err := s.creds.Read(owner)
		if err != nil || !rec.Bound || rec.Channel == "" {
			continue
		}

		cmd := &command.Command{
			Kind:     command.KindReport,
			Channel:  rec.Channel,
			ChatID:   rec.ChatID,
			SenderID: owner,
		}
		if err := s.handler.Handle(ctx, cmd); err != nil {
			logger.WarnC("schedule", "report for "+owner+" failed: "+err.Error())
		}
	}
}
