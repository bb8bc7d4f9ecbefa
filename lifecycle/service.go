// Package lifecycle enforces the participant status machine (identify, validate,
// block) and the home-delivery status machine of orders.
package lifecycle

import (
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/raceops/events"
	"github.com/padraicbc/raceops/labels"
	"github.com/padraicbc/raceops/notify"
	"github.com/padraicbc/raceops/store"
)

// Options tune the lifecycle rules.
type Options struct {
	// AllowEditAfterClose lets an IDENTIFICADA participant edit the profile after
	// the race closed. First-time identification after closure is always refused.
	AllowEditAfterClose bool
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Service runs lifecycle transitions against the repository. Every transition is
// one repository transaction; events and emails go out after commit.
type Service struct {
	repo   store.Repository
	events events.Publisher
	mail   notify.Notifier
	labels *labels.Builder
	log    *zap.Logger
	opts   Options
}

func New(repo store.Repository, pub events.Publisher, mail notify.Notifier, lb *labels.Builder, log *zap.Logger, opts Options) *Service {
	if pub == nil {
		pub = events.Discard{}
	}
	if mail == nil {
		mail = notify.Discard{}
	}
	if lb == nil {
		lb = labels.New("")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{repo: repo, events: pub, mail: mail, labels: lb, log: log, opts: opts}
}

func (s *Service) now() time.Time {
	return s.opts.Now()
}
