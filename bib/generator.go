// Package bib assigns race-day bib numbers. Generation is one-shot per race and
// runs in a single transaction so a failure leaves no partial numbering behind.
package bib

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/raceops/events"
	"github.com/padraicbc/raceops/models"
	"github.com/padraicbc/raceops/store"
)

// Result summarizes a generation run.
type Result struct {
	RaceID      string         `json:"raceId"`
	Assigned    int            `json:"assignedCount"`
	PerModality map[string]int `json:"perModality"`
	Assignments []Assignment   `json:"assignments"`
}

// Generator runs bib generation against the repository.
type Generator struct {
	repo    store.Repository
	events  events.Publisher
	log     *zap.Logger
	retries int
	wait    time.Duration
	now     func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithRetries sets how many times a transaction aborted by a concurrent writer is
// attempted before giving up.
func WithRetries(n int, wait time.Duration) Option {
	return func(g *Generator) {
		if n > 0 {
			g.retries = n
		}
		g.wait = wait
	}
}

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

func WithEvents(pub events.Publisher) Option {
	return func(g *Generator) { g.events = pub }
}

func NewGenerator(repo store.Repository, log *zap.Logger, opts ...Option) *Generator {
	g := &Generator{
		repo:    repo,
		events:  events.Discard{},
		log:     log,
		retries: 5,
		wait:    100 * time.Millisecond,
		now:     time.Now,
	}
	if g.log == nil {
		g.log = zap.NewNop()
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate assigns bibs to every IDENTIFICADA or VALIDADA participant of the race.
// It fails with MissingPrefix, PrefixConflict, AlreadyGenerated or
// NothingToGenerate without writing anything.
func (g *Generator) Generate(ctx context.Context, raceID string) (*Result, error) {
	var (
		res *Result
		err error
	)
	for attempt := 1; attempt <= g.retries; attempt++ {
		res, err = g.generateOnce(ctx, raceID)
		if err == nil || !store.IsRetryable(err) {
			break
		}
		g.log.Warn("bib generation aborted, retrying",
			zap.String("race_id", raceID), zap.Int("attempt", attempt), zap.Error(err))
		if attempt == g.retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.wait):
		}
	}
	if err != nil {
		return nil, err
	}

	g.log.Info("bibs generated", zap.String("race_id", raceID), zap.Int("assigned", res.Assigned))
	g.events.Publish(events.Event{Type: events.BibsGenerated, RaceID: raceID, EntityID: raceID})
	return res, nil
}

// plan checks the generation preconditions for race and computes the
// assignments. getRace decides whether the race row is locked.
func (g *Generator) plan(ctx context.Context, raceID string, getRace func(context.Context, string) (*models.Race, error)) ([]Assignment, error) {
	race, err := getRace(ctx, raceID)
	if err != nil {
		return nil, err
	}
	prefixes, err := race.BibPrefixes()
	if err != nil {
		return nil, err
	}
	assigned, err := g.repo.CountAssignedBibs(ctx, raceID)
	if err != nil {
		return nil, err
	}
	if assigned > 0 {
		return nil, models.NewDomainError(models.CodeAlreadyGenerated,
			fmt.Sprintf("a numeração da corrida %s já foi gerada (%d números atribuídos)", race.Name, assigned))
	}

	eligible, err := g.repo.ListParticipants(ctx, store.ParticipantFilter{
		RaceID:   raceID,
		Statuses: []models.ParticipantStatus{models.StatusIdentified, models.StatusValidated},
	})
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, models.NewDomainError(models.CodeNothingToGenerate,
			fmt.Sprintf("a corrida %s não tem participantes identificados", race.Name))
	}
	return Plan(prefixes, eligible)
}

// Preview returns the assignments Generate would make, without writing.
func (g *Generator) Preview(ctx context.Context, raceID string) ([]Assignment, error) {
	return g.plan(ctx, raceID, g.repo.GetRace)
}

func (g *Generator) generateOnce(ctx context.Context, raceID string) (*Result, error) {
	var res *Result
	err := g.repo.InTx(ctx, func(ctx context.Context) error {
		plan, err := g.plan(ctx, raceID, g.repo.GetRaceForUpdate)
		if err != nil {
			return err
		}
		now := g.now()
		res = &Result{RaceID: raceID, PerModality: map[string]int{}, Assignments: plan}
		for _, a := range plan {
			ok, err := g.repo.AssignBib(ctx, a.ParticipantID, a.Bib, now)
			if err != nil {
				return err
			}
			if !ok {
				return models.NewDomainError(models.CodeConcurrencyConflict,
					fmt.Sprintf("a inscrição %s recebeu número durante a geração", a.ParticipantID))
			}
			res.Assigned++
			res.PerModality[a.Modality]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SetPrefixes stores the per-modality prefixes of a race. Prefixes are frozen once
// any bib has been assigned.
func (g *Generator) SetPrefixes(ctx context.Context, raceID string, prefixes map[string]int) (*models.Race, error) {
	var race *models.Race
	err := g.repo.InTx(ctx, func(ctx context.Context) error {
		var err error
		if race, err = g.repo.GetRaceForUpdate(ctx, raceID); err != nil {
			return err
		}
		assigned, err := g.repo.CountAssignedBibs(ctx, raceID)
		if err != nil {
			return err
		}
		if assigned > 0 {
			return models.NewDomainError(models.CodeAlreadyGenerated,
				fmt.Sprintf("a numeração da corrida %s já foi gerada; os prefixos não podem mais ser alterados", race.Name))
		}

		for modality := range prefixes {
			if _, ok := race.Option(modality); !ok {
				return models.NewDomainError(models.CodeInvalidInput,
					fmt.Sprintf("a corrida %s não tem a modalidade %s", race.Name, modality))
			}
		}
		owner := map[int]string{}
		for i, o := range race.Options {
			if p, ok := prefixes[o.Distance]; ok {
				if p <= 0 {
					return models.NewDomainError(models.CodeInvalidInput,
						fmt.Sprintf("o prefixo da modalidade %s deve ser positivo", o.Distance))
				}
				race.Options[i].BibPrefix = &p
			}
			if race.Options[i].BibPrefix == nil {
				continue
			}
			prefix := *race.Options[i].BibPrefix
			if other, dup := owner[prefix]; dup {
				return models.NewDomainError(models.CodePrefixConflict,
					fmt.Sprintf("as modalidades %s e %s usam o mesmo prefixo %d", other, o.Distance, prefix))
			}
			owner[prefix] = o.Distance
		}
		race.UpdatedAt = g.now()
		return g.repo.UpdateRaceOptions(ctx, race)
	})
	if err != nil {
		return nil, err
	}
	g.log.Info("bib prefixes updated", zap.String("race_id", raceID), zap.Any("prefixes", prefixes))
	return race, nil
}
