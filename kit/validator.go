// Package kit resolves pickup codes to participants and performs the at-most-once
// kit withdrawal, both for the self-service kiosk and the staff counter.
package kit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/raceops/events"
	"github.com/padraicbc/raceops/models"
	"github.com/padraicbc/raceops/store"
)

// Status classifies a resolved code.
type Status string

const (
	Valid     Status = "VALIDO"
	Withdrawn Status = "RETIRADO"
	Invalid   Status = "INVALIDO"
)

// Result is the outcome of a validation. Participant is nil when nothing matched.
type Result struct {
	Status      Status              `json:"status"`
	Participant *models.Participant `json:"participant"`
	Race        *models.Race        `json:"race,omitempty"`
	Reason      error               `json:"-"`
}

// Message is the operator-facing explanation of a non-valid result.
func (r *Result) Message() string {
	if r.Reason == nil {
		return ""
	}
	return r.Reason.Error()
}

// Confirmation carries the staff confirmation of a counter pickup.
type Confirmation struct {
	RaceID          string
	Agent           models.Agent
	ResponsibleName string
	Observation     string
}

// Validator resolves codes within one race.
type Validator struct {
	repo   store.Repository
	events events.Publisher
	log    *zap.Logger
	now    func() time.Time
}

func NewValidator(repo store.Repository, pub events.Publisher, log *zap.Logger) *Validator {
	if pub == nil {
		pub = events.Discard{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{repo: repo, events: pub, log: log, now: time.Now}
}

// WithClock replaces the clock used to stamp withdrawals.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// Validate resolves rawCode within raceID and classifies the participant. It never
// writes.
func (v *Validator) Validate(ctx context.Context, rawCode, raceID string) (*Result, error) {
	if strings.TrimSpace(rawCode) == "" {
		return nil, models.NewDomainError(models.CodeInvalidInput, "informe o código, número de peito, CPF, nome ou e-mail")
	}
	race, err := v.repo.GetRace(ctx, raceID)
	if err != nil {
		return nil, err
	}
	p, err := Resolve(ctx, v.repo, raceID, rawCode)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return &Result{
			Status: Invalid,
			Race:   race,
			Reason: models.NewDomainError(models.CodeNotFound,
				fmt.Sprintf("nenhuma inscrição encontrada para %q na corrida %s", strings.TrimSpace(rawCode), race.Name)),
		}, nil
	}
	return classify(p, race), nil
}

func classify(p *models.Participant, race *models.Race) *Result {
	res := &Result{Participant: p, Race: race}
	switch {
	case p.KitStatus == models.KitWithdrawn:
		res.Status = Withdrawn
		res.Reason = models.NewDomainError(models.CodeAlreadyClaimed, withdrawnMessage(p))
	case !p.Status.PickupEligible():
		res.Status = Invalid
		res.Reason = models.NewDomainError(models.CodeIneligible,
			fmt.Sprintf("a inscrição de %s está com status %s; pagamento ou identificação pendente", name(p), p.Status))
	default:
		res.Status = Valid
	}
	return res
}

func withdrawnMessage(p *models.Participant) string {
	if p.KitPickup != nil && !p.KitPickup.WithdrawnAt.IsZero() {
		return fmt.Sprintf("o kit de %s já foi retirado em %s", name(p), p.KitPickup.WithdrawnAt.Format("02/01/2006 15:04"))
	}
	return fmt.Sprintf("o kit de %s já foi retirado", name(p))
}

func name(p *models.Participant) string {
	if n := p.FullName(); n != "" {
		return n
	}
	return p.ID
}

// Redeem is the self-service flow: validate and, when VALIDO, withdraw the kit in
// one conditional write. A second redeem of the same kit reports RETIRADO and
// writes nothing.
func (v *Validator) Redeem(ctx context.Context, rawCode, raceID string) (*Result, error) {
	res, err := v.Validate(ctx, rawCode, raceID)
	if err != nil || res.Status != Valid {
		return res, err
	}

	pickup := models.KitPickup{WithdrawnAt: v.now(), SelfService: true}
	claimed, err := v.repo.ClaimKit(ctx, res.Participant.ID, pickup)
	if err != nil {
		return nil, err
	}
	if !claimed {
		p, err := v.repo.GetParticipant(ctx, res.Participant.ID)
		if err != nil {
			return nil, err
		}
		return classify(p, res.Race), nil
	}

	p := res.Participant
	p.KitStatus = models.KitWithdrawn
	p.KitPickup = &pickup
	p.UpdatedAt = pickup.WithdrawnAt
	v.withdrawn(p, pickup)
	return res, nil
}

// ConfirmWithdrawal is the staff flow: after a human checked the recipient, the kit
// is withdrawn, optionally on behalf of the athlete.
func (v *Validator) ConfirmWithdrawal(ctx context.Context, participantID string, c Confirmation) (*models.Participant, error) {
	p, err := v.repo.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if c.RaceID != "" && p.RaceID != c.RaceID {
		return nil, models.NewDomainError(models.CodeNotFound,
			fmt.Sprintf("a inscrição %s não pertence a esta corrida", participantID))
	}

	pickup := models.KitPickup{
		WithdrawnAt:     v.now(),
		AgentID:         c.Agent.ID,
		AgentName:       c.Agent.Name,
		ResponsibleName: strings.TrimSpace(c.ResponsibleName),
		Observation:     strings.TrimSpace(c.Observation),
	}
	claimed, err := v.repo.ClaimKit(ctx, p.ID, pickup)
	if err != nil {
		return nil, err
	}
	if !claimed {
		if p, err = v.repo.GetParticipant(ctx, participantID); err != nil {
			return nil, err
		}
		if err = p.Withdraw(pickup); err != nil {
			return nil, err
		}
		return nil, models.NewDomainError(models.CodeConcurrencyConflict,
			fmt.Sprintf("a inscrição de %s mudou durante a retirada; consulte novamente", name(p)))
	}

	p.KitStatus = models.KitWithdrawn
	p.KitPickup = &pickup
	p.UpdatedAt = pickup.WithdrawnAt
	v.withdrawn(p, pickup)
	return p, nil
}

func (v *Validator) withdrawn(p *models.Participant, pickup models.KitPickup) {
	v.log.Info("kit withdrawn",
		zap.String("participant_id", p.ID), zap.String("race_id", p.RaceID),
		zap.Bool("self_service", pickup.SelfService), zap.String("agent_id", pickup.AgentID))
	v.events.Publish(events.Event{Type: events.KitWithdrawn, RaceID: p.RaceID, EntityID: p.ID, Status: string(p.KitStatus)})
}
