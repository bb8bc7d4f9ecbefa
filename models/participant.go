package models

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// ParticipantStatus tracks identification and validation of a registration slot.
type ParticipantStatus string

const (
	StatusPendingIdentification ParticipantStatus = "PENDENTE_IDENTIFICACAO"
	StatusIdentified            ParticipantStatus = "IDENTIFICADA"
	StatusValidated             ParticipantStatus = "VALIDADA"
	StatusBlocked               ParticipantStatus = "BLOQUEADA"
)

// IsValid checks if the status is a known ParticipantStatus.
func (s ParticipantStatus) IsValid() bool {
	switch s {
	case StatusPendingIdentification, StatusIdentified, StatusValidated, StatusBlocked:
		return true
	}
	return false
}

// CanTransitionTo reports whether the participant state machine allows s -> target.
// Re-identification (IDENTIFICADA -> IDENTIFICADA) is an edit and is allowed.
func (s ParticipantStatus) CanTransitionTo(target ParticipantStatus) bool {
	if target == StatusBlocked {
		return s.IsValid()
	}
	switch s {
	case StatusPendingIdentification:
		return target == StatusIdentified
	case StatusIdentified:
		return target == StatusIdentified || target == StatusValidated
	}
	return false
}

// PickupEligible reports whether kit pickup and bib assignment accept this status.
func (s ParticipantStatus) PickupEligible() bool {
	return s == StatusIdentified || s == StatusValidated
}

// KitStatus is the counter pickup state of a participant's kit.
type KitStatus string

const (
	KitPending   KitStatus = "pendente"
	KitWithdrawn KitStatus = "retirado"
)

// AthleteProfile is the snapshot of the athlete bound to a registration slot.
type AthleteProfile struct {
	FullName       string `json:"fullName"`
	DocumentNumber string `json:"documentNumber"`
	Email          string `json:"email"`
	Phone          string `json:"phone,omitempty"`
	BirthDate      string `json:"birthDate,omitempty"`
	Gender         string `json:"gender,omitempty"`
	TeamName       string `json:"teamName,omitempty"`
}

// KitPickup records who handed over a kit and to whom.
type KitPickup struct {
	WithdrawnAt     time.Time `json:"withdrawnAt"`
	AgentID         string    `json:"agentId,omitempty"`
	AgentName       string    `json:"agentName,omitempty"`
	ResponsibleName string    `json:"responsibleName,omitempty"`
	Observation     string    `json:"observation,omitempty"`
	SelfService     bool      `json:"selfService"`
}

// Participant is one purchased registration slot.
type Participant struct {
	bun.BaseModel `bun:"table:participants,alias:p"`

	ID          string            `bun:"id,pk,type:uuid" json:"id"`
	RaceID      string            `bun:"race_id,notnull,type:uuid" json:"raceId"`
	OrderID     string            `bun:"order_id,notnull,type:uuid" json:"orderId"`
	UserID      string            `bun:"user_id,notnull" json:"userId"`
	Modality    string            `bun:"modality,notnull" json:"modality"`
	Status      ParticipantStatus `bun:"status,notnull" json:"status"`
	UserProfile *AthleteProfile   `bun:"user_profile,type:jsonb" json:"userProfile,omitempty"`
	BibNumber   *string           `bun:"bib_number" json:"bibNumber,omitempty"`
	KitStatus   KitStatus         `bun:"kit_status,notnull,default:'pendente'" json:"kitStatus"`
	KitPickup   *KitPickup        `bun:"kit_pickup,type:jsonb" json:"kitPickup,omitempty"`
	ShirtSize   string            `bun:"shirt_size" json:"shirtSize,omitempty"`
	KitType     string            `bun:"kit_type" json:"kitType,omitempty"`
	BlockReason *string           `bun:"block_reason" json:"blockReason,omitempty"`
	CreatedAt   time.Time         `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time         `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// FullName returns the athlete name, or an empty string before identification.
func (p *Participant) FullName() string {
	if p.UserProfile == nil {
		return ""
	}
	return p.UserProfile.FullName
}

// Identify binds an athlete profile to the slot. Bib number and kit state are kept.
func (p *Participant) Identify(profile AthleteProfile, shirtSize string, now time.Time) error {
	if !p.Status.CanTransitionTo(StatusIdentified) {
		return NewDomainError(CodeInvalidTransition,
			fmt.Sprintf("a inscrição %s não pode ser identificada no status %s", p.ID, p.Status))
	}
	p.Status = StatusIdentified
	p.UserProfile = &profile
	p.ShirtSize = shirtSize
	p.UpdatedAt = now
	return nil
}

// Validate marks an identified participant as checked by staff.
func (p *Participant) Validate(now time.Time) error {
	if !p.Status.CanTransitionTo(StatusValidated) {
		return NewDomainError(CodeInvalidTransition,
			fmt.Sprintf("a inscrição %s não pode ser validada no status %s", p.ID, p.Status))
	}
	p.Status = StatusValidated
	p.UpdatedAt = now
	return nil
}

// Block removes the participant from identification, bib assignment and pickup.
func (p *Participant) Block(reason string, now time.Time) error {
	if !p.Status.CanTransitionTo(StatusBlocked) {
		return NewDomainError(CodeInvalidTransition,
			fmt.Sprintf("a inscrição %s não pode ser bloqueada no status %s", p.ID, p.Status))
	}
	p.Status = StatusBlocked
	p.BlockReason = &reason
	p.UpdatedAt = now
	return nil
}

// Withdraw performs the kit pickup transition on the in-memory value.
func (p *Participant) Withdraw(pickup KitPickup) error {
	if p.KitStatus == KitWithdrawn {
		return NewDomainError(CodeAlreadyClaimed, fmt.Sprintf("o kit de %s já foi retirado", p.displayName()))
	}
	if !p.Status.PickupEligible() {
		return NewDomainError(CodeIneligible,
			fmt.Sprintf("a inscrição de %s está com status %s e não pode retirar o kit", p.displayName(), p.Status))
	}
	p.KitStatus = KitWithdrawn
	p.KitPickup = &pickup
	p.UpdatedAt = pickup.WithdrawnAt
	return nil
}

func (p *Participant) displayName() string {
	if name := p.FullName(); name != "" {
		return name
	}
	return p.ID
}
