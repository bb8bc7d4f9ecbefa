// Package store persists races, participants and orders. The Repository interface
// is what the services depend on; BunStore implements it on PostgreSQL and
// memstore implements it in memory for tests.
package store

import (
	"context"
	"time"

	"github.com/padraicbc/raceops/models"
)

// LookupField is a participant attribute the kit validator can match on.
type LookupField int

const (
	ByID LookupField = iota
	ByBibNumber
	ByDocumentNumber
	ByFullName
	ByEmail
)

// ParticipantFilter narrows ListParticipants. Zero values are ignored.
type ParticipantFilter struct {
	RaceID   string
	OrderID  string
	UserID   string
	Modality string
	Statuses []models.ParticipantStatus
	IDs      []string
}

// StatusCount is one row of the per-race status read model.
type StatusCount struct {
	Status    models.ParticipantStatus `bun:"status" json:"status"`
	KitStatus models.KitStatus         `bun:"kit_status" json:"kitStatus"`
	Count     int                      `bun:"count" json:"count"`
}

// Repository is the entity store used by the services. Every method joins the
// transaction carried by ctx when called inside InTx.
type Repository interface {
	// InTx runs fn in a transaction. The transaction is committed when fn returns
	// nil and rolled back otherwise.
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	GetRace(ctx context.Context, id string) (*models.Race, error)
	GetRaceForUpdate(ctx context.Context, id string) (*models.Race, error)
	ListRaces(ctx context.Context) ([]models.Race, error)
	UpdateRaceOptions(ctx context.Context, race *models.Race) error

	GetParticipant(ctx context.Context, id string) (*models.Participant, error)
	GetParticipantForUpdate(ctx context.Context, id string) (*models.Participant, error)
	ListParticipants(ctx context.Context, f ParticipantFilter) ([]models.Participant, error)
	FindParticipants(ctx context.Context, raceID string, field LookupField, values ...string) ([]models.Participant, error)
	UpdateParticipant(ctx context.Context, p *models.Participant, columns ...string) error
	CountAssignedBibs(ctx context.Context, raceID string) (int, error)
	CountByStatus(ctx context.Context, raceID string) ([]StatusCount, error)
	// AssignBib sets the bib only while it is still null; it reports whether
	// the row was updated.
	AssignBib(ctx context.Context, participantID, bib string, now time.Time) (bool, error)
	// ClaimKit performs the pickup transition only if the kit is still pending and
	// the participant is pickup-eligible; it reports whether this call did it.
	ClaimKit(ctx context.Context, participantID string, pickup models.KitPickup) (bool, error)

	GetOrder(ctx context.Context, id string) (*models.Order, error)
	GetOrderForUpdate(ctx context.Context, id string) (*models.Order, error)
	FindOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	UpdateOrder(ctx context.Context, o *models.Order, columns ...string) error
	InsertDeliveryAttempt(ctx context.Context, a *models.DeliveryAttempt) error
	ListDeliveryAttempts(ctx context.Context, orderID string) ([]models.DeliveryAttempt, error)

	ListTeamMembers(ctx context.Context, ownerID string, ids []string) ([]models.TeamMember, error)

	ListCombos(ctx context.Context, raceID string) ([]models.Combo, error)
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	// RedeemCoupon increments the usage counter while it is below the limit.
	RedeemCoupon(ctx context.Context, id string) (bool, error)

	GetAutomationSetting(ctx context.Context, key string) (*models.AutomationSetting, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}
