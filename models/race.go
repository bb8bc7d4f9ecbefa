package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// RaceStatus is the publication state chosen by the organizer.
type RaceStatus string

const (
	RaceDraft     RaceStatus = "draft"
	RacePublished RaceStatus = "published"
	RaceClosed    RaceStatus = "closed"
)

// IsValid checks if the status is a known RaceStatus.
func (s RaceStatus) IsValid() bool {
	switch s {
	case RaceDraft, RacePublished, RaceClosed:
		return true
	}
	return false
}

// Race is an event definition with one option per modality.
type Race struct {
	bun.BaseModel `bun:"table:races,alias:rc"`

	ID        string       `bun:"id,pk,type:uuid" json:"id"`
	Name      string       `bun:"name,notnull" json:"name"`
	Date      time.Time    `bun:"date,notnull" json:"date"`
	Location  string       `bun:"location,notnull" json:"location"`
	Capacity  *int         `bun:"capacity" json:"capacity,omitempty"`
	Status    RaceStatus   `bun:"status,notnull,default:'draft'" json:"status"`
	Options   []RaceOption `bun:"options,type:jsonb,notnull" json:"options"`
	Kit       KitConfig    `bun:"kit,type:jsonb,notnull" json:"kit"`
	CreatedAt time.Time    `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time    `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
}

// RaceOption is one modality (distance) of a race.
type RaceOption struct {
	Distance  string     `json:"distance"`
	BibPrefix *int       `json:"bibPrefix,omitempty"`
	Lots      []PriceLot `json:"lots"`
}

// PriceLot is a price valid inside an optional window.
type PriceLot struct {
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	ValidFrom  *time.Time      `json:"validFrom,omitempty"`
	ValidUntil *time.Time      `json:"validUntil,omitempty"`
}

// KitConfig holds kit pickup and home delivery settings.
type KitConfig struct {
	PickupLocation  string          `json:"pickupLocation,omitempty"`
	PickupStart     *time.Time      `json:"pickupStart,omitempty"`
	PickupEnd       *time.Time      `json:"pickupEnd,omitempty"`
	DeliveryEnabled bool            `json:"deliveryEnabled"`
	DeliveryFee     decimal.Decimal `json:"deliveryFee"`
	Items           []string        `json:"items,omitempty"`
}

// EffectiveStatus infers closure once the event date has passed, unless the race
// is still a draft.
func (r *Race) EffectiveStatus(now time.Time) RaceStatus {
	if r.Status == RaceDraft {
		return RaceDraft
	}
	if r.Status == RaceClosed || now.After(r.Date) {
		return RaceClosed
	}
	return r.Status
}

// IsClosed reports whether the race no longer accepts identification.
func (r *Race) IsClosed(now time.Time) bool {
	return r.EffectiveStatus(now) == RaceClosed
}

// Option returns the option for the given distance, if any.
func (r *Race) Option(distance string) (RaceOption, bool) {
	for _, o := range r.Options {
		if o.Distance == distance {
			return o, true
		}
	}
	return RaceOption{}, false
}

// BibPrefixes validates that every option carries a distinct prefix and returns
// them keyed by distance.
func (r *Race) BibPrefixes() (map[string]int, error) {
	prefixes := make(map[string]int, len(r.Options))
	owner := make(map[int]string, len(r.Options))
	for _, o := range r.Options {
		if o.BibPrefix == nil {
			return nil, NewDomainError(CodeMissingPrefix,
				fmt.Sprintf("a modalidade %s não tem prefixo de numeração configurado", o.Distance))
		}
		if *o.BibPrefix <= 0 {
			return nil, NewDomainError(CodeInvalidInput,
				fmt.Sprintf("prefixo inválido para a modalidade %s", o.Distance))
		}
		if other, dup := owner[*o.BibPrefix]; dup {
			return nil, NewDomainError(CodePrefixConflict,
				fmt.Sprintf("as modalidades %s e %s usam o mesmo prefixo %d", other, o.Distance, *o.BibPrefix))
		}
		owner[*o.BibPrefix] = o.Distance
		prefixes[o.Distance] = *o.BibPrefix
	}
	return prefixes, nil
}

// ActiveLot returns the first lot whose window contains now.
func (o RaceOption) ActiveLot(now time.Time) (PriceLot, bool) {
	for _, l := range o.Lots {
		if l.ValidFrom != nil && now.Before(*l.ValidFrom) {
			continue
		}
		if l.ValidUntil != nil && now.After(*l.ValidUntil) {
			continue
		}
		return l, true
	}
	return PriceLot{}, false
}

// MaxBibSequence is the largest sequence that fits the three-digit bib suffix.
const MaxBibSequence = 999

// FormatBib renders a bib as the prefix followed by the sequence padded to three digits.
func FormatBib(prefix, seq int) string {
	return fmt.Sprintf("%d%03d", prefix, seq)
}
