package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Combo bundles several registrations of one race at its own price.
type Combo struct {
	bun.BaseModel `bun:"table:combos,alias:cb"`

	ID        string          `bun:"id,pk,type:uuid" json:"id"`
	RaceID    string          `bun:"race_id,notnull,type:uuid" json:"raceId"`
	Name      string          `bun:"name,notnull" json:"name"`
	Items     []ComboItem     `bun:"items,type:jsonb,notnull" json:"items"`
	Price     decimal.Decimal `bun:"price,type:numeric(12,2),notnull" json:"price"`
	Active    bool            `bun:"active,notnull,default:true" json:"active"`
	CreatedAt time.Time       `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// ComboItem is a (modality, quantity) pair.
type ComboItem struct {
	Modality string `json:"modality"`
	Quantity int    `json:"quantity"`
}

// Slots is the number of registrations the combo creates.
func (c *Combo) Slots() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// DiscountType selects how a coupon value is applied.
type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// Coupon is a discount code, optionally scoped to one race.
type Coupon struct {
	bun.BaseModel `bun:"table:coupons,alias:cp"`

	ID        string          `bun:"id,pk,type:uuid" json:"id"`
	Code      string          `bun:"code,notnull,unique" json:"code"`
	RaceID    *string         `bun:"race_id,type:uuid" json:"raceId,omitempty"`
	Type      DiscountType    `bun:"type,notnull" json:"type"`
	Value     decimal.Decimal `bun:"value,type:numeric(12,2),notnull" json:"value"`
	MaxUses   *int            `bun:"max_uses" json:"maxUses,omitempty"`
	UsedCount int             `bun:"used_count,notnull,default:0" json:"usedCount"`
	ExpiresAt *time.Time      `bun:"expires_at" json:"expiresAt,omitempty"`
	Active    bool            `bun:"active,notnull,default:true" json:"active"`
	CreatedAt time.Time       `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

var hundred = decimal.NewFromInt(100)

// Discount checks that the coupon can be used on raceID at now and returns the
// discount it grants on amount, never more than amount itself.
func (c *Coupon) Discount(raceID string, amount decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	if !c.Active {
		return decimal.Zero, NewDomainError(CodeNotFound, fmt.Sprintf("o cupom %s não está ativo", c.Code))
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return decimal.Zero, NewDomainError(CodeCouponExpired, fmt.Sprintf("o cupom %s expirou", c.Code))
	}
	if c.MaxUses != nil && c.UsedCount >= *c.MaxUses {
		return decimal.Zero, NewDomainError(CodeCouponExhausted, fmt.Sprintf("o cupom %s atingiu o limite de usos", c.Code))
	}
	if c.RaceID != nil && *c.RaceID != raceID {
		return decimal.Zero, NewDomainError(CodeCouponNotApplicable, fmt.Sprintf("o cupom %s não é válido para esta corrida", c.Code))
	}

	var off decimal.Decimal
	switch c.Type {
	case DiscountPercent:
		off = amount.Mul(c.Value).Div(hundred).Round(2)
	case DiscountFixed:
		off = c.Value
	default:
		return decimal.Zero, NewDomainError(CodeInvalidInput, fmt.Sprintf("tipo de desconto desconhecido: %s", c.Type))
	}
	if off.GreaterThan(amount) {
		off = amount
	}
	return off, nil
}

// AbandonedCart is a checkout left unfinished, kept for reminder emails.
type AbandonedCart struct {
	bun.BaseModel `bun:"table:abandoned_carts,alias:ac"`

	ID          string          `bun:"id,pk,type:uuid" json:"id"`
	UserID      string          `bun:"user_id,notnull" json:"userId"`
	RaceID      string          `bun:"race_id,notnull,type:uuid" json:"raceId"`
	Email       string          `bun:"email,notnull" json:"email"`
	Amount      decimal.Decimal `bun:"amount,type:numeric(12,2),notnull" json:"amount"`
	ReminderAt  *time.Time      `bun:"reminder_at" json:"reminderAt,omitempty"`
	RecoveredAt *time.Time      `bun:"recovered_at" json:"recoveredAt,omitempty"`
	CreatedAt   time.Time       `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// ContactMessage is a message sent through the public contact form.
type ContactMessage struct {
	bun.BaseModel `bun:"table:contact_messages,alias:cm"`

	ID        string    `bun:"id,pk,type:uuid" json:"id"`
	Name      string    `bun:"name,notnull" json:"name"`
	Email     string    `bun:"email,notnull" json:"email"`
	Subject   string    `bun:"subject,notnull" json:"subject"`
	Message   string    `bun:"message,notnull" json:"message"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
}

// AutomationSetting toggles automatic emails; the email config lives under key "emailConfig".
type AutomationSetting struct {
	bun.BaseModel `bun:"table:automation_settings,alias:aset"`

	Key     string          `bun:"key,pk" json:"key"`
	Enabled map[string]bool `bun:"enabled,type:jsonb,notnull" json:"enabled"`
}

// EmailEnabled reports whether the given email type is switched on. Unknown types
// default to enabled.
func (s *AutomationSetting) EmailEnabled(emailType string) bool {
	if s == nil || s.Enabled == nil {
		return true
	}
	on, ok := s.Enabled[emailType]
	return !ok || on
}
