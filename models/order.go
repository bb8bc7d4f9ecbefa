package models

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// DeliveryMethod is how the kit reaches the athlete.
type DeliveryMethod string

const (
	DeliveryPickup DeliveryMethod = "pickup"
	DeliveryHome   DeliveryMethod = "home"
)

// DeliveryStatus is the home delivery state of an order's kits.
type DeliveryStatus string

const (
	DeliveryPending     DeliveryStatus = "Pendente"
	DeliveryPrinted     DeliveryStatus = "Impresso"
	DeliveryDelivered   DeliveryStatus = "Entregue"
	DeliveryNotAnswered DeliveryStatus = "NaoAtendido"
	DeliveryProblem     DeliveryStatus = "Problema"
)

// MinObservationLength is required on every outcome except Entregue.
const MinObservationLength = 10

// IsValid checks if the status is a known DeliveryStatus.
func (s DeliveryStatus) IsValid() bool {
	switch s {
	case DeliveryPending, DeliveryPrinted, DeliveryDelivered, DeliveryNotAnswered, DeliveryProblem:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is permitted.
func (s DeliveryStatus) IsTerminal() bool {
	return s == DeliveryDelivered
}

// CanTransitionTo reports whether s -> target is a legal delivery transition.
// Repeating a non-terminal outcome is allowed; each repetition is still logged.
func (s DeliveryStatus) CanTransitionTo(target DeliveryStatus) bool {
	switch s {
	case DeliveryPending, DeliveryPrinted:
		switch target {
		case DeliveryPrinted, DeliveryDelivered, DeliveryNotAnswered, DeliveryProblem:
			return true
		}
	case DeliveryNotAnswered, DeliveryProblem:
		return target == s || target == DeliveryPrinted || target == DeliveryDelivered
	}
	return false
}

// Address is a shipping address snapshot.
type Address struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Complement   string `json:"complement,omitempty"`
	Neighborhood string `json:"neighborhood,omitempty"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zipCode"`
}

// OneLine renders the address for labels.
func (a *Address) OneLine() string {
	if a == nil {
		return ""
	}
	parts := []string{strings.TrimSpace(a.Street + ", " + a.Number)}
	for _, p := range []string{a.Complement, a.Neighborhood, a.City + "/" + a.State, a.ZipCode} {
		if p = strings.Trim(strings.TrimSpace(p), "/"); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " - ")
}

// Order is one checkout transaction.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID                string             `bun:"id,pk,type:uuid" json:"id"`
	OrderNumber       string             `bun:"order_number,notnull,unique" json:"orderNumber"`
	UserID            string             `bun:"user_id,notnull" json:"userId"`
	RaceID            string             `bun:"race_id,notnull,type:uuid" json:"raceId"`
	ResponsibleName   string             `bun:"responsible_name,notnull" json:"responsibleName"`
	ResponsibleEmail  string             `bun:"responsible_email,notnull" json:"responsibleEmail"`
	ResponsiblePhone  string             `bun:"responsible_phone" json:"responsiblePhone"`
	DeliveryMethod    DeliveryMethod     `bun:"delivery_method,notnull" json:"deliveryMethod"`
	DeliveryAddress   *Address           `bun:"delivery_address,type:jsonb" json:"deliveryAddress,omitempty"`
	KitDeliveryStatus DeliveryStatus     `bun:"kit_delivery_status,notnull,default:'Pendente'" json:"kitDeliveryStatus"`
	FirstPrintedAt    *time.Time         `bun:"first_printed_at" json:"firstPrintedAt,omitempty"`
	TotalAmount       decimal.Decimal    `bun:"total_amount,type:numeric(12,2),notnull" json:"totalAmount"`
	CouponCode        *string            `bun:"coupon_code" json:"couponCode,omitempty"`
	ParticipantIDs    []string           `bun:"participant_ids,array" json:"participantIds"`
	CreatedAt         time.Time          `bun:"created_at,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt         time.Time          `bun:"updated_at,notnull,default:current_timestamp" json:"updatedAt"`
	DeliveryAttempts  []*DeliveryAttempt `bun:"rel:has-many,join:id=order_id" json:"deliveryAttempts,omitempty"`
}

// DeliveryAttempt is one entry of an order's append-only delivery log.
type DeliveryAttempt struct {
	bun.BaseModel `bun:"table:delivery_attempts,alias:da"`

	ID          string         `bun:"id,pk,type:uuid" json:"id"`
	OrderID     string         `bun:"order_id,notnull,type:uuid" json:"orderId"`
	AgentID     string         `bun:"agent_id,notnull" json:"agentId"`
	AgentName   string         `bun:"agent_name,notnull" json:"agentName"`
	Status      DeliveryStatus `bun:"status,notnull" json:"status"`
	Observation string         `bun:"observation,notnull" json:"observation"`
	Timestamp   time.Time      `bun:"timestamp,notnull" json:"timestamp"`
}

// Agent identifies the staff member performing an operation.
type Agent struct {
	ID   string
	Name string
}

// ChangeDeliveryStatus applies a delivery outcome and returns the attempt to append.
// Observation must be at least MinObservationLength characters for every outcome
// other than Entregue. The returned attempt has no ID; the caller assigns one.
func (o *Order) ChangeDeliveryStatus(next DeliveryStatus, observation string, agent Agent, now time.Time) (*DeliveryAttempt, error) {
	if o.DeliveryMethod != DeliveryHome {
		return nil, NewDomainError(CodeInvalidTransition,
			fmt.Sprintf("o pedido %s não é de entrega em domicílio", o.OrderNumber))
	}
	if !next.IsValid() {
		return nil, NewDomainError(CodeInvalidInput, fmt.Sprintf("status de entrega desconhecido: %s", next))
	}
	if o.KitDeliveryStatus.IsTerminal() {
		return nil, NewDomainError(CodeTerminalState,
			fmt.Sprintf("o pedido %s já foi entregue e não pode mais ser alterado", o.OrderNumber))
	}
	observation = strings.TrimSpace(observation)
	if next != DeliveryDelivered && utf8.RuneCountInString(observation) < MinObservationLength {
		return nil, NewDomainError(CodeInvalidInput,
			fmt.Sprintf("informe uma observação com pelo menos %d caracteres", MinObservationLength))
	}
	if !o.KitDeliveryStatus.CanTransitionTo(next) {
		return nil, NewDomainError(CodeInvalidTransition,
			fmt.Sprintf("o pedido %s não pode passar de %s para %s", o.OrderNumber, o.KitDeliveryStatus, next))
	}

	o.KitDeliveryStatus = next
	o.UpdatedAt = now
	return &DeliveryAttempt{
		OrderID:     o.ID,
		AgentID:     agent.ID,
		AgentName:   agent.Name,
		Status:      next,
		Observation: observation,
		Timestamp:   now,
	}, nil
}

// MarkPrinted moves an order to Impresso when a label is printed. Only the first
// print stamps FirstPrintedAt. Printing an already printed order leaves the status
// unchanged and a delivered order is not touched at all. It reports whether the
// status changed.
func (o *Order) MarkPrinted(now time.Time) (bool, error) {
	if o.DeliveryMethod != DeliveryHome {
		return false, NewDomainError(CodeInvalidTransition,
			fmt.Sprintf("o pedido %s não é de entrega em domicílio", o.OrderNumber))
	}
	if o.KitDeliveryStatus.IsTerminal() {
		return false, nil
	}
	if o.FirstPrintedAt == nil {
		o.FirstPrintedAt = &now
	}
	if o.KitDeliveryStatus == DeliveryPrinted {
		return false, nil
	}
	o.KitDeliveryStatus = DeliveryPrinted
	o.UpdatedAt = now
	return true, nil
}
