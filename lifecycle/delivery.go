package lifecycle

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/padraicbc/raceops/events"
	"github.com/padraicbc/raceops/models"
	"github.com/padraicbc/raceops/notify"
)

// PrintResult is the order after a label print and the link to its print view.
type PrintResult struct {
	Order    *models.Order `json:"order"`
	LabelURL string        `json:"labelUrl"`
}

// ScanResult reports the outcome of a delivery scan.
type ScanResult struct {
	Order            *models.Order `json:"order"`
	AlreadyDelivered bool          `json:"alreadyDelivered"`
}

func (s *Service) appendAttempt(ctx context.Context, o *models.Order, next models.DeliveryStatus, observation string, agent models.Agent) error {
	attempt, err := o.ChangeDeliveryStatus(next, observation, agent, s.now())
	if err != nil {
		return err
	}
	attempt.ID = uuid.NewString()
	if err = s.repo.InsertDeliveryAttempt(ctx, attempt); err != nil {
		return err
	}
	if err = s.repo.UpdateOrder(ctx, o, "kit_delivery_status", "updated_at"); err != nil {
		return err
	}
	o.DeliveryAttempts = append(o.DeliveryAttempts, attempt)
	return nil
}

func (s *Service) deliveryChanged(o *models.Order, from models.DeliveryStatus, agent models.Agent) {
	s.log.Info("delivery status changed",
		zap.String("order_id", o.ID), zap.String("race_id", o.RaceID),
		zap.String("from", string(from)), zap.String("to", string(o.KitDeliveryStatus)),
		zap.String("agent_id", agent.ID))
	s.events.Publish(events.Event{Type: events.DeliveryChanged, RaceID: o.RaceID, EntityID: o.ID, Status: string(o.KitDeliveryStatus)})
}

// UpdateDeliveryStatus records a staff delivery outcome and appends it to the
// order's attempt log. Nothing is written when the transition is refused.
func (s *Service) UpdateDeliveryStatus(ctx context.Context, orderID string, next models.DeliveryStatus, observation string, agent models.Agent) (*models.Order, error) {
	var (
		o    *models.Order
		from models.DeliveryStatus
	)
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		var err error
		if o, err = s.repo.GetOrderForUpdate(ctx, orderID); err != nil {
			return err
		}
		from = o.KitDeliveryStatus
		return s.appendAttempt(ctx, o, next, observation, agent)
	})
	if err != nil {
		return nil, err
	}
	s.deliveryChanged(o, from, agent)
	return o, nil
}

// MarkPrinted registers a label print and returns the print view link. The first
// print stamps firstPrintedAt and sends the kitShipped email.
func (s *Service) MarkPrinted(ctx context.Context, orderID string) (*PrintResult, error) {
	var (
		o          *models.Order
		race       *models.Race
		firstPrint bool
		changed    bool
		from       models.DeliveryStatus
	)
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		var err error
		if o, err = s.repo.GetOrderForUpdate(ctx, orderID); err != nil {
			return err
		}
		if race, err = s.repo.GetRace(ctx, o.RaceID); err != nil {
			return err
		}
		from = o.KitDeliveryStatus
		neverPrinted := o.FirstPrintedAt == nil
		if changed, err = o.MarkPrinted(s.now()); err != nil {
			return err
		}
		firstPrint = neverPrinted && o.FirstPrintedAt != nil
		if !changed && !firstPrint {
			return nil
		}
		return s.repo.UpdateOrder(ctx, o, "kit_delivery_status", "first_printed_at", "updated_at")
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.deliveryChanged(o, from, models.Agent{})
	}
	if firstPrint {
		s.mail.Notify(ctx, o.ResponsibleEmail, notify.KitShipped, map[string]any{
			"name":        o.ResponsibleName,
			"orderNumber": o.OrderNumber,
			"raceName":    race.Name,
			"address":     o.DeliveryAddress.OneLine(),
		})
	}
	return &PrintResult{Order: o, LabelURL: s.labels.URL(o, race.Name)}, nil
}

// ScanDelivery resolves a scanned code (order id or order number) and marks the
// order Entregue. An order that is already Entregue is reported without a write.
func (s *Service) ScanDelivery(ctx context.Context, code string, agent models.Agent) (*ScanResult, error) {
	var (
		res  ScanResult
		from models.DeliveryStatus
	)
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		id := code
		if _, perr := uuid.Parse(code); perr != nil {
			found, err := s.repo.FindOrderByNumber(ctx, code)
			if err != nil {
				return err
			}
			id = found.ID
		}
		o, err := s.repo.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		res.Order = o
		from = o.KitDeliveryStatus
		if o.KitDeliveryStatus.IsTerminal() {
			res.AlreadyDelivered = true
			return nil
		}
		return s.appendAttempt(ctx, o, models.DeliveryDelivered, "", agent)
	})
	if err != nil {
		return nil, err
	}
	if !res.AlreadyDelivered {
		s.deliveryChanged(res.Order, from, agent)
	}
	return &res, nil
}
