// Package catalog serves the public race catalog: races with their effective
// status and current price lot, combos, and coupon quotes.
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/padraicbc/raceops/models"
	"github.com/padraicbc/raceops/store"
)

// RaceView is a race as shown in the public catalog.
type RaceView struct {
	*models.Race
	EffectiveStatus models.RaceStatus `json:"effectiveStatus"`
	Prices          []OptionPrice     `json:"prices"`
}

// OptionPrice is the lot currently on sale for one modality.
type OptionPrice struct {
	Distance string           `json:"distance"`
	Lot      string           `json:"lot,omitempty"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

// Quote is a coupon applied to an amount.
type Quote struct {
	Code     string          `json:"code"`
	Amount   decimal.Decimal `json:"amount"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

type Service struct {
	repo store.Repository
	log  *zap.Logger
	now  func() time.Time
}

func New(repo store.Repository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, log: log, now: time.Now}
}

func (s *Service) view(r *models.Race) RaceView {
	now := s.now()
	v := RaceView{Race: r, EffectiveStatus: r.EffectiveStatus(now)}
	for _, o := range r.Options {
		p := OptionPrice{Distance: o.Distance}
		if lot, ok := o.ActiveLot(now); ok {
			price := lot.Price
			p.Lot = lot.Name
			p.Price = &price
		}
		v.Prices = append(v.Prices, p)
	}
	return v
}

// Races lists every non-draft race.
func (s *Service) Races(ctx context.Context) ([]RaceView, error) {
	races, err := s.repo.ListRaces(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RaceView, 0, len(races))
	for i := range races {
		out = append(out, s.view(&races[i]))
	}
	return out, nil
}

// Race returns one race. Drafts are not public.
func (s *Service) Race(ctx context.Context, id string) (*RaceView, error) {
	r, err := s.repo.GetRace(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status == models.RaceDraft {
		return nil, models.NewDomainError(models.CodeNotFound, fmt.Sprintf("corrida %s não encontrada", id))
	}
	v := s.view(r)
	return &v, nil
}

// Combos lists the active combos of a race.
func (s *Service) Combos(ctx context.Context, raceID string) ([]models.Combo, error) {
	if _, err := s.repo.GetRace(ctx, raceID); err != nil {
		return nil, err
	}
	return s.repo.ListCombos(ctx, raceID)
}

func (s *Service) quote(ctx context.Context, code, raceID string, amount decimal.Decimal) (*models.Coupon, *Quote, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil, models.NewDomainError(models.CodeInvalidInput, "informe o código do cupom")
	}
	if amount.IsNegative() {
		return nil, nil, models.NewDomainError(models.CodeInvalidInput, "valor inválido")
	}
	c, err := s.repo.GetCouponByCode(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	off, err := c.Discount(raceID, amount, s.now())
	if err != nil {
		return nil, nil, err
	}
	return c, &Quote{Code: c.Code, Amount: amount, Discount: off, Total: amount.Sub(off)}, nil
}

// ApplyCoupon computes the discount of code on amount without using it up.
func (s *Service) ApplyCoupon(ctx context.Context, code, raceID string, amount decimal.Decimal) (*Quote, error) {
	_, q, err := s.quote(ctx, code, raceID, amount)
	return q, err
}

// RedeemCoupon computes the discount and counts one use. The counter only moves
// while it is below the coupon limit.
func (s *Service) RedeemCoupon(ctx context.Context, code, raceID string, amount decimal.Decimal) (*Quote, error) {
	var q *Quote
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		c, quote, err := s.quote(ctx, code, raceID, amount)
		if err != nil {
			return err
		}
		ok, err := s.repo.RedeemCoupon(ctx, c.ID)
		if err != nil {
			return err
		}
		if !ok {
			return models.NewDomainError(models.CodeCouponExhausted, fmt.Sprintf("o cupom %s atingiu o limite de usos", c.Code))
		}
		q = quote
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("coupon redeemed", zap.String("code", q.Code), zap.String("race_id", raceID), zap.String("discount", q.Discount.String()))
	return q, nil
}
