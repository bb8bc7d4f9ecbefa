package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padraicbc/raceops/models"
	"github.com/padraicbc/raceops/store/memstore"
)

var today = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

func newService(st *memstore.Store) *Service {
	s := New(st, nil)
	s.now = func() time.Time { return today }
	return s
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRacesHidesDraftsAndPricesLots(t *testing.T) {
	st := memstore.New()
	early := today.Add(-48 * time.Hour)
	cut := today.Add(-24 * time.Hour)
	st.AddRace(models.Race{Name: "Rascunho", Status: models.RaceDraft, Date: today.Add(time.Hour)})
	open := st.AddRace(models.Race{
		Name: "Aberta", Date: today.Add(72 * time.Hour),
		Options: []models.RaceOption{{
			Distance: "5K",
			Lots: []models.PriceLot{
				{Name: "1º lote", Price: dec("80"), ValidFrom: &early, ValidUntil: &cut},
				{Name: "2º lote", Price: dec("95.50"), ValidFrom: &cut},
			},
		}},
	})
	st.AddRace(models.Race{Name: "Passada", Date: today.Add(-time.Hour)})

	races, err := newService(st).Races(context.Background())
	require.NoError(t, err)
	require.Len(t, races, 2)
	assert.Equal(t, "Passada", races[0].Name)
	assert.Equal(t, models.RaceClosed, races[0].EffectiveStatus)
	assert.Equal(t, open.ID, races[1].ID)
	assert.Equal(t, models.RacePublished, races[1].EffectiveStatus)
	require.Len(t, races[1].Prices, 1)
	assert.Equal(t, "2º lote", races[1].Prices[0].Lot)
	assert.True(t, dec("95.50").Equal(*races[1].Prices[0].Price))
}

func TestRaceDraftIsNotFound(t *testing.T) {
	st := memstore.New()
	draft := st.AddRace(models.Race{Name: "Rascunho", Status: models.RaceDraft})

	_, err := newService(st).Race(context.Background(), draft.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCombos(t *testing.T) {
	st := memstore.New()
	race := st.AddRace(models.Race{Name: "R", Date: today.Add(time.Hour)})
	st.AddCombo(models.Combo{RaceID: race.ID, Name: "Família", Price: dec("300"), Active: true,
		Items: []models.ComboItem{{Modality: "5K", Quantity: 3}, {Modality: "Kids", Quantity: 1}}})
	st.AddCombo(models.Combo{RaceID: race.ID, Name: "Dupla", Price: dec("150"), Active: true,
		Items: []models.ComboItem{{Modality: "10K", Quantity: 2}}})
	st.AddCombo(models.Combo{RaceID: race.ID, Name: "Antigo", Price: dec("10"), Active: false})

	combos, err := newService(st).Combos(context.Background(), race.ID)
	require.NoError(t, err)
	require.Len(t, combos, 2)
	assert.Equal(t, "Dupla", combos[0].Name)
	assert.Equal(t, 4, combos[1].Slots())

	_, err = newService(st).Combos(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestApplyCoupon(t *testing.T) {
	st := memstore.New()
	race := st.AddRace(models.Race{Name: "R"})
	other := "other-race"
	past := today.Add(-time.Hour)
	one := 1
	st.AddCoupon(models.Coupon{Code: "DEZ", Type: models.DiscountPercent, Value: dec("10"), Active: true})
	st.AddCoupon(models.Coupon{Code: "FIXO", Type: models.DiscountFixed, Value: dec("150"), Active: true})
	st.AddCoupon(models.Coupon{Code: "VELHO", Type: models.DiscountFixed, Value: dec("5"), Active: true, ExpiresAt: &past})
	st.AddCoupon(models.Coupon{Code: "USADO", Type: models.DiscountFixed, Value: dec("5"), Active: true, MaxUses: &one, UsedCount: 1})
	st.AddCoupon(models.Coupon{Code: "OUTRA", Type: models.DiscountFixed, Value: dec("5"), Active: true, RaceID: &other})
	st.AddCoupon(models.Coupon{Code: "OFF", Type: models.DiscountFixed, Value: dec("5")})
	svc := newService(st)

	q, err := svc.ApplyCoupon(context.Background(), "dez", race.ID, dec("99.90"))
	require.NoError(t, err)
	assert.Equal(t, "DEZ", q.Code)
	assert.True(t, dec("9.99").Equal(q.Discount), q.Discount.String())
	assert.True(t, dec("89.91").Equal(q.Total), q.Total.String())

	q, err = svc.ApplyCoupon(context.Background(), "FIXO", race.ID, dec("100"))
	require.NoError(t, err)
	assert.True(t, q.Total.IsZero())

	tests := []struct {
		code string
		want error
	}{
		{"VELHO", models.ErrCouponExpired},
		{"USADO", models.ErrCouponExhausted},
		{"OUTRA", models.ErrCouponNotApplicable},
		{"OFF", models.ErrNotFound},
		{"NAOEXISTE", models.ErrNotFound},
		{" ", models.ErrInvalidInput},
	}
	for _, tt := range tests {
		_, err := svc.ApplyCoupon(context.Background(), tt.code, race.ID, dec("50"))
		assert.ErrorIs(t, err, tt.want, tt.code)
	}
}

func TestRedeemCouponCountsUses(t *testing.T) {
	st := memstore.New()
	race := st.AddRace(models.Race{Name: "R"})
	two := 2
	c := st.AddCoupon(models.Coupon{Code: "DUAS", Type: models.DiscountFixed, Value: dec("10"), Active: true, MaxUses: &two})
	svc := newService(st)

	for i := 0; i < 2; i++ {
		_, err := svc.RedeemCoupon(context.Background(), "DUAS", race.ID, dec("50"))
		require.NoError(t, err)
	}
	_, err := svc.RedeemCoupon(context.Background(), "DUAS", race.ID, dec("50"))
	assert.ErrorIs(t, err, models.ErrCouponExhausted)

	stored, err := st.GetCouponByCode(context.Background(), c.Code)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.UsedCount)
}
