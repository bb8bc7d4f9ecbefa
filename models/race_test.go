package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func TestEffectiveStatus(t *testing.T) {
	future := t0.Add(24 * time.Hour)
	past := t0.Add(-24 * time.Hour)

	assert.Equal(t, RacePublished, (&Race{Status: RacePublished, Date: future}).EffectiveStatus(t0))
	assert.Equal(t, RaceClosed, (&Race{Status: RacePublished, Date: past}).EffectiveStatus(t0))
	assert.Equal(t, RaceClosed, (&Race{Status: RaceClosed, Date: future}).EffectiveStatus(t0))
	assert.Equal(t, RaceDraft, (&Race{Status: RaceDraft, Date: past}).EffectiveStatus(t0))
	assert.True(t, (&Race{Status: RacePublished, Date: past}).IsClosed(t0))
}

func TestBibPrefixes(t *testing.T) {
	r := &Race{Options: []RaceOption{{Distance: "5K", BibPrefix: intp(5)}, {Distance: "10K", BibPrefix: intp(10)}}}
	got, err := r.BibPrefixes()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"5K": 5, "10K": 10}, got)

	r.Options = append(r.Options, RaceOption{Distance: "21K"})
	_, err = r.BibPrefixes()
	assert.ErrorIs(t, err, ErrMissingPrefix)

	r.Options[2].BibPrefix = intp(5)
	_, err = r.BibPrefixes()
	assert.ErrorIs(t, err, ErrPrefixConflict)

	r.Options[2].BibPrefix = intp(-1)
	_, err = r.BibPrefixes()
	assert.ErrorIs(t, err, ErrInvalidInput)

	r.Options[2].BibPrefix = intp(0)
	_, err = r.BibPrefixes()
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFormatBib(t *testing.T) {
	assert.Equal(t, "5001", FormatBib(5, 1))
	assert.Equal(t, "10042", FormatBib(10, 42))
	assert.Equal(t, "3999", FormatBib(3, MaxBibSequence))
}

func TestActiveLot(t *testing.T) {
	until := t0.Add(-time.Hour)
	from := t0.Add(time.Hour)
	o := RaceOption{Distance: "5K", Lots: []PriceLot{
		{Name: "1º lote", Price: decimal.NewFromInt(80), ValidUntil: &until},
		{Name: "2º lote", Price: decimal.NewFromInt(100)},
		{Name: "3º lote", Price: decimal.NewFromInt(120), ValidFrom: &from},
	}}
	lot, ok := o.ActiveLot(t0)
	require.True(t, ok)
	assert.Equal(t, "2º lote", lot.Name)

	_, ok = RaceOption{}.ActiveLot(t0)
	assert.False(t, ok)
}
