package reports

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padraicbc/raceops/models"
	"github.com/padraicbc/raceops/store/memstore"
)

type fakeWriter struct {
	title string
	rows  [][]interface{}
	err   error
}

func (f *fakeWriter) ReplaceSheet(_ context.Context, title string, rows [][]interface{}) error {
	f.title, f.rows = title, rows
	return f.err
}

func TestExportRoster(t *testing.T) {
	st := memstore.New()
	race := st.AddRace(models.Race{ID: "0b7d0d4e-2f5a-4c4b-9a51-6a2f8f1f9c10", Name: "Corrida d'Água"})
	b1, b2 := "10001", "5001"
	withdrawn := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	st.AddParticipant(models.Participant{
		RaceID:      race.ID, Modality: "5K", Status: models.StatusIdentified, BibNumber: &b2,
		UserProfile: &models.AthleteProfile{FullName: "Ana", DocumentNumber: "123", Email: "a@x.com"},
		KitStatus:   models.KitWithdrawn, KitPickup: &models.KitPickup{WithdrawnAt: withdrawn, ResponsibleName: "Pai da Ana"},
	})
	st.AddParticipant(models.Participant{
		RaceID:      race.ID, Modality: "10K", Status: models.StatusValidated, BibNumber: &b1,
		UserProfile: &models.AthleteProfile{FullName: "Bruno"},
	})
	st.AddParticipant(models.Participant{RaceID: "other", Modality: "5K"})

	w := &fakeWriter{}
	res, err := NewRoster(st, w, nil).Export(context.Background(), race.ID)
	require.NoError(t, err)

	assert.Equal(t, "Corrida dÁgua (0b7d0d4e)", res.Sheet)
	assert.Equal(t, 2, res.Rows)
	require.Len(t, w.rows, 3)
	assert.Equal(t, rosterHeader, w.rows[0])
	assert.Equal(t, "10K", w.rows[1][0])
	assert.Equal(t, "Bruno", w.rows[1][2])
	assert.Equal(t, "5001", w.rows[2][1])
	assert.Equal(t, "2026-05-01 09:30:00", w.rows[2][9])
	assert.Equal(t, "Pai da Ana", w.rows[2][10])
}

func TestExportPropagatesWriterError(t *testing.T) {
	st := memstore.New()
	race := st.AddRace(models.Race{Name: "R"})
	boom := errors.New("quota exceeded")

	_, err := NewRoster(st, &fakeWriter{err: boom}, nil).Export(context.Background(), race.ID)
	assert.ErrorIs(t, err, boom)

	_, err = NewRoster(st, &fakeWriter{}, nil).Export(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
