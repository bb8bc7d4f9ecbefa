// Package reports exports race rosters to Google Sheets.
package reports

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/raceops/models"
	"github.com/padraicbc/raceops/store"
)

// Writer replaces the content of one named tab.
type Writer interface {
	ReplaceSheet(ctx context.Context, title string, rows [][]interface{}) error
}

// ExportResult describes a finished export.
type ExportResult struct {
	Sheet string `json:"sheet"`
	Rows  int    `json:"rows"`
}

var rosterHeader = []interface{}{
	"Modalidade", "Número", "Nome", "CPF", "E-mail", "Telefone", "Camiseta", "Status", "Kit", "Retirado em", "Retirado por",
}

// Roster exports the participants of a race, one row each.
type Roster struct {
	repo   store.Repository
	writer Writer
	log    *zap.Logger
}

func NewRoster(repo store.Repository, w Writer, log *zap.Logger) *Roster {
	if log == nil {
		log = zap.NewNop()
	}
	return &Roster{repo: repo, writer: w, log: log}
}

// SheetTitle names the tab a race is exported to.
func SheetTitle(r *models.Race) string {
	name := strings.NewReplacer("'", "", "!", "").Replace(r.Name)
	if len([]rune(name)) > 80 {
		name = string([]rune(name)[:80])
	}
	short := r.ID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s (%s)", name, short)
}

// Rows renders the roster sorted by modality, bib number, then name.
func Rows(participants []models.Participant) [][]interface{} {
	ps := slices.Clone(participants)
	slices.SortFunc(ps, func(a, b models.Participant) int {
		if c := strings.Compare(a.Modality, b.Modality); c != 0 {
			return c
		}
		if c := strings.Compare(deref(a.BibNumber), deref(b.BibNumber)); c != 0 {
			return c
		}
		return strings.Compare(a.FullName(), b.FullName())
	})

	rows := make([][]interface{}, 0, len(ps)+1)
	rows = append(rows, rosterHeader)
	for _, p := range ps {
		var prof models.AthleteProfile
		if p.UserProfile != nil {
			prof = *p.UserProfile
		}
		var withdrawnAt, withdrawnBy string
		if p.KitPickup != nil {
			withdrawnAt = p.KitPickup.WithdrawnAt.Format(time.DateTime)
			withdrawnBy = p.KitPickup.ResponsibleName
			if withdrawnBy == "" {
				withdrawnBy = prof.FullName
			}
		}
		rows = append(rows, []interface{}{
			p.Modality, deref(p.BibNumber), prof.FullName, prof.DocumentNumber, prof.Email, prof.Phone,
			p.ShirtSize, string(p.Status), string(p.KitStatus), withdrawnAt, withdrawnBy,
		})
	}
	return rows
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Export writes the roster of raceID to its tab.
func (r *Roster) Export(ctx context.Context, raceID string) (*ExportResult, error) {
	race, err := r.repo.GetRace(ctx, raceID)
	if err != nil {
		return nil, err
	}
	ps, err := r.repo.ListParticipants(ctx, store.ParticipantFilter{RaceID: raceID})
	if err != nil {
		return nil, err
	}
	rows := Rows(ps)
	title := SheetTitle(race)
	if err = r.writer.ReplaceSheet(ctx, title, rows); err != nil {
		r.log.Warn("roster export failed", zap.String("race_id", raceID), zap.Error(err))
		return nil, err
	}
	r.log.Info("roster exported", zap.String("race_id", raceID), zap.String("sheet", title), zap.Int("rows", len(rows)-1))
	return &ExportResult{Sheet: title, Rows: len(rows) - 1}, nil
}
