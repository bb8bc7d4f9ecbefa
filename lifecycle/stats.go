package lifecycle

import (
	"context"

	"github.com/padraicbc/raceops/models"
	"github.com/padraicbc/raceops/store"
)

// RaceStats is the per-race counter read model shown on the admin dashboard.
type RaceStats struct {
	RaceID        string                           `json:"raceId"`
	Status        models.RaceStatus                `json:"status"`
	Total         int                              `json:"total"`
	ByStatus      map[models.ParticipantStatus]int `json:"byStatus"`
	KitsWithdrawn int                              `json:"kitsWithdrawn"`
	BibsAssigned  int                              `json:"bibsAssigned"`
	Rows          []store.StatusCount              `json:"rows"`
}

func (s *Service) Stats(ctx context.Context, raceID string) (*RaceStats, error) {
	race, err := s.repo.GetRace(ctx, raceID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.CountByStatus(ctx, raceID)
	if err != nil {
		return nil, err
	}
	bibs, err := s.repo.CountAssignedBibs(ctx, raceID)
	if err != nil {
		return nil, err
	}

	st := &RaceStats{
		RaceID:       race.ID,
		Status:       race.EffectiveStatus(s.now()),
		ByStatus:     map[models.ParticipantStatus]int{},
		BibsAssigned: bibs,
		Rows:         rows,
	}
	for _, r := range rows {
		st.Total += r.Count
		st.ByStatus[r.Status] += r.Count
		if r.KitStatus == models.KitWithdrawn {
			st.KitsWithdrawn += r.Count
		}
	}
	return st, nil
}
