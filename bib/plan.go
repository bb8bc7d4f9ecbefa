package bib

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/padraicbc/raceops/models"
)

// Assignment is one planned bib for one participant.
type Assignment struct {
	ParticipantID string `json:"participantId"`
	Modality      string `json:"modality"`
	FullName      string `json:"fullName"`
	Sequence      int    `json:"sequence"`
	Bib           string `json:"bib"`
}

// Plan numbers participants per modality. Within a modality they are sorted by
// full name with pt-BR collation, then by creation time, then by id, and numbered
// 1..N behind the modality prefix.
func Plan(prefixes map[string]int, participants []models.Participant) ([]Assignment, error) {
	groups := map[string][]models.Participant{}
	for _, p := range participants {
		groups[p.Modality] = append(groups[p.Modality], p)
	}

	modalities := make([]string, 0, len(groups))
	for m := range groups {
		modalities = append(modalities, m)
	}
	slices.Sort(modalities)

	col := collate.New(language.BrazilianPortuguese)
	out := make([]Assignment, 0, len(participants))
	for _, m := range modalities {
		prefix, ok := prefixes[m]
		if !ok {
			return nil, models.NewDomainError(models.CodeMissingPrefix,
				fmt.Sprintf("a modalidade %s não tem prefixo de numeração configurado", m))
		}
		group := groups[m]
		if len(group) > models.MaxBibSequence {
			return nil, models.NewDomainError(models.CodeInvalidInput,
				fmt.Sprintf("a modalidade %s tem %d participantes; o limite por prefixo é %d", m, len(group), models.MaxBibSequence))
		}

		slices.SortFunc(group, func(a, b models.Participant) int {
			if c := col.CompareString(strings.TrimSpace(a.FullName()), strings.TrimSpace(b.FullName())); c != 0 {
				return c
			}
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(a.ID, b.ID)
		})
		for i, p := range group {
			out = append(out, Assignment{
				ParticipantID: p.ID,
				Modality:      m,
				FullName:      strings.TrimSpace(p.FullName()),
				Sequence:      i + 1,
				Bib:           models.FormatBib(prefix, i+1),
			})
		}
	}
	return out, nil
}
