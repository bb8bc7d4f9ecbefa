package kit

import (
	"context"
	"strings"
	"unicode"

	"github.com/padraicbc/raceops/models"
	"github.com/padraicbc/raceops/store"
)

// Finder is the part of the repository used for code resolution.
type Finder interface {
	FindParticipants(ctx context.Context, raceID string, field store.LookupField, values ...string) ([]models.Participant, error)
}

type lookup struct {
	field  store.LookupField
	values []string
}

// CPFVariants returns the bare and the formatted (###.###.###-##) form of a CPF
// when code normalizes to exactly 11 digits.
func CPFVariants(code string) []string {
	var b strings.Builder
	for _, r := range code {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	d := b.String()
	if len(d) != 11 {
		return nil
	}
	return []string{d, d[0:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:11]}
}

func lookups(rawCode string) []lookup {
	code := strings.TrimSpace(rawCode)
	steps := []lookup{
		{store.ByID, []string{code}},
		{store.ByBibNumber, []string{code}},
	}
	if cpf := CPFVariants(code); cpf != nil {
		steps = append(steps, lookup{store.ByDocumentNumber, cpf})
	}
	return append(steps,
		lookup{store.ByFullName, []string{code}},
		lookup{store.ByEmail, []string{code}},
		lookup{store.ByDocumentNumber, []string{rawCode}},
	)
}

// Resolve finds the participant of raceID matching rawCode. Lookups run in order:
// id, bib number, CPF, full name, email, then the raw document field. The first
// lookup with a match wins; among several rows the earliest created is returned.
// It returns nil without error when nothing matches.
func Resolve(ctx context.Context, f Finder, raceID, rawCode string) (*models.Participant, error) {
	for _, l := range lookups(rawCode) {
		found, err := f.FindParticipants(ctx, raceID, l.field, l.values...)
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			p := found[0]
			return &p, nil
		}
	}
	return nil, nil
}
