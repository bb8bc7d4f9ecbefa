package lifecycle

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/padraicbc/raceops/events"
	"github.com/padraicbc/raceops/models"
	"github.com/padraicbc/raceops/notify"
	"github.com/padraicbc/raceops/store"
)

// Actor is the authenticated caller. Admins may act on any participant; athletes
// only on the slots they bought.
type Actor struct {
	UserID string
	Admin  bool
}

func (a Actor) owns(p *models.Participant) bool {
	return a.Admin || p.UserID == a.UserID
}

// Assignment binds one pending participant to one of the caller's team members.
type Assignment struct {
	ParticipantID string `json:"participantId"`
	TeamMemberID  string `json:"teamMemberId"`
}

func (s *Service) checkIdentificationWindow(race *models.Race, p *models.Participant) error {
	if !race.IsClosed(s.now()) {
		return nil
	}
	if p.Status == models.StatusPendingIdentification {
		return models.NewDomainError(models.CodeInvalidTransition,
			fmt.Sprintf("as inscrições da corrida %s estão encerradas; não é mais possível identificar participantes", race.Name))
	}
	if !s.opts.AllowEditAfterClose {
		return models.NewDomainError(models.CodeInvalidTransition,
			fmt.Sprintf("a corrida %s está encerrada; os dados do participante não podem mais ser alterados", race.Name))
	}
	return nil
}

func validateProfile(profile models.AthleteProfile) error {
	if strings.TrimSpace(profile.FullName) == "" {
		return models.NewDomainError(models.CodeInvalidInput, "o nome completo do atleta é obrigatório")
	}
	return nil
}

// Identify binds profile to the participant. Re-identifying an IDENTIFICADA
// participant replaces the profile and keeps bib number and kit status.
func (s *Service) Identify(ctx context.Context, actor Actor, participantID string, profile models.AthleteProfile, shirtSize string) (*models.Participant, error) {
	if err := validateProfile(profile); err != nil {
		return nil, err
	}
	profile.FullName = strings.TrimSpace(profile.FullName)

	var (
		p    *models.Participant
		from models.ParticipantStatus
	)
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		var err error
		if p, err = s.repo.GetParticipantForUpdate(ctx, participantID); err != nil {
			return err
		}
		if !actor.owns(p) {
			return models.NewDomainError(models.CodeNotFound, fmt.Sprintf("inscrição %s não encontrada", participantID))
		}
		race, err := s.repo.GetRace(ctx, p.RaceID)
		if err != nil {
			return err
		}
		if err = s.checkIdentificationWindow(race, p); err != nil {
			return err
		}
		from = p.Status
		if err = p.Identify(profile, shirtSize, s.now()); err != nil {
			return err
		}
		return s.repo.UpdateParticipant(ctx, p, "status", "user_profile", "shirt_size", "updated_at")
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("participant identified",
		zap.String("participant_id", p.ID), zap.String("race_id", p.RaceID),
		zap.String("from", string(from)), zap.String("to", string(p.Status)))
	s.events.Publish(events.Event{Type: events.ParticipantIdentified, RaceID: p.RaceID, EntityID: p.ID, Status: string(p.Status)})
	s.mail.Notify(ctx, profile.Email, notify.ProfileUpdated, map[string]any{
		"name":     profile.FullName,
		"modality": p.Modality,
	})
	return p, nil
}

func checkDistinct(assignments []Assignment) error {
	members := make(map[string]struct{}, len(assignments))
	slots := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		if a.ParticipantID == "" || a.TeamMemberID == "" {
			return models.NewDomainError(models.CodeInvalidInput, "cada atribuição precisa de inscrição e membro da equipe")
		}
		if _, dup := members[a.TeamMemberID]; dup {
			return models.NewDomainError(models.CodeDuplicateAssignment,
				fmt.Sprintf("o membro da equipe %s foi atribuído a mais de uma inscrição", a.TeamMemberID))
		}
		if _, dup := slots[a.ParticipantID]; dup {
			return models.NewDomainError(models.CodeDuplicateAssignment,
				fmt.Sprintf("a inscrição %s recebeu mais de um membro da equipe", a.ParticipantID))
		}
		members[a.TeamMemberID] = struct{}{}
		slots[a.ParticipantID] = struct{}{}
	}
	return nil
}

// BulkIdentify identifies several pending participants of the caller from the
// caller's team roster in one transaction. Duplicates are rejected before any read
// or write.
func (s *Service) BulkIdentify(ctx context.Context, actor Actor, assignments []Assignment) (int, error) {
	if len(assignments) == 0 {
		return 0, models.NewDomainError(models.CodeInvalidInput, "nenhuma atribuição informada")
	}
	if err := checkDistinct(assignments); err != nil {
		return 0, err
	}

	memberIDs := make([]string, len(assignments))
	for i, a := range assignments {
		memberIDs[i] = a.TeamMemberID
	}

	var updated []*models.Participant
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		updated = updated[:0]
		members, err := s.repo.ListTeamMembers(ctx, actor.UserID, memberIDs)
		if err != nil {
			return err
		}
		byID := make(map[string]models.TeamMember, len(members))
		for _, m := range members {
			byID[m.ID] = m
		}

		races := map[string]*models.Race{}
		for _, a := range assignments {
			member, ok := byID[a.TeamMemberID]
			if !ok {
				return models.NewDomainError(models.CodeNotFound,
					fmt.Sprintf("membro da equipe %s não encontrado", a.TeamMemberID))
			}
			if err = validateProfile(member.Profile); err != nil {
				return err
			}
			p, err := s.repo.GetParticipantForUpdate(ctx, a.ParticipantID)
			if err != nil {
				return err
			}
			if !actor.owns(p) {
				return models.NewDomainError(models.CodeNotFound, fmt.Sprintf("inscrição %s não encontrada", a.ParticipantID))
			}
			if p.Status != models.StatusPendingIdentification {
				return models.NewDomainError(models.CodeInvalidTransition,
					fmt.Sprintf("a inscrição %s já está no status %s", p.ID, p.Status))
			}
			race, ok := races[p.RaceID]
			if !ok {
				if race, err = s.repo.GetRace(ctx, p.RaceID); err != nil {
					return err
				}
				races[p.RaceID] = race
			}
			if err = s.checkIdentificationWindow(race, p); err != nil {
				return err
			}
			if err = p.Identify(member.Profile, member.ShirtSize, s.now()); err != nil {
				return err
			}
			if err = s.repo.UpdateParticipant(ctx, p, "status", "user_profile", "shirt_size", "updated_at"); err != nil {
				return err
			}
			updated = append(updated, p)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, p := range updated {
		s.events.Publish(events.Event{Type: events.ParticipantIdentified, RaceID: p.RaceID, EntityID: p.ID, Status: string(p.Status)})
		s.mail.Notify(ctx, p.UserProfile.Email, notify.ProfileUpdated, map[string]any{
			"name":     p.UserProfile.FullName,
			"modality": p.Modality,
		})
	}
	s.log.Info("participants identified in bulk", zap.String("user_id", actor.UserID), zap.Int("count", len(updated)))
	return len(updated), nil
}

// ValidateParticipant records the staff check of an IDENTIFICADA participant.
func (s *Service) ValidateParticipant(ctx context.Context, participantID string, agent models.Agent) (*models.Participant, error) {
	p, err := s.transition(ctx, participantID, func(p *models.Participant) error {
		return p.Validate(s.now())
	}, "status", "updated_at")
	if err != nil {
		return nil, err
	}
	s.log.Info("participant validated",
		zap.String("participant_id", p.ID), zap.String("race_id", p.RaceID), zap.String("agent_id", agent.ID))
	s.events.Publish(events.Event{Type: events.ParticipantValidated, RaceID: p.RaceID, EntityID: p.ID, Status: string(p.Status)})
	return p, nil
}

// Block takes the participant out of identification, bibs and pickup.
func (s *Service) Block(ctx context.Context, participantID, reason string) (*models.Participant, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewDomainError(models.CodeInvalidInput, "informe o motivo do bloqueio")
	}
	p, err := s.transition(ctx, participantID, func(p *models.Participant) error {
		return p.Block(reason, s.now())
	}, "status", "block_reason", "updated_at")
	if err != nil {
		return nil, err
	}
	s.log.Info("participant blocked",
		zap.String("participant_id", p.ID), zap.String("race_id", p.RaceID), zap.String("reason", reason))
	s.events.Publish(events.Event{Type: events.ParticipantBlocked, RaceID: p.RaceID, EntityID: p.ID, Status: string(p.Status)})
	return p, nil
}

func (s *Service) transition(ctx context.Context, participantID string, apply func(*models.Participant) error, columns ...string) (*models.Participant, error) {
	var p *models.Participant
	err := s.repo.InTx(ctx, func(ctx context.Context) error {
		var err error
		if p, err = s.repo.GetParticipantForUpdate(ctx, participantID); err != nil {
			return err
		}
		if err = apply(p); err != nil {
			return err
		}
		return s.repo.UpdateParticipant(ctx, p, columns...)
	})
	return p, err
}

// Participants lists the participants of one order or one race.
func (s *Service) Participants(ctx context.Context, f store.ParticipantFilter) ([]models.Participant, error) {
	return s.repo.ListParticipants(ctx, f)
}
