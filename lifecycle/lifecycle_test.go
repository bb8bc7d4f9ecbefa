package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/padraicbc/raceops/events"
	"github.com/padraicbc/raceops/labels"
	"github.com/padraicbc/raceops/models"
	"github.com/padraicbc/raceops/notify"
	"github.com/padraicbc/raceops/store/memstore"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type mailSpy struct {
	mu   sync.Mutex
	sent []notify.EmailType
	to   []string
}

func (m *mailSpy) Notify(_ context.Context, to string, t notify.EmailType, _ map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, t)
	m.to = append(m.to, to)
}

type eventSpy struct {
	mu     sync.Mutex
	events []events.Event
}

func (e *eventSpy) Publish(ev events.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, ev)
}

type fixture struct {
	store  *memstore.Store
	svc    *Service
	mail   *mailSpy
	events *eventSpy
	race   models.Race
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	st := memstore.New()
	race := st.AddRace(models.Race{
		Name:   "Corrida da Ponte",
		Date:   now.Add(30 * 24 * time.Hour),
		Status: models.RacePublished,
		Options: []models.RaceOption{
			{Distance: "5K"},
			{Distance: "10K"},
		},
	})
	mail := &mailSpy{}
	ev := &eventSpy{}
	opts.Now = func() time.Time { return now }
	svc := New(st, ev, mail, labels.New("https://app.example.com/etiqueta"), zap.NewNop(), opts)
	return &fixture{store: st, svc: svc, mail: mail, events: ev, race: race}
}

func (f *fixture) participant(status models.ParticipantStatus, userID string) models.Participant {
	return f.store.AddParticipant(models.Participant{
		RaceID:   f.race.ID,
		OrderID:  "order-1",
		UserID:   userID,
		Modality: "5K",
		Status:   status,
	})
}

func (f *fixture) homeOrder(number string) models.Order {
	return f.store.AddOrder(models.Order{
		OrderNumber:      number,
		UserID:           "u1",
		RaceID:           f.race.ID,
		ResponsibleName:  "Ana Souza",
		ResponsibleEmail: "ana@example.com",
		DeliveryMethod:   models.DeliveryHome,
		DeliveryAddress:  &models.Address{Street: "Rua A", Number: "1", City: "Recife", State: "PE"},
		ParticipantIDs:   []string{"p1", "p2"},
	})
}

var staff = models.Agent{ID: "staff-1", Name: "Carla"}

func profile(name string) models.AthleteProfile {
	return models.AthleteProfile{FullName: name, DocumentNumber: "12345678901", Email: "atleta@example.com"}
}

func TestIdentifyPending(t *testing.T) {
	f := newFixture(t, Options{})
	p := f.participant(models.StatusPendingIdentification, "u1")

	got, err := f.svc.Identify(context.Background(), Actor{UserID: "u1"}, p.ID, profile("Ana Souza"), "M")
	require.NoError(t, err)
	assert.Equal(t, models.StatusIdentified, got.Status)
	assert.Equal(t, "Ana Souza", got.FullName())
	assert.Equal(t, "M", got.ShirtSize)
	assert.Equal(t, now, got.UpdatedAt)

	stored, _ := f.store.Participant(p.ID)
	assert.Equal(t, models.StatusIdentified, stored.Status)
	assert.Equal(t, []notify.EmailType{notify.ProfileUpdated}, f.mail.sent)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, events.ParticipantIdentified, f.events.events[0].Type)
}

func TestReidentifyKeepsBibAndKit(t *testing.T) {
	f := newFixture(t, Options{})
	bib := "5001"
	p := f.store.AddParticipant(models.Participant{
		RaceID:      f.race.ID,
		UserID:      "u1",
		Modality:    "5K",
		Status:      models.StatusIdentified,
		UserProfile: &models.AthleteProfile{FullName: "Ana"},
		BibNumber:   &bib,
		KitStatus:   models.KitWithdrawn,
	})

	got, err := f.svc.Identify(context.Background(), Actor{UserID: "u1"}, p.ID, profile("Ana Paula"), "P")
	require.NoError(t, err)

	assert.Equal(t, models.StatusIdentified, got.Status)
	assert.Equal(t, "Ana Paula", got.FullName())
	require.NotNil(t, got.BibNumber)
	assert.Equal(t, "5001", *got.BibNumber)
	assert.Equal(t, models.KitWithdrawn, got.KitStatus)

	stored, _ := f.store.Participant(p.ID)
	assert.Equal(t, "5001", *stored.BibNumber)
	assert.Equal(t, "Ana Paula", stored.FullName())
}

func TestIdentifyRejected(t *testing.T) {
	tests := []struct {
		name   string
		status models.ParticipantStatus
		actor  Actor
		want   error
	}{
		{"blocked", models.StatusBlocked, Actor{UserID: "u1"}, models.ErrInvalidTransition},
		{"validated", models.StatusValidated, Actor{UserID: "u1"}, models.ErrInvalidTransition},
		{"someone else's slot", models.StatusPendingIdentification, Actor{UserID: "u2"}, models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Options{})
			p := f.participant(tt.status, "u1")

			_, err := f.svc.Identify(context.Background(), tt.actor, p.ID, profile("Ana"), "M")
			assert.ErrorIs(t, err, tt.want)

			stored, _ := f.store.Participant(p.ID)
			assert.Equal(t, tt.status, stored.Status)
			assert.Empty(t, f.mail.sent)
		})
	}
}

func TestIdentifyRequiresName(t *testing.T) {
	f := newFixture(t, Options{})
	p := f.participant(models.StatusPendingIdentification, "u1")

	_, err := f.svc.Identify(context.Background(), Actor{UserID: "u1"}, p.ID, models.AthleteProfile{FullName: "  "}, "M")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestIdentifyAfterClose(t *testing.T) {
	closeRace := func(f *fixture) {
		r := f.race
		r.Date = now.Add(-time.Hour)
		f.store.AddRace(r)
	}

	t.Run("first identification refused", func(t *testing.T) {
		f := newFixture(t, Options{AllowEditAfterClose: true})
		closeRace(f)
		p := f.participant(models.StatusPendingIdentification, "u1")

		_, err := f.svc.Identify(context.Background(), Actor{UserID: "u1"}, p.ID, profile("Ana"), "M")
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})

	t.Run("edit refused by default", func(t *testing.T) {
		f := newFixture(t, Options{})
		closeRace(f)
		p := f.participant(models.StatusIdentified, "u1")

		_, err := f.svc.Identify(context.Background(), Actor{UserID: "u1"}, p.ID, profile("Ana"), "M")
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})

	t.Run("edit allowed when enabled", func(t *testing.T) {
		f := newFixture(t, Options{AllowEditAfterClose: true})
		closeRace(f)
		p := f.participant(models.StatusIdentified, "u1")

		got, err := f.svc.Identify(context.Background(), Actor{UserID: "u1"}, p.ID, profile("Ana B"), "M")
		require.NoError(t, err)
		assert.Equal(t, "Ana B", got.FullName())
	})
}

func TestBulkIdentify(t *testing.T) {
	f := newFixture(t, Options{})
	p1 := f.participant(models.StatusPendingIdentification, "u1")
	p2 := f.participant(models.StatusPendingIdentification, "u1")
	m1 := f.store.AddTeamMember(models.TeamMember{OwnerID: "u1", Profile: profile("Bruno"), ShirtSize: "G"})
	m2 := f.store.AddTeamMember(models.TeamMember{OwnerID: "u1", Profile: profile("Carla"), ShirtSize: "P"})

	n, err := f.svc.BulkIdentify(context.Background(), Actor{UserID: "u1"}, []Assignment{
		{ParticipantID: p1.ID, TeamMemberID: m1.ID},
		{ParticipantID: p2.ID, TeamMemberID: m2.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	s1, _ := f.store.Participant(p1.ID)
	s2, _ := f.store.Participant(p2.ID)
	assert.Equal(t, "Bruno", s1.FullName())
	assert.Equal(t, "G", s1.ShirtSize)
	assert.Equal(t, "Carla", s2.FullName())
	assert.Equal(t, models.StatusIdentified, s2.Status)
	assert.Len(t, f.events.events, 2)
}

func TestBulkIdentifyDuplicateMember(t *testing.T) {
	f := newFixture(t, Options{})
	p1 := f.participant(models.StatusPendingIdentification, "u1")
	p2 := f.participant(models.StatusPendingIdentification, "u1")
	m1 := f.store.AddTeamMember(models.TeamMember{OwnerID: "u1", Profile: profile("Bruno")})

	_, err := f.svc.BulkIdentify(context.Background(), Actor{UserID: "u1"}, []Assignment{
		{ParticipantID: p1.ID, TeamMemberID: m1.ID},
		{ParticipantID: p2.ID, TeamMemberID: m1.ID},
	})
	assert.ErrorIs(t, err, models.ErrDuplicateAssignment)

	s1, _ := f.store.Participant(p1.ID)
	assert.Equal(t, models.StatusPendingIdentification, s1.Status)
}

func TestBulkIdentifyIsAllOrNothing(t *testing.T) {
	f := newFixture(t, Options{})
	p1 := f.participant(models.StatusPendingIdentification, "u1")
	p2 := f.participant(models.StatusIdentified, "u1")
	m1 := f.store.AddTeamMember(models.TeamMember{OwnerID: "u1", Profile: profile("Bruno")})
	m2 := f.store.AddTeamMember(models.TeamMember{OwnerID: "u1", Profile: profile("Carla")})

	_, err := f.svc.BulkIdentify(context.Background(), Actor{UserID: "u1"}, []Assignment{
		{ParticipantID: p1.ID, TeamMemberID: m1.ID},
		{ParticipantID: p2.ID, TeamMemberID: m2.ID},
	})
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	s1, _ := f.store.Participant(p1.ID)
	assert.Equal(t, models.StatusPendingIdentification, s1.Status)
	assert.Nil(t, s1.UserProfile)
	assert.Empty(t, f.events.events)
}

func TestBulkIdentifyForeignTeamMember(t *testing.T) {
	f := newFixture(t, Options{})
	p1 := f.participant(models.StatusPendingIdentification, "u1")
	m := f.store.AddTeamMember(models.TeamMember{OwnerID: "u2", Profile: profile("Bruno")})

	_, err := f.svc.BulkIdentify(context.Background(), Actor{UserID: "u1"}, []Assignment{
		{ParticipantID: p1.ID, TeamMemberID: m.ID},
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestValidateAndBlock(t *testing.T) {
	f := newFixture(t, Options{})
	p := f.participant(models.StatusIdentified, "u1")

	got, err := f.svc.ValidateParticipant(context.Background(), p.ID, staff)
	require.NoError(t, err)
	assert.Equal(t, models.StatusValidated, got.Status)

	_, err = f.svc.ValidateParticipant(context.Background(), p.ID, staff)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = f.svc.Block(context.Background(), p.ID, " ")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	got, err = f.svc.Block(context.Background(), p.ID, "documento falso")
	require.NoError(t, err)
	assert.Equal(t, models.StatusBlocked, got.Status)
	require.NotNil(t, got.BlockReason)
	assert.Equal(t, "documento falso", *got.BlockReason)

	_, err = f.svc.Identify(context.Background(), Actor{Admin: true}, p.ID, profile("Ana"), "M")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestValidatePendingRefused(t *testing.T) {
	f := newFixture(t, Options{})
	p := f.participant(models.StatusPendingIdentification, "u1")

	_, err := f.svc.ValidateParticipant(context.Background(), p.ID, staff)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestStatusChangesLockParticipant(t *testing.T) {
	f := newFixture(t, Options{})
	locked := errors.New("row locked")
	ctx := context.Background()

	pending := f.participant(models.StatusPendingIdentification, "u1")
	identified := f.participant(models.StatusIdentified, "u1")
	member := f.store.AddTeamMember(models.TeamMember{OwnerID: "u1", Profile: profile("Bruno"), ShirtSize: "G"})

	calls := map[string]func() error{
		"identify": func() error {
			_, err := f.svc.Identify(ctx, Actor{UserID: "u1"}, pending.ID, profile("Ana"), "M")
			return err
		},
		"bulk identify": func() error {
			_, err := f.svc.BulkIdentify(ctx, Actor{UserID: "u1"}, []Assignment{{ParticipantID: pending.ID, TeamMemberID: member.ID}})
			return err
		},
		"validate": func() error {
			_, err := f.svc.ValidateParticipant(ctx, identified.ID, staff)
			return err
		},
		"block": func() error {
			_, err := f.svc.Block(ctx, identified.ID, "documento falso")
			return err
		},
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			f.store.FailNext("GetParticipantForUpdate", locked)
			assert.ErrorIs(t, call(), locked)
		})
	}

	s1, _ := f.store.Participant(pending.ID)
	s2, _ := f.store.Participant(identified.ID)
	assert.Equal(t, models.StatusPendingIdentification, s1.Status)
	assert.Equal(t, models.StatusIdentified, s2.Status)
}

func TestConcurrentBlockAndValidate(t *testing.T) {
	f := newFixture(t, Options{})
	p := f.participant(models.StatusIdentified, "u1")

	var (
		wg                 sync.WaitGroup
		validErr, blockErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, validErr = f.svc.ValidateParticipant(context.Background(), p.ID, staff)
	}()
	go func() {
		defer wg.Done()
		_, blockErr = f.svc.Block(context.Background(), p.ID, "documento falso")
	}()
	wg.Wait()

	// Block wins from any status, so it always lands last or alone.
	require.NoError(t, blockErr)
	if validErr != nil {
		assert.ErrorIs(t, validErr, models.ErrInvalidTransition)
	}
	got, _ := f.store.Participant(p.ID)
	assert.Equal(t, models.StatusBlocked, got.Status)
}

func TestDeliveredIsTerminal(t *testing.T) {
	f := newFixture(t, Options{})
	o := f.homeOrder("MM-1")
	ctx := context.Background()

	got, err := f.svc.UpdateDeliveryStatus(ctx, o.ID, models.DeliveryDelivered, "", staff)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryDelivered, got.KitDeliveryStatus)
	require.Len(t, got.DeliveryAttempts, 1)
	assert.Equal(t, "Carla", got.DeliveryAttempts[0].AgentName)

	for _, next := range []models.DeliveryStatus{
		models.DeliveryDelivered, models.DeliveryProblem, models.DeliveryPrinted, models.DeliveryPending,
	} {
		_, err = f.svc.UpdateDeliveryStatus(ctx, o.ID, next, "cliente ausente no endereço", staff)
		assert.ErrorIs(t, err, models.ErrTerminalState, next)
	}

	stored, err := f.store.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryDelivered, stored.KitDeliveryStatus)
	assert.Len(t, stored.DeliveryAttempts, 1)
}

func TestObservationRule(t *testing.T) {
	f := newFixture(t, Options{})
	o := f.homeOrder("MM-2")
	ctx := context.Background()

	_, err := f.svc.UpdateDeliveryStatus(ctx, o.ID, models.DeliveryProblem, "", staff)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = f.svc.UpdateDeliveryStatus(ctx, o.ID, models.DeliveryNotAnswered, "curta", staff)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	attempts, err := f.store.ListDeliveryAttempts(ctx, o.ID)
	require.NoError(t, err)
	assert.Empty(t, attempts)

	got, err := f.svc.UpdateDeliveryStatus(ctx, o.ID, models.DeliveryDelivered, "", staff)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryDelivered, got.KitDeliveryStatus)
}

func TestAttemptLogIsAppendOnly(t *testing.T) {
	f := newFixture(t, Options{})
	o := f.homeOrder("MM-3")
	ctx := context.Background()

	steps := []struct {
		status models.DeliveryStatus
		obs    string
	}{
		{models.DeliveryNotAnswered, "ninguém atendeu a campainha"},
		{models.DeliveryPrinted, "nova etiqueta impressa"},
		{models.DeliveryProblem, "endereço não localizado"},
		{models.DeliveryDelivered, ""},
	}
	for _, s := range steps {
		_, err := f.svc.UpdateDeliveryStatus(ctx, o.ID, s.status, s.obs, staff)
		require.NoError(t, err, s.status)
	}

	attempts, err := f.store.ListDeliveryAttempts(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, attempts, len(steps))
	for i, s := range steps {
		assert.Equal(t, s.status, attempts[i].Status)
		assert.Equal(t, s.obs, attempts[i].Observation)
		assert.NotEmpty(t, attempts[i].ID)
	}
}

func TestPickupOrderHasNoDeliveryMachine(t *testing.T) {
	f := newFixture(t, Options{})
	o := f.store.AddOrder(models.Order{OrderNumber: "MM-4", RaceID: f.race.ID, DeliveryMethod: models.DeliveryPickup})

	_, err := f.svc.UpdateDeliveryStatus(context.Background(), o.ID, models.DeliveryDelivered, "", staff)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	_, err = f.svc.MarkPrinted(context.Background(), o.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestMarkPrinted(t *testing.T) {
	f := newFixture(t, Options{})
	o := f.homeOrder("MM-5")
	ctx := context.Background()

	res, err := f.svc.MarkPrinted(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryPrinted, res.Order.KitDeliveryStatus)
	require.NotNil(t, res.Order.FirstPrintedAt)
	assert.Equal(t, now, *res.Order.FirstPrintedAt)
	assert.Contains(t, res.LabelURL, "pedido=MM-5")
	assert.Equal(t, []notify.EmailType{notify.KitShipped}, f.mail.sent)
	assert.Equal(t, []string{"ana@example.com"}, f.mail.to)

	later := now.Add(time.Hour)
	f.svc.opts.Now = func() time.Time { return later }
	res, err = f.svc.MarkPrinted(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryPrinted, res.Order.KitDeliveryStatus)
	assert.Equal(t, now, *res.Order.FirstPrintedAt)
	assert.NotEmpty(t, res.LabelURL)
	assert.Len(t, f.mail.sent, 1)
}

func TestMarkPrintedAfterProblemReprints(t *testing.T) {
	f := newFixture(t, Options{})
	o := f.homeOrder("MM-6")
	ctx := context.Background()

	_, err := f.svc.UpdateDeliveryStatus(ctx, o.ID, models.DeliveryProblem, "portaria recusou o pacote", staff)
	require.NoError(t, err)

	res, err := f.svc.MarkPrinted(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DeliveryPrinted, res.Order.KitDeliveryStatus)
}

func TestScanDelivery(t *testing.T) {
	f := newFixture(t, Options{})
	o := f.homeOrder("MM-7")
	ctx := context.Background()

	res, err := f.svc.ScanDelivery(ctx, "MM-7", staff)
	require.NoError(t, err)
	assert.False(t, res.AlreadyDelivered)
	assert.Equal(t, models.DeliveryDelivered, res.Order.KitDeliveryStatus)

	res, err = f.svc.ScanDelivery(ctx, o.ID, staff)
	require.NoError(t, err)
	assert.True(t, res.AlreadyDelivered)

	attempts, err := f.store.ListDeliveryAttempts(ctx, o.ID)
	require.NoError(t, err)
	assert.Len(t, attempts, 1)

	_, err = f.svc.ScanDelivery(ctx, "MM-404", staff)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStats(t *testing.T) {
	f := newFixture(t, Options{})
	f.participant(models.StatusPendingIdentification, "u1")
	f.participant(models.StatusIdentified, "u1")
	bib := "5001"
	f.store.AddParticipant(models.Participant{
		RaceID:    f.race.ID, Modality: "5K", Status: models.StatusValidated,
		BibNumber: &bib, KitStatus: models.KitWithdrawn,
	})

	st, err := f.svc.Stats(context.Background(), f.race.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 1, st.ByStatus[models.StatusValidated])
	assert.Equal(t, 1, st.KitsWithdrawn)
	assert.Equal(t, 1, st.BibsAssigned)
	assert.Equal(t, models.RacePublished, st.Status)
}
