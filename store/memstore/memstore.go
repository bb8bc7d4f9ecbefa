// Package memstore is an in-memory store.Repository used by service and handler tests.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/padraicbc/raceops/models"
	"github.com/padraicbc/raceops/store"
)

type txKey struct{}

type state struct {
	races        map[string]models.Race
	participants map[string]models.Participant
	orders       map[string]models.Order
	attempts     []models.DeliveryAttempt
	members      map[string]models.TeamMember
	combos       map[string]models.Combo
	coupons      map[string]models.Coupon
	settings     map[string]models.AutomationSetting
	users        map[string]models.User
}

func (s state) clone() state {
	return state{
		races:        cloneMap(s.races),
		participants: cloneMap(s.participants),
		orders:       cloneMap(s.orders),
		attempts:     slices.Clone(s.attempts),
		members:      cloneMap(s.members),
		combos:       cloneMap(s.combos),
		coupons:      cloneMap(s.coupons),
		settings:     cloneMap(s.settings),
		users:        cloneMap(s.users),
	}
}

func cloneMap[V any](m map[string]V) map[string]V {
	out := make(map[string]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Store keeps every entity in maps guarded by a mutex. Transactions are serialized
// and rolled back by restoring a snapshot.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	st   state
	fail map[string][]error
}

func New() *Store {
	return &Store{
		st: state{
			races:        map[string]models.Race{},
			participants: map[string]models.Participant{},
			orders:       map[string]models.Order{},
			members:      map[string]models.TeamMember{},
			combos:       map[string]models.Combo{},
			coupons:      map[string]models.Coupon{},
			settings:     map[string]models.AutomationSetting{},
			users:        map[string]models.User{},
		},
		fail: map[string][]error{},
	}
}

// FailNext makes the next call of op return err. Calls queue up in order.
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = append(s.fail[op], err)
}

func (s *Store) injected(op string) error {
	errs := s.fail[op]
	if len(errs) == 0 {
		return nil
	}
	s.fail[op] = errs[1:]
	return errs[0]
}

func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	snapshot := s.st.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// serialize makes a write issued outside a transaction wait for any open one,
// so a rollback snapshot never discards it.
func (s *Store) serialize(ctx context.Context) func() {
	if ctx.Value(txKey{}) != nil {
		return func() {}
	}
	s.txMu.Lock()
	return s.txMu.Unlock
}

func notFound(entity, id string) error {
	return models.NewDomainError(models.CodeNotFound, fmt.Sprintf("%s %s não encontrado(a)", entity, id))
}

func (s *Store) AddRace(r models.Race) models.Race {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = models.RacePublished
	}
	s.st.races[r.ID] = r
	return r
}

func (s *Store) AddParticipant(p models.Participant) models.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.StatusPendingIdentification
	}
	if p.KitStatus == "" {
		p.KitStatus = models.KitPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	s.st.participants[p.ID] = p
	return p
}

func (s *Store) AddOrder(o models.Order) models.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.KitDeliveryStatus == "" {
		o.KitDeliveryStatus = models.DeliveryPending
	}
	o.DeliveryAttempts = nil
	s.st.orders[o.ID] = o
	return o
}

func (s *Store) AddTeamMember(m models.TeamMember) models.TeamMember {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	s.st.members[m.ID] = m
	return m
}

func (s *Store) AddCombo(c models.Combo) models.Combo {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.st.combos[c.ID] = c
	return c
}

func (s *Store) AddCoupon(c models.Coupon) models.Coupon {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.st.coupons[c.ID] = c
	return c
}

func (s *Store) AddUser(u models.User) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.st.users[u.ID] = u
	return u
}

func (s *Store) SetAutomationSetting(a models.AutomationSetting) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.settings[a.Key] = a
}

// Participant returns the stored participant, or false if missing.
func (s *Store) Participant(id string) (models.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.participants[id]
	return p, ok
}

func (s *Store) GetRace(_ context.Context, id string) (*models.Race, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.st.races[id]
	if !ok {
		return nil, notFound("corrida", id)
	}
	r.Options = slices.Clone(r.Options)
	return &r, nil
}

func (s *Store) GetRaceForUpdate(ctx context.Context, id string) (*models.Race, error) {
	return s.GetRace(ctx, id)
}

func (s *Store) ListRaces(_ context.Context) ([]models.Race, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Race
	for _, r := range s.st.races {
		if r.Status != models.RaceDraft {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) UpdateRaceOptions(ctx context.Context, race *models.Race) error {
	defer s.serialize(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.st.races[race.ID]
	if !ok {
		return notFound("corrida", race.ID)
	}
	r.Options = slices.Clone(race.Options)
	r.UpdatedAt = race.UpdatedAt
	s.st.races[race.ID] = r
	return nil
}

func (s *Store) GetParticipant(_ context.Context, id string) (*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.participants[id]
	if !ok {
		return nil, notFound("inscrição", id)
	}
	return &p, nil
}

// GetParticipantForUpdate only makes sense inside InTx, where the store is
// already serialized.
func (s *Store) GetParticipantForUpdate(ctx context.Context, id string) (*models.Participant, error) {
	if ctx.Value(txKey{}) == nil {
		return nil, errors.New("memstore: GetParticipantForUpdate outside a transaction")
	}
	s.mu.Lock()
	err := s.injected("GetParticipantForUpdate")
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.GetParticipant(ctx, id)
}

func (s *Store) sortedParticipants(keep func(models.Participant) bool) []models.Participant {
	var out []models.Participant
	for _, p := range s.st.participants {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Store) ListParticipants(_ context.Context, f store.ParticipantFilter) ([]models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedParticipants(func(p models.Participant) bool {
		switch {
		case f.RaceID != "" && p.RaceID != f.RaceID,
			f.OrderID != "" && p.OrderID != f.OrderID,
			f.UserID != "" && p.UserID != f.UserID,
			f.Modality != "" && p.Modality != f.Modality,
			len(f.Statuses) > 0 && !slices.Contains(f.Statuses, p.Status),
			len(f.IDs) > 0 && !slices.Contains(f.IDs, p.ID):
			return false
		}
		return true
	}), nil
}

func lookupValue(p models.Participant, field store.LookupField) (string, bool) {
	switch field {
	case store.ByID:
		return p.ID, true
	case store.ByBibNumber:
		if p.BibNumber == nil {
			return "", false
		}
		return *p.BibNumber, true
	}
	if p.UserProfile == nil {
		return "", false
	}
	switch field {
	case store.ByDocumentNumber:
		return p.UserProfile.DocumentNumber, true
	case store.ByFullName:
		return p.UserProfile.FullName, true
	case store.ByEmail:
		return p.UserProfile.Email, true
	}
	return "", false
}

func (s *Store) FindParticipants(_ context.Context, raceID string, field store.LookupField, values ...string) ([]models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(values) == 0 {
		return nil, nil
	}
	return s.sortedParticipants(func(p models.Participant) bool {
		if p.RaceID != raceID {
			return false
		}
		v, ok := lookupValue(p, field)
		return ok && slices.Contains(values, v)
	}), nil
}

// UpdateParticipant stores p. Column lists are ignored; the whole row is replaced.
func (s *Store) UpdateParticipant(ctx context.Context, p *models.Participant, _ ...string) error {
	defer s.serialize(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("UpdateParticipant"); err != nil {
		return err
	}
	if _, ok := s.st.participants[p.ID]; !ok {
		return notFound("inscrição", p.ID)
	}
	s.st.participants[p.ID] = *p
	return nil
}

func (s *Store) CountAssignedBibs(_ context.Context, raceID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.st.participants {
		if p.RaceID == raceID && p.BibNumber != nil {
			n++
		}
	}
	return n, nil
}

func (s *Store) CountByStatus(_ context.Context, raceID string) ([]store.StatusCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	type key struct {
		status models.ParticipantStatus
		kit    models.KitStatus
	}
	counts := map[key]int{}
	for _, p := range s.st.participants {
		if p.RaceID == raceID {
			counts[key{p.Status, p.KitStatus}]++
		}
	}
	out := make([]store.StatusCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, store.StatusCount{Status: k.status, KitStatus: k.kit, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Status != out[j].Status {
			return out[i].Status < out[j].Status
		}
		return out[i].KitStatus < out[j].KitStatus
	})
	return out, nil
}

func (s *Store) AssignBib(ctx context.Context, participantID, bib string, now time.Time) (bool, error) {
	defer s.serialize(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("AssignBib"); err != nil {
		return false, err
	}
	p, ok := s.st.participants[participantID]
	if !ok || p.BibNumber != nil {
		return false, nil
	}
	for _, other := range s.st.participants {
		if other.RaceID == p.RaceID && other.Modality == p.Modality &&
			other.BibNumber != nil && *other.BibNumber == bib {
			return false, models.NewDomainError(models.CodeConcurrencyConflict,
				fmt.Sprintf("o número %s já está em uso", bib))
		}
	}
	p.BibNumber = &bib
	p.UpdatedAt = now
	s.st.participants[participantID] = p
	return true, nil
}

func (s *Store) ClaimKit(ctx context.Context, participantID string, pickup models.KitPickup) (bool, error) {
	defer s.serialize(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.participants[participantID]
	if !ok || p.KitStatus == models.KitWithdrawn || !p.Status.PickupEligible() {
		return false, nil
	}
	p.KitStatus = models.KitWithdrawn
	p.KitPickup = &pickup
	p.UpdatedAt = pickup.WithdrawnAt
	s.st.participants[participantID] = p
	return true, nil
}

func (s *Store) orderWithAttempts(o models.Order) *models.Order {
	o.DeliveryAttempts = nil
	for i := range s.st.attempts {
		if s.st.attempts[i].OrderID == o.ID {
			a := s.st.attempts[i]
			o.DeliveryAttempts = append(o.DeliveryAttempts, &a)
		}
	}
	return &o
}

func (s *Store) GetOrder(_ context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.orders[id]
	if !ok {
		return nil, notFound("pedido", id)
	}
	return s.orderWithAttempts(o), nil
}

func (s *Store) GetOrderForUpdate(ctx context.Context, id string) (*models.Order, error) {
	return s.GetOrder(ctx, id)
}

func (s *Store) FindOrderByNumber(_ context.Context, orderNumber string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.st.orders {
		if o.OrderNumber == orderNumber {
			return s.orderWithAttempts(o), nil
		}
	}
	return nil, notFound("pedido", orderNumber)
}

func (s *Store) UpdateOrder(ctx context.Context, o *models.Order, _ ...string) error {
	defer s.serialize(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.orders[o.ID]; !ok {
		return notFound("pedido", o.ID)
	}
	stored := *o
	stored.DeliveryAttempts = nil
	s.st.orders[o.ID] = stored
	return nil
}

func (s *Store) InsertDeliveryAttempt(ctx context.Context, a *models.DeliveryAttempt) error {
	defer s.serialize(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.injected("InsertDeliveryAttempt"); err != nil {
		return err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	s.st.attempts = append(s.st.attempts, *a)
	return nil
}

func (s *Store) ListDeliveryAttempts(_ context.Context, orderID string) ([]models.DeliveryAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DeliveryAttempt
	for _, a := range s.st.attempts {
		if a.OrderID == orderID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) ListTeamMembers(_ context.Context, ownerID string, ids []string) ([]models.TeamMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TeamMember
	for _, id := range ids {
		if m, ok := s.st.members[id]; ok && m.OwnerID == ownerID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *Store) ListCombos(_ context.Context, raceID string) ([]models.Combo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Combo
	for _, c := range s.st.combos {
		if c.RaceID == raceID && c.Active {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out, nil
}

func (s *Store) GetCouponByCode(_ context.Context, code string) (*models.Coupon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.st.coupons {
		if strings.EqualFold(c.Code, code) {
			return &c, nil
		}
	}
	return nil, notFound("cupom", code)
}

func (s *Store) RedeemCoupon(ctx context.Context, id string) (bool, error) {
	defer s.serialize(ctx)()
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.st.coupons[id]
	if !ok || (c.MaxUses != nil && c.UsedCount >= *c.MaxUses) {
		return false, nil
	}
	c.UsedCount++
	s.st.coupons[id] = c
	return true, nil
}

func (s *Store) GetAutomationSetting(_ context.Context, key string) (*models.AutomationSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.st.settings[key]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.st.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, notFound("usuário", email)
}

var _ store.Repository = (*Store)(nil)
