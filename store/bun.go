package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/padraicbc/raceops/models"
)

type txKey struct{}

// BunStore implements Repository on PostgreSQL through bun.
type BunStore struct {
	db *bun.DB
}

// NewBunStore wraps an open bun handle.
func NewBunStore(db *bun.DB) *BunStore {
	return &BunStore{db: db}
}

func (s *BunStore) conn(ctx context.Context) bun.IDB {
	if tx, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return tx
	}
	return s.db
}

// InTx runs fn in a transaction. Nested calls join the outer transaction.
func (s *BunStore) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return fn(ctx)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	committed = true

	return nil
}

// IsRetryable reports whether a transaction failed for a reason that a fresh
// attempt may not hit: serialization failures, deadlocks, unique violations from a
// concurrent writer and conditional updates that lost a race.
func IsRetryable(err error) bool {
	if errors.Is(err, models.ErrConcurrencyConflict) {
		return true
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		switch pgErr.Field('C') {
		case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.UniqueViolation:
			return true
		}
	}
	return false
}

func notFound(entity, id string) error {
	return models.NewDomainError(models.CodeNotFound, fmt.Sprintf("%s %s não encontrado(a)", entity, id))
}

func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func scanOne(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(entity, id)
	}
	return fmt.Errorf("load %s %s: %w", entity, id, err)
}

func (s *BunStore) getRace(ctx context.Context, id string, lock bool) (*models.Race, error) {
	if !validID(id) {
		return nil, notFound("corrida", id)
	}
	race := new(models.Race)
	q := s.conn(ctx).NewSelect().Model(race).Where("rc.id = ?", id)
	if lock {
		q = q.For("UPDATE")
	}
	if err := scanOne(q.Scan(ctx), "corrida", id); err != nil {
		return nil, err
	}
	return race, nil
}

func (s *BunStore) GetRace(ctx context.Context, id string) (*models.Race, error) {
	return s.getRace(ctx, id, false)
}

// GetRaceForUpdate locks the race row until the surrounding transaction ends.
func (s *BunStore) GetRaceForUpdate(ctx context.Context, id string) (*models.Race, error) {
	return s.getRace(ctx, id, true)
}

func (s *BunStore) ListRaces(ctx context.Context) ([]models.Race, error) {
	var races []models.Race
	err := s.conn(ctx).NewSelect().Model(&races).
		Where("rc.status <> ?", models.RaceDraft).
		OrderExpr("rc.date ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list races: %w", err)
	}
	return races, nil
}

func (s *BunStore) UpdateRaceOptions(ctx context.Context, race *models.Race) error {
	res, err := s.conn(ctx).NewUpdate().Model(race).
		Column("options", "updated_at").
		WherePK().
		Exec(ctx)
	return affectedOne(res, err, "corrida", race.ID)
}

func (s *BunStore) GetParticipant(ctx context.Context, id string) (*models.Participant, error) {
	return s.getParticipant(ctx, id, false)
}

// GetParticipantForUpdate locks the participant row until the surrounding
// transaction ends, so concurrent status changes serialize.
func (s *BunStore) GetParticipantForUpdate(ctx context.Context, id string) (*models.Participant, error) {
	return s.getParticipant(ctx, id, true)
}

func (s *BunStore) getParticipant(ctx context.Context, id string, lock bool) (*models.Participant, error) {
	if !validID(id) {
		return nil, notFound("inscrição", id)
	}
	p := new(models.Participant)
	q := s.conn(ctx).NewSelect().Model(p).Where("p.id = ?", id)
	if lock {
		q = q.For("UPDATE")
	}
	if err := scanOne(q.Scan(ctx), "inscrição", id); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *BunStore) ListParticipants(ctx context.Context, f ParticipantFilter) ([]models.Participant, error) {
	var ps []models.Participant
	q := s.conn(ctx).NewSelect().Model(&ps).OrderExpr("p.created_at ASC, p.id ASC")
	if f.RaceID != "" {
		q = q.Where("p.race_id = ?", f.RaceID)
	}
	if f.OrderID != "" {
		q = q.Where("p.order_id = ?", f.OrderID)
	}
	if f.UserID != "" {
		q = q.Where("p.user_id = ?", f.UserID)
	}
	if f.Modality != "" {
		q = q.Where("p.modality = ?", f.Modality)
	}
	if len(f.Statuses) > 0 {
		q = q.Where("p.status IN (?)", bun.In(f.Statuses))
	}
	if len(f.IDs) > 0 {
		q = q.Where("p.id IN (?)", bun.In(f.IDs))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return ps, nil
}

var lookupColumns = map[LookupField]string{
	ByID:             "p.id",
	ByBibNumber:      "p.bib_number",
	ByDocumentNumber: "p.user_profile->>'documentNumber'",
	ByFullName:       "p.user_profile->>'fullName'",
	ByEmail:          "p.user_profile->>'email'",
}

// FindParticipants returns the participants of raceID whose field equals any of values.
func (s *BunStore) FindParticipants(ctx context.Context, raceID string, field LookupField, values ...string) ([]models.Participant, error) {
	col, ok := lookupColumns[field]
	if !ok {
		return nil, fmt.Errorf("unknown lookup field %d", field)
	}
	if field == ByID {
		values = filterIDs(values)
	}
	if len(values) == 0 || !validID(raceID) {
		return nil, nil
	}

	var ps []models.Participant
	err := s.conn(ctx).NewSelect().Model(&ps).
		Where("p.race_id = ?", raceID).
		Where(col+" IN (?)", bun.In(values)).
		OrderExpr("p.created_at ASC, p.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("find participants: %w", err)
	}
	return ps, nil
}

func filterIDs(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if validID(v) {
			out = append(out, v)
		}
	}
	return out
}

func (s *BunStore) UpdateParticipant(ctx context.Context, p *models.Participant, columns ...string) error {
	q := s.conn(ctx).NewUpdate().Model(p).WherePK()
	if len(columns) > 0 {
		q = q.Column(columns...)
	}
	res, err := q.Exec(ctx)
	return affectedOne(res, err, "inscrição", p.ID)
}

func (s *BunStore) CountAssignedBibs(ctx context.Context, raceID string) (int, error) {
	n, err := s.conn(ctx).NewSelect().Model((*models.Participant)(nil)).
		Where("p.race_id = ?", raceID).
		Where("p.bib_number IS NOT NULL").
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count bibs: %w", err)
	}
	return n, nil
}

func (s *BunStore) CountByStatus(ctx context.Context, raceID string) ([]StatusCount, error) {
	var rows []StatusCount
	err := s.conn(ctx).NewSelect().Model((*models.Participant)(nil)).
		Column("status", "kit_status").
		ColumnExpr("count(*) AS count").
		Where("p.race_id = ?", raceID).
		Group("status", "kit_status").
		OrderExpr("status, kit_status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("count participants: %w", err)
	}
	return rows, nil
}

func (s *BunStore) AssignBib(ctx context.Context, participantID, bib string, now time.Time) (bool, error) {
	res, err := s.conn(ctx).NewUpdate().Model((*models.Participant)(nil)).
		Set("bib_number = ?", bib).
		Set("updated_at = ?", now).
		Where("id = ?", participantID).
		Where("bib_number IS NULL").
		Exec(ctx)
	return affected(res, err)
}

func (s *BunStore) ClaimKit(ctx context.Context, participantID string, pickup models.KitPickup) (bool, error) {
	if !validID(participantID) {
		return false, nil
	}
	raw, err := json.Marshal(pickup)
	if err != nil {
		return false, err
	}
	res, err := s.conn(ctx).NewUpdate().Model((*models.Participant)(nil)).
		Set("kit_status = ?", models.KitWithdrawn).
		Set("kit_pickup = ?::jsonb", string(raw)).
		Set("updated_at = ?", pickup.WithdrawnAt).
		Where("id = ?", participantID).
		Where("kit_status <> ?", models.KitWithdrawn).
		Where("status IN (?)", bun.In([]models.ParticipantStatus{models.StatusIdentified, models.StatusValidated})).
		Exec(ctx)
	return affected(res, err)
}

func (s *BunStore) getOrder(ctx context.Context, id string, lock bool) (*models.Order, error) {
	if !validID(id) {
		return nil, notFound("pedido", id)
	}
	o := new(models.Order)
	q := s.conn(ctx).NewSelect().Model(o).Where("o.id = ?", id)
	if lock {
		q = q.For("UPDATE")
	}
	if err := scanOne(q.Scan(ctx), "pedido", id); err != nil {
		return nil, err
	}
	attempts, err := s.ListDeliveryAttempts(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	o.DeliveryAttempts = make([]*models.DeliveryAttempt, len(attempts))
	for i := range attempts {
		o.DeliveryAttempts[i] = &attempts[i]
	}
	return o, nil
}

func (s *BunStore) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.getOrder(ctx, id, false)
}

// GetOrderForUpdate locks the order row until the surrounding transaction ends.
func (s *BunStore) GetOrderForUpdate(ctx context.Context, id string) (*models.Order, error) {
	return s.getOrder(ctx, id, true)
}

func (s *BunStore) FindOrderByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var id string
	err := s.conn(ctx).NewSelect().Model((*models.Order)(nil)).
		Column("id").
		Where("o.order_number = ?", orderNumber).
		Scan(ctx, &id)
	if err := scanOne(err, "pedido", orderNumber); err != nil {
		return nil, err
	}
	return s.getOrder(ctx, id, false)
}

func (s *BunStore) UpdateOrder(ctx context.Context, o *models.Order, columns ...string) error {
	q := s.conn(ctx).NewUpdate().Model(o).WherePK()
	if len(columns) > 0 {
		q = q.Column(columns...)
	}
	res, err := q.Exec(ctx)
	return affectedOne(res, err, "pedido", o.ID)
}

// InsertDeliveryAttempt appends to the delivery log. Attempts are never updated.
func (s *BunStore) InsertDeliveryAttempt(ctx context.Context, a *models.DeliveryAttempt) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if _, err := s.conn(ctx).NewInsert().Model(a).Exec(ctx); err != nil {
		return fmt.Errorf("insert delivery attempt: %w", err)
	}
	return nil
}

func (s *BunStore) ListDeliveryAttempts(ctx context.Context, orderID string) ([]models.DeliveryAttempt, error) {
	var attempts []models.DeliveryAttempt
	err := s.conn(ctx).NewSelect().Model(&attempts).
		Where("da.order_id = ?", orderID).
		OrderExpr("da.timestamp ASC, da.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list delivery attempts: %w", err)
	}
	return attempts, nil
}

func (s *BunStore) ListTeamMembers(ctx context.Context, ownerID string, ids []string) ([]models.TeamMember, error) {
	ids = filterIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	var members []models.TeamMember
	err := s.conn(ctx).NewSelect().Model(&members).
		Where("tm.owner_id = ?", ownerID).
		Where("tm.id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list team members: %w", err)
	}
	return members, nil
}

func (s *BunStore) ListCombos(ctx context.Context, raceID string) ([]models.Combo, error) {
	if !validID(raceID) {
		return nil, nil
	}
	var combos []models.Combo
	err := s.conn(ctx).NewSelect().Model(&combos).
		Where("cb.race_id = ?", raceID).
		Where("cb.active").
		OrderExpr("cb.price ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list combos: %w", err)
	}
	return combos, nil
}

func (s *BunStore) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	c := new(models.Coupon)
	err := s.conn(ctx).NewSelect().Model(c).Where("upper(cp.code) = upper(?)", code).Scan(ctx)
	if err := scanOne(err, "cupom", code); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *BunStore) RedeemCoupon(ctx context.Context, id string) (bool, error) {
	res, err := s.conn(ctx).NewUpdate().Model((*models.Coupon)(nil)).
		Set("used_count = used_count + 1").
		Where("id = ?", id).
		Where("max_uses IS NULL OR used_count < max_uses").
		Exec(ctx)
	return affected(res, err)
}

// GetAutomationSetting returns nil without error when the key was never saved.
func (s *BunStore) GetAutomationSetting(ctx context.Context, key string) (*models.AutomationSetting, error) {
	setting := new(models.AutomationSetting)
	err := s.conn(ctx).NewSelect().Model(setting).Where("aset.key = ?", key).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load automation setting %s: %w", key, err)
	}
	return setting, nil
}

func (s *BunStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	u := new(models.User)
	err := s.conn(ctx).NewSelect().Model(u).Where("lower(u.email) = lower(?)", email).Scan(ctx)
	if err := scanOne(err, "usuário", email); err != nil {
		return nil, err
	}
	return u, nil
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func affectedOne(res sql.Result, err error, entity, id string) error {
	ok, err := affected(res, err)
	if err != nil {
		return fmt.Errorf("update %s %s: %w", entity, id, err)
	}
	if !ok {
		return notFound(entity, id)
	}
	return nil
}

var _ Repository = (*BunStore)(nil)
