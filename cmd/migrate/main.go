// cmd/migrate/main.go
// Imports races, orders and participants from the legacy MySQL registration
// database into PostgreSQL. Legacy integer ids are mapped to stable UUIDs, so
// re-running the import skips rows that were already brought over.
//
// Usage:
//
//	MYSQL_DSN="user:pass@tcp(host:3306)/inscricoes?parseTime=true" \
//	DB_PASS="pgpass" \
//	go run ./cmd/migrate
package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/padraicbc/raceops/config"
	bundb "github.com/padraicbc/raceops/db"
	"github.com/padraicbc/raceops/models"
)

const batchSize = 500

var legacyNamespace = uuid.MustParse("3b8f6c1e-5d2a-4f7b-9a41-6e0c2d9b7a15")

func main() {
	ctx := context.Background()

	cfg := config.LoadDB()

	// --- MySQL ---
	if cfg.MySQLDSN == "" {
		log.Fatal("MYSQL_DSN required, e.g.: user:pass@tcp(host:3306)/inscricoes?parseTime=true")
	}
	myDB, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatalf("open mysql: %v", err)
	}
	defer myDB.Close()
	myDB.SetMaxOpenConns(4)
	if err := myDB.PingContext(ctx); err != nil {
		log.Fatalf("ping mysql: %v", err)
	}
	log.Println("connected to MySQL")

	// --- PostgreSQL ---
	pgDB, err := bundb.Setup(ctx, cfg)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pgDB.Close()
	log.Println("connected to PostgreSQL")

	if err := bundb.CreateTables(ctx, pgDB, zap.NewNop()); err != nil {
		log.Fatalf("create tables: %v", err)
	}

	steps := []struct {
		name string
		fn   func() (int, error)
	}{
		{"races", func() (int, error) { return migrateRaces(ctx, myDB, pgDB) }},
		{"orders", func() (int, error) { return migrateOrders(ctx, myDB, pgDB) }},
		{"participants", func() (int, error) { return migrateParticipants(ctx, myDB, pgDB) }},
	}

	for _, s := range steps {
		n, err := s.fn()
		if err != nil {
			log.Fatalf("migrate %s: %v", s.name, err)
		}
		log.Printf("%-15s  %d rows migrated", s.name, n)
	}
	log.Println("migration complete")
}

// --- helpers ---

// legacyID maps a legacy integer key of table to a stable UUID.
func legacyID(table string, id int64) string {
	return uuid.NewSHA1(legacyNamespace, []byte(fmt.Sprintf("%s:%d", table, id))).String()
}

func nullStr(n sql.NullString) *string {
	if !n.Valid || strings.TrimSpace(n.String) == "" {
		return nil
	}
	s := strings.TrimSpace(n.String)
	return &s
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// participantStatus maps the legacy status column.
func participantStatus(legacy string) models.ParticipantStatus {
	switch strings.ToLower(strings.TrimSpace(legacy)) {
	case "identificado", "identificada", "confirmado":
		return models.StatusIdentified
	case "validado", "validada":
		return models.StatusValidated
	case "bloqueado", "bloqueada", "cancelado":
		return models.StatusBlocked
	default:
		return models.StatusPendingIdentification
	}
}

func raceStatus(legacy string) models.RaceStatus {
	switch strings.ToLower(strings.TrimSpace(legacy)) {
	case "publicado", "aberta", "open":
		return models.RacePublished
	case "encerrado", "encerrada", "closed":
		return models.RaceClosed
	default:
		return models.RaceDraft
	}
}

// bulkInsert inserts a batch, skipping rows that already exist (idempotent re-runs).
func bulkInsert[T any](ctx context.Context, pgDB *bun.DB, rows []T, conflict string) error {
	if len(rows) == 0 {
		return nil
	}
	_, err := pgDB.NewInsert().Model(&rows).On(conflict).Exec(ctx)
	return err
}

// copyRows streams query results through scan and writes them in batches.
func copyRows[T any](ctx context.Context, myDB *sql.DB, pgDB *bun.DB, query, conflict string, scan func(*sql.Rows) (T, error)) (int, error) {
	rows, err := myDB.QueryContext(ctx, query)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var batch []T
	total := 0
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return total, err
		}
		batch = append(batch, r)
		if len(batch) >= batchSize {
			if err := bulkInsert(ctx, pgDB, batch, conflict); err != nil {
				return total, err
			}
			total += len(batch)
			batch = batch[:0]
		}
	}
	if err := rows.Err(); err != nil {
		return total, err
	}
	if err := bulkInsert(ctx, pgDB, batch, conflict); err != nil {
		return total, err
	}
	return total + len(batch), nil
}

// --- per-table migrations ---

// raceModalities loads every race's modalities and bib prefixes.
func raceModalities(ctx context.Context, myDB *sql.DB) (map[int64][]models.RaceOption, error) {
	rows, err := myDB.QueryContext(ctx, "SELECT race_id, distance, bib_prefix FROM race_modalities ORDER BY race_id, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[int64][]models.RaceOption{}
	for rows.Next() {
		var (
			raceID   int64
			distance string
			prefix   sql.NullInt64
		)
		if err := rows.Scan(&raceID, &distance, &prefix); err != nil {
			return nil, err
		}
		out[raceID] = append(out[raceID], models.RaceOption{Distance: strings.TrimSpace(distance), BibPrefix: nullInt(prefix)})
	}
	return out, rows.Err()
}

func migrateRaces(ctx context.Context, myDB *sql.DB, pgDB *bun.DB) (int, error) {
	options, err := raceModalities(ctx, myDB)
	if err != nil {
		return 0, err
	}
	return copyRows(ctx, myDB, pgDB,
		"SELECT id, name, race_date, location, status, created_at FROM races",
		"CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, date = EXCLUDED.date, location = EXCLUDED.location",
		func(rows *sql.Rows) (models.Race, error) {
			var (
				r      models.Race
				id     int64
				status string
			)
			if err := rows.Scan(&id, &r.Name, &r.Date, &r.Location, &status, &r.CreatedAt); err != nil {
				return r, err
			}
			r.ID = legacyID("races", id)
			r.Status = raceStatus(status)
			r.Options = options[id]
			if r.Options == nil {
				r.Options = []models.RaceOption{}
			}
			r.UpdatedAt = time.Now()
			return r, nil
		})
}

func migrateOrders(ctx context.Context, myDB *sql.DB, pgDB *bun.DB) (int, error) {
	return copyRows(ctx, myDB, pgDB,
		`SELECT id, order_number, user_id, race_id, responsible_name, responsible_email,
		        responsible_phone, delivery_method, total_amount, coupon_code, created_at
		 FROM orders`,
		"CONFLICT (id) DO NOTHING",
		func(rows *sql.Rows) (models.Order, error) {
			var (
				o              models.Order
				id, raceID     int64
				phone, coupon  sql.NullString
				method, amount string
			)
			if err := rows.Scan(&id, &o.OrderNumber, &o.UserID, &raceID, &o.ResponsibleName, &o.ResponsibleEmail,
				&phone, &method, &amount, &coupon, &o.CreatedAt); err != nil {
				return o, err
			}
			total, err := decimal.NewFromString(amount)
			if err != nil {
				return o, fmt.Errorf("order %d total %q: %w", id, amount, err)
			}
			o.ID = legacyID("orders", id)
			o.RaceID = legacyID("races", raceID)
			o.TotalAmount = total
			o.CouponCode = nullStr(coupon)
			if p := nullStr(phone); p != nil {
				o.ResponsiblePhone = *p
			}
			o.DeliveryMethod = models.DeliveryPickup
			if strings.EqualFold(strings.TrimSpace(method), "entrega") || strings.EqualFold(method, string(models.DeliveryHome)) {
				o.DeliveryMethod = models.DeliveryHome
			}
			o.KitDeliveryStatus = models.DeliveryPending
			o.ParticipantIDs = []string{}
			o.UpdatedAt = o.CreatedAt
			return o, nil
		})
}

func migrateParticipants(ctx context.Context, myDB *sql.DB, pgDB *bun.DB) (int, error) {
	n, err := copyRows(ctx, myDB, pgDB,
		`SELECT id, order_id, race_id, user_id, modality, status, full_name, document_number,
		        email, phone, shirt_size, bib_number, kit_withdrawn_at, created_at
		 FROM participants`,
		"CONFLICT (id) DO NOTHING",
		func(rows *sql.Rows) (models.Participant, error) {
			var (
				p                            models.Participant
				id, orderID, raceID          int64
				status                       string
				name, doc, email, phone, bib sql.NullString
				shirt                        sql.NullString
				withdrawnAt                  sql.NullTime
			)
			if err := rows.Scan(&id, &orderID, &raceID, &p.UserID, &p.Modality, &status, &name, &doc,
				&email, &phone, &shirt, &bib, &withdrawnAt, &p.CreatedAt); err != nil {
				return p, err
			}
			p.ID = legacyID("participants", id)
			p.OrderID = legacyID("orders", orderID)
			p.RaceID = legacyID("races", raceID)
			p.Status = participantStatus(status)
			p.BibNumber = nullStr(bib)
			if s := nullStr(shirt); s != nil {
				p.ShirtSize = *s
			}
			if nullStr(name) != nil {
				p.UserProfile = &models.AthleteProfile{
					FullName:       strings.TrimSpace(name.String),
					DocumentNumber: strings.TrimSpace(doc.String),
					Email:          strings.TrimSpace(email.String),
					Phone:          strings.TrimSpace(phone.String),
				}
			}
			p.KitStatus = models.KitPending
			if withdrawnAt.Valid {
				p.KitStatus = models.KitWithdrawn
				p.KitPickup = &models.KitPickup{WithdrawnAt: withdrawnAt.Time, Observation: "importado do sistema anterior"}
			}
			p.UpdatedAt = p.CreatedAt
			return p, nil
		})
	if err != nil {
		return n, err
	}

	// Orders list their participant slots.
	_, err = pgDB.ExecContext(ctx, `
		UPDATE orders o SET participant_ids = sub.ids
		FROM (SELECT order_id, array_agg(id::text ORDER BY created_at, id) AS ids FROM participants GROUP BY order_id) sub
		WHERE o.id = sub.order_id AND cardinality(o.participant_ids) = 0`)
	return n, err
}
