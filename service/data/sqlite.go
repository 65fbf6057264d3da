package data

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/khaledhikmat/scanbill-go/model"
	"github.com/khaledhikmat/scanbill-go/service/config"
	"github.com/khaledhikmat/scanbill-go/service/lgr"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type sqliteService struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the bill archive at the configured
// database file and brings its schema up to date.
func NewSQLite(cfgSvc config.IService) (IService, error) {
	path := cfgSvc.GetDatabaseFile()
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("error creating database folder: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON; PRAGMA busy_timeout = 5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error applying pragmas: %w", err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteService{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}

	// m is not closed here, that would close the shared db handle.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	lgr.Logger.Debug("migrate", slog.String("message", fmt.Sprintf(format, v...)))
}

func (migrateLogger) Verbose() bool {
	return false
}

func (svc *sqliteService) NewBill(bill model.Bill) error {
	tx, err := svc.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var deliveredAt sql.NullInt64
	if bill.DeliveredAt != nil {
		deliveredAt = sql.NullInt64{Int64: bill.DeliveredAt.UnixNano(), Valid: true}
	}

	_, err = tx.Exec(`INSERT INTO bills (id, created_at, subtotal, tax_rate, tax, grand_total, customer_email, delivered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		bill.ID, bill.CreatedAt.UnixNano(), bill.Subtotal.String(), bill.TaxRate.String(),
		bill.Tax.String(), bill.GrandTotal.String(), bill.CustomerEmail, deliveredAt)
	if err != nil {
		return fmt.Errorf("error inserting bill: %w", err)
	}

	for i, l := range bill.Lines {
		_, err = tx.Exec(`INSERT INTO bill_lines (bill_id, position, line_id, name, unit_price, quantity)
			VALUES (?, ?, ?, ?, ?, ?)`,
			bill.ID, i, l.ID, l.Name, l.UnitPrice.String(), l.Quantity)
		if err != nil {
			return fmt.Errorf("error inserting bill line: %w", err)
		}
	}

	return tx.Commit()
}

func (svc *sqliteService) MarkBillDelivered(id, email string, at time.Time) error {
	res, err := svc.db.Exec(`UPDATE bills SET customer_email = ?, delivered_at = ? WHERE id = ?`,
		email, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("error updating bill: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBillNotFound
	}
	return nil
}

func (svc *sqliteService) RetrieveBillByID(id string) (model.Bill, error) {
	row := svc.db.QueryRow(`SELECT id, created_at, subtotal, tax_rate, tax, grand_total, customer_email, delivered_at
		FROM bills WHERE id = ?`, id)

	bill, err := scanBill(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Bill{}, ErrBillNotFound
	}
	if err != nil {
		return model.Bill{}, err
	}

	if err := svc.loadLines(&bill); err != nil {
		return model.Bill{}, err
	}
	return bill, nil
}

func (svc *sqliteService) RetrieveBills(limit int) ([]model.Bill, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := svc.db.Query(`SELECT id, created_at, subtotal, tax_rate, tax, grand_total, customer_email, delivered_at
		FROM bills ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying bills: %w", err)
	}

	bills := []model.Bill{}
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		bills = append(bills, bill)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range bills {
		if err := svc.loadLines(&bills[i]); err != nil {
			return nil, err
		}
	}
	return bills, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBill(row scanner) (model.Bill, error) {
	var bill model.Bill
	var createdAt int64
	var deliveredAt sql.NullInt64

	err := row.Scan(&bill.ID, &createdAt, &bill.Subtotal, &bill.TaxRate, &bill.Tax,
		&bill.GrandTotal, &bill.CustomerEmail, &deliveredAt)
	if err != nil {
		return model.Bill{}, err
	}

	bill.CreatedAt = time.Unix(0, createdAt).UTC()
	if deliveredAt.Valid {
		t := time.Unix(0, deliveredAt.Int64).UTC()
		bill.DeliveredAt = &t
	}
	return bill, nil
}

func (svc *sqliteService) loadLines(bill *model.Bill) error {
	rows, err := svc.db.Query(`SELECT line_id, name, unit_price, quantity
		FROM bill_lines WHERE bill_id = ? ORDER BY position`, bill.ID)
	if err != nil {
		return fmt.Errorf("error querying bill lines: %w", err)
	}
	defer rows.Close()

	bill.Lines = []model.CartLine{}
	for rows.Next() {
		var l model.CartLine
		if err := rows.Scan(&l.ID, &l.Name, &l.UnitPrice, &l.Quantity); err != nil {
			return err
		}
		bill.Lines = append(bill.Lines, l)
	}
	return rows.Err()
}

func (svc *sqliteService) NewError(err interface{}) error {
	rec := toErrorRecord(err)

	misc, mErr := json.Marshal(rec.Misc)
	if mErr != nil {
		misc = []byte("null")
	}

	_, dbErr := svc.db.Exec(`INSERT INTO errors (timestamp, processor, inner_error, message, stack_trace, misc)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.Processor, rec.Inner, rec.Message, rec.StackTrace, string(misc))
	return dbErr
}

func (svc *sqliteService) NewScannerStats(stats model.ScannerStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newStats("scanner", stats.Timestamp, stats)
}

func (svc *sqliteService) NewCaptureStats(stats model.CaptureStats) error {
	stats.Timestamp = time.Now().Unix()
	return svc.newStats("capture", stats.Timestamp, stats)
}

func (svc *sqliteService) newStats(kind string, ts int64, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = svc.db.Exec(`INSERT INTO stats (kind, timestamp, payload) VALUES (?, ?, ?)`, kind, ts, string(data))
	return err
}

func (svc *sqliteService) Close() error {
	return svc.db.Close()
}
