package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shubhsahu23/VoiceBot/internal/domain"
	"github.com/shubhsahu23/VoiceBot/internal/errorsx"
	"github.com/shubhsahu23/VoiceBot/internal/shared"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time

	clockMu sync.Mutex // Guards lastTS so message timestamps never go backwards
	lastTS  int64
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := "file:" + dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db, now: time.Now}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS drivers (
		driver_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		record_json TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS driver_phones (
		driver_id TEXT NOT NULL REFERENCES drivers(driver_id) ON DELETE CASCADE,
		digits TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (driver_id, digits)
	);
	CREATE INDEX IF NOT EXISTS idx_driver_phones_digits ON driver_phones(digits);

	CREATE TABLE IF NOT EXISTS escalations (
		id TEXT PRIMARY KEY,
		driver_id TEXT NOT NULL,
		intent TEXT NOT NULL,
		confidence REAL NOT NULL,
		summary TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_escalations_active_driver
		ON escalations(driver_id) WHERE status IN ('OPEN', 'IN_PROGRESS');
	CREATE INDEX IF NOT EXISTS idx_escalations_status_created ON escalations(status, created_at);

	CREATE TABLE IF NOT EXISTS messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		driver_id TEXT NOT NULL,
		sender TEXT NOT NULL,
		text TEXT NOT NULL,
		ts INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_driver_ts ON messages(driver_id, ts, seq);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// withRetry runs fn with exponential backoff on SQLITE_BUSY errors.
func withRetry(ctx context.Context, op string, fn func() error) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = fn()
		if err == nil || !shared.IsSQLiteConflictError(err) {
			return err
		}
		if i == maxRetries-1 {
			break
		}
		delay := baseDelay * time.Duration(1<<i) // exponential backoff: 50ms, 100ms, 200ms
		slog.Debug("SQLite busy, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return errorsx.Wrap(fmt.Errorf("%s after %d attempts: %w", op, maxRetries, err), errorsx.ReasonStoreUnavailable)
}

// --- drivers ---

// UpsertDriverRecord imports a raw driver document.
func (s *SQLiteStore) UpsertDriverRecord(ctx context.Context, raw map[string]any) (string, error) {
	rec, err := decodeDriverRecord(raw)
	if err != nil {
		return "", err
	}
	dc := rec.context()

	recordJSON, err := json.Marshal(dc.Attributes)
	if err != nil {
		return "", fmt.Errorf("encode driver record: %w", err)
	}

	err = withRetry(ctx, "upsert driver", func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer func() {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("failed to rollback driver upsert", "error", rbErr)
			}
		}()

		now := s.now().Unix()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO drivers (driver_id, name, record_json, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(driver_id) DO UPDATE SET
				name = excluded.name,
				record_json = excluded.record_json,
				updated_at = excluded.updated_at`,
			dc.DriverID, dc.Name, string(recordJSON), now, now,
		); err != nil {
			return fmt.Errorf("upsert driver: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM driver_phones WHERE driver_id = ?`, dc.DriverID); err != nil {
			return fmt.Errorf("clear driver phones: %w", err)
		}
		for i, digits := range dc.Phones {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO driver_phones (driver_id, digits, position) VALUES (?, ?, ?)`,
				dc.DriverID, digits, i,
			); err != nil {
				return fmt.Errorf("insert driver phone: %w", err)
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return "", err
	}
	return dc.DriverID, nil
}

// FindDriverContext retrieves a driver by id.
func (s *SQLiteStore) FindDriverContext(ctx context.Context, driverID string) (*domain.DriverContext, error) {
	driverID = strings.TrimSpace(driverID)
	if driverID == "" {
		return nil, nil
	}

	var name, recordJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, record_json FROM drivers WHERE driver_id = ?`, driverID,
	).Scan(&name, &recordJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("scan driver row: %w", err), errorsx.ReasonStoreUnavailable)
	}

	dc := &domain.DriverContext{DriverID: driverID, Name: name}
	if err := json.Unmarshal([]byte(recordJSON), &dc.Attributes); err != nil {
		return nil, fmt.Errorf("decode driver record %s: %w", driverID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT digits FROM driver_phones WHERE driver_id = ? ORDER BY position`, driverID)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("query driver phones: %w", err), errorsx.ReasonStoreUnavailable)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close driver phone rows", "error", closeErr)
		}
	}()
	for rows.Next() {
		var digits string
		if err := rows.Scan(&digits); err != nil {
			return nil, fmt.Errorf("scan driver phone: %w", err)
		}
		dc.Phones = append(dc.Phones, digits)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate driver phones: %w", err)
	}

	return dc, nil
}

// phoneSuffixLen is the number of trailing digits that identify a phone
// number regardless of country code.
const phoneSuffixLen = 10

// FindDriverByPhone retrieves a driver by exact or last-ten-digit phone match.
// Inputs with fewer than ten digits only match exactly.
func (s *SQLiteStore) FindDriverByPhone(ctx context.Context, phone string) (*domain.DriverContext, error) {
	digits := shared.DigitsOnly(phone)
	if digits == "" {
		return nil, nil
	}

	// Shorter inputs would match any number ending in them.
	pattern := digits
	if len(digits) >= phoneSuffixLen {
		pattern = "%" + shared.LastN(digits, phoneSuffixLen)
	}

	var driverID string
	err := s.db.QueryRowContext(ctx, `
		SELECT driver_id FROM driver_phones
		WHERE digits = ? OR digits LIKE ?
		ORDER BY (digits = ?) DESC, position ASC
		LIMIT 1`,
		digits, pattern, digits,
	).Scan(&driverID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("query driver by phone: %w", err), errorsx.ReasonStoreUnavailable)
	}

	return s.FindDriverContext(ctx, driverID)
}

// --- escalations ---

const ticketColumns = `id, driver_id, intent, confidence, summary, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var t domain.Ticket
	var intent, status string
	var createdAt, updatedAt int64
	if err := row.Scan(&t.ID, &t.DriverID, &intent, &t.Confidence, &t.Summary, &status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.Intent = domain.Intent(intent)
	t.Status = domain.TicketStatus(status)
	t.CreatedAt = time.Unix(0, createdAt)
	t.UpdatedAt = time.Unix(0, updatedAt)
	return &t, nil
}

// InsertTicket stores a new ticket, assigning its id when empty.
func (s *SQLiteStore) InsertTicket(ctx context.Context, t *domain.Ticket) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Status == "" {
		t.Status = domain.TicketOpen
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	t.UpdatedAt = t.CreatedAt

	return withRetry(ctx, "insert ticket", func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO escalations (`+ticketColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.DriverID, string(t.Intent), t.Confidence, t.Summary, string(t.Status),
			t.CreatedAt.UnixNano(), t.UpdatedAt.UnixNano(),
		)
		if shared.IsSQLiteUniqueError(err) {
			return errorsx.Wrap(fmt.Errorf("insert ticket for %s: %w", t.DriverID, ErrActiveTicketExists), errorsx.ReasonConflict)
		}
		if err != nil {
			return fmt.Errorf("insert ticket: %w", err)
		}
		return nil
	})
}

// GetTicket retrieves a ticket by id.
func (s *SQLiteStore) GetTicket(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	t, err := scanTicket(s.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM escalations WHERE id = ?`, ticketID))
	if err == sql.ErrNoRows {
		return nil, errorsx.Wrap(fmt.Errorf("ticket %s: %w", ticketID, ErrNotFound), errorsx.ReasonNotFound)
	}
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("scan ticket: %w", err), errorsx.ReasonStoreUnavailable)
	}
	return t, nil
}

// FindActiveTicket returns the newest ticket of driverID in one of statuses.
func (s *SQLiteStore) FindActiveTicket(ctx context.Context, driverID string, statuses []domain.TicketStatus) (*domain.Ticket, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	args := []any{driverID}
	for _, st := range statuses {
		args = append(args, string(st))
	}

	t, err := scanTicket(s.db.QueryRowContext(ctx, `
		SELECT `+ticketColumns+` FROM escalations
		WHERE driver_id = ? AND status IN (`+placeholders(len(statuses))+`)
		ORDER BY created_at DESC LIMIT 1`, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("scan active ticket: %w", err), errorsx.ReasonStoreUnavailable)
	}
	return t, nil
}

// TransitionTicket performs a conditional status update.
func (s *SQLiteStore) TransitionTicket(ctx context.Context, ticketID string, from []domain.TicketStatus, to domain.TicketStatus) (*domain.Ticket, error) {
	args := []any{string(to), s.now().UnixNano(), ticketID}
	for _, st := range from {
		args = append(args, string(st))
	}

	var rows int64
	err := withRetry(ctx, "transition ticket", func() error {
		result, err := s.db.ExecContext(ctx, `
			UPDATE escalations SET status = ?, updated_at = ?
			WHERE id = ? AND status IN (`+placeholders(len(from))+`)`, args...)
		if err != nil {
			return fmt.Errorf("update ticket status: %w", err)
		}
		rows, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonStoreUnavailable)
	}

	t, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		slog.Warn("TransitionTicket affected 0 rows", "ticket_id", ticketID, "status", t.Status, "to", to)
		return t, errorsx.Wrap(fmt.Errorf("ticket %s is %s: %w", ticketID, t.Status, ErrStaleTransition), errorsx.ReasonInvalidTransition)
	}
	return t, nil
}

// ListTickets returns tickets newest first. An empty status lists all.
func (s *SQLiteStore) ListTickets(ctx context.Context, status domain.TicketStatus) ([]*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM escalations`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`
	return s.queryTickets(ctx, query, args...)
}

// ListStaleTickets returns unresolved tickets with neither a status change
// nor a message from their driver's chat since before.
func (s *SQLiteStore) ListStaleTickets(ctx context.Context, before time.Time) ([]*domain.Ticket, error) {
	return s.queryTickets(ctx, `
		SELECT `+ticketColumns+` FROM escalations
		WHERE status IN ('OPEN', 'IN_PROGRESS')
		AND MAX(updated_at, COALESCE(
			(SELECT MAX(ts) FROM messages WHERE messages.driver_id = escalations.driver_id), 0)) < ?
		ORDER BY created_at ASC`, before.UnixNano())
}

func (s *SQLiteStore) queryTickets(ctx context.Context, query string, args ...any) ([]*domain.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("query tickets: %w", err), errorsx.ReasonStoreUnavailable)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close ticket rows", "error", closeErr)
		}
	}()

	var tickets []*domain.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ticket row: %w", err)
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tickets: %w", err)
	}
	return tickets, nil
}

// --- messages ---

// nextTimestamp returns a unix-nano timestamp strictly greater than the
// previous one handed out by this store.
func (s *SQLiteStore) nextTimestamp() int64 {
	s.clockMu.Lock()
	defer s.clockMu.Unlock()
	ts := s.now().UnixNano()
	if ts <= s.lastTS {
		ts = s.lastTS + 1
	}
	s.lastTS = ts
	return ts
}

// AppendMessage records a chat message.
func (s *SQLiteStore) AppendMessage(ctx context.Context, driverID string, sender domain.Sender, text string) (*domain.Message, error) {
	msg := &domain.Message{
		ID:       uuid.NewString(),
		DriverID: driverID,
		Sender:   sender,
		Text:     text,
	}

	err := withRetry(ctx, "append message", func() error {
		ts := s.nextTimestamp()
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO messages (id, driver_id, sender, text, ts) VALUES (?, ?, ?, ?, ?)`,
			msg.ID, msg.DriverID, string(msg.Sender), msg.Text, ts,
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		msg.Timestamp = time.Unix(0, ts)
		return nil
	})
	if err != nil {
		return nil, errorsx.Wrap(err, errorsx.ReasonStoreUnavailable)
	}
	return msg, nil
}

// ListMessages returns the driver's most recent messages, oldest first.
func (s *SQLiteStore) ListMessages(ctx context.Context, driverID string, limit int) ([]*domain.Message, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, driver_id, sender, text, ts FROM (
			SELECT seq, id, driver_id, sender, text, ts FROM messages
			WHERE driver_id = ?
			ORDER BY ts DESC, seq DESC
			LIMIT ?
		) ORDER BY ts ASC, seq ASC`, driverID, limit)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("query messages: %w", err), errorsx.ReasonStoreUnavailable)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close message rows", "error", closeErr)
		}
	}()

	var msgs []*domain.Message
	for rows.Next() {
		var m domain.Message
		var sender string
		var ts int64
		if err := rows.Scan(&m.ID, &m.DriverID, &sender, &m.Text, &ts); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		m.Sender = domain.Sender(sender)
		m.Timestamp = time.Unix(0, ts)
		msgs = append(msgs, &m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return msgs, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return "NULL"
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
