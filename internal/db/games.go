package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable is returned when no store is configured.
	ErrUnavailable = errors.New("game records unavailable")
)

// Game statuses.
const (
	StatusLive  = "live"
	StatusEnded = "ended"
)

// GameRecord is a row of the games table.
type GameRecord struct {
	ID        int64      `json:"id"`
	SessionID string     `json:"sessionId"`
	HostID    int64      `json:"hostId"`
	GuestID   int64      `json:"guestId"`
	Status    string     `json:"status"`
	EndReason string     `json:"endReason,omitempty"`
	WinnerID  *int64     `json:"winnerId,omitempty"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
}

const schema = `CREATE TABLE IF NOT EXISTS games (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	session_id VARCHAR(64) NOT NULL,
	host_id BIGINT NOT NULL,
	guest_id BIGINT NOT NULL,
	status VARCHAR(16) NOT NULL,
	end_reason VARCHAR(16) NOT NULL DEFAULT '',
	winner_id BIGINT NULL,
	started_at DATETIME NOT NULL,
	ended_at DATETIME NULL,
	INDEX idx_games_session (session_id)
)`

const gameColumns = `id, session_id, host_id, guest_id, status, end_reason, winner_id, started_at, ended_at`

// GameStore reads and writes finished and running game records.
type GameStore struct {
	db *sql.DB
}

// NewGameStore wraps an open MySQL handle.
func NewGameStore(db *sql.DB) *GameStore {
	return &GameStore{db: db}
}

// EnsureSchema creates the games table when missing.
func (s *GameStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating games table: %w", err)
	}
	return nil
}

// Create inserts rec and returns its new ID.
func (s *GameStore) Create(ctx context.Context, rec GameRecord) (int64, error) {
	if rec.Status == "" {
		rec.Status = StatusLive
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO games (session_id, host_id, guest_id, status, end_reason, winner_id, started_at, ended_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.HostID, rec.GuestID, rec.Status, rec.EndReason, rec.WinnerID, rec.StartedAt, rec.EndedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting game: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading game id: %w", err)
	}
	return id, nil
}

// FindAll returns every record, newest first.
func (s *GameStore) FindAll(ctx context.Context) ([]GameRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+gameColumns+` FROM games ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	defer rows.Close()

	var out []GameRecord
	for rows.Next() {
		rec, err := scanGame(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing games: %w", err)
	}
	return out, nil
}

// FindOne returns the record with the given ID.
func (s *GameStore) FindOne(ctx context.Context, id int64) (GameRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = ?`, id)
	rec, err := scanGame(row)
	if errors.Is(err, sql.ErrNoRows) {
		return GameRecord{}, fmt.Errorf("game %d: %w", id, ErrNotFound)
	}
	return rec, err
}

// Update overwrites the mutable fields of the record rec.ID.
func (s *GameStore) Update(ctx context.Context, rec GameRecord) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE games SET status = ?, end_reason = ?, winner_id = ?, ended_at = ? WHERE id = ?`,
		rec.Status, rec.EndReason, rec.WinnerID, rec.EndedAt, rec.ID,
	)
	if err != nil {
		return fmt.Errorf("updating game %d: %w", rec.ID, err)
	}
	return expectOneRow(res, rec.ID)
}

// EndBySession marks the live record of sessionID as ended.
func (s *GameStore) EndBySession(ctx context.Context, sessionID, reason string, endedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE games SET status = ?, end_reason = ?, ended_at = ? WHERE session_id = ? AND status = ?`,
		StatusEnded, reason, endedAt, sessionID, StatusLive,
	)
	if err != nil {
		return fmt.Errorf("ending game for session %s: %w", sessionID, err)
	}
	return nil
}

// Remove deletes the record with the given ID.
func (s *GameStore) Remove(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM games WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting game %d: %w", id, err)
	}
	return expectOneRow(res, id)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGame(row scanner) (GameRecord, error) {
	var (
		rec     GameRecord
		winner  sql.NullInt64
		endedAt sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.SessionID, &rec.HostID, &rec.GuestID,
		&rec.Status, &rec.EndReason, &winner, &rec.StartedAt, &endedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return GameRecord{}, err
		}
		return GameRecord{}, fmt.Errorf("scanning game: %w", err)
	}
	if winner.Valid {
		rec.WinnerID = &winner.Int64
	}
	if endedAt.Valid {
		rec.EndedAt = &endedAt.Time
	}
	return rec, nil
}

func expectOneRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("game %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("game %d: %w", id, ErrNotFound)
	}
	return nil
}
