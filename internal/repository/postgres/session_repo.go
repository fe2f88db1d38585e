package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iamasit07/guess-master/backend/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

type SessionRepo struct {
	DB *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{DB: db}
}

const sessionSelectFields = `id, code, game_master, players, status, COALESCE(question, ''), COALESCE(answer, ''),
	attempts, scores, COALESCE(winner, ''), start_time, end_time, created_at, updated_at, version`

// sessionRow holds the JSONB columns of a session in their wire form
type sessionRow struct {
	players  []byte
	attempts []byte
	scores   []byte
}

func encodeSession(s *domain.Session) (sessionRow, error) {
	var row sessionRow
	var err error
	players := s.Players
	if players == nil {
		players = []domain.PlayerID{}
	}
	if row.players, err = json.Marshal(players); err != nil {
		return row, err
	}
	if row.attempts, err = json.Marshal(nonNilMap(s.Attempts)); err != nil {
		return row, err
	}
	if row.scores, err = json.Marshal(nonNilMap(s.Scores)); err != nil {
		return row, err
	}
	return row, nil
}

func nonNilMap(m map[domain.PlayerID]int) map[domain.PlayerID]int {
	if m == nil {
		return map[domain.PlayerID]int{}
	}
	return m
}

// scanSession scans one row selected with sessionSelectFields
func scanSession(row interface{ Scan(dest ...any) error }) (*domain.Session, error) {
	var s domain.Session
	var status, winner string
	var raw sessionRow
	var startTime, endTime sql.NullTime

	err := row.Scan(
		&s.ID,
		&s.Code,
		&s.GameMaster,
		&raw.players,
		&status,
		&s.Question,
		&s.Answer,
		&raw.attempts,
		&raw.scores,
		&winner,
		&startTime,
		&endTime,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.Version,
	)
	if err != nil {
		return nil, err
	}

	s.Status = domain.SessionStatus(status)
	s.Winner = domain.PlayerID(winner)
	if startTime.Valid {
		t := startTime.Time.UTC()
		s.StartTime = &t
	}
	if endTime.Valid {
		t := endTime.Time.UTC()
		s.EndTime = &t
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()

	if err := json.Unmarshal(raw.players, &s.Players); err != nil {
		return nil, fmt.Errorf("failed to decode players: %w", err)
	}
	if err := json.Unmarshal(raw.attempts, &s.Attempts); err != nil {
		return nil, fmt.Errorf("failed to decode attempts: %w", err)
	}
	if err := json.Unmarshal(raw.scores, &s.Scores); err != nil {
		return nil, fmt.Errorf("failed to decode scores: %w", err)
	}
	s.Attempts = nonNilMap(s.Attempts)
	s.Scores = nonNilMap(s.Scores)
	return &s, nil
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// Create inserts a new session. A taken code yields domain.ErrSessionCodeTaken.
func (r *SessionRepo) Create(ctx context.Context, s *domain.Session) error {
	row, err := encodeSession(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	query := `
	INSERT INTO game_sessions (id, code, game_master, players, status, question, answer,
		attempts, scores, winner, start_time, end_time, created_at, updated_at, version)
	VALUES ($1, $2, $3, $4::jsonb, $5, $6, $7, $8::jsonb, $9::jsonb, $10, $11, $12, $13, $14, 1);
	`
	_, err = r.DB.ExecContext(ctx, query,
		s.ID, s.Code, string(s.GameMaster), string(row.players), string(s.Status),
		nullString(s.Question), nullString(s.Answer), string(row.attempts), string(row.scores),
		nullString(string(s.Winner)), nullTime(s.StartTime), nullTime(s.EndTime), s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrSessionCodeTaken
		}
		return fmt.Errorf("failed to create session: %w", err)
	}
	s.Version = 1
	return nil
}

func (r *SessionRepo) GetByCode(ctx context.Context, code string) (*domain.Session, error) {
	query := `SELECT ` + sessionSelectFields + ` FROM game_sessions WHERE code = $1;`
	s, err := scanSession(r.DB.QueryRowContext(ctx, query, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

func (r *SessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	query := `SELECT ` + sessionSelectFields + ` FROM game_sessions WHERE id = $1;`
	s, err := scanSession(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// Update writes s only if the row still carries s.Version, then bumps the version.
func (r *SessionRepo) Update(ctx context.Context, s *domain.Session) error {
	row, err := encodeSession(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	query := `
	UPDATE game_sessions
	SET game_master = $2, players = $3::jsonb, status = $4, question = $5, answer = $6,
		attempts = $7::jsonb, scores = $8::jsonb, winner = $9, start_time = $10, end_time = $11,
		updated_at = $12, version = version + 1
	WHERE code = $1 AND version = $13;
	`
	res, err := r.DB.ExecContext(ctx, query,
		s.Code, string(s.GameMaster), string(row.players), string(s.Status),
		nullString(s.Question), nullString(s.Answer), string(row.attempts), string(row.scores),
		nullString(string(s.Winner)), nullTime(s.StartTime), nullTime(s.EndTime), s.UpdatedAt, s.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if affected == 0 {
		var exists bool
		if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM game_sessions WHERE code = $1);`, s.Code).Scan(&exists); err != nil {
			return fmt.Errorf("failed to update session: %w", err)
		}
		if !exists {
			return domain.ErrSessionNotFound
		}
		return domain.ErrStaleSession
	}
	s.Version++
	return nil
}

func (r *SessionRepo) Delete(ctx context.Context, code string) error {
	if _, err := r.DB.ExecContext(ctx, `DELETE FROM game_sessions WHERE code = $1;`, code); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (r *SessionRepo) List(ctx context.Context) ([]domain.Session, error) {
	query := `SELECT ` + sessionSelectFields + ` FROM game_sessions ORDER BY created_at ASC, code ASC;`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}
