package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/iamasit07/guess-master/backend/internal/domain"
)

// UserRepo reads player profiles from the users table owned by the auth service.
type UserRepo struct {
	DB *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{DB: db}
}

const userSelectFields = `id, username, COALESCE(first_name, '') AS first_name, COALESCE(last_name, '') AS last_name`

// scanProfile is a helper that scans a row into a Profile
func scanProfile(row interface{ Scan(dest ...any) error }) (domain.Profile, error) {
	var id int64
	var username, first, last string
	if err := row.Scan(&id, &username, &first, &last); err != nil {
		return domain.Profile{}, err
	}
	return domain.Profile{
		ID:       domain.ToPlayerID(id),
		Username: username,
		FullName: strings.TrimSpace(first + " " + last),
	}, nil
}

// GetProfilesByIDs loads the profiles for ids. Ids that are not numeric user ids are skipped.
func (r *UserRepo) GetProfilesByIDs(ctx context.Context, ids []domain.PlayerID) ([]domain.Profile, error) {
	numeric := make([]int64, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseInt(id.String(), 10, 64)
		if err != nil {
			continue
		}
		numeric = append(numeric, n)
	}
	if len(numeric) == 0 {
		return nil, nil
	}

	query := `SELECT ` + userSelectFields + ` FROM users WHERE id = ANY($1);`
	rows, err := r.DB.QueryContext(ctx, query, numeric)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	var profiles []domain.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		profiles = append(profiles, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	return profiles, nil
}
