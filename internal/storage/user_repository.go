package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/token-curator/internal/models"
)

// UserOrder selects the counter used to rank users
type UserOrder string

const (
	OrderBySubmissions UserOrder = "projects_submitted"
	OrderByVotesCast   UserOrder = "projects_voted"
)

const userColumns = `
	id, username, first_name, last_name, wallet_address, is_admin,
	projects_submitted, projects_voted, created_at, updated_at`

// UserRepository handles user data persistence
type UserRepository struct {
	db *PostgresDB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *PostgresDB) *UserRepository {
	return &UserRepository{db: db}
}

// Upsert creates the user or refreshes its profile fields.
// Counters and wallet are never overwritten here.
func (r *UserRepository) Upsert(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	row := r.db.Pool().QueryRow(ctx, `
		INSERT INTO users (id, username, first_name, last_name, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (id) DO UPDATE SET
			username = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			is_admin = EXCLUDED.is_admin,
			updated_at = EXCLUDED.updated_at
		RETURNING `+userColumns,
		user.ID,
		user.Username,
		user.FirstName,
		user.LastName,
		user.IsAdmin,
		now,
	)

	stored, err := scanUser(row)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	*user = *stored
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(r.db.Pool().QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetByIDs retrieves the users that exist among ids, keyed by id
func (r *UserRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*models.User, error) {
	result := make(map[string]*models.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.db.Pool().Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		result[user.ID] = user
	}
	return result, rows.Err()
}

// SetWallet stores an externally validated wallet address
func (r *UserRepository) SetWallet(ctx context.Context, userID, address string) error {
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE users SET wallet_address = $2, updated_at = $3 WHERE id = $1`,
		userID, address, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to set wallet: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

// ListTop returns users with a positive counter, ordered by it descending
func (r *UserRepository) ListTop(ctx context.Context, order UserOrder, limit int) ([]*models.User, error) {
	var column string
	switch order {
	case OrderBySubmissions, OrderByVotesCast:
		column = string(order)
	default:
		return nil, fmt.Errorf("unsupported user order: %s", order)
	}

	rows, err := r.db.Pool().Query(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE `+column+` > 0
		ORDER BY `+column+` DESC, created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.WalletAddress,
		&u.IsAdmin,
		&u.ProjectsSubmitted,
		&u.ProjectsVoted,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
