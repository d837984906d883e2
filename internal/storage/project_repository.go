package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/token-curator/internal/models"
	"github.com/token-curator/internal/types"
)

// ProjectOrder selects the sort used by List
type ProjectOrder string

const (
	OrderBySubmitted   ProjectOrder = "submitted"
	OrderByVotes       ProjectOrder = "votes"
	OrderByBullPercent ProjectOrder = "bull_percent"
	OrderByROI         ProjectOrder = "roi"
)

// ProjectFilter narrows List results. Zero values mean "no constraint".
type ProjectFilter struct {
	Status   *types.ProjectStatus
	MinVotes int64
	MinBulls int64
	HasROI   bool
	OrderBy  ProjectOrder
	Limit    int
	Offset   int
}

const projectColumns = `
	id, contract_address, name, symbol, logo, chart_url,
	market_cap, liquidity, initial_price, current_price, roi,
	bulls, bears, votes,
	status, approved_at, approved_by,
	submitted_by, submitted_in_chat, submitted_at,
	version, updated_at`

// ProjectRepository handles project persistence
type ProjectRepository struct {
	db *PostgresDB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *PostgresDB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create inserts a new project and credits the submitter in one transaction.
// Returns ErrDuplicateAddress when the contract address is already registered.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.New().String()
	}
	project.ContractAddress = types.NormalizeAddress(project.ContractAddress)
	now := time.Now().UTC()
	if project.SubmittedAt.IsZero() {
		project.SubmittedAt = now
	}
	project.UpdatedAt = now
	project.Version = 1

	return r.db.inTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO projects (`+projectColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			        $15, $16, $17, $18, $19, $20, $21, $22)`,
			project.ID,
			project.ContractAddress,
			project.Name,
			project.Symbol,
			project.Logo,
			project.ChartURL,
			project.MarketCap,
			project.Liquidity,
			project.InitialPrice,
			project.CurrentPrice,
			project.ROI,
			project.Bulls,
			project.Bears,
			project.Votes,
			project.Status,
			project.ApprovedAt,
			project.ApprovedBy,
			project.SubmittedBy,
			project.SubmittedInChat,
			project.SubmittedAt,
			project.Version,
			project.UpdatedAt,
		)
		if err != nil {
			if uniqueViolationOn(err, constraintProjectAddress) {
				return fmt.Errorf("%w: %s", ErrDuplicateAddress, project.ContractAddress)
			}
			return fmt.Errorf("failed to create project: %w", err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE users
			SET projects_submitted = projects_submitted + 1, updated_at = $2
			WHERE id = $1`, project.SubmittedBy, now); err != nil {
			return fmt.Errorf("failed to credit submitter: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a project by ID
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	row := r.db.Pool().QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id)
	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("project %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// GetByAddress retrieves a project by contract address, case-insensitively
func (r *ProjectRepository) GetByAddress(ctx context.Context, address string) (*models.Project, error) {
	row := r.db.Pool().QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE lower(contract_address) = $1`,
		types.NormalizeAddress(address))
	project, err := scanProject(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("project with address %s: %w", address, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get project by address: %w", err)
	}
	return project, nil
}

// GetByIDs retrieves the projects that exist among ids, keyed by id
func (r *ProjectRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*models.Project, error) {
	result := make(map[string]*models.Project, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := r.db.Pool().Query(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		result[project.ID] = project
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return result, nil
}

// List returns projects matching filter, sorted and limited in SQL
func (r *ProjectRepository) List(ctx context.Context, filter ProjectFilter) ([]*models.Project, error) {
	query, args := buildProjectListQuery(filter)

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	var projects []*models.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, project)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}
	return projects, nil
}

func buildProjectListQuery(filter ProjectFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Status != nil {
		where = append(where, "status = "+arg(*filter.Status))
	}
	if filter.MinVotes > 0 {
		where = append(where, "votes >= "+arg(filter.MinVotes))
	}
	if filter.MinBulls > 0 {
		where = append(where, "bulls >= "+arg(filter.MinBulls))
	}
	if filter.HasROI {
		where = append(where, "roi IS NOT NULL")
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + projectColumns + " FROM projects")
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}

	switch filter.OrderBy {
	case OrderByVotes:
		sb.WriteString(" ORDER BY votes DESC, bulls DESC, submitted_at ASC")
	case OrderByBullPercent:
		sb.WriteString(" ORDER BY (bulls::float8 / NULLIF(votes, 0)) DESC NULLS LAST, votes DESC, submitted_at ASC")
	case OrderByROI:
		sb.WriteString(" ORDER BY roi DESC NULLS LAST, submitted_at ASC")
	default:
		sb.WriteString(" ORDER BY submitted_at DESC")
	}

	if filter.Limit > 0 {
		sb.WriteString(" LIMIT " + arg(filter.Limit))
	}
	if filter.Offset > 0 {
		sb.WriteString(" OFFSET " + arg(filter.Offset))
	}
	return sb.String(), args
}

// UpdateStatus writes the lifecycle fields of project if the stored version still
// equals project.Version, then advances project.Version.
func (r *ProjectRepository) UpdateStatus(ctx context.Context, project *models.Project) error {
	now := time.Now().UTC()
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE projects
		SET status = $3, approved_at = $4, approved_by = $5, version = version + 1, updated_at = $6
		WHERE id = $1 AND version = $2`,
		project.ID,
		project.Version,
		project.Status,
		project.ApprovedAt,
		project.ApprovedBy,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to update project status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrConflict(ctx, project.ID)
	}
	project.Version++
	project.UpdatedAt = now
	return nil
}

// UpdateMarket writes the tracker-owned price fields. initial_price is never touched.
func (r *ProjectRepository) UpdateMarket(ctx context.Context, id string, currentPrice, roi float64) error {
	tag, err := r.db.Pool().Exec(ctx, `
		UPDATE projects
		SET current_price = $2, roi = $3, updated_at = $4
		WHERE id = $1`,
		id, currentPrice, roi, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update project market data: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return nil
}

// missingOrConflict distinguishes a deleted row from a version mismatch after a guarded update
func (r *ProjectRepository) missingOrConflict(ctx context.Context, id string) error {
	var exists bool
	if err := r.db.Pool().QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM projects WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check project existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("project %s: %w", id, ErrNotFound)
	}
	return fmt.Errorf("project %s: %w", id, ErrVersionConflict)
}

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(
		&p.ID,
		&p.ContractAddress,
		&p.Name,
		&p.Symbol,
		&p.Logo,
		&p.ChartURL,
		&p.MarketCap,
		&p.Liquidity,
		&p.InitialPrice,
		&p.CurrentPrice,
		&p.ROI,
		&p.Bulls,
		&p.Bears,
		&p.Votes,
		&p.Status,
		&p.ApprovedAt,
		&p.ApprovedBy,
		&p.SubmittedBy,
		&p.SubmittedInChat,
		&p.SubmittedAt,
		&p.Version,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
