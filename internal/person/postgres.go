package person

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/cappuconnect/cappuconnect/internal/tracing"
)

// PostgresRepository implements Repository using PostgreSQL.
//
// Relationship sets live in a companion <table>_relations table keyed by
// (user_id, relation, target_id); set-add maps to INSERT ... ON CONFLICT
// DO NOTHING and set-remove to DELETE, so both primitives are atomic and
// idempotent at the database level.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger

	table     string
	relations string

	selectByID  string
	selectAll   string
	selectRels  string
	existsQuery string
	insertQuery string
	addRel      string
	removeRel   string
	touch       string
}

const personColumns = `id, firstname, lastname, email, password, state, linkedin,
	bio, school, major, experienceyears, industry, skills, resume, photo,
	created_at, updated_at`

// NewPostgresRepository creates a PostgresRepository bound to the given
// table. The table name comes from configuration resolved once at process
// start; it is never derived from request input.
func NewPostgresRepository(db *sql.DB, table string, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	relations := table + "_relations"
	return &PostgresRepository{
		db:        db,
		logger:    logger,
		table:     table,
		relations: relations,

		selectByID:  fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, personColumns, table),
		selectAll:   fmt.Sprintf(`SELECT %s FROM %s`, personColumns, table),
		selectRels:  fmt.Sprintf(`SELECT relation, target_id FROM %s WHERE user_id = $1`, relations),
		existsQuery: fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, table),
		insertQuery: fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW(), NOW())`, table, personColumns),
		addRel:      fmt.Sprintf(`INSERT INTO %s (user_id, relation, target_id) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`, relations),
		removeRel:   fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND relation = $2 AND target_id = $3`, relations),
		touch:       fmt.Sprintf(`UPDATE %s SET updated_at = NOW() WHERE id = $1`, table),
	}
}

func (r *PostgresRepository) scanPerson(row interface{ Scan(...any) error }) (*Person, error) {
	var p Person
	err := row.Scan(
		&p.ID, &p.Firstname, &p.Lastname, &p.Email, &p.Password, &p.State,
		&p.LinkedIn, &p.Bio, &p.School, &p.Major, &p.ExperienceYears,
		&p.Industry, pq.Array(&p.Skills), &p.Resume, &p.Photo,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID retrieves a person with profile and relationship sets populated.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Person, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, r.table, tracing.DBOperationQuery)
	var spanErr error
	defer func() { endSpan(spanErr) }()

	p, err := r.scanPerson(r.db.QueryRowContext(ctx, r.selectByID, id))
	if err == sql.ErrNoRows {
		return nil, ErrPersonNotFound
	}
	if err != nil {
		spanErr = err
		return nil, fmt.Errorf("failed to load person: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, r.selectRels, id)
	if err != nil {
		spanErr = err
		return nil, fmt.Errorf("failed to load relations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rel, target string
		if err := rows.Scan(&rel, &target); err != nil {
			spanErr = err
			return nil, fmt.Errorf("failed to scan relation: %w", err)
		}
		switch Relation(rel) {
		case RelationLiked:
			p.Liked = append(p.Liked, target)
		case RelationPassed:
			p.Passed = append(p.Passed, target)
		case RelationMatched:
			p.Matched = append(p.Matched, target)
		}
	}
	if err := rows.Err(); err != nil {
		spanErr = err
		return nil, fmt.Errorf("failed to iterate relations: %w", err)
	}

	return p, nil
}

// Exists reports whether a person with the given ID is stored.
func (r *PostgresRepository) Exists(ctx context.Context, id string) (bool, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, r.table, tracing.DBOperationQuery)
	var exists bool
	err := r.db.QueryRowContext(ctx, r.existsQuery, id).Scan(&exists)
	endSpan(err)
	if err != nil {
		return false, fmt.Errorf("failed to check person existence: %w", err)
	}
	return exists, nil
}

// List returns the candidate pool. Relationship sets are not loaded.
func (r *PostgresRepository) List(ctx context.Context) ([]*Person, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, r.table, tracing.DBOperationQuery)
	var spanErr error
	defer func() { endSpan(spanErr) }()

	rows, err := r.db.QueryContext(ctx, r.selectAll)
	if err != nil {
		spanErr = err
		return nil, fmt.Errorf("failed to list persons: %w", err)
	}
	defer rows.Close()

	var out []*Person
	for rows.Next() {
		p, err := r.scanPerson(rows)
		if err != nil {
			spanErr = err
			return nil, fmt.Errorf("failed to scan person: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		spanErr = err
		return nil, fmt.Errorf("failed to iterate persons: %w", err)
	}
	return out, nil
}

// Insert stores a new person record.
func (r *PostgresRepository) Insert(ctx context.Context, p *Person) error {
	ctx, endSpan := tracing.StartDBSpan(ctx, r.table, tracing.DBOperationInsert)
	_, err := r.db.ExecContext(ctx, r.insertQuery,
		p.ID, p.Firstname, p.Lastname, p.Email, p.Password, p.State,
		p.LinkedIn, p.Bio, p.School, p.Major, p.ExperienceYears,
		p.Industry, pq.Array(p.Skills), p.Resume, p.Photo,
	)
	endSpan(err)
	if err != nil {
		return fmt.Errorf("failed to insert person: %w", err)
	}
	return nil
}

// AddToSet adds targetID to the named relationship set and touches
// updated_at in a single transaction.
func (r *PostgresRepository) AddToSet(ctx context.Context, personID string, rel Relation, targetID string) error {
	return r.mutateSet(ctx, personID, rel, targetID, r.addRel, tracing.DBOperationInsert)
}

// RemoveFromSet removes targetID from the named relationship set and
// touches updated_at in a single transaction.
func (r *PostgresRepository) RemoveFromSet(ctx context.Context, personID string, rel Relation, targetID string) error {
	return r.mutateSet(ctx, personID, rel, targetID, r.removeRel, tracing.DBOperationDelete)
}

func (r *PostgresRepository) mutateSet(ctx context.Context, personID string, rel Relation, targetID, query string, op tracing.DBOperation) error {
	if !rel.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidRelation, rel)
	}

	ctx, endSpan := tracing.StartDBSpan(ctx, r.relations, op)
	var spanErr error
	defer func() { endSpan(spanErr) }()

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		spanErr = err
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			r.logger.Warn("failed to rollback relation transaction",
				slog.String("error", err.Error()))
		}
	}()

	if _, err := tx.ExecContext(ctx, query, personID, string(rel), targetID); err != nil {
		spanErr = err
		return fmt.Errorf("failed to mutate relation set: %w", err)
	}

	res, err := tx.ExecContext(ctx, r.touch, personID)
	if err != nil {
		spanErr = err
		return fmt.Errorf("failed to touch person: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		spanErr = ErrPersonNotFound
		return ErrPersonNotFound
	}

	if err := tx.Commit(); err != nil {
		spanErr = err
		return fmt.Errorf("failed to commit relation transaction: %w", err)
	}
	return nil
}
