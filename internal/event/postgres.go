package event

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/lib/pq"

	"github.com/cappuconnect/cappuconnect/internal/tracing"
)

// PostgresRepository implements Repository using PostgreSQL.
//
// The attendee set lives in a companion <table>_attendees table keyed by
// (event_id, user_id); set-add maps to INSERT ... ON CONFLICT DO NOTHING
// and set-remove to DELETE, so both primitives are atomic and idempotent.
type PostgresRepository struct {
	db     *sql.DB
	logger *slog.Logger

	table     string
	attendees string
}

const eventColumns = `id, external_id, name, time_text, host, venue, address,
	cleaned_url, image_url, map_url, tags, created_at, updated_at`

// NewPostgresRepository creates a PostgresRepository bound to the given
// table. The table name comes from configuration resolved once at process
// start; it is never derived from request input.
func NewPostgresRepository(db *sql.DB, table string, logger *slog.Logger) *PostgresRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresRepository{
		db:        db,
		logger:    logger,
		table:     table,
		attendees: table + "_attendees",
	}
}

func (r *PostgresRepository) scanEvent(row interface{ Scan(...any) error }) (*Event, error) {
	var e Event
	err := row.Scan(
		&e.ID, &e.ExternalID, &e.Name, &e.TimeText, &e.Host, &e.Venue,
		&e.Address, &e.CleanedURL, &e.ImageURL, &e.MapURL, pq.Array(&e.Tags),
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// GetByID retrieves an event with the attendee set populated.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Event, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, r.table, tracing.DBOperationQuery)
	var spanErr error
	defer func() { endSpan(spanErr) }()

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, eventColumns, r.table)
	e, err := r.scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		spanErr = err
		return nil, fmt.Errorf("failed to load event: %w", err)
	}

	attQuery := fmt.Sprintf(`SELECT user_id FROM %s WHERE event_id = $1`, r.attendees)
	rows, err := r.db.QueryContext(ctx, attQuery, id)
	if err != nil {
		spanErr = err
		return nil, fmt.Errorf("failed to load attendees: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID string
		if err := rows.Scan(&userID); err != nil {
			spanErr = err
			return nil, fmt.Errorf("failed to scan attendee: %w", err)
		}
		e.Attendees = append(e.Attendees, userID)
	}
	if err := rows.Err(); err != nil {
		spanErr = err
		return nil, fmt.Errorf("failed to iterate attendees: %w", err)
	}
	return e, nil
}

// Exists reports whether an event with the given ID is stored.
func (r *PostgresRepository) Exists(ctx context.Context, id string) (bool, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, r.table, tracing.DBOperationQuery)
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, r.table)
	var exists bool
	err := r.db.QueryRowContext(ctx, query, id).Scan(&exists)
	endSpan(err)
	if err != nil {
		return false, fmt.Errorf("failed to check event existence: %w", err)
	}
	return exists, nil
}

// All returns the full candidate pool with attendee sets populated via a
// single join, avoiding one query per event.
func (r *PostgresRepository) All(ctx context.Context) ([]*Event, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, r.table, tracing.DBOperationQuery)
	var spanErr error
	defer func() { endSpan(spanErr) }()

	query := fmt.Sprintf(`
		SELECT %s,
			COALESCE((SELECT array_agg(a.user_id) FROM %s a WHERE a.event_id = e.id), '{}')
		FROM %s e`,
		prefixColumns("e", eventColumns), r.attendees, r.table)

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		spanErr = err
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var e Event
		err := rows.Scan(
			&e.ID, &e.ExternalID, &e.Name, &e.TimeText, &e.Host, &e.Venue,
			&e.Address, &e.CleanedURL, &e.ImageURL, &e.MapURL, pq.Array(&e.Tags),
			&e.CreatedAt, &e.UpdatedAt, pq.Array(&e.Attendees),
		)
		if err != nil {
			spanErr = err
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		spanErr = err
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return out, nil
}

// prefixColumns qualifies each column in a comma-separated list with the
// given table alias.
func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}

// buildWhere translates a Filter into a WHERE clause with positional
// arguments. Substring filters use ILIKE; the time range compares the raw
// time_text lexicographically.
func buildWhere(f Filter) (string, []any) {
	var conds []string
	var args []any

	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	like := func(column, value string) {
		if value != "" {
			conds = append(conds, column+" ILIKE "+arg("%"+value+"%"))
		}
	}

	if f.ExternalID != nil {
		conds = append(conds, "external_id = "+arg(*f.ExternalID))
	}
	like("name", f.Name)
	like("host", f.Host)
	like("venue", f.Venue)
	like("time_text", f.TimeContains)
	if f.Tag != "" {
		conds = append(conds, "EXISTS (SELECT 1 FROM unnest(tags) t WHERE t ILIKE "+arg("%"+f.Tag+"%")+")")
	}
	if f.TimeExact != "" {
		conds = append(conds, "time_text = "+arg(f.TimeExact))
	}
	if f.TimeFrom != "" {
		conds = append(conds, "time_text >= "+arg(f.TimeFrom))
	}
	if f.TimeTo != "" {
		conds = append(conds, "time_text < "+arg(f.TimeTo))
	}

	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// sortColumn maps a whitelisted Filter sort key to its column. The filter
// is normalized before this is called, so the key is always known.
func sortColumn(key string) string {
	switch key {
	case "name":
		return "name"
	case "host":
		return "host"
	case "venue":
		return "venue"
	case "id":
		return "external_id"
	default:
		return "time_text"
	}
}

// Query returns one catalog page matching the filter, attendee sets
// populated via the same subselect All uses, so page entries carry real
// attendee counts.
func (r *PostgresRepository) Query(ctx context.Context, f Filter) ([]*Event, error) {
	f = f.Normalize()

	ctx, endSpan := tracing.StartDBSpan(ctx, r.table, tracing.DBOperationQuery)
	var spanErr error
	defer func() { endSpan(spanErr) }()

	where, args := buildWhere(f)
	dir := "ASC"
	if f.Direction == DirectionDesc {
		dir = "DESC"
	}
	offset := (f.Page - 1) * f.PageSize

	query := fmt.Sprintf(`
		SELECT %s,
			COALESCE((SELECT array_agg(a.user_id) FROM %s a WHERE a.event_id = e.id), '{}')
		FROM %s e%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		prefixColumns("e", eventColumns), r.attendees, r.table, where,
		sortColumn(f.SortBy), dir, f.PageSize, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		spanErr = err
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	out := []*Event{}
	for rows.Next() {
		var e Event
		err := rows.Scan(
			&e.ID, &e.ExternalID, &e.Name, &e.TimeText, &e.Host, &e.Venue,
			&e.Address, &e.CleanedURL, &e.ImageURL, &e.MapURL, pq.Array(&e.Tags),
			&e.CreatedAt, &e.UpdatedAt, pq.Array(&e.Attendees),
		)
		if err != nil {
			spanErr = err
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		spanErr = err
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return out, nil
}

// Count returns the total number of events matching the filter.
func (r *PostgresRepository) Count(ctx context.Context, f Filter) (int, error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, r.table, tracing.DBOperationQuery)

	where, args := buildWhere(f.Normalize())
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s%s`, r.table, where)

	var n int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&n)
	endSpan(err)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// Insert stores a new event record.
func (r *PostgresRepository) Insert(ctx context.Context, e *Event) error {
	ctx, endSpan := tracing.StartDBSpan(ctx, r.table, tracing.DBOperationInsert)

	query := fmt.Sprintf(`INSERT INTO %s (%s)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())`,
		r.table, eventColumns)
	_, err := r.db.ExecContext(ctx, query,
		e.ID, e.ExternalID, e.Name, e.TimeText, e.Host, e.Venue,
		e.Address, e.CleanedURL, e.ImageURL, e.MapURL, pq.Array(e.Tags),
	)
	endSpan(err)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// AddAttendee adds personID to the attendee set and touches updated_at in
// a single transaction.
func (r *PostgresRepository) AddAttendee(ctx context.Context, eventID, personID string) error {
	query := fmt.Sprintf(`INSERT INTO %s (event_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, r.attendees)
	return r.mutateAttendees(ctx, eventID, personID, query, tracing.DBOperationInsert)
}

// RemoveAttendee removes personID from the attendee set and touches
// updated_at in a single transaction.
func (r *PostgresRepository) RemoveAttendee(ctx context.Context, eventID, personID string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE event_id = $1 AND user_id = $2`, r.attendees)
	return r.mutateAttendees(ctx, eventID, personID, query, tracing.DBOperationDelete)
}

func (r *PostgresRepository) mutateAttendees(ctx context.Context, eventID, personID, query string, op tracing.DBOperation) error {
	ctx, endSpan := tracing.StartDBSpan(ctx, r.attendees, op)
	var spanErr error
	defer func() { endSpan(spanErr) }()

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		spanErr = err
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			r.logger.Warn("failed to rollback attendee transaction",
				slog.String("error", err.Error()))
		}
	}()

	if _, err := tx.ExecContext(ctx, query, eventID, personID); err != nil {
		spanErr = err
		return fmt.Errorf("failed to mutate attendee set: %w", err)
	}

	touch := fmt.Sprintf(`UPDATE %s SET updated_at = NOW() WHERE id = $1`, r.table)
	res, err := tx.ExecContext(ctx, touch, eventID)
	if err != nil {
		spanErr = err
		return fmt.Errorf("failed to touch event: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		spanErr = ErrEventNotFound
		return ErrEventNotFound
	}

	if err := tx.Commit(); err != nil {
		spanErr = err
		return fmt.Errorf("failed to commit attendee transaction: %w", err)
	}
	return nil
}
