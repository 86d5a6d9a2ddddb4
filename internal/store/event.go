package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/finevents/apiserver/types"
)

const eventColumns = `id, user_id, title, description, amount_cents, currency, category, kind, occurred_at, receipt_key, created_at, updated_at`

var eventSortColumns = map[string]string{
	"occurred_at": "occurred_at",
	"amount":      "amount_cents",
	"created_at":  "created_at",
	"title":       "title",
}

// EventRepository handles persistence for financial events.
type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) List(ctx context.Context, filter types.EventFilter) ([]types.Event, int, error) {
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}

	where, args := buildEventWhere(filter)

	countQuery := `SELECT COUNT(1) FROM events` + where
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	column, ok := eventSortColumns[filter.Sort]
	if !ok {
		column = "occurred_at"
	}
	direction := "ASC"
	if filter.Desc {
		direction = "DESC"
	}

	listQuery := fmt.Sprintf(
		`SELECT %s FROM events%s ORDER BY %s %s, id %s OFFSET $%d LIMIT $%d`,
		eventColumns, where, column, direction, direction, len(args)+1, len(args)+2,
	)
	rows, err := r.db.QueryContext(ctx, listQuery, append(args, filter.Offset, filter.Limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]types.Event, 0, filter.Limit)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return events, total, nil
}

func (r *EventRepository) Get(ctx context.Context, id int64) (types.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	event, err := scanEvent(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Event{}, ErrNotFound
		}
		return types.Event{}, err
	}
	return event, nil
}

func (r *EventRepository) Create(ctx context.Context, event types.Event) (types.Event, error) {
	now := time.Now().UTC()
	event.CreatedAt = now
	event.UpdatedAt = now

	const query = `
		INSERT INTO events (user_id, title, description, amount_cents, currency, category, kind, occurred_at, receipt_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		event.UserID,
		event.Title,
		event.Description,
		event.AmountCents,
		event.Currency,
		event.Category,
		string(event.Kind),
		event.OccurredAt,
		event.ReceiptKey,
		event.CreatedAt,
		event.UpdatedAt,
	).Scan(&event.ID); err != nil {
		return types.Event{}, fmt.Errorf("insert event: %w", err)
	}

	return event, nil
}

func (r *EventRepository) Update(ctx context.Context, event types.Event) (types.Event, error) {
	event.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE events
		SET title = $1,
			description = $2,
			amount_cents = $3,
			currency = $4,
			category = $5,
			kind = $6,
			occurred_at = $7,
			updated_at = $8
		WHERE id = $9`
	result, err := r.db.ExecContext(
		ctx,
		query,
		event.Title,
		event.Description,
		event.AmountCents,
		event.Currency,
		event.Category,
		string(event.Kind),
		event.OccurredAt,
		event.UpdatedAt,
		event.ID,
	)
	if err != nil {
		return types.Event{}, fmt.Errorf("update event: %w", err)
	}
	if err := requireAffected(result); err != nil {
		return types.Event{}, err
	}

	return event, nil
}

// SetReceipt records the object key of the event's receipt.
func (r *EventRepository) SetReceipt(ctx context.Context, id int64, key string) error {
	const query = `UPDATE events SET receipt_key = $1, updated_at = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, key, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set receipt: %w", err)
	}
	return requireAffected(result)
}

func (r *EventRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM events WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return requireAffected(result)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (types.Event, error) {
	var event types.Event
	var kind string
	if err := row.Scan(
		&event.ID,
		&event.UserID,
		&event.Title,
		&event.Description,
		&event.AmountCents,
		&event.Currency,
		&event.Category,
		&kind,
		&event.OccurredAt,
		&event.ReceiptKey,
		&event.CreatedAt,
		&event.UpdatedAt,
	); err != nil {
		return types.Event{}, err
	}
	event.Kind = types.EventKind(kind)
	return event, nil
}

func buildEventWhere(filter types.EventFilter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.UserID != "" {
		add("user_id = $%d", filter.UserID)
	}
	if filter.Kind != "" {
		add("kind = $%d", string(filter.Kind))
	}
	if filter.Category != "" {
		add("category = $%d", filter.Category)
	}
	if filter.From != nil {
		add("occurred_at >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("occurred_at <= $%d", *filter.To)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
