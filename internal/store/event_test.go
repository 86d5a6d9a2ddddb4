package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/finevents/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var eventRowColumns = []string{
	"id", "user_id", "title", "description", "amount_cents", "currency",
	"category", "kind", "occurred_at", "receipt_key", "created_at", "updated_at",
}

func newEventRepoWithMock(t *testing.T) (*EventRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewEventRepository(db), mock
}

func TestEventList_FiltersAndSort(t *testing.T) {
	repo, mock := newEventRepoWithMock(t)
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	occurred := from.Add(48 * time.Hour)

	mock.ExpectQuery(`SELECT COUNT\(1\) FROM events WHERE user_id = \$1 AND kind = \$2 AND occurred_at >= \$3`).
		WithArgs("u-1", "expense", from).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`FROM events WHERE user_id = \$1 AND kind = \$2 AND occurred_at >= \$3 ORDER BY amount_cents DESC, id DESC OFFSET \$4 LIMIT \$5`).
		WithArgs("u-1", "expense", from, 10, 10).
		WillReturnRows(sqlmock.NewRows(eventRowColumns).
			AddRow(7, "u-1", "Rent", "", int64(120000), "EUR", "housing", "expense", occurred, "", occurred, occurred))

	events, total, err := repo.List(context.Background(), types.EventFilter{
		UserID: "u-1",
		Kind:   types.EventKindExpense,
		From:   &from,
		Sort:   "amount",
		Desc:   true,
		Offset: 10,
		Limit:  10,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, int64(7), events[0].ID)
	assert.Equal(t, types.EventKindExpense, events[0].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventList_UnknownSortFallsBack(t *testing.T) {
	repo, mock := newEventRepoWithMock(t)

	mock.ExpectQuery(`SELECT COUNT\(1\) FROM events$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`FROM events ORDER BY occurred_at ASC, id ASC OFFSET \$1 LIMIT \$2`).
		WithArgs(0, 20).
		WillReturnRows(sqlmock.NewRows(eventRowColumns))

	events, total, err := repo.List(context.Background(), types.EventFilter{Sort: "password_hash; --"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, events)
}

func TestEventGet_NotFound(t *testing.T) {
	repo, mock := newEventRepoWithMock(t)

	mock.ExpectQuery(`FROM events WHERE id = \$1`).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Get(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEventCreate(t *testing.T) {
	repo, mock := newEventRepoWithMock(t)
	occurred := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`(?s)INSERT\s+INTO\s+events.*RETURNING\s+id`).
		WithArgs("u-1", "Salary", "March", int64(500000), "EUR", "salary", "income", occurred, "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))

	created, err := repo.Create(context.Background(), types.Event{
		UserID:      "u-1",
		Title:       "Salary",
		Description: "March",
		AmountCents: 500000,
		Currency:    "EUR",
		Category:    "salary",
		Kind:        types.EventKindIncome,
		OccurredAt:  occurred,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), created.ID)
	assert.False(t, created.CreatedAt.IsZero())
}

func TestEventUpdate_NotFound(t *testing.T) {
	repo, mock := newEventRepoWithMock(t)

	mock.ExpectExec(`(?s)UPDATE\s+events`).WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := repo.Update(context.Background(), types.Event{ID: 5, Kind: types.EventKindIncome})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEventSetReceiptAndDelete(t *testing.T) {
	repo, mock := newEventRepoWithMock(t)

	mock.ExpectExec(`UPDATE events SET receipt_key = \$1`).
		WithArgs("receipts/5/abc", sqlmock.AnyArg(), int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM events WHERE id = \$1`).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetReceipt(context.Background(), 5, "receipts/5/abc"))
	require.NoError(t, repo.Delete(context.Background(), 5))
	assert.NoError(t, mock.ExpectationsWereMet())
}
