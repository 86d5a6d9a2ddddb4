// Package storetest provides in-memory repositories that mirror the
// behavior of the SQL stores, including the username uniqueness constraint.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/finevents/apiserver/internal/store"
	"github.com/finevents/apiserver/types"
	"github.com/google/uuid"
)

// Users is a concurrency-safe in-memory user repository.
type Users struct {
	mu     sync.Mutex
	byID   map[string]types.User
	byName map[string]string

	// Err, when set, is returned by every operation.
	Err error
}

func NewUsers() *Users {
	return &Users{byID: map[string]types.User{}, byName: map[string]string{}}
}

func (u *Users) Create(_ context.Context, username, passwordHash string) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return types.User{}, u.Err
	}
	if _, taken := u.byName[username]; taken {
		return types.User{}, store.ErrConflict
	}
	user := types.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	u.byID[user.ID] = user
	u.byName[username] = user.ID
	return user, nil
}

func (u *Users) FindByUsername(_ context.Context, username string) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return types.User{}, u.Err
	}
	id, ok := u.byName[username]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return u.byID[id], nil
}

func (u *Users) FindByID(_ context.Context, id string) (types.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return types.User{}, u.Err
	}
	user, ok := u.byID[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	user.PasswordHash = ""
	return user, nil
}

func (u *Users) ExistsByUsername(_ context.Context, username string) (bool, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.Err != nil {
		return false, u.Err
	}
	_, ok := u.byName[username]
	return ok, nil
}

// Count returns the number of stored users.
func (u *Users) Count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return len(u.byID)
}

// Events is a concurrency-safe in-memory event repository.
type Events struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]types.Event
}

func NewEvents() *Events {
	return &Events{rows: map[int64]types.Event{}}
}

func (e *Events) List(_ context.Context, filter types.EventFilter) ([]types.Event, int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var matched []types.Event
	for _, event := range e.rows {
		if filter.UserID != "" && event.UserID != filter.UserID {
			continue
		}
		if filter.Kind != "" && event.Kind != filter.Kind {
			continue
		}
		if filter.Category != "" && event.Category != filter.Category {
			continue
		}
		if filter.From != nil && event.OccurredAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && event.OccurredAt.After(*filter.To) {
			continue
		}
		matched = append(matched, event)
	}

	less := func(a, b types.Event) bool {
		switch filter.Sort {
		case "amount":
			if a.AmountCents != b.AmountCents {
				return a.AmountCents < b.AmountCents
			}
		case "created_at":
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
		case "title":
			if a.Title != b.Title {
				return strings.Compare(a.Title, b.Title) < 0
			}
		default:
			if !a.OccurredAt.Equal(b.OccurredAt) {
				return a.OccurredAt.Before(b.OccurredAt)
			}
		}
		return a.ID < b.ID
	}
	sort.Slice(matched, func(i, j int) bool {
		if filter.Desc {
			return less(matched[j], matched[i])
		}
		return less(matched[i], matched[j])
	})

	total := len(matched)
	if filter.Offset >= total {
		return []types.Event{}, total, nil
	}
	end := total
	if filter.Limit > 0 && filter.Offset+filter.Limit < end {
		end = filter.Offset + filter.Limit
	}
	return append([]types.Event{}, matched[filter.Offset:end]...), total, nil
}

func (e *Events) Get(_ context.Context, id int64) (types.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	event, ok := e.rows[id]
	if !ok {
		return types.Event{}, store.ErrNotFound
	}
	return event, nil
}

func (e *Events) Create(_ context.Context, event types.Event) (types.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextID++
	now := time.Now().UTC()
	event.ID = e.nextID
	event.CreatedAt = now
	event.UpdatedAt = now
	e.rows[event.ID] = event
	return event, nil
}

func (e *Events) Update(_ context.Context, event types.Event) (types.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	existing, ok := e.rows[event.ID]
	if !ok {
		return types.Event{}, store.ErrNotFound
	}
	event.UserID = existing.UserID
	event.ReceiptKey = existing.ReceiptKey
	event.CreatedAt = existing.CreatedAt
	event.UpdatedAt = time.Now().UTC()
	e.rows[event.ID] = event
	return event, nil
}

func (e *Events) SetReceipt(_ context.Context, id int64, key string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	event, ok := e.rows[id]
	if !ok {
		return store.ErrNotFound
	}
	event.ReceiptKey = key
	event.UpdatedAt = time.Now().UTC()
	e.rows[id] = event
	return nil
}

func (e *Events) Delete(_ context.Context, id int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(e.rows, id)
	return nil
}
