package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/finevents/apiserver/internal/apierr"
	"github.com/finevents/apiserver/internal/mq"
	"github.com/finevents/apiserver/internal/storage"
	"github.com/finevents/apiserver/internal/store"
	"github.com/finevents/apiserver/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// EventRepository defines persistence operations for events.
type EventRepository interface {
	List(ctx context.Context, filter types.EventFilter) ([]types.Event, int, error)
	Get(ctx context.Context, id int64) (types.Event, error)
	Create(ctx context.Context, event types.Event) (types.Event, error)
	Update(ctx context.Context, event types.Event) (types.Event, error)
	SetReceipt(ctx context.Context, id int64, key string) error
	Delete(ctx context.Context, id int64) error
}

// ReceiptStorage holds receipt files. A nil ReceiptStorage disables receipts.
type ReceiptStorage interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// EventService provides business logic around financial events.
type EventService struct {
	repo      EventRepository
	receipts  ReceiptStorage
	publisher Publisher
	log       logrus.FieldLogger
}

func NewEventService(repo EventRepository, receipts ReceiptStorage, publisher Publisher, log logrus.FieldLogger) *EventService {
	return &EventService{
		repo:      repo,
		receipts:  receipts,
		publisher: publisher,
		log:       log.WithField("component", "events"),
	}
}

// List returns one page of events and the total number matching filter.
func (s *EventService) List(ctx context.Context, filter types.EventFilter) ([]types.Event, int, error) {
	if filter.Limit < 1 {
		filter.Limit = DefaultPageSize
	}
	if filter.Limit > MaxPageSize {
		filter.Limit = MaxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repo.List(ctx, filter)
}

func (s *EventService) Get(ctx context.Context, id int64) (types.Event, error) {
	event, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Event{}, apierr.NotFound("Event not found")
		}
		return types.Event{}, err
	}
	return event, nil
}

// Create stores a new event owned by the caller.
func (s *EventService) Create(ctx context.Context, owner types.Identity, event types.Event) (types.Event, error) {
	normalizeEvent(&event)
	if fields := ValidateEvent(event); len(fields) > 0 {
		return types.Event{}, apierr.Validation(fields)
	}
	event.ID = 0
	event.UserID = owner.UserID
	event.ReceiptKey = ""

	created, err := s.repo.Create(ctx, event)
	if err != nil {
		return types.Event{}, err
	}
	s.notify(ctx, mq.ChannelEventCreated, created)
	return created, nil
}

// Update replaces the mutable fields of an event the caller owns.
func (s *EventService) Update(ctx context.Context, owner types.Identity, event types.Event) (types.Event, error) {
	existing, err := s.owned(ctx, owner, event.ID)
	if err != nil {
		return types.Event{}, err
	}

	normalizeEvent(&event)
	if fields := ValidateEvent(event); len(fields) > 0 {
		return types.Event{}, apierr.Validation(fields)
	}
	event.UserID = existing.UserID
	event.ReceiptKey = existing.ReceiptKey
	event.CreatedAt = existing.CreatedAt

	updated, err := s.repo.Update(ctx, event)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Event{}, apierr.NotFound("Event not found")
		}
		return types.Event{}, err
	}
	s.notify(ctx, mq.ChannelEventUpdated, updated)
	return updated, nil
}

// Delete removes an event the caller owns along with its receipt.
func (s *EventService) Delete(ctx context.Context, owner types.Identity, id int64) error {
	existing, err := s.owned(ctx, owner, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apierr.NotFound("Event not found")
		}
		return err
	}

	if existing.ReceiptKey != "" && s.receipts != nil {
		if err := s.receipts.Delete(ctx, existing.ReceiptKey); err != nil {
			s.log.WithError(err).WithField("key", existing.ReceiptKey).Warn("delete receipt failed")
		}
	}
	s.notify(ctx, mq.ChannelEventDeleted, map[string]any{"id": id, "user_id": existing.UserID})
	return nil
}

// AttachReceipt uploads a receipt for an event the caller owns, replacing
// any previous one.
func (s *EventService) AttachReceipt(ctx context.Context, owner types.Identity, id int64, filename, contentType string, data []byte) (types.Event, error) {
	if s.receipts == nil {
		return types.Event{}, apierr.Unavailable("Receipt storage is not configured")
	}
	if len(data) == 0 {
		return types.Event{}, apierr.Validation(map[string]string{"receipt": "must not be empty"})
	}
	existing, err := s.owned(ctx, owner, id)
	if err != nil {
		return types.Event{}, err
	}

	key := receiptKey(owner.UserID, id, filename)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.receipts.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return types.Event{}, fmt.Errorf("upload receipt: %w", err)
	}
	if err := s.repo.SetReceipt(ctx, id, key); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Event{}, apierr.NotFound("Event not found")
		}
		return types.Event{}, err
	}

	if existing.ReceiptKey != "" && existing.ReceiptKey != key {
		if err := s.receipts.Delete(ctx, existing.ReceiptKey); err != nil {
			s.log.WithError(err).WithField("key", existing.ReceiptKey).Warn("delete previous receipt failed")
		}
	}

	existing.ReceiptKey = key
	existing.UpdatedAt = time.Now().UTC()
	return existing, nil
}

// OpenReceipt returns a reader for the receipt of an event. The caller must
// close it.
func (s *EventService) OpenReceipt(ctx context.Context, id int64) (io.ReadCloser, string, error) {
	if s.receipts == nil {
		return nil, "", apierr.Unavailable("Receipt storage is not configured")
	}
	event, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if event.ReceiptKey == "" {
		return nil, "", apierr.NotFound("Receipt not found")
	}
	body, err := s.receipts.Get(ctx, event.ReceiptKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", apierr.NotFound("Receipt not found")
		}
		return nil, "", err
	}
	return body, path.Base(event.ReceiptKey), nil
}

func (s *EventService) owned(ctx context.Context, owner types.Identity, id int64) (types.Event, error) {
	event, err := s.Get(ctx, id)
	if err != nil {
		return types.Event{}, err
	}
	if event.UserID != owner.UserID {
		return types.Event{}, apierr.Forbidden("You do not own this event")
	}
	return event, nil
}

func (s *EventService) notify(ctx context.Context, channel string, data any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishJSON(ctx, channel, data); err != nil {
		s.log.WithError(err).WithField("channel", channel).Warn("publish notification failed")
	}
}

func normalizeEvent(event *types.Event) {
	event.Title = strings.TrimSpace(event.Title)
	event.Description = strings.TrimSpace(event.Description)
	event.Category = strings.ToLower(strings.TrimSpace(event.Category))
	event.Currency = strings.ToUpper(strings.TrimSpace(event.Currency))
	event.Kind = types.EventKind(strings.ToLower(strings.TrimSpace(string(event.Kind))))
	if !event.OccurredAt.IsZero() {
		event.OccurredAt = event.OccurredAt.UTC()
	}
}

// ValidateEvent returns a field-to-reason map for every invalid field.
func ValidateEvent(event types.Event) map[string]string {
	fields := map[string]string{}
	switch n := utf8.RuneCountInString(event.Title); {
	case n == 0:
		fields["title"] = "is required"
	case n > 200:
		fields["title"] = "must be at most 200 characters"
	}
	if utf8.RuneCountInString(event.Description) > 2000 {
		fields["description"] = "must be at most 2000 characters"
	}
	if event.AmountCents <= 0 {
		fields["amount_cents"] = "must be a positive integer"
	}
	if !isCurrencyCode(event.Currency) {
		fields["currency"] = "must be a three-letter ISO 4217 code"
	}
	if utf8.RuneCountInString(event.Category) > 50 {
		fields["category"] = "must be at most 50 characters"
	}
	if !event.Kind.Valid() {
		fields["kind"] = "must be income or expense"
	}
	if event.OccurredAt.IsZero() {
		fields["occurred_at"] = "is required"
	}
	return fields
}

func isCurrencyCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

func receiptKey(userID string, eventID int64, filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "receipt"
	}
	return fmt.Sprintf("receipts/%s/%d/%s-%s", userID, eventID, uuid.NewString(), name)
}
