package handlers

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/finevents/apiserver/internal/apierr"
	"github.com/finevents/apiserver/internal/services"
	"github.com/finevents/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

const (
	maxMultipartMemory = 8 << 20
	maxReceiptBytes    = 10 << 20
	formFieldReceipt   = "receipt"
)

// EventHandler provides HTTP handlers for financial events.
type EventHandler struct {
	eventService *services.EventService
	log          logrus.FieldLogger
}

// NewEventHandler constructs a handler with the provided service.
func NewEventHandler(eventService *services.EventService, log logrus.FieldLogger) *EventHandler {
	return &EventHandler{eventService: eventService, log: log}
}

// EventRouter registers event routes on the given router. Reads are open to
// anonymous callers; writes require an identity.
func EventRouter(r chi.Router, eventService *services.EventService, authn *Authenticator, log logrus.FieldLogger) {
	handler := NewEventHandler(eventService, log)

	r.With(authn.OptionalAuth).Get("/", handler.ListEvents)
	r.With(authn.Authenticate).Post("/", handler.CreateEvent)
	r.Route("/{eventID}", func(r chi.Router) {
		r.With(authn.OptionalAuth).Get("/", handler.GetEvent)
		r.With(authn.Authenticate).Put("/", handler.UpdateEvent)
		r.With(authn.Authenticate).Delete("/", handler.DeleteEvent)
		r.With(authn.Authenticate).Put("/receipt", handler.UploadReceipt)
		r.With(authn.OptionalAuth).Get("/receipt", handler.DownloadReceipt)
	})
}

// ListEvents returns a page of events.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	page, limit, offset, err := parsePagination(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	filter, err := parseEventFilter(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	filter.Offset = offset
	filter.Limit = limit

	events, total, err := h.eventService.List(r.Context(), filter)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, EventListResponse{
		Items: events,
		Page:  page,
		Limit: limit,
		Total: total,
	})
}

func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	id, err := parseEventID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	event, err := h.eventService.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	identity, err := requireIdentity(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	var req EventUpsertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	event, err := h.eventService.Create(r.Context(), identity, req.toEvent())
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	identity, err := requireIdentity(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	id, err := parseEventID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	var req EventUpsertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.log, err)
		return
	}
	event := req.toEvent()
	event.ID = id

	updated, err := h.eventService.Update(r.Context(), identity, event)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	identity, err := requireIdentity(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	id, err := parseEventID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	if err := h.eventService.Delete(r.Context(), identity, id); err != nil {
		writeError(w, r, h.log, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadReceipt stores the multipart "receipt" file for an event.
func (h *EventHandler) UploadReceipt(w http.ResponseWriter, r *http.Request) {
	identity, err := requireIdentity(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	id, err := parseEventID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxReceiptBytes+maxMultipartMemory)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(w, r, h.log, apierr.BadRequest("Invalid multipart form"))
		return
	}
	file, header, err := r.FormFile(formFieldReceipt)
	if err != nil {
		writeError(w, r, h.log, apierr.Validation(map[string]string{formFieldReceipt: "is required"}))
		return
	}
	defer file.Close()

	data, err := readFileLimited(file, maxReceiptBytes)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	event, err := h.eventService.AttachReceipt(r.Context(), identity, id, header.Filename, contentType, data)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, event)
}

// DownloadReceipt streams the receipt file of an event.
func (h *EventHandler) DownloadReceipt(w http.ResponseWriter, r *http.Request) {
	id, err := parseEventID(r)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}

	body, name, err := h.eventService.OpenReceipt(r.Context(), id)
	if err != nil {
		writeError(w, r, h.log, err)
		return
	}
	defer body.Close()

	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.log.WithError(err).Warn("receipt download interrupted")
	}
}

// EventUpsertRequest is the JSON body for creating or replacing an event.
type EventUpsertRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
	Currency    string    `json:"currency"`
	Category    string    `json:"category"`
	Kind        string    `json:"kind"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func (req EventUpsertRequest) toEvent() types.Event {
	return types.Event{
		Title:       req.Title,
		Description: req.Description,
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Category:    req.Category,
		Kind:        types.EventKind(req.Kind),
		OccurredAt:  req.OccurredAt,
	}
}

// EventListResponse wraps a page of events.
type EventListResponse struct {
	Items []types.Event `json:"items"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Total int           `json:"total"`
}

func parseEventID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "eventID")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, apierr.BadRequest("Invalid event id")
	}
	return id, nil
}

func parseEventFilter(r *http.Request) (types.EventFilter, error) {
	query := r.URL.Query()
	fields := map[string]string{}
	var filter types.EventFilter

	if mine, _ := strconv.ParseBool(query.Get("mine")); mine {
		identity, err := requireIdentity(r)
		if err != nil {
			return types.EventFilter{}, err
		}
		filter.UserID = identity.UserID
	}

	if raw := strings.ToLower(strings.TrimSpace(query.Get("kind"))); raw != "" {
		filter.Kind = types.EventKind(raw)
		if !filter.Kind.Valid() {
			fields["kind"] = "must be income or expense"
		}
	}
	filter.Category = strings.ToLower(strings.TrimSpace(query.Get("category")))

	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		raw := strings.TrimSpace(query.Get(bound.name))
		if raw == "" {
			continue
		}
		parsed, err := parseTime(raw)
		if err != nil {
			fields[bound.name] = "must be an RFC 3339 timestamp or YYYY-MM-DD date"
			continue
		}
		*bound.dst = &parsed
	}

	switch sort := strings.TrimSpace(query.Get("sort")); sort {
	case "", "occurred_at", "amount", "created_at", "title":
		filter.Sort = sort
	default:
		fields["sort"] = "must be one of occurred_at, amount, created_at, title"
	}

	switch order := strings.ToLower(strings.TrimSpace(query.Get("order"))); order {
	case "", "desc":
		filter.Desc = true
	case "asc":
	default:
		fields["order"] = "must be asc or desc"
	}

	if len(fields) > 0 {
		return types.EventFilter{}, apierr.Validation(fields)
	}
	return filter, nil
}

func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, raw)
}
