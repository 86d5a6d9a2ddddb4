package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/finevents/apiserver/internal/apierr"
	"github.com/finevents/apiserver/internal/auth"
	"github.com/finevents/apiserver/types"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
	maxBodyBytes = 1 << 20
)

// MessageResponse is returned by endpoints with nothing else to report.
type MessageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// writeError renders err as a client-safe JSON body. Anything that is not an
// *apierr.Error is logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, log logrus.FieldLogger, err error) {
	apiErr, ok := apierr.As(err)
	if !ok {
		apiErr = apierr.Internal()
	}
	if apiErr.Status >= http.StatusInternalServerError {
		log.WithError(err).
			WithField("request_id", middleware.GetReqID(r.Context())).
			WithField("path", r.URL.Path).
			Error("request failed")
	}
	writeJSON(w, apiErr.Status, apiErr)
}

// decodeJSON reads a single JSON object from the request body.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierr.BadRequest("Request body is too large")
		}
		if errors.Is(err, io.EOF) {
			return apierr.BadRequest("Request body is required")
		}
		return apierr.BadRequest("Request body must be valid JSON")
	}
	return nil
}

// requireIdentity returns the identity attached by the auth middleware.
func requireIdentity(r *http.Request) (types.Identity, error) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return types.Identity{}, apierr.MissingCredential("Authentication required")
	}
	return identity, nil
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, apierr.Validation(map[string]string{"page": "must be a positive integer"})
		}
	}

	rawLimit := strings.TrimSpace(r.URL.Query().Get("limit"))
	if rawLimit == "" {
		rawLimit = strings.TrimSpace(r.URL.Query().Get("per_page"))
	}
	if rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit < 1 {
			return 0, 0, 0, apierr.Validation(map[string]string{"limit": "must be a positive integer"})
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func readFileLimited(reader io.Reader, limit int64) ([]byte, error) {
	limited := io.LimitReader(reader, limit+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, apierr.BadRequest("Failed to read upload")
	}
	if int64(len(data)) > limit {
		return nil, apierr.Validation(map[string]string{"receipt": "file is too large"})
	}
	return data, nil
}
