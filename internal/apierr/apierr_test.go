package apierr

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsUnwrapsWrappedErrors(t *testing.T) {
	err := fmt.Errorf("login: %w", InvalidCredentials())

	apiErr, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid credentials", apiErr.Code)
}

func TestAsRejectsPlainErrors(t *testing.T) {
	_, ok := As(fmt.Errorf("boom"))
	assert.False(t, ok)
}

func TestStatuses(t *testing.T) {
	cases := map[string]struct {
		err    *Error
		status int
	}{
		"validation":    {Validation(map[string]string{"username": "required"}), http.StatusBadRequest},
		"conflict":      {Conflict("taken"), http.StatusConflict},
		"credentials":   {InvalidCredentials(), http.StatusUnauthorized},
		"missing":       {MissingCredential("no session"), http.StatusUnauthorized},
		"token":         {InvalidToken(), http.StatusUnauthorized},
		"configuration": {Configuration(), http.StatusInternalServerError},
		"not found":     {NotFound("user not found"), http.StatusNotFound},
		"teardown":      {SessionTeardown(), http.StatusInternalServerError},
		"forbidden":     {Forbidden("not yours"), http.StatusForbidden},
		"unavailable":   {Unavailable("storage disabled"), http.StatusServiceUnavailable},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.status, tc.err.Status)
			assert.NotEmpty(t, tc.err.Code)
			assert.NotEmpty(t, tc.err.Message)
		})
	}
}
