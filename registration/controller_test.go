package registration

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lagren/fleetwatch/status"
)

func TestAddHost(t *testing.T) {
	t.Run("success_clears_input_and_error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "x", r.URL.Query().Get("host"))
		}))
		defer srv.Close()

		c := New(status.NewClient(srv.URL, time.Second))
		c.SetPending("x")
		c.lastError = "old error"

		require.NoError(t, c.AddHost(context.Background(), "x"))

		assert.Empty(t, c.Pending())
		assert.Empty(t, c.LastError())
	})

	t.Run("service_error_is_shown_verbatim", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("duplicate host"))
		}))
		defer srv.Close()

		c := New(status.NewClient(srv.URL, time.Second))
		c.SetPending("x")

		assert.Error(t, c.AddHost(context.Background(), "x"))

		assert.Equal(t, "duplicate host", c.LastError())
		assert.Equal(t, "x", c.Pending())
	})

	t.Run("transport_error_uses_error_text", func(t *testing.T) {
		c := New(adderFunc(func(context.Context, string) error {
			return errors.New("dial tcp: connection refused")
		}))
		c.SetPending("y")

		assert.Error(t, c.AddHost(context.Background(), "y"))

		assert.Equal(t, "dial tcp: connection refused", c.LastError())
		assert.Equal(t, "y", c.Pending())
	})

	t.Run("each_attempt_overwrites_error", func(t *testing.T) {
		fail := true
		c := New(adderFunc(func(context.Context, string) error {
			if fail {
				return &status.ServiceError{Code: http.StatusBadRequest, Message: "missing host"}
			}
			return nil
		}))

		assert.Error(t, c.AddHost(context.Background(), ""))
		assert.Equal(t, "missing host", c.LastError())

		fail = false
		c.SetPending("z")
		assert.NoError(t, c.AddHost(context.Background(), "z"))
		assert.Empty(t, c.LastError())
		assert.Empty(t, c.Pending())
	})
}

type adderFunc func(ctx context.Context, host string) error

func (f adderFunc) Add(ctx context.Context, host string) error {
	return f(ctx, host)
}
