package daemon

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminGateDisabledWhenTokenEmpty(t *testing.T) {
	g, err := newAdminGate("")
	require.NoError(t, err)
	assert.False(t, g.enabled())

	r := httptest.NewRequest(http.MethodPost, "/query", nil)
	assert.True(t, g.check(r))
}

func TestAdminGateAcceptsBearerToken(t *testing.T) {
	g, err := newAdminGate("s3cret")
	require.NoError(t, err)
	require.True(t, g.enabled())

	r := httptest.NewRequest(http.MethodPost, "/query", nil)
	r.Header.Set("Authorization", "Bearer s3cret")
	assert.True(t, g.check(r))
}

func TestAdminGateRejectsWrongToken(t *testing.T) {
	g, err := newAdminGate("s3cret")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/query", nil)
	r.Header.Set("Authorization", "Bearer wrong")
	assert.False(t, g.check(r))
}

func TestAdminGateRejectsMissingCredentials(t *testing.T) {
	g, err := newAdminGate("s3cret")
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/query", nil)
	assert.False(t, g.check(r))
}

func TestWithAuthzSkipsCheckForReadEndpoints(t *testing.T) {
	g, err := newAdminGate("s3cret")
	require.NoError(t, err)

	called := false
	handler := g.withAuthz(false, func(w http.ResponseWriter, r *http.Request) { called = true })

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/status", nil)
	handler(w, r)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestWithAuthzBlocksWriteEndpointsWithoutToken(t *testing.T) {
	g, err := newAdminGate("s3cret")
	require.NoError(t, err)

	called := false
	handler := g.withAuthz(true, func(w http.ResponseWriter, r *http.Request) { called = true })

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/query", nil)
	handler(w, r)

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
