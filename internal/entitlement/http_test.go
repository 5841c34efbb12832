package entitlement

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/mortgage-trainer/internal/auth"
	"github.com/gokatarajesh/mortgage-trainer/internal/auth/jwt"
)

func requestAs(method, path string, userID uuid.UUID) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	return req.WithContext(auth.ContextWithClaims(req.Context(), &jwt.Claims{UserID: userID}))
}

func TestCheckAccessHandler(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHTTPHandler(svc, zerolog.Nop())
	user := uuid.New()

	_, _, err := svc.IssueToken(context.Background(), "pi_exam", ProductExam, user)
	require.NoError(t, err)

	tests := []struct {
		product Product
		want    bool
	}{
		{ProductExam, true},
		{ProductScenario, false},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.CheckAccess(tt.product).ServeHTTP(rec, requestAs(http.MethodGet, "/api/check-access", user))
		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			HasAccess bool `json:"hasAccess"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, tt.want, body.HasAccess, string(tt.product))
	}

	rec := httptest.NewRecorder()
	h.CheckAccess(ProductExam).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/check-exam-access", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestListTokensHandler(t *testing.T) {
	svc, _, clock := newTestService()
	h := NewHTTPHandler(svc, zerolog.Nop())
	user := uuid.New()

	_, _, err := svc.IssueToken(context.Background(), "pi_bundle", ProductBundle, user)
	require.NoError(t, err)
	clock.Advance(BundleValidity + 1)

	rec := httptest.NewRecorder()
	h.ListTokens(rec, requestAs(http.MethodGet, "/api/profile/tokens", user))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Tokens []struct {
			Product Product `json:"product"`
			Active  bool    `json:"active"`
		} `json:"tokens"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Len(t, body.Tokens, 1)
	assert.Equal(t, ProductBundle, body.Tokens[0].Product)
	assert.False(t, body.Tokens[0].Active)

	rec = httptest.NewRecorder()
	h.ListTokens(rec, requestAs(http.MethodPost, "/api/profile/tokens", user))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
