package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"pipe-company/internal/domain"
	"pipe-company/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUserHandler_LogoutAllRevokesEverySession(t *testing.T) {
	ctx := context.Background()
	users := newTestUserService()
	router := newTestRouter(NewUserHandler(users, zap.NewNop()))

	user, err := users.CreateUser(ctx, service.CreateUserInput{
		Email:    "buyer@pipes.example",
		Password: "longenough",
		Role:     domain.RoleEditor,
	})
	require.NoError(t, err)

	var refreshTokens []string
	for i := 0; i < 2; i++ {
		_, refresh, _, err := users.Login(ctx, "buyer@pipes.example", "longenough")
		require.NoError(t, err)
		refreshTokens = append(refreshTokens, refresh)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/users/logout-all", nil)
	req.Header.Set("Authorization", bearer(t, user.ID, domain.RoleEditor))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]int64
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, int64(2), resp["revoked_sessions"])

	for _, refresh := range refreshTokens {
		_, err := users.RefreshToken(ctx, refresh)
		assert.ErrorIs(t, err, service.ErrInvalidToken)
	}
}

func TestUserHandler_LogoutAllRequiresAuthentication(t *testing.T) {
	router := newTestRouter(NewUserHandler(newTestUserService(), zap.NewNop()))

	req := httptest.NewRequest(http.MethodPost, "/api/users/logout-all", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/users/logout-all", nil)
	req.Header.Set("Authorization", bearer(t, uuid.Nil, domain.RoleViewer))
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"revoked_sessions":0`)
}
