package handler_test

import (
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/terrasense/agrigate/internal/adapter/cache"
	"github.com/terrasense/agrigate/internal/config"
	httptransport "github.com/terrasense/agrigate/internal/http"
	"github.com/terrasense/agrigate/internal/http/handler"
	httpmiddleware "github.com/terrasense/agrigate/internal/http/middleware"
	"github.com/terrasense/agrigate/internal/provider"
	"github.com/terrasense/agrigate/internal/repository"
	"github.com/terrasense/agrigate/internal/service"
	"github.com/terrasense/agrigate/internal/token"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := zap.NewNop()
	codec := token.NewCodec("test-secret", time.Hour)
	authService := service.NewAuthService(repository.NewMemoryUserRepo(), codec, logger)

	envService := service.NewEnvironmentService(
		provider.NewOpenWeather("", "", nil),
		provider.NewAgroMonitoring("", "", nil),
		logger,
	)
	chatService := service.NewChatService(
		provider.NewOpenRouter("", "", "", nil),
		cache.NewMemoryConversationStore(),
		logger,
	)

	cfg := config.Config{ServiceName: "agrigate-test"}
	return httptransport.NewRouter(
		cfg,
		handler.NewAuthHandler(authService),
		handler.NewEnvHandler(envService, chatService),
		&httpmiddleware.Auth{AuthService: authService},
		nil,
	)
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	decoded := map[string]any{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestRegisterLoginMeFlow(t *testing.T) {
	router := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodPost, "/api/auth/register",
		`{"name": "Ana", "email": "ana@example.com", "password": "password123"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEmpty(t, body["token"])

	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "ana@example.com", user["email"])
	require.Equal(t, "user", user["role"])
	_, exposed := user["password"]
	require.False(t, exposed)

	rec, body = doJSON(t, router, http.MethodPost, "/api/auth/login",
		`{"email": "ana@example.com", "password": "password123"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tokenValue, _ := body["token"].(string)
	require.NotEmpty(t, tokenValue)

	rec, body = doJSON(t, router, http.MethodGet, "/api/auth/me", "",
		map[string]string{"Authorization": "Bearer " + tokenValue})
	require.Equal(t, http.StatusOK, rec.Code)
	me, ok := body["user"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, "Ana", me["name"])
}

func TestRegisterDuplicateEmailConflict(t *testing.T) {
	router := newTestRouter(t)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/auth/register",
		`{"name": "Ana", "email": "ana@example.com", "password": "password123"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := doJSON(t, router, http.MethodPost, "/api/auth/register",
		`{"name": "Eve", "email": "ana@example.com", "password": "password456"}`, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, "Cet email est déjà utilisé", body["message"])
}

func TestLoginWrongPassword(t *testing.T) {
	router := newTestRouter(t)

	rec, _ := doJSON(t, router, http.MethodPost, "/api/auth/register",
		`{"name": "Ana", "email": "ana@example.com", "password": "password123"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body := doJSON(t, router, http.MethodPost, "/api/auth/login",
		`{"email": "ana@example.com", "password": "wrong-password"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Identifiants invalides", body["message"])
}

func TestMeRequiresToken(t *testing.T) {
	router := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodGet, "/api/auth/me", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Token d'authentification manquant", body["message"])

	// Lowercase scheme does not match the expected prefix.
	rec, body = doJSON(t, router, http.MethodGet, "/api/auth/me", "",
		map[string]string{"Authorization": "bearer sometoken"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Token d'authentification manquant", body["message"])

	rec, body = doJSON(t, router, http.MethodGet, "/api/auth/me", "",
		map[string]string{"Authorization": "Bearer garbage"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Token invalide ou expiré", body["message"])
}

func TestMeRejectsForeignSignature(t *testing.T) {
	router := newTestRouter(t)

	foreign := token.NewCodec("other-secret", time.Hour)
	raw, err := foreign.Issue("some-user")
	require.NoError(t, err)

	rec, body := doJSON(t, router, http.MethodGet, "/api/auth/me", "",
		map[string]string{"Authorization": "Bearer " + raw})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Token invalide ou expiré", body["message"])
}

func TestMeRejectsExpiredToken(t *testing.T) {
	router := newTestRouter(t)

	// Signed with the same key material the router's codec derives from its
	// secret, but the expiry is already in the past: the gate must reject on
	// expiry, not on signature.
	key := sha256.Sum256([]byte("test-secret"))
	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.HS256, Key: key[:]},
		(&gojose.SignerOptions{}).WithType("JWT"),
	)
	require.NoError(t, err)

	issued := time.Now().UTC().Add(-2 * time.Hour).Truncate(time.Second)
	claims := gojwt.Claims{
		Subject:  "some-user",
		IssuedAt: gojwt.NewNumericDate(issued),
		Expiry:   gojwt.NewNumericDate(issued.Add(time.Hour)),
	}
	expired, err := gojwt.Signed(signer).Claims(claims).Serialize()
	require.NoError(t, err)

	rec, body := doJSON(t, router, http.MethodGet, "/api/auth/me", "",
		map[string]string{"Authorization": "Bearer " + expired})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "Token invalide ou expiré", body["message"])
}

func TestLogout(t *testing.T) {
	router := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodPost, "/api/auth/logout", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Déconnexion réussie", body["message"])
}

func TestRegisterValidationErrors(t *testing.T) {
	router := newTestRouter(t)

	cases := []struct {
		name string
		body string
	}{
		{"not json", `{`},
		{"missing fields", `{"name": "Ana"}`},
		{"bad email", `{"name": "Ana", "email": "nope", "password": "password123"}`},
		{"short password", `{"name": "Ana", "email": "ana@example.com", "password": "short"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, _ := doJSON(t, router, http.MethodPost, "/api/auth/register", tc.body, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
