package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/triage-service/internal/api/http"
	"github.com/spec-kit/triage-service/internal/api/http/handlers"
	"github.com/spec-kit/triage-service/internal/auth"
	"github.com/spec-kit/triage-service/internal/cache"
	"github.com/spec-kit/triage-service/internal/classifier"
	"github.com/spec-kit/triage-service/internal/config"
	"github.com/spec-kit/triage-service/internal/domain"
	"github.com/spec-kit/triage-service/internal/events"
	"github.com/spec-kit/triage-service/internal/observability"
	"github.com/spec-kit/triage-service/internal/repository"
	"github.com/spec-kit/triage-service/internal/service"
)

type apiFixture struct {
	app   *fiber.App
	users repository.UserRepository
	auth  *service.AuthService
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	ticketRepo := repository.NewMemoryTicketRepository()
	auditRepo := repository.NewMemoryAuditRepository()
	userRepo := repository.NewMemoryUserRepository()

	policyService := service.NewPolicyService(repository.NewMemoryPolicyRepository(), logger, time.Minute)
	authService := service.NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 15,
		BcryptCost:            4,
	}, userRepo)

	triageService := service.NewTriageService(service.TriageDependencies{
		TicketRepo:  ticketRepo,
		AuditRepo:   auditRepo,
		Policies:    policyService,
		Classifier:  classifier.NewKeywordClassifier(),
		Suggestions: cache.NewMemorySuggestionCache(time.Minute),
		Assignment:  service.NewAssignmentService(ticketRepo, userRepo, logger),
		Dispatcher:  events.NewInMemoryDispatcher(logger),
		Metrics:     metrics,
		Logger:      logger,
	})

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler("test", "dev", nil, nil),
		Auth:           handlers.NewAuthHandler(authService),
		Tickets:        handlers.NewTicketsHandler(triageService),
		Triage:         handlers.NewTriageHandler(triageService),
		Config:         handlers.NewConfigHandler(policyService, metrics),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), userRepo),
	})

	return &apiFixture{app: app, users: userRepo, auth: authService}
}

func (f *apiFixture) request(t *testing.T, method, path, token string, payload any) (int, map[string]any) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := f.app.Test(req, 5000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	decoded := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	}
	return resp.StatusCode, decoded
}

// provisionUser creates an account with the given role and returns a
// bearer token for it. Elevated roles are written straight to the
// store, which is how they are provisioned in production too.
func (f *apiFixture) provisionUser(t *testing.T, email string, role domain.Role) string {
	t.Helper()
	hash, err := auth.HashPassword("longenough", 4)
	require.NoError(t, err)
	user := &domain.User{Email: email, PasswordHash: hash, Role: role, Active: true}
	require.NoError(t, f.users.Create(context.Background(), user))

	_, token, err := f.auth.Login(context.Background(), email, "longenough")
	require.NoError(t, err)
	return token
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	payload, ok := body["data"].(map[string]any)
	require.True(t, ok, "expected data envelope, got %v", body)
	return payload
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	payload, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected error envelope, got %v", body)
	code, _ := payload["code"].(string)
	return code
}

func TestHealthEndpoints(t *testing.T) {
	fixture := newAPIFixture(t)
	status, body := fixture.request(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body)

	status, _ = fixture.request(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func TestRegisterLoginAndCreateTicket(t *testing.T) {
	fixture := newAPIFixture(t)

	status, body := fixture.request(t, http.MethodPost, "/auth/register", "", map[string]any{
		"email": "jamie@example.com", "name": "Jamie", "password": "longenough",
	})
	require.Equal(t, http.StatusCreated, status, body)

	status, body = fixture.request(t, http.MethodPost, "/auth/login", "", map[string]any{
		"email": "jamie@example.com", "password": "longenough",
	})
	require.Equal(t, http.StatusOK, status, body)
	token, _ := data(t, body)["token"].(string)
	require.NotEmpty(t, token)

	status, body = fixture.request(t, http.MethodPost, "/tickets/", token, map[string]any{
		"title": "Charged twice", "description": "Please refund the duplicate charge",
	})
	require.Equal(t, http.StatusCreated, status, body)
	ticket := data(t, body)
	assert.Equal(t, "open", ticket["status"])
	require.NotEmpty(t, ticket["id"])

	ticketID, _ := ticket["id"].(string)
	status, body = fixture.request(t, http.MethodGet, "/tickets/"+ticketID, token, nil)
	require.Equal(t, http.StatusOK, status, body)
	detail := data(t, body)
	assert.NotEmpty(t, detail["audit"])
	assert.NotEmpty(t, detail["conversation"])
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	fixture := newAPIFixture(t)
	status, body := fixture.request(t, http.MethodGet, "/tickets/", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", errorCode(t, body))
}

func TestAgentTriageEndpoint(t *testing.T) {
	fixture := newAPIFixture(t)
	userToken := fixture.provisionUser(t, "user@example.com", domain.RoleUser)
	agentToken := fixture.provisionUser(t, "agent@example.com", domain.RoleAgent)

	status, body := fixture.request(t, http.MethodPost, "/tickets/", userToken, map[string]any{
		"title": "Refund please", "description": "I was charged twice on my invoice, refund the payment",
	})
	require.Equal(t, http.StatusCreated, status, body)
	ticketID, _ := data(t, body)["id"].(string)

	// Plain users cannot reach the triage surface.
	status, body = fixture.request(t, http.MethodPost, "/agent/triage", userToken, map[string]any{"ticket_id": ticketID})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", errorCode(t, body))

	status, body = fixture.request(t, http.MethodPost, "/agent/triage", agentToken, map[string]any{"ticket_id": ticketID})
	require.Equal(t, http.StatusOK, status, body)
	result := data(t, body)
	assert.Contains(t, []any{"AUTO_CLOSED", "ASSIGNED_TO_HUMAN"}, result["outcome"])

	status, body = fixture.request(t, http.MethodGet, "/agent/suggestion/"+ticketID, agentToken, nil)
	require.Equal(t, http.StatusOK, status, body)
	suggestion := data(t, body)
	assert.Equal(t, ticketID, suggestion["ticket_id"])
	assert.NotEmpty(t, suggestion["draft_reply"])
}

func TestConfigEndpointRoles(t *testing.T) {
	fixture := newAPIFixture(t)
	userToken := fixture.provisionUser(t, "user@example.com", domain.RoleUser)
	agentToken := fixture.provisionUser(t, "agent@example.com", domain.RoleAgent)
	adminToken := fixture.provisionUser(t, "admin@example.com", domain.RoleAdmin)

	status, _ := fixture.request(t, http.MethodGet, "/config/", userToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, body := fixture.request(t, http.MethodGet, "/config/", agentToken, nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, 0.78, data(t, body)["confidenceThreshold"])

	// Writes are admin-only.
	status, _ = fixture.request(t, http.MethodPut, "/config/", agentToken, map[string]any{"slaHours": 48})
	assert.Equal(t, http.StatusForbidden, status)

	status, body = fixture.request(t, http.MethodPut, "/config/", adminToken, map[string]any{"slaHours": 48})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, float64(48), data(t, body)["slaHours"])

	status, body = fixture.request(t, http.MethodPut, "/config/", adminToken, map[string]any{"confidenceThreshold": 1.5})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", errorCode(t, body))
}

func TestErrorEnvelopeShape(t *testing.T) {
	fixture := newAPIFixture(t)
	agentToken := fixture.provisionUser(t, "agent@example.com", domain.RoleAgent)

	status, body := fixture.request(t, http.MethodPost, "/agent/triage", agentToken, map[string]any{
		"ticket_id": fmt.Sprintf("missing-%d", time.Now().UnixNano()),
	})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", errorCode(t, body))
}
