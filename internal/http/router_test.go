package httpapi

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civreg/internal/jwttoken"
	"civreg/internal/platform/metrics"
	"civreg/internal/policy"
	pophandler "civreg/internal/population/handler"
	popmodels "civreg/internal/population/models"
	popservice "civreg/internal/population/service"
	householdstore "civreg/internal/population/store/household"
	personstore "civreg/internal/population/store/person"
	residencestore "civreg/internal/population/store/residence"
	"civreg/internal/storage"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/tx"
	"civreg/pkg/testutil"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type pingRoute struct{}

func (pingRoute) Register(r chi.Router) {
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
}

func newTestRouter(t *testing.T, health map[string]HealthCheck, handlers ...Registrar) (http.Handler, *jwttoken.Tokens) {
	t.Helper()
	reg := prometheus.NewRegistry()
	tokens := jwttoken.New("test-signing-key", "civreg-test")
	return NewRouter(Deps{
		Logger:    discard,
		Metrics:   metrics.New(reg),
		Gatherer:  reg,
		Validator: tokens,
		Health:    health,
		Handlers:  handlers,
	}), tokens
}

func bearer(t *testing.T, tokens *jwttoken.Tokens, role policy.Role) string {
	t.Helper()
	token, err := tokens.Issue(id.UserID(uuid.New()), string(role), time.Hour)
	require.NoError(t, err)
	return token
}

func TestHealthz(t *testing.T) {
	t.Run("no checks", func(t *testing.T) {
		router, _ := newTestRouter(t, nil)
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "status", "ok")
	})

	t.Run("failing dependency", func(t *testing.T) {
		router, _ := newTestRouter(t, map[string]HealthCheck{
			"redis": func(context.Context) error { return errors.New("connection refused") },
		})
		rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
		testutil.AssertJSONContains(t, rr, "status", "degraded")
	})
}

func TestMetricsEndpoint(t *testing.T) {
	router, tokens := newTestRouter(t, nil, pingRoute{})
	req := testutil.WithBearer(testutil.NewRequest(t, http.MethodGet, "/api/ping"), bearer(t, tokens, policy.RoleStaff))
	testutil.DoRequest(router, req)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
	testutil.AssertStatusOK(t, rr)
	assert.Contains(t, rr.Body.String(), "civreg_")
}

func TestAPIRequiresToken(t *testing.T) {
	router, tokens := newTestRouter(t, nil, pingRoute{})

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/api/ping"))
	testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	req := testutil.WithBearer(testutil.NewRequest(t, http.MethodGet, "/api/ping"), bearer(t, tokens, policy.RoleStaff))
	rr = testutil.DoRequest(router, req)
	testutil.AssertStatus(t, rr, http.StatusNoContent)
}

// TestRegisterAndCreateHousehold drives the population routes end to end
// over in-memory stores.
func TestRegisterAndCreateHousehold(t *testing.T) {
	households := householdstore.NewInMemory()
	persons := personstore.NewInMemory()
	residences := residencestore.NewInMemory()
	runner := tx.NewMemoryRunner()
	ledger := popservice.NewLedger(households, persons, storage.NewMemorySequence(), runner)
	residency := popservice.NewResidency(households, persons, residences, runner)
	router, tokens := newTestRouter(t, nil, pophandler.New(ledger, residency, discard))

	do := func(role policy.Role, method, path string, body any) *httptest.ResponseRecorder {
		req := testutil.WithBearer(testutil.NewJSONRequest(t, method, path, body), bearer(t, tokens, role))
		return testutil.DoRequest(router, req)
	}

	rr := do(policy.RoleDeputyLeader, http.MethodPost, "/api/population", map[string]any{
		"fullName":    "Nguyễn Văn A",
		"dateOfBirth": "1980-01-02T00:00:00Z",
		"gender":      "male",
	})
	testutil.AssertStatus(t, rr, http.StatusCreated)
	person := testutil.UnmarshalResponse[popmodels.Person](t, rr)

	rr = do(policy.RoleAccountant, http.MethodPost, "/api/households", map[string]any{
		"headId":  person.ID,
		"address": map[string]string{"houseNumber": "12"},
	})
	testutil.AssertStatusAndError(t, rr, http.StatusForbidden, "forbidden")

	rr = do(policy.RoleDeputyLeader, http.MethodPost, "/api/households", map[string]any{
		"headId":  person.ID,
		"address": map[string]string{"houseNumber": "12"},
	})
	testutil.AssertStatus(t, rr, http.StatusCreated)
	testutil.AssertJSONContains(t, rr, "code", "HK000001")

	rr = do(policy.RoleAccountant, http.MethodGet, "/api/population/"+person.ID.String(), nil)
	testutil.AssertStatusOK(t, rr)
	testutil.AssertJSONContains(t, rr, "relationshipToHead", "head")
}
