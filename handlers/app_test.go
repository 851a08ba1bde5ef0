package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dima260208d-dot/kinetik-energy-project/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp(gatewayToken string) *fiber.App {
	log := zap.NewNop()
	return NewApp(AppDeps{
		Log:          log,
		Origins:      "*",
		GatewayToken: gatewayToken,
		Kinetic:      &KineticHandler{},
		Diary:        services.NewDiaryService(nil, log, nil, nil),
	})
}

func doRequest(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, map[string]interface{}) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]interface{}{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp, body
}

func TestPreflightIsAnsweredWithoutBody(t *testing.T) {
	app := newTestApp("secret")
	for _, path := range []string{"/kinetic", "/diary/entries", "/analytics"} {
		req := httptest.NewRequest(http.MethodOptions, path, nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		raw, _ := io.ReadAll(resp.Body)

		assert.Equal(t, http.StatusNoContent, resp.StatusCode, path)
		assert.Empty(t, raw, path)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"), path)
	}
}

func TestUnknownActionIs404(t *testing.T) {
	app := newTestApp("")

	req := httptest.NewRequest(http.MethodGet, "/kinetic?action=dance", nil)
	resp, body := doRequest(t, app, req)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "unknown_action", body["error"])
	assert.Equal(t, "dance", body["action"])
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestActionWithWrongMethodIs404(t *testing.T) {
	app := newTestApp("")

	req := httptest.NewRequest(http.MethodGet, "/kinetic?action=join_tournament", nil)
	resp, body := doRequest(t, app, req)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "unknown_action", body["error"])
}

func TestActionFromBody(t *testing.T) {
	app := newTestApp("")

	req := httptest.NewRequest(http.MethodPost, "/kinetic", strings.NewReader(`{"action":"add_kinetics","character_id":"x","amount":5}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Role", "client")
	resp, body := doRequest(t, app, req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", body["error"])
}

func TestStaffOnlyActionsRejectNonStaff(t *testing.T) {
	app := newTestApp("")
	for _, action := range []Action{ActionUpdateCharacter, ActionAddKinetics, ActionConfirmTricks, ActionAddTrainingVisit, ActionSendWeeklyResults} {
		req := httptest.NewRequest(http.MethodPost, "/kinetic?action="+string(action), strings.NewReader(`{}`))
		req.Header.Set("X-User-Id", "u1")
		resp, _ := doRequest(t, app, req)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, action)
	}
}

func TestEveryRouteHasAHandler(t *testing.T) {
	for action, route := range kineticRoutes {
		assert.NotNil(t, route.handle, action)
		assert.Contains(t, []string{fiber.MethodGet, fiber.MethodPost}, route.method, action)
	}
}

func TestDiaryUnknownRoleIsForbidden(t *testing.T) {
	app := newTestApp("")

	req := httptest.NewRequest(http.MethodGet, "/diary/entries", nil)
	req.Header.Set("X-Role", "janitor")
	resp, body := doRequest(t, app, req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "forbidden", body["error"])
}

func TestDiaryMediaUploadDisabled(t *testing.T) {
	app := newTestApp("")

	req := httptest.NewRequest(http.MethodPost, "/diary/media/upload-url",
		strings.NewReader(`{"filename":"a.jpg","content_type":"image/jpeg"}`))
	req.Header.Set("X-Role", "trainer")
	req.Header.Set("X-User-Id", "00000000-0000-0000-0000-000000000001")
	resp, body := doRequest(t, app, req)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "media_storage_disabled", body["error"])
}

func TestAnalytics(t *testing.T) {
	app := newTestApp("")

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/analytics", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	assert.Equal(t, "method_not_allowed", body["error"])

	req := httptest.NewRequest(http.MethodPost, "/analytics",
		strings.NewReader(`{"visitorId":"v-1","currentPage":"/shop","utm":{"source":"tg"}}`))
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPhone) Mobile Safari/604.1")
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	resp, body = doRequest(t, app, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "v-1", body["visitorId"])

	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "mobile", data["device"])
	assert.Equal(t, "Safari", data["browser"])
	assert.Equal(t, "203.0.113.9", data["ip"])
	assert.Equal(t, "tg", data["utm_source"])
}

func TestGatewayToken(t *testing.T) {
	app := newTestApp("secret")

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/kinetic?action=dance", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "gateway_token_missing", body["error"])

	req := httptest.NewRequest(http.MethodGet, "/kinetic?action=dance", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, _ = doRequest(t, app, req)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doRequest(t, app, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestErrorHandlerMapsKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ValidationError("bad", "x"), http.StatusBadRequest, "bad"},
		{services.ConflictError("already_joined", "x"), http.StatusBadRequest, "already_joined"},
		{services.InsufficientFundsError(100, 5), http.StatusBadRequest, "not_enough_kinetics"},
		{services.ForbiddenError("x"), http.StatusForbidden, "forbidden"},
		{services.NotFoundError("character_not_found", "x"), http.StatusNotFound, "character_not_found"},
		{services.UnavailableError("media_storage_disabled", "x"), http.StatusServiceUnavailable, "media_storage_disabled"},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
		err := tc.err
		app.Get("/", func(c *fiber.Ctx) error { return err })

		resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, tc.status, resp.StatusCode, tc.code)
		assert.Equal(t, tc.code, body["error"])
		if tc.code == "internal_error" {
			assert.NotContains(t, body, "message")
		}
	}
}

func TestInsufficientFundsCarriesAmounts(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler(zap.NewNop())})
	app.Get("/", func(c *fiber.Ctx) error { return services.InsufficientFundsError(100, 5) })

	_, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.EqualValues(t, 100, body["needed"])
	assert.EqualValues(t, 5, body["have"])
}

func TestUnmatchedRouteIsJSON404(t *testing.T) {
	app := newTestApp("")

	resp, body := doRequest(t, app, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", body["error"])
}
