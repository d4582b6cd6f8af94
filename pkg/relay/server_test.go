package relay

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Suhaibinator/GOAuthRelay/pkg/session"
)

func newTestServer(t *testing.T, f *fixture, providerConfigured bool) *Server {
	t.Helper()
	return NewServer(zap.NewNop(), f.controller, []string{"https://app.example"}, providerConfigured)
}

func doRequest(t *testing.T, server *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, newFixture(t, &stubProvider{}), true)

	rec := doRequest(t, server, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, true, body["provider_configured"])
}

func TestHealthReportsMissingConfiguration(t *testing.T) {
	server := newTestServer(t, newFixture(t, nil), false)

	rec := doRequest(t, server, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["provider_configured"])
}

func TestLoginRedirectsToProvider(t *testing.T) {
	f := newFixture(t, &stubProvider{})
	server := newTestServer(t, f, true)

	req := httptest.NewRequest(http.MethodGet, "/auth/login?return_address=https%3A%2F%2Fapp.example%2Fcb", nil)
	rec := doRequest(t, server, req)

	require.Equal(t, http.StatusFound, rec.Code)
	location := rec.Header().Get("Location")
	assert.Contains(t, location, "https://provider.example/auth")
	assert.Contains(t, location, url.QueryEscape(f.provider.lastState))
}

func TestLoginRequiresReturnAddress(t *testing.T) {
	server := newTestServer(t, newFixture(t, &stubProvider{}), true)

	rec := doRequest(t, server, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLoginUnconfiguredProvider(t *testing.T) {
	server := newTestServer(t, newFixture(t, nil), false)

	req := httptest.NewRequest(http.MethodGet, "/auth/login?return_address=https%3A%2F%2Fapp.example%2Fcb", nil)
	rec := doRequest(t, server, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "not configured")
}

func TestCallbackAlwaysRedirects(t *testing.T) {
	tests := []struct {
		name   string
		target string
	}{
		{name: "missing code and state", target: "/auth/callback"},
		{name: "unknown state", target: "/auth/callback?code=abc&state=forged"},
		{name: "missing code", target: "/auth/callback?state=whatever"},
	}
	server := newTestServer(t, newFixture(t, &stubProvider{}), true)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, server, httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, http.StatusFound, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("Location"))
		})
	}
}

func TestCallbackSuccessEndToEnd(t *testing.T) {
	f := newFixture(t, &stubProvider{})
	server := newTestServer(t, f, true)

	// Initiate through the HTTP surface, then follow the callback.
	loginReq := httptest.NewRequest(http.MethodGet, "/auth/login?return_address=https%3A%2F%2Fapp.example%2Fcb", nil)
	require.Equal(t, http.StatusFound, doRequest(t, server, loginReq).Code)

	callback := "/auth/callback?code=good-code&state=" + url.QueryEscape(f.provider.lastState)
	rec := doRequest(t, server, httptest.NewRequest(http.MethodGet, callback, nil))
	require.Equal(t, http.StatusFound, rec.Code)

	location, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	q := location.Query()
	assert.Equal(t, "app.example", location.Host)
	assert.Equal(t, stubProfileData.Email, q.Get("email"))

	// The token from the redirect is good for the profile endpoint.
	profileReq := httptest.NewRequest(http.MethodGet, "/profile", nil)
	profileReq.Header.Set("Authorization", "Bearer "+q.Get("token"))
	profileRec := doRequest(t, server, profileReq)
	require.Equal(t, http.StatusOK, profileRec.Code)

	body := decodeBody(t, profileRec)
	assert.Equal(t, stubProfileData.Email, body["email"])
	assert.Equal(t, stubProfileData.Name, body["name"])
	assert.Equal(t, stubProfileData.AvatarURL, body["image"])
}

func TestProfileUnauthorizedReasons(t *testing.T) {
	f := newFixture(t, &stubProvider{})
	server := newTestServer(t, f, true)

	foreign, err := session.NewIssuer("other-secret", 0).Issue(stubProfileData)
	require.NoError(t, err)
	expired, err := session.NewIssuer("test-secret", -time.Hour).Issue(stubProfileData)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		reason string
	}{
		{name: "no header", header: "", reason: "missing"},
		{name: "wrong prefix", header: "Token xyz", reason: "malformed"},
		{name: "foreign secret", header: "Bearer " + foreign, reason: "invalid"},
		{name: "expired", header: "Bearer " + expired, reason: "expired"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := doRequest(t, server, req)
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, tt.reason, decodeBody(t, rec)["error"])
		})
	}
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	server := newTestServer(t, newFixture(t, &stubProvider{}), true)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := doRequest(t, server, req)

	assert.Equal(t, "https://app.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDAssigned(t *testing.T) {
	server := newTestServer(t, newFixture(t, &stubProvider{}), true)

	rec := doRequest(t, server, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}
