package web_test

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	oauth2lib "golang.org/x/oauth2"

	"github.com/panyam/whisper"
	"github.com/panyam/whisper/stores"
	"github.com/panyam/whisper/web"
)

// testEnv runs the full site against a temp filesystem store. The client
// keeps cookies but does not follow redirects, so tests can assert on every
// Location header along a journey.
type testEnv struct {
	server *httptest.Server
	client *http.Client
	site   *web.Site
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	auth := whisper.NewAuth("Test", "test-secret-key-123456")
	store := stores.NewFSUserStore(t.TempDir())
	site := web.New(web.Config{
		Auth:               auth,
		Store:              store,
		GoogleClientID:     "test-client-id",
		GoogleClientSecret: "test-client-secret",
		GoogleCallbackURL:  "http://localhost/auth/google/secrets",
	})

	server := httptest.NewServer(site.Handler())
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testEnv{server: server, client: client, site: site}
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := e.client.Get(e.server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := e.client.PostForm(e.server.URL+path, form)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func assertRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("Expected status %d, got %d", http.StatusFound, resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != location {
		t.Fatalf("Expected redirect to %q, got %q", location, got)
	}
}

func (e *testEnv) register(t *testing.T, username, password string) {
	t.Helper()
	resp := e.postForm(t, "/register", url.Values{
		"username": {username},
		"password": {password},
	})
	assertRedirect(t, resp, "/secrets")
}

func TestAnonymousSubmitRedirects(t *testing.T) {
	env := newTestEnv(t)

	assertRedirect(t, env.get(t, "/submit"), "/login")
}

func TestPublicPages(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/", "/login", "/register", "/secrets"} {
		resp := env.get(t, path)
		body := readBody(t, resp)
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: expected status 200, got %d", path, resp.StatusCode)
		}
		if body == "" {
			t.Errorf("GET %s: expected a rendered page", path)
		}
	}
}

func TestRegisterAndSubmitJourney(t *testing.T) {
	env := newTestEnv(t)

	env.register(t, "alice", "password123")

	// Registration established a session
	resp := env.get(t, "/submit")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200 for /submit after registering, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	assertRedirect(t, env.postForm(t, "/submit", url.Values{"secret": {"alice's confession"}}), "/secrets")

	body := readBody(t, env.get(t, "/secrets"))
	if !strings.Contains(body, "alice&#39;s confession") && !strings.Contains(body, "alice's confession") {
		t.Errorf("/secrets does not show the submitted secret: %s", body)
	}
}

func TestSubmitOverwritesSecret(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "bob", "password123")

	assertRedirect(t, env.postForm(t, "/submit", url.Values{"secret": {"first secret"}}), "/secrets")
	assertRedirect(t, env.postForm(t, "/submit", url.Values{"secret": {"second secret"}}), "/secrets")

	body := readBody(t, env.get(t, "/secrets"))
	if !strings.Contains(body, "second secret") {
		t.Errorf("/secrets should show the latest secret: %s", body)
	}
	if strings.Contains(body, "first secret") {
		t.Errorf("/secrets should not show the overwritten secret: %s", body)
	}
}

func TestSecretsPageIsPublic(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "carol", "password123")
	assertRedirect(t, env.postForm(t, "/submit", url.Values{"secret": {"public knowledge"}}), "/secrets")
	assertRedirect(t, env.get(t, "/logout"), "/")

	body := readBody(t, env.get(t, "/secrets"))
	if !strings.Contains(body, "public knowledge") {
		t.Errorf("secrets must stay visible to anonymous visitors: %s", body)
	}
	if strings.Contains(body, "carol") {
		t.Errorf("secrets page must not attribute secrets to users: %s", body)
	}
}

func TestLogoutEndsSession(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "dave", "password123")

	assertRedirect(t, env.get(t, "/logout"), "/")
	assertRedirect(t, env.get(t, "/submit"), "/login")
}

func TestLoginJourney(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "eve", "password123")
	assertRedirect(t, env.get(t, "/logout"), "/")

	// Wrong password first
	resp := env.postForm(t, "/login", url.Values{
		"username": {"eve"},
		"password": {"wrongpassword"},
	})
	assertRedirect(t, resp, "/login")
	assertRedirect(t, env.get(t, "/submit"), "/login")

	// Then the real one
	resp = env.postForm(t, "/login", url.Values{
		"username": {"eve"},
		"password": {"password123"},
	})
	assertRedirect(t, resp, "/secrets")

	resp = env.get(t, "/submit")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200 for /submit after login, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestDuplicateRegistration(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "frank", "password123")
	assertRedirect(t, env.get(t, "/logout"), "/")

	resp := env.postForm(t, "/register", url.Values{
		"username": {"frank"},
		"password": {"differentpass"},
	})
	assertRedirect(t, resp, "/register")
}

// TestGoogleLoginJourney drives the three-legged flow against a stubbed
// provider: redirect, callback with the state echoed back, then an
// authenticated page.
func TestGoogleLoginJourney(t *testing.T) {
	env := newTestEnv(t)

	provider := http.NewServeMux()
	provider.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"mock-token","token_type":"Bearer","expires_in":3600}`))
	})
	provider.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"google-user-1","name":"Grace"}`))
	})
	providerServer := httptest.NewServer(provider)
	defer providerServer.Close()

	env.site.Google.SetEndpoint(oauth2lib.Endpoint{
		AuthURL:  providerServer.URL + "/auth",
		TokenURL: providerServer.URL + "/token",
	})
	env.site.Google.UserInfoURL = providerServer.URL + "/userinfo"

	resp := env.get(t, "/auth/google")
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("Expected redirect to the provider, got %d", resp.StatusCode)
	}
	location, err := url.Parse(resp.Header.Get("Location"))
	resp.Body.Close()
	if err != nil {
		t.Fatalf("invalid Location: %v", err)
	}
	state := location.Query().Get("state")
	if state == "" {
		t.Fatal("Expected a state param in the provider redirect")
	}

	resp = env.get(t, "/auth/google/secrets?state="+url.QueryEscape(state)+"&code=test-code")
	assertRedirect(t, resp, "/secrets")

	// The callback established a session
	resp = env.get(t, "/submit")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200 for /submit after google login, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	assertRedirect(t, env.postForm(t, "/submit", url.Values{"secret": {"google user secret"}}), "/secrets")
	body := readBody(t, env.get(t, "/secrets"))
	if !strings.Contains(body, "google user secret") {
		t.Errorf("secret submitted by a google user is missing: %s", body)
	}
}
