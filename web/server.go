// Package web ties the whisper auth and store layers to HTTP routes and
// HTML views. Every response is either a rendered view or a redirect.
package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	oauth2lib "golang.org/x/oauth2"

	"github.com/panyam/whisper"
	"github.com/panyam/whisper/oauth2"
)

// Config collects the collaborators the site needs.
type Config struct {
	Auth  *whisper.Auth
	Store whisper.UserStore

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
}

// Site holds the route handlers for the whisper application.
type Site struct {
	Auth   *whisper.Auth
	Store  whisper.UserStore
	Local  *whisper.LocalAuth
	Google *oauth2.GoogleOAuth2
}

// New wires a Site: local auth redirects back to the originating form on
// failure, Google auth redirects to /login, and every successful
// authentication lands on /secrets.
func New(cfg Config) *Site {
	s := &Site{Auth: cfg.Auth, Store: cfg.Store}

	s.Local = &whisper.LocalAuth{
		Store:         cfg.Store,
		HandleUser:    s.userAuthenticated,
		OnSignupError: whisper.RedirectOnError("/register"),
		OnLoginError:  whisper.RedirectOnError("/login"),
	}
	s.Google = oauth2.NewGoogleOAuth2(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL, s.googleAuthenticated)

	if s.Auth.Middleware.GetRedirURL == nil {
		s.Auth.Middleware.GetRedirURL = func(r *http.Request) string { return "/login" }
	}
	return s
}

// Handler builds the route table. The session middleware and the user
// extractor wrap every request; EnsureUser additionally guards the submit
// routes.
func (s *Site) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/", s.HomePage).Methods("GET")
	r.HandleFunc("/login", s.LoginPage).Methods("GET")
	r.HandleFunc("/register", s.RegisterPage).Methods("GET")
	r.HandleFunc("/secrets", s.SecretsPage).Methods("GET")
	r.HandleFunc("/logout", s.HandleLogout).Methods("GET")

	r.Handle("/submit", s.Auth.Middleware.EnsureUser(http.HandlerFunc(s.SubmitPage))).Methods("GET")
	r.Handle("/submit", s.Auth.Middleware.EnsureUser(http.HandlerFunc(s.HandleSubmit))).Methods("POST")

	r.HandleFunc("/auth/google", s.Google.HandleRedirect).Methods("GET")
	r.HandleFunc("/auth/google/secrets", s.Google.HandleCallback).Methods("GET")

	r.HandleFunc("/register", s.Local.HandleSignup).Methods("POST")
	r.HandleFunc("/login", s.Local.HandleLogin).Methods("POST")

	return s.Auth.Session.LoadAndSave(s.Auth.Middleware.ExtractUser(r))
}

// userAuthenticated is the HandleUserFunc for local signup and login.
func (s *Site) userAuthenticated(authtype, provider string, user *whisper.User, w http.ResponseWriter, r *http.Request) {
	s.Auth.SetLoggedInUser(user, w, r)
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

// googleAuthenticated is called by the OAuth callback with the provider
// token and raw userinfo.
func (s *Site) googleAuthenticated(provider string, token *oauth2lib.Token, userInfo map[string]any, w http.ResponseWriter, r *http.Request) {
	subject := oauth2.Subject(userInfo)
	if subject == "" {
		slog.Warn("google userinfo carried no subject identifier", "provider", provider)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	user, created, err := s.Store.FindOrCreateByGoogleID(r.Context(), subject, oauth2.DisplayName(userInfo))
	if err != nil {
		slog.Error("error resolving google user", "err", err)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	if created {
		slog.Info("created user from google login", "userId", user.ID)
	}

	s.Auth.SetLoggedInUser(user, w, r)
	http.Redirect(w, r, "/secrets", http.StatusFound)
}

func (s *Site) HomePage(w http.ResponseWriter, r *http.Request) {
	sessionUser, loggedIn := s.Auth.LoggedInUser(r)
	render(w, "home.html", map[string]any{
		"LoggedIn":    loggedIn,
		"DisplayName": sessionUser.DisplayName,
	})
}

func (s *Site) LoginPage(w http.ResponseWriter, r *http.Request) {
	render(w, "login.html", nil)
}

func (s *Site) RegisterPage(w http.ResponseWriter, r *http.Request) {
	render(w, "register.html", nil)
}

// SecretsPage is public: every user with a submitted secret appears here,
// without attribution.
func (s *Site) SecretsPage(w http.ResponseWriter, r *http.Request) {
	users, err := s.Store.ListUsersWithSecrets(r.Context())
	if err != nil {
		slog.Error("error listing secrets", "err", err)
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	secrets := make([]string, 0, len(users))
	for _, user := range users {
		if user.Secret != nil {
			secrets = append(secrets, *user.Secret)
		}
	}

	_, loggedIn := s.Auth.LoggedInUser(r)
	render(w, "secrets.html", map[string]any{
		"Secrets":  secrets,
		"LoggedIn": loggedIn,
	})
}

func (s *Site) SubmitPage(w http.ResponseWriter, r *http.Request) {
	render(w, "submit.html", nil)
}

// HandleSubmit overwrites the logged-in user's secret. A stale session
// whose user no longer resolves is sent back to /login; a storage failure
// is logged and returns the user to the form.
func (s *Site) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	sessionUser, ok := s.Auth.LoggedInUser(r)
	if !ok {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Redirect(w, r, "/submit", http.StatusFound)
		return
	}
	secret := r.FormValue("secret")

	if err := s.Store.SetSecret(r.Context(), sessionUser.ID, secret); err != nil {
		if errors.Is(err, whisper.ErrUserNotFound) {
			slog.Warn("session user no longer exists", "userId", sessionUser.ID)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		slog.Error("error saving secret", "userId", sessionUser.ID, "err", err)
		http.Redirect(w, r, "/submit", http.StatusFound)
		return
	}

	http.Redirect(w, r, "/secrets", http.StatusFound)
}

// HandleLogout destroys the session. Destruction failures are logged but
// the redirect to the home page happens regardless, so the user never
// lands on an undefined page state.
func (s *Site) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.Auth.ClearLoggedInUser(w, r); err != nil {
		slog.Error("error destroying session", "err", err)
	}
	http.Redirect(w, r, "/", http.StatusFound)
}
