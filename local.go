package whisper

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// HandleUserFunc is called after a user has been authenticated (signup,
// local login or OAuth callback). The app uses it to establish the session
// and issue the post-auth redirect.
type HandleUserFunc func(authtype string, provider string, user *User, w http.ResponseWriter, r *http.Request)

// Allows local username/password based authentication
type LocalAuth struct {
	// Store holding user accounts
	Store UserStore

	// Validates credentials during signup
	ValidateSignup SignupValidator

	// Provider name (defaults to "local")
	Provider string

	// Form field names
	UsernameField string
	PasswordField string

	// Handler called after successful authentication
	HandleUser HandleUserFunc

	// OnSignupError is called when signup fails. If nil, returns JSON error.
	OnSignupError AuthErrorHandler

	// OnLoginError is called when login fails. If nil, returns JSON error.
	OnLoginError AuthErrorHandler
}

// HandleSignup processes user registration
func (a *LocalAuth) HandleSignup(w http.ResponseWriter, r *http.Request) {
	if a.Store == nil {
		http.Error(w, `{"error": "Signup not configured"}`, http.StatusInternalServerError)
		return
	}

	username, password, authErr := a.parseForm(r)
	if authErr != nil {
		a.handleSignupError(authErr, w, r)
		return
	}

	creds := &Credentials{Username: username, Password: password}
	validator := a.ValidateSignup
	if validator == nil {
		validator = DefaultSignupValidator
	}
	if err := validator(creds); err != nil {
		a.handleSignupError(signupValidationError(err), w, r)
		return
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		log.Println("error hashing password: ", err)
		a.handleSignupError(NewAuthError(ErrCodeStorageFailure, "Failed to create user", ""), w, r)
		return
	}

	user := &User{
		ID:           NewUserID(),
		Username:     username,
		DisplayName:  username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := a.Store.CreateUser(r.Context(), user); err != nil {
		log.Println("error creating user: ", err)
		if errors.Is(err, ErrUsernameTaken) {
			a.handleSignupError(NewAuthError(ErrCodeUsernameTaken, "Username is already taken", "username"), w, r)
		} else {
			a.handleSignupError(NewAuthError(ErrCodeStorageFailure, fmt.Sprintf("Failed to create user: %s", err), ""), w, r)
		}
		return
	}

	a.HandleUser("local", a.getProvider(), user, w, r)
}

// ServeHTTP handles login requests
func (a *LocalAuth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.HandleLogin(w, r)
}

// HandleLogin validates a username/password pair and hands the user off to
// HandleUser. Invalid credentials of any kind (unknown username, wrong
// password, OAuth-only account) surface as a single invalid-credentials
// failure.
func (a *LocalAuth) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if a.Store == nil {
		http.Error(w, `{"error": "Login not configured"}`, http.StatusInternalServerError)
		return
	}

	username, password, authErr := a.parseForm(r)
	if authErr != nil {
		a.handleLoginError(authErr, w, r)
		return
	}

	user, err := a.Store.GetUserByUsername(r.Context(), username)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			log.Println("error looking up user: ", err)
		}
		a.handleLoginError(NewAuthError(ErrCodeInvalidCreds, "Invalid credentials", "password"), w, r)
		return
	}

	if user.PasswordHash == "" || !VerifyPassword(user.PasswordHash, password) {
		a.handleLoginError(NewAuthError(ErrCodeInvalidCreds, "Invalid credentials", "password"), w, r)
		return
	}

	a.HandleUser("local", a.getProvider(), user, w, r)
}

func (a *LocalAuth) parseForm(r *http.Request) (username, password string, authErr *AuthError) {
	contentType := r.Header.Get("Content-Type")
	usernameField := a.getUsernameField()
	passwordField := a.getPasswordField()

	if strings.HasPrefix(contentType, "application/json") {
		var data map[string]any
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data == nil {
			return "", "", NewAuthError(ErrCodeMissingField, "invalid post body", "")
		}
		if u, ok := data[usernameField].(string); ok {
			username = u
		}
		if p, ok := data[passwordField].(string); ok {
			password = p
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return "", "", NewAuthError(ErrCodeMissingField, "error parsing form", "")
		}
		username = r.FormValue(usernameField)
		password = r.FormValue(passwordField)
	}

	if username == "" {
		return "", "", NewAuthError(ErrCodeMissingField, fmt.Sprintf("%s is required", usernameField), usernameField)
	}
	if password == "" {
		return "", "", NewAuthError(ErrCodeMissingField, fmt.Sprintf("%s is required", passwordField), passwordField)
	}

	return username, password, nil
}

func (a *LocalAuth) getProvider() string {
	if a.Provider != "" {
		return a.Provider
	}
	return "local"
}

func (a *LocalAuth) getUsernameField() string {
	if a.UsernameField != "" {
		return a.UsernameField
	}
	return "username"
}

func (a *LocalAuth) getPasswordField() string {
	if a.PasswordField != "" {
		return a.PasswordField
	}
	return "password"
}

// signupValidationError maps a validator error onto an AuthError (best
// effort to detect the field)
func signupValidationError(err error) *AuthError {
	errMsg := err.Error()
	if strings.Contains(errMsg, "username") {
		return NewAuthError(ErrCodeInvalidUsername, errMsg, "username")
	}
	if strings.Contains(errMsg, "password") {
		return NewAuthError(ErrCodeWeakPassword, errMsg, "password")
	}
	return NewAuthError("validation_error", errMsg, "")
}

// handleLoginError handles login errors using the configured handler or default JSON
func (a *LocalAuth) handleLoginError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	if a.OnLoginError != nil && a.OnLoginError(err, w, r) {
		return
	}
	// Default: return JSON error
	w.Header().Set("Content-Type", "application/json")
	statusCode := http.StatusUnauthorized
	if err.Code == ErrCodeMissingField {
		statusCode = http.StatusBadRequest
	}
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]any{
		"error": err.Message,
		"code":  err.Code,
		"field": err.Field,
	})
}

// handleSignupError handles signup errors using the configured handler or default JSON
func (a *LocalAuth) handleSignupError(err *AuthError, w http.ResponseWriter, r *http.Request) {
	if a.OnSignupError != nil && a.OnSignupError(err, w, r) {
		return
	}
	// Default: return JSON error
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{
		"error": err.Message,
		"code":  err.Code,
		"field": err.Field,
	})
}
