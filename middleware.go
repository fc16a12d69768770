package whisper

import (
	"context"
	"log/slog"
	"net/http"
)

type userParamNameKey string

// Middleware attaches the logged-in user identity to every request. It
// checks the server-side session first and falls back to the signed auth
// token cookie when the session carries no identity.
type Middleware struct {
	AuthTokenCookieName string
	UserParamName       string
	SessionGetter       func(r *http.Request, param string) any
	GetRedirURL         func(r *http.Request) string
	VerifyToken         func(tokenString string) (loggedInUserId string, err error)
}

/**
 * Ensures that config values have reasonable defaults.
 */
func (a *Middleware) EnsureReasonableDefaults() {
	if a.UserParamName == "" {
		a.UserParamName = SessionUserIDVar
	}
}

// Get the ID of the logged in user from the current request
func (a *Middleware) GetLoggedInUserId(r *http.Request) string {
	a.EnsureReasonableDefaults()
	v := r.Context().Value(userParamNameKey(a.UserParamName))
	if v != nil {
		if loggedInUserId, ok := v.(string); ok && loggedInUserId != "" {
			return loggedInUserId
		}
	}
	return a.getLoggedInUserId(r)
}

/**
 * Fetches the user from the request and makes the user ID available to
 * other handlers downstream.
 *
 * Note this does not perform any redirects if a valid user does not exist.
 * To also enforce a user exists, use the EnsureUser handler which both
 * extracts the user and ensures that user is logged in.
 */
func (a *Middleware) ExtractUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			userParam := a.getLoggedInUserId(r)
			next.ServeHTTP(w, a.setLoggedInUserId(userParam, r))
		},
	)
}

func (a *Middleware) EnsureUser(next http.Handler) http.Handler {
	a.EnsureReasonableDefaults()
	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			userParam := a.getLoggedInUserId(r)
			if userParam == "" {
				// Redirect to a login if user not logged in
				redirUrl := ""
				if a.GetRedirURL != nil {
					redirUrl = a.GetRedirURL(r)
				}
				if redirUrl != "" {
					http.Redirect(w, r, redirUrl, http.StatusFound)
				} else {
					// otherwise a 401
					http.Error(w, "Login Required", http.StatusUnauthorized)
				}
				return
			}
			// set the logged in user ID as the request scoped variable
			next.ServeHTTP(w, a.setLoggedInUserId(userParam, r))
		},
	)
}

// Gets the logged in user from the session first, falling back to the auth
// token cookie.
func (a *Middleware) getLoggedInUserId(r *http.Request) string {
	if a.SessionGetter != nil {
		if out, ok := a.SessionGetter(r, a.UserParamName).(string); ok && out != "" {
			return out
		}
	}

	if a.VerifyToken == nil || a.AuthTokenCookieName == "" {
		return ""
	}

	for _, cookie := range r.Cookies() {
		if cookie.Name != a.AuthTokenCookieName || len(cookie.Value) == 0 {
			continue
		}
		loggedInUserId, err := a.VerifyToken(cookie.Value)
		if err != nil {
			slog.Warn("error verifying auth token", "error", err)
			continue
		}
		if loggedInUserId != "" {
			return loggedInUserId
		}
	}
	return ""
}

// Set the logged in user id into the request's variable set
// This will make it available to all other handlers downstream
func (a *Middleware) setLoggedInUserId(userId string, r *http.Request) *http.Request {
	contextWithUser := context.WithValue(r.Context(), userParamNameKey(a.UserParamName), userId)
	return r.WithContext(contextWithUser)
}
