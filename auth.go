package whisper

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Session variable names
const (
	SessionUserIDVar      = "loggedInUserId"
	SessionDisplayNameVar = "displayName"
)

// SessionUser is the minimal projection of a User carried in the session:
// just enough identity to resolve the account and render a greeting.
type SessionUser struct {
	ID          string
	DisplayName string
}

// Auth owns the session side of authentication: it issues and destroys the
// server-side session (scs) plus a signed JWT auth-token cookie, and exposes
// the Middleware that rehydrates the logged-in user on every request.
type Auth struct {
	Session    *scs.SessionManager
	Middleware Middleware

	// Optional name used as a prefix for cookie/session variable names
	AppName string

	// Name of the cookie where the signed auth token is stored
	AuthTokenCookieName string

	// JWT related fields
	JwtIssuer    string
	JWTSecretKey string

	// How long is a session valid for.  Defaults to 1 day
	SessionTimeoutInSeconds int
}

// NewAuth creates an Auth with a fresh session manager and reasonable
// defaults wired in.
func NewAuth(appName, jwtSecretKey string) *Auth {
	out := &Auth{AppName: appName, JWTSecretKey: jwtSecretKey}
	out.EnsureDefaults()
	return out
}

func (a *Auth) EnsureDefaults() *Auth {
	if a.AppName == "" {
		a.AppName = "Whisper"
	}
	if a.SessionTimeoutInSeconds <= 0 {
		a.SessionTimeoutInSeconds = 86400
	}
	if a.JwtIssuer == "" {
		a.JwtIssuer = fmt.Sprintf("%s-Issuer", a.AppName)
	}
	if a.JWTSecretKey == "" {
		a.JWTSecretKey = strings.TrimSpace(os.Getenv("WHISPER_SESSION_SECRET"))
		if a.JWTSecretKey == "" {
			a.JWTSecretKey = "MyTestJWTSecretKey123456"
		}
	}
	if a.AuthTokenCookieName == "" {
		a.AuthTokenCookieName = fmt.Sprintf("%sAuthToken", a.AppName)
	}
	if a.Session == nil {
		a.Session = scs.New()
		a.Session.Lifetime = time.Second * time.Duration(a.SessionTimeoutInSeconds)
		a.Session.Cookie.HttpOnly = true
	}
	if a.Middleware.SessionGetter == nil {
		a.Middleware.SessionGetter = func(r *http.Request, param string) any {
			return a.Session.Get(r.Context(), param)
		}
	}
	if a.Middleware.AuthTokenCookieName == "" {
		a.Middleware.AuthTokenCookieName = a.AuthTokenCookieName
	}
	if a.Middleware.VerifyToken == nil {
		a.Middleware.VerifyToken = a.verifyJWT
	}
	return a
}

// LoggedInUser returns the session identity attached to this request, if
// any. The second return value is false for anonymous requests.
func (a *Auth) LoggedInUser(r *http.Request) (SessionUser, bool) {
	userId := a.Middleware.GetLoggedInUserId(r)
	if userId == "" {
		return SessionUser{}, false
	}
	displayName, _ := a.Session.Get(r.Context(), SessionDisplayNameVar).(string)
	return SessionUser{ID: userId, DisplayName: displayName}, true
}

// SetLoggedInUser transitions the session from Anonymous to Authenticated:
// the user identity is serialized into the session store and a signed auth
// token cookie is set so logins survive a session-store restart.
func (a *Auth) SetLoggedInUser(user *User, w http.ResponseWriter, r *http.Request) {
	a.EnsureDefaults()

	// Renew the session token on privilege change
	if err := a.Session.RenewToken(r.Context()); err != nil {
		slog.Warn("error renewing session token", "err", err)
	}
	a.Session.Put(r.Context(), SessionUserIDVar, user.ID)
	a.Session.Put(r.Context(), SessionDisplayNameVar, user.Display())

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": user.ID,
		"iss": a.JwtIssuer,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)).Unix(),
	})
	tokenString, err := token.SignedString([]byte(a.JWTSecretKey))
	if err != nil {
		slog.Info("error signing token", "err", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     a.AuthTokenCookieName,
		Value:    tokenString,
		Path:     "/",
		HttpOnly: true,
		Expires:  time.Now().Add(time.Second * time.Duration(a.SessionTimeoutInSeconds)),
		MaxAge:   a.SessionTimeoutInSeconds,
	})
}

// ClearLoggedInUser transitions Authenticated -> Anonymous. Session
// destruction failures are returned so the caller can log them; cookies are
// expired regardless so a later request never resumes the old identity.
func (a *Auth) ClearLoggedInUser(w http.ResponseWriter, r *http.Request) error {
	a.EnsureDefaults()
	err := a.Session.Destroy(r.Context())
	http.SetCookie(w, &http.Cookie{
		Name:    a.AuthTokenCookieName,
		Path:    "/",
		MaxAge:  -1,
		Expires: time.Now(),
	})
	return err
}

func (a *Auth) verifyJWT(tokenString string) (loggedInUserId string, err error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(a.JWTSecretKey), nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || claims == nil {
		return "", fmt.Errorf("claims is not a map")
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return "", err
	}
	if sub == "" {
		return "", fmt.Errorf("subject not found")
	}
	return sub, nil
}
