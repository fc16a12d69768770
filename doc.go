// Package whisper implements the authentication and domain layer of the
// Whisper web application: users register with a username/password or sign
// in with Google, and may post a single secret that is listed alongside
// everyone else's.
//
// # Architecture
//
// User: the single entity. A user is reachable through local credentials,
// a Google identity, or both, and optionally carries one secret.
//
// UserStore: the persistence contract. Backends live under stores/
// (filesystem), stores/gorm (SQL via GORM) and stores/gae (Cloud
// Datastore).
//
// LocalAuth: username/password signup and login handlers. The oauth2
// subpackage provides the Google three-legged flow. Both hand a verified
// *User to a HandleUserFunc, which the app uses to establish the session.
//
// Auth: the session side. It wraps an scs.SessionManager, issues a signed
// JWT auth-token cookie alongside the session, and exposes Middleware for
// rehydrating the identity on each request.
//
// # Basic Usage
//
//	store := stores.NewFSUserStore("/path/to/storage")
//	auth := whisper.NewAuth("Whisper", jwtSecret)
//	local := &whisper.LocalAuth{
//	    Store: store,
//	    HandleUser: func(authtype, provider string, user *whisper.User, w http.ResponseWriter, r *http.Request) {
//	        auth.SetLoggedInUser(user, w, r)
//	        http.Redirect(w, r, "/secrets", http.StatusFound)
//	    },
//	}
//
// The web package ties these to routes and views; cmd/server wires the
// whole application from environment configuration.
package whisper
