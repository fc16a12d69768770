// Package gae provides a Google Cloud Datastore implementation of the
// whisper UserStore. It is designed for deployment on Google Cloud Platform
// and supports isolation through Datastore namespaces.
//
// # Datastore Kinds
//
// The package uses the following Datastore kinds:
//   - User: user accounts, keyed by user ID
//   - Username: username -> user ID reservations (uniqueness)
//   - GoogleID: Google subject -> user ID mappings (uniqueness)
//
// Username and GoogleID mapping entities are written in the same
// transaction as the User entity, which gives CreateUser its duplicate
// detection and FindOrCreateByGoogleID its atomicity.
//
// # Usage
//
//	client, _ := datastore.NewClient(ctx, projectID)
//	store := gae.NewUserStore(client, "") // default namespace
package gae
