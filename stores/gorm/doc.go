// Package gorm provides a GORM-based implementation of the whisper
// UserStore. It supports any database that GORM supports (PostgreSQL,
// MySQL, SQLite, etc.) and is the backend intended for production
// deployments.
//
// # Database Schema
//
// The package auto-migrates a single table:
//   - users: accounts with unique indexes on username and google_id
//
// The unique index on google_id together with an ON CONFLICT upsert makes
// FindOrCreateByGoogleID atomic under concurrent first-time logins.
//
// # Usage
//
//	db, _ := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
//	store, _ := gormstore.NewUserStore(db)
package gorm
