// Package store provides persistent client-side state using SQLite.
//
// # Overview
//
// The assistant's browser client kept its bearer token and theme choice in
// local storage. This package is the terminal client's equivalent: a small
// key/value table of preferences.
//
// Well-known keys:
//
//   - KeyToken: bearer token returned by login
//   - KeyThemeMode: light, dark or system
//   - KeyLastConversation: conversation selected when the client last exited
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//
// Database file locations:
//
//   - Default: ~/.config/skillchat/skillchat.db (storage.path in the config)
//   - Testing: :memory: (in-memory database)
//
// # Testing
//
// Use NewMockStore() for unit tests, or NewSQLiteStore(":memory:") for
// integration tests with real SQLite.
package store
