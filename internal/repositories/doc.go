// Package repositories implements SQLite persistence for the client's local state.
//
// Key Implementations:
//   - [SessionRepository] : The single cached user session (one row, replaced on every write)
//   - [CredentialRepository] : Identity provider tokens keyed by uid
//   - [TransferRepository] : Local job history keyed by id and client id
//
// Schemas live in shared/sql and are applied by [shared.RunMigrations].
package repositories
