// Package store is the SQLite-backed local state of the backoffice CLI.
//
// It holds two things:
//   - settings: a key/value table; the session key lives under
//     SessionKeySetting and is what "logged in" means across runs
//   - action_log: an append-only journal of finished row actions,
//     including partial failures of compound actions
//
// Business records are never stored here. The backend is the only source
// of truth for them.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Journal queries are ordered by seq ASC so history output is stable.
package store
