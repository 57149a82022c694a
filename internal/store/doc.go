// Package store provides SQLite-backed durable storage for rps games.
//
// The store holds:
//   - Games: one row per game record, keyed by the derived game key
//   - Balances: ledger balances, escrow accounts included
//   - Events: an append-only log of every successful operation
//   - Transfers: every ledger movement, linked to the event that caused it
//
// All writes go through Update, which runs a callback inside a single
// transaction. A game transition, its ledger movements and its log entries
// either all commit or all roll back.
//
// # Ordering
//
// All ordering uses seq INTEGER (logical clock), never timestamps. Queries
// order by seq ASC (and id ASC for transfers) so reads are deterministic.
//
// # Secrets
//
// Commitments are stored as 32-byte BLOBs (NULL while unset). Moves and
// salts are never written anywhere.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
