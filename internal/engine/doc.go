// Package engine implements the Rock-Paper-Scissors game state machine.
//
// A game moves through three states:
//
//	Open --Join--> Committed --Finalize x2--> Ended
//
// Create opens a game and escrows the creator's wager. Join fills the
// opponent slot and escrows the matching wager. Each party then commits a
// digest of (move, salt) and calls Finalize. The second Finalize resolves
// the outcome from the two digests and pays out the escrow, all inside the
// same store transaction that marks the game Ended.
//
// Every operation is one store.Update transaction: the game record, the
// ledger movements and the event log entry commit together or not at all.
// A rejected operation returns a *GameError and leaves no trace.
//
// Operations on one Engine are serialized by a mutex. Seq values come from
// a logical Clock and are consumed only by committed operations, so the
// event log has no gaps.
package engine
