// Package ir provides the canonical record types for the rps engine.
//
// This package contains type definitions and pure derivations only. All
// other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - amounts are uint64, JSON numbers int64
//   - Commitments are fixed 32-byte digests; the zero digest means unset
//   - Salts never appear in any persisted type
//   - All JSON tags use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps
package ir
