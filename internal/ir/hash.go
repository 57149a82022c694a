package ir

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for derived identifiers.
// Version suffix enables future algorithm migration.
const (
	DomainGame  = "rps/game/v1"
	DomainEvent = "rps/event/v1"
)

// EscrowPrefix namespaces escrow accounts in the ledger so they cannot
// collide with player identities.
const EscrowPrefix = "escrow/"

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte (0x00) separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DeriveGameKey computes the address of the game opened by creator with the
// given wager: SHA256(domain 0x00 creator 0x00 wager_le64).
func DeriveGameKey(creator Identity, wager uint64) GameKey {
	var le [8]byte
	binary.LittleEndian.PutUint64(le[:], wager)

	data := make([]byte, 0, len(creator)+1+len(le))
	data = append(data, creator...)
	data = append(data, 0x00)
	data = append(data, le[:]...)
	return GameKey(hashWithDomain(DomainGame, data))
}

// EscrowAccount is the ledger account holding a game's wagers.
func EscrowAccount(key GameKey) string {
	return EscrowPrefix + string(key)
}

// Commitment computes SHA256(move_byte || salt). The salt is never stored.
func Commitment(move Move, salt []byte) Digest {
	h := sha256.New()
	h.Write([]byte{byte(move)})
	h.Write(salt)
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// VerifyCommitment reports whether (move, salt) opens digest.
// It is informational: the outcome never depends on it.
func VerifyCommitment(digest Digest, move Move, salt []byte) bool {
	if digest.IsZero() {
		return false
	}
	want := Commitment(move, salt)
	return subtle.ConstantTimeCompare(want[:], digest[:]) == 1
}

// EventID computes the content-addressed ID of an event.
// Caller and result are excluded: the ID names what was asked, not who
// asked or what came of it.
func EventID(flowToken string, key GameKey, action string, args IRObject, seq int64) (string, error) {
	obj := IRObject{
		"flow_token": IRString(flowToken),
		"game_key":   IRString(string(key)),
		"action":     IRString(action),
		"args":       args,
		"seq":        IRInt(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainEvent, canonical), nil
}

// MustEventID is like EventID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustEventID(flowToken string, key GameKey, action string, args IRObject, seq int64) string {
	id, err := EventID(flowToken, key, action, args, seq)
	if err != nil {
		panic(err)
	}
	return id
}
