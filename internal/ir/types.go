package ir

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Identity is the opaque, already-authenticated identity of a caller.
// The identity layer that proves it lives outside this module.
type Identity string

// GameKey addresses a game record. It is derived from the creator and the
// wager (see DeriveGameKey), so one creator can hold one game per wager.
type GameKey string

// Move is a Rock-Paper-Scissors hand. Only 0, 1 and 2 are valid.
type Move uint8

const (
	Rock     Move = 0
	Paper    Move = 1
	Scissors Move = 2
)

// Valid reports whether m is one of Rock, Paper or Scissors.
func (m Move) Valid() bool {
	return m <= Scissors
}

func (m Move) String() string {
	switch m {
	case Rock:
		return "rock"
	case Paper:
		return "paper"
	case Scissors:
		return "scissors"
	default:
		return fmt.Sprintf("move(%d)", uint8(m))
	}
}

// ParseMove accepts "rock", "paper", "scissors" (any case) or "0", "1", "2".
func ParseMove(s string) (Move, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rock", "0":
		return Rock, nil
	case "paper", "1":
		return Paper, nil
	case "scissors", "2":
		return Scissors, nil
	}
	return 0, fmt.Errorf("invalid move %q: must be rock, paper or scissors", s)
}

// Status is the lifecycle state of a game. Transitions are linear:
// Open -> Committed -> Ended.
type Status string

const (
	StatusOpen      Status = "Open"
	StatusCommitted Status = "Committed"
	StatusEnded     Status = "Ended"
)

// Outcome is the resolved result of a game. Empty until the game has ended.
type Outcome string

const (
	OutcomeNone        Outcome = ""
	OutcomeCreatorWins Outcome = "CreatorWins"
	OutcomeJoinerWins  Outcome = "JoinerWins"
	OutcomeTie         Outcome = "Tie"
)

// Digest is a 32-byte move commitment. The all-zero value means "not set".
type Digest [32]byte

// IsZero reports whether d is the unset sentinel.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// Hex returns the lowercase hex encoding of d.
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest decodes a 64-character hex string.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("parse digest: %w", err)
	}
	if len(b) != len(d) {
		return d, fmt.Errorf("parse digest: want %d bytes, got %d", len(d), len(b))
	}
	copy(d[:], b)
	return d, nil
}

// GameRecord is the single persisted record of one game instance.
// Its escrow is the ledger account EscrowAccount(Key).
type GameRecord struct {
	Key               GameKey  `json:"game_key"`
	Creator           Identity `json:"creator"`
	Opponent          Identity `json:"opponent,omitempty"` // empty until Join
	CreatorCommitment Digest   `json:"-"`
	JoinerCommitment  Digest   `json:"-"`
	CreatorReady      bool     `json:"creator_ready"`
	JoinerReady       bool     `json:"joiner_ready"`
	Wager             uint64   `json:"wager"`
	Status            Status   `json:"status"`
	Outcome           Outcome  `json:"outcome,omitempty"`
	Seq               int64    `json:"seq"` // logical clock of the last mutation
}

// Role identifies which side of a game a caller is on.
type Role int

const (
	RoleNone Role = iota
	RoleCreator
	RoleJoiner
)

// RoleOf matches caller against the record's parties. An empty identity is
// never a party, so an unset opponent cannot be impersonated.
func (g GameRecord) RoleOf(caller Identity) Role {
	switch {
	case caller == "":
		return RoleNone
	case caller == g.Creator:
		return RoleCreator
	case g.Opponent != "" && caller == g.Opponent:
		return RoleJoiner
	default:
		return RoleNone
	}
}

// Event is one successful operation in the game log.
type Event struct {
	ID        string   `json:"id"` // content-addressed, see EventID
	Seq       int64    `json:"seq"`
	FlowToken string   `json:"flow_token"`
	GameKey   GameKey  `json:"game_key"`
	Action    string   `json:"action"`
	Caller    Identity `json:"caller"`
	Args      IRObject `json:"args"`
	Result    IRObject `json:"result"`
}

// Transfer is one ledger movement caused by an event.
type Transfer struct {
	EventSeq int64  `json:"event_seq"`
	From     string `json:"from"`
	To       string `json:"to"`
	Amount   uint64 `json:"amount"`
}

// Action URIs recorded in the event log.
const (
	ActionCreate   = "Game.create"
	ActionJoin     = "Game.join"
	ActionCommit   = "Game.commit"
	ActionFinalize = "Game.finalize"
	ActionFund     = "Ledger.fund"
	ActionGenesis  = "Ledger.genesis"
)
