package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/rps/internal/ir"
)

func digestWithFirstByte(b byte) ir.Digest {
	var d ir.Digest
	d[0] = b
	d[31] = 0xff
	return d
}

func TestDecideWinner_AllPairs(t *testing.T) {
	tests := []struct {
		creator, joiner byte
		want            ir.Outcome
	}{
		{0, 0, ir.OutcomeTie},
		{0, 1, ir.OutcomeJoinerWins},
		{0, 2, ir.OutcomeCreatorWins},
		{1, 0, ir.OutcomeCreatorWins},
		{1, 1, ir.OutcomeTie},
		{1, 2, ir.OutcomeJoinerWins},
		{2, 0, ir.OutcomeJoinerWins},
		{2, 1, ir.OutcomeCreatorWins},
		{2, 2, ir.OutcomeTie},
	}

	for _, tt := range tests {
		got := DecideWinner(digestWithFirstByte(tt.creator), digestWithFirstByte(tt.joiner))
		assert.Equal(t, tt.want, got, "creator=%d joiner=%d", tt.creator, tt.joiner)
	}
}

func TestDecideWinner_UsesFirstByteModThree(t *testing.T) {
	// 228 % 3 == 0, 43 % 3 == 1, 255 % 3 == 0
	assert.Equal(t, ir.OutcomeJoinerWins, DecideWinner(digestWithFirstByte(228), digestWithFirstByte(43)))
	assert.Equal(t, ir.OutcomeTie, DecideWinner(digestWithFirstByte(255), digestWithFirstByte(3)))
	assert.Equal(t, ir.OutcomeCreatorWins, DecideWinner(digestWithFirstByte(4), digestWithFirstByte(3)))
}

func TestDecideWinner_RealCommitments(t *testing.T) {
	// rock/"s1" -> 0xe4 (0), scissors/"s2" -> 0x2b (1)
	creator := ir.Commitment(ir.Rock, []byte("s1"))
	joiner := ir.Commitment(ir.Scissors, []byte("s2"))

	assert.Equal(t, byte(0xe4), creator[0])
	assert.Equal(t, byte(0x2b), joiner[0])
	assert.Equal(t, ir.OutcomeJoinerWins, DecideWinner(creator, joiner))
}
