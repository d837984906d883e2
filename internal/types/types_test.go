package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from ProjectStatus
		to   ProjectStatus
		want bool
	}{
		{StatusPending, StatusVetting, true},
		{StatusPending, StatusRejected, true},
		{StatusVetting, StatusApproved, true},
		{StatusVetting, StatusRejected, true},
		{StatusPending, StatusApproved, false},
		{StatusVetting, StatusPending, false},
		{StatusApproved, StatusRejected, false},
		{StatusApproved, StatusVetting, false},
		{StatusRejected, StatusVetting, false},
		{StatusRejected, StatusPending, false},
		{StatusPending, StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestProjectStatus_Votable(t *testing.T) {
	assert.False(t, StatusPending.Votable())
	assert.True(t, StatusVetting.Votable())
	assert.True(t, StatusApproved.Votable())
	assert.False(t, StatusRejected.Votable())
}

func TestProjectStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusVetting.Terminal())
	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
}

func TestParseVoteType(t *testing.T) {
	v, err := ParseVoteType(" BULL ")
	require.NoError(t, err)
	assert.Equal(t, VoteBull, v)

	v, err = ParseVoteType("bear")
	require.NoError(t, err)
	assert.Equal(t, VoteBear, v)
	assert.Equal(t, VoteBull, v.Opposite())

	_, err = ParseVoteType("moon")
	assert.Error(t, err)
}

func TestParseProjectStatus(t *testing.T) {
	s, err := ParseProjectStatus("Vetting")
	require.NoError(t, err)
	assert.Equal(t, StatusVetting, s)

	_, err = ParseProjectStatus("archived")
	assert.Error(t, err)
}

func TestNormalizeAddress(t *testing.T) {
	assert.Equal(t, "0xabcdef", NormalizeAddress("  0xABCdef "))
}
