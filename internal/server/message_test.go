package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeamChoice(t *testing.T) {
	t.Parallel()

	approve, err := teamChoice(VoteApprove)
	require.NoError(t, err)
	assert.True(t, approve)

	approve, err = teamChoice(VoteReject)
	require.NoError(t, err)
	assert.False(t, approve)

	// Mission vocabulary is not valid for a team vote.
	_, err = teamChoice(VoteSuccess)
	assert.Error(t, err)
	_, err = teamChoice("")
	assert.Error(t, err)
}

func TestMissionChoice(t *testing.T) {
	t.Parallel()

	success, err := missionChoice(VoteSuccess)
	require.NoError(t, err)
	assert.True(t, success)

	success, err = missionChoice(VoteFail)
	require.NoError(t, err)
	assert.False(t, success)

	_, err = missionChoice(VoteApprove)
	assert.Error(t, err)
}
