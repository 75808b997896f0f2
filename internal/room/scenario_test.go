package room

import (
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avalonserve/avalond/internal/randutil"
	"github.com/avalonserve/avalond/internal/rules"
)

// Five players, leader sends two on the mission, everyone approves, one team
// member sabotages: Evil takes round 1.
func TestScenarioApprovedMissionWithOneFail(t *testing.T) {
	r, members := newTestRoom(t, 5, Config{})
	startGame(t, r, members, 2)

	team := []string{members[0].caller.ID, members[1].caller.ID}
	require.NoError(t, r.DraftTeam(members[0].caller, team))
	require.NoError(t, r.ConfirmTeam(members[0].caller))

	for _, m := range members {
		require.NoError(t, r.VoteTeam(m.caller, true))
	}
	require.Equal(t, PhaseMissionVote, r.Phase(), "5 approve / 0 reject opens the mission vote")

	require.NoError(t, r.VoteMission(members[0].caller, true))
	require.NoError(t, r.VoteMission(members[1].caller, false))

	snap := r.Snapshot()
	assert.Equal(t, PhaseTeamSelection, snap.Phase)
	assert.Equal(t, 2, snap.Round)
	assert.Equal(t, 0, snap.MissionVotes, "mission tally cleared for the next round")
	assert.Equal(t, 1, snap.AssassinWins)
	assert.Equal(t, 0, snap.GoodWins)
	assert.Equal(t, members[1].caller.ID, snap.LeaderID, "leadership rotates in join order")

	require.Len(t, snap.Results, 1)
	res := snap.Results[0]
	assert.Equal(t, 1, res.Round)
	assert.Equal(t, rules.WinnerEvil, res.Winner)
	assert.Equal(t, 1, res.SuccessVotes)
	assert.Equal(t, 1, res.FailVotes)
	assert.False(t, res.TeamRejected)
}

// Two approvals against three rejections: the team falls, the round resolves
// immediately for Evil and leadership moves on.
func TestScenarioRejectedTeam(t *testing.T) {
	r, members := newTestRoom(t, 5, Config{})
	startGame(t, r, members, 2)

	team := []string{members[3].caller.ID, members[4].caller.ID}
	require.NoError(t, r.DraftTeam(members[0].caller, team))
	require.NoError(t, r.ConfirmTeam(members[0].caller))

	require.NoError(t, r.VoteTeam(members[0].caller, true))
	require.NoError(t, r.VoteTeam(members[1].caller, true))
	require.NoError(t, r.VoteTeam(members[2].caller, false))
	require.NoError(t, r.VoteTeam(members[3].caller, false))
	require.NoError(t, r.VoteTeam(members[4].caller, false))

	snap := r.Snapshot()
	assert.Equal(t, PhaseTeamSelection, snap.Phase)
	assert.Equal(t, 2, snap.Round)
	assert.Equal(t, members[1].caller.ID, snap.LeaderID)
	assert.Empty(t, snap.Team, "draft and team cleared after rejection")
	assert.Equal(t, 1, snap.AssassinWins)

	require.Len(t, snap.Results, 1)
	assert.Equal(t, 1, snap.Results[0].Round)
	assert.Equal(t, rules.WinnerEvil, snap.Results[0].Winner)
	assert.True(t, snap.Results[0].TeamRejected)

	// Every player saw the round resolution.
	for _, m := range members {
		assert.Equal(t, 1, m.sender.count(EventMissionResult))
	}
}

// A tied team vote rejects: with an even roster, 2 approve / 2 reject falls.
func TestScenarioTeamVoteTieRejects(t *testing.T) {
	r, members := newTestRoom(t, 4, Config{})
	startGame(t, r, members, 1)

	team := []string{members[0].caller.ID, members[1].caller.ID}
	require.NoError(t, r.DraftTeam(members[0].caller, team))
	require.NoError(t, r.ConfirmTeam(members[0].caller))

	require.NoError(t, r.VoteTeam(members[0].caller, true))
	require.NoError(t, r.VoteTeam(members[1].caller, true))
	require.NoError(t, r.VoteTeam(members[2].caller, false))
	require.NoError(t, r.VoteTeam(members[3].caller, false))

	snap := r.Snapshot()
	require.Len(t, snap.Results, 1)
	assert.True(t, snap.Results[0].TeamRejected)
	assert.Equal(t, rules.WinnerEvil, snap.Results[0].Winner)
}

// A disconnected player reconnecting mid mission vote keeps its pending vote
// eligibility; nobody else's recorded vote moves.
func TestScenarioReconnectMidMissionVote(t *testing.T) {
	r, members := newTestRoom(t, 5, Config{})
	startGame(t, r, members, 2)

	team := []string{members[0].caller.ID, members[1].caller.ID}
	require.NoError(t, r.DraftTeam(members[0].caller, team))
	require.NoError(t, r.ConfirmTeam(members[0].caller))
	for _, m := range members {
		require.NoError(t, r.VoteTeam(m.caller, true))
	}
	require.Equal(t, PhaseMissionVote, r.Phase())

	// First team member votes; the second drops before voting.
	require.NoError(t, r.VoteMission(members[0].caller, true))
	r.Detach(members[1].caller)
	assert.Equal(t, 5, r.RosterSize())
	assert.False(t, r.Snapshot().Players[1].Connected)

	// Reconnect with the durable identity.
	s2 := &fakeSender{}
	id, gen, reconnected, err := r.Join(members[1].caller.ID, "bruno", "", s2)
	require.NoError(t, err)
	require.True(t, reconnected)
	assert.Equal(t, members[1].caller.ID, id)
	assert.Greater(t, gen, members[1].caller.Gen)

	// The fresh connection got a state replay and its private role back.
	assert.GreaterOrEqual(t, s2.count(EventState), 1)
	assert.Equal(t, 1, s2.count(EventYourRole))

	// The superseded connection can no longer act.
	err = r.VoteMission(members[1].caller, false)
	assert.ErrorIs(t, err, ErrStaleConnection)

	snap := r.Snapshot()
	assert.Equal(t, PhaseMissionVote, snap.Phase)
	assert.Equal(t, 1, snap.MissionVotes, "the recorded vote is untouched")

	// The new connection finishes the mission.
	require.NoError(t, r.VoteMission(Caller{ID: id, Gen: gen}, true))
	snap = r.Snapshot()
	assert.Equal(t, 1, snap.GoodWins)
	assert.Equal(t, 2, snap.Round)
}

// Win counters move by exactly one per resolved round, and the round number
// strictly increases by one per resolution.
func TestRoundAndCounterMonotonicity(t *testing.T) {
	r, members := newTestRoom(t, 5, Config{})
	startGame(t, r, members, 2)

	prev := r.Snapshot()
	for prev.Phase != PhaseGameOver {
		leader := currentLeader(t, r, members)
		teamForRound(t, r, leader, members)

		// Alternate approved-and-successful rounds with rejected teams.
		approve := prev.Round%2 == 1
		for _, m := range members {
			require.NoError(t, r.VoteTeam(m.caller, approve))
		}
		if approve {
			for _, id := range r.Snapshot().Team {
				if r.Phase() != PhaseMissionVote {
					break
				}
				for _, m := range members {
					if m.caller.ID == id {
						require.NoError(t, r.VoteMission(m.caller, true))
					}
				}
			}
		}

		snap := r.Snapshot()
		assert.Equal(t, prev.Round+1, snap.Round, "round advances by exactly one")
		delta := (snap.GoodWins - prev.GoodWins) + (snap.AssassinWins - prev.AssassinWins)
		assert.Equal(t, 1, delta, "exactly one counter moved by one")
		assert.Len(t, snap.Results, len(prev.Results)+1)
		prev = snap
	}

	// Bounded termination: at most five resolved rounds.
	assert.LessOrEqual(t, len(prev.Results), 5)
	assert.NotEmpty(t, prev.Winner)
	assert.Len(t, prev.Roles, 5, "roles revealed at game over")
}

// Once a round resolves, further votes for it bounce off the new phase and
// leave state unchanged.
func TestRoundResolvedExactlyOnce(t *testing.T) {
	r, members := newTestRoom(t, 5, Config{})
	startGame(t, r, members, 2)

	team := []string{members[0].caller.ID, members[1].caller.ID}
	require.NoError(t, r.DraftTeam(members[0].caller, team))
	require.NoError(t, r.ConfirmTeam(members[0].caller))
	for _, m := range members {
		require.NoError(t, r.VoteTeam(m.caller, true))
	}
	require.NoError(t, r.VoteMission(members[0].caller, true))
	require.NoError(t, r.VoteMission(members[1].caller, true))

	before := r.Snapshot()
	require.Len(t, before.Results, 1)

	err := r.VoteMission(members[0].caller, false)
	require.Error(t, err)

	after := r.Snapshot()
	assert.Equal(t, before.Results, after.Results)
	assert.Equal(t, before.Round, after.Round)
	assert.Equal(t, before.GoodWins, after.GoodWins)
	assert.Equal(t, before.AssassinWins, after.AssassinWins)
}

func TestAbandonedUsesDisconnectTimes(t *testing.T) {
	clock := quartz.NewMock(t)
	r := New("QQQQQQ", Config{}, randutil.New(7), clock, testLogger())

	s := &fakeSender{}
	id, gen, _, err := r.Join("", "solo", "", s)
	require.NoError(t, err)

	assert.False(t, r.Abandoned(clock.Now()), "connected player is not abandoned")

	r.Detach(Caller{ID: id, Gen: gen})
	cutoff := clock.Now()
	assert.False(t, r.Abandoned(cutoff.Add(-time.Minute)), "disconnect newer than cutoff")

	clock.Advance(10 * time.Minute)
	assert.True(t, r.Abandoned(clock.Now().Add(-time.Minute)))
}
