// Package rules holds the pure game rules for the mission game: team sizing,
// role assignment and vote resolution. Nothing in here carries state or side
// effects; the room state machine is the only caller that mutates anything.
package rules

import (
	"errors"
	"fmt"

	rand "math/rand/v2"
)

const (
	// MinPlayers is the smallest viable roster.
	MinPlayers = 4
	// MaxPlayers is the largest supported roster.
	MaxPlayers = 10
	// Rounds is the number of missions in a full game.
	Rounds = 5
	// WinsNeeded is how many missions a side must take to win outright.
	WinsNeeded = 3
	// DefaultFailThreshold fails a mission on a single fail vote.
	DefaultFailThreshold = 1
)

var (
	ErrUnsupportedPlayerCount = errors.New("unsupported player count")
	ErrInvalidRound           = errors.New("round out of range")
	ErrInvalidAssassinCount   = errors.New("invalid assassin count")
)

// Role is a player's hidden allegiance, assigned once at game start.
type Role string

const (
	RoleGood     Role = "good"
	RoleAssassin Role = "assassin"
)

// Winner identifies the side that took a round (or the game).
type Winner string

const (
	WinnerGood Winner = "good"
	WinnerEvil Winner = "evil"
)

// teamSizes is keyed by roster size. Four players play the five-player
// schedule; there is no published table row for four.
var teamSizes = map[int][Rounds]int{
	4:  {2, 3, 2, 3, 3},
	5:  {2, 3, 2, 3, 3},
	6:  {2, 3, 4, 3, 4},
	7:  {2, 3, 3, 4, 4},
	8:  {3, 4, 4, 5, 5},
	9:  {3, 4, 4, 5, 5},
	10: {3, 4, 4, 5, 5},
}

// TeamSize returns the required mission team size for the given roster size
// and 1-based round number.
func TeamSize(playerCount, round int) (int, error) {
	sizes, ok := teamSizes[playerCount]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnsupportedPlayerCount, playerCount)
	}
	if round < 1 || round > Rounds {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRound, round)
	}
	return sizes[round-1], nil
}

// AssignRoles deals out hidden roles for a roster of the given size,
// selecting exactly assassinCount positions uniformly at random. The result
// is indexed by roster position (join order). Reproducible given a seeded
// rng.
func AssignRoles(rosterSize, assassinCount int, rng *rand.Rand) ([]Role, error) {
	if rosterSize < MinPlayers || rosterSize > MaxPlayers {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedPlayerCount, rosterSize)
	}
	if assassinCount < 1 || assassinCount >= rosterSize {
		return nil, fmt.Errorf("%w: %d assassins for %d players", ErrInvalidAssassinCount, assassinCount, rosterSize)
	}

	// Partial Fisher-Yates: the first assassinCount entries of a shuffled
	// index slice are a uniform k-subset.
	idx := make([]int, rosterSize)
	for i := range idx {
		idx[i] = i
	}
	for i := 0; i < assassinCount; i++ {
		j := i + rng.IntN(rosterSize-i)
		idx[i], idx[j] = idx[j], idx[i]
	}

	roles := make([]Role, rosterSize)
	for i := range roles {
		roles[i] = RoleGood
	}
	for _, pos := range idx[:assassinCount] {
		roles[pos] = RoleAssassin
	}
	return roles, nil
}

// ResolveTeamVote reports whether a proposed team was approved. Approval
// requires a strict majority; ties reject.
func ResolveTeamVote(approve, reject int) bool {
	return approve > reject
}

// ResolveMission returns the side that won a mission given the number of
// fail votes and the configured fail threshold. A threshold below one is
// treated as one.
func ResolveMission(failVotes, threshold int) Winner {
	if threshold < 1 {
		threshold = DefaultFailThreshold
	}
	if failVotes >= threshold {
		return WinnerEvil
	}
	return WinnerGood
}

// GameWinner evaluates the end-of-game predicate after a round resolution.
// It returns the winning side and true once the game is over: three wins for
// either side, or round exhaustion, in which case stalledWinner takes it.
func GameWinner(goodWins, assassinWins, nextRound int, stalledWinner Winner) (Winner, bool) {
	switch {
	case assassinWins >= WinsNeeded:
		return WinnerEvil, true
	case goodWins >= WinsNeeded:
		return WinnerGood, true
	case nextRound > Rounds:
		return stalledWinner, true
	}
	return "", false
}
