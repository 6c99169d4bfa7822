package vote

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var defendant = Target{ChatID: "chan1", UserID: "user9", Name: "Boris"}

func TestStartKeysByChatAndTarget(t *testing.T) {
	tr := NewTracker(5)
	id, gen := tr.Start(defendant)

	assert.Equal(t, ID("chan1_user9"), id)
	assert.NotEmpty(t, gen.String())

	tally, ok := tr.Tally(id)
	require.True(t, ok)
	assert.Equal(t, Tally{}, tally)
	assert.Equal(t, 1, tr.Len())
}

func TestCastOnUnknownVoteExpires(t *testing.T) {
	tr := NewTracker(2)
	res := tr.Cast("nope_nope", "voter1", Punish)
	assert.Equal(t, Expired, res.Outcome)
	assert.Equal(t, 0, tr.Len())
}

func TestDuplicateBallotIsIdempotent(t *testing.T) {
	tr := NewTracker(3)
	id, _ := tr.Start(defendant)

	require.Equal(t, Registered, tr.Cast(id, "voter1", Punish).Outcome)
	res := tr.Cast(id, "voter1", Punish)

	assert.Equal(t, Duplicate, res.Outcome)
	assert.Equal(t, Tally{Punish: 1}, res.Tally)
	tally, _ := tr.Tally(id)
	assert.Equal(t, Tally{Punish: 1}, tally)
}

func TestSwitchMovesBallot(t *testing.T) {
	// votes_required=2, punish then forgive from the same voter.
	tr := NewTracker(2)
	id, _ := tr.Start(defendant)

	require.Equal(t, Registered, tr.Cast(id, "voter1", Punish).Outcome)
	res := tr.Cast(id, "voter1", Forgive)

	assert.Equal(t, Switched, res.Outcome)
	assert.True(t, res.Switched)
	assert.Equal(t, Tally{Punish: 0, Forgive: 1}, res.Tally)

	side, ok := tr.Voted(id, "voter1")
	require.True(t, ok)
	assert.Equal(t, Forgive, side)
}

func TestThresholdBoundary(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		t.Run(fmt.Sprintf("threshold=%d", n), func(t *testing.T) {
			tr := NewTracker(n)
			id, _ := tr.Start(defendant)

			for i := 1; i < n; i++ {
				res := tr.Cast(id, fmt.Sprintf("v%d", i), Punish)
				require.Equal(t, Registered, res.Outcome)
			}
			tally, ok := tr.Tally(id)
			require.True(t, ok, "vote must stay open at N-1 ballots")
			assert.Equal(t, n-1, tally.Punish)

			res := tr.Cast(id, "last", Punish)
			assert.Equal(t, ResolvedPunish, res.Outcome)
			assert.Equal(t, defendant, res.Target)
			assert.Equal(t, n, res.Tally.Punish)
		})
	}
}

func TestForgivenessResolves(t *testing.T) {
	tr := NewTracker(2)
	id, _ := tr.Start(defendant)

	tr.Cast(id, "a", Forgive)
	res := tr.Cast(id, "b", Forgive)

	assert.Equal(t, ResolvedForgive, res.Outcome)
	assert.Equal(t, defendant, res.Target)
}

func TestSwitchCanResolve(t *testing.T) {
	tr := NewTracker(2)
	id, _ := tr.Start(defendant)

	tr.Cast(id, "a", Punish)
	tr.Cast(id, "b", Forgive)
	res := tr.Cast(id, "b", Punish)

	assert.Equal(t, ResolvedPunish, res.Outcome)
	assert.True(t, res.Switched)
	assert.Equal(t, Tally{Punish: 2}, res.Tally)
}

func TestResolvedVoteIsUnreachable(t *testing.T) {
	tr := NewTracker(1)
	id, _ := tr.Start(defendant)

	require.Equal(t, ResolvedPunish, tr.Cast(id, "a", Punish).Outcome)

	for _, side := range []Side{Punish, Forgive} {
		assert.Equal(t, Expired, tr.Cast(id, "b", side).Outcome)
	}
	_, ok := tr.Tally(id)
	assert.False(t, ok)
	_, voted := tr.Voted(id, "a")
	assert.False(t, voted)
	assert.Equal(t, 0, tr.Len())
}

func TestVotedIgnoresClosedRecord(t *testing.T) {
	tr := NewTracker(2)
	id, _ := tr.Start(defendant)
	tr.Cast(id, "a", Punish)

	// Hold a reference to the record, then resolve it.
	rec := tr.lookup(id)
	require.NotNil(t, rec)
	require.Equal(t, ResolvedPunish, tr.Cast(id, "b", Punish).Outcome)

	// Put the closed record back to simulate a lookup racing the resolution.
	tr.mu.Lock()
	tr.votes[id] = rec
	tr.mu.Unlock()

	_, voted := tr.Voted(id, "a")
	assert.False(t, voted)
	_, ok := tr.Tally(id)
	assert.False(t, ok)
	_, ok = tr.Target(id)
	assert.False(t, ok)
}

func TestTargetOfOpenVote(t *testing.T) {
	tr := NewTracker(2)
	id, _ := tr.Start(defendant)

	got, ok := tr.Target(id)
	require.True(t, ok)
	assert.Equal(t, defendant, got)

	_, ok = tr.Target("chan1_nobody")
	assert.False(t, ok)
}

func TestRestartResetsProgress(t *testing.T) {
	tr := NewTracker(5)
	id, first := tr.Start(defendant)
	tr.Cast(id, "a", Punish)
	tr.Cast(id, "b", Forgive)

	again, second := tr.Start(defendant)

	assert.Equal(t, id, again)
	assert.NotEqual(t, first, second)
	tally, ok := tr.Tally(id)
	require.True(t, ok)
	assert.Equal(t, Tally{}, tally)
	_, voted := tr.Voted(id, "a")
	assert.False(t, voted)
	assert.Equal(t, 1, tr.Len())
}

func TestVotesAreIsolatedPerChat(t *testing.T) {
	tr := NewTracker(2)
	a, _ := tr.Start(Target{ChatID: "c1", UserID: "u"})
	b, _ := tr.Start(Target{ChatID: "c2", UserID: "u"})

	tr.Cast(a, "x", Punish)
	tr.Cast(a, "y", Punish)

	_, ok := tr.Tally(a)
	assert.False(t, ok)
	tally, ok := tr.Tally(b)
	require.True(t, ok)
	assert.Equal(t, Tally{}, tally)
}

func TestConcurrentBallotsResolveOnce(t *testing.T) {
	defer goleak.VerifyNone(t)

	const voters = 64
	tr := NewTracker(10)
	id, _ := tr.Start(defendant)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		resolved int
		expired  int
	)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			side := Punish
			if i%3 == 0 {
				side = Forgive
			}
			res := tr.Cast(id, fmt.Sprintf("v%d", i), side)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case res.Outcome.Resolved():
				resolved++
			case res.Outcome == Expired:
				expired++
			}
			if res.Outcome != Expired {
				assert.LessOrEqual(t, res.Tally.Punish, 10)
				assert.LessOrEqual(t, res.Tally.Forgive, 10)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, resolved)
	assert.Greater(t, expired, 0)
	assert.Equal(t, 0, tr.Len())
}

func TestBallotSetsStayDisjoint(t *testing.T) {
	tr := NewTracker(100)
	id, _ := tr.Start(defendant)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				side := Punish
				if (i+j)%2 == 0 {
					side = Forgive
				}
				tr.Cast(id, fmt.Sprintf("v%d", j%5), side)
			}
		}(i)
	}
	wg.Wait()

	tally, ok := tr.Tally(id)
	require.True(t, ok)
	assert.Equal(t, 5, tally.Punish+tally.Forgive)
}

func TestSideOther(t *testing.T) {
	assert.Equal(t, Forgive, Punish.Other())
	assert.Equal(t, Punish, Forgive.Other())
	assert.True(t, Punish.Valid())
	assert.False(t, Side("gulag").Valid())
}
