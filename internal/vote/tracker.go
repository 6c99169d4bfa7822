// Package vote tracks open moderation votes in memory.
//
// A vote is opened for a (chat, target) pair and collects ballots for one of
// two sides. The first side to reach the threshold resolves the vote, which
// removes it from the tracker for good.
package vote

import (
	"sync"

	"github.com/google/uuid"
)

type Side string

const (
	Punish  Side = "punish"
	Forgive Side = "forgive"
)

func (s Side) Other() Side {
	if s == Punish {
		return Forgive
	}
	return Punish
}

func (s Side) Valid() bool {
	return s == Punish || s == Forgive
}

// ID identifies an open vote: "<chatID>_<targetUserID>".
type ID string

func NewID(chatID, userID string) ID {
	return ID(chatID + "_" + userID)
}

type Target struct {
	ChatID string
	UserID string
	Name   string
}

type Tally struct {
	Punish  int
	Forgive int
}

type Outcome int

const (
	Expired Outcome = iota
	Duplicate
	Switched
	Registered
	ResolvedPunish
	ResolvedForgive
)

func (o Outcome) String() string {
	switch o {
	case Expired:
		return "expired"
	case Duplicate:
		return "duplicate"
	case Switched:
		return "switched"
	case Registered:
		return "registered"
	case ResolvedPunish:
		return "resolved_punish"
	case ResolvedForgive:
		return "resolved_forgive"
	}
	return "unknown"
}

func (o Outcome) Resolved() bool {
	return o == ResolvedPunish || o == ResolvedForgive
}

// Result of one ballot. Switched is set whenever the ballot moved from the
// other side, including when that move resolved the vote.
type Result struct {
	Outcome    Outcome
	Switched   bool
	Tally      Tally
	Target     Target
	Generation uuid.UUID
}

type record struct {
	sync.Mutex
	target     Target
	generation uuid.UUID
	ballots    map[Side]map[string]struct{}
	closed     bool
}

func newRecord(target Target) *record {
	return &record{
		target:     target,
		generation: uuid.New(),
		ballots: map[Side]map[string]struct{}{
			Punish:  make(map[string]struct{}),
			Forgive: make(map[string]struct{}),
		},
	}
}

func (r *record) tally() Tally {
	return Tally{Punish: len(r.ballots[Punish]), Forgive: len(r.ballots[Forgive])}
}

// Tracker owns every open vote. The map lock only guards lookups; ballots are
// serialised per record so distinct votes never wait on each other.
type Tracker struct {
	threshold int

	mu    sync.Mutex
	votes map[ID]*record
}

func NewTracker(threshold int) *Tracker {
	if threshold < 1 {
		threshold = 1
	}
	return &Tracker{
		threshold: threshold,
		votes:     make(map[ID]*record),
	}
}

func (t *Tracker) Threshold() int {
	return t.threshold
}

// Start opens a vote for target, replacing any open vote with the same ID.
func (t *Tracker) Start(target Target) (ID, uuid.UUID) {
	id := NewID(target.ChatID, target.UserID)
	rec := newRecord(target)

	t.mu.Lock()
	old := t.votes[id]
	t.votes[id] = rec
	t.mu.Unlock()

	if old != nil {
		old.Lock()
		old.closed = true
		old.Unlock()
	}
	return id, rec.generation
}

func (t *Tracker) lookup(id ID) *record {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.votes[id]
}

// Cast registers voterID's ballot for side on vote id.
func (t *Tracker) Cast(id ID, voterID string, side Side) Result {
	for {
		rec := t.lookup(id)
		if rec == nil {
			return Result{Outcome: Expired}
		}

		rec.Lock()
		if rec.closed {
			// Resolved or replaced while we waited; look again.
			rec.Unlock()
			continue
		}
		res := t.cast(id, rec, voterID, side)
		rec.Unlock()
		return res
	}
}

// cast runs with rec locked.
func (t *Tracker) cast(id ID, rec *record, voterID string, side Side) Result {
	res := Result{Target: rec.target, Generation: rec.generation}

	chosen, other := rec.ballots[side], rec.ballots[side.Other()]
	if _, ok := chosen[voterID]; ok {
		res.Outcome = Duplicate
		res.Tally = rec.tally()
		return res
	}

	res.Outcome = Registered
	if _, ok := other[voterID]; ok {
		delete(other, voterID)
		res.Outcome = Switched
		res.Switched = true
	}
	chosen[voterID] = struct{}{}
	res.Tally = rec.tally()

	switch {
	case res.Tally.Punish >= t.threshold:
		res.Outcome = ResolvedPunish
	case res.Tally.Forgive >= t.threshold:
		res.Outcome = ResolvedForgive
	default:
		return res
	}

	rec.closed = true
	t.mu.Lock()
	if t.votes[id] == rec {
		delete(t.votes, id)
	}
	t.mu.Unlock()
	return res
}

// Tally reports the current counts of an open vote.
func (t *Tracker) Tally(id ID) (Tally, bool) {
	rec := t.lookup(id)
	if rec == nil {
		return Tally{}, false
	}
	rec.Lock()
	defer rec.Unlock()
	if rec.closed {
		return Tally{}, false
	}
	return rec.tally(), true
}

// Target returns the defendant of an open vote.
func (t *Tracker) Target(id ID) (Target, bool) {
	rec := t.lookup(id)
	if rec == nil {
		return Target{}, false
	}
	rec.Lock()
	defer rec.Unlock()
	if rec.closed {
		return Target{}, false
	}
	return rec.target, true
}

// Voted reports which side voterID currently backs on vote id.
func (t *Tracker) Voted(id ID, voterID string) (Side, bool) {
	rec := t.lookup(id)
	if rec == nil {
		return "", false
	}
	rec.Lock()
	defer rec.Unlock()
	if rec.closed {
		return "", false
	}
	for _, side := range []Side{Punish, Forgive} {
		if _, ok := rec.ballots[side][voterID]; ok {
			return side, true
		}
	}
	return "", false
}

func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.votes)
}
