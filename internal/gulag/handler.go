// Package gulag lets chat members vote to punish or forgive a user.
//
// The handler sits between the chat transport and the vote tracker. It only
// sees the transport through the Command and Callback interfaces, so the same
// flow runs against Mattermost or a test double.
package gulag

import (
	"context"
	"errors"
	"sync"

	"github.com/mattermost/gulag-bot/internal/i18n"
	"github.com/mattermost/gulag-bot/internal/punish"
	"github.com/mattermost/gulag-bot/internal/vote"
	"github.com/rs/zerolog"
)

var (
	ErrNotInGroup    = errors.New("vote started outside a group chat")
	ErrNoReplyTarget = errors.New("vote command is not a reply")
)

type UserRef struct {
	ID   string
	Name string
}

// Button carries (vote ID, side) back to Ballot when clicked.
type Button struct {
	Label  string
	VoteID vote.ID
	Side   vote.Side
}

// Command is the message that asked for a vote.
type Command interface {
	ChatID() string
	IsGroup() bool
	// ReplyTarget returns the author of the message being replied to, or nil.
	ReplyTarget() (*UserRef, error)
	Answer(text string, buttons []Button) error
}

// Callback is one click on a vote button.
type Callback interface {
	Voter() UserRef
	EditMessage(text string, buttons []Button)
	NotifyVoter(text string)
}

type Handler struct {
	tracker  *vote.Tracker
	enforcer *punish.Enforcer
	text     *i18n.Localizer
	logger   zerolog.Logger

	wg sync.WaitGroup
}

func NewHandler(tracker *vote.Tracker, enforcer *punish.Enforcer, text *i18n.Localizer, logger zerolog.Logger) *Handler {
	return &Handler{
		tracker:  tracker,
		enforcer: enforcer,
		text:     text,
		logger:   logger,
	}
}

func (h *Handler) Tracker() *vote.Tracker {
	return h.tracker
}

// StartVote opens a vote against the author of the message cmd replies to.
// Rejections are answered to the user and returned as ErrNotInGroup or
// ErrNoReplyTarget.
func (h *Handler) StartVote(cmd Command) error {
	if !cmd.IsGroup() {
		if err := cmd.Answer(h.text.Text(i18n.NotChat), nil); err != nil {
			return err
		}
		return ErrNotInGroup
	}

	target, err := cmd.ReplyTarget()
	if err != nil {
		return err
	}
	if target == nil {
		if err := cmd.Answer(h.text.Text(i18n.NoReply), nil); err != nil {
			return err
		}
		return ErrNoReplyTarget
	}

	id, generation := h.tracker.Start(vote.Target{
		ChatID: cmd.ChatID(),
		UserID: target.ID,
		Name:   target.Name,
	})
	h.logger.Info().
		Str("vote", string(id)).
		Str("generation", generation.String()).
		Str("target", target.ID).
		Msg("Vote started")

	return cmd.Answer(h.prompt(target.ID, target.Name), h.Layout(id, vote.Tally{}))
}

// Ballot registers a click on one of the vote buttons.
func (h *Handler) Ballot(cb Callback, id vote.ID, side vote.Side) vote.Outcome {
	voter := cb.Voter()
	res := h.tracker.Cast(id, voter.ID, side)

	h.logger.Debug().
		Str("vote", string(id)).
		Str("voter", voter.ID).
		Str("side", string(side)).
		Str("outcome", res.Outcome.String()).
		Int("punish", res.Tally.Punish).
		Int("forgive", res.Tally.Forgive).
		Msg("Ballot")

	target := res.Target
	if res.Switched {
		cb.NotifyVoter(h.text.Text(i18n.Switched))
	}
	switch res.Outcome {
	case vote.Expired:
		cb.NotifyVoter(h.text.Text(i18n.Ended))
	case vote.Duplicate:
		cb.NotifyVoter(h.text.Text(i18n.Already))
	case vote.Switched, vote.Registered:
		cb.EditMessage(h.prompt(target.UserID, target.Name), h.Layout(id, res.Tally))
	case vote.ResolvedPunish:
		h.logger.Info().Str("vote", string(id)).Str("target", target.UserID).Msg("Vote resolved: punish")
		cb.EditMessage(h.verdict(target), nil)
		h.punish(target)
	case vote.ResolvedForgive:
		h.logger.Info().Str("vote", string(id)).Str("target", target.UserID).Msg("Vote resolved: forgive")
		cb.EditMessage(h.text.Text(i18n.Forgiven, target.UserID, target.Name), nil)
	}
	return res.Outcome
}

// punish runs in the background; the verdict is already on screen and a
// failure is only logged by the enforcer.
func (h *Handler) punish(target vote.Target) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		_ = h.enforcer.Apply(context.Background(), target.ChatID, target.UserID)
	}()
}

// Wait blocks until every started punishment has returned.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// Layout renders the two vote buttons with their current counts.
func (h *Handler) Layout(id vote.ID, tally vote.Tally) []Button {
	n := h.tracker.Threshold()
	return []Button{
		{Label: h.text.Text(i18n.Gulag, tally.Punish, n), VoteID: id, Side: vote.Punish},
		{Label: h.text.Text(i18n.Forgive, tally.Forgive, n), VoteID: id, Side: vote.Forgive},
	}
}

func (h *Handler) Help(trigger string) string {
	return h.text.Text(i18n.Help, trigger, h.tracker.Threshold(), string(h.enforcer.Kind()))
}

func (h *Handler) prompt(userID, name string) string {
	return h.text.Text(i18n.Vote, userID, name)
}

func (h *Handler) verdict(target vote.Target) string {
	switch h.enforcer.Kind() {
	case punish.Kick:
		return h.text.Text(i18n.Kicked, target.UserID, target.Name)
	case punish.Mute:
		return h.text.Text(i18n.Muted, target.UserID, target.Name, h.enforcer.MuteMinutes())
	}
	return h.text.Text(i18n.Banned, target.UserID, target.Name)
}
