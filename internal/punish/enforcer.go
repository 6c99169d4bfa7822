// Package punish applies the outcome of a resolved vote to the defendant.
package punish

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

type Kind string

const (
	Ban  Kind = "ban"
	Kick Kind = "kick"
	Mute Kind = "mute"
)

var ErrUnknownKind = errors.New("unknown punishment kind")

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case Ban, Kick, Mute:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Moderator is the set of moderation calls the chat host offers.
type Moderator interface {
	Ban(chatID, userID string) error
	Kick(chatID, userID string) error
	RestrictMessaging(chatID, userID string, until time.Time) error
}

// Status is what happened to a punishment. A failed punishment does not
// change the outcome of the vote; callers decide whether to look at Err.
type Status struct {
	Kind    Kind
	Applied bool
	Err     error
}

type Options struct {
	Kind    Kind
	MuteFor time.Duration
	Timeout time.Duration
	Logger  zerolog.Logger
	Now     func() time.Time
}

type Enforcer struct {
	mod     Moderator
	kind    Kind
	muteFor time.Duration
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

func NewEnforcer(mod Moderator, opts Options) *Enforcer {
	e := &Enforcer{
		mod:     mod,
		kind:    opts.Kind,
		muteFor: opts.MuteFor,
		timeout: opts.Timeout,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if e.kind == "" {
		e.kind = Ban
	}
	if e.timeout <= 0 {
		e.timeout = 10 * time.Second
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func (e *Enforcer) Kind() Kind {
	return e.kind
}

func (e *Enforcer) MuteMinutes() int {
	return int(e.muteFor / time.Minute)
}

// Apply punishes userID in chatID. It never blocks longer than the configured
// timeout; a moderator call that outlives it keeps running in the background.
func (e *Enforcer) Apply(ctx context.Context, chatID, userID string) Status {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- e.call(chatID, userID)
	}()

	st := Status{Kind: e.kind}
	select {
	case err := <-done:
		st.Err = err
	case <-ctx.Done():
		st.Err = fmt.Errorf("%s %s: %w", e.kind, userID, ctx.Err())
	}
	st.Applied = st.Err == nil

	if st.Err != nil {
		e.logger.Warn().Err(st.Err).
			Str("chat", chatID).
			Str("user", userID).
			Str("kind", string(e.kind)).
			Msg("Punishment failed, vote result stands")
	} else {
		e.logger.Info().
			Str("chat", chatID).
			Str("user", userID).
			Str("kind", string(e.kind)).
			Msg("Punishment applied")
	}
	return st
}

func (e *Enforcer) call(chatID, userID string) error {
	switch e.kind {
	case Ban:
		return e.mod.Ban(chatID, userID)
	case Kick:
		return e.mod.Kick(chatID, userID)
	case Mute:
		return e.mod.RestrictMessaging(chatID, userID, e.now().Add(e.muteFor))
	}
	return fmt.Errorf("%w: %q", ErrUnknownKind, e.kind)
}
