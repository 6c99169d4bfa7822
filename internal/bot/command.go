package bot

import (
	"fmt"

	"github.com/mattermost/gulag-bot/internal/gulag"
	"github.com/mattermost/mattermost-server/v6/model"
)

// postCommand is a gulag.Command backed by the post that carried it.
type postCommand struct {
	app         *Application
	post        *model.Post
	channelType model.ChannelType
}

func (c *postCommand) ChatID() string {
	return c.post.ChannelId
}

func (c *postCommand) IsGroup() bool {
	channelType := c.channelType
	if channelType == "" {
		channel, _, err := c.app.api.GetChannel(c.post.ChannelId, "")
		if err != nil {
			c.app.logger.Warn().Err(err).Str("channel", c.post.ChannelId).Msg("Could not load channel")
			return false
		}
		channelType = channel.Type
	}
	switch channelType {
	case model.ChannelTypeOpen, model.ChannelTypePrivate, model.ChannelTypeGroup:
		return true
	}
	return false
}

// ReplyTarget is the author of the thread the command was posted in.
func (c *postCommand) ReplyTarget() (*gulag.UserRef, error) {
	if c.post.RootId == "" {
		return nil, nil
	}
	root, _, err := c.app.api.GetPost(c.post.RootId, "")
	if err != nil {
		return nil, fmt.Errorf("get replied post %s: %w", c.post.RootId, err)
	}
	user, _, err := c.app.api.GetUser(root.UserId, "")
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", root.UserId, err)
	}
	return &gulag.UserRef{ID: user.Id, Name: displayName(user)}, nil
}

func (c *postCommand) Answer(text string, buttons []gulag.Button) error {
	post := &model.Post{
		ChannelId: c.post.ChannelId,
		Message:   text,
		RootId:    threadRoot(c.post),
	}
	if len(buttons) > 0 {
		post.AddProp("attachments", c.app.attachments(buttons))
	}
	if _, _, err := c.app.api.CreatePost(post); err != nil {
		return fmt.Errorf("create post in %s: %w", c.post.ChannelId, err)
	}
	return nil
}

func displayName(user *model.User) string {
	if user.FirstName != "" {
		return user.FirstName
	}
	return "@" + user.Username
}
