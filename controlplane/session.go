// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package controlplane

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Session is an authenticated account on one node.
type Session struct {
	client   *Client
	token    string
	userID   ID
	username string
}

// UserID returns the account's local user id.
func (s *Session) UserID() ID { return s.userID }

// Username returns the account's username.
func (s *Session) Username() string { return s.username }

// Token returns the bearer token, for gateway IDENTIFY.
func (s *Session) Token() string { return s.token }

// Client returns the node client the session belongs to.
func (s *Session) Client() *Client { return s.client }

func (s *Session) do(ctx context.Context, method, path string, body, result any, accepted ...int) error {
	_, err := s.client.do(ctx, method, path, s.token, body, result, accepted...)
	return err
}

// CreateGuild creates a guild owned by the session's user.
func (s *Session) CreateGuild(ctx context.Context, name string) (*Guild, error) {
	var guild Guild
	if err := s.do(ctx, http.MethodPost, "/api/v1/guilds", map[string]any{"name": name}, &guild, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("controlplane: creating guild %q: %w", name, err)
	}
	return &guild, nil
}

// ListChannels returns a guild's channels.
func (s *Session) ListChannels(ctx context.Context, guildID ID) ([]Channel, error) {
	var channels []Channel
	if err := s.do(ctx, http.MethodGet, "/api/v1/guilds/"+guildID.String()+"/channels", nil, &channels, http.StatusOK); err != nil {
		return nil, fmt.Errorf("controlplane: listing channels of guild %s: %w", guildID, err)
	}
	return channels, nil
}

// CreateChannel creates a channel of channelType (ChannelText or
// ChannelVoice) in a guild.
func (s *Session) CreateChannel(ctx context.Context, guildID ID, name string, channelType int) (*Channel, error) {
	request := map[string]any{"name": name, "channel_type": channelType}
	var channel Channel
	if err := s.do(ctx, http.MethodPost, "/api/v1/guilds/"+guildID.String()+"/channels", request, &channel, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("controlplane: creating channel %q: %w", name, err)
	}
	return &channel, nil
}

// EnsureTextChannel returns the guild's first text channel, creating
// one named name when the guild has none.
func (s *Session) EnsureTextChannel(ctx context.Context, guildID ID, name string) (*Channel, error) {
	channels, err := s.ListChannels(ctx, guildID)
	if err != nil {
		return nil, err
	}
	for _, channel := range channels {
		if channel.ChannelType == ChannelText {
			return &channel, nil
		}
	}
	return s.CreateChannel(ctx, guildID, name, ChannelText)
}

// ListMembers returns a guild's member list.
func (s *Session) ListMembers(ctx context.Context, guildID ID) ([]Member, error) {
	var members []Member
	if err := s.do(ctx, http.MethodGet, "/api/v1/guilds/"+guildID.String()+"/members", nil, &members, http.StatusOK); err != nil {
		return nil, fmt.Errorf("controlplane: listing members of guild %s: %w", guildID, err)
	}
	return members, nil
}

// LeaveGuild removes the session's user from a guild.
func (s *Session) LeaveGuild(ctx context.Context, guildID ID) error {
	if err := s.do(ctx, http.MethodDelete, "/api/v1/guilds/"+guildID.String()+"/members/@me", nil, nil, http.StatusNoContent); err != nil {
		return fmt.Errorf("controlplane: leaving guild %s: %w", guildID, err)
	}
	return nil
}

// CreateInvite creates an invite to a channel's guild.
func (s *Session) CreateInvite(ctx context.Context, channelID ID) (*Invite, error) {
	var invite Invite
	if err := s.do(ctx, http.MethodPost, "/api/v1/channels/"+channelID.String()+"/invites", map[string]any{}, &invite, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("controlplane: creating invite for channel %s: %w", channelID, err)
	}
	if invite.Code == "" {
		return nil, fmt.Errorf("controlplane: invite for channel %s has no code", channelID)
	}
	return &invite, nil
}

// AcceptInvite joins the invite's guild.
func (s *Session) AcceptInvite(ctx context.Context, code string) error {
	if err := s.do(ctx, http.MethodPost, "/api/v1/invites/"+url.PathEscape(code), map[string]any{}, nil, http.StatusOK); err != nil {
		return fmt.Errorf("controlplane: accepting invite %s: %w", code, err)
	}
	return nil
}

// SendMessage posts a message to a channel.
func (s *Session) SendMessage(ctx context.Context, channelID ID, request MessageRequest) (*Message, error) {
	if request.AttachmentIDs == nil {
		request.AttachmentIDs = []ID{}
	}
	var message Message
	if err := s.do(ctx, http.MethodPost, messagesPath(channelID), request, &message, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("controlplane: sending message to channel %s: %w", channelID, err)
	}
	return &message, nil
}

// EditMessage replaces a message's content.
func (s *Session) EditMessage(ctx context.Context, channelID, messageID ID, content string) (*Message, error) {
	var message Message
	path := messagesPath(channelID) + "/" + messageID.String()
	if err := s.do(ctx, http.MethodPatch, path, map[string]any{"content": content}, &message, http.StatusOK); err != nil {
		return nil, fmt.Errorf("controlplane: editing message %s: %w", messageID, err)
	}
	return &message, nil
}

// DeleteMessage deletes a message.
func (s *Session) DeleteMessage(ctx context.Context, channelID, messageID ID) error {
	path := messagesPath(channelID) + "/" + messageID.String()
	if err := s.do(ctx, http.MethodDelete, path, nil, nil, http.StatusNoContent); err != nil {
		return fmt.Errorf("controlplane: deleting message %s: %w", messageID, err)
	}
	return nil
}

// ListMessages returns up to limit recent messages in a channel.
func (s *Session) ListMessages(ctx context.Context, channelID ID, limit int) ([]Message, error) {
	var messages []Message
	path := fmt.Sprintf("%s?limit=%d", messagesPath(channelID), limit)
	if err := s.do(ctx, http.MethodGet, path, nil, &messages, http.StatusOK); err != nil {
		return nil, fmt.Errorf("controlplane: listing messages in channel %s: %w", channelID, err)
	}
	return messages, nil
}

// AddReaction reacts to a message as the session's user.
func (s *Session) AddReaction(ctx context.Context, channelID, messageID ID, emoji string) error {
	if err := s.do(ctx, http.MethodPut, reactionPath(channelID, messageID, emoji), nil, nil, http.StatusNoContent); err != nil {
		return fmt.Errorf("controlplane: adding reaction %s to message %s: %w", emoji, messageID, err)
	}
	return nil
}

// RemoveReaction removes the session user's reaction.
func (s *Session) RemoveReaction(ctx context.Context, channelID, messageID ID, emoji string) error {
	if err := s.do(ctx, http.MethodDelete, reactionPath(channelID, messageID, emoji), nil, nil, http.StatusNoContent); err != nil {
		return fmt.Errorf("controlplane: removing reaction %s from message %s: %w", emoji, messageID, err)
	}
	return nil
}

// AddTrustedPeer registers peer as a trusted federation server on the
// session's node. The session must be the node's admin.
func (s *Session) AddTrustedPeer(ctx context.Context, peer TrustedPeer) error {
	if peer.Domain == "" {
		peer.Domain = peer.ServerName
	}
	if err := s.do(ctx, http.MethodPost, FederationPath+"/servers", peer, nil, http.StatusCreated); err != nil {
		return fmt.Errorf("controlplane: trusting peer %s: %w", peer.ServerName, err)
	}
	return nil
}

// CreateThread opens a thread in a channel.
func (s *Session) CreateThread(ctx context.Context, channelID ID, name string, autoArchiveMinutes int) (*Thread, error) {
	request := map[string]any{"name": name, "auto_archive_duration": autoArchiveMinutes}
	var thread Thread
	if err := s.do(ctx, http.MethodPost, threadsPath(channelID), request, &thread, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("controlplane: creating thread %q: %w", name, err)
	}
	return &thread, nil
}

// RenameThread renames a thread.
func (s *Session) RenameThread(ctx context.Context, channelID, threadID ID, name string) error {
	path := threadsPath(channelID) + "/" + threadID.String()
	if err := s.do(ctx, http.MethodPatch, path, map[string]any{"name": name}, nil, http.StatusOK); err != nil {
		return fmt.Errorf("controlplane: renaming thread %s: %w", threadID, err)
	}
	return nil
}

// DeleteThread deletes a thread.
func (s *Session) DeleteThread(ctx context.Context, channelID, threadID ID) error {
	path := threadsPath(channelID) + "/" + threadID.String()
	if err := s.do(ctx, http.MethodDelete, path, nil, nil, http.StatusNoContent); err != nil {
		return fmt.Errorf("controlplane: deleting thread %s: %w", threadID, err)
	}
	return nil
}

// CreatePoll creates a poll in a channel. Nodes do not reliably return
// the poll id; callers read it back with inspect.LatestPollID.
func (s *Session) CreatePoll(ctx context.Context, channelID ID, request PollRequest) (*Poll, error) {
	var poll Poll
	if err := s.do(ctx, http.MethodPost, pollsPath(channelID), request, &poll, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("controlplane: creating poll %q: %w", request.Question, err)
	}
	return &poll, nil
}

// GetPoll returns a poll with the session user's vote markers.
func (s *Session) GetPoll(ctx context.Context, channelID, pollID ID) (*Poll, error) {
	var poll Poll
	if err := s.do(ctx, http.MethodGet, pollsPath(channelID)+"/"+pollID.String(), nil, &poll, http.StatusOK); err != nil {
		return nil, fmt.Errorf("controlplane: getting poll %s: %w", pollID, err)
	}
	return &poll, nil
}

// Vote votes for a poll option.
func (s *Session) Vote(ctx context.Context, channelID, pollID, optionID ID) error {
	if err := s.do(ctx, http.MethodPut, votePath(channelID, pollID, optionID), nil, nil, http.StatusOK); err != nil {
		return fmt.Errorf("controlplane: voting for option %s: %w", optionID, err)
	}
	return nil
}

// Unvote withdraws a vote.
func (s *Session) Unvote(ctx context.Context, channelID, pollID, optionID ID) error {
	if err := s.do(ctx, http.MethodDelete, votePath(channelID, pollID, optionID), nil, nil, http.StatusOK); err != nil {
		return fmt.Errorf("controlplane: removing vote for option %s: %w", optionID, err)
	}
	return nil
}

// UploadEmoji uploads a custom guild emoji as multipart form data.
func (s *Session) UploadEmoji(ctx context.Context, guildID ID, name string, image FilePart) (*Emoji, error) {
	if image.Field == "" {
		image.Field = "image"
	}
	var emoji Emoji
	err := s.client.doMultipart(ctx, "/api/v1/guilds/"+guildID.String()+"/emojis", s.token,
		map[string]string{"name": name}, []FilePart{image}, &emoji, http.StatusCreated)
	if err != nil {
		return nil, fmt.Errorf("controlplane: uploading emoji %q: %w", name, err)
	}
	return &emoji, nil
}

// DeleteEmoji deletes a custom guild emoji.
func (s *Session) DeleteEmoji(ctx context.Context, guildID, emojiID ID) error {
	path := "/api/v1/guilds/" + guildID.String() + "/emojis/" + emojiID.String()
	if err := s.do(ctx, http.MethodDelete, path, nil, nil, http.StatusNoContent); err != nil {
		return fmt.Errorf("controlplane: deleting emoji %s: %w", emojiID, err)
	}
	return nil
}

// RequestFriend sends a friend request to userID.
func (s *Session) RequestFriend(ctx context.Context, userID ID) error {
	request := map[string]any{"user_id": userID.String()}
	if err := s.do(ctx, http.MethodPost, "/api/v1/users/@me/relationships", request, nil, http.StatusNoContent); err != nil {
		return fmt.Errorf("controlplane: requesting friend %s: %w", userID, err)
	}
	return nil
}

// AcceptFriend accepts a pending request from userID.
func (s *Session) AcceptFriend(ctx context.Context, userID ID) error {
	if err := s.do(ctx, http.MethodPut, "/api/v1/users/@me/relationships/"+userID.String(), nil, nil, http.StatusNoContent); err != nil {
		return fmt.Errorf("controlplane: accepting friend %s: %w", userID, err)
	}
	return nil
}

// RemoveRelationship removes any relationship with userID.
func (s *Session) RemoveRelationship(ctx context.Context, userID ID) error {
	if err := s.do(ctx, http.MethodDelete, "/api/v1/users/@me/relationships/"+userID.String(), nil, nil, http.StatusNoContent); err != nil {
		return fmt.Errorf("controlplane: removing relationship with %s: %w", userID, err)
	}
	return nil
}

// CreateDM opens a direct-message channel with recipientID.
func (s *Session) CreateDM(ctx context.Context, recipientID ID) (*Channel, error) {
	var channel Channel
	request := map[string]any{"recipient_id": recipientID.String()}
	if err := s.do(ctx, http.MethodPost, "/api/v1/users/@me/dms", request, &channel, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("controlplane: opening DM with %s: %w", recipientID, err)
	}
	return &channel, nil
}

// UpdateSettings patches the session user's settings.
func (s *Session) UpdateSettings(ctx context.Context, patch Settings) error {
	if err := s.do(ctx, http.MethodPatch, "/api/v1/users/@me/settings", patch, nil, http.StatusOK); err != nil {
		return fmt.Errorf("controlplane: updating settings: %w", err)
	}
	return nil
}

// GetSettings returns the session user's settings.
func (s *Session) GetSettings(ctx context.Context) (Settings, error) {
	settings := Settings{}
	if err := s.do(ctx, http.MethodGet, "/api/v1/users/@me/settings", nil, &settings, http.StatusOK); err != nil {
		return nil, fmt.Errorf("controlplane: getting settings: %w", err)
	}
	return settings, nil
}

// JoinVoice joins a voice channel and returns the media grant.
func (s *Session) JoinVoice(ctx context.Context, channelID ID) (*VoiceGrant, error) {
	var grant VoiceGrant
	if err := s.do(ctx, http.MethodGet, voicePath(channelID)+"/join", nil, &grant, http.StatusOK); err != nil {
		return nil, fmt.Errorf("controlplane: joining voice channel %s: %w", channelID, err)
	}
	if grant.Token == "" || grant.RoomName == "" {
		return nil, fmt.Errorf("controlplane: voice join for channel %s missing token or room_name", channelID)
	}
	return &grant, nil
}

// LeaveVoice leaves a voice channel.
func (s *Session) LeaveVoice(ctx context.Context, channelID ID) error {
	if err := s.do(ctx, http.MethodPost, voicePath(channelID)+"/leave", nil, nil, http.StatusNoContent); err != nil {
		return fmt.Errorf("controlplane: leaving voice channel %s: %w", channelID, err)
	}
	return nil
}

// StartStream starts a live stream in a voice channel the user has
// joined.
func (s *Session) StartStream(ctx context.Context, channelID ID, request StreamRequest) (*VoiceGrant, error) {
	var grant VoiceGrant
	if err := s.do(ctx, http.MethodPost, voicePath(channelID)+"/stream", request, &grant, http.StatusOK); err != nil {
		return nil, fmt.Errorf("controlplane: starting stream in channel %s: %w", channelID, err)
	}
	if grant.Token == "" || grant.RoomName == "" {
		return nil, fmt.Errorf("controlplane: stream start in channel %s missing token or room_name", channelID)
	}
	return &grant, nil
}

// StopStream stops the user's live stream.
func (s *Session) StopStream(ctx context.Context, channelID ID) error {
	if err := s.do(ctx, http.MethodPost, voicePath(channelID)+"/stream/stop", nil, nil, http.StatusNoContent); err != nil {
		return fmt.Errorf("controlplane: stopping stream in channel %s: %w", channelID, err)
	}
	return nil
}

func messagesPath(channelID ID) string {
	return "/api/v1/channels/" + channelID.String() + "/messages"
}

func reactionPath(channelID, messageID ID, emoji string) string {
	return messagesPath(channelID) + "/" + messageID.String() + "/reactions/" + url.PathEscape(emoji) + "/@me"
}

func threadsPath(channelID ID) string {
	return "/api/v1/channels/" + channelID.String() + "/threads"
}

func pollsPath(channelID ID) string {
	return "/api/v1/channels/" + channelID.String() + "/polls"
}

func votePath(channelID, pollID, optionID ID) string {
	return pollsPath(channelID) + "/" + pollID.String() + "/votes/" + optionID.String()
}

func voicePath(channelID ID) string {
	return "/api/v1/voice/" + channelID.String()
}
