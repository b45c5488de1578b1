// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package controlplane

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a snowflake identifier in decimal string form.
type ID string

// UnmarshalJSON accepts a JSON string or integer.
func (id *ID) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*id = ID(text)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	if _, err := strconv.ParseInt(number.String(), 10, 64); err != nil {
		return fmt.Errorf("id %s is not an integer", number)
	}
	*id = ID(number.String())
	return nil
}

// Int64 parses the identifier for use as a store key.
func (id ID) Int64() (int64, error) {
	return strconv.ParseInt(string(id), 10, 64)
}

func (id ID) String() string { return string(id) }

// Channel types.
const (
	ChannelText  = 0
	ChannelVoice = 2
)

// Relationship types carried on RELATIONSHIP_ADD.
const (
	RelationshipFriend          = 1
	RelationshipPendingIncoming = 3
)

// RegisterRequest is the body of POST /api/v1/auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// User is the public part of an account.
type User struct {
	ID       ID     `json:"id"`
	Username string `json:"username"`
}

type authResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Guild is a space.
type Guild struct {
	ID      ID     `json:"id"`
	Name    string `json:"name"`
	OwnerID ID     `json:"owner_id,omitempty"`
}

// Channel is a text, voice, or DM channel.
type Channel struct {
	ID          ID     `json:"id"`
	Name        string `json:"name"`
	ChannelType int    `json:"channel_type"`
	GuildID     ID     `json:"guild_id,omitempty"`
}

// E2EEPayload is an end-to-end encrypted message body. The server
// stores and relays it opaquely.
type E2EEPayload struct {
	Version    int    `json:"version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Message is a channel message.
type Message struct {
	ID        ID           `json:"id"`
	ChannelID ID           `json:"channel_id"`
	Content   string       `json:"content"`
	E2EE      *E2EEPayload `json:"e2ee,omitempty"`
}

// MessageRequest is the body for creating or editing a message.
type MessageRequest struct {
	Content       string       `json:"content"`
	AttachmentIDs []ID         `json:"attachment_ids"`
	E2EE          *E2EEPayload `json:"e2ee,omitempty"`
}

// Invite is a channel invite.
type Invite struct {
	Code string `json:"code"`
}

// Member is one guild member as returned by the member list.
type Member struct {
	UserID ID `json:"user_id"`
}

// Thread is a channel thread.
type Thread struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// PollRequest creates a poll.
type PollRequest struct {
	Question         string       `json:"question"`
	Options          []PollChoice `json:"options"`
	AllowMultiselect bool         `json:"allow_multiselect"`
	ExpiresInMinutes int          `json:"expires_in_minutes"`
}

// PollChoice is an option in a PollRequest.
type PollChoice struct {
	Text string `json:"text"`
}

// Poll is a poll as seen by the requesting user.
type Poll struct {
	ID         ID           `json:"id"`
	Question   string       `json:"question"`
	Options    []PollOption `json:"options"`
	TotalVotes int          `json:"total_votes"`
}

// PollOption carries per-option tallies and whether the requesting
// user voted for it.
type PollOption struct {
	ID    ID     `json:"id"`
	Text  string `json:"text"`
	Votes int    `json:"vote_count"`
	Voted bool   `json:"voted"`
}

// Emoji is a custom guild emoji.
type Emoji struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// Settings is the user settings document. The harness only asserts on
// the fields it writes, so it is kept as a map.
type Settings map[string]any

// VoiceGrant is returned when joining voice or starting a stream.
type VoiceGrant struct {
	Token    string `json:"token"`
	RoomName string `json:"room_name"`
	URL      string `json:"url,omitempty"`
}

// StreamRequest starts a live stream in a voice channel.
type StreamRequest struct {
	Title         string `json:"title"`
	QualityPreset string `json:"quality_preset"`
}

// TrustedPeer is the body of POST /_paracord/federation/v1/servers.
type TrustedPeer struct {
	ServerName         string `json:"server_name"`
	Domain             string `json:"domain"`
	FederationEndpoint string `json:"federation_endpoint"`
	Trusted            bool   `json:"trusted"`
	Discover           bool   `json:"discover"`
}
