// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"context"
	"encoding/base64"
	"strconv"

	"github.com/paracord-chat/fedcheck/controlplane"
	"github.com/paracord-chat/fedcheck/gateway"
)

// tinyPNG is a 1x1 transparent PNG.
var tinyPNG = func() []byte {
	data, err := base64.StdEncoding.DecodeString(
		"iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mP8/x8AAwMCAO7+q5sAAAAASUVORK5CYII=")
	if err != nil {
		panic(err)
	}
	return data
}()

// fundamentals holds the per-run state of the Fundamentals scenario.
type fundamentals struct {
	guildFixture

	guestOne, guestTwo               *controlplane.Session
	guestOneGateway, guestTwoGateway *gateway.Session

	voiceChannelID  controlplane.ID
	baselineMembers int

	threadID controlplane.ID
	pollID   controlplane.ID
	optionID controlplane.ID
	emojiID  controlplane.ID

	dmChannelID controlplane.ID
	dmFirst     controlplane.ID
	dmReply     controlplane.ID
}

// Fundamentals walks the client-facing feature set on the origin node
// (membership, messages, threads, polls, custom emoji, friends,
// encrypted DMs, settings, voice, and streaming) with a realtime check
// for each, and checks the message lifecycle converges on every other
// node through the relay.
func Fundamentals() *Scenario {
	state := &fundamentals{}
	f := &state.guildFixture

	steps := []Step{
		state.memberJoinStep(),
		createMessageStep(f, "federation live message"),
		editMessageStep(f, "federation live message edited"),
		addReactionStep(f, "thumbsup"),
		removeReactionStep(f, "thumbsup"),
		deleteMessageStep(f),
	}
	steps = append(steps, state.threadSteps()...)
	steps = append(steps, state.pollSteps()...)
	steps = append(steps, state.emojiSteps()...)
	steps = append(steps, state.relationshipSteps()...)
	steps = append(steps, state.settingsStep())
	steps = append(steps, state.voiceSteps()...)
	steps = append(steps, state.memberLeaveStep(), trustUnchangedStep())

	return &Scenario{
		Name:          "fundamentals",
		Description:   "realtime coverage of the client feature set on the origin, with message convergence and relay proof",
		RequiresRelay: true,
		Setup:         state.setup,
		Steps:         steps,
	}
}

func (s *fundamentals) setup(ctx context.Context, env *Env) error {
	origin := env.Roles.Origin
	var err error
	if s.guestOne, err = env.Register(ctx, origin, "guest_one"); err != nil {
		return err
	}
	if s.guestTwo, err = env.Register(ctx, origin, "guest_two"); err != nil {
		return err
	}
	// guest_two only takes part in friend and DM flows, so it connects
	// before any guild exists.
	if s.guestTwoGateway, err = env.Connect(ctx, origin, s.guestTwo); err != nil {
		return err
	}
	if err := s.createGuild(ctx, env, "Federation Live Fundamentals Guild"); err != nil {
		return err
	}
	voice, err := s.admin.CreateChannel(ctx, s.guildID, "voice-room", controlplane.ChannelVoice)
	if err != nil {
		return err
	}
	s.voiceChannelID = voice.ID
	s.adminGateway, err = env.Connect(ctx, origin, s.admin)
	return err
}

func (s *fundamentals) memberJoinStep() Step {
	return Step{
		Name: "member join",
		Act: func(ctx context.Context, env *Env) error {
			members, err := s.admin.ListMembers(ctx, s.guildID)
			if err != nil {
				return err
			}
			s.baselineMembers = len(members)
			if err := s.join(ctx, s.guestOne); err != nil {
				return err
			}
			if s.guestOneGateway, err = env.Connect(ctx, env.Roles.Origin, s.guestOne); err != nil {
				return err
			}
			s.observer = s.guestOneGateway
			return nil
		},
		Realtime: func(ctx context.Context, env *Env) error {
			_, err := env.Await(ctx, s.adminGateway, "GUILD_MEMBER_ADD",
				gateway.All(gateway.Where("guild_id", s.guildID), gateway.Where("user_id", s.guestOne.UserID())))
			return err
		},
		Converge: func(ctx context.Context, env *Env) error {
			return s.checkMemberList(ctx, s.baselineMembers+1, true)
		},
	}
}

func (s *fundamentals) memberLeaveStep() Step {
	return Step{
		Name: "member leave",
		Act: func(ctx context.Context, env *Env) error {
			return s.guestOne.LeaveGuild(ctx, s.guildID)
		},
		Realtime: func(ctx context.Context, env *Env) error {
			_, err := env.Await(ctx, s.adminGateway, "GUILD_MEMBER_REMOVE",
				gateway.All(gateway.Where("guild_id", s.guildID), gateway.Where("user_id", s.guestOne.UserID())))
			return err
		},
		Converge: func(ctx context.Context, env *Env) error {
			return s.checkMemberList(ctx, s.baselineMembers, false)
		},
	}
}

// checkMemberList reads the origin member list once; the realtime
// dispatch has already confirmed the change was committed.
func (s *fundamentals) checkMemberList(ctx context.Context, want int, containsGuest bool) error {
	members, err := s.admin.ListMembers(ctx, s.guildID)
	if err != nil {
		return err
	}
	if len(members) != want {
		return Failf("member list", "have %d members, want %d", len(members), want)
	}
	if containsID(memberIDs(members), s.guestOne.UserID()) != containsGuest {
		return Failf("member list", "guest_one present = %v, want %v", !containsGuest, containsGuest)
	}
	return nil
}

func (s *fundamentals) threadSteps() []Step {
	const created, renamed = "live-thread", "live-thread-renamed"
	return []Step{
		{
			Name: "thread create",
			Act: func(ctx context.Context, env *Env) error {
				thread, err := s.admin.CreateThread(ctx, s.channelID, created, 60)
				if err != nil {
					return err
				}
				s.threadID = thread.ID
				return nil
			},
			Realtime: func(ctx context.Context, env *Env) error {
				_, err := env.Await(ctx, s.guestOneGateway, "THREAD_CREATE", gateway.Where("id", s.threadID))
				return err
			},
		},
		{
			Name: "thread rename",
			Act: func(ctx context.Context, env *Env) error {
				return s.admin.RenameThread(ctx, s.channelID, s.threadID, renamed)
			},
			Realtime: func(ctx context.Context, env *Env) error {
				_, err := env.Await(ctx, s.guestOneGateway, "THREAD_UPDATE",
					gateway.All(gateway.Where("id", s.threadID), gateway.Where("name", renamed)))
				return err
			},
		},
		{
			Name: "thread delete",
			Act: func(ctx context.Context, env *Env) error {
				return s.admin.DeleteThread(ctx, s.channelID, s.threadID)
			},
			Realtime: func(ctx context.Context, env *Env) error {
				_, err := env.Await(ctx, s.guestOneGateway, "THREAD_DELETE", gateway.Where("id", s.threadID))
				return err
			},
		},
	}
}

func (s *fundamentals) voteMatch() gateway.Predicate {
	return gateway.All(
		gateway.Where("poll_id", s.pollID),
		gateway.Where("option_id", s.optionID),
		gateway.Where("user_id", s.guestOne.UserID()),
	)
}

func (s *fundamentals) pollSteps() []Step {
	return []Step{
		{
			Name: "poll vote",
			Act: func(ctx context.Context, env *Env) error {
				_, err := s.admin.CreatePoll(ctx, s.channelID, controlplane.PollRequest{
					Question:         "Best protocol?",
					Options:          []controlplane.PollChoice{{Text: "Matrix"}, {Text: "Paracord"}},
					ExpiresInMinutes: 60,
				})
				if err != nil {
					return err
				}
				channelKey, err := localID(s.channelID)
				if err != nil {
					return err
				}
				origin := env.Roles.Origin
				err = env.Converge(ctx, "poll recorded in "+origin+" store", func(ctx context.Context) (bool, error) {
					pollKey, found, err := env.Inspector.LatestPollID(ctx, origin, channelKey)
					if found {
						s.pollID = controlplane.ID(strconv.FormatInt(pollKey, 10))
					}
					return found, err
				})
				if err != nil {
					return err
				}
				created, err := s.admin.GetPoll(ctx, s.channelID, s.pollID)
				if err != nil {
					return err
				}
				if len(created.Options) < 2 {
					return Failf("poll options", "poll %s has %d options, want at least 2", s.pollID, len(created.Options))
				}
				s.optionID = created.Options[0].ID
				return s.guestOne.Vote(ctx, s.channelID, s.pollID, s.optionID)
			},
			Realtime: func(ctx context.Context, env *Env) error {
				_, err := env.Await(ctx, s.adminGateway, "POLL_VOTE_ADD", s.voteMatch())
				return err
			},
			Converge: func(ctx context.Context, env *Env) error {
				poll, err := s.guestOne.GetPoll(ctx, s.channelID, s.pollID)
				if err != nil {
					return err
				}
				if poll.TotalVotes < 1 {
					return Failf("poll vote", "total_votes = %d after voting", poll.TotalVotes)
				}
				for _, option := range poll.Options {
					if option.ID == s.optionID && option.Voted {
						return nil
					}
				}
				return Failf("poll vote", "option %s not marked voted for guest_one", s.optionID)
			},
		},
		{
			Name: "poll unvote",
			Act: func(ctx context.Context, env *Env) error {
				return s.guestOne.Unvote(ctx, s.channelID, s.pollID, s.optionID)
			},
			Realtime: func(ctx context.Context, env *Env) error {
				_, err := env.Await(ctx, s.adminGateway, "POLL_VOTE_REMOVE", s.voteMatch())
				return err
			},
			Converge: func(ctx context.Context, env *Env) error {
				poll, err := s.guestOne.GetPoll(ctx, s.channelID, s.pollID)
				if err != nil {
					return err
				}
				if poll.TotalVotes != 0 {
					return Failf("poll unvote", "total_votes = %d after removing the only vote", poll.TotalVotes)
				}
				return nil
			},
		},
	}
}

func (s *fundamentals) emojiSteps() []Step {
	return []Step{
		{
			Name: "emoji upload",
			Act: func(ctx context.Context, env *Env) error {
				emoji, err := s.admin.UploadEmoji(ctx, s.guildID, "tinywave", controlplane.FilePart{
					Field:       "image",
					Filename:    "tiny.png",
					ContentType: "image/png",
					Data:        tinyPNG,
				})
				if err != nil {
					return err
				}
				s.emojiID = emoji.ID
				return nil
			},
			Realtime: func(ctx context.Context, env *Env) error {
				_, err := env.Await(ctx, s.guestOneGateway, "GUILD_EMOJIS_UPDATE",
					gateway.All(gateway.Where("guild_id", s.guildID), gateway.Where("emoji.id", s.emojiID)))
				return err
			},
		},
		{
			Name: "emoji delete",
			Act: func(ctx context.Context, env *Env) error {
				return s.admin.DeleteEmoji(ctx, s.guildID, s.emojiID)
			},
			Realtime: func(ctx context.Context, env *Env) error {
				_, err := env.Await(ctx, s.guestOneGateway, "GUILD_EMOJIS_UPDATE",
					gateway.All(gateway.Where("guild_id", s.guildID), gateway.Where("deleted_emoji_id", s.emojiID)))
				return err
			},
		},
	}
}

func relationshipWith(relationshipType int, userID controlplane.ID) gateway.Predicate {
	return gateway.All(gateway.Where("type", relationshipType), gateway.Where("user.id", userID))
}

func (s *fundamentals) relationshipSteps() []Step {
	return []Step{
		{
			Name: "friend request",
			Act: func(ctx context.Context, env *Env) error {
				return s.guestOne.RequestFriend(ctx, s.guestTwo.UserID())
			},
			Realtime: func(ctx context.Context, env *Env) error {
				_, err := env.Await(ctx, s.guestTwoGateway, "RELATIONSHIP_ADD",
					relationshipWith(controlplane.RelationshipPendingIncoming, s.guestOne.UserID()))
				return err
			},
		},
		{
			Name: "friend accept",
			Act: func(ctx context.Context, env *Env) error {
				return s.guestTwo.AcceptFriend(ctx, s.guestOne.UserID())
			},
			Realtime: func(ctx context.Context, env *Env) error {
				if _, err := env.Await(ctx, s.guestOneGateway, "RELATIONSHIP_ADD",
					relationshipWith(controlplane.RelationshipFriend, s.guestTwo.UserID())); err != nil {
					return err
				}
				_, err := env.Await(ctx, s.guestTwoGateway, "RELATIONSHIP_ADD",
					relationshipWith(controlplane.RelationshipFriend, s.guestOne.UserID()))
				return err
			},
		},
		{
			Name: "encrypted dm send",
			Act: func(ctx context.Context, env *Env) error {
				channel, err := s.guestOne.CreateDM(ctx, s.guestTwo.UserID())
				if err != nil {
					return err
				}
				s.dmChannelID = channel.ID
				message, err := s.guestOne.SendMessage(ctx, s.dmChannelID, controlplane.MessageRequest{
					E2EE: &controlplane.E2EEPayload{Version: 1, Nonce: "AA==", Ciphertext: "aGVsbG8tZnJvbS1ndWVzdDE="},
				})
				if err != nil {
					return err
				}
				s.dmFirst = message.ID
				return nil
			},
			Realtime: func(ctx context.Context, env *Env) error {
				_, err := env.Await(ctx, s.guestTwoGateway, "MESSAGE_CREATE",
					gateway.All(gateway.Where("id", s.dmFirst), gateway.Where("channel_id", s.dmChannelID)))
				return err
			},
		},
		{
			Name: "encrypted dm reply",
			Act: func(ctx context.Context, env *Env) error {
				message, err := s.guestTwo.SendMessage(ctx, s.dmChannelID, controlplane.MessageRequest{
					E2EE: &controlplane.E2EEPayload{Version: 1, Nonce: "AQ==", Ciphertext: "cmVwbHktZnJvbS1ndWVzdDI="},
				})
				if err != nil {
					return err
				}
				s.dmReply = message.ID
				return nil
			},
			Realtime: func(ctx context.Context, env *Env) error {
				_, err := env.Await(ctx, s.guestOneGateway, "MESSAGE_CREATE",
					gateway.All(gateway.Where("id", s.dmReply), gateway.Where("channel_id", s.dmChannelID)))
				return err
			},
			Converge: func(ctx context.Context, env *Env) error {
				history, err := s.guestOne.ListMessages(ctx, s.dmChannelID, 50)
				if err != nil {
					return err
				}
				return checkEncryptedHistory(history, s.dmFirst, s.dmReply)
			},
		},
		{
			Name: "friend remove",
			Act: func(ctx context.Context, env *Env) error {
				return s.guestOne.RemoveRelationship(ctx, s.guestTwo.UserID())
			},
			Realtime: func(ctx context.Context, env *Env) error {
				if _, err := env.Await(ctx, s.guestOneGateway, "RELATIONSHIP_REMOVE",
					gateway.Where("user_id", s.guestTwo.UserID())); err != nil {
					return err
				}
				_, err := env.Await(ctx, s.guestTwoGateway, "RELATIONSHIP_REMOVE",
					gateway.Where("user_id", s.guestOne.UserID()))
				return err
			},
		},
	}
}

// checkEncryptedHistory requires every id in history with a complete
// E2EE payload.
func checkEncryptedHistory(history []controlplane.Message, ids ...controlplane.ID) error {
	byID := make(map[controlplane.ID]controlplane.Message, len(history))
	for _, message := range history {
		byID[message.ID] = message
	}
	for _, id := range ids {
		message, ok := byID[id]
		switch {
		case !ok:
			return Failf("dm history", "message %s missing", id)
		case message.E2EE == nil:
			return Failf("dm history", "message %s has no e2ee payload", id)
		case message.E2EE.Nonce == "" || message.E2EE.Ciphertext == "":
			return Failf("dm history", "message %s has an incomplete e2ee payload", id)
		}
	}
	return nil
}

func (s *fundamentals) settingsStep() Step {
	return Step{
		Name: "settings update",
		Act: func(ctx context.Context, env *Env) error {
			return s.guestOne.UpdateSettings(ctx, controlplane.Settings{
				"theme":                   "light",
				"locale":                  "en-US",
				"message_display_compact": true,
				"custom_status":           "live-test",
				"notifications":           map[string]any{"dm": true},
			})
		},
		Converge: func(ctx context.Context, env *Env) error {
			settings, err := s.guestOne.GetSettings(ctx)
			if err != nil {
				return err
			}
			for key, want := range map[string]any{"theme": "light", "message_display_compact": true, "locale": "en-US"} {
				if got := settings[key]; got != want {
					return Failf("settings", "%s = %v, want %v", key, got, want)
				}
			}
			return nil
		},
	}
}

// voiceState matches a VOICE_STATE_UPDATE for userID in the voice
// channel, plus any extra conditions.
func (s *fundamentals) voiceState(userID controlplane.ID, extra ...gateway.Predicate) gateway.Predicate {
	return gateway.All(append([]gateway.Predicate{
		gateway.Where("user_id", userID),
		gateway.Where("channel_id", s.voiceChannelID),
	}, extra...)...)
}

func (s *fundamentals) voiceSteps() []Step {
	awaitVoice := func(ctx context.Context, env *Env, predicate gateway.Predicate) error {
		_, err := env.Await(ctx, s.adminGateway, "VOICE_STATE_UPDATE", predicate)
		return err
	}
	left := func(userID controlplane.ID) gateway.Predicate {
		return gateway.All(gateway.Where("user_id", userID), gateway.Null("channel_id"))
	}
	return []Step{
		{
			Name: "voice join guest",
			Act: func(ctx context.Context, env *Env) error {
				_, err := s.guestOne.JoinVoice(ctx, s.voiceChannelID)
				return err
			},
			Realtime: func(ctx context.Context, env *Env) error {
				return awaitVoice(ctx, env, s.voiceState(s.guestOne.UserID()))
			},
		},
		{
			Name: "voice join admin",
			Act: func(ctx context.Context, env *Env) error {
				_, err := s.admin.JoinVoice(ctx, s.voiceChannelID)
				return err
			},
			Realtime: func(ctx context.Context, env *Env) error {
				return awaitVoice(ctx, env, s.voiceState(s.admin.UserID()))
			},
		},
		{
			Name: "stream start",
			Act: func(ctx context.Context, env *Env) error {
				_, err := s.admin.StartStream(ctx, s.voiceChannelID, controlplane.StreamRequest{
					Title:         "fed-live-stream",
					QualityPreset: "1080p60",
				})
				return err
			},
			Realtime: func(ctx context.Context, env *Env) error {
				return awaitVoice(ctx, env, s.voiceState(s.admin.UserID(), gateway.Where("self_stream", true)))
			},
		},
		{
			Name: "stream stop",
			Act: func(ctx context.Context, env *Env) error {
				return s.admin.StopStream(ctx, s.voiceChannelID)
			},
			Realtime: func(ctx context.Context, env *Env) error {
				return awaitVoice(ctx, env, s.voiceState(s.admin.UserID(), gateway.Where("self_stream", false)))
			},
		},
		{
			Name: "voice leave admin",
			Act: func(ctx context.Context, env *Env) error {
				return s.admin.LeaveVoice(ctx, s.voiceChannelID)
			},
			Realtime: func(ctx context.Context, env *Env) error {
				return awaitVoice(ctx, env, left(s.admin.UserID()))
			},
		},
		{
			Name: "voice leave guest",
			Act: func(ctx context.Context, env *Env) error {
				return s.guestOne.LeaveVoice(ctx, s.voiceChannelID)
			},
			Realtime: func(ctx context.Context, env *Env) error {
				return awaitVoice(ctx, env, left(s.guestOne.UserID()))
			},
		},
	}
}
