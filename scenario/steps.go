// Copyright 2026 The Paracord Authors
// SPDX-License-Identifier: Apache-2.0

package scenario

import (
	"context"
	"slices"

	"github.com/paracord-chat/fedcheck/controlplane"
	"github.com/paracord-chat/fedcheck/gateway"
	"github.com/paracord-chat/fedcheck/inspect"
	"github.com/paracord-chat/fedcheck/relay"
)

// guildFixture is the state a scenario's steps share: the origin guild
// and channel, the origin admin, and the message currently under test.
type guildFixture struct {
	guildID   controlplane.ID
	channelID controlplane.ID
	guildKey  int64

	admin        *controlplane.Session
	adminGateway *gateway.Session

	// observer is an origin-local member whose gateway session must
	// see channel dispatches.
	observer *gateway.Session

	messageID  controlplane.ID
	messageKey int64
	eventID    string
}

// createGuild creates the origin guild with a text channel and mirrors
// it onto every other node.
func (f *guildFixture) createGuild(ctx context.Context, env *Env, name string) error {
	origin := env.Roles.Origin
	f.admin = env.Admin(origin)
	guild, err := f.admin.CreateGuild(ctx, name)
	if err != nil {
		return err
	}
	channel, err := f.admin.EnsureTextChannel(ctx, guild.ID, "general")
	if err != nil {
		return err
	}
	f.guildID = guild.ID
	f.channelID = channel.ID
	if f.guildKey, err = localID(guild.ID); err != nil {
		return err
	}
	env.Note("guild %q (%s) created on %s with channel %s", name, guild.ID, origin, channel.ID)
	return env.Mirror(ctx, origin, guild.ID, []controlplane.ID{channel.ID}, env.Others(origin)...)
}

// join makes account a guild member through an admin invite.
func (f *guildFixture) join(ctx context.Context, account *controlplane.Session) error {
	invite, err := f.admin.CreateInvite(ctx, f.channelID)
	if err != nil {
		return err
	}
	return account.AcceptInvite(ctx, invite.Code)
}

func (f *guildFixture) messageMatch() gateway.Predicate {
	return gateway.All(gateway.Where("id", f.messageID), gateway.Where("channel_id", f.channelID))
}

// mappedContent reports whether node's copy of the message under test
// has content.
func (f *guildFixture) mappedContent(env *Env, content string) func(context.Context, string) (bool, error) {
	return func(ctx context.Context, node string) (bool, error) {
		got, found, err := env.Inspector.MappedMessageContent(ctx, node, env.Server(env.Roles.Origin), f.messageKey)
		return found && got == content, err
	}
}

func createMessageStep(f *guildFixture, content string) Step {
	return Step{
		Name: "message create",
		Act: func(ctx context.Context, env *Env) error {
			message, err := f.admin.SendMessage(ctx, f.channelID, controlplane.MessageRequest{Content: content})
			if err != nil {
				return err
			}
			f.messageID = message.ID
			if f.messageKey, err = localID(message.ID); err != nil {
				return err
			}
			f.eventID = relay.EventID(f.messageKey, env.Server(env.Roles.Origin))
			env.Note("sent message %s (%s)", message.ID, f.eventID)
			return nil
		},
		Realtime: func(ctx context.Context, env *Env) error {
			_, err := env.Await(ctx, f.observer, "MESSAGE_CREATE", f.messageMatch())
			return err
		},
		Converge: func(ctx context.Context, env *Env) error {
			return env.ConvergeOn(ctx, env.Others(env.Roles.Origin), "mapped message content = "+quote(content),
				f.mappedContent(env, content))
		},
		Relay: func(ctx context.Context, env *Env) error {
			_, err := env.ProveRelay(ctx, f.eventID)
			return err
		},
	}
}

func editMessageStep(f *guildFixture, content string) Step {
	return Step{
		Name: "message edit",
		Act: func(ctx context.Context, env *Env) error {
			_, err := f.admin.EditMessage(ctx, f.channelID, f.messageID, content)
			return err
		},
		Realtime: func(ctx context.Context, env *Env) error {
			_, err := env.Await(ctx, f.observer, "MESSAGE_UPDATE",
				gateway.All(gateway.Where("id", f.messageID), gateway.Where("content", content)))
			return err
		},
		Converge: func(ctx context.Context, env *Env) error {
			return env.ConvergeOn(ctx, env.Others(env.Roles.Origin), "mapped message content = "+quote(content),
				f.mappedContent(env, content))
		},
	}
}

// reactionMatch accepts the emoji as a bare string or as an object
// with a name.
func reactionMatch(f *guildFixture, emoji string) gateway.Predicate {
	return gateway.All(
		gateway.Where("message_id", f.messageID),
		gateway.Any(gateway.Where("emoji", emoji), gateway.Where("emoji.name", emoji)),
	)
}

func addReactionStep(f *guildFixture, emoji string) Step {
	return Step{
		Name: "reaction add",
		Act: func(ctx context.Context, env *Env) error {
			return f.admin.AddReaction(ctx, f.channelID, f.messageID, emoji)
		},
		Realtime: func(ctx context.Context, env *Env) error {
			_, err := env.Await(ctx, f.observer, "MESSAGE_REACTION_ADD", reactionMatch(f, emoji))
			return err
		},
		Converge: func(ctx context.Context, env *Env) error {
			return env.ConvergeOn(ctx, env.Others(env.Roles.Origin), "reaction "+emoji+" present",
				func(ctx context.Context, node string) (bool, error) {
					count, err := env.Inspector.ReactionCount(ctx, node, env.Server(env.Roles.Origin), f.messageKey, emoji)
					return count > 0, err
				})
		},
	}
}

func removeReactionStep(f *guildFixture, emoji string) Step {
	return Step{
		Name: "reaction remove",
		Act: func(ctx context.Context, env *Env) error {
			return f.admin.RemoveReaction(ctx, f.channelID, f.messageID, emoji)
		},
		Realtime: func(ctx context.Context, env *Env) error {
			_, err := env.Await(ctx, f.observer, "MESSAGE_REACTION_REMOVE", reactionMatch(f, emoji))
			return err
		},
		Converge: func(ctx context.Context, env *Env) error {
			return env.ConvergeOn(ctx, env.Others(env.Roles.Origin), "reaction "+emoji+" removed",
				func(ctx context.Context, node string) (bool, error) {
					count, err := env.Inspector.ReactionCount(ctx, node, env.Server(env.Roles.Origin), f.messageKey, emoji)
					return count == 0, err
				})
		},
	}
}

func deleteMessageStep(f *guildFixture) Step {
	return Step{
		Name: "message delete",
		Act: func(ctx context.Context, env *Env) error {
			return f.admin.DeleteMessage(ctx, f.channelID, f.messageID)
		},
		Realtime: func(ctx context.Context, env *Env) error {
			_, err := env.Await(ctx, f.observer, "MESSAGE_DELETE", f.messageMatch())
			return err
		},
		Converge: func(ctx context.Context, env *Env) error {
			return env.ConvergeOn(ctx, env.Others(env.Roles.Origin), "mapped message removed",
				func(ctx context.Context, node string) (bool, error) {
					return env.Inspector.MappedMessageAbsent(ctx, node, env.Server(env.Roles.Origin), f.messageKey)
				})
		},
	}
}

// remoteMemberStep joins or removes account and checks the membership
// reached every other node as a remote user.
func remoteMemberStep(f *guildFixture, account func() *controlplane.Session, joining bool) Step {
	name, eventType := "member leave", "GUILD_MEMBER_REMOVE"
	if joining {
		name, eventType = "member join", "GUILD_MEMBER_ADD"
	}
	return Step{
		Name: name,
		Act: func(ctx context.Context, env *Env) error {
			if joining {
				return f.join(ctx, account())
			}
			return account().LeaveGuild(ctx, f.guildID)
		},
		Realtime: func(ctx context.Context, env *Env) error {
			_, err := env.Await(ctx, f.adminGateway, eventType,
				gateway.All(gateway.Where("guild_id", f.guildID), gateway.Where("user_id", account().UserID())))
			return err
		},
		Converge: func(ctx context.Context, env *Env) error {
			remoteUser := inspect.RemoteUserID(account().Username(), env.Server(env.Roles.Origin))
			description := remoteUser + " is a member"
			if !joining {
				description = remoteUser + " is not a member"
			}
			return env.ConvergeOn(ctx, env.Others(env.Roles.Origin), description,
				func(ctx context.Context, node string) (bool, error) {
					if joining {
						present, _, err := env.Inspector.RemoteMemberPresent(ctx, node, remoteUser, f.guildKey)
						return present, err
					}
					return env.Inspector.RemoteMemberAbsent(ctx, node, remoteUser, f.guildKey)
				})
		},
	}
}

func trustUnchangedStep() Step {
	return Step{Name: "trust unchanged", Converge: trustUnchanged}
}

// memberIDs returns the user IDs in members.
func memberIDs(members []controlplane.Member) []controlplane.ID {
	ids := make([]controlplane.ID, 0, len(members))
	for _, member := range members {
		ids = append(ids, member.UserID)
	}
	return ids
}

func containsID(ids []controlplane.ID, id controlplane.ID) bool {
	return slices.Contains(ids, id)
}

func quote(text string) string { return `"` + text + `"` }
