package gateway

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/skua-io/skua/src/errs"
	"github.com/skua-io/skua/src/structs"
	"github.com/skua-io/skua/src/wire"
)

func marshalEvent(op GatewayOpcode, d any) ([]byte, error) {
	data, err := json.Marshal(structs.Event{Op: op, D: d})
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrJSON, err)
	}
	return data, nil
}

// buildHeartbeat carries the last received sequence, or null before any
// frame arrived.
func (c *Client) buildHeartbeat() ([]byte, error) {
	var d any
	if c.hasSeq {
		d = c.lastSeq
	}
	return marshalEvent(OpcodeHeartbeat, d)
}

func (c *Client) buildIdentify() ([]byte, error) {
	d := structs.IdentifyEventData{
		Token:   c.token,
		Intents: c.intents,
		Properties: structs.IdentifyEventProperties{
			Os:      runtime.GOOS,
			Browser: wire.LibraryName,
			Device:  wire.LibraryName,
		},
		LargeThreshold: c.largeThreshold,
		Compress:       c.payloadCompression,
	}
	if c.shardCount > 0 {
		d.Shard = &[2]int{c.shardID, c.shardCount}
	}
	return marshalEvent(OpcodeIdentify, d)
}

func (c *Client) buildResume() ([]byte, error) {
	return marshalEvent(OpcodeResume, structs.ResumeEventData{
		Token:     c.token,
		SessionID: c.sessionID,
		Seq:       c.lastSeq,
	})
}

func buildPresenceUpdate(status, activityName string, activityType int) ([]byte, error) {
	d := structs.PresenceUpdateData{
		Status:     status,
		Activities: []structs.Activity{},
	}
	if activityName != "" {
		d.Activities = append(d.Activities, structs.Activity{Name: activityName, Type: activityType})
	}
	return marshalEvent(OpcodePresenceUpdate, d)
}

func buildRequestGuildMembers(d structs.RequestGuildMembersData) ([]byte, error) {
	return marshalEvent(OpcodeRequestGuildMembers, d)
}

func buildRequestSoundboardSounds(guildIDs []structs.Snowflake) ([]byte, error) {
	return marshalEvent(OpcodeRequestSoundboardSounds, structs.RequestSoundboardSoundsData{
		GuildIDs: guildIDs,
	})
}

func buildVoiceStateUpdate(guildID structs.Snowflake, channelID *structs.Snowflake, selfMute, selfDeaf bool) ([]byte, error) {
	return marshalEvent(OpcodeVoiceStateUpdate, structs.GatewayVoiceState{
		GuildID:   guildID,
		ChannelID: channelID,
		SelfMute:  selfMute,
		SelfDeaf:  selfDeaf,
	})
}
