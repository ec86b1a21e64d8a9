package structs

import "encoding/json"

// RawEvent is one incoming gateway frame before its payload is interpreted.
type RawEvent struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *int64          `json:"s"`
	T  *string         `json:"t"`
}

// Event is an outgoing gateway frame.
type Event struct {
	Op int `json:"op"`
	D  any `json:"d"`
}

type HelloEventData struct {
	HeartbeatInterval int64 `json:"heartbeat_interval"`
}

type ReadyEventData struct {
	SessionID        string `json:"session_id"`
	ResumeGatewayURL string `json:"resume_gateway_url"`
}

type IdentifyEventProperties struct {
	Os      string `json:"os"`
	Browser string `json:"browser"`
	Device  string `json:"device"`
}

type IdentifyEventData struct {
	Token          string                  `json:"token"`
	Intents        int                     `json:"intents"`
	Properties     IdentifyEventProperties `json:"properties"`
	Shard          *[2]int                 `json:"shard,omitempty"`
	LargeThreshold int                     `json:"large_threshold,omitempty"`
	Compress       bool                    `json:"compress,omitempty"`
}

type ResumeEventData struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       int64  `json:"seq"`
}

type Activity struct {
	Name string `json:"name"`
	Type int    `json:"type"`
}

type PresenceUpdateData struct {
	Since      *int64     `json:"since"`
	Activities []Activity `json:"activities"`
	Status     string     `json:"status"`
	AFK        bool       `json:"afk"`
}

type RequestGuildMembersData struct {
	GuildID   Snowflake   `json:"guild_id"`
	Query     *string     `json:"query,omitempty"`
	Limit     *int        `json:"limit,omitempty"`
	Presences bool        `json:"presences,omitempty"`
	UserIDs   []Snowflake `json:"user_ids,omitempty"`
	Nonce     string      `json:"nonce,omitempty"`
}

type RequestSoundboardSoundsData struct {
	GuildIDs []Snowflake `json:"guild_ids"`
}

type GatewayVoiceState struct {
	GuildID   Snowflake  `json:"guild_id"`
	ChannelID *Snowflake `json:"channel_id"`
	SelfMute  bool       `json:"self_mute"`
	SelfDeaf  bool       `json:"self_deaf"`
}
