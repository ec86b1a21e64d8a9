package gateway

// https://discord.com/developers/docs/events/gateway#message-content-intent
type GatewayIntent = int

var (
	GuildsIntent                      = 1 << 0
	GuildMembersIntent                = 1 << 1
	GuildModerationIntent             = 1 << 2
	GuildExpressionIntent             = 1 << 3
	GuildIntegrationsIntent           = 1 << 4
	GuildWebhooksIntent               = 1 << 5
	GuildInvitesIntent                = 1 << 6
	GuildVoiceStatesIntent            = 1 << 7
	GuildPresencesIntent              = 1 << 8
	GuildMessagesIntent               = 1 << 9
	GuildMessageReactionIntent        = 1 << 10
	GuildMessageTypingIntent          = 1 << 11
	DirectMessageIntent               = 1 << 12
	DirectMessageReactionIntent       = 1 << 13
	DirectMessageTypingIntent         = 1 << 14
	MessageContentIntent              = 1 << 15
	GuildScheduledEventsIntent        = 1 << 16
	AutoModerationConfigurationIntent = 1 << 20
	AutoModerationExecutionIntent     = 1 << 21
	GuildMessagePollsIntent           = 1 << 24
	DirectMessagePollsIntent          = 1 << 25
)

type GatewayOpcode = int

const (
	OpcodeDispatch                GatewayOpcode = 0
	OpcodeHeartbeat               GatewayOpcode = 1
	OpcodeIdentify                GatewayOpcode = 2
	OpcodePresenceUpdate          GatewayOpcode = 3
	OpcodeVoiceStateUpdate        GatewayOpcode = 4
	OpcodeResume                  GatewayOpcode = 6
	OpcodeReconnect               GatewayOpcode = 7
	OpcodeRequestGuildMembers     GatewayOpcode = 8
	OpcodeInvalidSession          GatewayOpcode = 9
	OpcodeHello                   GatewayOpcode = 10
	OpcodeHeartbeatAck            GatewayOpcode = 11
	OpcodeRequestSoundboardSounds GatewayOpcode = 31
)

type GatewayCloseEventCode = int

const (
	CloseUnknownError         GatewayCloseEventCode = 4000
	CloseUnknownOpcode        GatewayCloseEventCode = 4001
	CloseDecodeError          GatewayCloseEventCode = 4002
	CloseNotAuthenticated     GatewayCloseEventCode = 4003
	CloseAuthenticationFailed GatewayCloseEventCode = 4004
	CloseAlreadyAuthenticated GatewayCloseEventCode = 4005
	CloseInvalidSeq           GatewayCloseEventCode = 4007
	CloseRateLimited          GatewayCloseEventCode = 4008
	CloseSessionTimedOut      GatewayCloseEventCode = 4009
	CloseInvalidShard         GatewayCloseEventCode = 4010
	CloseShardingRequired     GatewayCloseEventCode = 4011
	CloseInvalidAPIVersion    GatewayCloseEventCode = 4012
	CloseInvalidIntents       GatewayCloseEventCode = 4013
	CloseDisallowedIntents    GatewayCloseEventCode = 4014
)

// CloseCodeString names a documented gateway close code.
func CloseCodeString(code int) string {
	switch code {
	case CloseUnknownError:
		return "Unknown error"
	case CloseUnknownOpcode:
		return "Unknown opcode"
	case CloseDecodeError:
		return "Decode error"
	case CloseNotAuthenticated:
		return "Not authenticated"
	case CloseAuthenticationFailed:
		return "Authentication failed"
	case CloseAlreadyAuthenticated:
		return "Already authenticated"
	case CloseInvalidSeq:
		return "Invalid seq"
	case CloseRateLimited:
		return "Rate limited"
	case CloseSessionTimedOut:
		return "Session timed out"
	case CloseInvalidShard:
		return "Invalid shard"
	case CloseShardingRequired:
		return "Sharding required"
	case CloseInvalidAPIVersion:
		return "Invalid API version"
	case CloseInvalidIntents:
		return "Invalid intent(s)"
	case CloseDisallowedIntents:
		return "Disallowed intent(s)"
	}
	return "Unknown"
}

// closeCodeShouldReconnect reports whether a session may be reestablished
// after closing with the given code.
func closeCodeShouldReconnect(code int) bool {
	switch code {
	case CloseAuthenticationFailed,
		CloseInvalidShard,
		CloseShardingRequired,
		CloseInvalidAPIVersion,
		CloseInvalidIntents,
		CloseDisallowedIntents:
		return false
	}
	return true
}

// closeRequiresReidentify reports close codes after which the old session is
// unusable and the client must identify from scratch.
func closeRequiresReidentify(code int) bool {
	switch code {
	case CloseInvalidSeq, CloseSessionTimedOut:
		return true
	}
	return false
}

// State is the connection lifecycle position, advanced only inside Process.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateIdentifying
	StateReady
	StateResuming
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateIdentifying:
		return "identifying"
	case StateReady:
		return "ready"
	case StateResuming:
		return "resuming"
	case StateReconnecting:
		return "reconnecting"
	}
	return "unknown"
}
