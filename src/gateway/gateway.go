// Package gateway implements the realtime side of the Discord API: one
// websocket session with heartbeating, identify/resume, dispatch delivery,
// send rate limiting and automatic reconnection. All protocol state advances
// inside Process on the caller's goroutine; only the transport's read pump
// runs concurrently.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/skua-io/skua/src/errs"
	"github.com/skua-io/skua/src/structs"
	"github.com/skua-io/skua/src/wire"
)

const (
	sendLimit         = 120
	sendWindow        = 60 * time.Second
	identifyInterval  = 5 * time.Second
	invalidSessionMin = time.Second
	invalidSessionMax = 5 * time.Second
	reconnectMin      = time.Second
	reconnectMax      = 30 * time.Second
	maxNonceLength    = 32
	maxGuildMemberIDs = 100
	minLargeThreshold = 50
	maxLargeThreshold = 250
)

type Config struct {
	Token   string
	Intents int

	ShardID    int
	ShardCount int

	// LargeThreshold is the member-count cutoff for offline member lists in
	// guild payloads. Zero omits it; otherwise 50..250.
	LargeThreshold int

	// Compress enables transport-level zlib-stream compression. Mutually
	// exclusive with PayloadCompression.
	Compress           bool
	PayloadCompression bool

	HeartbeatTimeout time.Duration
	ConnectTimeout   time.Duration

	UserAgent string

	// OnEvent receives each dispatch's name and raw payload. Called from
	// inside Process.
	OnEvent func(name string, data []byte)

	// OnStateChange observes every state transition.
	OnStateChange func(state State)

	Logger *slog.Logger
}

// Client is a single gateway session. It is not safe for concurrent use;
// drive it from one goroutine via Process.
type Client struct {
	token              string
	intents            int
	shardID            int
	shardCount         int
	largeThreshold     int
	compress           bool
	payloadCompression bool
	heartbeatTimeout   time.Duration
	connectTimeout     time.Duration
	userAgent          string
	onEvent            func(name string, data []byte)
	onStateChange      func(state State)
	logger             *slog.Logger

	ctx          context.Context
	transport    Transport
	newTransport func() Transport

	state     State
	baseURL   string
	resumeURL string
	sessionID string

	heartbeatInterval time.Duration
	nextHeartbeat     time.Time
	lastHeartbeat     time.Time
	lastHeartbeatAck  time.Time
	awaitingAck       bool

	hasSeq          bool
	lastSeq         int64
	hasDispatchSeq  bool
	lastDispatchSeq int64

	shouldResume       bool
	reconnectRequested bool
	manualDisconnect   bool
	reconnectAt        time.Time
	backoff            *backoff.ExponentialBackOff

	sendCount       int
	sendWindowStart time.Time
	lastIdentify    time.Time

	outbox     []outgoing
	compressed []byte
	inflater   zlibStream

	lastErr error

	now       func() time.Time
	randFloat func() float64
}

func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: missing token", errs.ErrInvalidParam)
	}
	if cfg.ShardCount == 0 && cfg.ShardID != 0 {
		return nil, fmt.Errorf("%w: shard id without shard count", errs.ErrInvalidParam)
	}
	if cfg.ShardCount > 0 && (cfg.ShardID < 0 || cfg.ShardID >= cfg.ShardCount) {
		return nil, fmt.Errorf("%w: shard id %d out of range", errs.ErrInvalidParam, cfg.ShardID)
	}
	if cfg.LargeThreshold != 0 &&
		(cfg.LargeThreshold < minLargeThreshold || cfg.LargeThreshold > maxLargeThreshold) {
		return nil, fmt.Errorf("%w: large threshold %d out of range", errs.ErrInvalidParam, cfg.LargeThreshold)
	}
	if cfg.Compress && cfg.PayloadCompression {
		return nil, fmt.Errorf("%w: transport and payload compression are mutually exclusive", errs.ErrInvalidParam)
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = wire.DefaultUserAgent()
	} else if !wire.ValidUserAgent(ua) {
		return nil, fmt.Errorf("%w: malformed user agent: %q", errs.ErrInvalidParam, ua)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = reconnectMin
	bo.Multiplier = 2
	bo.MaxInterval = reconnectMax
	bo.RandomizationFactor = 0.2
	bo.MaxElapsedTime = 0
	bo.Reset()

	c := &Client{
		token:              cfg.Token,
		intents:            cfg.Intents,
		shardID:            cfg.ShardID,
		shardCount:         cfg.ShardCount,
		largeThreshold:     cfg.LargeThreshold,
		compress:           cfg.Compress,
		payloadCompression: cfg.PayloadCompression,
		heartbeatTimeout:   cfg.HeartbeatTimeout,
		connectTimeout:     cfg.ConnectTimeout,
		userAgent:          ua,
		onEvent:            cfg.OnEvent,
		onStateChange:      cfg.OnStateChange,
		logger:             logger,

		ctx:          context.Background(),
		newTransport: newWSTransport,
		state:        StateDisconnected,
		backoff:      bo,
		now:          time.Now,
		randFloat:    rand.Float64,
	}
	return c, nil
}

// The gateway allows 120 sends per 60 seconds, counted against a hard
// window: once the budget is spent, nothing goes out until the window that
// opened with its first send has elapsed.
func (c *Client) sendAllowed(now time.Time) bool {
	if c.sendWindowStart.IsZero() || now.Sub(c.sendWindowStart) >= sendWindow {
		c.sendWindowStart = now
		c.sendCount = 0
	}
	return c.sendCount < sendLimit
}

func (c *Client) setState(state State) {
	if c.state == state {
		return
	}
	c.state = state
	c.logger.Debug("gateway state changed", "state", state.String())
	if c.onStateChange != nil {
		c.onStateChange(state)
	}
}

// Connect dials the gateway. With an empty URL it prefers the cached resume
// URL, then the URL of the last explicit Connect. The context also bounds
// later reconnect dials.
func (c *Client) Connect(ctx context.Context, gatewayURL string) error {
	if c.transport != nil {
		return fmt.Errorf("%w: already connected", errs.ErrInvalidState)
	}
	c.ctx = ctx

	if gatewayURL == "" {
		switch {
		case c.resumeURL != "" && c.sessionID != "":
			gatewayURL = c.resumeURL
			c.shouldResume = true
		case c.baseURL != "":
			gatewayURL = c.baseURL
			c.shouldResume = false
		default:
			return fmt.Errorf("%w: no gateway url", errs.ErrInvalidParam)
		}
	} else {
		c.baseURL = gatewayURL
		c.shouldResume = false
	}

	connectURL, err := wire.BuildGatewayURL(gatewayURL, c.compress)
	if err != nil {
		return err
	}

	dialCtx := ctx
	if c.connectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.connectTimeout)
		defer cancel()
	}

	c.setState(StateConnecting)
	tr := c.newTransport()
	header := http.Header{"User-Agent": []string{c.userAgent}}
	if err := tr.Dial(dialCtx, connectURL, header); err != nil {
		c.setState(StateDisconnected)
		return err
	}

	c.transport = tr
	c.reconnectRequested = false
	c.backoff.Reset()
	c.setState(StateConnected)
	c.logger.Info("gateway connected", "url", connectURL)
	return nil
}

// Disconnect closes the connection without scheduling a reconnect. The close
// completes on a later Process call when the read pump drains.
func (c *Client) Disconnect() error {
	if c.transport != nil {
		c.manualDisconnect = true
		_ = c.transport.Close()
	}
	c.setState(StateDisconnected)
	return nil
}

// GetState returns the current lifecycle state.
func (c *Client) GetState() State {
	return c.state
}

// Process services the connection for at most timeout: it reads and handles
// pending frames, sends due heartbeats, performs scheduled reconnects and
// flushes the outbox. It returns the first error recorded since the previous
// call; the client keeps running after any returned error that is not
// terminal.
func (c *Client) Process(timeout time.Duration) error {
	c.service(timeout)
	c.maybeHeartbeat()
	c.maybeReconnect()
	c.flushOutbox()

	err := c.lastErr
	c.lastErr = nil
	return err
}

func (c *Client) service(timeout time.Duration) {
	if c.transport == nil {
		if timeout > 0 && c.reconnectRequested {
			if wait := c.reconnectAt.Sub(c.now()); wait > 0 {
				if wait > timeout {
					wait = timeout
				}
				time.Sleep(wait)
			}
		}
		return
	}
	if c.drain() || timeout <= 0 {
		return
	}
	select {
	case msg, ok := <-c.transport.Recv():
		if !ok {
			return
		}
		c.handleIncoming(msg)
	case <-time.After(timeout):
		return
	}
	c.drain()
}

// drain handles every frame already buffered, without blocking.
func (c *Client) drain() bool {
	processed := false
	for c.transport != nil {
		select {
		case msg, ok := <-c.transport.Recv():
			if !ok {
				return processed
			}
			c.handleIncoming(msg)
			processed = true
		default:
			return processed
		}
	}
	return processed
}

func (c *Client) handleIncoming(msg Incoming) {
	if msg.Err != nil {
		c.handleDisconnect(msg.Err)
		return
	}
	if c.compress {
		c.compressed = append(c.compressed, msg.Data...)
		if !hasZlibSuffix(c.compressed) {
			return
		}
		payload, err := c.inflater.Decompress(c.compressed)
		c.compressed = c.compressed[:0]
		if err != nil {
			c.lastErr = err
			return
		}
		if err := c.handlePayload(payload); err != nil {
			c.lastErr = err
		}
		return
	}
	if err := c.handlePayload(msg.Data); err != nil {
		c.lastErr = err
	}
}

// handleDisconnect finalizes a dropped connection: terminal close codes stop
// the session, everything else schedules a reconnect with the session
// cleared when the code demands a fresh identify.
func (c *Client) handleDisconnect(err error) {
	code := 0
	var ce *CloseError
	if errors.As(err, &ce) {
		code = ce.Code
		c.logger.Warn("gateway closed by server", "code", ce.Code, "reason", CloseCodeString(ce.Code))
	} else if !c.manualDisconnect {
		c.lastErr = err
		c.logger.Warn("gateway connection lost", "error", err)
	}

	if code >= 4000 && !closeCodeShouldReconnect(code) {
		c.reconnectRequested = false
		c.clearSession()
		switch code {
		case CloseAuthenticationFailed:
			c.lastErr = fmt.Errorf("%w: %s", errs.ErrUnauthorized, CloseCodeString(code))
		case CloseInvalidIntents, CloseDisallowedIntents:
			c.lastErr = fmt.Errorf("%w: %s", errs.ErrInvalidParam, CloseCodeString(code))
		default:
			c.lastErr = fmt.Errorf("%w: %s", errs.ErrInvalidState, CloseCodeString(code))
		}
		c.manualDisconnect = true
	} else if c.manualDisconnect {
		c.clearSession()
	} else if closeRequiresReidentify(code) {
		c.clearSession()
	}

	c.transport = nil
	c.setState(StateDisconnected)
	if !c.manualDisconnect {
		c.scheduleReconnect()
	} else {
		c.manualDisconnect = false
	}
}

func (c *Client) closeTransport() {
	if c.transport == nil {
		return
	}
	_ = c.transport.Close()
	c.transport = nil
}

func (c *Client) clearSession() {
	c.shouldResume = false
	c.hasSeq = false
	c.lastSeq = 0
	c.hasDispatchSeq = false
	c.lastDispatchSeq = 0
	c.sessionID = ""
	c.resumeURL = ""
}

func (c *Client) scheduleReconnect() {
	delay := c.backoff.NextBackOff()
	if delay > reconnectMax {
		delay = reconnectMax
	}
	c.scheduleReconnectIn(delay)
}

func (c *Client) scheduleReconnectIn(delay time.Duration) {
	c.reconnectAt = c.now().Add(delay)
	c.reconnectRequested = true

	c.awaitingAck = false
	c.heartbeatInterval = 0
	c.nextHeartbeat = time.Time{}
	c.lastHeartbeat = time.Time{}
	c.lastHeartbeatAck = time.Time{}
	c.compressed = c.compressed[:0]
	c.sendCount = 0
	c.sendWindowStart = time.Time{}
	c.outboxClear()
	c.inflater.Reset()
	c.logger.Info("gateway reconnect scheduled", "delay", delay)
}

type rawFrame struct {
	Op *int            `json:"op"`
	D  json.RawMessage `json:"d"`
	S  *int64          `json:"s"`
	T  *string         `json:"t"`
}

func (c *Client) handlePayload(data []byte) error {
	var frame rawFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return fmt.Errorf("%w: gateway frame: %s", errs.ErrJSON, err)
	}
	if frame.Op == nil {
		return fmt.Errorf("%w: gateway frame missing op", errs.ErrFormat)
	}
	if frame.S != nil && (!c.hasSeq || *frame.S > c.lastSeq) {
		c.hasSeq = true
		c.lastSeq = *frame.S
	}

	switch *frame.Op {
	case OpcodeHello:
		return c.handleHello(frame.D)
	case OpcodeHeartbeat:
		payload, err := c.buildHeartbeat()
		if err != nil {
			return err
		}
		return c.outboxPush(payload, true, c.now(), OpcodeHeartbeat)
	case OpcodeHeartbeatAck:
		c.awaitingAck = false
		c.lastHeartbeatAck = c.now()
	case OpcodeReconnect:
		// The server wants a fresh connection; resume state is kept.
		c.closeTransport()
		c.scheduleReconnect()
		c.setState(StateReconnecting)
	case OpcodeInvalidSession:
		c.handleInvalidSession(frame.D)
	case OpcodeDispatch:
		c.handleDispatch(frame)
	}
	return nil
}

func (c *Client) handleHello(d json.RawMessage) error {
	var hello structs.HelloEventData
	if err := json.Unmarshal(d, &hello); err != nil {
		return fmt.Errorf("%w: hello payload: %s", errs.ErrFormat, err)
	}
	now := c.now()
	c.heartbeatInterval = time.Duration(hello.HeartbeatInterval) * time.Millisecond
	// First heartbeat fires after a random fraction of the interval so a
	// fleet of shards does not thunder in step.
	c.nextHeartbeat = now.Add(time.Duration(c.randFloat() * float64(c.heartbeatInterval)))
	c.awaitingAck = false
	c.lastHeartbeatAck = now

	if c.shouldResume && c.hasSeq && c.sessionID != "" && c.resumeURL != "" {
		payload, err := c.buildResume()
		if err != nil {
			return err
		}
		if err := c.outboxPush(payload, true, now, OpcodeResume); err != nil {
			return err
		}
		c.setState(StateResuming)
		return nil
	}

	payload, err := c.buildIdentify()
	if err != nil {
		return err
	}
	due := now
	if !c.lastIdentify.IsZero() && now.Sub(c.lastIdentify) < identifyInterval {
		due = c.lastIdentify.Add(identifyInterval)
	}
	if err := c.outboxPush(payload, true, due, OpcodeIdentify); err != nil {
		return err
	}
	c.setState(StateIdentifying)
	return nil
}

func (c *Client) handleInvalidSession(d json.RawMessage) {
	resumable := false
	_ = json.Unmarshal(d, &resumable)
	c.shouldResume = resumable
	if !resumable {
		c.clearSession()
	}
	delay := invalidSessionMin +
		time.Duration(c.randFloat()*float64(invalidSessionMax-invalidSessionMin))
	c.closeTransport()
	c.backoff.Reset()
	c.scheduleReconnectIn(delay)
	c.setState(StateReconnecting)
	c.logger.Info("gateway session invalidated", "resumable", resumable, "delay", delay)
}

func (c *Client) handleDispatch(frame rawFrame) {
	if frame.T == nil || *frame.T == "" {
		return
	}
	if frame.S != nil {
		if c.hasDispatchSeq && *frame.S <= c.lastDispatchSeq {
			return
		}
		c.hasDispatchSeq = true
		c.lastDispatchSeq = *frame.S
	}
	switch *frame.T {
	case "READY":
		var ready structs.ReadyEventData
		if err := json.Unmarshal(frame.D, &ready); err == nil {
			if ready.ResumeGatewayURL != "" {
				c.resumeURL = ready.ResumeGatewayURL
			}
			if ready.SessionID != "" {
				c.sessionID = ready.SessionID
			}
		}
		c.shouldResume = true
		c.setState(StateReady)
	case "RESUMED":
		c.setState(StateReady)
	}
	if c.onEvent != nil && len(frame.D) > 0 {
		c.onEvent(*frame.T, frame.D)
	}
}

func (c *Client) maybeHeartbeat() {
	if c.transport == nil || c.heartbeatInterval == 0 {
		return
	}
	now := c.now()
	if now.Before(c.nextHeartbeat) {
		return
	}

	if c.awaitingAck {
		timeout := c.heartbeatTimeout
		if timeout == 0 {
			timeout = c.heartbeatInterval
		}
		if now.Sub(c.lastHeartbeat) > timeout {
			c.lastErr = fmt.Errorf("%w: heartbeat ack overdue", errs.ErrTimeout)
			c.logger.Warn("heartbeat ack overdue, recycling connection")
			c.closeTransport()
			c.setState(StateDisconnected)
			c.scheduleReconnect()
			return
		}
	}

	payload, err := c.buildHeartbeat()
	if err != nil {
		c.lastErr = err
		return
	}
	if err := c.outboxPush(payload, true, now, OpcodeHeartbeat); err != nil {
		c.lastErr = err
		return
	}
	c.lastHeartbeat = now
	c.awaitingAck = true
	c.nextHeartbeat = now.Add(c.heartbeatInterval)
}

func (c *Client) maybeReconnect() {
	if !c.reconnectRequested || c.transport != nil {
		return
	}
	if c.now().Before(c.reconnectAt) {
		return
	}
	if err := c.Connect(c.ctx, ""); err != nil {
		c.logger.Warn("gateway reconnect failed", "error", err)
		c.scheduleReconnect()
	}
}

func (c *Client) flushOutbox() {
	for c.transport != nil && len(c.outbox) > 0 {
		now := c.now()
		idx := c.outboxNextReady(now)
		if idx < 0 {
			return
		}
		if !c.sendAllowed(now) {
			return
		}
		msg := c.outbox[idx]
		c.outbox = append(c.outbox[:idx], c.outbox[idx+1:]...)
		if err := c.transport.Send(msg.payload); err != nil {
			c.lastErr = err
			return
		}
		c.sendCount++
		if msg.op == OpcodeIdentify {
			c.lastIdentify = now
		}
	}
}

// UpdatePresence queues a presence update. Requires a ready session.
func (c *Client) UpdatePresence(status, activityName string, activityType int) error {
	if status == "" {
		return fmt.Errorf("%w: empty presence status", errs.ErrInvalidParam)
	}
	if c.transport == nil || c.state != StateReady {
		return fmt.Errorf("%w: gateway not ready", errs.ErrInvalidState)
	}
	payload, err := buildPresenceUpdate(status, activityName, activityType)
	if err != nil {
		return err
	}
	return c.outboxPush(payload, true, c.now(), OpcodePresenceUpdate)
}

// RequestGuildMembers asks the gateway to stream a guild's member chunks.
// Exactly one of Query and UserIDs must be set; an empty nonce gets a
// generated one so responses can be correlated.
func (c *Client) RequestGuildMembers(req structs.RequestGuildMembersData) error {
	if !req.GuildID.IsValid() {
		return fmt.Errorf("%w: invalid guild id", errs.ErrInvalidParam)
	}
	hasQuery := req.Query != nil
	hasUserIDs := len(req.UserIDs) > 0
	if hasQuery == hasUserIDs {
		return fmt.Errorf("%w: exactly one of query and user_ids required", errs.ErrInvalidParam)
	}
	if len(req.UserIDs) > maxGuildMemberIDs {
		return fmt.Errorf("%w: at most %d user ids", errs.ErrInvalidParam, maxGuildMemberIDs)
	}
	for _, id := range req.UserIDs {
		if !id.IsValid() {
			return fmt.Errorf("%w: invalid user id %q", errs.ErrInvalidParam, id)
		}
	}
	if len(req.Nonce) > maxNonceLength {
		return fmt.Errorf("%w: nonce exceeds %d characters", errs.ErrInvalidParam, maxNonceLength)
	}
	if c.transport == nil || c.state != StateReady {
		return fmt.Errorf("%w: gateway not ready", errs.ErrInvalidState)
	}
	if req.Nonce == "" {
		req.Nonce = newNonce()
	}
	if hasQuery && req.Limit == nil {
		limit := 0
		req.Limit = &limit
	}
	payload, err := buildRequestGuildMembers(req)
	if err != nil {
		return err
	}
	return c.outboxPush(payload, false, c.now(), OpcodeRequestGuildMembers)
}

// RequestSoundboardSounds queues a soundboard listing request for the given
// guilds.
func (c *Client) RequestSoundboardSounds(guildIDs []structs.Snowflake) error {
	if len(guildIDs) == 0 {
		return fmt.Errorf("%w: no guild ids", errs.ErrInvalidParam)
	}
	for _, id := range guildIDs {
		if !id.IsValid() {
			return fmt.Errorf("%w: invalid guild id %q", errs.ErrInvalidParam, id)
		}
	}
	if c.transport == nil || c.state != StateReady {
		return fmt.Errorf("%w: gateway not ready", errs.ErrInvalidState)
	}
	payload, err := buildRequestSoundboardSounds(guildIDs)
	if err != nil {
		return err
	}
	return c.outboxPush(payload, false, c.now(), OpcodeRequestSoundboardSounds)
}

// UpdateVoiceState moves the bot into (or, with a nil channel id, out of) a
// guild voice channel.
func (c *Client) UpdateVoiceState(guildID structs.Snowflake, channelID *structs.Snowflake, selfMute, selfDeaf bool) error {
	if !guildID.IsValid() {
		return fmt.Errorf("%w: invalid guild id", errs.ErrInvalidParam)
	}
	if channelID != nil && !channelID.IsValid() {
		return fmt.Errorf("%w: invalid channel id %q", errs.ErrInvalidParam, *channelID)
	}
	if c.transport == nil || c.state != StateReady {
		return fmt.Errorf("%w: gateway not ready", errs.ErrInvalidState)
	}
	payload, err := buildVoiceStateUpdate(guildID, channelID, selfMute, selfDeaf)
	if err != nil {
		return err
	}
	return c.outboxPush(payload, true, c.now(), OpcodeVoiceStateUpdate)
}
