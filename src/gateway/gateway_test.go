package gateway

import (
	"compress/zlib"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skua-io/skua/src/errs"
	"github.com/skua-io/skua/src/structs"
)

type fakeTransport struct {
	recv    chan Incoming
	sent    [][]byte
	dials   []string
	dialErr error
	closed  bool
}

func (f *fakeTransport) Dial(_ context.Context, url string, _ http.Header) error {
	if f.dialErr != nil {
		return f.dialErr
	}
	f.dials = append(f.dials, url)
	f.recv = make(chan Incoming, 64)
	f.closed = false
	return nil
}

func (f *fakeTransport) Recv() <-chan Incoming { return f.recv }

func (f *fakeTransport) Send(data []byte) error {
	f.sent = append(f.sent, data)
	return nil
}

func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func (f *fakeTransport) push(t *testing.T, frame string) {
	t.Helper()
	f.recv <- Incoming{Data: []byte(frame)}
}

func (f *fakeTransport) pushErr(err error) {
	f.recv <- Incoming{Err: err}
	close(f.recv)
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestClient(t *testing.T, cfg Config) (*Client, *fakeTransport, *testClock) {
	t.Helper()
	if cfg.Token == "" {
		cfg.Token = "test-token"
	}
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := New(cfg)
	require.NoError(t, err)

	ft := &fakeTransport{}
	clock := &testClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	c.newTransport = func() Transport { return ft }
	c.now = clock.Now
	c.randFloat = func() float64 { return 0 }
	return c, ft, clock
}

func connectReady(t *testing.T, c *Client, ft *fakeTransport) {
	t.Helper()
	require.NoError(t, c.Connect(context.Background(), "wss://gateway.discord.gg"))
	ft.push(t, `{"op": 10, "d": {"heartbeat_interval": 41250}}`)
	require.NoError(t, c.Process(0))
	ft.push(t, `{"op": 11}`)
	ft.push(t, `{"op": 0, "s": 1, "t": "READY", "d": {"session_id": "sess", "resume_gateway_url": "wss://resume.discord.gg"}}`)
	require.NoError(t, c.Process(0))
	require.Equal(t, StateReady, c.GetState())
}

func sentOps(t *testing.T, ft *fakeTransport) []int {
	t.Helper()
	var ops []int
	for _, raw := range ft.sent {
		var frame struct {
			Op int `json:"op"`
		}
		require.NoError(t, json.Unmarshal(raw, &frame))
		ops = append(ops, frame.Op)
	}
	return ops
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	assert.ErrorIs(t, err, errs.ErrInvalidParam)

	_, err = New(Config{Token: "t", ShardID: 1})
	assert.ErrorIs(t, err, errs.ErrInvalidParam)

	_, err = New(Config{Token: "t", ShardID: 2, ShardCount: 2})
	assert.ErrorIs(t, err, errs.ErrInvalidParam)

	_, err = New(Config{Token: "t", LargeThreshold: 20})
	assert.ErrorIs(t, err, errs.ErrInvalidParam)

	_, err = New(Config{Token: "t", Compress: true, PayloadCompression: true})
	assert.ErrorIs(t, err, errs.ErrInvalidParam)
}

func TestConnectValidatesURL(t *testing.T) {
	c, _, _ := newTestClient(t, Config{})
	ctx := context.Background()

	assert.ErrorIs(t, c.Connect(ctx, "https://gateway.discord.gg"), errs.ErrInvalidParam)
	assert.ErrorIs(t, c.Connect(ctx, "wss://gateway.discord.gg/?v=9"), errs.ErrInvalidParam)
	assert.ErrorIs(t, c.Connect(ctx, "wss://gateway.discord.gg/?compress=zlib-stream"), errs.ErrInvalidParam)

	assert.ErrorIs(t, c.Connect(ctx, ""), errs.ErrInvalidParam)
}

func TestConnectAppendsQueryParams(t *testing.T) {
	c, ft, _ := newTestClient(t, Config{})
	require.NoError(t, c.Connect(context.Background(), "wss://gateway.discord.gg"))
	require.Len(t, ft.dials, 1)
	assert.Equal(t, "wss://gateway.discord.gg?v=10&encoding=json", ft.dials[0])
	assert.Equal(t, StateConnected, c.GetState())

	assert.ErrorIs(t, c.Connect(context.Background(), "wss://gateway.discord.gg"), errs.ErrInvalidState)
}

func TestHelloTriggersIdentify(t *testing.T) {
	c, ft, _ := newTestClient(t, Config{Intents: GuildsIntent | GuildMessagesIntent})
	require.NoError(t, c.Connect(context.Background(), "wss://gateway.discord.gg"))

	ft.push(t, `{"op": 10, "d": {"heartbeat_interval": 41250}}`)
	require.NoError(t, c.Process(0))

	ops := sentOps(t, ft)
	require.Contains(t, ops, OpcodeIdentify)

	var identify struct {
		D structs.IdentifyEventData `json:"d"`
	}
	for _, raw := range ft.sent {
		var frame struct {
			Op int `json:"op"`
		}
		require.NoError(t, json.Unmarshal(raw, &frame))
		if frame.Op == OpcodeIdentify {
			require.NoError(t, json.Unmarshal(raw, &identify))
		}
	}
	assert.Equal(t, "test-token", identify.D.Token)
	assert.Equal(t, GuildsIntent|GuildMessagesIntent, identify.D.Intents)
}

func TestIdentifySpacing(t *testing.T) {
	c, ft, clock := newTestClient(t, Config{})
	require.NoError(t, c.Connect(context.Background(), "wss://gateway.discord.gg"))

	// A previous identify moments ago delays the next one.
	c.lastIdentify = clock.Now().Add(-time.Second)
	c.randFloat = func() float64 { return 1 } // keep the heartbeat out of the way

	ft.push(t, `{"op": 10, "d": {"heartbeat_interval": 41250}}`)
	require.NoError(t, c.Process(0))
	assert.Empty(t, ft.sent)

	clock.Advance(4 * time.Second)
	require.NoError(t, c.Process(0))
	assert.Equal(t, []int{OpcodeIdentify}, sentOps(t, ft))
}

func TestReadyStoresSession(t *testing.T) {
	c, ft, _ := newTestClient(t, Config{})
	var events []string
	c.onEvent = func(name string, data []byte) { events = append(events, name) }

	connectReady(t, c, ft)
	assert.Equal(t, "sess", c.sessionID)
	assert.Equal(t, "wss://resume.discord.gg", c.resumeURL)
	assert.True(t, c.shouldResume)
	assert.Equal(t, []string{"READY"}, events)
}

func TestDispatchSequenceDeduplication(t *testing.T) {
	c, ft, _ := newTestClient(t, Config{})
	var events []string
	c.onEvent = func(name string, data []byte) { events = append(events, name) }

	connectReady(t, c, ft)

	ft.push(t, `{"op": 0, "s": 5, "t": "MESSAGE_CREATE", "d": {}}`)
	ft.push(t, `{"op": 0, "s": 5, "t": "MESSAGE_CREATE", "d": {}}`)
	ft.push(t, `{"op": 0, "s": 4, "t": "MESSAGE_CREATE", "d": {}}`)
	ft.push(t, `{"op": 0, "s": 6, "t": "MESSAGE_CREATE", "d": {}}`)
	require.NoError(t, c.Process(0))

	assert.Equal(t, []string{"READY", "MESSAGE_CREATE", "MESSAGE_CREATE"}, events)
	assert.Equal(t, int64(6), c.lastSeq)
}

func TestHeartbeatRequestAnsweredImmediately(t *testing.T) {
	c, ft, _ := newTestClient(t, Config{})
	connectReady(t, c, ft)
	ft.sent = nil

	ft.push(t, `{"op": 1, "d": null}`)
	require.NoError(t, c.Process(0))

	require.Len(t, ft.sent, 1)
	assert.JSONEq(t, `{"op": 1, "d": 1}`, string(ft.sent[0]))
}

func TestScheduledHeartbeatCarriesSequence(t *testing.T) {
	c, ft, clock := newTestClient(t, Config{})
	connectReady(t, c, ft)
	ft.sent = nil

	clock.Advance(42 * time.Second)
	require.NoError(t, c.Process(0))

	require.Len(t, ft.sent, 1)
	assert.JSONEq(t, `{"op": 1, "d": 1}`, string(ft.sent[0]))
	assert.True(t, c.awaitingAck)

	ft.push(t, `{"op": 11}`)
	require.NoError(t, c.Process(0))
	assert.False(t, c.awaitingAck)
}

func TestMissedHeartbeatAckRecyclesConnection(t *testing.T) {
	c, ft, clock := newTestClient(t, Config{})
	connectReady(t, c, ft)

	clock.Advance(42 * time.Second)
	require.NoError(t, c.Process(0)) // heartbeat sent, awaiting ack

	clock.Advance(2 * 42 * time.Second)
	err := c.Process(0)
	assert.ErrorIs(t, err, errs.ErrTimeout)
	assert.True(t, ft.closed)
	assert.Equal(t, StateDisconnected, c.GetState())
	assert.True(t, c.reconnectRequested)
}

func TestInvalidSessionNotResumable(t *testing.T) {
	c, ft, _ := newTestClient(t, Config{})
	connectReady(t, c, ft)

	ft.push(t, `{"op": 9, "d": false}`)
	require.NoError(t, c.Process(0))

	assert.Equal(t, StateReconnecting, c.GetState())
	assert.True(t, c.reconnectRequested)
	assert.False(t, c.shouldResume)
	assert.Empty(t, c.sessionID)
	assert.Empty(t, c.outbox)
}

func TestInvalidSessionResumable(t *testing.T) {
	c, ft, _ := newTestClient(t, Config{})
	connectReady(t, c, ft)

	ft.push(t, `{"op": 9, "d": true}`)
	require.NoError(t, c.Process(0))

	assert.True(t, c.shouldResume)
	assert.Equal(t, "sess", c.sessionID)
}

func TestServerReconnectRequest(t *testing.T) {
	c, ft, clock := newTestClient(t, Config{})
	connectReady(t, c, ft)

	ft.push(t, `{"op": 7, "d": null}`)
	require.NoError(t, c.Process(0))
	assert.True(t, ft.closed)
	assert.Equal(t, StateReconnecting, c.GetState())
	assert.Equal(t, "sess", c.sessionID)
	assert.True(t, c.reconnectRequested)

	// The fresh dial goes to the resume gateway.
	clock.Advance(time.Minute)
	require.NoError(t, c.Process(0))
	require.Len(t, ft.dials, 2)
	assert.Contains(t, ft.dials[1], "wss://resume.discord.gg")
}

func TestAuthenticationFailureIsTerminal(t *testing.T) {
	c, ft, _ := newTestClient(t, Config{})
	connectReady(t, c, ft)

	ft.pushErr(&CloseError{Code: CloseAuthenticationFailed})
	err := c.Process(0)
	assert.ErrorIs(t, err, errs.ErrUnauthorized)
	assert.Equal(t, StateDisconnected, c.GetState())
	assert.False(t, c.reconnectRequested)
	assert.Empty(t, c.sessionID)
}

func TestDisallowedIntentsIsTerminal(t *testing.T) {
	c, ft, _ := newTestClient(t, Config{})
	connectReady(t, c, ft)

	ft.pushErr(&CloseError{Code: CloseDisallowedIntents})
	err := c.Process(0)
	assert.ErrorIs(t, err, errs.ErrInvalidParam)
	assert.False(t, c.reconnectRequested)
}

func TestSessionTimeoutClearsSessionAndReconnects(t *testing.T) {
	c, ft, _ := newTestClient(t, Config{})
	connectReady(t, c, ft)

	ft.pushErr(&CloseError{Code: CloseSessionTimedOut})
	require.NoError(t, c.Process(0))
	assert.True(t, c.reconnectRequested)
	assert.Empty(t, c.sessionID)
	assert.False(t, c.shouldResume)
}

func TestGenericCloseKeepsSessionForResume(t *testing.T) {
	c, ft, clock := newTestClient(t, Config{})
	connectReady(t, c, ft)

	ft.pushErr(&CloseError{Code: CloseUnknownError})
	require.NoError(t, c.Process(0))
	assert.True(t, c.reconnectRequested)
	assert.Equal(t, "sess", c.sessionID)

	clock.Advance(time.Minute)
	require.NoError(t, c.Process(0))
	require.Len(t, ft.dials, 2)
	assert.Contains(t, ft.dials[1], "wss://resume.discord.gg")

	// The resumed connection answers Hello with a Resume, not an Identify.
	c.randFloat = func() float64 { return 1 } // keep the heartbeat out of the way
	ft.push(t, `{"op": 10, "d": {"heartbeat_interval": 41250}}`)
	ft.sent = nil
	require.NoError(t, c.Process(0))
	require.Equal(t, []int{OpcodeResume}, sentOps(t, ft))
	assert.Equal(t, StateResuming, c.GetState())

	var resume struct {
		D structs.ResumeEventData `json:"d"`
	}
	require.NoError(t, json.Unmarshal(ft.sent[0], &resume))
	assert.Equal(t, "sess", resume.D.SessionID)
	assert.Equal(t, int64(1), resume.D.Seq)

	ft.push(t, `{"op": 0, "s": 2, "t": "RESUMED", "d": {}}`)
	require.NoError(t, c.Process(0))
	assert.Equal(t, StateReady, c.GetState())
}

func TestReconnectBackoffDoublesAndResets(t *testing.T) {
	c, ft, clock := newTestClient(t, Config{})
	connectReady(t, c, ft)

	ft.pushErr(&CloseError{Code: CloseUnknownError})
	ft.dialErr = fmt.Errorf("%w: dial refused", errs.ErrTransport)
	require.NoError(t, c.Process(0))

	var delays []time.Duration
	for i := 0; i < 7; i++ {
		require.True(t, c.reconnectRequested)
		delay := c.reconnectAt.Sub(clock.Now())
		delays = append(delays, delay)
		clock.Advance(delay)
		require.NoError(t, c.Process(0))
	}

	// Doubling with bounded jitter until the cap pins the delay.
	for i, base := range []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
	} {
		assert.GreaterOrEqual(t, delays[i], base*3/4, "delay %d", i)
		assert.LessOrEqual(t, delays[i], base*5/4, "delay %d", i)
	}
	for i := 0; i < 4; i++ {
		assert.Greater(t, delays[i+1], delays[i])
	}
	for _, d := range delays[5:] {
		assert.GreaterOrEqual(t, d, reconnectMax*3/4)
		assert.LessOrEqual(t, d, reconnectMax)
	}

	// A successful dial resets the schedule back to the minimum.
	ft.dialErr = nil
	clock.Advance(c.reconnectAt.Sub(clock.Now()))
	require.NoError(t, c.Process(0))
	require.False(t, c.reconnectRequested)

	ft.pushErr(&CloseError{Code: CloseUnknownError})
	require.NoError(t, c.Process(0))
	next := c.reconnectAt.Sub(clock.Now())
	assert.GreaterOrEqual(t, next, time.Second*3/4)
	assert.LessOrEqual(t, next, time.Second*5/4)
}

func TestDisconnectSuppressesReconnect(t *testing.T) {
	c, ft, _ := newTestClient(t, Config{})
	connectReady(t, c, ft)

	require.NoError(t, c.Disconnect())
	assert.True(t, ft.closed)

	ft.pushErr(&CloseError{Code: 1000})
	require.NoError(t, c.Process(0))
	assert.False(t, c.reconnectRequested)
	assert.Empty(t, c.sessionID)
}

func TestMalformedFrameSurfacedOnce(t *testing.T) {
	c, ft, _ := newTestClient(t, Config{})
	connectReady(t, c, ft)

	ft.push(t, `{"op":`)
	err := c.Process(0)
	assert.ErrorIs(t, err, errs.ErrJSON)
	assert.Equal(t, StateReady, c.GetState())

	require.NoError(t, c.Process(0))
}

func TestFrameWithoutOpRejected(t *testing.T) {
	c, ft, _ := newTestClient(t, Config{})
	connectReady(t, c, ft)

	ft.push(t, `{"d": {}}`)
	assert.ErrorIs(t, c.Process(0), errs.ErrFormat)
}

func TestUpdatePresence(t *testing.T) {
	c, ft, _ := newTestClient(t, Config{})

	assert.ErrorIs(t, c.UpdatePresence("online", "", 0), errs.ErrInvalidState)

	connectReady(t, c, ft)
	ft.sent = nil

	require.NoError(t, c.UpdatePresence("idle", "with fire", 0))
	require.NoError(t, c.Process(0))
	require.Len(t, ft.sent, 1)
	assert.JSONEq(t,
		`{"op": 3, "d": {"since": null, "status": "idle", "afk": false, "activities": [{"name": "with fire", "type": 0}]}}`,
		string(ft.sent[0]))
}

func TestRequestGuildMembersValidation(t *testing.T) {
	c, ft, _ := newTestClient(t, Config{})
	connectReady(t, c, ft)

	query := ""
	err := c.RequestGuildMembers(structs.RequestGuildMembersData{GuildID: "bad"})
	assert.ErrorIs(t, err, errs.ErrInvalidParam)

	// Neither query nor user ids.
	err = c.RequestGuildMembers(structs.RequestGuildMembersData{GuildID: "123"})
	assert.ErrorIs(t, err, errs.ErrInvalidParam)

	// Both at once.
	err = c.RequestGuildMembers(structs.RequestGuildMembersData{
		GuildID: "123", Query: &query, UserIDs: []structs.Snowflake{"1"},
	})
	assert.ErrorIs(t, err, errs.ErrInvalidParam)

	err = c.RequestGuildMembers(structs.RequestGuildMembersData{
		GuildID: "123", Query: &query, Nonce: "this-nonce-is-way-too-long-to-be-accepted",
	})
	assert.ErrorIs(t, err, errs.ErrInvalidParam)
}

func TestRequestGuildMembersDefaultsNonce(t *testing.T) {
	c, ft, _ := newTestClient(t, Config{})
	connectReady(t, c, ft)
	ft.sent = nil

	query := "alice"
	require.NoError(t, c.RequestGuildMembers(structs.RequestGuildMembersData{
		GuildID: "123", Query: &query,
	}))
	require.NoError(t, c.Process(0))
	require.Len(t, ft.sent, 1)

	var frame struct {
		D structs.RequestGuildMembersData `json:"d"`
	}
	require.NoError(t, json.Unmarshal(ft.sent[0], &frame))
	assert.Len(t, frame.D.Nonce, 32)
	require.NotNil(t, frame.D.Limit)
	assert.Equal(t, 0, *frame.D.Limit)
}

func TestRequestSoundboardSounds(t *testing.T) {
	c, ft, _ := newTestClient(t, Config{})

	assert.ErrorIs(t, c.RequestSoundboardSounds(nil), errs.ErrInvalidParam)

	connectReady(t, c, ft)
	ft.sent = nil

	require.NoError(t, c.RequestSoundboardSounds([]structs.Snowflake{"1", "2"}))
	require.NoError(t, c.Process(0))
	require.Len(t, ft.sent, 1)
	assert.JSONEq(t, `{"op": 31, "d": {"guild_ids": ["1", "2"]}}`, string(ft.sent[0]))
}

func TestUpdateVoiceState(t *testing.T) {
	c, ft, _ := newTestClient(t, Config{})
	connectReady(t, c, ft)
	ft.sent = nil

	channel := structs.Snowflake("456")
	require.NoError(t, c.UpdateVoiceState("123", &channel, true, false))
	require.NoError(t, c.Process(0))
	require.Len(t, ft.sent, 1)
	assert.JSONEq(t,
		`{"op": 4, "d": {"guild_id": "123", "channel_id": "456", "self_mute": true, "self_deaf": false}}`,
		string(ft.sent[0]))

	ft.sent = nil
	require.NoError(t, c.UpdateVoiceState("123", nil, false, false))
	require.NoError(t, c.Process(0))
	require.Len(t, ft.sent, 1)
	assert.JSONEq(t,
		`{"op": 4, "d": {"guild_id": "123", "channel_id": null, "self_mute": false, "self_deaf": false}}`,
		string(ft.sent[0]))
}

func TestCompressedStream(t *testing.T) {
	c, ft, _ := newTestClient(t, Config{Compress: true})
	require.NoError(t, c.Connect(context.Background(), "wss://gateway.discord.gg"))
	require.Len(t, ft.dials, 1)
	assert.Contains(t, ft.dials[0], "compress=zlib-stream")

	var buf writerBuffer
	zw := zlib.NewWriter(&buf)

	compress := func(payload string) []byte {
		start := len(buf.data)
		_, err := zw.Write([]byte(payload))
		require.NoError(t, err)
		require.NoError(t, zw.Flush())
		return buf.data[start:]
	}

	ft.recv <- Incoming{Data: compress(`{"op": 10, "d": {"heartbeat_interval": 41250}}`)}
	require.NoError(t, c.Process(0))
	assert.Equal(t, StateIdentifying, c.GetState())

	// Later messages reuse the shared compression context.
	ft.recv <- Incoming{Data: compress(`{"op": 0, "s": 1, "t": "READY", "d": {"session_id": "z", "resume_gateway_url": "wss://r"}}`)}
	require.NoError(t, c.Process(0))
	assert.Equal(t, StateReady, c.GetState())
	assert.Equal(t, "z", c.sessionID)
}

type writerBuffer struct {
	data []byte
}

func (w *writerBuffer) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

func TestZlibSuffixDetection(t *testing.T) {
	assert.False(t, hasZlibSuffix([]byte{0x00, 0x00}))
	assert.False(t, hasZlibSuffix([]byte{0x01, 0x00, 0x00, 0xff, 0xfe}))
	assert.True(t, hasZlibSuffix([]byte{0x78, 0x9c, 0x00, 0x00, 0xff, 0xff}))
}

func TestOutboxUrgentJumpsQueue(t *testing.T) {
	c, _, clock := newTestClient(t, Config{})
	now := clock.Now()

	require.NoError(t, c.outboxPush([]byte(`{"op":8}`), false, now, OpcodeRequestGuildMembers))
	require.NoError(t, c.outboxPush([]byte(`{"op":1}`), true, now, OpcodeHeartbeat))

	require.Len(t, c.outbox, 2)
	assert.Equal(t, OpcodeHeartbeat, c.outbox[0].op)

	err := c.outboxPush(make([]byte, maxPayloadSize+1), false, now, OpcodeDispatch)
	assert.ErrorIs(t, err, errs.ErrInvalidParam)
}

func TestSendWindowCapsBurst(t *testing.T) {
	c, ft, clock := newTestClient(t, Config{})
	connectReady(t, c, ft)
	ft.sent = nil

	payload := []byte(fmt.Sprintf(`{"op": %d, "d": null}`, OpcodePresenceUpdate))
	for i := 0; i < sendLimit+10; i++ {
		require.NoError(t, c.outboxPush(payload, false, clock.Now(), OpcodePresenceUpdate))
	}
	require.NoError(t, c.Process(0))

	// connectReady already spent part of the window's budget, so the burst
	// stops just short of the full window.
	assert.LessOrEqual(t, len(ft.sent), sendLimit)
	assert.NotEmpty(t, c.outbox)

	clock.Advance(sendWindow)
	require.NoError(t, c.Process(0))
	assert.Empty(t, c.outbox)
}

func TestSendWindowDoesNotRefillMidWindow(t *testing.T) {
	c, ft, clock := newTestClient(t, Config{})
	connectReady(t, c, ft)
	ft.sent = nil

	payload := []byte(fmt.Sprintf(`{"op": %d, "d": null}`, OpcodePresenceUpdate))
	for i := 0; i < 2*sendLimit; i++ {
		require.NoError(t, c.outboxPush(payload, false, clock.Now(), OpcodePresenceUpdate))
	}
	require.NoError(t, c.Process(0))
	firstBurst := len(ft.sent)
	require.LessOrEqual(t, firstBurst, sendLimit)
	require.NotEmpty(t, c.outbox)

	// Halfway through the window the budget must not come back.
	clock.Advance(sendWindow / 2)
	require.NoError(t, c.Process(0))
	assert.Equal(t, firstBurst, len(ft.sent))

	// Only a rolled-over window grants the next batch.
	clock.Advance(sendWindow / 2)
	require.NoError(t, c.Process(0))
	assert.Greater(t, len(ft.sent), firstBurst)
	assert.LessOrEqual(t, len(ft.sent), firstBurst+sendLimit)
	assert.NotEmpty(t, c.outbox)
}