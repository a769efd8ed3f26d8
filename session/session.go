// Package session owns the streaming connection to the transcription
// service: token exchange, channel lifecycle, message parsing and orderly
// shutdown.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is the connection phase of the streaming session.
type State int32

const (
	StateIdle State = iota
	StateAuthenticating
	StateConnecting
	StateAwaitingReady
	StateActive
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAuthenticating:
		return "authenticating"
	case StateConnecting:
		return "connecting"
	case StateAwaitingReady:
		return "awaiting-ready"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	}
	return "unknown"
}

// Callbacks carries the per-signal event handlers. Each signal stays
// single-purpose; any handler may be nil.
type Callbacks struct {
	OnConnected  func(bool)
	OnTranscript func(Result)
	OnError      func(string)
}

// Config configures the streaming session.
type Config struct {
	RelayURL         string
	StreamURL        string
	SampleRate       int
	RelayTimeout     time.Duration
	HandshakeTimeout time.Duration
}

// Client is the streaming transcription session. It is owned by a single
// orchestrator; only one channel exists at a time.
type Client struct {
	cfg        Config
	httpClient *http.Client

	mu    sync.Mutex
	cb    Callbacks
	state State
	conn  *websocket.Conn
	gen   int // channel generation; a stale read loop must not touch newer state

	writeMu sync.Mutex
}

func New(cfg Config, cb Callbacks) *Client {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.RelayTimeout <= 0 {
		cfg.RelayTimeout = 10 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}

	return &Client{
		cfg:        cfg,
		cb:         cb,
		httpClient: &http.Client{Timeout: cfg.RelayTimeout},
	}
}

// State returns the current connection phase.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect exchanges the credential for a token and opens the streaming
// channel. It reports true once the channel is open; readiness to accept
// audio is signaled later by the remote session-begin message. An existing
// connection is fully torn down first.
func (c *Client) Connect(ctx context.Context, credential string) bool {
	if strings.TrimSpace(credential) == "" {
		c.emitError("no credential provided")
		return false
	}

	// Never two overlapping channels.
	c.Disconnect()

	c.setState(StateAuthenticating)
	token, err := c.fetchToken(ctx, credential)
	if err != nil {
		slog.Error("Token exchange failed", "error", err)
		c.setState(StateIdle)
		c.emitError("token exchange failed: " + err.Error())
		return false
	}

	c.setState(StateConnecting)
	endpoint, err := c.streamEndpoint(token)
	if err != nil {
		slog.Error("Failed to build streaming endpoint", "error", err)
		c.setState(StateIdle)
		c.emitError(err.Error())
		return false
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	conn, resp, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		slog.Error("Failed to open streaming channel", "error", err)
		c.setState(StateIdle)
		c.emitError("failed to open streaming channel: " + err.Error())
		return false
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateAwaitingReady
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	go c.readLoop(conn, gen)

	slog.Debug("Streaming channel open, awaiting session begin")
	return true
}

// SendAudioChunk forwards one PCM chunk over the channel. Chunks are
// silently discarded until the remote session has acknowledged readiness;
// they are dropped, never queued.
func (c *Client) SendAudioChunk(chunk []byte) {
	c.mu.Lock()
	if c.state != StateActive || c.conn == nil {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.mu.Unlock()

	c.writeMu.Lock()
	err := conn.WriteMessage(websocket.BinaryMessage, chunk)
	c.writeMu.Unlock()
	if err != nil {
		slog.Error("Failed to send audio chunk", "error", err)
	}
}

// readLoop is the single inbound handler: messages are processed strictly in
// arrival order, one at a time.
func (c *Client) readLoop(conn *websocket.Conn, gen int) {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			c.channelClosed(gen, err)
			return
		}
		c.handleMessage(gen, msgType, data)
	}
}

func (c *Client) handleMessage(gen int, msgType int, data []byte) {
	if msgType != websocket.TextMessage {
		// Non-text frames carry no transcript content.
		return
	}
	if !c.current(gen) {
		// A frame read off the wire just before Disconnect completed; it
		// belongs to the dead channel.
		return
	}

	var msg serverMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Warn("Discarding unparseable server message", "error", err)
		c.emitError("unparseable server message: " + err.Error())
		return
	}

	switch msg.Type {
	case "Begin":
		if !c.setStateIfCurrent(gen, StateActive) {
			return
		}
		slog.Debug("Remote session began", "sessionID", msg.ID)
		c.emitConnected(true)

	case "Turn":
		if msg.Transcript == "" {
			return
		}
		c.emitTranscript(Result{
			Text:      msg.Transcript,
			IsFinal:   msg.EndOfTurn,
			Timestamp: time.Now(),
		})

	case "Termination":
		if !c.setStateIfCurrent(gen, StateClosing) {
			return
		}
		slog.Debug("Remote session terminated")
		c.emitConnected(false)

	case "error":
		text := msg.Error
		if text == "" {
			text = "the streaming service reported an error"
		}
		c.emitError(text)

	default:
		if msg.Error != "" {
			c.emitError(msg.Error)
			return
		}
		// Unknown control types are ignored so protocol additions do not
		// break older clients.
	}
}

// Disconnect sends a best-effort terminate message and closes the channel.
// The state reset is unconditional: it happens even when the send or the
// close fails.
func (c *Client) Disconnect() {
	c.mu.Lock()
	conn := c.conn
	wasIdle := c.state == StateIdle && conn == nil
	c.conn = nil
	c.gen++ // orphan any running read loop
	c.mu.Unlock()

	if wasIdle {
		return
	}

	defer func() {
		c.setState(StateIdle)
		c.emitConnected(false)
	}()

	if conn == nil {
		return
	}

	c.setState(StateClosing)

	c.writeMu.Lock()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(terminateMessage)); err != nil {
		slog.Debug("Failed to send terminate message", "error", err)
	}
	c.writeMu.Unlock()

	if err := conn.Close(); err != nil {
		slog.Debug("Failed to close streaming channel", "error", err)
	}

	slog.Debug("Streaming channel closed")
}

// Dispose disconnects and drops all event handlers. Safe to call more than
// once.
func (c *Client) Dispose() {
	c.Disconnect()

	c.mu.Lock()
	c.cb = Callbacks{}
	c.mu.Unlock()
}

// channelClosed handles a channel close not initiated through Disconnect:
// remote close, network drop, or a read error.
func (c *Client) channelClosed(gen int, err error) {
	c.mu.Lock()
	if gen != c.gen {
		// A Disconnect or a newer connection superseded this loop.
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.conn = nil
	c.gen++
	wasClosing := c.state == StateClosing
	c.state = StateIdle
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	if !wasClosing && !isExpectedClose(err) {
		slog.Error("Streaming channel closed unexpectedly", "error", err)
		c.emitError("streaming channel closed: " + err.Error())
	}
	c.emitConnected(false)
}

func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// current reports whether gen still names the live channel.
func (c *Client) current(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen == c.gen
}

// setStateIfCurrent transitions only when gen still names the live channel,
// so a stale read loop cannot clobber a completed teardown.
func (c *Client) setStateIfCurrent(gen int, s State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return false
	}
	c.state = s
	return true
}

func (c *Client) emitConnected(connected bool) {
	c.mu.Lock()
	fn := c.cb.OnConnected
	c.mu.Unlock()
	if fn != nil {
		fn(connected)
	}
}

func (c *Client) emitTranscript(r Result) {
	c.mu.Lock()
	fn := c.cb.OnTranscript
	c.mu.Unlock()
	if fn != nil {
		fn(r)
	}
}

func (c *Client) emitError(msg string) {
	c.mu.Lock()
	fn := c.cb.OnError
	c.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}
