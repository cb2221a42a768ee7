package homeassistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Event is a Home Assistant event received over the WebSocket API.
type Event struct {
	Type      string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
	TimeFired time.Time       `json:"time_fired"`
}

// StateChange is the payload of a state_changed event.
type StateChange struct {
	EntityID string `json:"entity_id"`
	OldState *State `json:"old_state"`
	NewState *State `json:"new_state"`
}

type wsMessage struct {
	ID          int64           `json:"id,omitempty"`
	Type        string          `json:"type"`
	Success     bool            `json:"success,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Event       *Event          `json:"event,omitempty"`
	Error       *wsError        `json:"error,omitempty"`
	AccessToken string          `json:"access_token,omitempty"`
	EventType   string          `json:"event_type,omitempty"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrAuthInvalid is returned when Home Assistant rejects the token.
var ErrAuthInvalid = errors.New("websocket authentication failed")

// WSClient streams state changes from the WebSocket API.
type WSClient struct {
	baseURL string
	token   string
	msgID   atomic.Int64
	logger  *slog.Logger

	// MinBackoff and MaxBackoff bound the reconnect delay.
	MinBackoff time.Duration
	MaxBackoff time.Duration
}

// NewWSClient creates a WebSocket client. baseURL is the http(s) address
// of the instance.
func NewWSClient(baseURL, token string, logger *slog.Logger) *WSClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSClient{
		baseURL:    baseURL,
		token:      token,
		logger:     logger.With("component", "homeassistant_ws"),
		MinBackoff: time.Second,
		MaxBackoff: time.Minute,
	}
}

// WatchStates subscribes to state_changed and calls handle for every
// change until ctx is cancelled. Dropped connections are re-established
// with exponential backoff; a rejected token ends the watch.
func (c *WSClient) WatchStates(ctx context.Context, handle func(StateChange)) error {
	if c.token == "" {
		return ErrNotConfigured
	}
	backoff := c.MinBackoff
	for {
		err := c.watchOnce(ctx, handle)
		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, ErrAuthInvalid) {
			return err
		}
		c.logger.Warn("websocket disconnected", "error", err, "retry_in", backoff)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.MaxBackoff)
	}
}

func (c *WSClient) watchOnce(ctx context.Context, handle func(StateChange)) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := c.subscribe(conn, "state_changed"); err != nil {
		return err
	}
	c.logger.Info("watching state changes")

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		if msg.Type != "event" || msg.Event == nil || msg.Event.Type != "state_changed" {
			continue
		}
		var change StateChange
		if err := json.Unmarshal(msg.Event.Data, &change); err != nil {
			c.logger.Debug("undecodable state_changed event", "error", err)
			continue
		}
		handle(change)
	}
}

// dial connects and completes the auth handshake.
func (c *WSClient) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	u.Path = "/api/websocket"

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial websocket: %w", err)
	}
	conn.SetReadLimit(16 << 20)

	if err := c.authenticate(conn); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (c *WSClient) authenticate(conn *websocket.Conn) error {
	var msg wsMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("read auth_required: %w", err)
	}
	if msg.Type != "auth_required" {
		return fmt.Errorf("expected auth_required, got %s", msg.Type)
	}
	if err := conn.WriteJSON(wsMessage{Type: "auth", AccessToken: c.token}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}
	if err := conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("read auth response: %w", err)
	}
	switch msg.Type {
	case "auth_ok":
		return nil
	case "auth_invalid":
		return ErrAuthInvalid
	default:
		return fmt.Errorf("unexpected auth response: %s", msg.Type)
	}
}

func (c *WSClient) subscribe(conn *websocket.Conn, eventType string) error {
	id := c.msgID.Add(1)
	if err := conn.WriteJSON(wsMessage{ID: id, Type: "subscribe_events", EventType: eventType}); err != nil {
		return fmt.Errorf("subscribe %s: %w", eventType, err)
	}
	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("subscribe %s: %w", eventType, err)
		}
		if msg.Type != "result" || msg.ID != id {
			continue
		}
		if !msg.Success {
			if msg.Error != nil {
				return fmt.Errorf("subscribe %s: %s: %s", eventType, msg.Error.Code, msg.Error.Message)
			}
			return fmt.Errorf("subscribe %s: request failed", eventType)
		}
		return nil
	}
}
