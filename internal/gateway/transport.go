package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linkfield/clientd/internal/channel"
)

const (
	wsHandshakeTimeout = 10 * time.Second
	wsMaxMessageSize   = 1 << 20 // 1 MiB
	wsCloseGrace       = time.Second
)

// Transport dials the gateway's push endpoint over websocket. One topic maps
// to one socket at ws(s)://host/ws/<topic>, authenticated by a token query
// parameter because browsers and the UI shell cannot set headers on websocket
// upgrades.
type Transport struct {
	wsURL  *url.URL
	token  TokenProvider
	dialer *websocket.Dialer
	logger *zap.Logger
}

// TransportOption customises a Transport.
type TransportOption func(*Transport)

// WithTransportLogger attaches a logger for dial failures.
func WithTransportLogger(logger *zap.Logger) TransportOption {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTransport constructs a websocket transport for the channel manager.
func NewTransport(wsURL string, token TokenProvider, opts ...TransportOption) (*Transport, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(wsURL), "/")
	if trimmed == "" {
		return nil, errors.New("gateway: websocket url is required")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("gateway: parse websocket url: %w", err)
	}
	if parsed.Scheme != "ws" && parsed.Scheme != "wss" {
		return nil, fmt.Errorf("gateway: unsupported websocket scheme %q", parsed.Scheme)
	}

	t := &Transport{
		wsURL: parsed,
		token: token,
		dialer: &websocket.Dialer{
			HandshakeTimeout: wsHandshakeTimeout,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Dial opens the push connection for the topic.
func (t *Transport) Dial(ctx context.Context, topic string) (channel.Conn, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, errors.New("gateway: topic is required")
	}

	target := *t.wsURL
	target.Path = strings.TrimRight(target.Path, "/") + "/ws/" + url.PathEscape(topic)

	if t.token != nil {
		token, err := t.token.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("gateway: resolve token: %w", err)
		}
		if token != "" {
			query := target.Query()
			query.Set("token", token)
			target.RawQuery = query.Encode()
		}
	}

	conn, resp, err := t.dialer.DialContext(ctx, target.String(), nil)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("gateway: dial %s: http %d: %w", topic, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("gateway: dial %s: %w", topic, err)
	}

	conn.SetReadLimit(wsMaxMessageSize)
	t.logger.Debug("websocket connected", zap.String("topic", topic))
	return &wsConn{conn: conn}, nil
}

// wsConn adapts a gorilla connection to the channel.Conn interface.
type wsConn struct {
	conn *websocket.Conn
}

// ReadMessage returns the next data frame, skipping any non-data frames the
// library surfaces.
func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if messageType == websocket.TextMessage || messageType == websocket.BinaryMessage {
			return payload, nil
		}
	}
}

// Close sends a best-effort close frame before tearing the socket down.
func (c *wsConn) Close() error {
	deadline := time.Now().Add(wsCloseGrace)
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		deadline,
	)
	return c.conn.Close()
}
