package monitorws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"ChainPilot/internal/domain/models"
	drepo "ChainPilot/internal/domain/repository"
	"ChainPilot/pkg/logger"
)

// Client implements a SignalStream backed by the wallet-monitor WebSocket.
type Client struct {
	url            string
	authToken      string
	wallets        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	log            *logger.Logger

	conn      *websocket.Conn
	connected bool
}

// New creates a new monitor SignalStream.
func New(url, authToken string, wallets []string, reconnectDelay, pingInterval time.Duration, log *logger.Logger) drepo.SignalStream {
	return &Client{
		url:            url,
		authToken:      authToken,
		wallets:        wallets,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		log:            log,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	hdr := http.Header{}
	if c.authToken != "" {
		hdr.Set("Authorization", "Bearer "+c.authToken)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, hdr)
	if err != nil {
		return fmt.Errorf("monitor connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	c.log.Info("monitor: connected", logger.String("url", c.url))
	return nil
}

// Subscribe registers interest in the configured wallets.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("monitor not connected")
	}
	msg := map[string]interface{}{"type": "subscribe", "wallets": c.wallets}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe wallets: %w", err)
	}
	c.log.Info("monitor: subscribed", logger.Int("wallets", len(c.wallets)))
	return nil
}

type wsActivity struct {
	Sig    string  `json:"sig"`
	Wallet string  `json:"wallet"`
	Token  string  `json:"token"`
	Side   string  `json:"side"`
	Tokens float64 `json:"tokens"`
	Sol    float64 `json:"sol"`
	Ts     int64   `json:"ts"` // ms
}

type wsMessage struct {
	Type string       `json:"type"`
	Data []wsActivity `json:"data"`
}

// Read streams Signal events and errors. The returned channels are bound to
// the connection at call time; after a read failure both are closed and the
// caller reconnects and calls Read again for a fresh pair.
func (c *Client) Read(ctx context.Context) (<-chan *models.Signal, <-chan error) {
	signals := make(chan *models.Signal, 1024)
	errs := make(chan error, 1)
	done := make(chan struct{})
	conn := c.conn

	// ping loop, lives as long as the read loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(signals)
		defer close(errs)
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if conn == nil {
					errs <- fmt.Errorf("monitor conn nil")
					return
				}
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("monitor read: %w", err)
					return
				}
				var m wsMessage
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore non-activity frames
					continue
				}
				if m.Type != "activity" {
					continue
				}
				now := time.Now()
				for _, d := range m.Data {
					sig := &models.Signal{
						TxSignature: d.Sig,
						Wallet:      d.Wallet,
						Token:       d.Token,
						Direction:   models.TradeDirection(d.Side),
						TokenAmount: d.Tokens,
						SolAmount:   d.Sol,
						Timestamp:   time.UnixMilli(d.Ts),
						ReceivedAt:  now,
					}
					select {
					case signals <- sig:
					default:
						// drop on backpressure
					}
				}
			}
		}
	}()

	return signals, errs
}

// Reconnect closes and reconnects.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
