// Package gateway maintains the websocket connection to the chat gateway.
// It reads inbound command events, hands them to the dispatcher, and sends
// outbound messages on behalf of the handlers.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/dmitrijs2005/privgate/internal/logging"
	"github.com/dmitrijs2005/privgate/internal/server/command"
)

var ErrNotConnected = errors.New("gateway is not connected")

// inboundFrame is one command event as the gateway delivers it.
type inboundFrame struct {
	ChatID      int64    `json:"chat_id"`
	PrincipalID int64    `json:"principal_id"`
	DisplayName string   `json:"display_name"`
	Command     string   `json:"command"`
	Args        []string `json:"args"`
}

// outboundFrame is one message sent back through the gateway.
type outboundFrame struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// Dispatcher consumes inbound command events.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev *command.Event)
}

type Gateway struct {
	url         string
	token       string
	sendTimeout time.Duration
	logger      logging.Logger

	mu   sync.Mutex
	conn *websocket.Conn
}

func New(url string, token string, sendTimeout time.Duration, logger logging.Logger) *Gateway {
	return &Gateway{
		url:         url,
		token:       token,
		sendTimeout: sendTimeout,
		logger:      logger.With("module", "gateway"),
	}
}

func (g *Gateway) SendMessage(ctx context.Context, chatID int64, text string) error {
	return g.send(ctx, &outboundFrame{ChatID: chatID, Text: text})
}

func (g *Gateway) SendMarkdown(ctx context.Context, chatID int64, text string) error {
	return g.send(ctx, &outboundFrame{ChatID: chatID, Text: text, ParseMode: "Markdown"})
}

// send writes one frame to the current connection. Writes are serialized:
// gorilla connections support one concurrent writer only.
func (g *Gateway) send(ctx context.Context, frame *outboundFrame) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.conn == nil {
		return ErrNotConnected
	}

	deadline := time.Now().Add(g.sendTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := g.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("gateway write deadline: %w", err)
	}
	if err := g.conn.WriteJSON(frame); err != nil {
		return fmt.Errorf("gateway write: %w", err)
	}
	return nil
}

func (g *Gateway) connect(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if g.token != "" {
		header.Set("Authorization", "Bearer "+g.token)
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, g.url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("gateway dial %s: %w", g.url, err)
	}
	return conn, nil
}

// connectWithRetry dials the gateway with capped exponential backoff until
// the dial succeeds or ctx is cancelled.
func (g *Gateway) connectWithRetry(ctx context.Context) (*websocket.Conn, error) {
	backoff := retry.WithJitter(500*time.Millisecond,
		retry.WithCappedDuration(time.Minute, retry.NewExponential(time.Second)))

	var conn *websocket.Conn
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		c, err := g.connect(ctx)
		if err != nil {
			g.logger.Warn(ctx, "gateway dial failed, retrying", "err", err.Error())
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// Run connects to the gateway and consumes events until ctx is cancelled,
// reconnecting with backoff whenever the connection drops.
func (g *Gateway) Run(ctx context.Context, d Dispatcher) error {
	for {
		conn, err := g.connectWithRetry(ctx)
		if err != nil {
			return err
		}
		g.logger.Info(ctx, "gateway connected", "url", g.url)

		g.mu.Lock()
		g.conn = conn
		g.mu.Unlock()

		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-done:
			}
		}()

		err = g.readLoop(ctx, conn, d)
		close(done)

		g.mu.Lock()
		g.conn = nil
		g.mu.Unlock()
		conn.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		g.logger.Warn(ctx, "gateway connection lost, reconnecting", "err", err.Error())
	}
}

// readLoop decodes inbound frames and dispatches each event in its own
// goroutine so a slow handler never stalls the reader.
func (g *Gateway) readLoop(ctx context.Context, conn *websocket.Conn, d Dispatcher) error {
	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return fmt.Errorf("gateway read: %w", err)
		}
		if frame.Command == "" {
			g.logger.Warn(ctx, "dropping frame without a command", "chat_id", frame.ChatID)
			continue
		}

		ev := &command.Event{
			ChatID:      frame.ChatID,
			PrincipalID: frame.PrincipalID,
			DisplayName: frame.DisplayName,
			Name:        frame.Command,
			Args:        frame.Args,
		}
		go d.Dispatch(ctx, ev)
	}
}
