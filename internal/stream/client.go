package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"tribune/internal/metrics"
)

const defaultRetryDelay = 3 * time.Second

// Message is one record delivered on the event stream. Data is the joined
// data lines; Decode parses it as JSON. Frames whose data is not valid JSON
// are still delivered so the consumer can fall back to the raw text.
type Message struct {
	ID    string
	Event string
	Data  string
}

// Decode unmarshals the message data into v
func (m *Message) Decode(v any) error {
	return json.Unmarshal([]byte(m.Data), v)
}

// Client maintains one resumable subscription to an event-stream endpoint.
// Any transport failure tears the connection down and reconnects after a
// fixed delay; the client never gives up on its own. Missed records between
// connections are recovered by the server replay (Last-Event-ID) when the
// server still has them, and by the periodic full poll otherwise.
type Client struct {
	url         string
	httpClient  *http.Client
	retryDelay  time.Duration
	lastEventID string
}

type Config struct {
	RetryDelay time.Duration
}

func New(url string, cfg Config) *Client {
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = defaultRetryDelay
	}

	return &Client{
		url: url,
		// no client-level timeout: it would cap the lifetime of the body
		// read and kill long-lived streams
		httpClient: &http.Client{},
		retryDelay: cfg.RetryDelay,
	}
}

// LastEventID returns the resume cursor: the id of the most recently fully
// processed record. Empty until the first record with an id is processed.
func (c *Client) LastEventID() string {
	return c.lastEventID
}

// Run connects and delivers records to onMessage until ctx is cancelled.
// It blocks; callers run it in its own goroutine. Cancelling ctx drops the
// underlying transport and suppresses the pending reconnect.
func (c *Client) Run(ctx context.Context, onMessage func(Message)) {
	for {
		err := c.consume(ctx, onMessage)
		if ctx.Err() != nil {
			return
		}

		slog.Warn("Stream connection lost, reconnecting",
			"url", c.url,
			"error", err,
			"retry_delay", c.retryDelay.String(),
			"last_event_id", c.lastEventID)
		metrics.StreamReconnects.Inc()

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.retryDelay):
		}
	}
}

// consume opens one connection and reads records until the stream breaks
func (c *Client) consume(ctx context.Context, onMessage func(Message)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.lastEventID != "" {
		req.Header.Set("Last-Event-ID", c.lastEventID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("stream connection failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	reader := bufio.NewReader(resp.Body)

	var (
		id        string
		event     string
		dataLines []string
	)

	dispatch := func() {
		if len(dataLines) == 0 && id == "" {
			return
		}
		name := event
		if name == "" {
			name = "message"
		}
		onMessage(Message{ID: id, Event: name, Data: strings.Join(dataLines, "\n")})

		// the cursor advances only after the consumer returns, so a record
		// is never marked seen before it has been applied
		if id != "" {
			c.lastEventID = id
		}

		id, event, dataLines = "", "", nil
	}

	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimRight(line, "\r\n")
			switch {
			case line == "":
				dispatch()
			case strings.HasPrefix(line, "id:"):
				id = strings.TrimSpace(line[len("id:"):])
			case strings.HasPrefix(line, "event:"):
				event = strings.TrimSpace(line[len("event:"):])
			case strings.HasPrefix(line, "data:"):
				dataLines = append(dataLines, strings.TrimSpace(line[len("data:"):]))
			case strings.HasPrefix(line, ":"):
				// comment / keepalive, ignored
			}
		}
		if err != nil {
			// EOF here is an abrupt close: the server never ends a healthy
			// stream, so it is treated like any other transport failure
			return fmt.Errorf("stream read failed: %w", err)
		}
	}
}
