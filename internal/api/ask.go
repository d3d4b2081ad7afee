package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nomdev/corbo/internal/stream"
)

// AskWithStream asks a question and calls handle for every answer frame in
// arrival order. The request timeout covers only the wait for the stream
// to open; once it is open the stream runs until the server ends it or ctx
// is cancelled.
func (c *Client) AskWithStream(ctx context.Context, req AskRequest, handle func(stream.Chunk) error) (stream.Stats, error) {
	start := time.Now()

	var (
		stats stream.Stats
		err   error
	)
	if c.streamTransport == TransportWebSocket {
		stats, err = c.askWebSocket(ctx, req, handle)
	} else {
		stats, err = c.askHTTP(ctx, req, handle)
	}

	c.metrics.RecordStream(time.Since(start), stats.Frames, stats.Dropped, err)
	return stats, err
}

func (c *Client) askHTTP(ctx context.Context, ask AskRequest, handle func(stream.Chunk) error) (stream.Stats, error) {
	body, err := json.Marshal(ask)
	if err != nil {
		return stream.Stats{}, fmt.Errorf("encode ask request: %w", err)
	}

	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := c.newRequest(reqCtx, PathAskWithStream, body, contentTypeJSON, c.callConfig(nil))
	if err != nil {
		return stream.Stats{}, err
	}

	timer := time.AfterFunc(c.timeout, func() { cancel(ErrRequestTimeout) })
	resp, err := c.httpClient.Do(req)
	fired := !timer.Stop()
	if err != nil {
		return stream.Stats{}, c.transportError(reqCtx, PathAskWithStream, err)
	}
	defer resp.Body.Close()
	if fired {
		return stream.Stats{}, fmt.Errorf("call %s: %w", PathAskWithStream, ErrRequestTimeout)
	}

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return stream.Stats{}, statusError(req.URL.String(), resp.StatusCode, data)
	}

	c.logger.Debug("answer stream opened", "transport", TransportHTTP)
	return c.decoder.Decode(reqCtx, resp.Body, handle)
}

func (c *Client) askWebSocket(ctx context.Context, ask AskRequest, handle func(stream.Chunk) error) (stream.Stats, error) {
	u, err := c.endpoint(PathAskWithStreamWS)
	if err != nil {
		return stream.Stats{}, err
	}
	httpURL := u.String()
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}

	if c.tokens == nil {
		return stream.Stats{}, fmt.Errorf("call %s: no token source configured", PathAskWithStreamWS)
	}
	token, err := c.tokens.GetAccessToken(ctx)
	if err != nil {
		return stream.Stats{}, err
	}
	header := http.Header{}
	header.Set(headerAuthToken, token)

	dialCtx, cancel := context.WithTimeoutCause(ctx, c.timeout, ErrRequestTimeout)
	defer cancel()

	conn, resp, err := websocket.DefaultDialer.DialContext(dialCtx, u.String(), header)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			defer resp.Body.Close()
			data, _ := io.ReadAll(resp.Body)
			return stream.Stats{}, statusError(httpURL, resp.StatusCode, data)
		}
		return stream.Stats{}, c.transportError(dialCtx, PathAskWithStreamWS, err)
	}
	defer conn.Close()

	// Unblock the reader when the caller gives up.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := conn.WriteJSON(ask); err != nil {
		return stream.Stats{}, fmt.Errorf("send ask request: %w", err)
	}

	c.logger.Debug("answer stream opened", "transport", TransportWebSocket)
	stats, err := c.decoder.Decode(ctx, stream.NewWebSocketReader(conn), handle)
	if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		return stats, ctx.Err()
	}
	return stats, err
}
