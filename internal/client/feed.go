package client

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	feedPath        = "/websocket"
	feedWriteWait   = 10 * time.Second
	feedPongWait    = 60 * time.Second
	feedPingPeriod  = (feedPongWait * 9) / 10
	feedMaxMsgBytes = 1 << 20
)

// FeedHandler receives push telemetry from the controller. Calls happen on
// the feed's reader goroutine, one at a time.
type FeedHandler interface {
	StatusUpdate(status ObjectStatus)
	PowerChanged(dev PowerDevice)
	KlippyReady(ready bool)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
	ID      string `json:"id"`
}

type rpcMessage struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
	ID     string            `json:"id"`
	Result json.RawMessage   `json:"result"`
	Error  *apiError         `json:"error"`
}

// feedURL converts the base URL to the websocket endpoint, appending a
// oneshot token when the session is authenticated.
func (s *Session) feedURL(ctx context.Context) (string, error) {
	u := s.transport.BaseURL()
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path += feedPath
	if s.Authenticated() || s.apiKey != "" {
		token, err := s.OneshotToken(ctx)
		if err != nil {
			return "", fmt.Errorf("feed token: %w", err)
		}
		u.RawQuery = url.Values{"token": {token}}.Encode()
	}
	return u.String(), nil
}

// Subscribe opens the controller websocket, subscribes to objects and
// dispatches notifications to h until ctx is cancelled or the connection
// drops. The initial subscription result is delivered as a StatusUpdate.
func (s *Session) Subscribe(ctx context.Context, objects map[string][]string, h FeedHandler) error {
	target, err := s.feedURL(ctx)
	if err != nil {
		return err
	}

	dialer := *websocket.DefaultDialer
	if !s.transport.tlsVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // user opted out
	}
	conn, _, err := dialer.DialContext(ctx, target, s.AuthHeaders())
	if err != nil {
		return fmt.Errorf("dial feed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(feedMaxMsgBytes)
	_ = conn.SetReadDeadline(time.Now().Add(feedPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})

	subID := uuid.NewString()
	_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
	if err := conn.WriteJSON(rpcRequest{
		JSONRPC: "2.0",
		Method:  "printer.objects.subscribe",
		Params:  map[string]any{"objects": subscribeParams(objects)},
		ID:      subID,
	}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- s.readFeed(conn, subID, h) }()

	ping := time.NewTicker(feedPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(feedWriteWait))
			return ctx.Err()
		case err := <-done:
			return err
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(feedWriteWait)); err != nil {
				return fmt.Errorf("feed ping: %w", err)
			}
		}
	}
}

func subscribeParams(objects map[string][]string) map[string]any {
	out := make(map[string]any, len(objects))
	for name, attrs := range objects {
		if len(attrs) == 0 {
			out[name] = nil
			continue
		}
		out[name] = attrs
	}
	return out
}

func (s *Session) readFeed(conn *websocket.Conn, subID string, h FeedHandler) error {
	for {
		var msg rpcMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read feed: %w", err)
		}
		s.dispatch(msg, subID, h)
	}
}

func (s *Session) dispatch(msg rpcMessage, subID string, h FeedHandler) {
	if msg.ID != "" && msg.ID == subID {
		if msg.Error != nil {
			s.log.Errorw("feed_subscribe_rejected", "message", msg.Error.Message)
			return
		}
		var res struct {
			Status ObjectStatus `json:"status"`
		}
		if err := json.Unmarshal(msg.Result, &res); err != nil {
			s.log.Errorw("feed_payload_malformed", "method", "printer.objects.subscribe", "err", err)
			return
		}
		h.StatusUpdate(res.Status)
		return
	}

	switch msg.Method {
	case "notify_status_update":
		if len(msg.Params) == 0 {
			return
		}
		var status ObjectStatus
		if err := json.Unmarshal(msg.Params[0], &status); err != nil {
			s.log.Errorw("feed_payload_malformed", "method", msg.Method, "err", err)
			return
		}
		h.StatusUpdate(status)
	case "notify_power_changed":
		for _, p := range msg.Params {
			var dev PowerDevice
			if err := json.Unmarshal(p, &dev); err != nil || dev.Device == "" {
				s.log.Errorw("feed_payload_malformed", "method", msg.Method, "err", err)
				continue
			}
			h.PowerChanged(dev)
		}
	case "notify_klippy_ready":
		h.KlippyReady(true)
	case "notify_klippy_disconnected", "notify_klippy_shutdown":
		h.KlippyReady(false)
	}
}
