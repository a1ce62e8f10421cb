package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"printerbot/internal/printer"
)

const (
	streamWriteWait   = 10 * time.Second
	streamPongWait    = 60 * time.Second
	streamPingPeriod  = (streamPongWait * 9) / 10
	streamReadLimit   = 1 << 12
	streamDefaultTick = time.Second
	streamMinTick     = 100 * time.Millisecond
	streamMaxTick     = 10 * time.Second
)

var errStreamInterval = fmt.Errorf("interval must be between %v and %v", streamMinTick, streamMaxTick)

// streamFrame is one message on the snapshot stream.
type streamFrame struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// streamOptions are the query parameters of /ws.
type streamOptions struct {
	interval time.Duration
	sensors  map[string]struct{} // nil keeps every sensor
	onChange bool
}

// The stream is read-only, so any origin may subscribe.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// @Summary      Printer snapshot stream
// @Description  Websocket. ?interval=2s or ?interval_ms=2000 (100ms..10s), ?sensors=extruder,heater_bed limits the sensors, ?on_change=true skips unchanged frames.
// @Tags         printer
// @Success      101  {string}  string  "switching protocols"
// @Failure      400  {object}  map[string]string
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	opts, err := parseStreamOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(streamReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	done := make(chan struct{})
	go h.drainStream(conn, done)

	tick := time.NewTicker(opts.interval)
	ping := time.NewTicker(streamPingPeriod)
	defer tick.Stop()
	defer ping.Stop()

	var last []byte
	send := func() error {
		frame, err := json.Marshal(streamFrame{Type: "snapshot", Data: opts.apply(h.services.Snapshot())})
		if err != nil {
			return err
		}
		if opts.onChange && bytes.Equal(frame, last) {
			return nil
		}
		last = frame
		_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		return conn.WriteMessage(websocket.TextMessage, frame)
	}

	if err := send(); err != nil {
		h.streamClosed("ws_write_failed", err)
		return
	}
	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.streamClosed("ws_ping_failed", err)
				return
			}
		case <-tick.C:
			if err := send(); err != nil {
				h.streamClosed("ws_write_failed", err)
				return
			}
		}
	}
}

// parseStreamOptions validates the query. interval wins over interval_ms
// when both are given.
func parseStreamOptions(c *gin.Context) (streamOptions, error) {
	opts := streamOptions{interval: streamDefaultTick}

	switch {
	case c.Query("interval") != "":
		d, err := time.ParseDuration(c.Query("interval"))
		if err != nil {
			return opts, fmt.Errorf("invalid interval: %w", err)
		}
		opts.interval = d
	case c.Query("interval_ms") != "":
		ms, err := strconv.Atoi(c.Query("interval_ms"))
		if err != nil {
			return opts, fmt.Errorf("invalid interval_ms: %w", err)
		}
		opts.interval = time.Duration(ms) * time.Millisecond
	}
	if opts.interval < streamMinTick || opts.interval > streamMaxTick {
		return opts, errStreamInterval
	}

	if raw := c.Query("sensors"); raw != "" {
		opts.sensors = map[string]struct{}{}
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				opts.sensors[name] = struct{}{}
			}
		}
		if len(opts.sensors) == 0 {
			return opts, errors.New("sensors must name at least one sensor")
		}
	}

	if raw := c.Query("on_change"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("invalid on_change: %w", err)
		}
		opts.onChange = v
	}
	return opts, nil
}

// apply trims the snapshot to the requested sensors.
func (o streamOptions) apply(snap printer.Snapshot) printer.Snapshot {
	if o.sensors == nil {
		return snap
	}
	kept := make(map[string]printer.SensorReading, len(o.sensors))
	for name, r := range snap.Sensors {
		if _, ok := o.sensors[name]; ok {
			kept[name] = r
		}
	}
	snap.Sensors = kept
	return snap
}

// drainStream reads until the peer goes away so control frames are handled.
func (h *Handler) drainStream(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.streamClosed("ws_read_closed", err)
			return
		}
	}
}

func (h *Handler) streamClosed(key string, err error) {
	if h.log != nil {
		h.log.Debugw(key, "err", err)
	}
}
