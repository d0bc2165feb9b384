package realtime

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Frame is one message written to a websocket client.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Loader reloads the state behind one table for a user.
type Loader func(ctx context.Context, userID string) (any, error)

// frameTypes maps tables to the frame type their refetch is sent as.
var frameTypes = map[string]string{
	TableChores:      "chores",
	TableProfiles:    "partner",
	TableInvitations: "invitations",
}

// Feed serves the websocket change feed. Each connection runs its own Reconciler.
type Feed struct {
	broker   *Broker
	loaders  map[string]Loader
	upgrader websocket.Upgrader
}

// NewFeed creates a feed. loaders is keyed by table; tables without a loader
// are ignored. checkOrigin may be nil to accept same-origin requests only.
func NewFeed(b *Broker, loaders map[string]Loader, checkOrigin func(*http.Request) bool) *Feed {
	return &Feed{
		broker:  b,
		loaders: loaders,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Serve upgrades the request and streams frames for userID until the client
// goes away.
func (f *Feed) Serve(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("Websocket upgrade failed", "user_id", userID, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	frames := make(chan Frame, defaultBuffer)
	push := func(fr Frame) {
		select {
		case frames <- fr:
		default:
			slog.Warn("Websocket client lagging, frame dropped", "user_id", userID, "type", fr.Type)
		}
	}
	refetch := func(table string) {
		load, ok := f.loaders[table]
		if !ok {
			return
		}
		data, err := load(ctx, userID)
		if err != nil {
			if ctx.Err() == nil {
				slog.Error("Refetch failed", "user_id", userID, "table", table, "error", err)
			}
			return
		}
		push(Frame{Type: frameTypes[table], Data: data})
	}

	rec := NewReconciler(f.broker, userID, Handlers{
		Notify:  func(e Event) { push(Frame{Type: "thanks", Data: e.Record}) },
		Refetch: refetch,
	})
	rec.Start()
	defer rec.Close()

	slog.Info("Realtime client connected", "user_id", userID)
	refetch(TableChores)

	go f.readPump(conn, cancel)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Realtime client disconnected", "user_id", userID)
			return
		case fr := <-frames:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(fr); err != nil {
				slog.Debug("Websocket write failed", "user_id", userID, "error", err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readPump drains client messages so control frames are processed, and
// cancels the session when the connection drops.
func (f *Feed) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
