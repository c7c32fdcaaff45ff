package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/breadcrumbs/internal/adapters/nats"
	"github.com/samirrijal/breadcrumbs/internal/core/usecases"
	"github.com/samirrijal/breadcrumbs/internal/pkg/metrics"
)

// wsMessage is sent from client to narrow or widen the relayed sessions.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Session string `json:"session"` // session id filter (optional, "" = all)
}

// changeSubject maps a session filter to its NATS subject; "" means all.
func changeSubject(session string) string {
	if session == "" {
		return natsadapter.ChangeSubjects
	}
	return natsadapter.ChangeSubject(session)
}

// overlapping returns the subjects in current that would relay the same
// events as subject. The wildcard covers every session subject.
func overlapping(current []string, subject string) []string {
	var out []string
	for _, cur := range current {
		if cur == subject {
			continue
		}
		if subject == natsadapter.ChangeSubjects || cur == natsadapter.ChangeSubjects {
			out = append(out, cur)
		}
	}
	return out
}

// WebSocketHandler returns a handler that upgrades to WebSocket and relays
// trail change events to overlay clients. The first frame is the current
// trail status so a client knows which session and watermark to start from.
// The ?session= query parameter sets the initial filter (default: all).
// Clients send JSON: {"action":"subscribe","session":"<id>"}. Subscribing
// to one session replaces the all-sessions relay and vice versa, so no
// event is delivered twice.
func WebSocketHandler(nc *nats.Conn, svc *usecases.TrailService) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // subject -> subscription

		// Helper: thread-safe write
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		relay := func(msg *nats.Msg) {
			_ = writeJSON(json.RawMessage(msg.Data))
		}

		if svc != nil {
			_ = writeJSON(map[string]interface{}{"type": "status", "trail": svc.Status(context.Background())})
		}

		initial := changeSubject(c.Query("session"))
		sub, err := nc.Subscribe(initial, relay)
		if err != nil {
			slog.Error("ws initial subscribe", "subject", initial, "error", err)
			return
		}
		subs[initial] = sub

		// Keep-alive ping
		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		// Read client messages for subscribe/unsubscribe
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			subject := changeSubject(m.Session)

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				s, err := nc.Subscribe(subject, relay)
				if err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				subs[subject] = s
				current := make([]string, 0, len(subs))
				for subj := range subs {
					current = append(current, subj)
				}
				for _, old := range overlapping(current, subject) {
					_ = subs[old].Unsubscribe()
					delete(subs, old)
				}
				_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				if s, exists := subs[subject]; exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
					_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		// Cleanup
		close(done)
		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}
