package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/mylocation/internal/adapters/nats"
	"github.com/samirrijal/mylocation/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to feeds.
type wsMessage struct {
	Action string `json:"action"` // "subscribe" | "unsubscribe"
	Device string `json:"device"` // device whose raw fixes are relayed
}

// WebSocketUpgrade rejects non-upgrade requests and unknown sessions
// before the connection is upgraded.
func WebSocketUpgrade(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if deps.NATS == nil {
			return newError(c, fiber.StatusServiceUnavailable, "unavailable", "realtime feed not configured")
		}
		if id := c.Query("session"); id != "" {
			if _, err := deps.Sessions.Get(c.UserContext(), id); err != nil {
				return errFromService(c, err)
			}
		}
		return c.Next()
	}
}

// WebSocketHandler returns a handler that relays NATS events to the client.
// With ?session=<id> the frames of that session are relayed from the start.
// Clients send JSON: {"action":"subscribe","device":"phone-1"} to also
// receive the raw fixes of a device.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		log := slog.Default().With("component", "ws", "remote", c.RemoteAddr().String())
		log.Info("ws client connected")

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var mu sync.Mutex
		subs := make(map[string]*nats.Subscription) // subject -> subscription

		// Helper: thread-safe write
		writeJSON := func(v any) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		// Frames are already JSON.
		relayFrame := func(msg *nats.Msg) {
			_ = writeJSON(json.RawMessage(msg.Data))
		}
		// Fixes travel as protobuf and are re-encoded for the client.
		relayFix := func(msg *nats.Msg) {
			fix, err := natsadapter.DecodeFix(msg.Data)
			if err != nil {
				log.Debug("ws dropping undecodable fix", "subject", msg.Subject, "error", err)
				return
			}
			_ = writeJSON(fiber.Map{"type": "fix", "fix": fix})
		}

		if session := c.Query("session"); session != "" {
			subject := natsadapter.FrameSubject(session)
			sub, err := nc.Subscribe(subject, relayFrame)
			if err != nil {
				log.Error("ws frame subscribe failed", "subject", subject, "error", err)
				return
			}
			subs[subject] = sub
		}

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
			if m.Device == "" {
				_ = writeJSON(map[string]string{"error": "device is required"})
				continue
			}
			subject := natsadapter.FixSubject(m.Device)

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				s, err := nc.Subscribe(subject, relayFix)
				if err != nil {
					_ = writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				subs[subject] = s
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
		log.Info("ws client disconnected")
	}
}
