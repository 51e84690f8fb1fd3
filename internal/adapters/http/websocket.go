package http

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/tripplanner/internal/adapters/nats"
	"github.com/samirrijal/tripplanner/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to trip events.
type wsMessage struct {
	Action string `json:"action"`  // "subscribe" | "unsubscribe"
	TripID int64  `json:"trip_id"` // 0 = all trips
}

// subjectFor returns the NATS subject for a trip filter.
func subjectFor(tripID int64) string {
	if tripID > 0 {
		return natsadapter.TripSubject(tripID)
	}
	return natsadapter.SubjectAll
}

type subscription interface {
	Unsubscribe() error
}

// tripFeed tracks one client's subscriptions. The full feed and per-trip
// feeds are mutually exclusive so no event is relayed twice.
type tripFeed struct {
	subscribe func(subject string) (subscription, error)
	subs      map[string]subscription // subject -> subscription
}

func newTripFeed(subscribe func(subject string) (subscription, error)) *tripFeed {
	return &tripFeed{subscribe: subscribe, subs: make(map[string]subscription)}
}

// add subscribes to tripID (0 = all trips). It reports false when the
// subject was already active.
func (f *tripFeed) add(tripID int64) (string, bool, error) {
	subject := subjectFor(tripID)
	if _, exists := f.subs[subject]; exists {
		return subject, false, nil
	}
	s, err := f.subscribe(subject)
	if err != nil {
		return subject, false, err
	}

	for other, sub := range f.subs {
		if tripID > 0 && other != natsadapter.SubjectAll {
			continue
		}
		_ = sub.Unsubscribe()
		delete(f.subs, other)
	}
	f.subs[subject] = s
	return subject, true, nil
}

// remove drops the subscription for tripID, reporting whether one existed.
func (f *tripFeed) remove(tripID int64) (string, bool) {
	subject := subjectFor(tripID)
	s, exists := f.subs[subject]
	if !exists {
		return subject, false
	}
	_ = s.Unsubscribe()
	delete(f.subs, subject)
	return subject, true
}

func (f *tripFeed) close() {
	for subject, s := range f.subs {
		_ = s.Unsubscribe()
		delete(f.subs, subject)
	}
}

// WebSocketHandler returns a handler that relays trip events from NATS to
// connected clients. Every client starts on the full feed; sending
// {"action":"subscribe","trip_id":42} narrows it to one trip.
func WebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		log := slog.Default().With("remote", c.RemoteAddr().String())
		if nc == nil {
			_ = c.WriteJSON(map[string]string{"error": "event stream unavailable"})
			return
		}

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()
		log.Debug("ws client connected")

		var mu sync.Mutex

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

		feed := newTripFeed(func(subject string) (subscription, error) {
			return nc.Subscribe(subject, relay)
		})
		defer feed.close()

		if _, _, err := feed.add(0); err != nil {
			log.Error("ws default subscribe failed", "error", err)
			return
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
			switch m.Action {
			case "subscribe":
				subject, added, err := feed.add(m.TripID)
				switch {
				case err != nil:
					log.Warn("ws subscribe failed", "subject", subject, "error", err)
					_ = writeJSON(map[string]string{"error": "subscribe failed"})
				case !added:
					_ = writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
				default:
					_ = writeJSON(map[string]string{"status": "subscribed", "subject": subject})
				}

			case "unsubscribe":
				if subject, ok := feed.remove(m.TripID); ok {
					_ = writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		log.Debug("ws client disconnected")
	}
}
