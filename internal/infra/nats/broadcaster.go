package nats

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"game-session-service/internal/app"
)

// Broadcaster publishes session events to NATS so every service instance can
// relay them to its own websocket clients. Subjects are
// game.<accessCode>.<audience>.
type Broadcaster struct {
	conn *nats.Conn
}

func NewBroadcaster(conn *nats.Conn) *Broadcaster {
	return &Broadcaster{conn: conn}
}

func subject(accessCode string, audience app.Audience) string {
	return fmt.Sprintf("game.%s.%s", accessCode, audience)
}

func (b *Broadcaster) Broadcast(accessCode string, audience app.Audience, event app.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("type", event.Type).Msg("marshal event")
		return
	}
	if err := b.conn.Publish(subject(accessCode, audience), data); err != nil {
		log.Error().Err(err).Str("access_code", accessCode).Msg("publish event")
	}
}

// Bridge subscribes to all session subjects and forwards decoded events into
// the local delegate (normally the websocket hub). Returns a drain function.
func Bridge(conn *nats.Conn, delegate app.Broadcaster) (func(), error) {
	sub, err := conn.Subscribe("game.*.*", func(msg *nats.Msg) {
		var event app.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Warn().Err(err).Str("subject", msg.Subject).Msg("drop malformed event")
			return
		}
		parts := strings.Split(msg.Subject, ".")
		if len(parts) != 3 {
			return
		}
		delegate.Broadcast(parts[1], app.Audience(parts[2]), event)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe game subjects: %w", err)
	}
	return func() { _ = sub.Drain() }, nil
}
