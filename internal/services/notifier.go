package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Event types fanned out to live clients.
const (
	EventSolveAccepted      = "solve.accepted"
	EventTeamCreated        = "team.created"
	EventTeamMemberJoined   = "team.member_joined"
	EventTeamMemberLeft     = "team.member_left"
	EventChallengePublished = "challenge.published"
)

// Event is the envelope published on the notification channel.
type Event struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	At      time.Time   `json:"at"`
	Payload interface{} `json:"payload"`
}

// Notifier fans out aggregate changes to connected clients. Delivery is
// best-effort and at-most-once: a failed publish must never affect the
// scoring decision it announces, and consumers fall back to polling.
type Notifier interface {
	Publish(eventType string, payload interface{})
}

// RedisNotifier publishes events on Redis pub/sub channels, one channel per
// event family (ctf.solves, ctf.teams, ctf.challenges).
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier creates a Notifier backed by the given Redis client. A
// nil client yields a notifier that drops everything, which keeps tests and
// redis-less deployments wiring-compatible.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// Publish sends the event without waiting for delivery. Errors are logged
// and swallowed.
func (n *RedisNotifier) Publish(eventType string, payload interface{}) {
	if n.client == nil {
		return
	}

	event := Event{
		ID:      uuid.NewString(),
		Type:    eventType,
		At:      time.Now(),
		Payload: payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		logrus.WithError(err).WithField("type", eventType).Warn("failed to encode event")
		return
	}

	channel := channelFor(eventType)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := n.client.Publish(ctx, channel, data).Err(); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"type":    eventType,
				"channel": channel,
			}).Warn("failed to publish event")
		}
	}()
}

func channelFor(eventType string) string {
	switch {
	case strings.HasPrefix(eventType, "solve."):
		return "ctf.solves"
	case strings.HasPrefix(eventType, "team."):
		return "ctf.teams"
	case strings.HasPrefix(eventType, "challenge."):
		return "ctf.challenges"
	default:
		return "ctf.events"
	}
}
