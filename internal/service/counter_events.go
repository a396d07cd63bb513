package service

import (
	"encoding/json"
	"log"
	"time"

	"postboard/internal/util"
)

const (
	// CounterExchange fans counter events out to every server instance
	CounterExchange = "counter_events"

	EventPostCreated = "post.created"
	EventPostLiked   = "post.liked"
	EventPostViewed  = "post.viewed"
)

// CounterEvent announces a change to a post's public counters
type CounterEvent struct {
	Type       string    `json:"type"`
	PostID     uint      `json:"post_id"`
	UserID     uint      `json:"user_id"`
	Likes      int       `json:"likes"`
	ViewsCount int       `json:"views_count"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e CounterEvent) payload() map[string]interface{} {
	return map[string]interface{}{
		"type":        e.Type,
		"post_id":     e.PostID,
		"user_id":     e.UserID,
		"likes":       e.Likes,
		"views_count": e.ViewsCount,
		"timestamp":   e.Timestamp.Format(time.RFC3339),
	}
}

// Broadcaster pushes a payload to websocket clients following a post
type Broadcaster interface {
	BroadcastToPost(postID uint, payload map[string]interface{})
}

type EventPublisher interface {
	Publish(event CounterEvent)
}

type eventPublisher struct {
	rabbitMQ *util.RabbitMQClient
	hub      Broadcaster
}

// NewEventPublisher sends events through RabbitMQ when available and
// straight to the hub otherwise. Either argument may be nil.
func NewEventPublisher(rabbitMQ *util.RabbitMQClient, hub Broadcaster) EventPublisher {
	return &eventPublisher{
		rabbitMQ: rabbitMQ,
		hub:      hub,
	}
}

func (p *eventPublisher) Publish(event CounterEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if p.rabbitMQ != nil && !p.rabbitMQ.IsClosed() {
		msgJSON, err := json.Marshal(event)
		if err == nil {
			err = p.rabbitMQ.Publish(CounterExchange, "", msgJSON)
		}
		if err == nil {
			return
		}
		log.Printf("Failed to publish %s event for post %d to RabbitMQ: %v", event.Type, event.PostID, err)
	}

	if p.hub != nil {
		p.hub.BroadcastToPost(event.PostID, event.payload())
	}
}

func publish(p EventPublisher, event CounterEvent) {
	if p != nil {
		p.Publish(event)
	}
}
