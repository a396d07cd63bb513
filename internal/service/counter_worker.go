package service

import (
	"encoding/json"
	"errors"
	"log"
	"sync"

	"postboard/internal/util"

	amqp "github.com/rabbitmq/amqp091-go"
)

// CounterWorker consumes counter events from RabbitMQ and pushes them to WebSocket
type CounterWorker struct {
	rabbitMQ *util.RabbitMQClient
	wsHub    Broadcaster
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewCounterWorker(rabbitMQ *util.RabbitMQClient, wsHub Broadcaster) *CounterWorker {
	return &CounterWorker{
		rabbitMQ: rabbitMQ,
		wsHub:    wsHub,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start binds this instance's queue to the counter exchange and starts consuming in a goroutine
func (w *CounterWorker) Start() error {
	if w.rabbitMQ == nil {
		close(w.done)
		return errors.New("rabbitmq not available")
	}

	queue, err := w.rabbitMQ.DeclareFanoutQueue(CounterExchange)
	if err != nil {
		close(w.done)
		return err
	}

	msgs, err := w.rabbitMQ.GetChannel().Consume(
		queue,
		"counter_worker",
		false, // manual ack
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		close(w.done)
		return err
	}

	go func() {
		defer close(w.done)
		log.Println("Counter worker started, consuming messages...")
		for {
			select {
			case <-w.stopChan:
				log.Println("Counter worker stopped")
				return
			case msg, ok := <-msgs:
				if !ok {
					log.Println("Counter queue closed")
					return
				}
				if err := w.processMessage(msg); err != nil {
					log.Printf("Error processing counter message: %v", err)
					// Malformed messages are dropped, not requeued
					msg.Nack(false, false)
				} else {
					msg.Ack(false)
				}
			}
		}
	}()

	return nil
}

func (w *CounterWorker) processMessage(msg amqp.Delivery) error {
	var event CounterEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		return err
	}
	if event.PostID == 0 {
		return errors.New("counter event without post id")
	}

	if w.wsHub != nil {
		w.wsHub.BroadcastToPost(event.PostID, event.payload())
	}
	return nil
}

// Stop stops consuming and waits for the loop to exit
func (w *CounterWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
	})
	<-w.done
}
