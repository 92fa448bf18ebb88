package emailqueue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"numera.app/backend/internal/events"
)

// EmailAudit records on the notification row that its email was handed off.
type EmailAudit interface {
	MarkEmailSent(ctx context.Context, id uuid.UUID) error
}

// Publisher forwards notification.email.send events to the RabbitMQ exchange
// the email subsystem consumes and marks the originating notification as
// emailed. Without a broker configured it degrades to log-only so local
// development does not need RabbitMQ running.
type Publisher struct {
	conn     *amqp091.Connection
	exchange string
	audit    EmailAudit
}

// New dials the broker and declares the topic exchange. An empty URL returns
// a log-only publisher.
func New(url, exchange string, audit EmailAudit) (*Publisher, error) {
	if url == "" {
		return &Publisher{exchange: exchange, audit: audit}, nil
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, exchange: exchange, audit: audit}, nil
}

// Register subscribes the publisher to the bus topic it forwards.
func (p *Publisher) Register(bus *events.Bus) {
	bus.Subscribe(events.TopicNotificationEmailSend, p.handle)
}

func (p *Publisher) handle(ctx context.Context, topic string, payload any) {
	req, ok := payload.(events.EmailSendRequest)
	if !ok {
		log.Printf("[WARN] email send event with unexpected payload %T dropped", payload)
		return
	}

	if p.conn == nil {
		log.Printf("email queue disabled, would send %s to %s", req.Type, req.RecipientID)
		return
	}

	if err := p.publish(ctx, topic, req); err != nil {
		// Email delivery is best-effort; the in-app notification already
		// exists when one was due.
		log.Printf("[WARN] publish email request for %s failed: %v", req.RecipientID, err)
		return
	}
	p.markSent(ctx, req.NotificationID)
}

// markSent stamps the stored notification after a successful hand-off. Email-
// only recipients have no stored row, so a nil ID is skipped.
func (p *Publisher) markSent(ctx context.Context, id *uuid.UUID) {
	if id == nil || p.audit == nil {
		return
	}
	if err := p.audit.MarkEmailSent(ctx, *id); err != nil {
		log.Printf("[WARN] mark notification %s email-sent failed: %v", id, err)
	}
}

func (p *Publisher) publish(ctx context.Context, key string, req events.EmailSendRequest) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now(),
		Body:         body,
	})
}

func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
