package rabbitmq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"recording-uploader/config"
	"recording-uploader/dto"
)

const (
	exchangeName = "recording_events"
	routingKey   = "recording.ready"
)

// Publisher emits the best-effort "recording ready" nudge after a completed
// session commit. Consumers still treat the session record as the source of
// truth; a lost event only delays pickup until the next poll.
type Publisher struct {
	conn *amqp.Connection
	cfg  *config.RabbitMQ
}

func NewPublisher(conn *amqp.Connection, cfg *config.RabbitMQ) *Publisher {
	return &Publisher{conn: conn, cfg: cfg}
}

func (p *Publisher) PublishRecordingReady(ctx context.Context, evt dto.RecordingReadyEvent) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	err = ch.ExchangeDeclare(exchangeName, p.cfg.Kind, true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("exchange", exchangeName).Msg("failed to declare exchange")
		return err
	}

	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx, exchangeName, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Body:         body,
	})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("session_id", evt.SessionId).Msg("failed to publish recording ready event")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("session_id", evt.SessionId).
		Str("routing_key", routingKey).
		Msg("recording ready event published")
	return nil
}
