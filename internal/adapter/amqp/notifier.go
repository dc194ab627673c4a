package amqp

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/streadway/amqp"

	"tokendrop/internal/core/port"
)

// Notifier publishes per-batch progress events to a topic exchange so
// external observers (dashboards, alerting) can follow campaigns without
// polling the engine. Publish failures are logged and dropped: progress
// events are advisory, the ledger stays the source of truth.
type Notifier struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
}

// Dial connects to the broker and declares the exchange.
func Dial(url, exchange string, logger *slog.Logger) (*Notifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{conn: conn, channel: ch, exchange: exchange, logger: logger}, nil
}

func (n *Notifier) Notify(_ context.Context, p port.Progress) {
	body, err := json.Marshal(p)
	if err != nil {
		n.logger.Error("marshal progress event", slog.Any("error", err))
		return
	}
	err = n.channel.Publish(n.exchange, "campaign."+p.CampaignID, false, false, amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   p.At,
		Body:        body,
	})
	if err != nil {
		n.logger.Error("publish progress event",
			slog.String("campaign_id", p.CampaignID),
			slog.Any("error", err))
	}
}

func (n *Notifier) Close() error {
	if err := n.channel.Close(); err != nil {
		n.conn.Close()
		return err
	}
	return n.conn.Close()
}
