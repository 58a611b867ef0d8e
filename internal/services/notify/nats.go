package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ivankudzin/matchcore/internal/domain/model"
)

// NatsConn is the part of *nats.Conn the publisher needs.
type NatsConn interface {
	PublishMsg(msg *nats.Msg) error
	Drain() error
}

func ConnectNats(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return nc, nil
}

// NatsPublisher pushes notifications on "<prefix>.<recipient_id>" for live
// delivery gateways.
type NatsPublisher struct {
	conn          NatsConn
	subjectPrefix string
}

func NewNatsPublisher(conn NatsConn, subjectPrefix string) *NatsPublisher {
	if subjectPrefix == "" {
		subjectPrefix = "notifications"
	}
	return &NatsPublisher{conn: conn, subjectPrefix: subjectPrefix}
}

func (p *NatsPublisher) Publish(ctx context.Context, n model.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	msg := nats.NewMsg(p.Subject(n.RecipientID))
	msg.Data = body
	msg.Header.Set(nats.MsgIdHdr, n.ID)
	msg.Header.Set("Notification-Type", string(n.Type))

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish notification to nats: %w", err)
	}
	return nil
}

func (p *NatsPublisher) Subject(recipientID int64) string {
	return p.subjectPrefix + "." + strconv.FormatInt(recipientID, 10)
}

func (p *NatsPublisher) Close() error {
	return p.conn.Drain()
}
