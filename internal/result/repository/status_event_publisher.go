package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"judgeresult/internal/common/mq"
	"judgeresult/internal/result/model"
	appErr "judgeresult/pkg/errors"
)

// StatusEventPublisher announces results that reached a terminal status.
type StatusEventPublisher interface {
	PublishFinalStatus(ctx context.Context, event model.FinalStatusEvent) error
}

// MQStatusEventPublisher publishes final status events to a message queue.
type MQStatusEventPublisher struct {
	producer mq.Producer
	topic    string
}

// NewMQStatusEventPublisher creates a new MQ status event publisher.
func NewMQStatusEventPublisher(producer mq.Producer, topic string) *MQStatusEventPublisher {
	return &MQStatusEventPublisher{producer: producer, topic: topic}
}

// PublishFinalStatus publishes a final status event keyed by result id.
func (p *MQStatusEventPublisher) PublishFinalStatus(ctx context.Context, event model.FinalStatusEvent) error {
	if p == nil || p.producer == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("status publisher is not configured")
	}
	if p.topic == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("status topic is required")
	}
	if event.ResultID <= 0 {
		return appErr.BadRequest("result_id is required")
	}
	if !event.Status.Terminal() {
		return appErr.Newf(appErr.InvalidStatus, "status %s is not final", event.Status)
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal status event failed: %w", err)
	}
	message := mq.NewMessage(payload)
	message.ID = strconv.FormatInt(event.ResultID, 10)
	message.SetHeader("status", event.Status.String())
	if err := p.producer.Publish(ctx, p.topic, message); err != nil {
		return appErr.Wrapf(err, appErr.ServiceUnavailable, "publish status event failed")
	}
	return nil
}

// NoopStatusEventPublisher drops events. It is used when no broker is configured.
type NoopStatusEventPublisher struct{}

func (NoopStatusEventPublisher) PublishFinalStatus(context.Context, model.FinalStatusEvent) error {
	return nil
}
