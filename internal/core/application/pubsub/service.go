package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
	"github.com/tdex-network/fiatln-daemon/internal/core/ports"
)

const (
	EventOrderCompleted      = "ORDER_COMPLETED"
	EventOrderCanceled       = "ORDER_CANCELED"
	EventTransactionFinished = "TRANSACTION_FINISHED"
	EventTransactionCanceled = "TRANSACTION_CANCELED"
)

var events = map[string]bool{
	EventOrderCompleted:      true,
	EventOrderCanceled:       true,
	EventTransactionFinished: true,
	EventTransactionCanceled: true,
	ports.AnyTopic:           true,
}

// Events returns the events webhooks can subscribe to, besides AnyTopic.
func Events() []string {
	return []string{
		EventOrderCompleted,
		EventOrderCanceled,
		EventTransactionFinished,
		EventTransactionCanceled,
	}
}

// WebhookInfo describes a registered webhook. The secret is never exposed.
type WebhookInfo struct {
	ID        string `json:"id"`
	Event     string `json:"event"`
	Endpoint  string `json:"endpoint"`
	IsSecured bool   `json:"is_secured"`
}

// Service notifies the webhooks about orders and transactions reaching a
// terminal status. Notifications are delivered in background so that order
// tasks are never slowed down by slow endpoints.
type Service struct {
	pubsub   ports.PubSub
	settings domain.Settings
	wg       sync.WaitGroup
}

func NewService(pubsub ports.PubSub, settings domain.Settings) *Service {
	return &Service{pubsub: pubsub, settings: settings}
}

func (s *Service) AddWebhook(
	_ context.Context, event, endpoint, secret string,
) (string, error) {
	if !events[event] {
		return "", fmt.Errorf("invalid webhook event type %q", event)
	}
	return s.pubsub.Subscribe(event, endpoint, secret)
}

func (s *Service) RemoveWebhook(_ context.Context, id string) error {
	return s.pubsub.Unsubscribe(id)
}

// ListWebhooks returns the webhooks notified for the given event, or all of
// them if event is empty.
func (s *Service) ListWebhooks(_ context.Context, event string) ([]WebhookInfo, error) {
	if len(event) > 0 && !events[event] {
		return nil, fmt.Errorf("invalid webhook event type %q", event)
	}
	subs := s.pubsub.ListSubscriptionsForTopic(event)
	webhooks := make([]WebhookInfo, 0, len(subs))
	for _, sub := range subs {
		webhooks = append(webhooks, WebhookInfo{
			ID:        sub.Id(),
			Event:     sub.Topic(),
			Endpoint:  sub.NotifyAt(),
			IsSecured: sub.IsSecured(),
		})
	}
	return webhooks, nil
}

func (s *Service) OrderClosed(order domain.Order) {
	event := EventOrderCompleted
	if order.Status == domain.OrderStatusCanceled {
		event = EventOrderCanceled
	}
	s.publish(event, map[string]interface{}{
		"event": event,
		"order": getOrderPayload(order, s.settings),
	})
}

func (s *Service) BuyTransactionClosed(order domain.Order, tx domain.BuyTransaction) {
	event := transactionEvent(tx.Status)
	s.publish(event, map[string]interface{}{
		"event":       event,
		"order":       getOrderPayload(order, s.settings),
		"transaction": getBuyTransactionPayload(tx, s.settings),
	})
}

func (s *Service) SellTransactionClosed(order domain.Order, tx domain.SellTransaction) {
	event := transactionEvent(tx.Status)
	s.publish(event, map[string]interface{}{
		"event":       event,
		"order":       getOrderPayload(order, s.settings),
		"transaction": getSellTransactionPayload(tx, s.settings),
	})
}

// Close waits for the pending notifications to be delivered.
func (s *Service) Close() {
	s.wg.Wait()
}

func (s *Service) publish(event string, payload map[string]interface{}) {
	message, _ := json.Marshal(payload)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.pubsub.Publish(event, string(message)); err != nil {
			log.WithError(err).Warnf("failed to notify %s", event)
		}
	}()
}

func transactionEvent(status domain.TransactionStatus) string {
	if status == domain.TxStatusCanceled {
		return EventTransactionCanceled
	}
	return EventTransactionFinished
}
