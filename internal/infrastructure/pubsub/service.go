package pubsub

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/sony/gobreaker"
	"github.com/tdex-network/fiatln-daemon/internal/core/ports"
	"github.com/tdex-network/fiatln-daemon/pkg/circuitbreaker"
	"golang.org/x/sync/errgroup"
)

const defaultRequestTimeout = 15 * time.Second

// tokenTTL is the validity of the tokens signing secured deliveries.
var tokenTTL = 5 * time.Minute

type service struct {
	store      *store
	httpClient *client
	cb         *gobreaker.CircuitBreaker
}

// NewService returns a webhook based PubSub. Subscriptions are kept in
// memory. If topics are given, subscribing to any other topic fails.
func NewService(requestTimeout time.Duration, topics ...string) ports.PubSub {
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	return &service{
		store:      newStore(topics),
		httpClient: newHTTPClient(requestTimeout),
		cb:         circuitbreaker.NewCircuitBreaker("webhooks"),
	}
}

func (ws *service) Subscribe(topic, endpoint, secret string) (string, error) {
	hook, err := ws.store.add(topic, endpoint, secret)
	if err != nil {
		return "", err
	}
	return hook.id, nil
}

func (ws *service) Unsubscribe(id string) error {
	return ws.store.remove(id)
}

func (ws *service) ListSubscriptionsForTopic(topic string) []ports.Subscription {
	return ws.listSubscriptionsForTopic(topic).toPortable()
}

func (ws *service) Publish(topic string, message string) error {
	return ws.publishForTopic(topic, message)
}

func (ws *service) listSubscriptionsForTopic(topic string) webhooks {
	hooks := ws.store.get(topic)
	if topic != ports.AnyTopic && topic != ports.UnspecifiedTopic {
		hooks = append(hooks, ws.store.get(ports.AnyTopic)...)
	}
	return hooks
}

func (ws *service) publishForTopic(topic, message string) error {
	hooks := ws.listSubscriptionsForTopic(topic)

	eg := &errgroup.Group{}
	for i := range hooks {
		hook := hooks[i]
		eg.Go(func() error { return ws.doRequest(hook, message) })
	}
	return eg.Wait()
}

func (ws *service) doRequest(hook webhook, payload string) error {
	_, err := ws.cb.Execute(func() (interface{}, error) {
		headers := map[string]string{
			"Content-Type": "application/json",
		}
		if hook.IsSecured() {
			token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
				Subject:   hook.topic,
				IssuedAt:  time.Now().Unix(),
				ExpiresAt: time.Now().Add(tokenTTL).Unix(),
			})
			tokenString, err := token.SignedString([]byte(hook.secret))
			if err != nil {
				return nil, err
			}
			headers["Authorization"] = fmt.Sprintf("Bearer %s", tokenString)
		}

		status, resp, err := ws.httpClient.post(hook.endpoint, payload, headers)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("%s: %d %s", hook.endpoint, status, resp)
		}
		return nil, nil
	})

	return err
}
