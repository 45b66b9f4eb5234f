package pubsub

import (
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/tdex-network/fiatln-daemon/internal/core/ports"
)

// webhook is an endpoint notified with a POST request for every message
// published on its topic. Deliveries are signed if it has a secret.
type webhook struct {
	id       string
	topic    string
	endpoint string
	secret   string
}

func (w webhook) Topic() string    { return w.topic }
func (w webhook) Id() string       { return w.id }
func (w webhook) NotifyAt() string { return w.endpoint }
func (w webhook) IsSecured() bool  { return len(w.secret) > 0 }

type webhooks []webhook

func (w webhooks) toPortable() []ports.Subscription {
	subs := make([]ports.Subscription, 0, len(w))
	for _, hook := range w {
		subs = append(subs, hook)
	}
	return subs
}

// store keeps the webhooks indexed by id and by topic. If built with a set
// of topics, only those (and AnyTopic) can be subscribed.
type store struct {
	lock         sync.RWMutex
	topics       map[string]bool
	hooksByID    map[string]webhook
	hooksByTopic map[string][]string
}

func newStore(topics []string) *store {
	var known map[string]bool
	if len(topics) > 0 {
		known = map[string]bool{ports.AnyTopic: true}
		for _, topic := range topics {
			known[topic] = true
		}
	}
	return &store{
		topics:       known,
		hooksByID:    make(map[string]webhook),
		hooksByTopic: make(map[string][]string),
	}
}

func (s *store) add(topic, endpoint, secret string) (webhook, error) {
	if len(topic) <= 0 {
		return webhook{}, fmt.Errorf("missing topic")
	}
	if s.topics != nil && !s.topics[topic] {
		return webhook{}, fmt.Errorf("unknown topic %q", topic)
	}
	u, err := url.ParseRequestURI(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return webhook{}, fmt.Errorf("invalid webhook endpoint, must be a valid http url")
	}

	hook := webhook{uuid.New().String(), topic, endpoint, secret}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.hooksByID[hook.id] = hook
	s.hooksByTopic[topic] = append(s.hooksByTopic[topic], hook.id)
	return hook, nil
}

func (s *store) remove(id string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	hook, ok := s.hooksByID[id]
	if !ok {
		return fmt.Errorf("webhook not found")
	}
	delete(s.hooksByID, id)

	ids := s.hooksByTopic[hook.topic]
	for i, hookID := range ids {
		if hookID == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) <= 0 {
		delete(s.hooksByTopic, hook.topic)
		return nil
	}
	s.hooksByTopic[hook.topic] = ids
	return nil
}

// get returns the webhooks for the given topic sorted by id, or all of them
// if topic is empty.
func (s *store) get(topic string) webhooks {
	s.lock.RLock()
	defer s.lock.RUnlock()

	hooks := make(webhooks, 0)
	if len(topic) <= 0 {
		for _, hook := range s.hooksByID {
			hooks = append(hooks, hook)
		}
	} else {
		for _, id := range s.hooksByTopic[topic] {
			hooks = append(hooks, s.hooksByID[id])
		}
	}
	sort.SliceStable(hooks, func(i, j int) bool {
		return hooks[i].id < hooks[j].id
	})
	return hooks
}
