// Package bus implements the message routing between the components of the
// daemon. Every component registers a handler function for the message kinds
// it consumes and publishes messages to the Router, which forwards each one to
// the single handler registered for its kind.
package bus

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ErrNoHandler is returned when a message is dispatched to a handler that does
// not support its kind.
var ErrNoHandler = errors.New("no handler for message kind")

// Kind identifies the type of a message.
type Kind string

// Message is anything that can travel on the bus.
type Message interface {
	Kind() Kind
}

// HandlerFunc processes a single message.
type HandlerFunc func(Message)

// Publisher is the sending side of the bus.
type Publisher interface {
	Handle(msg Message) error
}

// Registrant exposes the handler functions of a component.
type Registrant interface {
	MessageHandlers() map[Kind]HandlerFunc
}

// Handler dispatches messages to handler functions by kind.
type Handler struct {
	handlers map[Kind]HandlerFunc
}

func NewHandler() *Handler {
	return &Handler{handlers: make(map[Kind]HandlerFunc)}
}

// Register adds fn as the handler for kind.
func (h *Handler) Register(kind Kind, fn HandlerFunc) error {
	if fn == nil {
		return fmt.Errorf("missing handler function for %s", kind)
	}
	if _, ok := h.handlers[kind]; ok {
		return fmt.Errorf("duplicate handler for %s", kind)
	}
	h.handlers[kind] = fn
	return nil
}

// Handle dispatches msg to the function registered for its kind.
func (h *Handler) Handle(msg Message) error {
	fn, ok := h.handlers[msg.Kind()]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, msg.Kind())
	}
	fn(msg)
	return nil
}

func (h *Handler) MessageHandlers() map[Kind]HandlerFunc {
	handlers := make(map[Kind]HandlerFunc, len(h.handlers))
	for k, fn := range h.handlers {
		handlers[k] = fn
	}
	return handlers
}

// Kinds returns the supported message kinds in lexical order.
func (h *Handler) Kinds() []Kind {
	kinds := make([]Kind, 0, len(h.handlers))
	for k := range h.handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// Router forwards every message to the component registered for its kind.
// Messages published before StartMessaging are queued and delivered, in order,
// once messaging starts.
type Router struct {
	lock     sync.Mutex
	handler  *Handler
	started  bool
	flushing bool
	queue    []Message
}

func NewRouter() *Router {
	return &Router{handler: NewHandler()}
}

// AddHandler registers all the kinds supported by r. Registering a kind that
// is already supported by another component is an error.
func (rt *Router) AddHandler(r Registrant) error {
	rt.lock.Lock()
	defer rt.lock.Unlock()

	handlers := r.MessageHandlers()
	for kind := range handlers {
		if _, ok := rt.handler.handlers[kind]; ok {
			return fmt.Errorf("duplicate handler for %s", kind)
		}
	}
	for kind, fn := range handlers {
		if err := rt.handler.Register(kind, fn); err != nil {
			return err
		}
	}
	return nil
}

// Handle routes msg to its handler, or queues it if messaging has not
// started yet.
func (rt *Router) Handle(msg Message) error {
	rt.lock.Lock()
	if !rt.started {
		rt.queue = append(rt.queue, msg)
		rt.lock.Unlock()
		return nil
	}
	rt.lock.Unlock()

	return rt.dispatch(msg)
}

// StartMessaging delivers the queued messages and makes the router forward
// any further message immediately. Messages published while the queue is
// being flushed are appended to it so that ordering is preserved.
func (rt *Router) StartMessaging() {
	rt.lock.Lock()
	if rt.started || rt.flushing {
		rt.lock.Unlock()
		return
	}
	rt.flushing = true
	rt.lock.Unlock()

	for {
		rt.lock.Lock()
		if len(rt.queue) <= 0 {
			rt.queue = nil
			rt.started = true
			rt.flushing = false
			rt.lock.Unlock()
			return
		}
		msg := rt.queue[0]
		rt.queue = rt.queue[1:]
		rt.lock.Unlock()

		if err := rt.dispatch(msg); err != nil {
			log.WithError(err).Warn("dropping queued message")
		}
	}
}

func (rt *Router) dispatch(msg Message) error {
	rt.lock.Lock()
	fn, ok := rt.handler.handlers[msg.Kind()]
	rt.lock.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNoHandler, msg.Kind())
	}
	fn(msg)
	return nil
}
