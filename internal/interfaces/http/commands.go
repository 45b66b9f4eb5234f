package httpinterface

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/fiatln-daemon/internal/core/bus"
	"github.com/tdex-network/fiatln-daemon/internal/core/messages"
)

// commandBridge turns the commands published on the bus and their
// asynchronous replies into blocking calls.
type commandBridge struct {
	publisher bus.Publisher
	timeout   time.Duration
	handler   *bus.Handler

	lock    sync.Mutex
	pending map[string]chan bus.Message
}

func newCommandBridge(publisher bus.Publisher, timeout time.Duration) *commandBridge {
	b := &commandBridge{
		publisher: publisher,
		timeout:   timeout,
		handler:   bus.NewHandler(),
		pending:   make(map[string]chan bus.Message),
	}
	//nolint
	b.handler.Register(messages.KindCommandResult, b.handleReply)
	//nolint
	b.handler.Register(messages.KindCommandError, b.handleReply)
	return b
}

func (b *commandBridge) MessageHandlers() map[bus.Kind]bus.HandlerFunc {
	return b.handler.MessageHandlers()
}

func (b *commandBridge) handleReply(msg bus.Message) {
	reply := msg.(messages.Command)

	b.lock.Lock()
	ch, ok := b.pending[reply.ID()]
	delete(b.pending, reply.ID())
	b.lock.Unlock()

	if !ok {
		log.Debugf("dropping %s for unknown command %s", msg.Kind(), reply.ID())
		return
	}
	ch <- msg
}

// execute publishes the command returned by newCommand and waits for its
// reply. A failed command is returned as a messages.CommandError.
func (b *commandBridge) execute(
	ctx context.Context, newCommand func(messages.CommandRef) messages.Command,
) (interface{}, error) {
	ref := messages.CommandRef{CommandID: uuid.New().String()}
	ch := make(chan bus.Message, 1)

	b.lock.Lock()
	b.pending[ref.CommandID] = ch
	b.lock.Unlock()

	defer func() {
		b.lock.Lock()
		delete(b.pending, ref.CommandID)
		b.lock.Unlock()
	}()

	cmd := newCommand(ref)
	if err := b.publisher.Handle(cmd); err != nil {
		return nil, fmt.Errorf("failed to publish %s: %w", cmd.Kind(), err)
	}

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	select {
	case reply := <-ch:
		switch r := reply.(type) {
		case messages.CommandResult:
			return r.Payload, nil
		case messages.CommandError:
			return nil, r
		default:
			return nil, fmt.Errorf("unexpected reply %s", reply.Kind())
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
