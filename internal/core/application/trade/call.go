package trade

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/fiatln-daemon/internal/core/bus"
	"github.com/tdex-network/fiatln-daemon/internal/core/messages"
)

// call publishes req and blocks until the correlated reply is delivered with
// SetCallResult. Context cancellation is ignored: once a request is out its
// reply is always awaited. An ExchangeError reply is returned as error.
func (t *OrderTask) call(req messages.Request, expected bus.Kind) (messages.Reply, error) {
	t.callLock.Lock()
	if len(t.pendingCall) > 0 {
		pending := t.pendingCall
		t.callLock.Unlock()
		panic(fmt.Sprintf(
			"order %d: call %s while %s is still pending", t.orderID, req.Kind(), pending,
		))
	}
	t.pendingCall = expected
	t.callLock.Unlock()

	defer func() {
		t.callLock.Lock()
		t.pendingCall = ""
		t.callLock.Unlock()
	}()

	start := time.Now()
	if err := t.publisher.Handle(req); err != nil {
		return nil, fmt.Errorf("failed to publish %s: %w", req.Kind(), err)
	}

	reply := <-t.replies
	callDuration.WithLabelValues(string(req.Kind())).Observe(time.Since(start).Seconds())

	if exchangeErr, ok := reply.(messages.ExchangeError); ok {
		return nil, exchangeErr
	}
	if reply.Kind() != expected {
		panic(fmt.Sprintf(
			"order %d: unexpected reply %s to %s, expected %s",
			t.orderID, reply.Kind(), req.Kind(), expected,
		))
	}
	return reply, nil
}

// SetCallResult delivers the reply to the pending call, if any.
func (t *OrderTask) SetCallResult(reply messages.Reply) {
	t.callLock.Lock()
	pending := t.pendingCall
	t.callLock.Unlock()

	if len(pending) <= 0 {
		log.Warnf("order %d: dropping %s, no call pending", t.orderID, reply.Kind())
		return
	}

	select {
	case t.replies <- reply:
	default:
		log.Warnf("order %d: dropping %s, a reply is already queued", t.orderID, reply.Kind())
	}
}

// callFor is the typed form of OrderTask.call.
func callFor[R messages.Reply](t *OrderTask, req messages.Request) (R, error) {
	var expected R
	reply, err := t.call(req, expected.Kind())
	if err != nil {
		return expected, err
	}
	return reply.(R), nil
}

// callUntilSuccess repeats the call for as long as the exchange rejects it.
// It's used for the steps that cannot be rolled back.
func callUntilSuccess[R messages.Reply](
	ctx context.Context, t *OrderTask, req messages.Request,
) (R, error) {
	for {
		reply, err := callFor[R](t, req)
		if err == nil || !isExchangeError(err) {
			return reply, err
		}

		log.WithError(err).Warnf(
			"order %d: %s failed, retrying in %s", t.orderID, req.Kind(), t.retryInterval,
		)
		if err := sleep(ctx, t.retryInterval, nil); err != nil {
			return reply, err
		}
	}
}

func isExchangeError(err error) bool {
	var exchangeErr messages.ExchangeError
	return errors.As(err, &exchangeErr)
}

// sleep waits for d to elapse. It returns early with nil if interrupt is
// closed and with the context error if ctx is done.
func sleep(ctx context.Context, d time.Duration, interrupt <-chan struct{}) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-interrupt:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
