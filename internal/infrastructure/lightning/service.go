// Package lightning is the adapter for the lightning gateway, the http
// service in front of our node. Outgoing payments and the resolution of held
// incoming payments are REST calls, incoming payments are streamed over a
// websocket.
package lightning

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/fiatln-daemon/internal/core/bus"
	"github.com/tdex-network/fiatln-daemon/internal/core/messages"
	"github.com/tdex-network/fiatln-daemon/internal/infrastructure/restclient"
)

const pongWait = time.Minute

type Opts struct {
	Publisher      bus.Publisher
	GatewayURL     string
	RequestTimeout time.Duration
	RateLimit      int
}

type Service struct {
	publisher bus.Publisher
	handler   *bus.Handler
	client    *restclient.Client
	streamURL string

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

func NewService(opts Opts) (*Service, error) {
	if opts.Publisher == nil {
		return nil, fmt.Errorf("missing publisher")
	}
	client, err := restclient.New(restclient.Opts{
		Name:      "lightning",
		BaseURL:   opts.GatewayURL,
		Timeout:   opts.RequestTimeout,
		RateLimit: opts.RateLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid gateway url: %w", err)
	}
	streamURL, err := websocketURL(opts.GatewayURL, streamPath)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway url: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		publisher: opts.Publisher,
		handler:   bus.NewHandler(),
		client:    client,
		streamURL: streamURL,
		ctx:       ctx,
		stop:      cancel,
	}

	handlers := map[bus.Kind]bus.HandlerFunc{
		messages.KindPayRequest:    s.handlePayRequest,
		messages.KindFinishPayment: s.handleFinishPayment,
		messages.KindFailPayment:   s.handleFailPayment,
	}
	for kind, fn := range handlers {
		if err := s.handler.Register(kind, fn); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Service) MessageHandlers() map[bus.Kind]bus.HandlerFunc {
	return s.handler.MessageHandlers()
}

// Start subscribes to the incoming payments stream. The subscription is
// renewed every time the connection drops until Close is called.
func (s *Service) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.listen()
	}()
}

// Close stops the stream and aborts the requests still being retried.
func (s *Service) Close() {
	s.stop()
	s.wg.Wait()
}

func (s *Service) handlePayRequest(msg bus.Message) {
	req := msg.(messages.PayRequest)
	s.run(string(req.Kind()), func() error {
		var res payResponse
		err := s.client.Post(s.ctx, payPath, payRequest{
			Destination:        req.Destination,
			OfferID:            req.OfferID,
			Amount:             req.RecipientCryptoAmount,
			MaxAmount:          req.MaxSenderCryptoAmount,
			FiatAmount:         req.FiatAmount,
			PaymentHash:        req.PaymentHash,
			MinCltvExpiryDelta: req.MinCltvExpiryDelta,
		}, &res)
		if err != nil {
			if !restclient.IsAPIError(err) {
				return err
			}
			log.WithError(err).Warnf("order %d: payment %s failed", req.OrderID, req.PaymentHash)
			res = payResponse{}
		}

		if err := s.publish(messages.PayResult{
			OrderRef:           req.OrderRef,
			SenderCryptoAmount: res.SenderAmount,
			PaymentPreimage:    res.PaymentPreimage,
		}); err != nil {
			log.WithError(err).Warnf("order %d: failed to publish pay result", req.OrderID)
		}
		return nil
	})
}

func (s *Service) handleFinishPayment(msg bus.Message) {
	req := msg.(messages.FinishPayment)
	s.run(string(req.Kind()), func() error {
		err := s.client.Post(
			s.ctx, settlePath(req.PaymentHash), settleRequest{req.PaymentPreimage}, nil,
		)
		if restclient.IsAPIError(err) {
			log.WithError(err).Warnf("failed to settle incoming payment %s", req.PaymentHash)
			return nil
		}
		return err
	})
}

func (s *Service) handleFailPayment(msg bus.Message) {
	req := msg.(messages.FailPayment)
	s.run(string(req.Kind()), func() error {
		err := s.client.Post(s.ctx, failPath(req.PaymentHash), nil, nil)
		if restclient.IsAPIError(err) {
			log.WithError(err).Warnf("failed to fail incoming payment %s", req.PaymentHash)
			return nil
		}
		return err
	})
}

// run retries op on its own goroutine for as long as the gateway is
// unreachable.
func (s *Service) run(name string, op func() error) {
	if s.ctx.Err() != nil {
		log.Debugf("dropping %s, lightning gateway closed", name)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := restclient.Retry(s.ctx, name, op); err != nil {
			log.WithError(err).Debugf("dropping %s", name)
		}
	}()
}

func (s *Service) listen() {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = restclient.RetryInitialInterval
	bo.MaxInterval = restclient.RetryMaxInterval
	bo.MaxElapsedTime = 0

	for {
		connected, err := s.stream()
		if s.ctx.Err() != nil {
			return
		}
		if connected {
			bo.Reset()
		}

		delay := bo.NextBackOff()
		log.WithError(err).Warnf(
			"incoming payments stream dropped, reconnecting in %s", delay.Round(time.Millisecond),
		)
		select {
		case <-time.After(delay):
		case <-s.ctx.Done():
			return
		}
	}
}

// stream reads incoming payments until the connection drops. It returns
// whether the connection was established at all.
func (s *Service) stream() (bool, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(s.ctx, s.streamURL, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	log.Debug("subscribed to incoming payments")

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-s.ctx.Done():
			//nolint
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			conn.Close()
		case <-done:
		}
	}()

	//nolint
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		//nolint
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	for {
		_, buf, err := conn.ReadMessage()
		if err != nil {
			return true, err
		}
		//nolint
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var payment htlc
		if err := json.Unmarshal(buf, &payment); err != nil {
			log.WithError(err).Warn("skipping malformed incoming payment")
			continue
		}
		if err := s.publish(messages.IncomingPayment{
			OfferID:         payment.OfferID,
			CryptoAmount:    payment.Amount,
			FiatAmount:      payment.FiatAmount,
			CltvExpiryDelta: payment.CltvExpiryDelta,
			PaymentHash:     payment.PaymentHash,
		}); err != nil {
			log.WithError(err).Warnf("failed to publish incoming payment %s", payment.PaymentHash)
		}
	}
}

func (s *Service) publish(msg bus.Message) error {
	return s.publisher.Handle(msg)
}

func websocketURL(gatewayURL, path string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(gatewayURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unknown scheme %s", u.Scheme)
	}
	u.Path += path
	return u.String(), nil
}
