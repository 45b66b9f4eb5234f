// Package exchange is the fiat exchange adapter. It executes every exchange
// request published on the bus as a REST call and publishes the outcome as
// the correlated reply. The connection parameters come from the runtime
// configuration and are updated on every ConfigChanged message.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/fiatln-daemon/internal/core/bus"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
	"github.com/tdex-network/fiatln-daemon/internal/core/messages"
	"github.com/tdex-network/fiatln-daemon/internal/infrastructure/restclient"
)

var errNotConfigured = errors.New("exchange url not configured")

type Opts struct {
	Publisher      bus.Publisher
	RequestTimeout time.Duration
	RateLimit      int
}

type Service struct {
	publisher      bus.Publisher
	handler        *bus.Handler
	requestTimeout time.Duration
	rateLimit      int

	lock   sync.RWMutex
	client *restclient.Client

	ctx  context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

func NewService(opts Opts) (*Service, error) {
	if opts.Publisher == nil {
		return nil, fmt.Errorf("missing publisher")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		publisher:      opts.Publisher,
		handler:        bus.NewHandler(),
		requestTimeout: opts.RequestTimeout,
		rateLimit:      opts.RateLimit,
		ctx:            ctx,
		stop:           cancel,
	}

	handlers := map[bus.Kind]bus.HandlerFunc{
		messages.KindConfigChanged:     s.handleConfigChanged,
		messages.KindStartReservation:  s.handleStartReservation,
		messages.KindSelfReport:        s.handleSelfReport,
		messages.KindCancelReservation: s.handleCancelReservation,
		messages.KindSendFunds:         s.handleSendFunds,
		messages.KindReceiveFunds:      s.handleReceiveFunds,
		messages.KindAddOffer:          s.handleAddOffer,
		messages.KindRemoveOffer:       s.handleRemoveOffer,
		messages.KindFindOffers:        s.handleFindOffers,
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

// IsConnected tells whether the exchange is configured and answered the
// latest request.
func (s *Service) IsConnected() bool {
	client := s.currentClient()
	return client != nil && client.IsConnected()
}

// Close aborts the requests still being retried. Their replies are never
// published.
func (s *Service) Close() {
	s.stop()
	s.wg.Wait()
}

func (s *Service) handleConfigChanged(msg bus.Message) {
	values := msg.(messages.ConfigChanged).Values

	url := values[domain.ConfigExchangeURL]
	if len(url) <= 0 {
		s.setClient(nil)
		log.Warn("exchange url not configured")
		return
	}

	signer := newSigner(
		values[domain.ConfigExchangeAPIKey], values[domain.ConfigExchangeAPISecret],
	)
	client, err := restclient.New(restclient.Opts{
		Name:      "exchange",
		BaseURL:   url,
		Timeout:   s.requestTimeout,
		RateLimit: s.rateLimit,
		Auth:      signer.headers,
	})
	if err != nil {
		s.setClient(nil)
		log.WithError(err).Warn("invalid exchange configuration")
		return
	}
	s.setClient(client)
	log.Infof("exchange configured at %s", url)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := client.Get(s.ctx, statusPath, nil); err != nil && !restclient.IsAPIError(err) {
			log.WithError(err).Warn("exchange is unreachable")
		}
	}()
}

func (s *Service) handleStartReservation(msg bus.Message) {
	req := msg.(messages.StartReservation)
	s.execute(req, func(ctx context.Context, c *restclient.Client) (messages.Reply, error) {
		var res startReservationResponse
		if err := c.Post(ctx, reservationsPath, startReservationRequest{
			IdempotencyKey:     req.IdempotencyKey,
			Amount:             req.Amount,
			SenderTimeoutDelta: req.SenderTimeoutDelta,
			LockedTimeoutDelta: req.LockedTimeoutDelta,
			ReceiverPaysFee:    req.ReceiverPaysFee,
		}, &res); err != nil {
			return nil, err
		}
		return messages.StartReservationResult{
			OrderRef:       req.OrderRef,
			SenderAmount:   res.SenderAmount,
			ReceiverAmount: res.ReceiverAmount,
			PaymentHash:    res.PaymentHash,
		}, nil
	})
}

func (s *Service) handleSelfReport(msg bus.Message) {
	req := msg.(messages.SelfReport)
	s.execute(req, func(ctx context.Context, c *restclient.Client) (messages.Reply, error) {
		if err := c.Post(ctx, selfReportPath, selfReportRequest{req.Report}, nil); err != nil {
			return nil, err
		}
		return messages.SelfReportResult{OrderRef: req.OrderRef}, nil
	})
}

func (s *Service) handleCancelReservation(msg bus.Message) {
	req := msg.(messages.CancelReservation)
	s.execute(req, func(ctx context.Context, c *restclient.Client) (messages.Reply, error) {
		if err := c.Post(ctx, cancelReservationPath(req.PaymentHash), nil, nil); err != nil {
			return nil, err
		}
		return messages.CancelReservationResult{OrderRef: req.OrderRef}, nil
	})
}

func (s *Service) handleSendFunds(msg bus.Message) {
	req := msg.(messages.SendFunds)
	s.execute(req, func(ctx context.Context, c *restclient.Client) (messages.Reply, error) {
		var res sendFundsResponse
		if err := c.Post(ctx, sendFundsPath, sendFundsRequest{
			IdempotencyKey:        req.IdempotencyKey,
			Amount:                req.Amount,
			PaymentHash:           req.PaymentHash,
			MaxLockedTimeoutDelta: req.MaxLockedTimeoutDelta,
			Report:                req.Report,
		}, &res); err != nil {
			return nil, err
		}
		return messages.SendFundsResult{
			OrderRef:        req.OrderRef,
			PaymentPreimage: res.PaymentPreimage,
		}, nil
	})
}

func (s *Service) handleReceiveFunds(msg bus.Message) {
	req := msg.(messages.ReceiveFunds)
	s.execute(req, func(ctx context.Context, c *restclient.Client) (messages.Reply, error) {
		if err := c.Post(
			ctx, receiveFundsPath, receiveFundsRequest{req.PaymentPreimage}, nil,
		); err != nil {
			return nil, err
		}
		return messages.ReceiveFundsResult{OrderRef: req.OrderRef}, nil
	})
}

func (s *Service) handleAddOffer(msg bus.Message) {
	req := msg.(messages.AddOffer)
	s.execute(req, func(ctx context.Context, c *restclient.Client) (messages.Reply, error) {
		var res addOfferResponse
		if err := c.Post(ctx, offersPath, addOfferRequest{req.Offer}, &res); err != nil {
			return nil, err
		}
		return messages.AddOfferResult{OrderRef: req.OrderRef, OfferID: res.OfferID}, nil
	})
}

func (s *Service) handleRemoveOffer(msg bus.Message) {
	req := msg.(messages.RemoveOffer)
	s.execute(req, func(ctx context.Context, c *restclient.Client) (messages.Reply, error) {
		path := offersPath + "/" + strconv.FormatInt(req.OfferID, 10)
		if err := c.Delete(ctx, path, nil); err != nil {
			return nil, err
		}
		return messages.RemoveOfferResult{OrderRef: req.OrderRef}, nil
	})
}

func (s *Service) handleFindOffers(msg bus.Message) {
	req := msg.(messages.FindOffers)
	s.execute(req, func(ctx context.Context, c *restclient.Client) (messages.Reply, error) {
		var res findOffersResponse
		if err := c.Post(ctx, findOffersPath, findOffersRequest{req.Query}, &res); err != nil {
			return nil, err
		}
		return messages.FindOffersResult{OrderRef: req.OrderRef, Offers: res.Offers}, nil
	})
}

type requestFunc func(ctx context.Context, c *restclient.Client) (messages.Reply, error)

// execute runs fn on its own goroutine against the current client until it
// succeeds or the exchange rejects it, then publishes the reply.
func (s *Service) execute(req messages.Request, fn requestFunc) {
	if s.ctx.Err() != nil {
		log.Debugf("order %d: dropping %s, exchange closed", req.LocalOrderID(), req.Kind())
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		var reply messages.Reply
		err := restclient.Retry(s.ctx, string(req.Kind()), func() error {
			client := s.currentClient()
			if client == nil {
				return errNotConfigured
			}
			var err error
			reply, err = fn(s.ctx, client)
			return err
		})
		if err != nil {
			var apiErr *restclient.APIError
			if !errors.As(err, &apiErr) {
				log.WithError(err).Debugf("order %d: dropping %s", req.LocalOrderID(), req.Kind())
				return
			}
			log.WithError(err).Debugf("order %d: %s rejected", req.LocalOrderID(), req.Kind())
			reply = messages.ExchangeError{
				OrderRef: messages.OrderRef{OrderID: req.LocalOrderID()},
				Reason:   apiErr.Reason,
			}
		}

		if err := s.publisher.Handle(reply); err != nil {
			log.WithError(err).Warnf("order %d: failed to publish %s", req.LocalOrderID(), reply.Kind())
		}
	}()
}

func (s *Service) currentClient() *restclient.Client {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.client
}

func (s *Service) setClient(client *restclient.Client) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.client = client
}
