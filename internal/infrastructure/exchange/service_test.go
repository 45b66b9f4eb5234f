package exchange_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/fiatln-daemon/internal/core/bus"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
	"github.com/tdex-network/fiatln-daemon/internal/core/messages"
	"github.com/tdex-network/fiatln-daemon/internal/infrastructure/exchange"
	"github.com/tdex-network/fiatln-daemon/internal/infrastructure/restclient"
)

const (
	waitFor = 3 * time.Second
	tick    = 5 * time.Millisecond
)

func init() {
	restclient.RetryInitialInterval = time.Millisecond
	restclient.RetryMaxInterval = 10 * time.Millisecond
}

type publisher struct {
	lock sync.Mutex
	msgs []bus.Message
}

func (p *publisher) Handle(msg bus.Message) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *publisher) count() int {
	p.lock.Lock()
	defer p.lock.Unlock()
	return len(p.msgs)
}

func (p *publisher) waitFor(t *testing.T, count int) []bus.Message {
	require.Eventually(t, func() bool {
		return p.count() >= count
	}, waitFor, tick)

	p.lock.Lock()
	defer p.lock.Unlock()
	return append([]bus.Message{}, p.msgs...)
}

// fakeExchange records the requests it receives and answers with the
// response registered for their path.
type fakeExchange struct {
	*httptest.Server

	lock      sync.Mutex
	responses map[string]func(w http.ResponseWriter, body map[string]interface{})
	requests  []*http.Request
	bodies    []map[string]interface{}
}

func newFakeExchange(t *testing.T) *fakeExchange {
	f := &fakeExchange{
		responses: make(map[string]func(http.ResponseWriter, map[string]interface{})),
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeExchange) on(
	method, path string, fn func(w http.ResponseWriter, body map[string]interface{}),
) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.responses[method+" "+path] = fn
}

func (f *fakeExchange) serve(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	//nolint
	json.NewDecoder(r.Body).Decode(&body)

	f.lock.Lock()
	f.requests = append(f.requests, r)
	f.bodies = append(f.bodies, body)
	fn, ok := f.responses[r.Method+" "+r.URL.Path]
	f.lock.Unlock()

	if !ok {
		w.WriteHeader(http.StatusOK)
		return
	}
	fn(w, body)
}

func (f *fakeExchange) lastRequest(path string) (*http.Request, map[string]interface{}) {
	f.lock.Lock()
	defer f.lock.Unlock()
	for i := len(f.requests) - 1; i >= 0; i-- {
		if f.requests[i].URL.Path == path {
			return f.requests[i], f.bodies[i]
		}
	}
	return nil, nil
}

func reply(v interface{}) func(http.ResponseWriter, map[string]interface{}) {
	return func(w http.ResponseWriter, _ map[string]interface{}) {
		//nolint
		json.NewEncoder(w).Encode(v)
	}
}

func reject(reason string) func(http.ResponseWriter, map[string]interface{}) {
	return func(w http.ResponseWriter, _ map[string]interface{}) {
		w.WriteHeader(http.StatusBadRequest)
		//nolint
		json.NewEncoder(w).Encode(map[string]string{"error": reason})
	}
}

func newService(t *testing.T) (*exchange.Service, *publisher) {
	pub := &publisher{}
	svc, err := exchange.NewService(exchange.Opts{Publisher: pub, RateLimit: 1000})
	require.NoError(t, err)
	t.Cleanup(svc.Close)
	return svc, pub
}

func configure(t *testing.T, svc *exchange.Service, url string) {
	values := domain.DefaultConfig()
	values[domain.ConfigExchangeURL] = url
	values[domain.ConfigExchangeAPIKey] = "key"
	values[domain.ConfigExchangeAPISecret] = "c2VjcmV0"
	handle(t, svc, messages.ConfigChanged{Values: values})
}

func handle(t *testing.T, svc *exchange.Service, msg bus.Message) {
	fn, ok := svc.MessageHandlers()[msg.Kind()]
	require.True(t, ok)
	fn(msg)
}

func TestNewService(t *testing.T) {
	_, err := exchange.NewService(exchange.Opts{})
	require.Error(t, err)

	svc, _ := newService(t)
	handlers := svc.MessageHandlers()
	for _, kind := range []bus.Kind{
		messages.KindConfigChanged,
		messages.KindStartReservation,
		messages.KindSelfReport,
		messages.KindCancelReservation,
		messages.KindSendFunds,
		messages.KindReceiveFunds,
		messages.KindAddOffer,
		messages.KindRemoveOffer,
		messages.KindFindOffers,
	} {
		require.Contains(t, handlers, kind)
	}
	require.False(t, svc.IsConnected())
}

func TestStartReservation(t *testing.T) {
	server := newFakeExchange(t)
	server.on(http.MethodPost, "/v1/reservations", reply(map[string]interface{}{
		"sender_amount":   1000,
		"receiver_amount": 995,
		"payment_hash":    "abcd",
	}))

	svc, pub := newService(t)
	configure(t, svc, server.URL)

	handle(t, svc, messages.StartReservation{
		OrderRef:           messages.OrderRef{OrderID: 7},
		IdempotencyKey:     "reservation-1",
		Amount:             1000,
		SenderTimeoutDelta: 2000,
		LockedTimeoutDelta: 3600,
		ReceiverPaysFee:    true,
	})

	msgs := pub.waitFor(t, 1)
	require.Equal(t, messages.StartReservationResult{
		OrderRef:       messages.OrderRef{OrderID: 7},
		SenderAmount:   1000,
		ReceiverAmount: 995,
		PaymentHash:    "abcd",
	}, msgs[0])
	require.True(t, svc.IsConnected())

	req, body := server.lastRequest("/v1/reservations")
	require.NotNil(t, req)
	require.Equal(t, "key", req.Header.Get("Rest-Key"))
	require.NotEmpty(t, req.Header.Get("Rest-Sign"))
	require.NotEmpty(t, req.Header.Get("Rest-Nonce"))
	require.EqualValues(t, 1000, body["amount"])
	require.EqualValues(t, 2000, body["sender_timeout_delta_ms"])
	require.EqualValues(t, 3600, body["locked_timeout_delta_s"])
	require.Equal(t, true, body["receiver_pays_fee"])
	require.Equal(t, "reservation-1", body["idempotency_key"])
}

func TestIdempotencyKeyKeptOnRetry(t *testing.T) {
	server := newFakeExchange(t)
	var (
		lock sync.Mutex
		keys []interface{}
	)
	server.on(http.MethodPost, "/v1/funds/send", func(w http.ResponseWriter, body map[string]interface{}) {
		lock.Lock()
		keys = append(keys, body["idempotency_key"])
		attempt := len(keys)
		lock.Unlock()

		if attempt < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		//nolint
		json.NewEncoder(w).Encode(map[string]string{"payment_preimage": "00"})
	})

	svc, pub := newService(t)
	configure(t, svc, server.URL)

	handle(t, svc, messages.SendFunds{
		OrderRef:       messages.OrderRef{OrderID: 4},
		IdempotencyKey: "send-1",
		Amount:         1000,
		PaymentHash:    "abcd",
	})

	msgs := pub.waitFor(t, 1)
	require.Equal(t, messages.SendFundsResult{
		OrderRef:        messages.OrderRef{OrderID: 4},
		PaymentPreimage: "00",
	}, msgs[0])

	lock.Lock()
	defer lock.Unlock()
	require.Equal(t, []interface{}{"send-1", "send-1", "send-1"}, keys)
}

func TestRequestRejected(t *testing.T) {
	server := newFakeExchange(t)
	server.on(http.MethodPost, "/v1/funds/send", reject("insufficient balance"))

	svc, pub := newService(t)
	configure(t, svc, server.URL)

	handle(t, svc, messages.SendFunds{
		OrderRef:    messages.OrderRef{OrderID: 3},
		Amount:      500,
		PaymentHash: "abcd",
	})

	msgs := pub.waitFor(t, 1)
	require.Equal(t, messages.ExchangeError{
		OrderRef: messages.OrderRef{OrderID: 3},
		Reason:   "insufficient balance",
	}, msgs[0])
}

func TestRequestRetriedOnServerError(t *testing.T) {
	server := newFakeExchange(t)
	var attempts atomic.Int32
	server.on(http.MethodPost, "/v1/funds/receive", func(w http.ResponseWriter, _ map[string]interface{}) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	svc, pub := newService(t)
	configure(t, svc, server.URL)

	handle(t, svc, messages.ReceiveFunds{
		OrderRef:        messages.OrderRef{OrderID: 1},
		PaymentPreimage: "00",
	})

	msgs := pub.waitFor(t, 1)
	require.Equal(t, messages.ReceiveFundsResult{OrderRef: messages.OrderRef{OrderID: 1}}, msgs[0])
	require.Equal(t, int32(3), attempts.Load())
}

func TestRequestWaitsForConfiguration(t *testing.T) {
	server := newFakeExchange(t)
	svc, pub := newService(t)

	handle(t, svc, messages.SelfReport{
		OrderRef: messages.OrderRef{OrderID: 2},
		Report:   map[string]string{"amount": "1000"},
	})
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, pub.count())

	configure(t, svc, server.URL)

	msgs := pub.waitFor(t, 1)
	require.Equal(t, messages.SelfReportResult{OrderRef: messages.OrderRef{OrderID: 2}}, msgs[0])

	_, body := server.lastRequest("/v1/self_report")
	require.Equal(t, map[string]interface{}{"amount": "1000"}, body["report"])
}

func TestOffers(t *testing.T) {
	settings := domain.DefaultSettings()
	offer := domain.Offer{
		Bid:     settings.FiatAsset(1000),
		Ask:     settings.CryptoAsset(500),
		Address: "node",
		Conditions: domain.Conditions{
			domain.ConditionCltvExpiryDelta: {Min: 12, Max: 144},
		},
	}
	remoteOffer := offer.Clone()
	remoteOffer.ID = 42

	server := newFakeExchange(t)
	server.on(http.MethodPost, "/v1/offers", reply(map[string]int64{"offer_id": 42}))
	server.on(http.MethodPost, "/v1/offers/find", reply(map[string]interface{}{
		"offers": []domain.Offer{remoteOffer},
	}))

	svc, pub := newService(t)
	configure(t, svc, server.URL)

	ref := messages.OrderRef{OrderID: 5}
	handle(t, svc, messages.AddOffer{OrderRef: ref, Offer: offer})
	msgs := pub.waitFor(t, 1)
	require.Equal(t, messages.AddOfferResult{OrderRef: ref, OfferID: 42}, msgs[0])

	_, body := server.lastRequest("/v1/offers")
	require.Contains(t, body, "offer")
	published := body["offer"].(map[string]interface{})
	require.Equal(t, "node", published["address"])
	require.Contains(t, published["conditions"], "cltv_expiry_delta")

	handle(t, svc, messages.FindOffers{OrderRef: ref, Query: offer})
	msgs = pub.waitFor(t, 2)
	require.Equal(t, messages.FindOffersResult{
		OrderRef: ref,
		Offers:   []domain.Offer{remoteOffer},
	}, msgs[1])

	handle(t, svc, messages.RemoveOffer{OrderRef: ref, OfferID: 42})
	msgs = pub.waitFor(t, 3)
	require.Equal(t, messages.RemoveOfferResult{OrderRef: ref}, msgs[2])

	req, _ := server.lastRequest("/v1/offers/42")
	require.NotNil(t, req)
	require.Equal(t, http.MethodDelete, req.Method)
}

func TestCancelReservation(t *testing.T) {
	server := newFakeExchange(t)
	svc, pub := newService(t)
	configure(t, svc, server.URL)

	handle(t, svc, messages.CancelReservation{
		OrderRef:    messages.OrderRef{OrderID: 9},
		PaymentHash: "abcd",
	})
	msgs := pub.waitFor(t, 1)
	require.Equal(t, messages.CancelReservationResult{OrderRef: messages.OrderRef{OrderID: 9}}, msgs[0])

	req, _ := server.lastRequest("/v1/reservations/abcd/cancel")
	require.NotNil(t, req)
}

func TestCloseDropsPendingRequests(t *testing.T) {
	pub := &publisher{}
	svc, err := exchange.NewService(exchange.Opts{Publisher: pub})
	require.NoError(t, err)

	handle(t, svc, messages.AddOffer{OrderRef: messages.OrderRef{OrderID: 1}})
	svc.Close()

	handle(t, svc, messages.AddOffer{OrderRef: messages.OrderRef{OrderID: 2}})
	time.Sleep(20 * time.Millisecond)
	require.Zero(t, pub.count())
}
