package pubsub_test

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/require"
	"github.com/tdex-network/fiatln-daemon/internal/core/ports"
	pubsub "github.com/tdex-network/fiatln-daemon/internal/infrastructure/pubsub"
)

var testMessage = `{"event":"ORDER_COMPLETED","order":{"id":1,"kind":"buy","amount":"0"}}`

type delivery struct {
	path          string
	payload       string
	authorization string
}

type testWebServer struct {
	*httptest.Server

	lock       sync.Mutex
	deliveries []delivery
}

func newTestWebServer(t *testing.T) *testWebServer {
	srv := &testWebServer{}
	srv.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Bad method", http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get("Content-Type") == "" {
			http.Error(w, "Missing Content-Type header", http.StatusUnsupportedMediaType)
			return
		}
		if r.URL.Path == "/failing" {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}

		payload, _ := io.ReadAll(r.Body)
		srv.lock.Lock()
		srv.deliveries = append(srv.deliveries, delivery{
			r.URL.Path, string(payload), r.Header.Get("Authorization"),
		})
		srv.lock.Unlock()
		w.Write([]byte("Done"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func (s *testWebServer) received() []delivery {
	s.lock.Lock()
	defer s.lock.Unlock()
	return append([]delivery{}, s.deliveries...)
}

func TestPubSubService(t *testing.T) {
	server := newTestWebServer(t)
	pubsubSvc := pubsub.NewService(0)

	secret := randomSecret()
	testSubs := []struct {
		topic    string
		endpoint string
		secret   string
	}{
		{"test", server.URL + "/ordercompleted", secret},
		{"test", server.URL + "/ordercompleted", ""},
		{"other", server.URL + "/other", ""},
		{ports.AnyTopic, server.URL + "/allevents", ""},
	}
	for _, sub := range testSubs {
		subID, err := pubsubSvc.Subscribe(sub.topic, sub.endpoint, sub.secret)
		require.NoError(t, err)
		require.NotEmpty(t, subID)
	}

	subs := pubsubSvc.ListSubscriptionsForTopic("test")
	require.Len(t, subs, 3)
	require.Equal(t, ports.AnyTopic, subs[2].Topic())
	require.Len(t, pubsubSvc.ListSubscriptionsForTopic(ports.UnspecifiedTopic), 4)

	// Should invoke all hooks for the topic and the ones for any topic.
	err := pubsubSvc.Publish("test", testMessage)
	require.NoError(t, err)

	deliveries := server.received()
	require.Len(t, deliveries, 3)

	var secured int
	for _, d := range deliveries {
		require.NotEqual(t, "/other", d.path)
		require.Equal(t, testMessage, d.payload)
		if len(d.authorization) <= 0 {
			continue
		}
		secured++

		tokenString := strings.TrimPrefix(d.authorization, "Bearer ")
		token, err := jwt.ParseWithClaims(
			tokenString, &jwt.StandardClaims{},
			func(*jwt.Token) (interface{}, error) { return []byte(secret), nil },
		)
		require.NoError(t, err)
		require.True(t, token.Valid)
		require.Equal(t, "test", token.Claims.(*jwt.StandardClaims).Subject)
	}
	require.Equal(t, 1, secured)

	for _, s := range pubsubSvc.ListSubscriptionsForTopic(ports.UnspecifiedTopic) {
		require.NoError(t, pubsubSvc.Unsubscribe(s.Id()))
	}
	require.Empty(t, pubsubSvc.ListSubscriptionsForTopic(ports.UnspecifiedTopic))
	require.Error(t, pubsubSvc.Unsubscribe(subs[0].Id()))

	// Checks that it's all ok if there are no hooks to invoke.
	err = pubsubSvc.Publish("test1", testMessage)
	require.NoError(t, err)
}

func TestPublishFailure(t *testing.T) {
	server := newTestWebServer(t)
	pubsubSvc := pubsub.NewService(0)

	_, err := pubsubSvc.Subscribe("test", server.URL+"/failing", "")
	require.NoError(t, err)
	_, err = pubsubSvc.Subscribe("test", server.URL+"/ok", "")
	require.NoError(t, err)

	err = pubsubSvc.Publish("test", testMessage)
	require.Error(t, err)
	require.Len(t, server.received(), 1)
}

func TestInvalidSubscription(t *testing.T) {
	tests := []struct {
		name     string
		topic    string
		endpoint string
	}{
		{"missing topic", "", "http://localhost/hook"},
		{"invalid endpoint", "test", "localhost/hook"},
		{"unsupported scheme", "test", "ftp://localhost/hook"},
	}

	pubsubSvc := pubsub.NewService(0)
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := pubsubSvc.Subscribe(tt.topic, tt.endpoint, "")
			require.Error(t, err)
		})
	}
}

func TestSubscriptionTopics(t *testing.T) {
	pubsubSvc := pubsub.NewService(0, "ORDER_COMPLETED", "ORDER_CANCELED")

	_, err := pubsubSvc.Subscribe("ORDER_COMPLETED", "http://localhost/hook", "")
	require.NoError(t, err)
	_, err = pubsubSvc.Subscribe(ports.AnyTopic, "http://localhost/all", "")
	require.NoError(t, err)

	_, err = pubsubSvc.Subscribe("TRADE_SETTLED", "http://localhost/hook", "")
	require.Error(t, err)
	require.Len(t, pubsubSvc.ListSubscriptionsForTopic(ports.UnspecifiedTopic), 2)
}

func randomSecret() string {
	b := make([]byte, 32)
	//nolint
	rand.Read(b)
	return hex.EncodeToString(b)
}
