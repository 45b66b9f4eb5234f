package exchange

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"strconv"
	"sync/atomic"
	"time"
)

const (
	apiKeyHeader    = "Rest-Key"
	apiSignHeader   = "Rest-Sign"
	apiNonceHeader  = "Rest-Nonce"
	signedSeparator = "\x00"
)

// signer authenticates requests with the api key and an hmac-sha512 of
// path, nonce and body keyed with the api secret.
type signer struct {
	apiKey string
	secret []byte
	nonce  atomic.Int64
}

func newSigner(apiKey, apiSecret string) *signer {
	secret, err := base64.StdEncoding.DecodeString(apiSecret)
	if err != nil {
		secret = []byte(apiSecret)
	}
	s := &signer{apiKey: apiKey, secret: secret}
	s.nonce.Store(time.Now().UnixMicro())
	return s
}

func (s *signer) headers(_, path string, body []byte) map[string]string {
	if len(s.apiKey) <= 0 {
		return nil
	}
	nonce := strconv.FormatInt(s.nonce.Add(1), 10)
	return map[string]string{
		apiKeyHeader:   s.apiKey,
		apiNonceHeader: nonce,
		apiSignHeader:  s.sign(path, nonce, body),
	}
}

func (s *signer) sign(path, nonce string, body []byte) string {
	mac := hmac.New(sha512.New, s.secret)
	mac.Write([]byte(path + signedSeparator + nonce + signedSeparator))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
