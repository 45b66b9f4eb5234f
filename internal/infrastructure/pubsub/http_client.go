package pubsub

import (
	"time"

	"github.com/go-resty/resty/v2"
)

type client struct {
	*resty.Client
}

func newHTTPClient(requestTimeout time.Duration) *client {
	return &client{resty.New().SetTimeout(requestTimeout)}
}

func (c *client) post(url, body string, headers map[string]string) (int, string, error) {
	resp, err := c.R().SetHeaders(headers).SetBody(body).Post(url)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode(), resp.String(), nil
}
