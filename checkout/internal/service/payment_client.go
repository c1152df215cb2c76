package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/dylan-murrayy/Rabbit-Demo/pkg/models"
)

// PaymentClient calls the payment service's /pay endpoint. Every call uses a
// fresh connection and is bounded by the client timeout.
type PaymentClient struct {
	url    string
	client *http.Client
}

func NewPaymentClient(url string, timeout time.Duration) *PaymentClient {
	return &PaymentClient{
		url: url,
		client: &http.Client{
			Timeout: timeout,
			// a 3xx is an upstream failure, not something to follow
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
			Transport: &http.Transport{
				Proxy:             http.ProxyFromEnvironment,
				DisableKeepAlives: true,
			},
		},
	}
}

// Pay returns the payment service's 2xx body untouched. Transport failures
// keep their cause in the caller-visible detail; non-2xx responses are
// reported with the upstream status and a generic detail, and their body is
// discarded.
func (c *PaymentClient) Pay(ctx context.Context, order models.OrderRequest) (json.RawMessage, error) {
	body, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("encode order %s: %w", order.OrderID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, paymentUnreachable(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, paymentUnreachable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, paymentFailed(resp.StatusCode, fmt.Errorf("payment service responded %s", resp.Status))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, paymentUnreachable(err)
	}
	if !json.Valid(raw) {
		return nil, paymentFailed(http.StatusBadGateway, errors.New("payment service returned a non-JSON body"))
	}
	return raw, nil
}
