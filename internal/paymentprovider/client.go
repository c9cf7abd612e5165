// Package paymentprovider клиент REST API платёжного провайдера подписок.
package paymentprovider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/magabrotheeeer/lms-identity/internal/apperr"
	"github.com/magabrotheeeer/lms-identity/internal/config"
)

type Client struct {
	keyID      string
	keySecret  string
	apiURL     string
	httpClient *http.Client
}

// NewClient создаёт новый клиент провайдера.
func NewClient(cfg config.Payment) *Client {
	return &Client{
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// KeyID возвращает публичный идентификатор ключа, который передаётся клиентскому checkout.
func (c *Client) KeyID() string {
	return c.keyID
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	auth := base64.StdEncoding.EncodeToString([]byte(c.keyID + ":" + c.keySecret))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var e errorResponse
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if json.Unmarshal(data, &e) == nil && e.Error.Description != "" {
			return fmt.Errorf("unexpected status %s: %s", resp.Status, e.Error.Description)
		}
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// CreateSubscription создаёт подписку по тарифному плану.
func (c *Client) CreateSubscription(ctx context.Context, reqParams CreateSubscriptionRequest) (*Subscription, error) {
	const op = "paymentprovider.CreateSubscription"
	req, err := c.newRequest(ctx, http.MethodPost, "/subscriptions", reqParams)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var sub Subscription
	if err := c.do(req, &sub); err != nil {
		return nil, apperr.Upstream(op, err)
	}
	return &sub, nil
}

// CancelSubscription немедленно отменяет подписку.
func (c *Client) CancelSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	const op = "paymentprovider.CancelSubscription"
	req, err := c.newRequest(ctx, http.MethodPost, "/subscriptions/"+url.PathEscape(subscriptionID)+"/cancel", nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var sub Subscription
	if err := c.do(req, &sub); err != nil {
		return nil, apperr.Upstream(op, err)
	}
	return &sub, nil
}

// ListSubscriptions возвращает страницу подписок.
func (c *Client) ListSubscriptions(ctx context.Context, count, skip int) (*SubscriptionList, error) {
	const op = "paymentprovider.ListSubscriptions"
	q := url.Values{}
	q.Set("count", strconv.Itoa(count))
	q.Set("skip", strconv.Itoa(skip))
	req, err := c.newRequest(ctx, http.MethodGet, "/subscriptions?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	var list SubscriptionList
	if err := c.do(req, &list); err != nil {
		return nil, apperr.Upstream(op, err)
	}
	return &list, nil
}
