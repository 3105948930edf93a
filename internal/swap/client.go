package swap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultTimeout = 10 * time.Second

// OrderStatus is the provider-side lifecycle of a swap/bridge order.
type OrderStatus string

const (
	StatusWaiting    OrderStatus = "waiting"
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusSettled    OrderStatus = "settled"
	StatusRefunded   OrderStatus = "refunded"
	StatusExpired    OrderStatus = "expired"
)

// Terminal reports whether the order will not change state again.
func (s OrderStatus) Terminal() bool {
	return s == StatusSettled || s == StatusRefunded || s == StatusExpired
}

// QuoteRequest asks the provider for a swap quote toward a vault deposit.
type QuoteRequest struct {
	FromAsset string  `json:"fromAsset"`
	ToAsset   string  `json:"toAsset"`
	Amount    float64 `json:"amount"`
}

// Quote is the provider's offer, including the order id to poll and the
// address to fund.
type Quote struct {
	OrderID        string    `json:"orderId"`
	FromAsset      string    `json:"fromAsset"`
	ToAsset        string    `json:"toAsset"`
	FromAmount     float64   `json:"fromAmount"`
	ToAmount       float64   `json:"toAmount"`
	DepositAddress string    `json:"depositAddress"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// Order is the current provider-side view of an order.
type Order struct {
	ID        string      `json:"id"`
	Status    OrderStatus `json:"status"`
	FromAsset string      `json:"fromAsset"`
	ToAmount  float64     `json:"toAmount"`
	TxHash    string      `json:"txHash,omitempty"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Client talks to the swap/bridge provider over HTTP. It lives outside
// the custody core; its failures must never block or corrupt local
// ledger state.
type Client struct {
	logger      *logrus.Logger
	client      *http.Client
	providerURL string
}

func NewClient(providerURL string) *Client {
	return &Client{
		logger: logrus.WithField("service", "swap").Logger,
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		providerURL: providerURL,
	}
}

// RequestQuote asks the provider for a quote.
func (c *Client) RequestQuote(req QuoteRequest) (*Quote, error) {
	buf, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("fail to marshal quote request, err: %w", err)
	}
	resp, err := c.client.Post(c.providerURL+"/quote", "application/json", bytes.NewBuffer(buf))
	if err != nil {
		return nil, fmt.Errorf("fail to request quote, err: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fail to read quote response, err: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("quote request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var quote Quote
	if err := json.Unmarshal(body, &quote); err != nil {
		return nil, fmt.Errorf("fail to unmarshal quote, err: %w", err)
	}
	return &quote, nil
}

// OrderStatus fetches the current lifecycle state of an order.
func (c *Client) OrderStatus(orderID string) (*Order, error) {
	resp, err := c.client.Get(c.providerURL + "/order/" + orderID)
	if err != nil {
		return nil, fmt.Errorf("fail to get order status, err: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fail to read order response, err: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("order status failed with status %d: %s", resp.StatusCode, string(body))
	}

	var order Order
	if err := json.Unmarshal(body, &order); err != nil {
		return nil, fmt.Errorf("fail to unmarshal order, err: %w", err)
	}
	return &order, nil
}
