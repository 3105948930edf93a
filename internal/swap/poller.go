package swap

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/caveau-digitale/caveaud/internal/types"
)

// Settler receives the vault-side effect of a settled order. The session
// satisfies this with its Deposit operation.
type Settler interface {
	Deposit(ctx context.Context, vaultID string, req types.DepositRequest) (*types.Transaction, error)
}

type trackedOrder struct {
	VaultID   string
	FromAsset string
}

// Poller watches tracked orders until they reach a terminal state. A
// settled order appends a deposit to its vault; refunded and expired
// orders are dropped with a log line. The poller runs as an independent
// branch: a provider outage delays settlement but never touches the
// ledger.
type Poller struct {
	client   *Client
	settler  Settler
	interval time.Duration
	logger   *logrus.Logger

	mu     sync.Mutex
	orders map[string]trackedOrder
}

func NewPoller(client *Client, settler Settler, interval time.Duration) *Poller {
	return &Poller{
		client:   client,
		settler:  settler,
		interval: interval,
		logger:   logrus.WithField("service", "swap_poller").Logger,
		orders:   map[string]trackedOrder{},
	}
}

// Track registers an order for polling.
func (p *Poller) Track(orderID, vaultID, fromAsset string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders[orderID] = trackedOrder{VaultID: vaultID, FromAsset: fromAsset}
}

// Tracked returns the ids currently being polled.
func (p *Poller) Tracked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := make([]string, 0, len(p.orders))
	for id := range p.orders {
		ids = append(ids, id)
	}
	return ids
}

// Run polls until the context is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	p.mu.Lock()
	snapshot := make(map[string]trackedOrder, len(p.orders))
	for id, o := range p.orders {
		snapshot[id] = o
	}
	p.mu.Unlock()

	for id, tracked := range snapshot {
		order, err := p.client.OrderStatus(id)
		if err != nil {
			p.logger.WithError(err).WithField("order", id).Warn("order status unavailable, will retry")
			continue
		}
		if !order.Status.Terminal() {
			continue
		}

		switch order.Status {
		case StatusSettled:
			_, err := p.settler.Deposit(ctx, tracked.VaultID, types.DepositRequest{
				Amount:      order.ToAmount,
				TxHash:      order.TxHash,
				OnChain:     order.TxHash != "",
				CrossChain:  true,
				SwappedFrom: tracked.FromAsset,
			})
			if err != nil {
				p.logger.WithError(err).WithField("order", id).Error("fail to settle order into vault, will retry")
				continue
			}
			p.logger.WithFields(logrus.Fields{
				"order": id,
				"vault": tracked.VaultID,
			}).Info("order settled into vault")
		case StatusRefunded, StatusExpired:
			p.logger.WithFields(logrus.Fields{
				"order":  id,
				"status": order.Status,
			}).Warn("order ended without settlement")
		}

		p.mu.Lock()
		delete(p.orders, id)
		p.mu.Unlock()
	}
}
