package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	gcommon "github.com/ethereum/go-ethereum/common"
	etypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"
)

// ErrTxFailed is returned when a submitted transaction was mined but
// reverted.
var ErrTxFailed = errors.New("transaction reverted on chain")

// Client is the thin submit/poll surface toward the chain. It is glue
// around the core: its failures must never corrupt or block the local
// credential and ledger flows.
type Client struct {
	rpc           *ethclient.Client
	confirmations uint64
	logger        *logrus.Logger
}

func NewClient(rpcURL string, confirmations uint64) (*Client, error) {
	rpc, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("fail to dial rpc, err: %w", err)
	}
	if confirmations == 0 {
		confirmations = 1
	}
	return &Client{
		rpc:           rpc,
		confirmations: confirmations,
		logger:        logrus.WithField("module", "chain").Logger,
	}, nil
}

// Submit broadcasts a signed transaction and returns its hash.
func (c *Client) Submit(ctx context.Context, tx *etypes.Transaction) (gcommon.Hash, error) {
	if err := c.rpc.SendTransaction(ctx, tx); err != nil {
		return gcommon.Hash{}, fmt.Errorf("fail to submit transaction, err: %w", err)
	}
	hash := tx.Hash()
	c.logger.WithField("hash", hash.Hex()).Info("transaction submitted")
	return hash, nil
}

// WaitForConfirmation polls for the receipt of a submitted transaction
// until it has the configured number of confirmations. Reverted
// transactions come back as ErrTxFailed with the receipt attached.
func (c *Client) WaitForConfirmation(ctx context.Context, hash gcommon.Hash) (*etypes.Receipt, error) {
	var receipt *etypes.Receipt
	backoff := retry.NewConstant(3 * time.Second)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		r, err := c.rpc.TransactionReceipt(ctx, hash)
		if err != nil {
			if errors.Is(err, ethereum.NotFound) {
				return retry.RetryableError(err)
			}
			return err
		}
		head, err := c.rpc.BlockNumber(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		if head < r.BlockNumber.Uint64()+c.confirmations-1 {
			return retry.RetryableError(fmt.Errorf("waiting for confirmations, mined at %d head %d", r.BlockNumber.Uint64(), head))
		}
		receipt = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fail to wait for confirmation of %s, err: %w", hash.Hex(), err)
	}
	if receipt.Status == etypes.ReceiptStatusFailed {
		return receipt, ErrTxFailed
	}
	return receipt, nil
}

const balanceOfABI = `[
	{
		"name": "balanceOf",
		"type": "function",
		"stateMutability": "view",
		"inputs": [
			{
				"name": "account",
				"type": "address"
			}
		],
		"outputs": [
			{
				"name": "",
				"type": "uint256"
			}
		]
	}
]`

// GetBalance returns the account's balance of an asset: the native coin
// when asset is empty, otherwise the ERC-20 at that address. A nil
// amount with nil error means "unavailable"; lookups are advisory and
// never fatal to the core flow.
func (c *Client) GetBalance(ctx context.Context, account, asset string) (*big.Int, error) {
	owner := gcommon.HexToAddress(account)

	if asset == "" || strings.EqualFold(asset, "native") {
		balance, err := c.rpc.BalanceAt(ctx, owner, nil)
		if err != nil {
			c.logger.WithError(err).Warn("native balance unavailable")
			return nil, nil
		}
		return balance, nil
	}

	parsedABI, err := abi.JSON(strings.NewReader(balanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("fail to parse balanceOf abi, err: %w", err)
	}
	data, err := parsedABI.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("fail to pack balanceOf, err: %w", err)
	}
	token := gcommon.HexToAddress(asset)
	out, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		c.logger.WithError(err).Warn("token balance unavailable")
		return nil, nil
	}
	results, err := parsedABI.Unpack("balanceOf", out)
	if err != nil || len(results) == 0 {
		c.logger.WithError(err).Warn("token balance response unreadable")
		return nil, nil
	}
	balance, ok := results[0].(*big.Int)
	if !ok {
		return nil, nil
	}
	return balance, nil
}

func (c *Client) Close() {
	c.rpc.Close()
}
