package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// transferEventSig is the canonical ERC-20 Transfer(address,address,uint256) topic.
var transferEventSig = crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

// TransferEvent is a decoded ERC-20 Transfer log.
type TransferEvent struct {
	From  common.Address
	To    common.Address
	Value *big.Int
}

// DecodeTransferLog attempts to decode a raw log as an ERC-20 Transfer.
// It returns false instead of an error when the log does not match, so a
// caller scanning a receipt can skip non-Transfer logs without aborting.
func DecodeTransferLog(lg *types.Log) (TransferEvent, bool) {
	if len(lg.Topics) != 3 || lg.Topics[0] != transferEventSig {
		return TransferEvent{}, false
	}
	if len(lg.Data) != 32 {
		return TransferEvent{}, false
	}
	return TransferEvent{
		From:  common.BytesToAddress(lg.Topics[1].Bytes()),
		To:    common.BytesToAddress(lg.Topics[2].Bytes()),
		Value: new(big.Int).SetBytes(lg.Data),
	}, true
}

// Reader provides read-only blockchain access. One RPC client is dialed
// lazily per chain and reused across verification runs.
type Reader struct {
	registry     *Registry
	pollInterval time.Duration

	mu      sync.Mutex
	clients map[int64]*ethclient.Client
}

func NewReader(registry *Registry) *Reader {
	return &Reader{
		registry:     registry,
		pollInterval: 5 * time.Second,
		clients:      make(map[int64]*ethclient.Client),
	}
}

func (r *Reader) client(chainID int64) (*ethclient.Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c, ok := r.clients[chainID]; ok {
		return c, nil
	}
	cfg, err := r.registry.Chain(chainID)
	if err != nil {
		return nil, err
	}
	c, err := ethclient.Dial(cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrChainUnavailable, cfg.Name, err)
	}
	r.clients[chainID] = c
	return c, nil
}

// GetTransaction fetches a transaction by hash. The second return value
// reports whether the transaction is still pending (known to the node but
// not yet mined). A transaction the node does not know at all yields
// ErrTxNotFound; an RPC failure yields ErrChainUnavailable.
func (r *Reader) GetTransaction(ctx context.Context, chainID int64, txHash common.Hash) (*types.Transaction, bool, error) {
	c, err := r.client(chainID)
	if err != nil {
		return nil, false, err
	}
	tx, pending, err := c.TransactionByHash(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, false, fmt.Errorf("%w: %s", ErrTxNotFound, txHash.Hex())
		}
		return nil, false, fmt.Errorf("%w: %v", ErrChainUnavailable, err)
	}
	return tx, pending, nil
}

// WaitForConfirmations polls until the transaction has at least depth
// confirmations, then returns its receipt. The caller bounds the wait via
// ctx; a deadline expiry maps to ErrConfirmationTimeout so it can be told
// apart from an outright RPC outage.
func (r *Reader) WaitForConfirmations(ctx context.Context, chainID int64, txHash common.Hash, depth uint64) (*types.Receipt, error) {
	c, err := r.client(chainID)
	if err != nil {
		return nil, err
	}

	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.TransactionReceipt(ctx, txHash)
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("%w: %v", ErrChainUnavailable, err)
		}
		if receipt != nil {
			head, err := c.BlockNumber(ctx)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrChainUnavailable, err)
			}
			if head+1 >= receipt.BlockNumber.Uint64()+depth {
				return receipt, nil
			}
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: need %d confirmations", ErrConfirmationTimeout, depth)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
