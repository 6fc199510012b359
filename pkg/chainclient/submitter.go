package chainclient

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/speedrun-hq/speedrun-minter/pkg/contracts"
	"github.com/speedrun-hq/speedrun-minter/pkg/logger"
	"github.com/speedrun-hq/speedrun-minter/pkg/txretry"
)

// DefaultReceiptPollInterval is how often the node is asked for a receipt
const DefaultReceiptPollInterval = time.Second

// methodTransactor sends a named contract method
type methodTransactor interface {
	Transact(opts *bind.TransactOpts, method string, params ...interface{}) (*types.Transaction, error)
}

// ReceiptReader is the node surface used while waiting for a transaction to be mined
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
}

// Submitter signs and broadcasts one mint per call. It never retries; provider errors are returned as is.
type Submitter struct {
	auth         *bind.TransactOpts
	reader       ReceiptReader
	bind         func(common.Address) (methodTransactor, error)
	pollInterval time.Duration
	chainID      int
	logger       logger.Logger

	mu       sync.Mutex
	bindings map[common.Address]methodTransactor
}

var _ txretry.Submitter = (*Submitter)(nil)

// NewSubmitter creates a submitter signing with the client's key
func NewSubmitter(c *Client) (*Submitter, error) {
	if c.Auth == nil {
		return nil, errors.New("no signing key configured")
	}
	s := newSubmitter(c.Auth, c.Client, func(address common.Address) (methodTransactor, error) {
		if address == c.NFTAddress && c.NFT != nil {
			return &c.NFT.NFTTransactor, nil
		}
		nft, err := contracts.NewNFT(address, c.Client)
		if err != nil {
			return nil, err
		}
		return &nft.NFTTransactor, nil
	})
	s.chainID = c.ChainID
	s.logger = c.logger
	return s, nil
}

func newSubmitter(auth *bind.TransactOpts, reader ReceiptReader, binder func(common.Address) (methodTransactor, error)) *Submitter {
	return &Submitter{
		auth:         auth,
		reader:       reader,
		bind:         binder,
		pollInterval: DefaultReceiptPollInterval,
		logger:       &logger.EmptyLogger{},
		bindings:     make(map[common.Address]methodTransactor),
	}
}

// SetPollInterval sets how often WaitReceipt polls the node
func (s *Submitter) SetPollInterval(interval time.Duration) {
	if interval > 0 {
		s.pollInterval = interval
	}
}

// From returns the signing address
func (s *Submitter) From() common.Address {
	return s.auth.From
}

// Submit broadcasts intent with the nonce and gas price of attempt
func (s *Submitter) Submit(ctx context.Context, intent txretry.Intent, attempt txretry.Attempt) (common.Hash, error) {
	contract, err := s.contractFor(intent.Contract())
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to bind contract %s: %w", intent.Contract().Hex(), err)
	}

	tx, err := contract.Transact(s.transactOpts(ctx, attempt), intent.Method(), intent.Args()...)
	if err != nil {
		return common.Hash{}, err
	}

	s.logger.DebugWithChain(s.chainID, "Broadcast %s with nonce %d, gas price %s", tx.Hash().Hex(), tx.Nonce(), tx.GasPrice().String())
	return tx.Hash(), nil
}

// WaitReceipt polls the node until hash is mined or ctx is done
func (s *Submitter) WaitReceipt(ctx context.Context, hash common.Hash) (*txretry.Receipt, error) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.reader.TransactionReceipt(ctx, hash)
		if err == nil {
			return txretry.NewReceipt(receipt, s.auth.From, s.recipient(ctx, hash)), nil
		}

		if errors.Is(err, ethereum.NotFound) {
			s.logger.DebugWithChain(s.chainID, "Transaction %s not yet mined", hash.Hex())
		} else {
			s.logger.DebugWithChain(s.chainID, "Receipt retrieval for %s failed: %v", hash.Hex(), err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// transactOpts copies the signer options and applies the attempt's parameters
func (s *Submitter) transactOpts(ctx context.Context, attempt txretry.Attempt) *bind.TransactOpts {
	opts := *s.auth
	opts.Context = ctx
	opts.GasPrice = attempt.Fee()
	opts.GasFeeCap = nil
	opts.GasTipCap = nil
	opts.Nonce = nil
	if nonce, ok := attempt.Nonce(); ok {
		opts.Nonce = new(big.Int).SetUint64(nonce)
	}
	return &opts
}

func (s *Submitter) contractFor(address common.Address) (methodTransactor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if contract, ok := s.bindings[address]; ok {
		return contract, nil
	}
	contract, err := s.bind(address)
	if err != nil {
		return nil, err
	}
	s.bindings[address] = contract
	return contract, nil
}

// recipient looks up the destination of hash, nil when the node does not return it
func (s *Submitter) recipient(ctx context.Context, hash common.Hash) *common.Address {
	tx, _, err := s.reader.TransactionByHash(ctx, hash)
	if err != nil || tx == nil {
		return nil
	}
	return tx.To()
}
