package chainclient

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/speedrun-hq/speedrun-minter/pkg/config"
	"github.com/speedrun-hq/speedrun-minter/pkg/contracts"
	"github.com/speedrun-hq/speedrun-minter/pkg/logger"
	"github.com/speedrun-hq/speedrun-minter/pkg/metrics"
)

// Client contains client and config information for the chain the NFT contract is deployed on
type Client struct {
	ChainID    int
	RPCURL     string
	NFTAddress common.Address
	MintMethod string
	Client     *ethclient.Client
	NFT        *contracts.NFT
	Auth       *bind.TransactOpts

	logger logger.Logger
}

// New creates a new client
func New(ctx context.Context, cfg config.ChainConfig, privateKey string, log logger.Logger) (*Client, error) {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	if !common.IsHexAddress(cfg.NFTAddress) {
		return nil, fmt.Errorf("invalid NFT address: %s", cfg.NFTAddress)
	}

	client := &Client{
		ChainID:    cfg.ChainID,
		RPCURL:     cfg.RPCURL,
		NFTAddress: common.HexToAddress(cfg.NFTAddress),
		MintMethod: cfg.MintMethod,
		logger:     log,
	}
	if err := client.connect(ctx, privateKey); err != nil {
		return nil, fmt.Errorf("failed to connect to chain %d: %w", cfg.ChainID, err)
	}

	return client, nil
}

// SuggestGasPrice asks the node for the current gas price
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if c.Client == nil {
		return nil, fmt.Errorf("client not connected")
	}

	// Get current gas price from the network
	timeoutCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	gasPrice, err := c.Client.SuggestGasPrice(timeoutCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	return gasPrice, nil
}

// PendingNonceAt returns the nonce the node would assign to the next transaction of account
func (c *Client) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	if c.Client == nil {
		return 0, fmt.Errorf("client not connected")
	}
	return c.Client.PendingNonceAt(ctx, account)
}

// GetLatestBlockNumber gets the latest block number from the chain
func (c *Client) GetLatestBlockNumber(ctx context.Context) (uint64, error) {
	if c.Client == nil {
		return 0, fmt.Errorf("client not connected")
	}

	return c.Client.BlockNumber(ctx)
}

// OwnerOf returns the owner of tokenID, or an error when the token does not exist
func (c *Client) OwnerOf(ctx context.Context, tokenID *big.Int) (common.Address, error) {
	if c.NFT == nil {
		return common.Address{}, fmt.Errorf("contract not bound")
	}
	return c.NFT.OwnerOf(&bind.CallOpts{Context: ctx}, tokenID)
}

// TransactionReceipt returns the receipt of hash, ethereum.NotFound while it is not mined
func (c *Client) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if c.Client == nil {
		return nil, fmt.Errorf("client not connected")
	}
	return c.Client.TransactionReceipt(ctx, hash)
}

// SignerBalance returns the native balance of the signing account and publishes it in ether
func (c *Client) SignerBalance(ctx context.Context) (*big.Int, error) {
	if c.Client == nil {
		return nil, fmt.Errorf("client not connected")
	}

	balance, err := c.Client.BalanceAt(ctx, c.From(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get signer balance: %w", err)
	}

	ether, _ := new(big.Float).Quo(new(big.Float).SetInt(balance), big.NewFloat(params.Ether)).Float64()
	metrics.SignerBalance.WithLabelValues(strconv.Itoa(c.ChainID)).Set(ether)
	return balance, nil
}

// From returns the signing address, zero when no private key was configured
func (c *Client) From() common.Address {
	if c.Auth == nil {
		return common.Address{}
	}
	return c.Auth.From
}

// Close closes the RPC connection
func (c *Client) Close() {
	if c.Client != nil {
		c.Client.Close()
	}
}

// connect establishes connections to blockchain RPC and initializes contract instances
func (c *Client) connect(ctx context.Context, privateKey string) error {
	// Connect to Ethereum client
	client, err := ethclient.DialContext(ctx, c.RPCURL)
	if err != nil {
		return fmt.Errorf("failed to connect to client: %w", err)
	}
	c.Client = client

	// Set up authenticator and contract binding
	if privateKey != "" {
		auth, err := createAuthenticator(ctx, client, privateKey, c.ChainID)
		if err != nil {
			return fmt.Errorf("failed to create authenticator: %w", err)
		}
		c.Auth = auth
	}

	// Initialize contract binding
	contract, err := contracts.NewNFT(c.NFTAddress, client)
	if err != nil {
		return fmt.Errorf("failed to initialize contract: %w", err)
	}
	c.NFT = contract

	return nil
}

// Helper function to create authenticator
func createAuthenticator(ctx context.Context, client *ethclient.Client, privateKeyHex string, expectedChainID int) (*bind.TransactOpts, error) {
	// Parse private key
	privateKey, err := crypto.HexToECDSA(trimHexPrefix(privateKeyHex))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}

	// Get chain ID
	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}
	if expectedChainID > 0 && chainID.Cmp(big.NewInt(int64(expectedChainID))) != 0 {
		return nil, fmt.Errorf("rpc endpoint serves chain %s, expected %d", chainID.String(), expectedChainID)
	}

	// Create transaction signer
	auth, err := bind.NewKeyedTransactorWithChainID(privateKey, chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to create transactor: %w", err)
	}

	return auth, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}
