package adapter

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrLedgerUnavailable indicates the ledger RPC node could not answer
var ErrLedgerUnavailable = errors.New("ledger unavailable")

// CodeReader is the subset of the ledger RPC the client needs
type CodeReader interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
}

var (
	_ CodeReader = (*ethclient.Client)(nil)
	_ CodeReader = (*RPCPool)(nil)
)

// LedgerClient validates addresses against an EVM ledger: 0x hex addresses, and a
// contract is any address with deployed code.
type LedgerClient struct {
	reader  CodeReader
	pool    *RPCPool
	timeout time.Duration
}

// NewLedgerClient connects to the RPC nodes listed comma-separated in rpcURLs
func NewLedgerClient(rpcURLs string, timeout time.Duration) (*LedgerClient, error) {
	pool, err := NewRPCPoolFromURLs(rpcURLs, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ledger RPC: %w", err)
	}
	client := NewLedgerClientWithReader(pool, timeout)
	client.pool = pool
	return client, nil
}

// NewLedgerClientWithReader wraps an existing reader
func NewLedgerClientWithReader(reader CodeReader, timeout time.Duration) *LedgerClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LedgerClient{reader: reader, timeout: timeout}
}

// ValidateContract reports whether address is well formed and has code deployed at the latest block
func (c *LedgerClient) ValidateContract(ctx context.Context, address string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, nil
	}
	code, err := c.codeAt(ctx, address)
	if err != nil {
		return false, err
	}
	return len(code) > 0, nil
}

// ValidateWallet reports whether address is well formed and is not a contract
func (c *LedgerClient) ValidateWallet(ctx context.Context, address string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, nil
	}
	code, err := c.codeAt(ctx, address)
	if err != nil {
		return false, err
	}
	return len(code) == 0, nil
}

// Close releases the RPC connections opened by NewLedgerClient
func (c *LedgerClient) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

func (c *LedgerClient) codeAt(ctx context.Context, address string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	code, err := c.reader.CodeAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	return code, nil
}
