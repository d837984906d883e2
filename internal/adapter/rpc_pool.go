package adapter

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/token-curator/internal/logging"
)

// DialFunc connects to one RPC endpoint
type DialFunc func(url string) (CodeReader, error)

// dialEthereum is the production DialFunc
func dialEthereum(url string) (CodeReader, error) {
	return ethclient.Dial(url)
}

// RPCPool spreads ledger reads over several RPC endpoints.
// It sticks to the current endpoint until it is rate limited, then moves to the next
// endpoint that is not cooling down.
type RPCPool struct {
	endpoints []string
	readers   []CodeReader
	dial      DialFunc
	cooldown  time.Duration
	now       func() time.Time

	mu        sync.Mutex
	current   int
	cooldowns map[int]time.Time
}

// NewRPCPool creates a pool over endpoints. Only the first endpoint is dialed eagerly.
func NewRPCPool(endpoints []string, cooldown time.Duration, dial DialFunc) (*RPCPool, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one RPC endpoint is required")
	}
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	if dial == nil {
		dial = dialEthereum
	}

	pool := &RPCPool{
		endpoints: endpoints,
		readers:   make([]CodeReader, len(endpoints)),
		dial:      dial,
		cooldown:  cooldown,
		now:       time.Now,
		cooldowns: make(map[int]time.Time),
	}

	reader, err := dial(endpoints[0])
	if err != nil {
		return nil, fmt.Errorf("failed to connect to primary RPC endpoint: %w", err)
	}
	pool.readers[0] = reader

	logging.WithField("endpoints", len(endpoints)).Info("Ledger RPC pool initialized")
	return pool, nil
}

// NewRPCPoolFromURLs creates an RPC pool from comma-separated URLs
func NewRPCPoolFromURLs(urls string, cooldown time.Duration) (*RPCPool, error) {
	var endpoints []string
	for _, ep := range strings.Split(urls, ",") {
		if ep = strings.TrimSpace(ep); ep != "" {
			endpoints = append(endpoints, ep)
		}
	}
	return NewRPCPool(endpoints, cooldown, nil)
}

// CodeAt reads contract code, rotating to another endpoint when the current one is rate limited
func (p *RPCPool) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < len(p.endpoints); attempt++ {
		index, reader := p.active()
		code, err := reader.CodeAt(ctx, account, blockNumber)
		if err == nil {
			return code, nil
		}
		lastErr = err
		if !IsRateLimitError(err) || ctx.Err() != nil {
			return nil, err
		}
		if switchErr := p.onRateLimited(index); switchErr != nil {
			return nil, fmt.Errorf("%v: %w", switchErr, err)
		}
	}
	return nil, lastErr
}

func (p *RPCPool) active() (int, CodeReader) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.readers[p.current]
}

// onRateLimited puts endpoint index on cooldown and switches to the next available one
func (p *RPCPool) onRateLimited(index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cooldowns[index] = p.now()
	if p.current != index {
		// another caller already moved on
		return nil
	}

	for i := 1; i < len(p.endpoints); i++ {
		next := (index + i) % len(p.endpoints)
		if since, cooling := p.cooldowns[next]; cooling {
			if p.now().Sub(since) < p.cooldown {
				continue
			}
			delete(p.cooldowns, next)
		}

		if p.readers[next] == nil {
			reader, err := p.dial(p.endpoints[next])
			if err != nil {
				logging.WithError(err).WithField("endpoint", next).Warn("Failed to connect to ledger RPC endpoint")
				continue
			}
			p.readers[next] = reader
		}

		logging.WithFields(map[string]interface{}{
			"from": index,
			"to":   next,
		}).Warn("Ledger RPC endpoint rate limited, switching")
		p.current = next
		return nil
	}

	return fmt.Errorf("all %d RPC endpoints are rate limited", len(p.endpoints))
}

// CurrentIndex returns the index of the endpoint in use
func (p *RPCPool) CurrentIndex() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// IsRateLimitError checks if an error indicates rate limiting (429)
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests") ||
		strings.Contains(errStr, "throttl")
}

// Close closes every connected endpoint
func (p *RPCPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, reader := range p.readers {
		if closer, ok := reader.(interface{ Close() }); ok {
			closer.Close()
		}
		p.readers[i] = nil
	}
}
