package blockchain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/hxuan190/dmm-router/internal/domain"
)

var (
	ErrNoNode     = errors.New("no rpc node configured for chain")
	ErrWrongChain = errors.New("rpc node serves a different chain")
)

// ChainIDReader is the eth_chainId slice of ethclient.Client.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// VerifyChain fails unless the node behind client reports chainID.
func VerifyChain(ctx context.Context, client ChainIDReader, chainID uint64) error {
	got, err := client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("eth_chainId: %w", err)
	}
	if !got.IsUint64() || got.Uint64() != chainID {
		return fmt.Errorf("%w: want %d, node reports %s", ErrWrongChain, chainID, got)
	}
	return nil
}

// DialChain connects to url and checks the node is on chainID.
func DialChain(ctx context.Context, url string, chainID uint64, timeout time.Duration) (*ethclient.Client, error) {
	client, err := Dial(ctx, url, timeout)
	if err != nil {
		return nil, err
	}
	vctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := VerifyChain(vctx, client, chainID); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// Nodes routes every read to the DMMReader of the chain it is about, so a
// chain switch never sends calls to another chain's node.
type Nodes struct {
	mu      sync.RWMutex
	readers map[uint64]*DMMReader
	clients []*ethclient.Client
}

func NewNodes() *Nodes {
	return &Nodes{readers: make(map[uint64]*DMMReader)}
}

// Add registers reader for chainID. client, when set, is closed by Close.
func (n *Nodes) Add(chainID uint64, reader *DMMReader, client *ethclient.Client) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.readers[chainID] = reader
	if client != nil {
		n.clients = append(n.clients, client)
	}
}

// Serves reports whether a node is configured for chainID.
func (n *Nodes) Serves(chainID uint64) bool {
	_, ok := n.reader(chainID)
	return ok
}

func (n *Nodes) reader(chainID uint64) (*DMMReader, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	r, ok := n.readers[chainID]
	return r, ok
}

func (n *Nodes) readerFor(chainID uint64) (*DMMReader, error) {
	r, ok := n.reader(chainID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNoNode, chainID)
	}
	return r, nil
}

func (n *Nodes) DiscoverPools(ctx context.Context, tokenA, tokenB domain.Token) ([]common.Address, error) {
	r, err := n.readerFor(tokenA.ChainID)
	if err != nil {
		return nil, err
	}
	return r.DiscoverPools(ctx, tokenA, tokenB)
}

func (n *Nodes) ReadPool(ctx context.Context, address common.Address, tokenA, tokenB domain.Token) (*domain.Pool, error) {
	r, err := n.readerFor(tokenA.ChainID)
	if err != nil {
		return nil, err
	}
	return r.ReadPool(ctx, address, tokenA, tokenB)
}

func (n *Nodes) FetchToken(ctx context.Context, chainID uint64, address common.Address) (domain.Token, error) {
	r, err := n.readerFor(chainID)
	if err != nil {
		return domain.Token{}, err
	}
	return r.FetchToken(ctx, chainID, address)
}

func (n *Nodes) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.clients {
		c.Close()
	}
	n.clients = nil
}
