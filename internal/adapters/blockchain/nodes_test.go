package blockchain

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/hxuan190/dmm-router/internal/config"
)

func TestVerifyChain(t *testing.T) {
	client := newClient(t, &fakeEth{chainID: config.ChainIDEthereum})

	require.NoError(t, VerifyChain(context.Background(), client, config.ChainIDEthereum))
	require.ErrorIs(t, VerifyChain(context.Background(), client, config.ChainIDPolygon), ErrWrongChain)
}

func TestNodesRouteCallsToTheTokensChain(t *testing.T) {
	parsed, err := loadABIs()
	require.NoError(t, err)
	chains := config.DefaultChains()
	polygon := chains[config.ChainIDPolygon]
	polyUSDC, ok := polygon.KnownToken(common.HexToAddress("0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"))
	require.True(t, ok)

	// both nodes answer getPools at both factories so a misrouted call
	// would still succeed and be visible in the result
	ethNode := &fakeEth{chainID: config.ChainIDEthereum}
	ethNode.on(t, chain.DMMFactory, parsed.factory, "getPools", []common.Address{poolA})
	ethNode.on(t, polygon.DMMFactory, parsed.factory, "getPools", []common.Address{poolA})
	polyNode := &fakeEth{chainID: config.ChainIDPolygon}
	polyNode.on(t, chain.DMMFactory, parsed.factory, "getPools", []common.Address{poolB})
	polyNode.on(t, polygon.DMMFactory, parsed.factory, "getPools", []common.Address{poolB})

	ethReader, err := NewDMMReader(newClient(t, ethNode), chains)
	require.NoError(t, err)
	polyReader, err := NewDMMReader(newClient(t, polyNode), chains)
	require.NoError(t, err)

	nodes := NewNodes()
	nodes.Add(config.ChainIDEthereum, ethReader, nil)
	require.False(t, nodes.Serves(config.ChainIDPolygon))

	_, err = nodes.DiscoverPools(context.Background(), polygon.WrappedNative, polyUSDC)
	require.ErrorIs(t, err, ErrNoNode)
	_, err = nodes.FetchToken(context.Background(), config.ChainIDPolygon, polyUSDC.Address)
	require.ErrorIs(t, err, ErrNoNode)

	nodes.Add(config.ChainIDPolygon, polyReader, nil)
	require.True(t, nodes.Serves(config.ChainIDPolygon))

	pools, err := nodes.DiscoverPools(context.Background(), polygon.WrappedNative, polyUSDC)
	require.NoError(t, err)
	require.Equal(t, []common.Address{poolB}, pools)

	pools, err = nodes.DiscoverPools(context.Background(), weth, usdc)
	require.NoError(t, err)
	require.Equal(t, []common.Address{poolA}, pools)
}
