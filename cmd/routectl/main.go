package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func main() {
	root := &cobra.Command{
		Use:          "routectl",
		Short:        "Quote trades across Kyber DMM pools",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Find the best DMM route for a token pair from live reserves",
		RunE:  runQuote,
	}
	chainFlags(quoteCmd.Flags())
	tradeFlags(quoteCmd.Flags())
	quoteCmd.Flags().Int("max-hops", 3, "maximum pools per route")
	quoteCmd.Flags().Int("max-results", 3, "number of ranked routes to print")
	root.AddCommand(quoteCmd)

	poolsCmd := &cobra.Command{
		Use:   "pools",
		Short: "List the ready DMM pools considered for a token pair",
		RunE:  runPools,
	}
	chainFlags(poolsCmd.Flags())
	poolsCmd.Flags().String("token-in", "", "first token address or native")
	poolsCmd.Flags().String("token-out", "", "second token address or native")
	root.AddCommand(poolsCmd)

	routeCmd := &cobra.Command{
		Use:   "route",
		Short: "Fetch the aggregation service route and compare it with a single source",
		RunE:  runRoute,
	}
	chainFlags(routeCmd.Flags())
	tradeFlags(routeCmd.Flags())
	routeCmd.Flags().String("api-base", "https://aggregator-api.kyberswap.com", "aggregation service root URL")
	routeCmd.Flags().String("comparison-source", "uniswap", "liquidity source of the comparison route, empty to skip")
	root.AddCommand(routeCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func chainFlags(fs *pflag.FlagSet) {
	fs.String("rpc", "", "JSON-RPC URL")
	fs.Uint64("chain-id", 1, "chain to route on")
	fs.String("factory", "", "DMM factory address override")
	fs.String("chain-file", "", "YAML or JSON file with extra chains or chain overrides")
	fs.Duration("call-timeout", 3*time.Second, "timeout of a single pool lookup")
	fs.String("token-db", "", "bolt file caching token metadata, empty disables")
	fs.Duration("timeout", 30*time.Second, "overall command timeout")
	fs.String("log-level", "warn", "log level (debug, info, warn, error)")
}

func tradeFlags(fs *pflag.FlagSet) {
	fs.String("token-in", "", "input token address or native")
	fs.String("token-out", "", "output token address or native")
	fs.String("amount", "", "amount in whole tokens, e.g. 1.5")
	fs.Bool("raw", false, "amount is in smallest token units")
	fs.String("swap-mode", "ExactIn", "ExactIn or ExactOut")
	fs.Int("slippage-bps", -1, "slippage tolerance in bps, negative uses the chain policy")
}
