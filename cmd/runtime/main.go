package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/dmm-router/internal/aggregator"
	"github.com/hxuan190/dmm-router/internal/common"
	"github.com/hxuan190/dmm-router/internal/config"
	"github.com/hxuan190/dmm-router/internal/http"
)

// @title DMM Router API
// @version 1.0
// @description Trade routing and pricing over Kyber DMM amplified pools.
// @description
// @description ## - Features
// @description - **Local routing**: exhaustive search over on-chain DMM pools, up to 3 hops
// @description - **Price Impact Analysis**: signed impact against the route mid price with severity warnings
// @description - **Slippage Protection**: minimum output / maximum input thresholds per trade
// @description - **Route sessions**: debounced aggregation-service routes compared against a single source
// @description
// @description ## - Usage Tips
// @description - Amounts are in smallest token units (wei for 18-decimal tokens)
// @description - Use `native` or 0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE for the chain's native currency
// @description - Default slippage is 50 bps (0.5%); stablecoin pairs use at least 100 bps
// @BasePath /
// @schemes https http
// @tag.name quote
// @tag.description Best trade across DMM pools with slippage bounds
// @tag.name pools
// @tag.description Candidate pools for a pair
// @tag.name sessions
// @tag.description Debounced aggregation-service routes per client session
// @tag.name chain
// @tag.description Active chain

func main() {
	// load env
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file, using process environment")
	}
	common.SetupLogger(os.Getenv("LOG_LEVEL"), os.Getenv("ENV"))

	// di container config
	conf := container.NewConf(
		&config.GeneralConfig{},
		&config.RPCConfig{},
		&config.RouterConfig{},
		&config.ChainsConfig{},
		&config.StoreConfig{},
	)

	// di container
	dic, err := container.New(
		// config
		conf,

		// services
		&aggregator.Service{},
		&http.HTTPService{},
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to create di container")
		return
	}

	// Run blocks until SIGINT/SIGTERM
	if err := dic.Run(); err != nil {
		log.Error().Err(err).Msg("failed to run di container")
		return
	}

	log.Info().Msg("Shutting down services...")
	if err := dic.Stop(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("Shutdown complete")
}
