package http

import (
	"context"
	"errors"
	"fmt"
	gohttp "net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/hxuan190/dmm-router/internal/aggregator"
	"github.com/hxuan190/dmm-router/internal/config"
	"github.com/hxuan190/dmm-router/internal/domain"
	"github.com/hxuan190/dmm-router/internal/http/httputil"
	"github.com/hxuan190/dmm-router/internal/http/middlewares"
	"github.com/hxuan190/dmm-router/internal/services/coordinator"
)

const (
	API_VERSION  = "v1"
	HTTP_SERVICE = "http-service"
)

// RoutingService is what the API needs from the aggregator service.
type RoutingService interface {
	Chain() *config.Chain
	SwitchChain(chainID uint64) error
	Quote(ctx context.Context, req aggregator.QuoteRequest) (*aggregator.Quote, error)
	Pools(ctx context.Context, tokenA, tokenB string) ([]*domain.Pool, error)
	SetSessionInput(ctx context.Context, id string, in aggregator.SessionInput) (*coordinator.Session, bool, error)
	Session(id string) (*coordinator.Session, bool)
}

type HTTPService struct {
	container.BaseDIInstance

	routing     RoutingService
	rateLimiter *middlewares.RateLimiter
	adminToken  string
	server      *gohttp.Server
	conf        *config.GeneralConfig
	stopChan    chan struct{}

	handlers []httputil.IHttpHandler
}

func (svc *HTTPService) ID() string {
	return HTTP_SERVICE
}

func (svc *HTTPService) Configure(c container.IContainer) error {
	svc.conf = c.GetConfig(config.GENERAL_CONFIG_KEY).(*config.GeneralConfig)
	if svc.conf == nil {
		return errors.New("invalid server config")
	}

	routing := c.Instance(aggregator.AGGREGATOR_SERVICE).(*aggregator.Service)
	if svc.conf.AdminToken == "" {
		log.Warn().Msg("ADMIN_TOKEN not set, admin api disabled")
	}
	svc.setup(routing, middlewares.NewRateLimiter(10, 20), svc.conf.AdminToken)
	return nil
}

func (svc *HTTPService) setup(routing RoutingService, limiter *middlewares.RateLimiter, adminToken string) {
	svc.routing = routing
	svc.rateLimiter = limiter
	svc.adminToken = adminToken
	svc.stopChan = make(chan struct{})
	svc.handlers = []httputil.IHttpHandler{
		NewQuoteHandler(routing),
		NewPoolHandler(routing),
		NewSessionHandler(routing),
		NewChainHandler(routing),
	}
}

func (svc *HTTPService) engine() *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	corsConf := cors.DefaultConfig()
	corsConf.AllowAllOrigins = true
	corsConf.AddAllowHeaders("Authorization", middlewares.AdminTokenHeader)
	r.Use(cors.New(corsConf))

	r.Use(middlewares.MetricsMiddleware("/metrics", "/health"))
	r.Use(svc.rateLimiter.RateLimitMiddleware())

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(gohttp.StatusOK, gin.H{"status": "ok", "chain": svc.routing.Chain().Name})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("api")
	pub := api.Group(API_VERSION)
	priv := api.Group(API_VERSION)
	admin := api.Group(fmt.Sprintf("%s/admin", API_VERSION), middlewares.AdminAuth(svc.adminToken))

	svc.setupHandlers(pub, priv, admin)
	return r
}

func (svc *HTTPService) Start() error {
	if svc.conf.Env == config.ProdEnv {
		gin.SetMode(gin.ReleaseMode)
	}
	svc.server = &gohttp.Server{
		Addr:    svc.conf.HTTPHost + ":" + svc.conf.HTTPPort,
		Handler: svc.engine(),
	}
	go svc.pruneLimiter()
	log.Info().Str("host", svc.conf.HTTPHost).Str("port", svc.conf.HTTPPort).Msg("http server started")

	if err := svc.server.ListenAndServe(); err != nil && err != gohttp.ErrServerClosed {
		return err
	}
	return nil
}

func (svc *HTTPService) Stop() error {
	close(svc.stopChan)
	if svc.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := svc.server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("failed to stop http server")
		return err
	}
	log.Info().Msg("http server stopped gracefully")
	return nil
}

func (svc *HTTPService) pruneLimiter() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-svc.stopChan:
			return
		case <-ticker.C:
			if n := svc.rateLimiter.Prune(); n > 0 {
				log.Debug().Int("clients", n).Msg("[httpService] pruned idle rate limiters")
			}
		}
	}
}

func (svc *HTTPService) setupHandlers(
	rootPub *gin.RouterGroup,
	rootPriv *gin.RouterGroup,
	rootAdmin *gin.RouterGroup,
) {
	for _, h := range svc.handlers {
		pub := rootPub.Group(h.Root())
		priv := rootPriv.Group(h.Root())
		admin := rootAdmin.Group(h.Root())
		h.SetRoutes(pub, priv, admin)
	}
}
