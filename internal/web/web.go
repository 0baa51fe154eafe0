package web

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"relayengine/internal/web/api"
	"relayengine/internal/web/middleware"
)

// BrokerStatus reports the MQTT connection for /healthz
type BrokerStatus interface {
	IsConnected() bool
}

// Dependencies of the REST API
type Dependencies struct {
	Auth      api.Authenticator
	Tokens    middleware.TokenValidator
	Rules     api.RuleStore
	Devices   api.DeviceStore
	Telemetry api.TelemetryReader
	Operators api.OperatorReader
	Engine    api.EngineInterface
	Gatherer  prometheus.Gatherer
	Broker    BrokerStatus
	AgentID   string
	Addr      string
}

type WebServer struct {
	router *gin.Engine
	srv    *http.Server
}

func NewWebServer(deps Dependencies) *WebServer {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger())

	middlewareManager := middleware.NewMiddlewareManager(deps.Tokens)

	api.RegisterAuthRoutes(router, deps.Auth, middlewareManager, deps.AgentID)
	api.RegisterDeviceRoutes(router, middlewareManager, deps.Devices, deps.Telemetry)
	api.RegisterAutomationRoutes(router, middlewareManager, deps.Rules, deps.Engine)
	api.RegisterUserRoutes(router, middlewareManager, deps.Operators)

	router.GET("/healthz", func(c *gin.Context) {
		if deps.Broker != nil && !deps.Broker.IsConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "mqtt": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	return &WebServer{
		router: router,
		srv:    &http.Server{Addr: deps.Addr, Handler: router, ReadHeaderTimeout: 10 * time.Second},
	}
}

// Handler exposes the router, e.g. for the remote access bridge
func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start serves until Shutdown is called
func (ws *WebServer) Start() error {
	log.Printf("API: Listening on %s", ws.srv.Addr)
	if err := ws.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully
func (ws *WebServer) Shutdown(ctx context.Context) error {
	return ws.srv.Shutdown(ctx)
}
