package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/DataDog/datadog-go/statsd"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/sirupsen/logrus"

	"github.com/caveau-digitale/caveaud/internal/chain"
	"github.com/caveau-digitale/caveaud/internal/ledger"
	"github.com/caveau-digitale/caveaud/internal/session"
	"github.com/caveau-digitale/caveaud/internal/swap"
	"github.com/caveau-digitale/caveaud/internal/types"
	"github.com/caveau-digitale/caveaud/internal/wallet"
)

// Server exposes the savings flows to the local UI over localhost HTTP.
type Server struct {
	host       string
	port       int64
	logger     *logrus.Logger
	session    *session.Session
	chain      *chain.Client
	swapClient *swap.Client
	poller     *swap.Poller
	sdClient   *statsd.Client
}

// NewServer returns a new server. The chain and swap clients may be nil
// when no provider is configured; the core flows work without them.
func NewServer(host string, port int64,
	sess *session.Session,
	chainClient *chain.Client,
	swapClient *swap.Client,
	poller *swap.Poller,
	sdClient *statsd.Client) *Server {
	return &Server{
		host:       host,
		port:       port,
		logger:     logrus.WithField("service", "api").Logger,
		session:    sess,
		chain:      chainClient,
		swapClient: swapClient,
		poller:     poller,
		sdClient:   sdClient,
	}
}

func (s *Server) StartServer() error {
	e := s.router()
	return e.Start(fmt.Sprintf("%s:%d", s.host, s.port))
}

func (s *Server) router() *echo.Echo {
	e := echo.New()
	e.Logger.SetLevel(log.INFO)
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(middleware.CORS())
	if s.sdClient != nil {
		e.Use(s.statsdMiddleware)
	}
	limiterStore := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{Rate: 20, Burst: 60, ExpiresIn: 5 * time.Minute},
	)
	e.Use(middleware.RateLimiter(limiterStore))
	e.HTTPErrorHandler = s.errorHandler

	e.GET("/ping", s.Ping)
	e.GET("/presets", s.GetPresets)

	grp := e.Group("/wallet")
	grp.GET("/status", s.WalletStatus)
	grp.POST("/create", s.CreateWallet)
	grp.POST("/confirm-seed", s.ConfirmSeed)
	grp.POST("/pin", s.SubmitPin)
	grp.POST("/unlock", s.Unlock)
	grp.POST("/restore", s.Restore)
	grp.POST("/reveal", s.RevealPhrase)
	grp.POST("/lock", s.Lock)
	e.DELETE("/wallet", s.WipeWallet)

	e.GET("/dashboard", s.Dashboard)
	vaultGroup := e.Group("/vault")
	vaultGroup.GET("", s.ListVaults)
	vaultGroup.POST("", s.CreateVault)
	vaultGroup.GET("/:id", s.GetVault)
	vaultGroup.POST("/:id/deposit", s.Deposit)
	vaultGroup.GET("/:id/progress", s.VaultProgress)

	e.GET("/balance/:asset", s.GetBalance)
	swapGroup := e.Group("/swap")
	swapGroup.POST("/quote", s.SwapQuote)
	swapGroup.GET("/order/:id", s.SwapOrder)

	return e
}

func (s *Server) statsdMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		duration := time.Since(start)

		_ = s.sdClient.Incr("http.requests", []string{"path:" + c.Path()}, 1)
		_ = s.sdClient.Timing("http.response_time", duration, []string{"path:" + c.Path()}, 1)
		_ = s.sdClient.Incr("http.status."+fmt.Sprint(c.Response().Status), []string{"path:" + c.Path(), "method:" + c.Request().Method}, 1)

		return err
	}
}

// errorHandler maps domain errors onto HTTP statuses. Wrong-PIN outcomes
// surface a single generic message regardless of which internal variant
// occurred.
func (s *Server) errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = c.JSON(he.Code, map[string]any{"error": he.Message})
		return
	}

	switch {
	case errors.Is(err, session.ErrWrongPin):
		// covers ErrSeedDecryptFailed and ErrAccountMismatch alike
		_ = c.JSON(http.StatusUnauthorized, map[string]any{"error": "wrong PIN", "retryable": true})
	case errors.Is(err, session.ErrPinMismatch),
		errors.Is(err, session.ErrInvalidPin),
		errors.Is(err, session.ErrNotConfirmed),
		errors.Is(err, types.ErrValidation),
		errors.Is(err, wallet.ErrInvalidMnemonic):
		_ = c.JSON(http.StatusBadRequest, map[string]any{"error": err.Error(), "retryable": true})
	case errors.Is(err, session.ErrInvalidState):
		_ = c.JSON(http.StatusConflict, map[string]any{"error": err.Error()})
	case errors.Is(err, ledger.ErrVaultNotFound):
		_ = c.JSON(http.StatusNotFound, map[string]any{"error": err.Error()})
	default:
		s.logger.WithError(err).Error("unexpected failure")
		_ = c.JSON(http.StatusInternalServerError, map[string]any{"error": "internal error"})
	}
}

func (s *Server) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "Caveau daemon is running")
}
