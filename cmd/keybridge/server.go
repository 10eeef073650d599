package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keybridge-labs/keybridge/oauth"
	"github.com/keybridge-labs/keybridge/session"
	"github.com/keybridge-labs/keybridge/wallet"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	slogecho "github.com/samber/slog-echo"
)

type Server struct {
	logger *slog.Logger
	echo   *echo.Echo
	httpd  *http.Server

	providers      oauth.Registry
	oauthClient    *oauth.Client
	keysets        *oauth.KeySetResolver
	txns           oauth.TxnStore
	sessions       session.Store
	links          wallet.LinkStore
	walletVerifier wallet.Verifier

	redirectURI string
	returnTo    string
}

type Config struct {
	Logger        *slog.Logger
	Bind          string
	RedisURL      string
	DatabaseURL   string
	DatabaseConns int
	ProvidersFile string
	RedirectURI   string
	ReturnTo      string
	WalletAuthURL string
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	providers, err := oauth.LoadRegistry(config.ProvidersFile)
	if err != nil {
		return nil, err
	}

	var txns oauth.TxnStore
	var sessions session.Store
	if config.RedisURL != "" {
		txns, err = oauth.NewRedisTxnStore(config.RedisURL)
		if err != nil {
			return nil, err
		}
		sessions, err = session.NewRedisStore(config.RedisURL)
		if err != nil {
			return nil, err
		}
	} else {
		logger.Warn("no redis URL configured, using in-process transient stores")
		txns = oauth.NewMemTxnStore(10_000, oauth.TxnTTL)
		sessions = session.NewMemStore(100_000, session.TTL)
	}

	keysets, err := oauth.NewKeySetResolver(config.RedisURL)
	if err != nil {
		return nil, err
	}

	db, err := setupDatabase(config.DatabaseURL, config.DatabaseConns)
	if err != nil {
		return nil, err
	}
	links, err := wallet.NewGormLinkStore(db)
	if err != nil {
		return nil, err
	}

	srv := &Server{
		logger:         logger,
		providers:      providers,
		oauthClient:    oauth.NewClient(),
		keysets:        keysets,
		txns:           txns,
		sessions:       sessions,
		links:          links,
		walletVerifier: wallet.NewHTTPVerifier(config.WalletAuthURL),
		redirectURI:    config.RedirectURI,
		returnTo:       config.ReturnTo,
	}
	srv.buildEcho()

	srv.httpd = &http.Server{
		Handler:        srv,
		Addr:           config.Bind,
		WriteTimeout:   time.Minute,
		ReadTimeout:    time.Minute,
		MaxHeaderBytes: 1 * (1024 * 1024),
	}
	return srv, nil
}

func (srv *Server) buildEcho() {
	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(srv.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("64K"))
	e.HTTPErrorHandler = srv.errorHandler

	e.GET("/_health", srv.HandleHealthCheck)
	e.GET("/oauth2/start/:provider", srv.HandleStart)
	e.GET("/oauth2/callback/:provider", srv.HandleCallback)
	e.POST("/oauth2/login-with-idtoken/:provider", srv.HandleLoginWithIDToken)
	e.GET("/oauth2/me", srv.HandleMe)
	e.GET("/oauth2/me-by-token/:provider", srv.HandleMeByToken)
	e.POST("/oauth2/logout", srv.HandleLogout)
	e.POST("/oauth2/link-wallet", srv.HandleLinkWallet)
	e.POST("/oauth2/unlink-wallet-by-session", srv.HandleUnlinkWalletBySession)
	e.POST("/oauth2/unlink-wallet-by-token", srv.HandleUnlinkWalletByToken)

	srv.echo = e
}

func (srv *Server) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	srv.echo.ServeHTTP(rw, req)
}

func (srv *Server) RunAPI() error {
	srv.logger.Info("starting server", "bind", srv.httpd.Addr)
	go func() {
		if err := srv.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				srv.logger.Error("HTTP server shutting down unexpectedly", "err", err)
			}
		}
	}()

	quit := make(chan struct{})
	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-exitSignals
		srv.logger.Info("received OS exit signal", "signal", sig)
		if err := srv.Shutdown(); err != nil {
			srv.logger.Error("HTTP server shutdown error", "err", err)
		}
		close(quit)
	}()
	<-quit
	srv.logger.Info("graceful shutdown complete")
	return nil
}

func (srv *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

func (srv *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.httpd.Shutdown(ctx)
}
