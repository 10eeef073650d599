package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"

	"github.com/carlmjohnson/versioninfo"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "keybridge",
		Usage:   "OAuth2/OIDC session service with wallet linking",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"KEYBRIDGE_LOG_LEVEL", "GO_LOG_LEVEL", "LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		serveCmd,
	}

	return app.Run(args)
}

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "run the keybridge API daemon",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":6410",
			EnvVars: []string{"KEYBRIDGE_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":6411",
			EnvVars: []string{"KEYBRIDGE_METRICS_LISTEN"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for sessions and flow transactions: redis://<user>:<pass>@<hostname>:6379/<db>",
			EnvVars: []string{"KEYBRIDGE_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database connection string for the wallet-link table",
			Value:   "sqlite://data/keybridge/keybridge.sqlite",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
		&cli.StringFlag{
			Name:     "providers-file",
			Usage:    "path to the JSON provider registry",
			Required: true,
			EnvVars:  []string{"KEYBRIDGE_PROVIDERS_FILE"},
		},
		&cli.StringFlag{
			Name:     "redirect-uri",
			Usage:    "public callback URL registered with the providers",
			Required: true,
			EnvVars:  []string{"KEYBRIDGE_REDIRECT_URI"},
		},
		&cli.StringFlag{
			Name:    "return-to",
			Usage:   "default post-login redirect for browser flows",
			Value:   "/",
			EnvVars: []string{"KEYBRIDGE_RETURN_TO"},
		},
		&cli.StringFlag{
			Name:     "wallet-auth-url",
			Usage:    "validate endpoint of the wallet-authentication service",
			Required: true,
			EnvVars:  []string{"KEYBRIDGE_WALLET_AUTH_URL"},
		},
	},
	Action: func(cctx *cli.Context) error {
		logger := configLogger(cctx, os.Stdout)

		srv, err := NewServer(Config{
			Logger:        logger,
			Bind:          cctx.String("bind"),
			RedisURL:      cctx.String("redis-url"),
			DatabaseURL:   cctx.String("database-url"),
			DatabaseConns: cctx.Int("max-db-connections"),
			ProvidersFile: cctx.String("providers-file"),
			RedirectURI:   cctx.String("redirect-uri"),
			ReturnTo:      cctx.String("return-to"),
			WalletAuthURL: cctx.String("wallet-auth-url"),
		})
		if err != nil {
			return fmt.Errorf("failed to construct server: %w", err)
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "err", err)
				os.Exit(-1)
			}
		}()

		return srv.RunAPI()
	},
}

func configLogger(cctx *cli.Context, writer io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cctx.String("log-level")) {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "info":
		level = slog.LevelInfo
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}
