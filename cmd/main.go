package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"makenaide/src/connectors"
	"makenaide/src/database"
	"makenaide/src/executors"
	"makenaide/src/repository"
	"makenaide/src/risk"
	"makenaide/src/runner"
	"makenaide/src/security"
	"makenaide/src/server"
)

var Version string

func main() {
	// Optional .env for local runs; deployed instances get real env vars.
	_ = godotenv.Load()

	setupLogger()

	app := cli.NewApp()
	app.Name = "makenaide"
	app.Usage = "Makenaide trading signal runner"
	app.Version = Version

	app.Commands = []cli.Command{
		runnerCMD,
		keysCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}

	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Execution trace goes to stdout and, when configured, to a log file.
	if path := os.Getenv("LOG_FILE"); path != "" {
		file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			logrus.WithError(err).Warnf("cannot open log file %s, logging to stdout only", path)
			return
		}
		logrus.SetOutput(io.MultiWriter(os.Stdout, file))
	}
}

var (
	runnerCMD = cli.Command{
		Name:   "runner",
		Usage:  "run the trading signal runner",
		Action: runnerAction,
		Flags: []cli.Flag{
			cli.StringFlag{
				Name:  "mode",
				Value: "loop",
				Usage: "execution mode: loop (continuous) or single (one-time)",
			},
			cli.IntFlag{
				Name:  "interval",
				Value: 60,
				Usage: "check interval in seconds (for loop mode)",
			},
			cli.BoolFlag{
				Name:  "test",
				Usage: "test mode, health checks only",
			},
		},
		Description: `Polls the signal queue and executes pending trading signals.`,
	}

	keysCMD = cli.Command{
		Name:  "keys",
		Usage: "manage encrypted exchange credentials",
		Subcommands: []cli.Command{
			{
				Name:   "generate",
				Usage:  "generate a new credentials encryption key",
				Action: keysGenerateAction,
			},
			{
				Name:      "encrypt",
				Usage:     "encrypt a credential with EXCHANGE_CREDENTIALS_KEY",
				ArgsUsage: "<value>",
				Action:    keysEncryptAction,
			},
		},
	}
)

func runnerAction(c *cli.Context) error {
	mode := c.String("mode")
	testMode := c.Bool("test")

	logrus.WithFields(logrus.Fields{
		"mode":     mode,
		"interval": c.Int("interval"),
		"test":     testMode,
	}).Info("starting makenaide runner")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("failed to connect to database")
		return err
	}

	execCfg := executors.GetConfig()

	accessKey, secretKey, err := resolveCredentials(execCfg)
	if err != nil {
		return err
	}

	client := connectors.NewClient(accessKey, secretKey, execCfg.BaseURL)

	signalRepo := repository.NewSignalRepository()
	tradeRepo := repository.NewTradeRepository()
	riskManager := risk.NewManager(risk.LimitsFromConfig(risk.GetConfig()), tradeRepo)
	executor := executors.NewTradeExecutor(
		logrus.WithField("component", "executor"),
		client, riskManager, tradeRepo, execCfg,
	)

	runCfg := runner.GetConfig()
	if c.IsSet("interval") {
		runCfg.CheckInterval = time.Duration(c.Int("interval")) * time.Second
	}

	run := runner.NewRunner(
		logrus.WithField("component", "runner"),
		signalRepo, executor, client, riskManager, runCfg,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var statusSrv *http.Server
	if runCfg.StatusPort != "" {
		statusSrv = server.StartServer(runCfg.StatusPort, signalRepo, runCfg.PendingLookback)
		defer server.Shutdown(statusSrv)
	}

	if testMode {
		if !run.RunHealthChecks(ctx) {
			return errors.New("health check failed")
		}
		logrus.Info("health check passed")
		return nil
	}

	switch mode {
	case "single":
		return run.SingleCheck(ctx)
	case "loop":
		return run.MonitorLoop(ctx)
	default:
		return fmt.Errorf("unknown mode %q, expected loop or single", mode)
	}
}

// resolveCredentials prefers encrypted credentials when a credentials key is
// configured, falling back to plain environment variables. Keys are never
// logged.
func resolveCredentials(cfg executors.Config) (string, string, error) {
	if cfg.UpbitAccessKeyEnc != "" || cfg.UpbitSecretKeyEnc != "" {
		accessKey, err := security.DecryptString(cfg.UpbitAccessKeyEnc)
		if err != nil {
			return "", "", fmt.Errorf("failed to decrypt access key: %w", err)
		}
		secretKey, err := security.DecryptString(cfg.UpbitSecretKeyEnc)
		if err != nil {
			return "", "", fmt.Errorf("failed to decrypt secret key: %w", err)
		}
		return accessKey, secretKey, nil
	}

	if cfg.UpbitAccessKey == "" || cfg.UpbitSecretKey == "" {
		return "", "", errors.New("no exchange API credentials configured")
	}

	return cfg.UpbitAccessKey, cfg.UpbitSecretKey, nil
}

func keysGenerateAction(_ *cli.Context) error {
	key, err := security.NewKey()
	if err != nil {
		return err
	}

	fmt.Println(key)
	return nil
}

func keysEncryptAction(c *cli.Context) error {
	value := c.Args().First()
	if value == "" {
		return errors.New("usage: keys encrypt <value>")
	}

	encrypted, err := security.EncryptString(value)
	if err != nil {
		return err
	}

	fmt.Println(encrypted)
	return nil
}
