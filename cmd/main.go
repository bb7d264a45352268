package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lottery-ledger/internal/address"
	"lottery-ledger/internal/backup"
	"lottery-ledger/internal/config"
	"lottery-ledger/internal/handlers"
	"lottery-ledger/internal/ledger"
	"lottery-ledger/internal/services"
	"lottery-ledger/internal/workers"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "lottery-ledger"
	app.Usage = "rolling round lottery ledger"
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "config, c", Usage: "TOML configuration file", EnvVar: "LOTTERY_CONFIG"},
		cli.StringFlag{Name: "env", Value: ".env", Usage: "dotenv file loaded before the environment"},
		cli.StringFlag{Name: "server, s", Value: "http://localhost:8080", Usage: "ledger server for client commands", EnvVar: "LOTTERY_SERVER"},
		cli.StringFlag{Name: "key, k", Usage: "hex secret key of the wallet", EnvVar: "LOTTERY_SECRET_KEY"},
		cli.BoolFlag{Name: "quiet, q", Usage: "suppress console logging"},
	}
	app.Commands = []cli.Command{
		{Name: "serve", Usage: "run the ledger HTTP server and background jobs", Action: serve},
		deriveCommand,
		{Name: "keygen", Usage: "generate a wallet key pair", Action: keygen},
		{Name: "activate", Usage: "activate the wallet", Action: activate},
		buyCommand,
		finalizeCommand,
		claimCommand,
		snapshotCommand,
	}

	lg := logger.Init("lottery-ledger", !quietArg(os.Args), false, io.Discard)
	defer lg.Close()

	if err := app.Run(os.Args); err != nil {
		logger.Errorf("%v", err)
		lg.Close()
		os.Exit(1)
	}
}

// quietArg looks for the global quiet flag before the app parses it, so the
// logger is set up ahead of any command.
func quietArg(args []string) bool {
	for _, a := range args[1:] {
		switch a {
		case "-q", "--quiet", "-quiet":
			return true
		case "--":
			return false
		}
	}
	return false
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	return config.Load(c.GlobalString("config"), c.GlobalString("env"))
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	params, err := cfg.Params()
	if err != nil {
		return err
	}
	program, err := cfg.Program()
	if err != nil {
		return err
	}

	// 1. Open the ledger
	store, err := ledger.Open(cfg.DataPath, cfg.DBTimeout.Duration)
	if err != nil {
		return err
	}
	defer store.Close()

	// 2. Initialize the Lottery Service
	lotteryService, err := services.NewLotteryService(store, address.NewResolver(program), params)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Start the background jobs
	sched, err := workers.NewScheduler()
	if err != nil {
		return err
	}
	if cfg.Finalizer.Enabled {
		if err := sched.AddFinalizer(ctx, lotteryService, cfg.Finalizer.Interval.Duration); err != nil {
			return err
		}
	}
	if cfg.Backup.Enabled {
		s3Client, err := backup.NewS3Client(ctx, cfg.Backup)
		if err != nil {
			return err
		}
		uploader := backup.NewUploader(s3Client, cfg.Backup.Bucket, cfg.Backup.Prefix)
		if err := sched.AddSnapshots(ctx, uploader, store, cfg.Backup.Interval.Duration); err != nil {
			return err
		}
	}
	sched.Start()
	defer func() {
		if err := sched.Shutdown(); err != nil {
			logger.Errorf("Scheduler shutdown: %v", err)
		}
	}()

	// 4. Set up the Gin router
	if !cfg.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(handlers.NewHTTPHandler(lotteryService), cfg.AuthSkew.Duration, time.Now)

	// 5. Run the server until interrupted
	srv := &http.Server{Addr: cfg.Listen, Handler: router}
	errc := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on %s (program %s, round duration %s)", cfg.Listen, program, params.RoundDuration)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Infof("Shutting down")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
