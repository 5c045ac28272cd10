package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"canteen/pkg/config"
	"canteen/pkg/domain/model"
	"canteen/pkg/infrastructure/event"
	"canteen/pkg/infrastructure/ids"
	"canteen/pkg/infrastructure/metrics"
	"canteen/pkg/infrastructure/repository"
	"canteen/pkg/menu"
	"canteen/pkg/session"
	"canteen/transport"
)

const appID = "canteen"

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	app := &cli.App{
		Name:  appID,
		Usage: "canteen cart and checkout service",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API and gRPC health endpoint",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "apply MySQL schema migrations",
				Action: migrateDB,
			},
			{
				Name:  "menu",
				Usage: "print the canteen menu",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "day", Usage: "only print one weekday"},
				},
				Action: printMenu,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("canteen stopped with error")
	}
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	policy, err := cfg.WalletPolicy()
	if err != nil {
		return err
	}

	m, err := menu.Load(cfg.MenuFile)
	if err != nil {
		return errors.Wrap(err, "load menu")
	}

	receipts, closeStore, err := openReceipts(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	recorder := metrics.NewRecorder()
	logger := log.WithField("app", appID)
	generator, err := ids.ResumeGenerator(cfg.OrderNumberSeed, receipts)
	if err != nil {
		return errors.Wrap(err, "resume order numbers")
	}

	sessions := session.NewRegistry(session.Factory{
		Receipts:   receipts,
		IDs:        generator,
		Clock:      ids.SystemClock{},
		Dispatcher: event.NewLogDispatcher(logger, recorder),
		Policy:     policy,
	})

	limiter := transport.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	router := transport.Router(m, sessions, receipts, transport.Options{
		Metrics: recorder.Handler(),
		Limiter: limiter,
	})
	srv := &http.Server{Addr: cfg.HTTPAddress, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(log.Fields{"url": cfg.HTTPAddress}).Info("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.GRPCAddress)
		if err != nil {
			return errors.Wrap(err, "grpc listen")
		}
		log.WithFields(log.Fields{"url": cfg.GRPCAddress}).Info("Starting health server")
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		return sessions.Expire(ctx, cfg.SweepInterval, cfg.SessionIdleTimeout)
	})
	g.Go(func() error {
		ticker := time.NewTicker(cfg.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				limiter.Sweep(cfg.SessionIdleTimeout)
			}
		}
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down")
		healthServer.Shutdown()
		grpcServer.GracefulStop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func migrateDB(_ *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := sqlx.Connect("mysql", cfg.MySQLDSN)
	if err != nil {
		return errors.Wrap(err, "connect to mysql")
	}
	defer db.Close()

	if err := repository.Migrate(db); err != nil {
		return err
	}
	log.Info("migrations applied")
	return nil
}

func printMenu(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	m, err := menu.Load(cfg.MenuFile)
	if err != nil {
		return errors.Wrap(err, "load menu")
	}

	days := m.Days()
	if name := c.String("day"); name != "" {
		day, err := m.Day(name)
		if err != nil {
			return err
		}
		days = []menu.Day{day}
	}

	out := c.App.Writer
	for _, day := range days {
		fmt.Fprintln(out, day.Day)
		printSection(out, menu.AfternoonTitle, day.Afternoon)
		printSection(out, menu.BreakfastTitle, day.Breakfast)
	}
	return nil
}

func printSection(out io.Writer, title string, items []model.CartItem) {
	fmt.Fprintf(out, "  %s\n", title)
	for _, item := range items {
		fmt.Fprintf(out, "    %3d  %-16s %s\n", item.ID, item.Name, item.Price)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Parse()
	if err != nil {
		return nil, err
	}
	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	return cfg, nil
}

type receiptStore interface {
	model.ReceiptRepository
	ids.OrderArchive
}

func openReceipts(cfg *config.Config) (receiptStore, func(), error) {
	switch cfg.Storage {
	case "memory":
		return repository.NewMemoryReceiptRepository(), func() {}, nil
	case "mysql":
		db, err := sqlx.Connect("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connect to mysql")
		}
		return repository.NewMySQLReceiptRepository(db), func() { db.Close() }, nil
	}
	return nil, nil, errors.Errorf("unknown storage %q", cfg.Storage)
}
