package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"talent/internal/auth"
	"talent/internal/config"
	"talent/internal/db"
	"talent/internal/migrate"
	"talent/internal/models"
	"talent/internal/services"
	"talent/internal/store"
	"talent/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

// Backend is the slice of the service layer the CLI drives.
type Backend interface {
	AdminImport(ctx context.Context, id auth.Identity, text string) (services.ImportResult, error)
	ExportCSV(ctx context.Context, w io.Writer) error
	Reconcile(ctx context.Context) ([]models.LedgerDrift, error)
	Migrate(ctx context.Context, dir string) ([]string, error)
	Close() error
}

type cli struct {
	cfg     config.Config
	connect func(cfg config.Config) (Backend, error)
	in      io.Reader
	out     io.Writer
	open    func(url string) error
	now     func() time.Time
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	app := &cli{
		cfg:     config.Load(),
		connect: connectBackend,
		in:      os.Stdin,
		out:     os.Stdout,
		open:    openBrowser,
		now:     time.Now,
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

type sqlBackend struct {
	*services.Policy
	*services.ReportService
	database *sqlx.DB
}

func connectBackend(cfg config.Config) (Backend, error) {
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	cards := store.NewCardStore(database)
	transactions := store.NewTransactionStore(database)
	audit := store.NewAuditStore(database)
	txRunner := db.NewTxRunner(database)
	// The CLI has no websocket viewers; broadcasts go to an empty hub.
	ledger := services.NewLedgerService(txRunner, cards, transactions, audit, websocket.NewHub(), slog.Default())
	return &sqlBackend{
		Policy:        services.NewPolicy(txRunner, ledger, store.NewBoothStore(database), store.NewContentStore(database), audit, cfg.AdminPassword),
		ReportService: services.NewReportService(cards, transactions),
		database:      database,
	}, nil
}

func (b *sqlBackend) Migrate(ctx context.Context, dir string) ([]string, error) {
	return migrate.Up(ctx, b.database, dir, slog.Default())
}

func (b *sqlBackend) Close() error {
	return b.database.Close()
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "talentctl",
		Short:         "operator tools for the talents ledger",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(c.out)
	root.SetErr(c.out)
	root.AddCommand(c.migrateCmd(), c.importCmd(), c.exportCmd(), c.reconcileCmd(), c.readerCmd())
	return root
}

// withBackend opens a backend for the duration of fn.
func (c *cli) withBackend(fn func(Backend) error) error {
	backend, err := c.connect(c.cfg)
	if err != nil {
		return err
	}
	defer backend.Close()
	return fn(backend)
}
