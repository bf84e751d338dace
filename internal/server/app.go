// Package server initializes and runs the privilege bot: it opens the
// database, applies schema migrations, bootstraps the configured admin
// account and connects the command surface to the chat gateway.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dmitrijs2005/privgate/internal/logging"
	"github.com/dmitrijs2005/privgate/internal/server/bot"
	"github.com/dmitrijs2005/privgate/internal/server/config"
	"github.com/dmitrijs2005/privgate/internal/server/gateway"
	"github.com/dmitrijs2005/privgate/internal/server/guard"
	"github.com/dmitrijs2005/privgate/internal/server/privileges"
	"github.com/dmitrijs2005/privgate/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/privgate/internal/server/services"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	manager  repomanager.RepositoryManager
	accounts *services.AccountService
	gateway  *gateway.Gateway
	registry *privileges.Registry
}

func NewApp(c *config.Config, registry *privileges.Registry) (*App, error) {
	slog := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slog)

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	manager := repomanager.NewPostgresRepositoryManager()
	accounts := services.NewAccountService(db, manager, logger)
	gw := gateway.New(c.GatewayURL, c.BotToken, c.SendTimeout, logger)

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		manager:  manager,
		accounts: accounts,
		gateway:  gw,
		registry: registry,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)
	defer app.db.Close()

	if err := app.manager.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	if app.config.AdminPrincipalID != 0 {
		if err := app.accounts.EnsureAdmin(ctx, app.config.AdminPrincipalID); err != nil {
			return fmt.Errorf("admin bootstrap error: %w", err)
		}
	}

	g := guard.New(app.accounts, app.gateway, nil, app.logger)
	d := bot.NewDispatcher(app.gateway, app.logger)
	bot.NewHandlers(app.accounts, app.registry, app.gateway, app.config.BotName, app.logger).Register(d, g)

	if err := app.gateway.Run(ctx, d); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	app.logger.Info(ctx, "Shutting down...")
	return nil
}
