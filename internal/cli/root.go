// Package cli implements libraryctl, the operator tool for the library server.
package cli

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/rongwang/library-server/internal/config"
	"github.com/rongwang/library-server/internal/repository"
	"github.com/rongwang/library-server/internal/service"
	"github.com/rongwang/library-server/internal/utils"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Driver string
	DBPath string
}

// NewRootCommand creates the root command for libraryctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "libraryctl",
		Short:         "Administer the library server database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags override the environment and config file
	cmd.PersistentFlags().StringVar(&opts.Driver, "db-driver", "", "database driver (postgres|pgx|sqlite3)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db-path", "", "sqlite database file")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewCreateAdminCommand(opts))
	cmd.AddCommand(NewSetRoleCommand(opts))
	cmd.AddCommand(NewAddBookCommand(opts))

	return cmd
}

// env is what a command needs to talk to the store
type env struct {
	cfg    *config.Config
	db     *sqlx.DB
	repo   *repository.SQLRepository
	svc    *service.DefaultService
	logger *utils.Logger
}

func (e *env) Close() error {
	return e.db.Close()
}

func openEnv(opts *RootOptions) (*env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if opts.Driver != "" {
		cfg.Database.Driver = opts.Driver
	}
	if opts.DBPath != "" {
		cfg.Database.Path = opts.DBPath
	}

	logger := utils.NopLogger()

	db, err := config.SetupDatabase(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	repo := repository.NewSQLRepository(db)
	svc := service.NewDefaultService(repo, service.Settings{
		JWTSecret:        cfg.Auth.JWTSecret,
		TokenDuration:    cfg.Auth.TokenTTL(),
		MaxActiveBorrows: cfg.Lending.MaxActiveBorrows,
		LoanPeriod:       cfg.Lending.LoanPeriod(),
	}, service.WithLogger(logger))

	return &env{cfg: cfg, db: db, repo: repo, svc: svc, logger: logger}, nil
}
