package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"pipe-company/internal/backup"
	"pipe-company/internal/config"
	"pipe-company/internal/database"
	"pipe-company/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app carries state shared by every command. The database is opened on first use so
// commands that only touch the backup directory work without a reachable server.
type app struct {
	envFile string
	verbose bool

	in  *bufio.Reader
	out io.Writer

	cfg *config.Config
	log *zap.Logger
	db  database.Service

	// appended after the defaults, so they win
	backupOpts []backup.Option
}

func newApp(in io.Reader, out io.Writer) *app {
	return &app{in: bufio.NewReader(in), out: out}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "storectl",
		Short: "Operate the pipe company store database",
		Long: `storectl manages database backups and migrations, runs integrity
checks and bootstraps administrator accounts.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "extra env file loaded before reading the environment")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newBackupCmd(a),
		newMigrateCmd(a),
		newValidateCmd(a),
		newUserCmd(a),
	)
	return root
}

func (a *app) init() error {
	if a.cfg == nil {
		a.cfg = config.Load(a.envFile)
	}
	if a.log == nil {
		log, err := logger.NewCLI(a.verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.log = log
	}
	return nil
}

// close releases the database opened by a command. It runs after Execute returns
// because cobra skips post-run hooks when a command fails.
func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database connection", zap.Error(err))
		}
		a.db = nil
	}
	if a.log != nil {
		a.log.Sync()
	}
}

func (a *app) database() (database.Service, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := database.New(a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db
	return db, nil
}

func (a *app) backups() *backup.Manager {
	schemaVersion := func(ctx context.Context) (int64, error) {
		db, err := a.database()
		if err != nil {
			return 0, err
		}
		return database.SchemaVersion(db.DB())(ctx)
	}
	opts := append([]backup.Option{backup.WithSchemaVersion(schemaVersion)}, a.backupOpts...)
	return backup.NewManager(a.cfg.Backup, a.cfg.Database, a.log, opts...)
}

func (a *app) printf(format string, args ...interface{}) {
	fmt.Fprintf(a.out, format, args...)
}

// confirm asks a yes/no question and defaults to no
func (a *app) confirm(question string) bool {
	a.printf("%s [y/N]: ", question)
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		a.printf("\n")
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
