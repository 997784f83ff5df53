package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/pocketbank/internal/config"
	"github.com/cleared-dev/pocketbank/internal/money"
	"github.com/cleared-dev/pocketbank/internal/store"
)

// starterAccounts are created by init --starter.
var starterAccounts = []string{"Checking", "Savings", "Cash", "Credit Card"}

func newInitCommand(a *app) *cobra.Command {
	var currency string
	var force, starter bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file and create an empty ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, a, currency, force, starter)
		},
	}

	cmd.Flags().StringVar(&currency, "currency", money.DefaultCurrency.Code(), "ledger currency (ISO code)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	cmd.Flags().BoolVar(&starter, "starter", false, "create a starter set of accounts")

	return cmd
}

func runInit(cmd *cobra.Command, a *app, currency string, force, starter bool) error {
	if _, err := os.Stat(a.configPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", a.configPath)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}
	cur, err := money.Lookup(currency)
	if err != nil {
		return err
	}

	cfg := config.Default()
	cfg.Currency = cur.Code()
	if a.dbPath != "" {
		if cfg.Database, err = filepath.Abs(a.dbPath); err != nil {
			return err
		}
	}
	if err := config.Save(a.configPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// reload so the database path resolves against the config location
	cfg, err = a.loadConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg.DatabasePath(), store.Options{AutoSave: true, Logger: a.logger(cmd, cfg)})
	if err != nil {
		return err
	}
	if starter {
		err = createStarterAccounts(st, cfg.CurrencyValue())
	}
	if err := errors.Join(err, st.Close()); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized pocketbank ledger at %s (%s)\n", cfg.DatabasePath(), cfg.Currency)
	return nil
}

func createStarterAccounts(st *store.Store, currency money.Currency) error {
	l, err := st.Load(currency)
	if err != nil {
		return err
	}
	return l.Batch(func() error {
		for _, name := range starterAccounts {
			if l.Account(name) != nil {
				continue
			}
			if _, err := l.CreateAccount(name); err != nil {
				return err
			}
		}
		return nil
	})
}

func newMigrateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Upgrade the ledger database to the current schema",
		Long: "Upgrade the ledger database to the current schema. A backup of the file is " +
			"written next to it before every step.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.DatabasePath(), store.Options{AutoSave: true, Logger: a.logger(cmd, cfg)})
			if err != nil {
				var merr *store.MigrationError
				if errors.As(err, &merr) && merr.Backup != "" {
					fmt.Fprintf(cmd.ErrOrStderr(), "restore %s to recover\n", merr.Backup)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is at schema version %d\n", st.Path(), st.Version())
			return st.Close()
		},
	}
}
