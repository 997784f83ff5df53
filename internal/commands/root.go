package commands

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/pocketbank/internal/buildinfo"
	"github.com/cleared-dev/pocketbank/internal/config"
	"github.com/cleared-dev/pocketbank/internal/date"
	"github.com/cleared-dev/pocketbank/internal/logging"
	"github.com/cleared-dev/pocketbank/internal/model"
	"github.com/cleared-dev/pocketbank/internal/session"
)

// app holds the global flags shared by every subcommand.
type app struct {
	configPath string
	dbPath     string
	debug      bool
	manualSave bool

	today func() date.Date
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{today: date.Today})
}

func newRootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "pocketbank",
		Short:   "Personal ledger with transfers and recurring transactions",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", config.DefaultPath(), "config file")
	flags.StringVar(&a.dbPath, "db", "", "ledger database (overrides the config)")
	flags.BoolVar(&a.debug, "debug", false, "log debug output")
	flags.BoolVar(&a.manualSave, "manual-save", false, "commit once when the command succeeds instead of after every change")

	rootCmd.AddCommand(
		newInitCommand(a),
		newAccountCommand(a),
		newCurrencyCommand(a),
		newTxnCommand(a),
		newRecurringCommand(a),
		newTotalsCommand(a),
		newCheckCommand(a),
		newExportCommand(a),
		newImportCommand(a),
		newMigrateCommand(a),
	)

	return rootCmd
}

// loadConfig reads the config file and applies the global flags.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.dbPath != "" {
		// relative to the working directory, not the config file
		if cfg.Database, err = filepath.Abs(a.dbPath); err != nil {
			return nil, err
		}
	}
	if a.debug {
		cfg.Log.Level = "debug"
	}
	if a.manualSave {
		cfg.AutoSave = false
	}
	return cfg, nil
}

func (a *app) logger(cmd *cobra.Command, cfg *config.Config) logging.Logger {
	return logging.NewLogrusAdapterTo(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
}

// run opens the ledger, calls fn and commits its changes when it succeeds.
func (a *app) run(cmd *cobra.Command, fn func(s *session.Session, out io.Writer) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	s, err := session.Open(cfg, a.logger(cmd, cfg), a.today())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, t := range s.Performed {
		fmt.Fprintf(out, "performed %s\n", describe(t))
	}

	err = fn(s, out)
	if err == nil {
		err = s.Save()
	}
	return errors.Join(err, s.Close())
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// findTransactions resolves the ids in args, keeping their order.
func findTransactions(l *model.Ledger, args []string) ([]*model.Transaction, error) {
	all, err := l.Transactions()
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*model.Transaction, len(all))
	for _, t := range all {
		byID[t.ID()] = t
	}
	out := make([]*model.Transaction, 0, len(args))
	for _, arg := range args {
		id, err := parseID(arg)
		if err != nil {
			return nil, err
		}
		t, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("no transaction %d", id)
		}
		out = append(out, t)
	}
	return out, nil
}

func describe(t *model.Transaction) string {
	s := fmt.Sprintf("#%d %s %s %s %q", t.ID(), t.Date(), t.Parent().Name(),
		t.Parent().Currency().Format(t.Amount()), t.Description())
	if link := t.Link(); link != nil && link.Parent() != nil {
		s += " <-> " + link.Parent().Name()
	}
	return s
}
