package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/pocketbank/internal/audit"
	"github.com/cleared-dev/pocketbank/internal/csvio"
	"github.com/cleared-dev/pocketbank/internal/date"
	"github.com/cleared-dev/pocketbank/internal/model"
	"github.com/cleared-dev/pocketbank/internal/session"
)

func newTotalsCommand(a *app) *cobra.Command {
	var account, from, to string

	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Print the running balance per transaction date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(s *session.Session, out io.Writer) error {
				var (
					acc    *model.Account
					lo, hi date.Date
					err    error
				)
				if account != "" {
					if acc, err = s.Ledger.MustAccount(account); err != nil {
						return err
					}
				}
				if from != "" {
					if lo, err = date.Parse(from, a.today()); err != nil {
						return err
					}
				}
				if to != "" {
					if hi, err = date.Parse(to, a.today()); err != nil {
						return err
					}
				}
				points, err := s.Ledger.XTotals(acc, lo, hi)
				if err != nil {
					return err
				}
				cur := s.Ledger.Currency()
				for _, p := range points {
					fmt.Fprintf(out, "%s\t%s\n", p.Date, cur.Format(p.Total))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&account, "account", "a", "", "one account instead of the whole ledger")
	cmd.Flags().StringVar(&from, "from", "", "first date")
	cmd.Flags().StringVar(&to, "to", "", "last date")

	return cmd
}

func newCheckCommand(a *app) *cobra.Command {
	var fix bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify balances, transfers and recurring transactions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(s *session.Session, out io.Writer) error {
				if fix {
					fixed, err := audit.FixBalances(s.Ledger)
					if err != nil {
						return err
					}
					for _, acc := range fixed {
						fmt.Fprintf(out, "fixed balance of %s: %s\n", acc.Name(), acc.Currency().Format(acc.Balance()))
					}
				}
				errs, err := audit.Validate(s.Ledger)
				if err != nil {
					return err
				}
				for _, e := range errs {
					fmt.Fprintln(out, e.Error())
				}
				if len(errs) > 0 {
					return fmt.Errorf("%d problems found", len(errs))
				}
				fmt.Fprintln(out, "ledger is consistent")
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "rewrite cached balances that disagree with their transactions")

	return cmd
}

func newExportCommand(a *app) *cobra.Command {
	var account, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write transactions as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(s *session.Session, out io.Writer) error {
				var acc *model.Account
				if account != "" {
					var err error
					if acc, err = s.Ledger.MustAccount(account); err != nil {
						return err
					}
				}
				w := out
				if output != "" && output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("creating export file: %w", err)
					}
					defer f.Close()
					w = f
				}
				_, err := csvio.Export(w, s.Ledger, acc, csvio.Options{
					Delimiter: s.Config.Delimiter(),
					Logger:    s.Log,
				})
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&account, "account", "a", "", "one account instead of the whole ledger")
	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default: stdout)")

	return cmd
}

func newImportCommand(a *app) *cobra.Command {
	var account, format string
	var create bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Add transactions from a CSV file",
		Long: "Add transactions from a CSV file with the columns date, account, amount, " +
			"description and transfer. Nothing is added unless every row is valid.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := csvio.DefaultRegistry()
			layout := registry.Get(format)
			if layout == nil {
				return fmt.Errorf("unknown format %q (want one of %s)", format, strings.Join(registry.Names(), ", "))
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening import file: %w", err)
			}
			defer f.Close()

			return a.run(cmd, func(s *session.Session, out io.Writer) error {
				opts := csvio.Options{
					Delimiter:      s.Config.Delimiter(),
					Logger:         s.Log,
					Format:         layout,
					CreateAccounts: create,
					Today:          a.today(),
				}
				if account != "" {
					if opts.Account, err = s.Ledger.MustAccount(account); err != nil {
						return err
					}
				}
				res, err := csvio.Import(f, s.Ledger, opts)
				if err != nil {
					return err
				}
				for _, name := range res.Created {
					fmt.Fprintf(out, "created account %s\n", name)
				}
				fmt.Fprintf(out, "imported %d transactions\n", res.Imported)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&account, "account", "a", "", "account for rows without one")
	cmd.Flags().BoolVar(&create, "create-accounts", false, "create accounts named in the file")
	cmd.Flags().StringVar(&format, "format", "pocketbank", "file layout: pocketbank or chase")

	return cmd
}
