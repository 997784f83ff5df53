package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/pocketbank/internal/money"
	"github.com/cleared-dev/pocketbank/internal/session"
)

func newAccountCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "account",
		Aliases: []string{"accounts"},
		Short:   "Manage accounts",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <name>",
			Short: "Create an account",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(s *session.Session, out io.Writer) error {
					acc, err := s.Ledger.CreateAccount(args[0])
					if err != nil {
						return err
					}
					s.Ledger.SetLastAccount(acc)
					fmt.Fprintf(out, "created account %s\n", acc.Name())
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List accounts with their balances",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, listAccounts)
			},
		},
		&cobra.Command{
			Use:   "rename <old> <new>",
			Short: "Rename an account",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(s *session.Session, out io.Writer) error {
					acc, err := s.Ledger.MustAccount(args[0])
					if err != nil {
						return err
					}
					return acc.SetName(args[1])
				})
			},
		},
		&cobra.Command{
			Use:   "remove <name>",
			Short: "Delete an account with its transactions",
			Long: "Delete an account with its transactions. Transfers to other accounts " +
				"stay in those accounts as plain transactions.",
			Args: cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(s *session.Session, out io.Writer) error {
					return s.Ledger.RemoveAccount(args[0])
				})
			},
		},
		&cobra.Command{
			Use:   "use <name>",
			Short: "Select the account used when --account is omitted",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(s *session.Session, out io.Writer) error {
					_, err := s.Account(args[0])
					return err
				})
			},
		},
	)
	return cmd
}

func listAccounts(s *session.Session, out io.Writer) error {
	l := s.Ledger
	current := l.LastAccount()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, acc := range l.Accounts() {
		mark := " "
		if acc == current {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %s\t%s\n", mark, acc.Name(), acc.Currency().Format(acc.Balance()))
	}
	fmt.Fprintf(w, "  total\t%s\n", l.Currency().Format(l.Balance()))
	return w.Flush()
}

func newCurrencyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "currency [code]",
		Short: "Show or change the ledger currency",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(s *session.Session, out io.Writer) error {
				if len(args) == 0 {
					fmt.Fprintln(out, s.Ledger.Currency().Code())
					return nil
				}
				cur, err := money.Lookup(args[0])
				if err != nil {
					return err
				}
				return s.Ledger.SetCurrency(cur)
			})
		},
	}
}
