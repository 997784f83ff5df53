package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/pocketbank/internal/date"
	"github.com/cleared-dev/pocketbank/internal/model"
	"github.com/cleared-dev/pocketbank/internal/money"
	"github.com/cleared-dev/pocketbank/internal/session"
)

func newTxnCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "txn",
		Aliases: []string{"transaction"},
		Short:   "Record and edit transactions",
	}
	cmd.AddCommand(
		newTxnAddCommand(a),
		newTxnEditCommand(a),
		newTxnListCommand(a),
		newTxnSearchCommand(a),
		&cobra.Command{
			Use:   "remove <id>...",
			Short: "Delete transactions; a transfer is deleted from both accounts",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(s *session.Session, out io.Writer) error {
					ts, err := findTransactions(s.Ledger, args)
					if err != nil {
						return err
					}
					return s.Ledger.Batch(func() error {
						for _, t := range ts {
							// the linked leg may have gone with an earlier id
							if t.Parent() == nil {
								continue
							}
							if err := t.Parent().RemoveTransactions(t); err != nil {
								return err
							}
						}
						return nil
					})
				})
			},
		},
		newTxnMoveCommand(a),
		newTxnTagCommand(a, "tag", "Add a #tag to transactions", (*model.Transaction).AddTag),
		newTxnTagCommand(a, "untag", "Remove a #tag from transactions", (*model.Transaction).RemoveTag),
		&cobra.Command{
			Use:   "tags",
			Short: "List tags with their use counts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(s *session.Session, out io.Writer) error {
					tags, err := s.Ledger.Tags()
					if err != nil {
						return err
					}
					for _, tag := range tags {
						n, err := s.Ledger.TagCount(tag)
						if err != nil {
							return err
						}
						fmt.Fprintf(out, "#%s\t%d\n", tag, n)
					}
					return nil
				})
			},
		},
	)
	return cmd
}

func newTxnAddCommand(a *app) *cobra.Command {
	var account, on, from string

	cmd := &cobra.Command{
		Use:   "add <amount> <description>...",
		Short: "Record a transaction, or a transfer with --from",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := money.ParseAmount(args[0])
			if err != nil {
				return err
			}
			desc := strings.Join(args[1:], " ")
			return a.run(cmd, func(s *session.Session, out io.Writer) error {
				acc, err := s.Account(account)
				if err != nil {
					return err
				}
				d, err := a.parseDate(on)
				if err != nil {
					return err
				}
				var t *model.Transaction
				if from != "" {
					src, err := s.Ledger.MustAccount(from)
					if err != nil {
						return err
					}
					t, _, err = acc.AddTransfer(amount, desc, d, src)
					if err != nil {
						return err
					}
				} else if t, err = acc.AddTransaction(amount, desc, d); err != nil {
					return err
				}
				fmt.Fprintf(out, "added %s\n", describe(t))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&account, "account", "a", "", "account (default: the account in use)")
	cmd.Flags().StringVarP(&on, "date", "d", "", "date as YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&from, "from", "", "source account of a transfer")

	return cmd
}

// parseDate reads a user supplied date, today when s is empty.
func (a *app) parseDate(s string) (date.Date, error) {
	if s == "" {
		return a.today(), nil
	}
	return date.Parse(s, a.today())
}

func newTxnEditCommand(a *app) *cobra.Command {
	var amount, desc, on string

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a transaction; a transfer's other leg follows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if amount == "" && desc == "" && on == "" {
				return errors.New("nothing to change: give --amount, --description or --date")
			}
			return a.run(cmd, func(s *session.Session, out io.Writer) error {
				ts, err := findTransactions(s.Ledger, args)
				if err != nil {
					return err
				}
				t := ts[0]
				return s.Ledger.Batch(func() error {
					if amount != "" {
						v, err := money.ParseAmount(amount)
						if err != nil {
							return err
						}
						if err := t.SetAmount(v); err != nil {
							return err
						}
					}
					if desc != "" {
						if err := t.SetDescription(desc); err != nil {
							return err
						}
					}
					if on != "" {
						d, err := a.parseDate(on)
						if err != nil {
							return err
						}
						if err := t.SetDate(d); err != nil {
							return err
						}
					}
					fmt.Fprintf(out, "updated %s\n", describe(t))
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "new amount")
	cmd.Flags().StringVar(&desc, "description", "", "new description")
	cmd.Flags().StringVar(&on, "date", "", "new date")

	return cmd
}

func newTxnListCommand(a *app) *cobra.Command {
	var account, tag string
	var all bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the transactions of an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(s *session.Session, out io.Writer) error {
				var (
					ts  []*model.Transaction
					err error
				)
				switch {
				case tag != "":
					ts, err = s.Ledger.Tagged(tag)
				case all:
					ts, err = s.Ledger.Transactions()
				default:
					var acc *model.Account
					if acc, err = s.Account(account); err == nil {
						ts, err = acc.Transactions()
					}
				}
				if err != nil {
					return err
				}
				model.SortByDate(ts)
				for _, t := range ts {
					fmt.Fprintln(out, describe(t))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&account, "account", "a", "", "account (default: the account in use)")
	cmd.Flags().StringVar(&tag, "tag", "", "only transactions tagged #tag, in any account")
	cmd.Flags().BoolVar(&all, "all", false, "list every account")

	return cmd
}

func newTxnSearchCommand(a *app) *cobra.Command {
	var account, field string

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Find transactions by description, amount or date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := model.ParseSearchField(field)
			if err != nil {
				return err
			}
			return a.run(cmd, func(s *session.Session, out io.Writer) error {
				var acc *model.Account
				if account != "" {
					if acc, err = s.Ledger.MustAccount(account); err != nil {
						return err
					}
				}
				ts, err := s.Ledger.Search(args[0], acc, f)
				if err != nil {
					return err
				}
				for _, t := range ts {
					fmt.Fprintln(out, describe(t))
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&account, "account", "a", "", "limit to one account")
	cmd.Flags().StringVar(&field, "field", "all", "all, description, amount or date")

	return cmd
}

func newTxnMoveCommand(a *app) *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "move <id>... --to <account>",
		Short: "Move transactions to another account",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(s *session.Session, out io.Writer) error {
				dest, err := s.Ledger.MustAccount(to)
				if err != nil {
					return err
				}
				ts, err := findTransactions(s.Ledger, args)
				if err != nil {
					return err
				}
				bySource := map[*model.Account][]*model.Transaction{}
				var order []*model.Account
				for _, t := range ts {
					if _, ok := bySource[t.Parent()]; !ok {
						order = append(order, t.Parent())
					}
					bySource[t.Parent()] = append(bySource[t.Parent()], t)
				}
				return s.Ledger.Batch(func() error {
					for _, src := range order {
						if err := src.MoveTransactions(dest, bySource[src]...); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}

	cmd.Flags().StringVar(&to, "to", "", "destination account")
	_ = cmd.MarkFlagRequired("to")

	return cmd
}

func newTxnTagCommand(a *app, use, short string, apply func(*model.Transaction, string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <tag> <id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, func(s *session.Session, out io.Writer) error {
				ts, err := findTransactions(s.Ledger, args[1:])
				if err != nil {
					return err
				}
				return s.Ledger.Batch(func() error {
					for _, t := range ts {
						if err := apply(t, args[0]); err != nil {
							return err
						}
					}
					return nil
				})
			})
		},
	}
}
