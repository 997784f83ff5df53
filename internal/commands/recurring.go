package commands

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/pocketbank/internal/date"
	"github.com/cleared-dev/pocketbank/internal/model"
	"github.com/cleared-dev/pocketbank/internal/money"
	"github.com/cleared-dev/pocketbank/internal/recurrence"
	"github.com/cleared-dev/pocketbank/internal/session"
)

var weekdays = map[string]time.Weekday{
	"mon": time.Monday, "tue": time.Tuesday, "wed": time.Wednesday, "thu": time.Thursday,
	"fri": time.Friday, "sat": time.Saturday, "sun": time.Sunday,
}

// parseWeekdays reads a list such as "mon,thu".
func parseWeekdays(s string) (recurrence.WeekMask, error) {
	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		key := strings.ToLower(strings.TrimSpace(part))
		if len(key) > 3 {
			key = key[:3]
		}
		d, ok := weekdays[key]
		if !ok {
			return recurrence.WeekMask{}, fmt.Errorf("unknown weekday %q", part)
		}
		days = append(days, d)
	}
	return recurrence.MaskOf(days...), nil
}

func newRecurringCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recurring",
		Short: "Manage recurring transactions",
	}
	cmd.AddCommand(
		newRecurringAddCommand(a),
		&cobra.Command{
			Use:   "list",
			Short: "List recurring transactions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(s *session.Session, out io.Writer) error {
					w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
					for _, rt := range s.Ledger.RecurringTransactions() {
						fmt.Fprintf(w, "%s\n", describeRecurring(rt))
					}
					return w.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "due",
			Short: "Show the dates recurring transactions would add today",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(s *session.Session, out io.Writer) error {
					today := a.today()
					for _, rt := range s.Ledger.RecurringTransactions() {
						for _, d := range rt.DueDates(today) {
							fmt.Fprintf(out, "#%d %s %q\n", rt.ID(), d, rt.Description())
						}
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "perform",
			Short: "Add every due recurring transaction",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.run(cmd, func(s *session.Session, out io.Writer) error {
					ts, err := s.Ledger.PerformRecurring(a.today())
					if err != nil {
						return err
					}
					for _, t := range ts {
						fmt.Fprintf(out, "performed %s\n", describe(t))
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "remove <id>",
			Short: "Delete a recurring transaction, keeping what it already added",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := parseID(args[0])
				if err != nil {
					return err
				}
				return a.run(cmd, func(s *session.Session, out io.Writer) error {
					rt := s.Ledger.RecurringByID(id)
					if rt == nil {
						return fmt.Errorf("no recurring transaction %d", id)
					}
					return rt.Parent().RemoveRecurringTransaction(rt)
				})
			},
		},
	)
	return cmd
}

func newRecurringAddCommand(a *app) *cobra.Command {
	var (
		account, from string
		start, end    string
		unit, on      string
		every         int
	)

	cmd := &cobra.Command{
		Use:   "add <amount> <description>...",
		Short: "Create a recurring transaction",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := money.ParseAmount(args[0])
			if err != nil {
				return err
			}
			u, err := recurrence.ParseUnit(unit)
			if err != nil {
				return err
			}
			rule := recurrence.Rule{Unit: u, Every: every}
			if on != "" {
				if rule.On, err = parseWeekdays(on); err != nil {
					return err
				}
			}
			return a.run(cmd, func(s *session.Session, out io.Writer) error {
				acc, err := s.Account(account)
				if err != nil {
					return err
				}
				p := model.RecurringParams{
					Amount:      amount,
					Description: strings.Join(args[1:], " "),
					Rule:        rule,
				}
				if p.Start, err = a.parseDate(start); err != nil {
					return err
				}
				if end != "" {
					if p.End, err = date.Parse(end, a.today()); err != nil {
						return err
					}
				}
				if from != "" {
					if p.Source, err = s.Ledger.MustAccount(from); err != nil {
						return err
					}
				}
				rt, err := acc.AddRecurringTransaction(p)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "created %s\n", describeRecurring(rt))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&account, "account", "a", "", "account (default: the account in use)")
	cmd.Flags().StringVar(&from, "from", "", "source account, making each occurrence a transfer")
	cmd.Flags().StringVar(&start, "start", "", "first date (default: today)")
	cmd.Flags().StringVar(&end, "end", "", "last possible date")
	cmd.Flags().StringVar(&unit, "unit", "monthly", "daily, weekly, monthly or yearly")
	cmd.Flags().IntVar(&every, "every", 1, "repeat every n units")
	cmd.Flags().StringVar(&on, "on", "", "weekdays of a weekly rule, e.g. mon,thu")

	return cmd
}

func describeRecurring(rt *model.RecurringTransaction) string {
	acc := rt.Parent()
	s := fmt.Sprintf("#%d\t%s\t%s\t%q\t%s from %s", rt.ID(), acc.Name(),
		acc.Currency().Format(rt.Amount()), rt.Description(), rt.Rule(), rt.Start())
	if !rt.End().IsZero() {
		s += " until " + rt.End().String()
	}
	if src := rt.Source(); src != nil {
		s += "\t<- " + src.Name()
	}
	if rt.Finished() {
		s += "\tfinished"
	} else {
		s += "\tnext " + rt.Next().String()
	}
	return s
}
