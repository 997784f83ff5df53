package store

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/pocketbank/internal/date"
	"github.com/cleared-dev/pocketbank/internal/logging"
	"github.com/cleared-dev/pocketbank/internal/model"
	"github.com/cleared-dev/pocketbank/internal/money"
	"github.com/cleared-dev/pocketbank/internal/recurrence"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(y int, m time.Month, d int) date.Date { return date.New(y, m, d) }

func dbPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "ledger.db")
}

func open(t *testing.T, path string, autoSave bool) (*Store, *model.Ledger, *logging.MockLogger) {
	t.Helper()
	log := logging.NewMockLogger()
	s, err := Open(path, Options{AutoSave: autoSave, Logger: log})
	require.NoError(t, err)
	l, err := s.Load(money.DefaultCurrency)
	require.NoError(t, err)
	return s, l, log
}

// raw opens a second handle on a closed store's file.
func raw(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func commits(log *logging.MockLogger) int {
	n := 0
	for _, e := range log.Entries() {
		if e.Message == "committed changes" {
			n++
		}
	}
	return n
}

func TestOpen_NewFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	s, l, log := open(t, path, true)
	defer s.Close()

	assert.Equal(t, Ready, s.State())
	assert.Equal(t, CurrentVersion, s.Version())
	assert.Empty(t, l.Accounts())
	assert.True(t, log.HasMessage("created database"))
	assert.NoFileExists(t, BackupPath(path, 1))

	require.NoError(t, s.Close())
	assert.Equal(t, Closed, s.State())
	require.NoError(t, s.Close())
}

func TestRoundTrip(t *testing.T) {
	path := dbPath(t)
	s, l, _ := open(t, path, true)

	checking, err := l.CreateAccount("Checking")
	require.NoError(t, err)
	savings, err := l.CreateAccount("Savings")
	require.NoError(t, err)
	_, err = checking.AddTransaction(dec("1000.10"), "salary #work", day(2024, time.January, 31))
	require.NoError(t, err)
	_, _, err = savings.AddTransfer(dec("250"), "save", day(2024, time.February, 1), checking)
	require.NoError(t, err)
	rt, err := checking.AddRecurringTransaction(model.RecurringParams{
		Amount: dec("-20"), Description: "gym", Start: day(2024, time.January, 5),
		Rule: recurrence.WeeklyOn(2, time.Friday, time.Saturday), End: day(2024, time.December, 31),
	})
	require.NoError(t, err)
	_, err = rt.PerformTransactions(day(2024, time.January, 14))
	require.NoError(t, err)
	assert.False(t, s.Dirty())
	require.NoError(t, s.Close())

	s2, l2, _ := open(t, path, true)
	defer s2.Close()

	// load the account holding the second leg first
	sav := l2.Account("Savings")
	require.NotNil(t, sav)
	ts, err := sav.Transactions()
	require.NoError(t, err)
	require.Len(t, ts, 1)
	leg := ts[0]
	require.NotNil(t, leg.Link())
	assert.Equal(t, "Checking", leg.Link().Parent().Name())
	assert.True(t, leg.Link().Amount().Equal(dec("-250")))

	chk := l2.Account("Checking")
	assert.True(t, chk.Balance().Equal(dec("710.10")))
	assert.True(t, sav.Balance().Equal(dec("250")))

	rts := chk.Recurring()
	require.Len(t, rts, 1)
	assert.Equal(t, recurrence.MaskOf(time.Friday, time.Saturday), rts[0].Rule().On)
	assert.Equal(t, 2, rts[0].Rule().Every)
	assert.Equal(t, day(2024, time.January, 14), rts[0].LastTransacted())
	assert.Equal(t, day(2024, time.December, 31), rts[0].End())

	chkTs, err := chk.Transactions()
	require.NoError(t, err)
	require.Len(t, chkTs, 4)
	var generated int
	for _, tx := range chkTs {
		if tx.RecurringParent() == rts[0] {
			generated++
		}
	}
	assert.Equal(t, 2, generated)

	count, err := l2.TagCount("work")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestUpdatesPersist(t *testing.T) {
	path := dbPath(t)
	s, l, _ := open(t, path, true)
	a, err := l.CreateAccount("A")
	require.NoError(t, err)
	b, err := l.CreateAccount("B")
	require.NoError(t, err)
	ta, _, err := a.AddTransfer(dec("5"), "x", day(2024, time.March, 1), b)
	require.NoError(t, err)
	require.NoError(t, ta.SetAmount(dec("7")))
	require.NoError(t, ta.AddTag("moved"))
	require.NoError(t, ta.SetDate(day(2024, time.March, 2)))
	require.NoError(t, a.SetName("Alpha"))
	require.NoError(t, s.Close())

	s2, l2, _ := open(t, path, true)
	defer s2.Close()
	alpha := l2.Account("Alpha")
	require.NotNil(t, alpha)
	ts, err := alpha.Transactions()
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.True(t, ts[0].Amount().Equal(dec("7")))
	assert.Equal(t, "x #moved", ts[0].Description())
	assert.Equal(t, day(2024, time.March, 2), ts[0].Date())
	assert.True(t, ts[0].Link().Amount().Equal(dec("-7")))
	assert.True(t, l2.Account("B").Balance().Equal(dec("-7")))
}

func TestMoveAssignsNewID(t *testing.T) {
	path := dbPath(t)
	s, l, _ := open(t, path, true)
	a, err := l.CreateAccount("A")
	require.NoError(t, err)
	b, err := l.CreateAccount("B")
	require.NoError(t, err)
	c, err := l.CreateAccount("C")
	require.NoError(t, err)
	ta, _, err := a.AddTransfer(dec("3"), "x", day(2024, time.March, 1), b)
	require.NoError(t, err)

	require.NoError(t, a.MoveTransactions(c, ta))
	assert.NotZero(t, ta.ID())
	require.NoError(t, s.Close())

	s2, l2, _ := open(t, path, true)
	defer s2.Close()
	ts, err := l2.Account("C").Transactions()
	require.NoError(t, err)
	require.Len(t, ts, 1)
	require.NotNil(t, ts[0].Link())
	assert.Equal(t, "B", ts[0].Link().Parent().Name())
	empty, err := l2.Account("A").Transactions()
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRemoveAccountPersists(t *testing.T) {
	path := dbPath(t)
	s, l, _ := open(t, path, true)
	a, err := l.CreateAccount("A")
	require.NoError(t, err)
	b, err := l.CreateAccount("B")
	require.NoError(t, err)
	_, _, err = a.AddTransfer(dec("3"), "x", day(2024, time.March, 1), b)
	require.NoError(t, err)
	require.NoError(t, l.RemoveAccount("B"))
	require.NoError(t, s.Close())

	s2, l2, _ := open(t, path, true)
	defer s2.Close()
	require.Len(t, l2.Accounts(), 1)
	ts, err := l2.Account("A").Transactions()
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Nil(t, ts[0].Link())
}

func TestManualSave_DiscardedOnClose(t *testing.T) {
	path := dbPath(t)
	s, l, log := open(t, path, false)
	_, err := l.CreateAccount("Checking")
	require.NoError(t, err)
	assert.True(t, s.Dirty())

	require.NoError(t, l.Exiting())
	assert.True(t, log.HasMessage("exiting with unsaved changes"))

	require.NoError(t, s.Close())
	assert.True(t, log.HasMessage("discarding unsaved changes"))

	s2, l2, _ := open(t, path, false)
	defer s2.Close()
	assert.Empty(t, l2.Accounts())
}

func TestManualSave_Save(t *testing.T) {
	path := dbPath(t)
	s, l, _ := open(t, path, false)
	_, err := l.CreateAccount("Checking")
	require.NoError(t, err)
	require.NoError(t, s.Save())
	assert.False(t, s.Dirty())
	require.NoError(t, s.Close())

	s2, l2, _ := open(t, path, false)
	defer s2.Close()
	assert.NotNil(t, l2.Account("Checking"))
}

func TestSetAutoSave_Flushes(t *testing.T) {
	path := dbPath(t)
	s, l, _ := open(t, path, false)
	_, err := l.CreateAccount("Checking")
	require.NoError(t, err)

	require.NoError(t, s.SetAutoSave(true))
	assert.False(t, s.Dirty())
	assert.True(t, s.AutoSave())
	require.NoError(t, s.Close())

	s2, l2, _ := open(t, path, true)
	defer s2.Close()
	assert.NotNil(t, l2.Account("Checking"))
}

func TestBatch_CommitsOnce(t *testing.T) {
	s, l, log := open(t, dbPath(t), true)
	defer s.Close()
	a, err := l.CreateAccount("A")
	require.NoError(t, err)
	b, err := l.CreateAccount("B")
	require.NoError(t, err)
	before := commits(log)

	_, _, err = a.AddTransfer(dec("1.02"), "x", day(2024, time.March, 1), b)
	require.NoError(t, err)
	assert.Equal(t, before+1, commits(log))

	before = commits(log)
	err = l.Batch(func() error {
		for i := 1; i <= 5; i++ {
			if _, err := a.AddTransaction(dec("1"), "x", day(2024, time.March, i)); err != nil {
				return err
			}
		}
		assert.True(t, s.Dirty())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, before+1, commits(log))
	assert.False(t, s.Dirty())
}

func TestMissingLink(t *testing.T) {
	path := dbPath(t)
	s, l, _ := open(t, path, true)
	a, err := l.CreateAccount("A")
	require.NoError(t, err)
	b, err := l.CreateAccount("B")
	require.NoError(t, err)
	ta, tb, err := a.AddTransfer(dec("3"), "x", day(2024, time.March, 1), b)
	require.NoError(t, err)
	legID, goneID := ta.ID(), tb.ID()
	require.NoError(t, s.Close())

	_, err = raw(t, path).Exec(`DELETE FROM transactions WHERE id = ?`, goneID)
	require.NoError(t, err)

	s2, l2, _ := open(t, path, true)
	defer s2.Close()
	_, err = l2.Account("A").Transactions()
	var missing *model.MissingLinkError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, legID, missing.TransactionID)
	assert.Equal(t, goneID, missing.LinkID)
}

func TestMissingRecurringParentIsDetached(t *testing.T) {
	path := dbPath(t)
	s, l, _ := open(t, path, true)
	a, err := l.CreateAccount("A")
	require.NoError(t, err)
	rt, err := a.AddRecurringTransaction(model.RecurringParams{
		Amount: dec("1"), Start: day(2024, time.January, 1), Rule: recurrence.DailyEvery(1),
	})
	require.NoError(t, err)
	_, err = rt.PerformTransactions(day(2024, time.January, 2))
	require.NoError(t, err)
	rtID := rt.ID()
	require.NoError(t, s.Close())

	_, err = raw(t, path).Exec(`DELETE FROM recurring_transactions WHERE id = ?`, rtID)
	require.NoError(t, err)

	s2, l2, log := open(t, path, true)
	defer s2.Close()
	ts, err := l2.Account("A").Transactions()
	require.NoError(t, err)
	require.Len(t, ts, 2)
	for _, tx := range ts {
		assert.Nil(t, tx.RecurringParent())
	}
	assert.Len(t, log.EntriesByLevel("WARN"), 2)
}

func TestRemoveRecurringPersists(t *testing.T) {
	path := dbPath(t)
	s, l, _ := open(t, path, true)
	a, err := l.CreateAccount("A")
	require.NoError(t, err)
	rt, err := a.AddRecurringTransaction(model.RecurringParams{
		Amount: dec("1"), Start: day(2024, time.January, 1), Rule: recurrence.MonthlyEvery(1),
	})
	require.NoError(t, err)
	_, err = rt.PerformTransactions(day(2024, time.February, 1))
	require.NoError(t, err)
	require.NoError(t, a.RemoveRecurringTransaction(rt))
	require.NoError(t, s.Close())

	var parents int
	require.NoError(t, raw(t, path).QueryRow(
		`SELECT COUNT(*) FROM transactions WHERE recurringParent IS NOT NULL`).Scan(&parents))
	assert.Zero(t, parents)

	s2, l2, _ := open(t, path, true)
	defer s2.Close()
	assert.Empty(t, l2.RecurringTransactions())
}

func TestLoad_BeforeReadyFails(t *testing.T) {
	s, _, _ := open(t, dbPath(t), true)
	require.NoError(t, s.Close())

	s.ledger = nil
	_, err := s.Load(money.DefaultCurrency)
	assert.Error(t, err)
}

func TestRemoveAccount_MovedRecurringChildSurvivesReload(t *testing.T) {
	path := dbPath(t)
	s, l, _ := open(t, path, true)
	a, err := l.CreateAccount("A")
	require.NoError(t, err)
	c, err := l.CreateAccount("C")
	require.NoError(t, err)
	rent, err := a.AddRecurringTransaction(model.RecurringParams{
		Amount: dec("-900"), Description: "rent", Start: day(2024, time.January, 1),
		Rule: recurrence.MonthlyEvery(1),
	})
	require.NoError(t, err)
	ts, err := rent.PerformTransactions(day(2024, time.January, 15))
	require.NoError(t, err)
	require.Len(t, ts, 1)
	require.NoError(t, a.MoveTransactions(c, ts[0]))
	require.NoError(t, l.RemoveAccount("A"))
	assert.Nil(t, ts[0].RecurringParent())

	// takes the freed row id of rent
	_, err = c.AddRecurringTransaction(model.RecurringParams{
		Amount: dec("-30"), Description: "gym", Start: day(2024, time.February, 1),
		Rule: recurrence.MonthlyEvery(1),
	})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	var parent sql.NullInt64
	require.NoError(t, raw(t, path).QueryRow(
		`SELECT recurringParent FROM transactions WHERE description = 'rent'`).Scan(&parent))
	assert.False(t, parent.Valid)

	s2, l2, _ := open(t, path, true)
	defer s2.Close()
	loaded, err := l2.Account("C").Transactions()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "rent", loaded[0].Description())
	assert.Nil(t, loaded[0].RecurringParent())
}
