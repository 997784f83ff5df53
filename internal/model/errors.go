package model

import "fmt"

// InvalidAccountError reports an account name that does not exist.
type InvalidAccountError struct {
	Name string
}

func (e *InvalidAccountError) Error() string {
	return fmt.Sprintf("invalid account %q", e.Name)
}

// AccountExistsError reports a name already used by another account.
type AccountExistsError struct {
	Name string
}

func (e *AccountExistsError) Error() string {
	return fmt.Sprintf("account %q already exists", e.Name)
}

// BlankAccountNameError reports an empty or whitespace-only account name.
type BlankAccountNameError struct{}

func (e *BlankAccountNameError) Error() string { return "account name is blank" }

// InvalidTransactionError reports a transaction that is not in the account
// it was expected to be in.
type InvalidTransactionError struct {
	TransactionID int64
	Account       string
}

func (e *InvalidTransactionError) Error() string {
	return fmt.Sprintf("transaction %d is not in account %q", e.TransactionID, e.Account)
}

// MissingLinkError reports a persisted link whose counterpart does not exist.
type MissingLinkError struct {
	TransactionID int64
	LinkID        int64
}

func (e *MissingLinkError) Error() string {
	return fmt.Sprintf("transaction %d links to missing transaction %d", e.TransactionID, e.LinkID)
}
