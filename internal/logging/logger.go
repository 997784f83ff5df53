// Package logging decouples the ledger packages from the logging backend.
package logging

// Logger is the structured logger used throughout pocketbank.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// WithError returns a logger that attaches err to every entry.
	WithError(err error) Logger
	// WithField returns a logger that attaches key=value to every entry.
	WithField(key string, value any) Logger
	// WithFields returns a logger that attaches fields to every entry.
	WithFields(fields ...Field) Logger
}

// Field is a key/value pair attached to a log entry.
type Field struct {
	Key   string
	Value any
}

// F is shorthand for Field{Key: key, Value: value}.
func F(key string, value any) Field { return Field{Key: key, Value: value} }

// Standard field names.
const (
	FieldPath        = "path"
	FieldBackup      = "backup"
	FieldVersion     = "version"
	FieldFromVersion = "from_version"
	FieldToVersion   = "to_version"
	FieldAccount     = "account"
	FieldTransaction = "transaction_id"
	FieldRecurring   = "recurring_id"
	FieldCount       = "count"
	FieldDepth       = "batch_depth"
	FieldState       = "state"
)

type nop struct{}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nop{} }

func (nop) Debug(string, ...Field)         {}
func (nop) Info(string, ...Field)          {}
func (nop) Warn(string, ...Field)          {}
func (nop) Error(string, ...Field)         {}
func (n nop) WithError(error) Logger       { return n }
func (n nop) WithField(string, any) Logger { return n }
func (n nop) WithFields(...Field) Logger   { return n }
