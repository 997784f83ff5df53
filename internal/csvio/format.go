package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"github.com/cleared-dev/pocketbank/internal/date"
)

// Format converts a CSV layout into Rows.
type Format interface {
	Parse(r io.Reader, delimiter rune) ([]*Row, error)
	Name() string
}

// Registry holds named formats.
type Registry struct {
	formats map[string]Format
}

// NewRegistry creates an empty format registry.
func NewRegistry() *Registry {
	return &Registry{formats: make(map[string]Format)}
}

// Register adds a format. Panics on duplicate names.
func (r *Registry) Register(f Format) {
	key := strings.ToLower(f.Name())
	if _, ok := r.formats[key]; ok {
		panic("duplicate CSV format: " + key)
	}
	r.formats[key] = f
}

// Get returns the format called name, or nil.
func (r *Registry) Get(name string) Format {
	return r.formats[strings.ToLower(name)]
}

// Names lists the registered formats, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.formats))
	for name := range r.formats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with all built-in formats.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(Native{})
	r.Register(Chase{})
	return r
}

func reader(r io.Reader, delimiter rune) *csv.Reader {
	cr := csv.NewReader(r)
	if delimiter != 0 {
		cr.Comma = delimiter
	}
	return cr
}

// Native is the layout written by Export.
type Native struct{}

func (Native) Name() string { return "pocketbank" }

func (Native) Parse(r io.Reader, delimiter rune) ([]*Row, error) {
	var rows []*Row
	if err := gocsv.UnmarshalCSV(reader(r, delimiter), &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading CSV: %w", err)
	}
	return rows, nil
}

// Chase reads the checking account export of Chase bank. Rows carry no
// account, so the import needs a default account.
type Chase struct{}

const chaseDateFormat = "01/02/2006"

type chaseRow struct {
	Details     string `csv:"Details"`
	PostingDate string `csv:"Posting Date"`
	Description string `csv:"Description"`
	Amount      string `csv:"Amount"`
	Type        string `csv:"Type"`
}

func (Chase) Name() string { return "chase" }

func (Chase) Parse(r io.Reader, delimiter rune) ([]*Row, error) {
	var recs []*chaseRow
	if err := gocsv.UnmarshalCSV(reader(r, delimiter), &recs); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading chase CSV: %w", err)
	}

	rows := make([]*Row, 0, len(recs))
	for i, rec := range recs {
		t, err := time.Parse(chaseDateFormat, rec.PostingDate)
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing date %q: %w", i+2, rec.PostingDate, err)
		}
		rows = append(rows, &Row{
			Date:        date.FromTime(t).String(),
			Amount:      rec.Amount,
			Description: rec.Description,
		})
	}
	return rows, nil
}
