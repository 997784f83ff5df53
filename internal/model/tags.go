package model

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

const tagPrefix = "#"

// parseTags returns the distinct #tags of s in order of appearance.
func parseTags(s string) []string {
	var out []string
	for _, tok := range strings.Fields(s) {
		name, ok := strings.CutPrefix(tok, tagPrefix)
		if !ok || name == "" || slices.Contains(out, name) {
			continue
		}
		out = append(out, name)
	}
	return out
}

func hasTag(s, name string) bool {
	return slices.Contains(strings.Fields(s), tagPrefix+name)
}

func addTag(s, name string) string {
	s = strings.TrimRight(s, " \t")
	if s == "" {
		return tagPrefix + name
	}
	return s + " " + tagPrefix + name
}

// removeTag cuts every "#name" token from s together with the whitespace
// before it. Other spacing is kept.
func removeTag(s, name string) string {
	type word struct{ space, text string }
	var words []word
	for i := 0; i < len(s); {
		j := i
		for j < len(s) && isSpace(s[j]) {
			j++
		}
		k := j
		for k < len(s) && !isSpace(s[k]) {
			k++
		}
		words = append(words, word{s[i:j], s[j:k]})
		i = k
	}

	var b strings.Builder
	kept := 0
	for _, w := range words {
		if w.text == tagPrefix+name {
			continue
		}
		if kept == 0 {
			// the first kept word takes the original leading space
			w.space = words[0].space
		}
		b.WriteString(w.space)
		b.WriteString(w.text)
		kept++
	}
	return b.String()
}

func isSpace(c byte) bool { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }

func tagName(name string) (string, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), tagPrefix)
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return "", fmt.Errorf("invalid tag %q", name)
	}
	return name, nil
}

func (l *Ledger) tag(desc string) {
	for _, name := range parseTags(desc) {
		l.tags[name]++
	}
}

func (l *Ledger) untag(desc string) {
	for _, name := range parseTags(desc) {
		if l.tags[name] <= 1 {
			delete(l.tags, name)
			continue
		}
		l.tags[name]--
	}
}

// Tags returns every tag in use, sorted, loading all accounts first.
func (l *Ledger) Tags() ([]string, error) {
	if err := l.LoadAll(); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(l.tags))
	for name := range l.tags {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// TagCount is the number of transactions carrying name.
func (l *Ledger) TagCount(name string) (int, error) {
	if err := l.LoadAll(); err != nil {
		return 0, err
	}
	return l.tags[strings.TrimPrefix(name, tagPrefix)], nil
}

// Tagged returns the transactions carrying name across all accounts.
func (l *Ledger) Tagged(name string) ([]*Transaction, error) {
	name = strings.TrimPrefix(name, tagPrefix)
	all, err := l.Transactions()
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(t *Transaction) bool { return !t.HasTag(name) }), nil
}
