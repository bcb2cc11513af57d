package normalizer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Entry is one unit weight: grams for a single piece of any food whose name contains Key
type Entry struct {
	Key   string  `json:"key" yaml:"key"`
	Grams float64 `json:"grams" yaml:"grams"`
}

// Match is the outcome of a table lookup
type Match struct {
	Key     string  `json:"key,omitempty"`
	Grams   float64 `json:"grams"`
	Matched bool    `json:"matched"`
}

// Table is an ordered unit weight table. Order is significant: the first key
// contained in a food name wins, so a key must be declared before any shorter
// key it contains ("pineapple" before "apple").
type Table struct {
	entries []Entry
}

// NewTable folds keys and keeps the given order. Empty keys and non-positive
// weights are rejected, and so are duplicate keys after folding.
func NewTable(entries []Entry) (*Table, error) {
	seen := make(map[string]struct{}, len(entries))
	folded := make([]Entry, 0, len(entries))
	for i, e := range entries {
		key := Fold(e.Key)
		if key == "" {
			return nil, fmt.Errorf("entry %d: empty key", i)
		}
		if e.Grams <= 0 || math.IsNaN(e.Grams) || math.IsInf(e.Grams, 0) {
			return nil, fmt.Errorf("entry %q: grams must be a positive number, got %v", e.Key, e.Grams)
		}
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("entry %q: duplicate key", e.Key)
		}
		seen[key] = struct{}{}
		folded = append(folded, Entry{Key: key, Grams: e.Grams})
	}
	return &Table{entries: folded}, nil
}

// MustNewTable is NewTable for static tables; it panics on invalid input
func MustNewTable(entries []Entry) *Table {
	t, err := NewTable(entries)
	if err != nil {
		panic(err)
	}
	return t
}

// Entries returns a copy of the folded entries in lookup order
func (t *Table) Entries() []Entry {
	if t == nil {
		return nil
	}
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of entries
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.entries)
}

// Lookup resolves the unit weight for foodName, reporting which key matched
func (t *Table) Lookup(foodName string) Match {
	name := Fold(foodName)
	if t != nil {
		for _, e := range t.entries {
			if strings.Contains(name, e.Key) {
				return Match{Key: e.Key, Grams: e.Grams, Matched: true}
			}
		}
	}
	return Match{Grams: DefaultUnitWeight}
}

// Closest returns the key with the smallest edit distance to foodName, if that
// distance is at most half the key length. Used only for warning hints.
func (t *Table) Closest(foodName string) (string, bool) {
	name := Fold(foodName)
	if t == nil || name == "" {
		return "", false
	}

	best, bestDist := "", math.MaxInt
	for _, e := range t.entries {
		if d := levenshtein.ComputeDistance(name, e.Key); d < bestDist {
			best, bestDist = e.Key, d
		}
	}
	if best == "" || bestDist > len([]rune(best))/2 {
		return "", false
	}
	return best, true
}

// Fold normalizes a food name for matching: NFC composition, lower case, trimmed.
// Composition matters for scripts that can be typed precomposed or decomposed.
func Fold(s string) string {
	return strings.TrimSpace(strings.ToLower(norm.NFC.String(s)))
}

// ErrEmptyTable is returned when a table file contains no entries
var ErrEmptyTable = errors.New("unit weight table is empty")

// LoadTable reads a YAML mapping of key -> grams. Document order becomes lookup order.
//
//	pineapple: 900
//	apple: 180
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read unit weight table: %w", err)
	}
	return ParseTable(bytes.NewReader(data))
}

// ParseTable parses the YAML mapping format accepted by LoadTable
func ParseTable(r io.Reader) (*Table, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyTable
		}
		return nil, fmt.Errorf("failed to parse unit weight table: %w", err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("unit weight table must be a mapping of name to grams (line %d)", root.Line)
	}

	entries := make([]Entry, 0, len(root.Content)/2)
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i], root.Content[i+1]
		grams, err := strconv.ParseFloat(v.Value, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: weight for %q is not a number: %w", v.Line, k.Value, err)
		}
		entries = append(entries, Entry{Key: k.Value, Grams: grams})
	}
	if len(entries) == 0 {
		return nil, ErrEmptyTable
	}

	return NewTable(entries)
}
