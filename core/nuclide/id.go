// Package nuclide holds the in-memory model of nuclide decay data: identities,
// measured quantities, decay modes, emission lines and the read-only catalog
// they are served from.
package nuclide

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// ErrInvalidID indicates a nuclide identifier could not be parsed.
var ErrInvalidID = errors.New("invalid nuclide identifier")

// ID identifies a nuclide by element symbol, mass number and isomeric state.
// It is comparable and used as the stable key for every graph and map in
// the engine.
type ID struct {
	Symbol string
	Mass   int
	Isomer bool
}

// MustParseID is like ParseID but panics on error. Intended for tests and
// package-level fixtures.
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// ParseID parses identifiers like "Eu-155", "Tc-99m", "eu155" or "Am-241".
func ParseID(s string) (ID, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return ID{}, fmt.Errorf("%w: empty", ErrInvalidID)
	}

	symbol, rest := splitSymbol(raw)
	if symbol == "" || len(symbol) > 3 {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}

	rest = strings.TrimPrefix(rest, "-")
	isomer := false
	if strings.HasSuffix(rest, "m") || strings.HasSuffix(rest, "M") {
		isomer = true
		rest = rest[:len(rest)-1]
	}

	mass, err := strconv.Atoi(rest)
	if err != nil || mass <= 0 {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}

	return ID{Symbol: normalizeSymbol(symbol), Mass: mass, Isomer: isomer}, nil
}

func splitSymbol(s string) (string, string) {
	i := 0
	for i < len(s) && unicode.IsLetter(rune(s[i])) {
		i++
	}
	return s[:i], s[i:]
}

func normalizeSymbol(s string) string {
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// String returns the canonical "Sym-A[m]" form.
func (id ID) String() string {
	if id.IsZero() {
		return ""
	}
	if id.Isomer {
		return fmt.Sprintf("%s-%dm", id.Symbol, id.Mass)
	}
	return fmt.Sprintf("%s-%d", id.Symbol, id.Mass)
}

// IsZero reports whether id is the zero value.
func (id ID) IsZero() bool {
	return id.Symbol == "" && id.Mass == 0
}

// Compare orders identifiers by symbol, mass, then ground state before isomer.
func Compare(a, b ID) int {
	if c := strings.Compare(a.Symbol, b.Symbol); c != 0 {
		return c
	}
	if a.Mass != b.Mass {
		if a.Mass < b.Mass {
			return -1
		}
		return 1
	}
	switch {
	case a.Isomer == b.Isomer:
		return 0
	case b.Isomer:
		return -1
	default:
		return 1
	}
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	parsed, err := ParseID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
