package shard

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	disperrors "github.com/maxkimambo/shardrun/internal/errors"
)

// SpecKind tags which addressing scheme a subshard Spec uses
type SpecKind int

const (
	// SpecNone runs the whole shard
	SpecNone SpecKind = iota
	// SpecNamed selects a label the shard's runner understands
	SpecNamed
	// SpecIndexOfTotal selects block Index of Total (both 1-based)
	SpecIndexOfTotal
)

// String returns a string representation of the SpecKind
func (k SpecKind) String() string {
	switch k {
	case SpecNone:
		return "none"
	case SpecNamed:
		return "named"
	case SpecIndexOfTotal:
		return "index-of-total"
	default:
		return "unknown"
	}
}

// Spec is a parsed subshard selector.
type Spec struct {
	Kind  SpecKind
	Label string
	Index int
	Total int
}

var indexOfTotalPattern = regexp.MustCompile(`^(\d+)_(\d+)$`)

// None returns the spec that selects every item.
func None() Spec { return Spec{Kind: SpecNone} }

// Named returns a spec for a shard-specific label.
func Named(label string) Spec { return Spec{Kind: SpecNamed, Label: label} }

// IndexOfTotal returns a spec for block index of total, validating the range.
func IndexOfTotal(index, total int) (Spec, error) {
	raw := fmt.Sprintf("%d_%d", index, total)
	if total <= 0 {
		return Spec{}, disperrors.NewInvalidSubshardSpecError(raw, "total must be positive")
	}
	if index < 1 || index > total {
		return Spec{}, disperrors.NewInvalidSubshardSpecError(raw, fmt.Sprintf("index must be between 1 and %d", total))
	}
	return Spec{Kind: SpecIndexOfTotal, Index: index, Total: total}, nil
}

// ParseSpec parses a subshard selector. An empty string selects everything.
// Strings starting with a digit or '-' are index-of-total attempts and must
// have the form i_n; anything else is a named label.
func ParseSpec(raw string) (Spec, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return None(), nil
	}

	if c := raw[0]; c != '-' && (c < '0' || c > '9') {
		return Named(raw), nil
	}

	m := indexOfTotalPattern.FindStringSubmatch(raw)
	if m == nil {
		return Spec{}, disperrors.NewInvalidSubshardSpecError(raw, "expected the form i_n")
	}
	index, errI := strconv.Atoi(m[1])
	total, errN := strconv.Atoi(m[2])
	if errI != nil || errN != nil {
		return Spec{}, disperrors.NewInvalidSubshardSpecError(raw, "number out of range")
	}
	return IndexOfTotal(index, total)
}

// String renders the spec in the form ParseSpec accepts.
func (s Spec) String() string {
	switch s.Kind {
	case SpecNamed:
		return s.Label
	case SpecIndexOfTotal:
		return fmt.Sprintf("%d_%d", s.Index, s.Total)
	default:
		return ""
	}
}
