// Package risk validates terminal inputs against exchange limits and the
// direction rules of a position side.
package risk

import (
	"fmt"

	"terminal-core/pkg/i18n"
)

// ViolationKind separates input that is not a number at all from numbers out of bounds.
type ViolationKind string

const (
	KindNumeric ViolationKind = "numeric"
	KindLimit   ViolationKind = "limit"
)

// Violation is a field-scoped validation failure. Key names an i18n message;
// Args carries the interpolation data (the offending bound for limit checks).
type Violation struct {
	Kind ViolationKind `json:"kind"`
	Key  string        `json:"key"`
	Args []any         `json:"args,omitempty"`
}

// Message renders the violation in the current language.
func (v *Violation) Message() string {
	if v == nil {
		return ""
	}
	if len(v.Args) == 0 {
		return i18n.Get(v.Key)
	}
	return fmt.Sprintf(i18n.Get(v.Key), v.Args...)
}

func (v *Violation) Error() string { return v.Message() }

func numeric(key string, args ...any) *Violation {
	return &Violation{Kind: KindNumeric, Key: key, Args: args}
}

func limit(key string, bound float64) *Violation {
	return &Violation{Kind: KindLimit, Key: key, Args: []any{bound}}
}

// Numeric builds a hard numeric violation for callers outside this package.
func Numeric(key string, args ...any) *Violation { return numeric(key, args...) }
