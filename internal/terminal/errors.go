// Package terminal keeps the editable parameters of one position consistent:
// entry sizing, DCA and take-profit targets, stop-loss, trailing stop, reduce
// and increase orders. A Session owns the draft; panels own its fields.
package terminal

import (
	"errors"

	"terminal-core/internal/risk"
)

// Operation errors. Field validation never returns these; it is stored on the field.
var (
	ErrUnknownField     = errors.New("unknown field")
	ErrUnknownTarget    = errors.New("unknown target")
	ErrUnknownPanel     = errors.New("unknown panel")
	ErrPanelUnavailable = errors.New("panel unavailable for this position")
	ErrPanelCollapsed   = errors.New("panel is collapsed")
	ErrReadOnly         = errors.New("position is read-only")
	ErrTargetLocked     = errors.New("target already executed, skipped or cancelled")
	ErrNotRemovable     = errors.New("only the last planned target can be removed")
	ErrGroupFull        = errors.New("target group is full")
	ErrFieldLocked      = errors.New("field is locked")
	ErrInvalidDraft     = errors.New("draft has field errors")
	ErrStaleSnapshot    = errors.New("position snapshot is older than the current one")
)

// FieldError is the per-field validation state.
type FieldError = risk.Violation

const (
	ErrorKindNumeric = risk.KindNumeric
	ErrorKindLimit   = risk.KindLimit
)
