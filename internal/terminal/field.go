package terminal

import (
	"math"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"terminal-core/internal/risk"
	"terminal-core/internal/sizing"
)

// Field is one editable input. Raw text is what the user sees; value is the
// parsed number. suppressed is set while the field fails validation and is
// what recompute consults before deriving anything from it.
type Field struct {
	raw        string
	value      float64
	set        bool
	options    []string
	parseErr   *FieldError
	err        *FieldError
	suppressed bool
}

func newNumberField() *Field { return &Field{} }

func newOptionField(options ...string) *Field { return &Field{options: options} }

// Set replaces the raw input and reparses it.
func (f *Field) Set(raw string) {
	f.raw = strings.TrimSpace(raw)
	f.value, f.set, f.parseErr = 0, false, nil
	if f.raw == "" {
		return
	}
	if f.options != nil {
		if !slices.Contains(f.options, f.raw) {
			f.parseErr = risk.Numeric("UnknownOption", f.raw)
			return
		}
		f.set = true
		return
	}
	d, err := decimal.NewFromString(f.raw)
	if err != nil {
		f.parseErr = risk.Numeric("ValueMalformed")
		return
	}
	v := d.InexactFloat64()
	if math.IsInf(v, 0) {
		f.parseErr = risk.Numeric("ValueOutOfRange")
		return
	}
	f.value = v
	f.set = true
}

// setDerived stores a computed value, displayed with the given precision.
// A result that overflowed leaves the field empty with a numeric error.
func (f *Field) setDerived(v float64, places int32) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		f.raw, f.value, f.set = "", 0, false
		f.parseErr = risk.Numeric("ValueOutOfRange")
		return
	}
	f.raw = sizing.Format(v, places)
	f.value = v
	f.set = true
	f.parseErr = nil
}

// Clear drops value and error.
func (f *Field) Clear() {
	f.raw, f.value, f.set = "", 0, false
	f.parseErr, f.err, f.suppressed = nil, nil, false
}

// Value returns the parsed number; ok is false when empty or malformed.
func (f *Field) Value() (float64, bool) {
	return f.value, f.set && f.parseErr == nil
}

func (f *Field) Text() string { return f.raw }

func (f *Field) Err() *FieldError { return f.err }

func (f *Field) Suppressed() bool { return f.suppressed }

// usable reports whether recompute may read this field.
func (f *Field) usable() bool {
	return f.set && f.parseErr == nil && !f.suppressed
}

// resolve records the first failing rule, parse errors taking precedence.
func (f *Field) resolve(rules ...*FieldError) {
	f.err = f.parseErr
	if f.err == nil {
		for _, r := range rules {
			if r != nil {
				f.err = r
				break
			}
		}
	}
	f.suppressed = f.err != nil
}

func required(f *Field) *FieldError {
	if !f.set && f.parseErr == nil {
		return risk.Numeric("ValueRequired")
	}
	return nil
}

func positive(f *Field) *FieldError {
	if v, ok := f.Value(); ok && v <= 0 {
		return risk.Numeric("ValueNotPositive")
	}
	return nil
}

func percentage(f *Field) *FieldError {
	if v, ok := f.Value(); ok && !risk.ValidPercentage(v) {
		return risk.Numeric("PercentageOutOfRange")
	}
	return nil
}

// fieldSet is a named collection of fields plus the last edited member of each
// linked slot (a price/percentage pair, or a sizing triple).
type fieldSet struct {
	order  []string
	fields map[string]*Field
	source map[string]string
}

func newFieldSet() *fieldSet {
	return &fieldSet{fields: make(map[string]*Field), source: make(map[string]string)}
}

func (fs *fieldSet) add(name string, f *Field) {
	fs.order = append(fs.order, name)
	fs.fields[name] = f
}

func (fs *fieldSet) get(name string) *Field { return fs.fields[name] }

func (fs *fieldSet) has(name string) bool {
	_, ok := fs.fields[name]
	return ok
}

// sourceOf returns the last edited member of slot, or def when none was edited.
func (fs *fieldSet) sourceOf(slot, def string) string {
	if src, ok := fs.source[slot]; ok {
		return src
	}
	return def
}

func (fs *fieldSet) markSource(slot, name string) { fs.source[slot] = name }

func (fs *fieldSet) clear() {
	for _, f := range fs.fields {
		f.Clear()
	}
	clear(fs.source)
}

func (fs *fieldSet) errorCount() int {
	n := 0
	for _, f := range fs.fields {
		if f.err != nil {
			n++
		}
	}
	return n
}
