package model

import "fmt"

// Value is an optional scalar. The zero Value is "not applicable", which is
// distinct from Some(0).
type Value struct {
	v   float64
	set bool
}

// NA is the not-applicable Value.
var NA = Value{}

// Some wraps a concrete number.
func Some(v float64) Value { return Value{v: v, set: true} }

// Get returns the wrapped number and whether it is present.
func (v Value) Get() (float64, bool) { return v.v, v.set }

// IsNA reports whether the value is not applicable.
func (v Value) IsNA() bool { return !v.set }

// Or returns the wrapped number, or def when the value is not applicable.
func (v Value) Or(def float64) float64 {
	if !v.set {
		return def
	}
	return v.v
}

// Must returns the wrapped number and panics on NA. Only for values whose
// presence was already validated.
func (v Value) Must() float64 {
	if !v.set {
		panic("model: Must called on NA value")
	}
	return v.v
}

// Map applies fn to a present value and propagates NA unchanged.
func (v Value) Map(fn func(float64) float64) Value {
	if !v.set {
		return NA
	}
	return Some(fn(v.v))
}

func (v Value) String() string {
	if !v.set {
		return "NA"
	}
	return fmt.Sprintf("%g", v.v)
}
