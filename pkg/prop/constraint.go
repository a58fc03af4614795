package prop

import (
	"fmt"
	"math"
	"strings"
)

// IntConstraint is an interface to represent integer value constraint.
type IntConstraint interface {
	Compare(int) (float64, bool)
	Value() (int, bool)
}

// Int specifies ideal int value.
// Any value may be selected, but closest value takes priority.
type Int int

// Compare implements IntConstraint.
func (i Int) Compare(a int) (float64, bool) {
	return relativeDistance(float64(a), float64(i)), true
}

// Value implements IntConstraint.
func (i Int) Value() (int, bool) { return int(i), true }

// String implements Stringify
func (i Int) String() string { return fmt.Sprintf("%d (ideal)", i) }

// IntExact specifies exact int value.
type IntExact int

// Compare implements IntConstraint.
func (i IntExact) Compare(a int) (float64, bool) {
	if int(i) == a {
		return 0.0, true
	}
	return 1.0, false
}

// Value implements IntConstraint.
func (i IntExact) Value() (int, bool) { return int(i), true }

// String implements Stringify
func (i IntExact) String() string { return fmt.Sprintf("%d (exact)", i) }

// IntRanged specifies range of expected int value.
// If Ideal is non-zero, closest value to Ideal takes priority.
type IntRanged struct {
	Min   int
	Max   int
	Ideal int
}

// Compare implements IntConstraint.
func (i IntRanged) Compare(a int) (float64, bool) {
	return ranged(float64(i.Min), float64(i.Max), float64(i.Ideal), float64(a))
}

// Value implements IntConstraint.
func (IntRanged) Value() (int, bool) { return 0, false }

// String implements Stringify
func (i IntRanged) String() string {
	return fmt.Sprintf("%d - %d (range), %d (ideal)", i.Min, i.Max, i.Ideal)
}

// FloatConstraint is an interface to represent float value constraint.
type FloatConstraint interface {
	Compare(float32) (float64, bool)
	Value() (float32, bool)
}

// Float specifies ideal float value.
// Any value may be selected, but closest value takes priority.
type Float float32

// Compare implements FloatConstraint.
func (f Float) Compare(a float32) (float64, bool) {
	return relativeDistance(float64(a), float64(f)), true
}

// Value implements FloatConstraint.
func (f Float) Value() (float32, bool) { return float32(f), true }

// String implements Stringify
func (f Float) String() string { return fmt.Sprintf("%.2f (ideal)", f) }

// FloatExact specifies exact float value.
type FloatExact float32

// Compare implements FloatConstraint.
func (f FloatExact) Compare(a float32) (float64, bool) {
	if float32(f) == a {
		return 0.0, true
	}
	return 1.0, false
}

// Value implements FloatConstraint.
func (f FloatExact) Value() (float32, bool) { return float32(f), true }

// String implements Stringify
func (f FloatExact) String() string { return fmt.Sprintf("%.2f (exact)", f) }

// FloatRanged specifies range of expected float value.
// If Ideal is non-zero, closest value to Ideal takes priority.
type FloatRanged struct {
	Min   float32
	Max   float32
	Ideal float32
}

// Compare implements FloatConstraint.
func (f FloatRanged) Compare(a float32) (float64, bool) {
	return ranged(float64(f.Min), float64(f.Max), float64(f.Ideal), float64(a))
}

// Value implements FloatConstraint. A ranged constraint pins down the
// ideal value when one is given.
func (f FloatRanged) Value() (float32, bool) { return f.Ideal, f.Ideal != 0 }

// String implements Stringify
func (f FloatRanged) String() string {
	return fmt.Sprintf("%.2f - %.2f (range), %.2f (ideal)", f.Min, f.Max, f.Ideal)
}

// StringConstraint is an interface to represent string constraint.
type StringConstraint interface {
	Compare(string) (float64, bool)
	Value() (string, bool)
}

// StringExact specifies exact string.
type StringExact string

// Compare implements StringConstraint.
func (f StringExact) Compare(a string) (float64, bool) {
	if string(f) == a {
		return 0.0, true
	}
	return 1.0, false
}

// Value implements StringConstraint.
func (f StringExact) Value() (string, bool) { return string(f), true }

// String implements Stringify
func (f StringExact) String() string { return fmt.Sprintf("%s (exact)", string(f)) }

// StringOneOf specifies list of expected string.
type StringOneOf []string

// Compare implements StringConstraint.
func (f StringOneOf) Compare(a string) (float64, bool) {
	for _, ff := range f {
		if ff == a {
			return 0.0, true
		}
	}
	return 1.0, false
}

// Value implements StringConstraint.
func (StringOneOf) Value() (string, bool) { return "", false }

// String implements Stringify
func (f StringOneOf) String() string {
	return fmt.Sprintf("%s (one of values)", strings.Join([]string(f), ","))
}

// BoolConstraint is an interface to represent bool value constraint.
type BoolConstraint interface {
	Compare(bool) (float64, bool)
	Value() bool
}

// BoolExact specifies exact bool value.
type BoolExact bool

// Compare implements BoolConstraint.
func (b BoolExact) Compare(o bool) (float64, bool) {
	if bool(b) == o {
		return 0.0, true
	}
	return 1.0, false
}

// Value implements BoolConstraint.
func (b BoolExact) Value() bool { return bool(b) }

// String implements Stringify
func (b BoolExact) String() string { return fmt.Sprintf("%t (exact)", bool(b)) }

func relativeDistance(actual, ideal float64) float64 {
	if actual == ideal {
		return 0
	}
	return math.Abs(actual-ideal) / math.Max(math.Abs(actual), math.Abs(ideal))
}

func ranged(min, max, ideal, a float64) (float64, bool) {
	if min != 0 && min > a {
		// Out of range
		return 1.0, false
	}
	if max != 0 && max < a {
		// Out of range
		return 1.0, false
	}
	switch {
	case ideal == 0, a == ideal:
		return 0.0, true
	case a < ideal:
		if min == 0 {
			return relativeDistance(a, ideal), true
		}
		return (ideal - a) / (ideal - min), true
	default:
		if max == 0 {
			return relativeDistance(a, ideal), true
		}
		return (a - ideal) / (max - ideal), true
	}
}
