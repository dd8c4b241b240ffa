package stats

import (
	"bytes"
	"encoding/json"
)

// Ratio is a quotient that may be undefined because its denominator was zero.
// Defined ratios marshal as JSON numbers and undefined ones as null, so NaN
// and Inf never reach a caller.
type Ratio struct {
	value   float64
	defined bool
}

// Divide returns num/den, or an undefined Ratio when den is zero.
func Divide(num, den float64) Ratio {
	if den == 0 {
		return Ratio{}
	}
	return Ratio{value: num / den, defined: true}
}

// Value wraps an already computed quotient.
func Value(v float64) Ratio {
	return Ratio{value: v, defined: true}
}

// Undefined is the marker for a statistic without a denominator.
func Undefined() Ratio {
	return Ratio{}
}

// Float64 returns the quotient and whether it is defined.
func (r Ratio) Float64() (float64, bool) {
	return r.value, r.defined
}

func (r Ratio) Defined() bool {
	return r.defined
}

func (r Ratio) MarshalJSON() ([]byte, error) {
	if !r.defined {
		return []byte("null"), nil
	}
	return json.Marshal(r.value)
}

func (r *Ratio) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = Ratio{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = Ratio{value: v, defined: true}
	return nil
}

// MarshalYAML renders undefined ratios as YAML null.
func (r Ratio) MarshalYAML() (any, error) {
	if !r.defined {
		return nil, nil
	}
	return r.value, nil
}
