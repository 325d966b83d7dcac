package schema

import (
	"math"
	"strconv"
)

// Float is a float64 wrapper so that (Un)MarshalJSON can be overloaded to
// turn NaN into `null` and back. Gaps in a time series are NaN; they must
// survive a JSON round trip instead of becoming 0 or an error.
type Float float64

// NaN is the canonical "no data here" value used throughout the engine.
var NaN Float = Float(math.NaN())

func (f Float) IsNaN() bool {
	return math.IsNaN(float64(f))
}

func (f Float) MarshalJSON() ([]byte, error) {
	if f.IsNaN() {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(float64(f), 'g', -1, 64)), nil
}

func (f *Float) UnmarshalJSON(input []byte) error {
	s := string(input)
	if s == "null" {
		*f = NaN
		return nil
	}

	val, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	*f = Float(val)
	return nil
}
