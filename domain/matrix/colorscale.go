package matrix

import (
	"math"
)

// ColorScale maps values onto heat map intensities between the smallest and
// largest finite value of a set
type ColorScale struct {
	Min, Max float64
	Valid    bool
}

// NewColorScale scans values, skipping NaN and infinities. With no usable
// value the scale is invalid and every intensity is neutral.
func NewColorScale(values []float64) ColorScale {
	s := ColorScale{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		s.Valid = true
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	if !s.Valid {
		return ColorScale{}
	}
	return s
}

// ColumnColorScale builds a scale over the present values of a column of rows
func ColumnColorScale(rows []ExpressionRow, column int) ColorScale {
	values := make([]float64, 0, len(rows))
	for _, r := range rows {
		v := r.Value(column)
		if v.Present {
			values = append(values, v.Value)
		}
	}
	return NewColorScale(values)
}

// Intensity maps a value to a channel value in [128, 255]; the largest value
// is darkest. NaN and out-of-scale input yield 255 (no shading).
func (s ColorScale) Intensity(v float64) int {
	if !s.Valid || math.IsNaN(v) {
		return 255
	}
	if s.Max == s.Min {
		return 191
	}
	if v < s.Min || v > s.Max {
		return 255
	}
	return 255 - int((v-s.Min)*127/(s.Max-s.Min))
}
