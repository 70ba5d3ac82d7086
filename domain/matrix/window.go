package matrix

// Rows returns up to length visible rows starting at offset, in view order.
// An offset past the end or a non-positive length yields no rows; a negative
// offset is treated as zero. Rows never trigger a recompute.
func (m *ManagedMatrix) Rows(offset, length int) []ExpressionRow {
	if offset < 0 {
		offset = 0
	}
	if length <= 0 || offset >= len(m.view) {
		return []ExpressionRow{}
	}
	end := offset + length
	if end > len(m.view) || end < offset {
		end = len(m.view)
	}

	out := make([]ExpressionRow, 0, end-offset)
	for _, r := range m.view[offset:end] {
		out = append(out, m.row(r))
	}
	return out
}

// AllRows returns every visible row in view order
func (m *ManagedMatrix) AllRows() []ExpressionRow {
	return m.Rows(0, len(m.view))
}

func (m *ManagedMatrix) row(r int) ExpressionRow {
	values := make([]ExpressionValue, len(m.columns))
	for c := range m.columns {
		values[c] = m.columns[c].Values[r]
	}
	return ExpressionRow{Annotation: m.rows[r], Values: values}
}
