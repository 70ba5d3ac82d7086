package excel

// RawRowData represents a row of raw sheet data as header -> cell pairs
type RawRowData map[string]string

// SheetData represents one sheet of a workbook, or one CSV file
type SheetData struct {
	Headers []string     // Column headers
	Rows    []RawRowData // Data rows
	// Cells keeps the raw rows in order, header excluded, for sheets whose
	// headers are data (sample ids) rather than field names
	Cells [][]string
}
