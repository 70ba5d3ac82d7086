package excel

// WorkbookConfig names the sheets of an expression workbook. For a CSV
// dataset Path is a directory holding one <sheet>.csv file per sheet.
type WorkbookConfig struct {
	Path          string `json:"path"`
	SamplesSheet  string `json:"samples_sheet"`
	ProbesSheet   string `json:"probes_sheet"`
	AbsoluteSheet string `json:"absolute_sheet"`
	FoldsSheet    string `json:"folds_sheet"`
	// ListSeparator splits multi-valued annotation cells
	ListSeparator string `json:"list_separator"`
}

// DefaultWorkbookConfig returns the standard sheet layout
func DefaultWorkbookConfig(path string) WorkbookConfig {
	return WorkbookConfig{
		Path:          path,
		SamplesSheet:  "samples",
		ProbesSheet:   "probes",
		AbsoluteSheet: "absolute",
		FoldsSheet:    "folds",
		ListSeparator: ";",
	}
}
