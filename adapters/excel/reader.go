package excel

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"exprview/internal"

	"github.com/xuri/excelize/v2"
)

// DataReader handles reading sheets from an Excel workbook or from a
// directory of CSV files
type DataReader struct {
	path     string
	fileType string // "xlsx" or "csv"
	logger   *internal.Logger
}

// NewDataReader creates a reader. A directory path is read as CSV files.
func NewDataReader(path string) *DataReader {
	fileType := "xlsx"
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		fileType = "csv"
	} else if strings.ToLower(filepath.Ext(path)) == ".csv" {
		fileType = "csv"
	}
	return &DataReader{path: path, fileType: fileType, logger: internal.DefaultLogger.WithComponent("excel")}
}

// ReadSheets reads the named sheets. A sheet that does not exist is left out
// of the result rather than failing the read.
func (r *DataReader) ReadSheets(names ...string) (map[string]*SheetData, error) {
	if _, err := os.Stat(r.path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s source not found: %s", strings.ToUpper(r.fileType), r.path)
	}
	switch r.fileType {
	case "csv":
		return r.readCSVSheets(names)
	case "xlsx":
		return r.readExcelSheets(names)
	default:
		return nil, fmt.Errorf("unsupported file type: %s", r.fileType)
	}
}

// readExcelSheets reads the requested sheets of a workbook
func (r *DataReader) readExcelSheets(names []string) (map[string]*SheetData, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()
	r.logger.Debug("Excel file opened in %.2fms", float64(time.Since(startTime).Nanoseconds())/1e6)

	present := make(map[string]bool)
	for _, s := range f.GetSheetList() {
		present[s] = true
	}

	out := make(map[string]*SheetData, len(names))
	for _, name := range names {
		if name == "" || !present[name] {
			continue
		}
		readStart := time.Now()
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %s: %w", name, err)
		}
		r.logger.Debug("Sheet %s read in %.2fms (%d rows)", name, float64(time.Since(readStart).Nanoseconds())/1e6, len(rows))
		data, err := r.processRows(name, rows)
		if err != nil {
			return nil, err
		}
		out[name] = data
	}
	return out, nil
}

// readCSVSheets reads <dir>/<sheet>.csv for each requested sheet, or the
// single file when the path is a CSV file
func (r *DataReader) readCSVSheets(names []string) (map[string]*SheetData, error) {
	out := make(map[string]*SheetData, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		path := filepath.Join(r.path, name+".csv")
		if !isDir(r.path) {
			path = r.path
		}
		file, err := os.Open(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to open CSV file: %w", err)
		}
		reader := csv.NewReader(file)
		reader.FieldsPerRecord = -1
		rows, err := reader.ReadAll()
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV file %s: %w", path, err)
		}
		data, err := r.processRows(name, rows)
		if err != nil {
			return nil, err
		}
		out[name] = data
		if !isDir(r.path) {
			break
		}
	}
	return out, nil
}

// processRows converts raw string rows into SheetData
func (r *DataReader) processRows(name string, rows [][]string) (*SheetData, error) {
	if len(rows) < 1 {
		return nil, fmt.Errorf("sheet %s must have a header row", name)
	}

	headerRow := rows[0]
	headers := make([]string, len(headerRow))
	for i, header := range headerRow {
		headers[i] = strings.TrimSpace(header)
	}

	data := &SheetData{Headers: headers}
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}
		rowData := make(RawRowData)
		cells := make([]string, len(headers))
		for j, cell := range row {
			if j < len(headers) {
				cells[j] = strings.TrimSpace(cell)
				rowData[headers[j]] = cells[j]
			}
		}
		data.Rows = append(data.Rows, rowData)
		data.Cells = append(data.Cells, cells)
	}

	r.logger.Debug("Sheet %s processed (%d columns, %d rows)", name, len(headers), len(data.Rows))
	return data, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
