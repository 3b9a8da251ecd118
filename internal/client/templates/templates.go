// Package templates reads shared (community) templates. JSON and YAML files
// carry the whole models.Template; spreadsheets (XLSX or CSV) carry one item
// per row under a header row and take the template name from the sheet or
// file name.
package templates

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"github.com/dmitrijs2005/quotekeeper/internal/client/models"
	"github.com/dmitrijs2005/quotekeeper/internal/common"
)

type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

var ErrUnsupportedFormat = errors.New("unsupported template format")

// FormatFromName picks the format from a file extension.
func FormatFromName(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".xlsx":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
}

// LoadFile reads the template at path.
func LoadFile(path string) (models.Template, error) {
	format, err := FormatFromName(path)
	if err != nil {
		return models.Template{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return models.Template{}, err
	}
	defer f.Close()

	t, err := Load(f, format)
	if err != nil {
		return t, fmt.Errorf("%s: %w", path, err)
	}
	if t.Name == "" || format == FormatCSV {
		t.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return t, nil
}

// Load decodes one template and validates its items.
func Load(r io.Reader, format Format) (models.Template, error) {
	var (
		t   models.Template
		err error
	)
	switch format {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&t)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&t)
	case FormatXLSX:
		t, err = loadXLSX(r)
	case FormatCSV:
		t, err = loadCSV(r)
	default:
		return t, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return t, fmt.Errorf("%w: decode %s template: %w", common.ErrValidation, format, err)
	}
	return t, validate(t)
}

func validate(t models.Template) error {
	for i, it := range t.Items {
		if strings.TrimSpace(it.Name) == "" {
			return fmt.Errorf("%w: template item %d has no name", common.ErrValidation, i+1)
		}
		if it.Qty < 0 {
			return fmt.Errorf("%w: template item %q has negative qty", common.ErrValidation, it.Name)
		}
	}
	return nil
}

func loadXLSX(r io.Reader) (models.Template, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return models.Template{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return models.Template{}, errors.New("no sheets in workbook")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return models.Template{}, fmt.Errorf("read rows: %w", err)
	}
	t, err := fromRows(rows)
	t.Name = sheets[0]
	return t, err
}

func loadCSV(r io.Reader) (models.Template, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return models.Template{}, err
	}
	return fromRows(rows)
}

// header names accepted for each column.
var columns = map[string]string{
	"name":        "name",
	"item":        "name",
	"description": "name",
	"sku":         "sku",
	"qty":         "qty",
	"quantity":    "qty",
	"unit":        "unit",
	"uom":         "unit",
	"unit_price":  "unit_price",
	"unit price":  "unit_price",
	"price":       "unit_price",
}

func fromRows(rows [][]string) (models.Template, error) {
	var t models.Template
	if len(rows) == 0 {
		return t, errors.New("empty sheet")
	}

	idx := map[string]int{}
	for i, h := range rows[0] {
		if col, ok := columns[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, dup := idx[col]; !dup {
				idx[col] = i
			}
		}
	}
	if _, ok := idx["name"]; !ok {
		return t, errors.New("header row has no name column")
	}

	cell := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for n, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		item := models.TemplateItem{
			Name: cell(row, "name"),
			SKU:  cell(row, "sku"),
			Unit: cell(row, "unit"),
		}
		if s := cell(row, "qty"); s != "" {
			q, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return t, fmt.Errorf("row %d: qty %q: %w", n+2, s, err)
			}
			item.Qty = q
		}
		if s := strings.TrimPrefix(cell(row, "unit_price"), "$"); s != "" {
			p, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
			if err != nil {
				return t, fmt.Errorf("row %d: unit price %q: %w", n+2, s, err)
			}
			item.UnitPrice = &p
		}
		t.Items = append(t.Items, item)
	}
	return t, nil
}

func isBlank(row []string) bool {
	return strings.TrimSpace(strings.Join(row, "")) == ""
}

// Encode writes t as JSON or YAML, the formats that keep every field.
func Encode(w io.Writer, t models.Template, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(t); err != nil {
			return err
		}
		if err := enc.Close(); err != nil {
			return err
		}
		_, err := w.Write(buf.Bytes())
		return err
	}
	return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}
