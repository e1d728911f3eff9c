package excel

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"stockledger/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

var headerAliases = map[string]string{
	"name":            "name",
	"item":            "name",
	"item name":       "name",
	"product":         "name",
	"product name":    "name",
	"sku":             "sku",
	"code":            "sku",
	"item code":       "sku",
	"category":        "category",
	"unit":            "unit",
	"uom":             "unit",
	"purchase price":  "purchase_price",
	"cost":            "purchase_price",
	"cost price":      "purchase_price",
	"buy price":       "purchase_price",
	"selling price":   "selling_price",
	"sell price":      "selling_price",
	"sales price":     "selling_price",
	"price":           "selling_price",
	"min stock":       "min_stock_level",
	"min stock level": "min_stock_level",
	"reorder level":   "min_stock_level",
	"opening stock":   "opening_stock",
	"quantity":        "opening_stock",
	"qty":             "opening_stock",
	"stock":           "opening_stock",
}

// ParseItemRows reads an item sheet from a CSV file or the first sheet of a
// workbook; the format comes from the file extension and is sniffed when the
// extension is missing. The header row is matched loosely against
// headerAliases and only a name column is mandatory. Rows with a blank name
// are skipped.
func ParseItemRows(fileName string, reader io.Reader) ([]domain.ItemImportRow, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("input file is empty")
	}

	var rows [][]string
	switch strings.ToLower(strings.TrimSpace(filepath.Ext(fileName))) {
	case ".csv":
		rows, err = parseCSVRows(data)
	case ".xlsx", ".xlsm":
		rows, err = parseExcelRows(data)
	default:
		if rows, err = parseExcelRows(data); err != nil {
			rows, err = parseCSVRows(data)
		}
	}
	if err != nil {
		return nil, err
	}
	return parseItemTable(rows)
}

func parseCSVRows(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("csv file is empty")
	}
	return rows, nil
}

func parseExcelRows(data []byte) ([][]string, error) {
	file, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open excel file: %w", err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("excel file has no sheets")
	}

	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("excel file is empty")
	}
	return rows, nil
}

func parseItemTable(rows [][]string) ([]domain.ItemImportRow, error) {
	colMap := mapColumns(rows[0])
	if _, ok := colMap["name"]; !ok {
		return nil, fmt.Errorf("missing required column: name")
	}

	var err error
	result := make([]domain.ItemImportRow, 0, len(rows)-1)
	for index := 1; index < len(rows); index++ {
		cells := rows[index]
		name := strings.TrimSpace(readColumn(cells, colMap, "name"))
		if name == "" {
			continue
		}
		row := domain.ItemImportRow{
			Name:     name,
			SKU:      strings.TrimSpace(readColumn(cells, colMap, "sku")),
			Category: strings.TrimSpace(readColumn(cells, colMap, "category")),
			Unit:     strings.TrimSpace(readColumn(cells, colMap, "unit")),
		}

		if row.PurchasePrice, err = parseMoney(readColumn(cells, colMap, "purchase_price")); err != nil {
			return nil, fmt.Errorf("row %d invalid purchase price: %w", index+1, err)
		}
		if row.SellingPrice, err = parseMoney(readColumn(cells, colMap, "selling_price")); err != nil {
			return nil, fmt.Errorf("row %d invalid selling price: %w", index+1, err)
		}
		if raw := strings.TrimSpace(readColumn(cells, colMap, "min_stock_level")); raw != "" {
			value, err := parseInt(raw)
			if err != nil {
				return nil, fmt.Errorf("row %d invalid min stock level: %w", index+1, err)
			}
			row.MinStockLevel = &value
		}
		if raw := strings.TrimSpace(readColumn(cells, colMap, "opening_stock")); raw != "" {
			if row.OpeningStock, err = parseInt(raw); err != nil {
				return nil, fmt.Errorf("row %d invalid opening stock: %w", index+1, err)
			}
		}

		result = append(result, row)
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("file has no valid data rows")
	}
	return result, nil
}

func mapColumns(header []string) map[string]int {
	mapped := make(map[string]int)
	for idx, col := range header {
		normalized := normalizeHeader(col)
		if normalized == "" {
			continue
		}
		canonical, ok := headerAliases[normalized]
		if !ok {
			continue
		}
		if _, exists := mapped[canonical]; !exists {
			mapped[canonical] = idx
		}
	}
	return mapped
}

func normalizeHeader(raw string) string {
	value := strings.TrimSpace(raw)
	value = strings.TrimPrefix(value, "\ufeff")
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", " ")
	value = strings.Join(strings.Fields(value), " ")
	return value
}

func readColumn(row []string, colMap map[string]int, column string) string {
	idx, ok := colMap[column]
	if !ok || idx >= len(row) {
		return ""
	}
	return row[idx]
}

func parseInt(raw string) (int, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0, fmt.Errorf("value is empty")
	}

	asFloat, err := strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number")
	}
	if math.Mod(asFloat, 1) != 0 {
		return 0, fmt.Errorf("must be an integer")
	}
	return int(asFloat), nil
}

// parseMoney treats a blank cell as zero.
func parseMoney(raw string) (decimal.Decimal, error) {
	value := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	if value == "" {
		return decimal.Zero, nil
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number")
	}
	return parsed.Round(2), nil
}
