package listing

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Output is a rendered table or, when headers are suppressed, the raw
// rows for the caller to print or consume.
type Output struct {
	Table string
	Rows  [][]string
	Raw   bool
}

// Present renders rows under headers, or returns them untouched when
// header is false.
func Present(headers []string, rows [][]string, header bool) Output {
	if !header {
		return Output{Rows: rows, Raw: true}
	}
	return Output{Table: RenderTable(headers, rows)}
}

// WriteTo prints the table, or one tab-separated line per row.
func (o Output) WriteTo(w io.Writer) (int64, error) {
	if !o.Raw {
		n, err := fmt.Fprintln(w, o.Table)
		return int64(n), err
	}
	var total int64
	for _, row := range o.Rows {
		n, err := fmt.Fprintln(w, strings.Join(row, "\t"))
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// RenderTable draws a fixed-width ASCII table with a rule between rows.
func RenderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.ASCIIBorder()).
		BorderRow(true).
		StyleFunc(func(row, col int) lipgloss.Style { return cellStyle }).
		Headers(headers...).
		Rows(rows...)
	return t.Render()
}

// WriteJSON writes value as indented JSON. A nil slice is written as [].
func WriteJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(normalizeNilSlice(value))
}

func normalizeNilSlice(value any) any {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Slice && v.IsNil() {
		return reflect.MakeSlice(v.Type(), 0, 0).Interface()
	}
	return value
}
