/*
Copyright © 2025 Floodgate Authors.

Released under MIT license.
*/

package output

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Field is a single named value in a rendered summary.
type Field struct {
	Name  string
	Value string
}

// Keys renders a list of keys as a table with the given column header.
func Keys(header string, keys []string) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"#", header})
	for i, key := range keys {
		t.AppendRow(table.Row{i + 1, key})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d total", len(keys))})
	return t.Render()
}

// Fields renders name/value pairs as a two-column table, preserving order.
func Fields(fields []Field) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Field", "Value"})
	for _, f := range fields {
		t.AppendRow(table.Row{f.Name, f.Value})
	}
	return t.Render()
}
