// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/apex/log"
	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/lipgloss/v2/table"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/oshima/ec2-backup/internal/config"
	"github.com/oshima/ec2-backup/internal/filters"
)

// Formats lists the supported --output values.
var Formats = []string{"text", "json", "yaml"}

// Column is one field of text output. Path is a gjson path into the row and
// Format, when set, renders the value.
type Column struct {
	Title  string
	Path   string
	Format func(gjson.Result) string
}

// Options controls Emit.
type Options struct {
	Format string
	Filter string
	Sort   string
	Titles bool
	Color  bool
}

// Emit marshals data to JSON, keeps the rows matching opts.Filter, sorts
// them by opts.Sort and writes them in opts.Format. Text output shows cols;
// json and yaml output carry whole rows.
func Emit(w io.Writer, data any, cols []Column, opts Options) error {
	if w == nil {
		w = os.Stdout
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}

	rows := filters.Apply(gjson.ParseBytes(raw), opts.Filter)
	SortRows(rows, opts.Sort)

	switch opts.Format {
	case "json":
		return writeJSON(w, rows)
	case "yaml":
		return writeYAML(w, rows)
	case "", "text":
		TableWriter(w, rows, cols, opts)
		return nil
	default:
		return fmt.Errorf("unsupported output format: %s", opts.Format)
	}
}

func writeJSON(w io.Writer, rows []gjson.Result) error {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, r := range rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(r.Raw)
	}
	buf.WriteByte(']')

	var out bytes.Buffer
	if err := json.Indent(&out, buf.Bytes(), "", "  "); err != nil {
		return fmt.Errorf("failed to format json: %w", err)
	}
	out.WriteByte('\n')
	_, err := w.Write(out.Bytes())
	return err
}

func writeYAML(w io.Writer, rows []gjson.Result) error {
	values := make([]any, 0, len(rows))
	for _, r := range rows {
		values = append(values, r.Value())
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(values); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

// TableWriter renders rows as an unbordered table honoring the color and
// titles options.
func TableWriter(w io.Writer, rows []gjson.Result, cols []Column, opts Options) {
	if len(rows) == 0 {
		return
	}

	var (
		headerStyle  = lipgloss.NewStyle().Align(lipgloss.Left)
		cellStyle    = lipgloss.NewStyle().Padding(0, 0).Align(lipgloss.Left)
		evenRowStyle = cellStyle
		oddRowStyle  = cellStyle
	)

	if opts.Color {
		headerColor, evenColor, oddColor := getColors("colors")

		headerStyle = headerStyle.Foreground(lipgloss.Color(headerColor))
		evenRowStyle = evenRowStyle.Foreground(lipgloss.Color(evenColor))
		oddRowStyle = oddRowStyle.Foreground(lipgloss.Color(oddColor))
	}

	pad, _ := config.GetInt("padding", 2)
	log.Debugf("padding: %v", pad)

	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cell := make([]string, 0, len(cols))
		for _, c := range cols {
			cell = append(cell, Cell(r, c))
		}
		cells = append(cells, cell)
	}

	t := table.New().
		BorderBottom(false).
		BorderTop(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		Border(lipgloss.HiddenBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			var style lipgloss.Style
			switch {
			case row == table.HeaderRow:
				style = headerStyle
			case row%2 == 0:
				style = evenRowStyle
			default:
				style = oddRowStyle
			}
			if col > 0 {
				style = style.PaddingLeft(pad)
			}
			return style
		}).
		Rows(cells...)

	if opts.Titles {
		headers := make([]string, 0, len(cols))
		for _, c := range cols {
			headers = append(headers, c.Title)
		}
		// https://github.com/charmbracelet/lipgloss/issues/261
		t = t.Headers(headers...).BorderHeader(false)
	}
	fmt.Fprintln(w, t)
}

// Cell renders one column of a row. Missing values render as "-".
func Cell(r gjson.Result, c Column) string {
	v := r.Get(c.Path)
	if !v.Exists() {
		return "-"
	}
	if c.Format != nil {
		return c.Format(v)
	}
	return ResultToString(v, "-")
}

// ResultToString converts a gjson value to display text. A custom empty
// value may be provided.
func ResultToString(v gjson.Result, emptyValue ...string) string {
	if len(emptyValue) == 0 {
		emptyValue = []string{""}
	}

	switch v.Type {
	case gjson.Null:
		return emptyValue[0]
	case gjson.String:
		if v.Str == "" {
			return emptyValue[0]
		}
		return v.Str
	case gjson.Number:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case gjson.True, gjson.False:
		return strconv.FormatBool(v.Bool())
	default:
		return v.Raw
	}
}

// getColors returns configured color values for table rendering.
func getColors(key string) (header string, even string, odd string) {
	header, _ = config.GetString(fmt.Sprintf("%s.title", key), "#f6be00")
	even, _ = config.GetString(fmt.Sprintf("%s.even", key), "#ffffff")
	odd, _ = config.GetString(fmt.Sprintf("%s.odd", key), "#00c8f0")
	return
}

// SortRows orders rows by a comma-separated list of gjson paths. A leading
// "-" sorts descending and a leading "!" compares strings case sensitively.
// Numbers compare numerically.
func SortRows(rows []gjson.Result, spec string) {
	if strings.TrimSpace(spec) == "" {
		return
	}

	type key struct {
		path string
		desc bool
		cs   bool
	}
	var keys []key
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		k := key{}
		for len(part) > 0 && (part[0] == '-' || part[0] == '!') {
			if part[0] == '-' {
				k.desc = true
			} else {
				k.cs = true
			}
			part = part[1:]
		}
		if part == "" {
			continue
		}
		k.path = part
		keys = append(keys, k)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			c := compare(rows[i].Get(k.path), rows[j].Get(k.path), k.cs)
			if c == 0 {
				continue
			}
			if k.desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func compare(a, b gjson.Result, caseSensitive bool) int {
	if a.Type == gjson.Number && b.Type == gjson.Number {
		switch {
		case a.Num < b.Num:
			return -1
		case a.Num > b.Num:
			return 1
		default:
			return 0
		}
	}
	as, bs := a.String(), b.String()
	if !caseSensitive {
		as, bs = strings.ToLower(as), strings.ToLower(bs)
	}
	return strings.Compare(as, bs)
}
