package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/tbourn/go-admin-console/internal/i18n"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validFormat(f string) error {
	switch f {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want table, json or yaml)", f)
}

// view describes how a value is rendered as a table.
type view struct {
	// columns are JSON field names, in display order. Empty means every
	// field, sorted.
	columns []string
	// rows selects the record list inside the value (e.g. "items"); empty
	// renders the value itself as a single record.
	rows string
	// total names a count field printed under the table.
	total string
}

// render writes v in format. JSON and YAML dump the value as is; tables go
// through the JSON form so every type renders by its wire field names.
func render(w io.Writer, format string, tag language.Tag, v any, vw view) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		// Round-trip through JSON so YAML keys match the API field names.
		generic, err := toGeneric(v)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(generic); err != nil {
			return err
		}
		return enc.Close()
	}
	return renderTable(w, tag, v, vw)
}

func toGeneric(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func renderTable(w io.Writer, tag language.Tag, v any, vw view) error {
	generic, err := toGeneric(v)
	if err != nil {
		return err
	}
	doc, _ := generic.(map[string]any)

	var records []map[string]any
	switch {
	case vw.rows != "" && doc != nil:
		list, _ := doc[vw.rows].([]any)
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				records = append(records, m)
			}
		}
	case doc != nil:
		records = []map[string]any{doc}
	}

	cols := vw.columns
	if len(cols) == 0 && len(records) > 0 {
		for k := range records[0] {
			cols = append(cols, k)
		}
		sort.Strings(cols)
	}

	title := cases.Title(tag)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = title.String(strings.ReplaceAll(c, "_", " "))
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, rec := range records {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = cell(rec[c])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if vw.total != "" && doc != nil {
		if n, ok := doc[vw.total].(float64); ok {
			fmt.Fprintln(w, i18n.T(tag, "common.totalRecords", int64(n)))
		}
	}
	if warn, ok := doc["error"].(string); ok && warn != "" {
		fmt.Fprintln(w, "!", warn)
	}
	return nil
}

func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case string:
		if t == "" {
			return "-"
		}
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case map[string]any:
		if name, ok := t["name"].(string); ok {
			return name
		}
	}
	raw, _ := json.Marshal(v)
	return string(raw)
}
