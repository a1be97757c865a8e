package cli

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/koustreak/sqlpilot/internal/database"
	"github.com/koustreak/sqlpilot/internal/errs"
	"github.com/koustreak/sqlpilot/internal/export"
)

const formatTable = "table"

// renderResult writes res as a table, or streams it as csv/json.
func renderResult(w io.Writer, res *database.Result, format string) error {
	if !res.Tabular() {
		_, _ = fmt.Fprintf(w, "%d rows affected\n", res.RowsAffected)
		return nil
	}

	if format == "" || format == formatTable {
		renderTable(w, res.RowSet)
		return nil
	}

	f, err := export.ParseFormat(format)
	if err != nil {
		return errs.Newf(errs.ErrKindUnsupportedFormat, "unsupported output format %q (use table, csv or json)", format)
	}
	chunks, err := export.Stream(res, f)
	if err != nil {
		return err
	}
	for chunk, err := range chunks {
		if err != nil {
			return err
		}
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

func renderTable(w io.Writer, rs *database.RowSet) {
	if rs.Len() == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := make(table.Row, len(rs.Columns))
	for i, col := range rs.Columns {
		header[i] = col
	}
	t.AppendHeader(header)

	for _, r := range rs.Rows {
		row := make(table.Row, len(r))
		for i, v := range r {
			row[i] = formatValue(v)
		}
		t.AppendRow(row)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows)\n", rs.Len())
}

func formatValue(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}
