package database

import (
	"bytes"
	"encoding/json"
)

// RowSet is the materialised output of a row-returning statement. Columns
// are unique and keep the order the driver reported; every row has exactly
// len(Columns) values.
type RowSet struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows.
func (rs *RowSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// Maps returns the rows as column→value mappings. Order is lost; use
// MarshalRow when it matters.
func (rs *RowSet) Maps() []map[string]any {
	out := make([]map[string]any, len(rs.Rows))
	for i, row := range rs.Rows {
		m := make(map[string]any, len(rs.Columns))
		for j, col := range rs.Columns {
			m[col] = row[j]
		}
		out[i] = m
	}
	return out
}

// MarshalRow encodes row i as a JSON object whose keys follow column order.
func (rs *RowSet) MarshalRow(i int) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for j, col := range rs.Columns {
		if j > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(rs.Rows[i][j])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON encodes the set as an array of ordered objects.
func (rs *RowSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i := range rs.Rows {
		if i > 0 {
			buf.WriteByte(',')
		}
		obj, err := rs.MarshalRow(i)
		if err != nil {
			return nil, err
		}
		buf.Write(obj)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// Result is what Session.Execute returns. RowSet is nil for statements
// that do not return rows; RowsAffected is then the driver-reported count
// of modified rows.
type Result struct {
	RowSet       *RowSet
	RowsAffected int64
}

// Tabular reports whether the statement returned rows (possibly zero).
func (r *Result) Tabular() bool {
	return r != nil && r.RowSet != nil
}
