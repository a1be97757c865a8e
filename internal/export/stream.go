package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"iter"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/koustreak/sqlpilot/internal/database"
)

// Stream returns the chunks that encode res in format f. The format is
// checked before any chunk is produced. Non-tabular results and empty row
// sets produce no chunks at all.
//
// CSV yields the header line first and then one line per row. JSON yields
// one array element per chunk; concatenated, the chunks form an indented
// JSON array whose objects keep column order.
//
// The sequence is single-use and reads res lazily, so a consumer that
// stops early never encodes the remaining rows.
func Stream(res *database.Result, f Format) (iter.Seq2[[]byte, error], error) {
	if !f.valid() {
		return nil, unsupported(string(f))
	}

	if !res.Tabular() || res.RowSet.Len() == 0 {
		return func(func([]byte, error) bool) {}, nil
	}

	if f == FormatJSON {
		return jsonChunks(res.RowSet), nil
	}
	return csvChunks(res.RowSet), nil
}

func csvChunks(rs *database.RowSet) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		var buf bytes.Buffer
		w := csv.NewWriter(&buf)

		emit := func(record []string) bool {
			buf.Reset()
			if err := w.Write(record); err != nil {
				return yield(nil, err)
			}
			w.Flush()
			if err := w.Error(); err != nil {
				return yield(nil, err)
			}
			return yield(bytes.Clone(buf.Bytes()), nil)
		}

		if !emit(rs.Columns) {
			return
		}

		record := make([]string, len(rs.Columns))
		for _, row := range rs.Rows {
			for i, v := range row {
				record[i] = csvField(v)
			}
			if !emit(record) {
				return
			}
		}
	}
}

// csvField renders one value; NULL is the empty field.
func csvField(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case decimal.Decimal:
		return x.String()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func jsonChunks(rs *database.RowSet) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		for i := range rs.Rows {
			obj, err := rs.MarshalRow(i)
			if err != nil {
				yield(nil, fmt.Errorf("encoding row %d: %w", i, err))
				return
			}

			prefix := ",\n  "
			if i == 0 {
				prefix = "[\n  "
			}
			chunk := make([]byte, 0, len(prefix)+len(obj))
			chunk = append(chunk, prefix...)
			chunk = append(chunk, obj...)
			if !yield(chunk, nil) {
				return
			}
		}
		yield([]byte("\n]\n"), nil)
	}
}
