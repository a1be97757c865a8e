package database

// ScanRowSet reads every row into a RowSet, normalising values for display
// and export.
//
// Duplicate column names (SELECT a.id, b.id) collapse into one column kept at
// its first position; the value of the last occurrence wins.
//
// ScanRowSet always closes the Rows; callers do not need to call Close().
func ScanRowSet(rows Rows) (*RowSet, error) {
	defer rows.Close()

	reported, err := rows.Columns()
	if err != nil {
		return nil, errQuery("failed to read column names", err)
	}

	columns, target := dedupeColumns(reported)
	rs := &RowSet{Columns: columns, Rows: make([][]any, 0)}

	for rows.Next() {
		// Allocate scan targets as *any so the driver can write any type.
		dest := make([]any, len(reported))
		destPtrs := make([]any, len(reported))
		for i := range dest {
			destPtrs[i] = &dest[i]
		}

		if err := rows.Scan(destPtrs...); err != nil {
			return nil, errQuery("failed to scan row", err)
		}

		row := make([]any, len(columns))
		for i, v := range dest {
			row[target[i]] = NormalizeValue(v)
		}
		rs.Rows = append(rs.Rows, row)
	}

	if err := rows.Err(); err != nil {
		return nil, errQuery("error during row iteration", err)
	}

	return rs, nil
}

// dedupeColumns returns the unique column names in first-seen order and,
// for every reported position, the index of its unique column.
func dedupeColumns(reported []string) ([]string, []int) {
	columns := make([]string, 0, len(reported))
	target := make([]int, len(reported))
	seen := make(map[string]int, len(reported))

	for i, name := range reported {
		pos, ok := seen[name]
		if !ok {
			pos = len(columns)
			seen[name] = pos
			columns = append(columns, name)
		}
		target[i] = pos
	}
	return columns, target
}
