package database

import (
	"encoding/hex"
	"math/big"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// NormalizeValue converts driver-native values into plain scalars that
// encode predictably as JSON and CSV:
//
//   - []byte becomes a string (hex with a 0x prefix when not valid UTF-8)
//   - 16-byte arrays (pgx uuid) become canonical UUID strings
//   - pgtype.Numeric becomes a decimal.Decimal, or nil / "NaN" / "Infinity"
//
// Everything else is returned unchanged.
func NormalizeValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		if utf8.Valid(x) {
			return string(x)
		}
		return "0x" + hex.EncodeToString(x)
	case [16]byte:
		return uuid.UUID(x).String()
	case pgtype.Numeric:
		return numericValue(x)
	case *pgtype.Numeric:
		if x == nil {
			return nil
		}
		return numericValue(*x)
	default:
		return v
	}
}

func numericValue(n pgtype.Numeric) any {
	switch {
	case !n.Valid:
		return nil
	case n.NaN:
		return "NaN"
	case n.InfinityModifier == pgtype.Infinity:
		return "Infinity"
	case n.InfinityModifier == pgtype.NegativeInfinity:
		return "-Infinity"
	}
	i := n.Int
	if i == nil {
		i = new(big.Int)
	}
	return decimal.NewFromBigInt(i, n.Exp)
}
