package database

import (
	"math/big"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeValue(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	uuidBytes := [16]byte{0x55, 0x0e, 0x84, 0x00, 0xe2, 0x9b, 0x41, 0xd4, 0xa7, 0x16, 0x44, 0x66, 0x55, 0x44, 0x00, 0x00}

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"int passthrough", int64(7), int64(7)},
		{"time passthrough", ts, ts},
		{"utf8 bytes", []byte("héllo"), "héllo"},
		{"binary bytes", []byte{0xff, 0x00}, "0xff00"},
		{"uuid array", uuidBytes, "550e8400-e29b-41d4-a716-446655440000"},
		{"invalid numeric", pgtype.Numeric{}, nil},
		{"nan numeric", pgtype.Numeric{NaN: true, Valid: true}, "NaN"},
		{"infinite numeric", pgtype.Numeric{InfinityModifier: pgtype.Infinity, Valid: true}, "Infinity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeValue(tt.in))
		})
	}
}

func TestNormalizeValue_Numeric(t *testing.T) {
	n := pgtype.Numeric{Int: big.NewInt(12345), Exp: -2, Valid: true}

	got := NormalizeValue(n)
	d, ok := got.(decimal.Decimal)
	if assert.True(t, ok) {
		assert.Equal(t, "123.45", d.String())
	}

	assert.Equal(t, "123.45", NormalizeValue(&n).(decimal.Decimal).String())
}
