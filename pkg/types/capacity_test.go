package types

import (
	"errors"
	"math"
	"testing"
)

func TestParseCKB(t *testing.T) {
	tests := []struct {
		input   string
		want    uint64
		wantErr error
	}{
		{"0", 0, nil},
		{"61", 6_100_000_000, nil},
		{"100.5", 10_050_000_000, nil},
		{"0.001", 100_000, nil},
		{"0.00000001", 1, nil},
		{" 42 ", 4_200_000_000, nil},
		{"", 0, ErrInvalidAmount},
		{"-1", 0, ErrInvalidAmount},
		{"+1", 0, ErrInvalidAmount},
		{"1.", 0, ErrInvalidAmount},
		{".5", 0, ErrInvalidAmount},
		{"1.123456789", 0, ErrInvalidAmount},
		{"abc", 0, ErrInvalidAmount},
		{"1e5", 0, ErrInvalidAmount},
		{"1.-5", 0, ErrInvalidAmount},
		{"184467440738", 0, ErrCapacityOverflow},
		{"99999999999999999999", 0, ErrCapacityOverflow},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCKB(tt.input)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseCKB(%q) error = %v, want %v", tt.input, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCKB(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseCKB(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatCKB(t *testing.T) {
	tests := []struct {
		shannons uint64
		want     string
	}{
		{0, "0"},
		{50_000_000_000, "500"},
		{100_000, "0.001"},
		{39_900_000_000, "399"},
		{1, "0.00000001"},
		{12_345_678_900, "123.456789"},
	}
	for _, tt := range tests {
		if got := FormatCKB(tt.shannons); got != tt.want {
			t.Errorf("FormatCKB(%d) = %q, want %q", tt.shannons, got, tt.want)
		}
		back, err := ParseCKB(tt.want)
		if err != nil || back != tt.shannons {
			t.Errorf("ParseCKB(FormatCKB(%d)) = %d, %v", tt.shannons, back, err)
		}
	}
}

func TestOccupiedCapacity(t *testing.T) {
	lock := Lock{CodeHash: Hash{0x01}, HashType: HashTypeType, Args: make([]byte, Blake160Size)}
	if got := OccupiedCapacity(lock, 0); got != MinCellCapacity {
		t.Errorf("OccupiedCapacity(default lock) = %d, want %d", got, MinCellCapacity)
	}
	if got := OccupiedCapacity(lock, 10); got != MinCellCapacity+10*ShannonsPerCKB {
		t.Errorf("OccupiedCapacity with data = %d", got)
	}
	cell := Cell{Lock: lock, Data: []byte{1, 2}}
	if cell.OccupiedCapacity() != 63*ShannonsPerCKB {
		t.Errorf("Cell.OccupiedCapacity() = %d", cell.OccupiedCapacity())
	}
}

func TestSumCapacity(t *testing.T) {
	total, err := SumCapacity(1, 2, 3)
	if err != nil || total != 6 {
		t.Errorf("SumCapacity = %d, %v", total, err)
	}
	if _, err := SumCapacity(math.MaxUint64, 1); !errors.Is(err, ErrCapacityOverflow) {
		t.Errorf("expected overflow, got %v", err)
	}
	if _, err := AddCapacity(math.MaxUint64-1, 1); err != nil {
		t.Errorf("AddCapacity at the edge: %v", err)
	}
}
