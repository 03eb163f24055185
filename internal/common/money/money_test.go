package money

import (
	"encoding/json"
	"testing"
)

func TestCoerce(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want Amount
		ok   bool
	}{
		{"float64", 150.5, 150.5, true},
		{"int", 150, 150, true},
		{"int64", int64(150), 150, true},
		{"numeric string", "150.50", 150.5, true},
		{"string with spaces", " 99 ", 99, true},
		{"json number", json.Number("42.25"), 42.25, true},
		{"empty string", "", 0, false},
		{"non-numeric string", "fifty", 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Coerce(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Coerce(%v) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestCoerceQuantity(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int
	}{
		{"int", 3, 3},
		{"float", 2.0, 2},
		{"string", "4", 4},
		{"nil defaults to one", nil, 1},
		{"zero defaults to one", 0, 1},
		{"negative defaults to one", -2, 1},
		{"garbage defaults to one", "many", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CoerceQuantity(tt.in); got != tt.want {
				t.Errorf("CoerceQuantity(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestGateway(t *testing.T) {
	tests := []struct {
		in   Amount
		want string
	}{
		{500, "500.00"},
		{150.5, "150.50"},
		{0.1, "0.10"},
		{1234.567, "1234.57"},
	}

	for _, tt := range tests {
		if got := tt.in.Gateway(); got != tt.want {
			t.Errorf("Amount(%v).Gateway() = %q, want %q", float64(tt.in), got, tt.want)
		}
	}
}
