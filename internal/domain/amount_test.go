package domain

import "testing"

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   uint64
		decimals uint8
		want     string
	}{
		{name: "whole units", amount: 1_000_000_000, decimals: 9, want: "1"},
		{name: "fractional", amount: 1_500_000_000, decimals: 9, want: "1.5"},
		{name: "dust", amount: 400, decimals: 9, want: "0.0000004"},
		{name: "zero", amount: 0, decimals: 9, want: "0"},
		{name: "no decimals", amount: 42, decimals: 0, want: "42"},
		{name: "max uint64", amount: ^uint64(0), decimals: 0, want: "18446744073709551615"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatAmount(tt.amount, tt.decimals)
			if got != tt.want {
				t.Errorf("FormatAmount(%d, %d) = %q, want %q", tt.amount, tt.decimals, got, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		decimals uint8
		want     uint64
		wantErr  bool
	}{
		{name: "whole", input: "1", decimals: 9, want: 1_000_000_000},
		{name: "fraction", input: "0.0000004", decimals: 9, want: 400},
		{name: "excess precision", input: "0.0000000001", decimals: 9, wantErr: true},
		{name: "negative", input: "-1", decimals: 0, wantErr: true},
		{name: "overflow", input: "18446744073709551616", decimals: 0, wantErr: true},
		{name: "garbage", input: "abc", decimals: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.input, tt.decimals)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseAmount(%q) expected error, got %d", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseAmount(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}
