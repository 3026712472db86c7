package core

import (
	"encoding/json"
	"testing"
)

func TestParseDecimalToKobo(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"1.004", 100, true},
		{" 2.50 ", 250, true},
		{"12500", 1250000, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
	}
	for i, tc := range cases {
		got, err := ParseDecimalToKobo(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("case %d (%q) expected ok, got %v", i, tc.in, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d (%q) expected error", i, tc.in)
		}
		if tc.ok && got != tc.out {
			t.Fatalf("case %d (%q) expected %d, got %d", i, tc.in, tc.out, got)
		}
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Kobo: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Kobo: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
	if err := (Money{Kobo: -100}).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		kobo int64
		want string
	}{
		{12500, "125"},
		{12550, "125.5"},
		{12505, "125.05"},
		{1, "0.01"},
		{0, "0"},
		{-12550, "-125.5"},
	}
	for _, tc := range cases {
		if got := (Money{Kobo: tc.kobo}).String(); got != tc.want {
			t.Fatalf("String(%d) = %q, want %q", tc.kobo, got, tc.want)
		}
	}
}

func TestFormatNaira(t *testing.T) {
	cases := []struct {
		kobo int64
		want string
	}{
		{1250000, "₦12,500.00"},
		{12345, "₦123.45"},
		{100, "₦1.00"},
		{-100, "-₦1.00"},
	}
	for _, tc := range cases {
		if got := FormatNaira(tc.kobo); got != tc.want {
			t.Fatalf("FormatNaira(%d) = %q, want %q", tc.kobo, got, tc.want)
		}
	}
}

func TestMoneyJSONRoundTrip(t *testing.T) {
	in := Money{Kobo: 1000000}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "10000" {
		t.Fatalf("expected plain Naira number, got %s", data)
	}
	var out Money
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Kobo != in.Kobo {
		t.Fatalf("round trip: got %d kobo, want %d", out.Kobo, in.Kobo)
	}
}

func TestMoneyUnmarshalTolerant(t *testing.T) {
	cases := []struct {
		in   string
		kobo int64
	}{
		{"0", 0},           // paid balance
		{"-50", -5000},     // server-side corrections
		{`"125.5"`, 12550}, // numeric string
		{"1e4", 1000000},   // scientific notation
		{"null", 0},
	}
	for _, tc := range cases {
		var m Money
		if err := json.Unmarshal([]byte(tc.in), &m); err != nil {
			t.Fatalf("unmarshal %q: %v", tc.in, err)
		}
		if m.Kobo != tc.kobo {
			t.Fatalf("unmarshal %q: got %d kobo, want %d", tc.in, m.Kobo, tc.kobo)
		}
	}
}

func TestMoneySub(t *testing.T) {
	got := Money{Kobo: 1000}.Sub(Money{Kobo: 300})
	if got.Kobo != 700 {
		t.Fatalf("expected 700, got %d", got.Kobo)
	}
	if !(Money{}).IsZero() {
		t.Fatalf("zero money should report IsZero")
	}
}
