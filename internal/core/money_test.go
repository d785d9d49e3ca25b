package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out float64
	}{
		{"12.50", 12.5},
		{" 7 ", 7},
		{"0", 0},
		{"-3.25", -3.25},
		{"", 0},
		{"abc", 0},
		{"1,5", 1},
		{"12abc", 12},
		{"1_0", 1},
		{".5", 0.5},
		{"-.25x", -0.25},
		{"3.", 3},
		{"2e3", 2000},
		{"2e", 2},
		{"1e+x", 1},
		{"+4", 4},
		{"-", 0},
		{".", 0},
		{"0x10", 0},
		{"NaN", 0},
		{"Inf", 0},
		{"Infinity", 0},
		{"1e999", 0},
	}
	for i, tc := range cases {
		if got := ParseAmount(tc.in); got != tc.out {
			t.Fatalf("case %d: ParseAmount(%q) = %v, want %v", i, tc.in, got, tc.out)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := map[float64]string{
		10:    "10",
		12.5:  "12.5",
		0.1:   "0.1",
		-2.75: "-2.75",
	}
	for in, want := range cases {
		if got := FormatAmount(in); got != want {
			t.Fatalf("FormatAmount(%v) = %q, want %q", in, got, want)
		}
	}
}
