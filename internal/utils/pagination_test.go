package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		{"", 10, 10},
		{"42", 0, 42},
		{"-13", 1, -13},
		{"0012", 99, 12},
		{"x", 5, 5},
		{" 42", 7, 7},
		{"999999999999999999999999", -1, -1},
	}
	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestClampPage(t *testing.T) {
	cases := []struct {
		page, size, max    int
		wantPage, wantSize int
	}{
		{1, 50, 200, 1, 50},
		{0, 50, 200, 1, 50},
		{-3, 0, 200, 1, 1},
		{2, 500, 200, 2, 200},
		{4, 500, 0, 4, 500},
	}
	for _, tc := range cases {
		p, s := ClampPage(tc.page, tc.size, tc.max)
		if p != tc.wantPage || s != tc.wantSize {
			t.Fatalf("ClampPage(%d, %d, %d) = %d, %d; want %d, %d", tc.page, tc.size, tc.max, p, s, tc.wantPage, tc.wantSize)
		}
	}
}
