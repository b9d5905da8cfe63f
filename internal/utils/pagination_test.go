package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		// empty -> default
		{"", 10, 10},
		// valid ints
		{"42", 0, 42},
		{"-13", 1, -13},
		{"0012", 99, 12},
		// invalid -> default (no trim)
		{"x", 5, 5},
		{" 42", 7, 7},
		// overflow -> default
		{"999999999999999999999999", -1, -1},
	}

	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestParsePage(t *testing.T) {
	cases := []struct {
		page, size string
		want       Page
	}{
		{"", "", Page{1, 20}},
		{"3", "10", Page{3, 10}},
		{"0", "0", Page{1, 1}},
		{"-2", "500", Page{1, 100}},
		{"x", "y", Page{1, 20}},
	}
	for _, tc := range cases {
		if got := ParsePage(tc.page, tc.size, 20, 100); got != tc.want {
			t.Fatalf("ParsePage(%q, %q) = %+v; want %+v", tc.page, tc.size, got, tc.want)
		}
	}
}

func TestPage_TotalPagesAndHasNext(t *testing.T) {
	p := Page{Number: 2, Size: 10}
	if got := p.TotalPages(25); got != 3 {
		t.Fatalf("TotalPages(25) = %d", got)
	}
	if !p.HasNext(25) {
		t.Fatalf("expected a next page")
	}
	if p.HasNext(20) {
		t.Fatalf("page 2 of 2 has no next page")
	}
	if got := p.TotalPages(0); got != 0 {
		t.Fatalf("TotalPages(0) = %d", got)
	}
}
