package utils

import (
	"math"
	"testing"
)

func TestAtoiDefault(t *testing.T) {
	for in, want := range map[string]int{
		"":                           7,
		"3":                          3,
		"-2":                         -2,
		"007":                        7,
		"ten":                        7,
		" 4":                         7, // query values are not trimmed
		"4.5":                        7,
		"1e3":                        7,
		"9" + "99999999999999999999": 7,
	} {
		if got := AtoiDefault(in, 7); got != want {
			t.Fatalf("AtoiDefault(%q, 7) = %d; want %d", in, got, want)
		}
	}
}

func TestPaginate(t *testing.T) {
	cases := []struct {
		name          string
		page, limit   int
		def, maxLimit int
		want          Page
	}{
		{"first request", 0, 0, 20, 100, Page{Page: 1, Limit: 20}},
		{"oversized limit", 2, 5000, 20, 100, Page{Page: 2, Limit: 100, Offset: 100}},
		{"negative page", -4, 10, 20, 100, Page{Page: 1, Limit: 10}},
		{"deep page", 5, 25, 20, 100, Page{Page: 5, Limit: 25, Offset: 100}},
		{"default above max", 1, 0, 500, 50, Page{Page: 1, Limit: 50}},
		{"bad default", 1, 0, 0, 30, Page{Page: 1, Limit: 30}},
		{"bad max", 3, 9, 20, 0, Page{Page: 3, Limit: 1, Offset: 2}},
		{"page would overflow offset", math.MaxInt / 10, 20, 20, 100, Page{Page: math.MaxInt / 20, Limit: 20, Offset: (math.MaxInt/20 - 1) * 20}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Paginate(tc.page, tc.limit, tc.def, tc.maxLimit); got != tc.want {
				t.Fatalf("Paginate(%d, %d, %d, %d) = %+v; want %+v",
					tc.page, tc.limit, tc.def, tc.maxLimit, got, tc.want)
			}
			if got := Paginate(tc.page, tc.limit, tc.def, tc.maxLimit); got.Offset < 0 {
				t.Fatalf("negative offset %d", got.Offset)
			}
		})
	}
}

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total int64
		limit int
		want  int
	}{
		{0, 20, 0},
		{-1, 20, 0},
		{1, 20, 1},
		{20, 20, 1},
		{21, 20, 2},
		{1000, 7, 143},
		{5, 0, 0},
	}
	for _, tc := range cases {
		if got := TotalPages(tc.total, tc.limit); got != tc.want {
			t.Fatalf("TotalPages(%d, %d) = %d; want %d", tc.total, tc.limit, got, tc.want)
		}
	}
}
