package storage

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/LJTian/RiverReport/internal/processor"
)

func TestNormalizeSiteCode(t *testing.T) {
	cases := map[string]string{
		"01427000":        "01427000",
		" 1427000 ":       "01427000",
		"14":              "00000014",
		"014270001234567": "014270001234567",
		"":                "",
		"0142700A":        "",
		"0142700012":      "",
	}
	for in, want := range cases {
		if got := NormalizeSiteCode(in); got != want {
			t.Fatalf("NormalizeSiteCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestReportRowsRoundTripKeepsOrderAndFlags(t *testing.T) {
	records := []processor.Record{
		{Source: "A", Title: "one", Link: "/1"},
		{Source: "B", Title: processor.FallbackTitle("B"), Link: "https://b.example/", Fallback: true},
	}
	rows := toReportRows(records)
	if rows[0].Position != 0 || rows[1].Position != 1 {
		t.Fatalf("positions = %d,%d", rows[0].Position, rows[1].Position)
	}
	if rows[0].RecordID != records[0].ID() {
		t.Fatalf("RecordID not derived from record")
	}
	back := fromReportRows(rows)
	for i := range records {
		if back[i] != records[i] {
			t.Fatalf("row %d: got %+v, want %+v", i, back[i], records[i])
		}
	}
}

func TestReportRowsClampColumns(t *testing.T) {
	long := strings.Repeat("鱼", 700)
	rows := toReportRows([]processor.Record{{Source: "A", Title: long, Summary: long + "\xff"}})
	if n := utf8.RuneCountInString(rows[0].Summary); n != summaryColumnLimit {
		t.Fatalf("summary runes = %d, want %d", n, summaryColumnLimit)
	}
	if n := utf8.RuneCountInString(rows[0].Title); n != 512 {
		t.Fatalf("title runes = %d, want 512", n)
	}
	rows = toReportRows([]processor.Record{{Source: "A", Title: "t", Date: "May 1 \x96 2024", Link: "/a/\xff"}})
	if !utf8.ValidString(rows[0].Date) || !utf8.ValidString(rows[0].Link) {
		t.Fatalf("date/link must be valid UTF-8: %q %q", rows[0].Date, rows[0].Link)
	}
	if rows[0].Date != "May 1 \uFFFD 2024" || rows[0].Link != "/a/\uFFFD" {
		t.Fatalf("invalid bytes should become U+FFFD: %q %q", rows[0].Date, rows[0].Link)
	}
	if !utf8.ValidString(toValidUTF8("bad\xffbyte")) {
		t.Fatalf("toValidUTF8 should produce valid UTF-8")
	}
}

func TestPassLimit(t *testing.T) {
	cases := map[int]int{-1: 20, 0: 20, 1: 1, 50: 50, 500: 500, 501: 500, 1000: 500}
	for in, want := range cases {
		if got := passLimit(in); got != want {
			t.Fatalf("passLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
