package utils

import (
	"testing"
	"time"
)

func TestDayWindow(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	ts := time.Date(2024, 1, 10, 23, 30, 0, 0, loc)

	from, to := DayWindow(ts, loc)
	if !from.Equal(time.Date(2024, 1, 10, 0, 0, 0, 0, loc)) {
		t.Fatalf("unexpected start %v", from)
	}
	if !to.Equal(time.Date(2024, 1, 11, 0, 0, 0, 0, loc)) {
		t.Fatalf("unexpected end %v", to)
	}
}

func TestDayWindowConvertsIntoLocation(t *testing.T) {
	loc := time.FixedZone("WIB", 7*3600)
	// 20:00 UTC on the 10th is already the 11th in WIB.
	ts := time.Date(2024, 1, 10, 20, 0, 0, 0, time.UTC)

	from, _ := DayWindow(ts, loc)
	if got := FormatDate(from, loc); got != "2024-01-11" {
		t.Fatalf("expected 2024-01-11, got %s", got)
	}
}

func TestParseTimestampLayouts(t *testing.T) {
	for _, in := range []string{"2024-01-12", "2024-01-12 08:15:00", "2024-01-12T08:15:00Z"} {
		if _, err := ParseTimestamp(in, time.UTC); err != nil {
			t.Errorf("ParseTimestamp(%q): %v", in, err)
		}
	}
	if _, err := ParseTimestamp("12/01/2024", time.UTC); err == nil {
		t.Fatal("expected error for unknown layout")
	}
}

func TestUniqueVehicleNumbersAndChunk(t *testing.T) {
	got := UniqueVehicleNumbers([]string{" B2 ", "B1", "", "B2", "B3"})
	if len(got) != 3 || got[0] != "B1" || got[1] != "B2" || got[2] != "B3" {
		t.Fatalf("unexpected dedupe result %v", got)
	}

	chunks := Chunk([]int{1, 2, 3, 4, 5}, 2)
	if len(chunks) != 3 || len(chunks[2]) != 1 {
		t.Fatalf("unexpected chunks %v", chunks)
	}
}
