package market

import "testing"

func TestTapeNewestFirst(t *testing.T) {
	tape := NewTape(20)

	tape.Record(Trade{ID: "a", Time: 1, Price: 100, Amount: 0.1, Side: SideBuy})
	tape.Record(Trade{ID: "b", Time: 2, Price: 101, Amount: 0.2, Side: SideSell})
	tape.Record(Trade{ID: "c", Time: 3, Price: 102, Amount: 0.3, Side: SideBuy})

	recent := tape.Recent()
	if len(recent) != 3 {
		t.Fatalf("Expected 3 trades, got %d", len(recent))
	}
	if recent[0].ID != "c" || recent[2].ID != "a" {
		t.Errorf("Expected newest-first ordering, got %s..%s", recent[0].ID, recent[2].ID)
	}
}

func TestTapeEvictsOldest(t *testing.T) {
	tape := NewTape(3)

	for i := 0; i < 5; i++ {
		tape.Record(Trade{ID: string(rune('a' + i)), Time: int64(i)})
	}

	recent := tape.Recent()
	if len(recent) != 3 {
		t.Fatalf("Expected capacity 3, got %d", len(recent))
	}
	if recent[0].ID != "e" || recent[2].ID != "c" {
		t.Errorf("Expected e,d,c after eviction, got %s,%s,%s", recent[0].ID, recent[1].ID, recent[2].ID)
	}
}

func TestTapeRecentReturnsCopy(t *testing.T) {
	tape := NewTape(5)
	tape.Record(Trade{ID: "a"})

	recent := tape.Recent()
	recent[0].ID = "mutated"

	if tape.Recent()[0].ID != "a" {
		t.Error("Recent must return a copy, not the backing slice")
	}
}
