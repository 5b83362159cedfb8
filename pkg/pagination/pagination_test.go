package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNormalizeLimit(t *testing.T) {
	cases := map[int]int{
		-1:  DefaultLimit,
		0:   DefaultLimit,
		10:  10,
		100: 100,
		500: MaxLimit,
	}
	for in, want := range cases {
		if got := NormalizeLimit(in); got != want {
			t.Fatalf("NormalizeLimit(%d) = %d, want %d", in, got, want)
		}
	}
	if got := LimitWithBuffer(0); got != DefaultLimit+1 {
		t.Fatalf("expected buffered default limit, got %d", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	want := Cursor{
		CreatedAt: time.Date(2026, 3, 1, 9, 30, 0, 123456789, time.UTC),
		ID:        uuid.New(),
	}
	got, err := ParseCursor(EncodeCursor(want))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.ID != want.ID {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, want)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	for _, raw := range []string{"%%%", "bm8tc2VwYXJhdG9y", "not-a-cursor"} {
		if _, err := ParseCursor(raw); err == nil {
			t.Fatalf("expected %q to be rejected", raw)
		}
	}
	cursor, err := ParseCursor("   ")
	if err != nil || cursor != nil {
		t.Fatalf("blank cursor means first page, got %+v err=%v", cursor, err)
	}
}

type row struct {
	id        uuid.UUID
	createdAt time.Time
}

func rowKey(r row) Cursor {
	return Cursor{CreatedAt: r.createdAt, ID: r.id}
}

func TestTrim(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]row, 0, 4)
	for i := 0; i < 4; i++ {
		rows = append(rows, row{id: uuid.New(), createdAt: base.Add(-time.Duration(i) * time.Minute)})
	}

	page, next := Trim(rows, 3, rowKey)
	if len(page) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(page))
	}
	cursor, err := ParseCursor(next)
	if err != nil || cursor == nil {
		t.Fatalf("expected next cursor, got %q err=%v", next, err)
	}
	if cursor.ID != rows[2].id {
		t.Fatalf("next cursor must point at the last returned row")
	}

	page, next = Trim(rows[:3], 3, rowKey)
	if len(page) != 3 || next != "" {
		t.Fatalf("full last page must not produce a cursor, got %q", next)
	}
}
