package docstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fixedClock() func() time.Time {
	t := time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func TestSetMergeAndReplace(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Set(ctx, "users/1", Doc{"name": "ann", "role": "student"}, false); err != nil {
		t.Fatal(err)
	}
	if err := s.Set(ctx, "users/1", Doc{"role": "teacher"}, true); err != nil {
		t.Fatal(err)
	}
	d, err := s.Get(ctx, "users/1")
	if err != nil {
		t.Fatal(err)
	}
	if d["name"] != "ann" || d["role"] != "teacher" {
		t.Fatalf("merge lost fields: %+v", d)
	}

	if err := s.Set(ctx, "users/1", Doc{"role": "student"}, false); err != nil {
		t.Fatal(err)
	}
	d, _ = s.Get(ctx, "users/1")
	if _, ok := d["name"]; ok {
		t.Fatalf("replace kept stale field: %+v", d)
	}
}

func TestIncrementSentinel(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	// Increment on a missing field starts from zero.
	if err := s.Set(ctx, "users/1", Doc{"attemptsCount": Increment{By: 1}}, true); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := s.Set(ctx, "users/1", Doc{"attemptsCount": Increment{By: 1}}, true); err != nil {
			t.Fatal(err)
		}
	}
	d, _ := s.Get(ctx, "users/1")
	if n, _ := AsInt64(d["attemptsCount"]); n != 3 {
		t.Fatalf("attemptsCount = %d, want 3", n)
	}
}

func TestServerTimestampSentinel(t *testing.T) {
	s := NewMemoryStoreWithClock(fixedClock())
	ctx := context.Background()
	if err := s.Set(ctx, "attempts/1", Doc{"startTime": ServerTimestamp{}}, true); err != nil {
		t.Fatal(err)
	}
	d, _ := s.Get(ctx, "attempts/1")
	ts, ok := AsTime(d["startTime"])
	if !ok || !ts.Equal(fixedClock()()) {
		t.Fatalf("startTime = %v, want store clock", d["startTime"])
	}
}

func TestUpdateIf(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Set(ctx, "attempts/1", Doc{"completed": false}, false); err != nil {
		t.Fatal(err)
	}

	ok, err := s.UpdateIf(ctx, "attempts/1", Doc{"completed": false}, Doc{"completed": true, "score": 80})
	if err != nil || !ok {
		t.Fatalf("first conditional write: ok=%v err=%v", ok, err)
	}
	// Condition no longer holds; second writer must lose.
	ok, err = s.UpdateIf(ctx, "attempts/1", Doc{"completed": false}, Doc{"score": 999})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("conditional write succeeded against stale condition")
	}
	d, _ := s.Get(ctx, "attempts/1")
	if n, _ := AsInt64(d["score"]); n != 80 {
		t.Fatalf("losing writer mutated the doc: %+v", d)
	}

	if _, err := s.UpdateIf(ctx, "nope/1", Doc{}, Doc{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing doc: got %v, want ErrNotFound", err)
	}
}

func TestUpdateIfNumericTolerance(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	// A JSON round trip stores numbers as float64; conditions carry int64.
	if err := s.Set(ctx, "users/1", Doc{"bestScore": float64(40)}, false); err != nil {
		t.Fatal(err)
	}
	ok, err := s.UpdateIf(ctx, "users/1", Doc{"bestScore": int64(40)}, Doc{"bestScore": 90})
	if err != nil || !ok {
		t.Fatalf("numeric condition did not match across types: ok=%v err=%v", ok, err)
	}
}

func TestUpdateRequiresExisting(t *testing.T) {
	s := NewMemoryStore()
	err := s.Update(context.Background(), "users/1", Doc{"x": 1})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestListDirectChildrenOnly(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	must := func(err error) {
		if err != nil {
			t.Fatal(err)
		}
	}
	must(s.Set(ctx, "attempts/a", Doc{"n": 1}, false))
	must(s.Set(ctx, "attempts/b", Doc{"n": 2}, false))
	must(s.Set(ctx, "attempts/a/answers/q1", Doc{"selectedId": "0"}, false))

	snaps, err := s.List(ctx, "attempts")
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Fatalf("got %d docs, want the 2 direct children: %+v", len(snaps), snaps)
	}
	for _, sn := range snaps {
		if sn.ID != "a" && sn.ID != "b" {
			t.Fatalf("unexpected child id %q", sn.ID)
		}
	}

	snaps, err = s.List(ctx, "attempts/a/answers")
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 1 || snaps[0].ID != "q1" {
		t.Fatalf("subcollection listing wrong: %+v", snaps)
	}
}

func TestAddAssignsIDs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id1, err := s.Add(ctx, "attempts", Doc{"n": 1})
	if err != nil {
		t.Fatal(err)
	}
	id2, err := s.Add(ctx, "attempts", Doc{"n": 2})
	if err != nil {
		t.Fatal(err)
	}
	if id1 == "" || id1 == id2 {
		t.Fatalf("ids not unique: %q %q", id1, id2)
	}
	if _, err := s.Get(ctx, "attempts/"+id1); err != nil {
		t.Fatalf("added doc not readable: %v", err)
	}
}

func TestDeleteMissingIsNoError(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Delete(context.Background(), "users/ghost"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	if err := s.Set(ctx, "users/1", Doc{"name": "ann"}, false); err != nil {
		t.Fatal(err)
	}
	d, _ := s.Get(ctx, "users/1")
	d["name"] = "mutated"
	d2, _ := s.Get(ctx, "users/1")
	if d2["name"] != "ann" {
		t.Fatal("caller mutation leaked into the store")
	}
}

func TestPathHelpers(t *testing.T) {
	p := Join("quizzes", "1", "questions", "5")
	if p != "quizzes/1/questions/5" {
		t.Fatalf("Join = %q", p)
	}
	if Parent(p) != "quizzes/1/questions" {
		t.Fatalf("Parent = %q", Parent(p))
	}
	if ID(p) != "5" {
		t.Fatalf("ID = %q", ID(p))
	}
}
