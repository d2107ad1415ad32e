package docstore

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	_ "modernc.org/sqlite"
)

func newSQLStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	s := NewSQLStore(db)
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return s
}

func TestSQLRoundTrip(t *testing.T) {
	s := newSQLStore(t)
	ctx := context.Background()

	err := s.Set(ctx, "users/1", Doc{"username": "ann", "attemptsCount": 2, "completed": true}, false)
	if err != nil {
		t.Fatal(err)
	}
	d, err := s.Get(ctx, "users/1")
	if err != nil {
		t.Fatal(err)
	}
	if AsString(d["username"]) != "ann" {
		t.Fatalf("username lost in round trip: %+v", d)
	}
	// JSON storage comes back as float64; the accessor hides that.
	if n, ok := AsInt64(d["attemptsCount"]); !ok || n != 2 {
		t.Fatalf("attemptsCount = %v", d["attemptsCount"])
	}
	if !AsBool(d["completed"]) {
		t.Fatalf("bool lost in round trip: %+v", d)
	}
}

func TestSQLIncrementAndTimestamp(t *testing.T) {
	s := newSQLStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := s.Set(ctx, "users/1", Doc{
			"attemptsCount": Increment{By: 1},
			"lastAttemptAt": ServerTimestamp{},
		}, true)
		if err != nil {
			t.Fatal(err)
		}
	}
	d, _ := s.Get(ctx, "users/1")
	if n, _ := AsInt64(d["attemptsCount"]); n != 3 {
		t.Fatalf("attemptsCount = %d, want 3", n)
	}
	if _, ok := AsTime(d["lastAttemptAt"]); !ok {
		t.Fatalf("timestamp not readable after round trip: %v", d["lastAttemptAt"])
	}
}

func TestSQLUpdateIf(t *testing.T) {
	s := newSQLStore(t)
	ctx := context.Background()
	if err := s.Set(ctx, "attempts/1", Doc{"completed": false}, false); err != nil {
		t.Fatal(err)
	}

	ok, err := s.UpdateIf(ctx, "attempts/1", Doc{"completed": false}, Doc{"completed": true, "score": 60})
	if err != nil || !ok {
		t.Fatalf("first conditional write: ok=%v err=%v", ok, err)
	}
	ok, err = s.UpdateIf(ctx, "attempts/1", Doc{"completed": false}, Doc{"score": 0})
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("stale condition accepted")
	}
	d, _ := s.Get(ctx, "attempts/1")
	if n, _ := AsInt64(d["score"]); n != 60 {
		t.Fatalf("doc mutated by losing writer: %+v", d)
	}

	if _, err := s.UpdateIf(ctx, "attempts/404", Doc{}, Doc{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing doc: got %v, want ErrNotFound", err)
	}
}

func TestSQLListByParent(t *testing.T) {
	s := newSQLStore(t)
	ctx := context.Background()
	must := func(err error) {
		if err != nil {
			t.Fatal(err)
		}
	}
	must(s.Set(ctx, "quizzes/1/questions/1", Doc{"orderNum": 1}, false))
	must(s.Set(ctx, "quizzes/1/questions/2", Doc{"orderNum": 2}, false))
	must(s.Set(ctx, "quizzes/1/questions/1/options/0", Doc{"index": 0}, false))

	snaps, err := s.List(ctx, "quizzes/1/questions")
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Fatalf("got %d questions, want 2 (options must not leak in): %+v", len(snaps), snaps)
	}
}

func TestSQLAddAndDelete(t *testing.T) {
	s := newSQLStore(t)
	ctx := context.Background()

	id, err := s.Add(ctx, "attempts", Doc{"quizId": "1"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "attempts/"+id); err != nil {
		t.Fatalf("added doc missing: %v", err)
	}
	if err := s.Delete(ctx, "attempts/"+id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "attempts/"+id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("doc survived delete: %v", err)
	}
	if err := s.Delete(ctx, "attempts/ghost"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestSQLUpdateIfSingleWinner(t *testing.T) {
	s := newSQLStore(t)
	ctx := context.Background()
	if err := s.Set(ctx, "attempts/1", Doc{"completed": false, "attemptsCount": 0}, false); err != nil {
		t.Fatal(err)
	}

	// Racing completions: exactly one may pass the condition, or the
	// attempt counter double-increments.
	const racers = 8
	var wg sync.WaitGroup
	var wins int64
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.UpdateIf(ctx, "attempts/1",
				Doc{"completed": false},
				Doc{"completed": true, "attemptsCount": Increment{By: 1}})
			if err != nil {
				t.Error(err)
				return
			}
			if ok {
				atomic.AddInt64(&wins, 1)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("winners = %d, want 1", wins)
	}
	d, _ := s.Get(ctx, "attempts/1")
	if n, _ := AsInt64(d["attemptsCount"]); n != 1 {
		t.Fatalf("attemptsCount = %d, want 1", n)
	}
}

func TestPostgresStoreLocksConditionalReads(t *testing.T) {
	// Postgres runs at read-committed isolation, so the read inside
	// UpdateIf must take a row lock; sqlite serializes writers and
	// rejects the clause.
	if NewPostgresStore(nil).lockClause != " FOR UPDATE" {
		t.Fatal("postgres store does not lock conditional reads")
	}
	if NewSQLStore(nil).lockClause != "" {
		t.Fatal("sqlite store must not emit FOR UPDATE")
	}
}
