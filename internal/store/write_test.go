package store

import (
	"context"
	"errors"
	"testing"

	"github.com/roach88/bpkit/internal/syncer"
)

func TestPut_Overwrites(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	if rev, err := s.Revision(ctx, "graph"); err != nil || rev != 0 {
		t.Fatalf("Revision() before write = %d, %v", rev, err)
	}
	for _, v := range []string{"v1", "v2", "v3"} {
		if err := s.Put(ctx, "graph", []byte(v)); err != nil {
			t.Fatalf("Put(%s) failed: %v", v, err)
		}
	}

	got, ok, err := s.Get(ctx, "graph")
	if err != nil || !ok {
		t.Fatalf("Get() = %v, %v", ok, err)
	}
	if string(got) != "v3" {
		t.Errorf("Get() = %q, want v3", got)
	}
	if rev, _ := s.Revision(ctx, "graph"); rev != 3 {
		t.Errorf("Revision() = %d, want 3", rev)
	}
}

func TestGet_Missing(t *testing.T) {
	s := createTestStore(t)
	v, ok, err := s.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if ok || v != nil {
		t.Errorf("Get() = %q, %v; want nil, false", v, ok)
	}
}

func TestAppend_SeqPerStream(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	appends := []struct {
		stream string
		want   int64
	}{
		{"changelog", 1},
		{"changelog", 2},
		{"audit", 1},
		{"changelog", 3},
		{"audit", 2},
	}
	for _, a := range appends {
		seq, err := s.Append(ctx, a.stream, []byte(a.stream))
		if err != nil {
			t.Fatalf("Append(%s) failed: %v", a.stream, err)
		}
		if seq != a.want {
			t.Errorf("Append(%s) seq = %d, want %d", a.stream, seq, a.want)
		}
	}

	records, err := s.Stream(ctx, "changelog")
	if err != nil {
		t.Fatalf("Stream() failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Stream() returned %d records, want 3", len(records))
	}
	for i, r := range records {
		if r.Seq != int64(i+1) {
			t.Errorf("records[%d].Seq = %d", i, r.Seq)
		}
	}
}

func TestStream_Empty(t *testing.T) {
	s := createTestStore(t)
	records, err := s.Stream(context.Background(), "changelog")
	if err != nil {
		t.Fatalf("Stream() failed: %v", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("Stream() = %#v, want empty slice", records)
	}
}

func TestBatch_Commits(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	err := s.Batch(ctx, func(tx syncer.Store) error {
		if err := tx.Put(ctx, "constitution/market", []byte("m")); err != nil {
			return err
		}
		if _, err := tx.Append(ctx, "changelog", []byte("e1")); err != nil {
			return err
		}
		// Reads inside the batch see its own writes.
		v, ok, err := tx.Get(ctx, "constitution/market")
		if err != nil || !ok || string(v) != "m" {
			t.Errorf("Get() inside batch = %q, %v, %v", v, ok, err)
		}
		records, err := tx.Stream(ctx, "changelog")
		if err != nil || len(records) != 1 {
			t.Errorf("Stream() inside batch = %v, %v", records, err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Batch() failed: %v", err)
	}

	if _, ok, _ := s.Get(ctx, "constitution/market"); !ok {
		t.Error("Put inside committed batch not visible")
	}
	if seq, _ := s.LastSeq(ctx, "changelog"); seq != 1 {
		t.Errorf("LastSeq() = %d, want 1", seq)
	}
}

func TestBatch_RollsBack(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	if err := s.Put(ctx, "deck", []byte("before")); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err := s.Batch(ctx, func(tx syncer.Store) error {
		if err := tx.Put(ctx, "deck", []byte("after")); err != nil {
			return err
		}
		if _, err := tx.Append(ctx, "changelog", []byte("e1")); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Batch() = %v, want boom", err)
	}

	v, _, _ := s.Get(ctx, "deck")
	if string(v) != "before" {
		t.Errorf("deck = %q after rollback, want before", v)
	}
	records, _ := s.Stream(ctx, "changelog")
	if len(records) != 0 {
		t.Errorf("changelog has %d records after rollback", len(records))
	}
}
