package db

import (
	"context"
	"testing"

	"github.com/joeblew999/plat-ogc/internal/datasource"
)

func newStore(t *testing.T, cfg Config) *DataSourceStore {
	t.Helper()
	conn, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	s, err := NewDataSourceStore(context.Background(), conn)
	if err != nil {
		t.Fatalf("NewDataSourceStore: %v", err)
	}
	return s
}

func intp(v int) *int { return &v }

func TestDataSourceStore(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, Config{})

	roads := datasource.Options{
		ID:        intp(2),
		Name:      "roads",
		WFSURL:    "https://example.com/wfs",
		OGCLayers: []datasource.OGCLayer{{Name: "roads", Queryable: true}},
	}
	if err := s.Put(ctx, roads); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Put(ctx, datasource.Options{ID: intp(1), Name: "rivers"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	roads.Name = "roads v2"
	if err := s.Put(ctx, roads); err != nil {
		t.Fatalf("Put replace: %v", err)
	}

	all, err := s.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d rows want 2", len(all))
	}
	if *all[0].ID != 1 || *all[1].ID != 2 {
		t.Fatalf("rows not ordered by id: %d, %d", *all[0].ID, *all[1].ID)
	}
	if all[1].Name != "roads v2" || all[1].WFSURL != "https://example.com/wfs" || !all[1].OGCLayers[0].Queryable {
		t.Fatalf("unexpected row %+v", all[1])
	}

	if err := s.Delete(ctx, 2); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n, err := s.Count(ctx); err != nil || n != 1 {
		t.Fatalf("Count=%d err=%v want 1", n, err)
	}
}

func TestDataSourceStore_RequiresID(t *testing.T) {
	s := newStore(t, Config{})
	if err := s.Put(context.Background(), datasource.Options{Name: "x"}); err == nil {
		t.Fatalf("expected error without id")
	}
}

func TestDataSourceStore_OnDisk(t *testing.T) {
	ctx := context.Background()
	cfg := Config{DataDir: t.TempDir(), DBName: "test"}

	conn, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s, err := NewDataSourceStore(ctx, conn)
	if err != nil {
		t.Fatalf("NewDataSourceStore: %v", err)
	}
	if err := s.Put(ctx, datasource.Options{ID: intp(7), Name: "kept"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	conn.Close()

	s = newStore(t, cfg)
	all, err := s.LoadAll(ctx)
	if err != nil || len(all) != 1 || all[0].Name != "kept" {
		t.Fatalf("reopen: rows=%+v err=%v", all, err)
	}
}
