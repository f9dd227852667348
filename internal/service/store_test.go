package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-ogc/internal/datasource"
)

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested")
	s := NewFileStore(dir)

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "missing file is an empty store")

	o := opts(2, "roads")
	o.WFSURL = "http://x/wfs"
	o.OGCLayers = []datasource.OGCLayer{{Name: "roads", Queryable: true, MaxResolution: floatp(10)}}
	require.NoError(t, s.Put(ctx, o))
	require.NoError(t, s.Put(ctx, opts(1, "rivers")))
	require.NoError(t, s.Put(ctx, opts(1, "rivers v2")))

	all, err = NewFileStore(dir).LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 1, *all[0].ID)
	assert.Equal(t, "rivers v2", all[0].Name)
	assert.Equal(t, "http://x/wfs", all[1].WFSURL)
	assert.Equal(t, 10.0, *all[1].OGCLayers[0].MaxResolution)

	require.NoError(t, s.Delete(ctx, 1))
	require.NoError(t, s.Delete(ctx, 1))
	all, err = s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = os.Stat(filepath.Join(dir, "datasources.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileStore_Invalid(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFileStore(dir)

	require.ErrorIs(t, s.Put(ctx, datasource.Options{Name: "x"}), datasource.ErrInvalidConfig)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "datasources.json"), []byte("{not json"), 0644))
	_, err := s.LoadAll(ctx)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "datasources.json"), []byte(`{"1":{"name":"x"}}`), 0644))
	_, err = s.LoadAll(ctx)
	require.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Put(ctx, opts(3, "c")))
	require.NoError(t, s.Put(ctx, opts(1, "a")))
	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 1, *all[0].ID)
	require.NoError(t, s.Delete(ctx, 3))
	all, _ = s.LoadAll(ctx)
	assert.Len(t, all, 1)
}

func TestEventBus(t *testing.T) {
	b := NewEventBus()
	a, c := b.Subscribe(), b.Subscribe()
	assert.Equal(t, 2, b.Subscribers())

	b.Publish(Event{Resource: ResourceDataSources, Action: ActionCreated, ID: "1"})
	assert.Equal(t, "1", (<-a).ID)
	assert.Equal(t, "1", (<-c).ID)

	b.Unsubscribe(a)
	b.Unsubscribe(a)
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, b.Subscribers())

	// a full subscriber is skipped rather than blocking the publisher
	for i := 0; i < 32; i++ {
		b.Publish(Event{ID: "x"})
	}
	assert.Len(t, c, cap(c))

	var nilBus *EventBus
	nilBus.Publish(Event{})
}
