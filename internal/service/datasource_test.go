package service

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-ogc/internal/datasource"
	"github.com/joeblew999/plat-ogc/internal/ogc"
)

func intp(v int) *int { return &v }
func floatp(v float64) *float64 { return &v }

func opts(id int, name string) datasource.Options {
	return datasource.Options{ID: intp(id), Name: name}
}

func queryable(id int, wfs, wms string, layers ...string) datasource.Options {
	o := opts(id, "ds")
	o.WFSURL = wfs
	o.WMSURL = wms
	o.Visible = true
	for _, l := range layers {
		o.OGCLayers = append(o.OGCLayers, datasource.OGCLayer{Name: l, Queryable: true})
	}
	return o
}

type fakeRecorder struct {
	mu                      sync.Mutex
	total, visible, inRange int
	syncs                   []int
}

func (r *fakeRecorder) SetDataSources(total, visible, inRange int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total, r.visible, r.inRange = total, visible, inRange
}

func (r *fakeRecorder) ObserveSync(changed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncs = append(r.syncs, changed)
}

func TestRegister_AllOrNothing(t *testing.T) {
	s := NewDataSourceService(nil, nil, nil)
	require.NoError(t, s.Register(opts(1, "a")))

	err := s.Register(opts(2, "b"), opts(1, "dup"))
	require.ErrorIs(t, err, ErrDuplicate)
	_, err = s.Get(2)
	require.ErrorIs(t, err, ErrNotFound, "partial registration must be rolled back")

	err = s.Register(opts(3, "c"), datasource.Options{Name: "no id"})
	require.ErrorIs(t, err, datasource.ErrInvalidConfig)
	assert.Len(t, s.List(), 1)

	require.ErrorIs(t, s.Register(opts(4, "x"), opts(4, "y")), ErrDuplicate)
}

func TestCreateDelete_Persists(t *testing.T) {
	ctx := context.Background()
	store := NewFileStore(t.TempDir())
	bus := NewEventBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	s := NewDataSourceService(store, bus, nil)
	require.NoError(t, s.Register(opts(1, "catalog")))

	view, err := s.Create(ctx, queryable(10, "http://x/wfs", "", "roads"))
	require.NoError(t, err)
	assert.Equal(t, 10, view.ID)
	assert.True(t, view.Queryable)
	assert.Equal(t, []string{"roads"}, view.QueryableLayers)

	ev := <-ch
	assert.Equal(t, Event{Resource: ResourceDataSources, Action: ActionCreated, ID: "10"}, ev)

	_, err = s.Create(ctx, opts(1, "dup"))
	require.ErrorIs(t, err, ErrDuplicate)

	stored, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, 10, *stored[0].ID)

	// a fresh registry restores the persisted entry next to the catalog
	s2 := NewDataSourceService(store, nil, nil)
	require.NoError(t, s2.Register(opts(1, "catalog")))
	n, err := s2.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, s2.List(), 2)

	require.NoError(t, s.Delete(ctx, 10))
	ev = <-ch
	assert.Equal(t, ActionDeleted, ev.Action)
	stored, err = store.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, stored)

	require.ErrorIs(t, s.Delete(ctx, 10), ErrNotFound)
	require.NoError(t, s.Delete(ctx, 1), "catalog entries can be deleted without touching the store")
}

func TestRestore_CatalogWins(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, opts(1, "stored")))
	require.NoError(t, store.Put(ctx, opts(2, "stored")))

	s := NewDataSourceService(store, nil, nil)
	require.NoError(t, s.Register(opts(1, "catalog")))
	n, err := s.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	v, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "catalog", v.Name)
}

func TestList_SortedByID(t *testing.T) {
	s := NewDataSourceService(nil, nil, nil)
	require.NoError(t, s.Register(opts(3, "c"), opts(1, "a"), opts(2, "b")))
	var ids []int
	for _, v := range s.List() {
		ids = append(ids, v.ID)
	}
	assert.Equal(t, []int{1, 2, 3}, ids)
}

func TestSetVisible(t *testing.T) {
	bus := NewEventBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)
	rec := &fakeRecorder{}

	s := NewDataSourceService(nil, bus, nil).WithRecorder(rec)
	require.NoError(t, s.Register(opts(1, "a")))

	v, err := s.SetVisible(1, true)
	require.NoError(t, err)
	assert.True(t, v.Visible)
	assert.Equal(t, Event{Resource: ResourceDataSources, Action: ActionVisible, ID: "1", Data: true}, <-ch)
	assert.Equal(t, 1, rec.visible)

	_, err = s.SetVisible(1, true)
	require.NoError(t, err)
	select {
	case e := <-ch:
		t.Fatalf("unchanged visibility must not publish, got %+v", e)
	default:
	}

	_, err = s.SetVisible(9, true)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSyncResolution(t *testing.T) {
	rec := &fakeRecorder{}
	bus := NewEventBus()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	s := NewDataSourceService(nil, bus, nil).WithRecorder(rec)
	bounded := opts(1, "bounded")
	bounded.MinResolution = floatp(5)
	bounded.MaxResolution = floatp(10)
	maxOnly := opts(2, "max only")
	maxOnly.MaxResolution = floatp(2)
	require.NoError(t, s.Register(bounded, maxOnly, opts(3, "static")))

	cases := []struct {
		res     float64
		changed []int
		inRange map[int]bool
	}{
		{7, []int{2}, map[int]bool{1: true, 2: false, 3: true}},
		{10, []int{}, map[int]bool{1: true, 2: false, 3: true}},
		{10.001, []int{1}, map[int]bool{1: false, 2: false, 3: true}},
		{5, []int{1}, map[int]bool{1: true, 2: false, 3: true}},
		{1, []int{1, 2}, map[int]bool{1: false, 2: true, 3: true}},
	}
	for _, tc := range cases {
		got := s.SyncResolution(tc.res)
		assert.Equal(t, tc.changed, got, "res=%v", tc.res)
		for id, want := range tc.inRange {
			v, err := s.Get(id)
			require.NoError(t, err)
			assert.Equal(t, want, v.InRange, "res=%v id=%d", tc.res, id)
		}
		for range got {
			ev := <-ch
			assert.Equal(t, ActionInRange, ev.Action)
		}
	}
	assert.Equal(t, []int{1, 0, 1, 1, 2}, rec.syncs)
	assert.Equal(t, 3, rec.total)
}

func TestInRangeLayers(t *testing.T) {
	s := NewDataSourceService(nil, nil, nil)
	o := opts(1, "a")
	o.OGCLayers = []datasource.OGCLayer{
		{Name: "a", Queryable: true, MinResolution: floatp(1), MaxResolution: floatp(10)},
		{Name: "b", MinResolution: floatp(1), MaxResolution: floatp(10)},
	}
	require.NoError(t, s.Register(o))

	got, err := s.InRangeLayers(1, 7, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got)

	got, err = s.InRangeLayers(1, 7, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	_, err = s.InRangeLayers(2, 7, false)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCombinable(t *testing.T) {
	s := NewDataSourceService(nil, nil, nil)
	require.NoError(t, s.Register(
		queryable(1, "http://x/wfs", "http://x/wms", "a"),
		queryable(2, "http://x/wfs", "http://y/wms", "b"),
	))

	ok, err := s.Combinable(1, 2, ServiceWFS)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Combinable(1, 2, ServiceWMS)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Combinable(1, 3, ServiceWFS)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Combinable(1, 2, "WCS")
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestQueryGroups(t *testing.T) {
	s := NewDataSourceService(nil, nil, nil)

	hidden := queryable(4, "http://x/wfs", "", "hidden")
	hidden.Visible = false

	outOfRange := queryable(5, "http://x/wfs", "", "far")
	outOfRange.OGCLayers[0].MaxResolution = floatp(1)

	require.NoError(t, s.Register(
		queryable(3, "http://y/wfs", "", "c"),
		queryable(1, "http://x/wfs", "", "a"),
		queryable(2, "http://x/wfs", "http://x/wms", "b"),
		hidden,
		outOfRange,
		queryable(6, "", "http://x/wms", "wmsonly"),
	))

	groups, err := s.QueryGroups(7, ServiceWFS)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, QueryGroup{Service: ServiceWFS, URL: "http://x/wfs", IDs: []int{1, 2}, Layers: []string{"a", "b"}}, groups[0])
	assert.Equal(t, QueryGroup{Service: ServiceWFS, URL: "http://y/wfs", IDs: []int{3}, Layers: []string{"c"}}, groups[1])

	groups, err = s.QueryGroups(7, ServiceWMS)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []int{2, 6}, groups[0].IDs)

	_, err = s.QueryGroups(7, "WMTS")
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestGetFeatureURL(t *testing.T) {
	s := NewDataSourceService(nil, nil, nil)
	require.NoError(t, s.Register(
		queryable(1, "https://example.com/wfs?map=roads", "", "roads"),
		queryable(2, "", "https://example.com/wms", "roads"),
	))

	raw, err := s.GetFeatureURL(1, ogc.GetFeatureQuery{BBox: &orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}})
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "roads", q.Get("map"))
	assert.Equal(t, "feature:roads", q.Get("typeName"))
	assert.Equal(t, "GML3", q.Get("outputFormat"))
	assert.Equal(t, "0,0,1,1,EPSG:3857", q.Get("bbox"))

	_, err = s.GetFeatureURL(2, ogc.GetFeatureQuery{})
	require.ErrorIs(t, err, ErrNotQueryable)
	_, err = s.GetFeatureURL(3, ogc.GetFeatureQuery{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetFeatureInfoURL(t *testing.T) {
	s := NewDataSourceService(nil, nil, nil)
	notGML := queryable(2, "", "https://example.com/wms", "roads")
	notGML.WMSInfoFormat = "application/json"
	require.NoError(t, s.Register(queryable(1, "", "https://example.com/wms", "roads"), notGML))

	q := ogc.GetFeatureInfoQuery{BBox: orb.Bound{Max: orb.Point{10, 10}}, Width: 100, Height: 100, I: 50, J: 50}
	raw, err := s.GetFeatureInfoURL(1, q)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.ogc.gml", u.Query().Get("INFO_FORMAT"))
	assert.Equal(t, "roads", u.Query().Get("QUERY_LAYERS"))

	_, err = s.GetFeatureInfoURL(2, q)
	require.ErrorIs(t, err, ErrNotQueryable)

	_, err = s.GetFeatureInfoURL(1, ogc.GetFeatureInfoQuery{})
	require.True(t, errors.Is(err, ErrInvalidQuery))
}

func TestRequestURLs_ProxyEndpoints(t *testing.T) {
	s := NewDataSourceService(nil, nil, nil)
	require.NoError(t, s.Register(
		queryable(1, "/mapserv_proxy", "/mapserv_proxy?ogcserver=main", "roads"),
		queryable(2, "http://", "http://", "roads"),
	))

	raw, err := s.GetFeatureURL(1, ogc.GetFeatureQuery{})
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "/mapserv_proxy", u.Path)
	assert.Empty(t, u.Host)
	assert.Equal(t, "feature:roads", u.Query().Get("typeName"))

	raw, err = s.GetFeatureInfoURL(1, ogc.GetFeatureInfoQuery{BBox: orb.Bound{Max: orb.Point{10, 10}}, Width: 10, Height: 10})
	require.NoError(t, err)
	u, err = url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "main", u.Query().Get("ogcserver"))
	assert.Equal(t, "roads", u.Query().Get("QUERY_LAYERS"))

	_, err = s.GetFeatureURL(2, ogc.GetFeatureQuery{})
	require.ErrorIs(t, err, ogc.ErrInvalidEndpoint)
	_, err = s.GetFeatureInfoURL(2, ogc.GetFeatureInfoQuery{BBox: orb.Bound{Max: orb.Point{10, 10}}, Width: 10, Height: 10})
	require.ErrorIs(t, err, ogc.ErrInvalidEndpoint)
}

func TestConcurrentAccess(t *testing.T) {
	s := NewDataSourceService(nil, NewEventBus(), nil)
	o := queryable(1, "http://x/wfs", "", "a")
	o.MaxResolution = floatp(10)
	require.NoError(t, s.Register(o))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.SyncResolution(float64((i + j) % 20))
				_, _ = s.SetVisible(1, j%2 == 0)
				_, _ = s.QueryGroups(5, ServiceWFS)
				_ = s.List()
			}
		}(i)
	}
	wg.Wait()
}
