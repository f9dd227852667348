package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/joeblew999/plat-ogc/internal/datasource"
	"github.com/joeblew999/plat-ogc/internal/ogc"
)

// Recorder receives registry statistics. Implemented by the metrics package.
type Recorder interface {
	SetDataSources(total, visible, inRange int)
	ObserveSync(changed int)
}

// DataSourceService is the registry of data sources. It owns the descriptors
// and serializes every access to their mutable flags.
type DataSourceService struct {
	mu      sync.RWMutex
	sources map[int]*datasource.DataSource
	// persisted holds the ids that were created at runtime, as opposed to
	// registered from the catalog.
	persisted map[int]bool

	builder datasource.FormatBuilder
	store   Store
	bus     *EventBus
	log     *slog.Logger
	rec     Recorder
}

// NewDataSourceService creates an empty registry. A nil store keeps runtime
// data sources in memory; a nil logger discards logs.
func NewDataSourceService(store Store, bus *EventBus, log *slog.Logger) *DataSourceService {
	if store == nil {
		store = NewMemoryStore()
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &DataSourceService{
		sources:   make(map[int]*datasource.DataSource),
		persisted: make(map[int]bool),
		builder:   ogc.Builder{},
		store:     store,
		bus:       bus,
		log:       log,
	}
}

// WithRecorder attaches r and returns s.
func (s *DataSourceService) WithRecorder(r Recorder) *DataSourceService {
	s.mu.Lock()
	s.rec = r
	s.mu.Unlock()
	s.record()
	return s
}

// Register adds data sources without persisting them. Either all are added
// or none.
func (s *DataSourceService) Register(opts ...datasource.Options) error {
	built := make([]*datasource.DataSource, 0, len(opts))
	for i, o := range opts {
		ds, err := datasource.New(o, s.builder)
		if err != nil {
			return fmt.Errorf("data source #%d: %w", i, err)
		}
		built = append(built, ds)
	}

	s.mu.Lock()
	seen := make(map[int]bool, len(built))
	for _, ds := range built {
		if _, ok := s.sources[ds.ID()]; ok || seen[ds.ID()] {
			s.mu.Unlock()
			return fmt.Errorf("data source %d: %w", ds.ID(), ErrDuplicate)
		}
		seen[ds.ID()] = true
	}
	for _, ds := range built {
		s.sources[ds.ID()] = ds
	}
	s.mu.Unlock()

	s.record()
	return nil
}

// Restore loads the data sources of the store. Stored entries whose id is
// already registered are skipped with a warning.
func (s *DataSourceService) Restore(ctx context.Context) (int, error) {
	stored, err := s.store.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load data sources: %w", err)
	}

	restored := 0
	for _, o := range stored {
		ds, err := datasource.New(o, s.builder)
		if err != nil {
			s.log.Warn("skipping stored data source", "error", err)
			continue
		}
		s.mu.Lock()
		if _, exists := s.sources[ds.ID()]; exists {
			s.mu.Unlock()
			s.log.Warn("stored data source shadowed by catalog", "id", ds.ID())
			continue
		}
		s.sources[ds.ID()] = ds
		s.persisted[ds.ID()] = true
		s.mu.Unlock()
		restored++
	}
	s.record()
	return restored, nil
}

// Create builds, persists and registers a data source.
func (s *DataSourceService) Create(ctx context.Context, opts datasource.Options) (DataSourceView, error) {
	ds, err := datasource.New(opts, s.builder)
	if err != nil {
		return DataSourceView{}, err
	}

	s.mu.Lock()
	if _, exists := s.sources[ds.ID()]; exists {
		s.mu.Unlock()
		return DataSourceView{}, fmt.Errorf("data source %d: %w", ds.ID(), ErrDuplicate)
	}
	if err := s.store.Put(ctx, opts); err != nil {
		s.mu.Unlock()
		return DataSourceView{}, fmt.Errorf("persist data source %d: %w", ds.ID(), err)
	}
	s.sources[ds.ID()] = ds
	s.persisted[ds.ID()] = true
	view := viewOf(ds)
	s.mu.Unlock()

	s.log.Info("data source created", "id", view.ID, "name", view.Name)
	s.bus.Publish(Event{Resource: ResourceDataSources, Action: ActionCreated, ID: strconv.Itoa(view.ID)})
	s.record()
	return view, nil
}

// Delete unregisters id and removes it from the store if it was persisted.
func (s *DataSourceService) Delete(ctx context.Context, id int) error {
	s.mu.Lock()
	if _, exists := s.sources[id]; !exists {
		s.mu.Unlock()
		return fmt.Errorf("data source %d: %w", id, ErrNotFound)
	}
	if s.persisted[id] {
		if err := s.store.Delete(ctx, id); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("delete data source %d: %w", id, err)
		}
	}
	delete(s.sources, id)
	delete(s.persisted, id)
	s.mu.Unlock()

	s.log.Info("data source deleted", "id", id)
	s.bus.Publish(Event{Resource: ResourceDataSources, Action: ActionDeleted, ID: strconv.Itoa(id)})
	s.record()
	return nil
}

// List returns every data source ordered by id.
func (s *DataSourceService) List() []DataSourceView {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DataSourceView, 0, len(s.sources))
	for _, ds := range s.sources {
		out = append(out, viewOf(ds))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Get returns the data source with the given id.
func (s *DataSourceService) Get(id int) (DataSourceView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.sources[id]
	if !ok {
		return DataSourceView{}, fmt.Errorf("data source %d: %w", id, ErrNotFound)
	}
	return viewOf(ds), nil
}

// SetVisible changes the visibility of id.
func (s *DataSourceService) SetVisible(id int, visible bool) (DataSourceView, error) {
	s.mu.Lock()
	ds, ok := s.sources[id]
	if !ok {
		s.mu.Unlock()
		return DataSourceView{}, fmt.Errorf("data source %d: %w", id, ErrNotFound)
	}
	changed := ds.Visible() != visible
	ds.SetVisible(visible)
	view := viewOf(ds)
	s.mu.Unlock()

	if changed {
		s.bus.Publish(Event{Resource: ResourceDataSources, Action: ActionVisible, ID: strconv.Itoa(id), Data: visible})
		s.record()
	}
	return view, nil
}

// SyncResolution recomputes the in-range flag of every data source with
// resolution bounds against the view resolution res. Bounds are inclusive.
// It returns the ids whose flag changed, ascending.
func (s *DataSourceService) SyncResolution(res float64) []int {
	type change struct {
		id      int
		inRange bool
	}
	var changes []change

	s.mu.Lock()
	for id, ds := range s.sources {
		if !ds.SupportsDynamicInRange() {
			continue
		}
		p := ds.Props()
		inRange := (p.MinResolution == nil || res >= *p.MinResolution) &&
			(p.MaxResolution == nil || res <= *p.MaxResolution)
		if inRange != ds.InRange() {
			ds.SetInRange(inRange)
			changes = append(changes, change{id: id, inRange: inRange})
		}
	}
	s.mu.Unlock()

	sort.Slice(changes, func(i, j int) bool { return changes[i].id < changes[j].id })
	ids := make([]int, len(changes))
	for i, c := range changes {
		ids[i] = c.id
		s.bus.Publish(Event{Resource: ResourceDataSources, Action: ActionInRange, ID: strconv.Itoa(c.id), Data: c.inRange})
	}

	s.log.Debug("resolution synced", "resolution", res, "changed", len(ids))
	s.mu.RLock()
	rec := s.rec
	s.mu.RUnlock()
	if rec != nil {
		rec.ObserveSync(len(ids))
	}
	if len(ids) > 0 {
		s.record()
	}
	return ids
}

// InRangeLayers returns the OGC layer names of id in range at res.
func (s *DataSourceService) InRangeLayers(id int, res float64, queryableOnly bool) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ds, ok := s.sources[id]
	if !ok {
		return nil, fmt.Errorf("data source %d: %w", id, ErrNotFound)
	}
	return ds.InRangeOGCLayerNames(res, queryableOnly), nil
}

// Combinable reports whether a and b can share one request of the service svc.
func (s *DataSourceService) Combinable(a, b int, svc OGCService) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	da, ok := s.sources[a]
	if !ok {
		return false, fmt.Errorf("data source %d: %w", a, ErrNotFound)
	}
	db, ok := s.sources[b]
	if !ok {
		return false, fmt.Errorf("data source %d: %w", b, ErrNotFound)
	}
	switch svc {
	case ServiceWFS:
		return da.CombinableWithDataSourceForWFS(db), nil
	case ServiceWMS:
		return da.CombinableWithDataSourceForWMS(db), nil
	}
	return false, fmt.Errorf("%q: %w", svc, ErrUnsupported)
}

// QueryGroups collects the visible, in-range, queryable data sources that
// support svc and have a queryable layer in range at res, and partitions
// them in id order: a data source joins the first group whose leader it is
// combinable with, or starts a new one.
func (s *DataSourceService) QueryGroups(res float64, svc OGCService) ([]QueryGroup, error) {
	if svc != ServiceWFS && svc != ServiceWMS {
		return nil, fmt.Errorf("%q: %w", svc, ErrUnsupported)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int, 0, len(s.sources))
	for id := range s.sources {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	type group struct {
		leader *datasource.DataSource
		qg     QueryGroup
	}
	var groups []*group
	for _, id := range ids {
		ds := s.sources[id]
		if !ds.Visible() || !ds.InRange() || !ds.Queryable() {
			continue
		}
		var url *string
		if svc == ServiceWFS {
			url = ds.Props().WFSURL
		} else {
			url = ds.Props().WMSURL
		}
		if url == nil {
			continue
		}
		layers := ds.InRangeOGCLayerNames(res, true)
		if len(layers) == 0 {
			continue
		}

		var target *group
		for _, g := range groups {
			if combinable(g.leader, ds, svc) {
				target = g
				break
			}
		}
		if target == nil {
			target = &group{leader: ds, qg: QueryGroup{Service: svc, URL: *url, IDs: []int{}, Layers: []string{}}}
			groups = append(groups, target)
		}
		target.qg.IDs = append(target.qg.IDs, id)
		target.qg.Layers = append(target.qg.Layers, layers...)
	}

	out := make([]QueryGroup, len(groups))
	for i, g := range groups {
		out[i] = g.qg
	}
	return out, nil
}

func combinable(a, b *datasource.DataSource, svc OGCService) bool {
	if svc == ServiceWFS {
		return a.CombinableWithDataSourceForWFS(b)
	}
	return a.CombinableWithDataSourceForWMS(b)
}

// GetFeatureURL builds a WFS GetFeature request for id. The feature prefix
// and output format default to the data source configuration.
func (s *DataSourceService) GetFeatureURL(id int, q ogc.GetFeatureQuery) (string, error) {
	s.mu.RLock()
	ds, ok := s.sources[id]
	if !ok {
		s.mu.RUnlock()
		return "", fmt.Errorf("data source %d: %w", id, ErrNotFound)
	}
	p := ds.Props()
	format, _ := ds.WFSFormat().(*ogc.WFSFormat)
	s.mu.RUnlock()

	if format == nil || p.WFSURL == nil {
		return "", fmt.Errorf("data source %d over WFS: %w", id, ErrNotQueryable)
	}
	if q.FeaturePrefix == "" {
		q.FeaturePrefix = p.WFSFeaturePrefix
	}
	if q.OutputFormat == "" {
		q.OutputFormat = p.WFSOutputFormat
	}
	params, err := format.GetFeatureParams(q)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	u, err := ogc.RequestURL(*p.WFSURL, params)
	if err != nil {
		return "", fmt.Errorf("data source %d: %w", id, err)
	}
	return u, nil
}

// GetFeatureInfoURL builds a WMS GetFeatureInfo request for id. The info
// format defaults to the data source configuration.
func (s *DataSourceService) GetFeatureInfoURL(id int, q ogc.GetFeatureInfoQuery) (string, error) {
	s.mu.RLock()
	ds, ok := s.sources[id]
	if !ok {
		s.mu.RUnlock()
		return "", fmt.Errorf("data source %d: %w", id, ErrNotFound)
	}
	p := ds.Props()
	format, _ := ds.WMSFormat().(*ogc.WMSGetFeatureInfoFormat)
	s.mu.RUnlock()

	if format == nil || p.WMSURL == nil {
		return "", fmt.Errorf("data source %d over WMS: %w", id, ErrNotQueryable)
	}
	if q.InfoFormat == "" {
		q.InfoFormat = p.WMSInfoFormat
	}
	params, err := format.GetFeatureInfoParams(q)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	u, err := ogc.RequestURL(*p.WMSURL, params)
	if err != nil {
		return "", fmt.Errorf("data source %d: %w", id, err)
	}
	return u, nil
}

func (s *DataSourceService) record() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rec == nil {
		return
	}
	var visible, inRange int
	for _, ds := range s.sources {
		if ds.Visible() {
			visible++
		}
		if ds.InRange() {
			inRange++
		}
	}
	s.rec.SetDataSources(len(s.sources), visible, inRange)
}
