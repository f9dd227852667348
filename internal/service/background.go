package service

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// BackgroundLayerService keeps the background layer of each map.
type BackgroundLayerService struct {
	mu     sync.RWMutex
	layers map[string]BackgroundLayer
	bus    *EventBus
}

// NewBackgroundLayerService creates an empty background layer registry.
func NewBackgroundLayerService(bus *EventBus) *BackgroundLayerService {
	return &BackgroundLayerService{
		layers: make(map[string]BackgroundLayer),
		bus:    bus,
	}
}

// Maps returns the ids of the maps that have a background layer.
func (s *BackgroundLayerService) Maps() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.layers))
	for id := range s.layers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get returns the background layer of mapID, or false if it has none.
func (s *BackgroundLayerService) Get(mapID string) (BackgroundLayer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, ok := s.layers[mapID]
	if !ok {
		return BackgroundLayer{}, false
	}
	return l.clone(), true
}

// Set replaces the background layer of mapID and returns the previous one.
// A nil layer removes the background.
func (s *BackgroundLayerService) Set(mapID string, layer *BackgroundLayer) (*BackgroundLayer, error) {
	if strings.TrimSpace(mapID) == "" {
		return nil, fmt.Errorf("%w: map id is required", ErrInvalidBackground)
	}
	var current *BackgroundLayer
	if layer != nil {
		if err := validateBackground(*layer); err != nil {
			return nil, err
		}
		c := layer.clone()
		current = &c
	}

	s.mu.Lock()
	var previous *BackgroundLayer
	if old, ok := s.layers[mapID]; ok {
		previous = &old
	}
	if current == nil {
		delete(s.layers, mapID)
	} else {
		s.layers[mapID] = current.clone()
	}
	s.mu.Unlock()

	if current == nil && previous == nil {
		return nil, nil
	}
	action := ActionChanged
	if current == nil {
		action = ActionRemoved
	}
	s.bus.Publish(Event{
		Resource: ResourceBackground,
		Action:   action,
		ID:       mapID,
		Data:     BackgroundChange{Current: current, Previous: previous},
	})
	return previous, nil
}

// UpdateDimensions applies dims to the background layer of mapID. Only the
// dimensions a layer already declares are changed. For a group, the layers
// of its first level are updated. It returns the number of layers that
// changed; a map without background yields 0.
func (s *BackgroundLayerService) UpdateDimensions(mapID string, dims map[string]string) int {
	s.mu.Lock()
	l, ok := s.layers[mapID]
	if !ok {
		s.mu.Unlock()
		return 0
	}
	previous := l.clone()

	updated := 0
	if l.Type == BackgroundGroup {
		for i := range l.Layers {
			if applyDimensions(&l.Layers[i], dims) {
				updated++
			}
		}
	} else if applyDimensions(&l, dims) {
		updated++
	}
	s.layers[mapID] = l
	current := l.clone()
	s.mu.Unlock()

	if updated > 0 {
		s.bus.Publish(Event{
			Resource: ResourceBackground,
			Action:   ActionDimensed,
			ID:       mapID,
			Data:     BackgroundChange{Current: &current, Previous: &previous},
		})
	}
	return updated
}

func applyDimensions(l *BackgroundLayer, dims map[string]string) bool {
	if l.Type == BackgroundGroup || len(l.Dimensions) == 0 {
		return false
	}
	changed := false
	for key := range l.Dimensions {
		v, ok := dims[key]
		if !ok {
			continue
		}
		if l.Dimensions[key] != v {
			changed = true
		}
		l.Dimensions[key] = v
	}
	return changed
}

func validateBackground(l BackgroundLayer) error {
	if strings.TrimSpace(l.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidBackground)
	}
	switch l.Type {
	case BackgroundWMS, BackgroundWMTS:
		if len(l.Layers) > 0 {
			return fmt.Errorf("%w: %q: only groups have children", ErrInvalidBackground, l.Name)
		}
	case BackgroundGroup:
		for _, c := range l.Layers {
			if err := validateBackground(c); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %q: unknown type %q", ErrInvalidBackground, l.Name, l.Type)
	}
	return nil
}
