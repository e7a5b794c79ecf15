package xapi

import "fmt"

// Registry holds the set of Device APIs loaded for a single engine or
// codec instance. Several Device APIs may be loaded concurrently;
// device_id disambiguates them (spec.md §3).
type Registry struct {
	byID   map[int]*Device
	byName map[string]*Device
}

// NewRegistry builds a Registry from one or more already-parsed Device
// APIs, failing if any device_id collides.
func NewRegistry(devices ...*Device) (*Registry, error) {
	r := &Registry{byID: map[int]*Device{}, byName: map[string]*Device{}}
	for _, d := range devices {
		if err := r.Add(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Add registers an additional Device API, failing if its device_id is
// already taken.
func (r *Registry) Add(d *Device) error {
	if _, exists := r.byID[d.ID]; exists {
		return fmt.Errorf("xapi: device_id %d already registered", d.ID)
	}
	r.byID[d.ID] = d
	r.byName[d.Name] = d
	return nil
}

// ByID resolves a Device API by its wire device_id.
func (r *Registry) ByID(id int) (*Device, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// ByName resolves a Device API by its device_name.
func (r *Registry) ByName(name string) (*Device, bool) {
	d, ok := r.byName[name]
	return d, ok
}

// Devices returns every registered Device API, in no particular order.
func (r *Registry) Devices() []*Device {
	out := make([]*Device, 0, len(r.byID))
	for _, d := range r.byID {
		out = append(out, d)
	}
	return out
}
