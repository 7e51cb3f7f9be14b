package nameindex

import (
	"sort"

	"grimm.is/scribe/internal/backend"
)

const (
	ZoneBucketMultiplier    = 3
	ServiceBucketMultiplier = 500
)

// Index bundles the tables a resolver needs. It is immutable once built.
type Index struct {
	Zones    *ZoneTable
	Services *ServiceTable
	devices  map[string]string
}

// BuildZoneTable sizes a zone table at len(entries)*ZoneBucketMultiplier and fills it.
func BuildZoneTable(entries []ZoneEntry) (*ZoneTable, error) {
	zt, err := NewZoneTable(len(entries) * ZoneBucketMultiplier)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		zt.Insert(e)
	}
	return zt, nil
}

// BuildServiceTable sizes a service table at len(services)*ServiceBucketMultiplier
// and inserts one entry per port.
func BuildServiceTable(services []backend.Service) (*ServiceTable, error) {
	st, err := NewServiceTable(len(services) * ServiceBucketMultiplier)
	if err != nil {
		return nil, err
	}
	for _, s := range services {
		for _, r := range s.Ports {
			st.InsertRange(r, s.Name)
		}
	}
	return st, nil
}

// NewIndex wraps built tables with the device to interface-name map.
func NewIndex(zones *ZoneTable, services *ServiceTable, ifaces []backend.Interface) *Index {
	devices := make(map[string]string, len(ifaces))
	for _, i := range ifaces {
		if _, ok := devices[i.Device]; !ok {
			devices[i.Device] = i.Name
		}
	}
	return &Index{Zones: zones, Services: services, devices: devices}
}

// Build creates a full index.
func Build(zoneEntries []ZoneEntry, services []backend.Service, ifaces []backend.Interface) (*Index, error) {
	zt, err := BuildZoneTable(zoneEntries)
	if err != nil {
		return nil, err
	}
	st, err := BuildServiceTable(services)
	if err != nil {
		zt.Destroy()
		return nil, err
	}
	return NewIndex(zt, st, ifaces), nil
}

// BuildDefinitions derives the zone entries from defs and builds the index.
func BuildDefinitions(defs *backend.Definitions) (*Index, error) {
	return Build(ZoneEntries(defs.Zones, defs.Interfaces), defs.Services, defs.Interfaces)
}

// Interface maps a kernel device name to the configured interface name.
func (i *Index) Interface(device string) (string, bool) {
	name, ok := i.devices[device]
	return name, ok
}

// ZoneNames returns the sorted distinct zone entry names.
func (i *Index) ZoneNames() []string {
	set := map[string]struct{}{}
	i.Zones.Each(func(e ZoneEntry) { set[e.Name] = struct{}{} })
	return sortedKeys(set)
}

// ServiceNames returns the sorted distinct service names.
func (i *Index) ServiceNames() []string {
	set := map[string]struct{}{}
	i.Services.Each(func(_ ServiceKey, name string) { set[name] = struct{}{} })
	return sortedKeys(set)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Stats summarises both tables.
type Stats struct {
	ZoneEntries    int
	ZoneBuckets    int
	ServiceEntries int
	ServiceBuckets int
	Zones          ChainStats
	Services       ChainStats
}

// Stats computes table sizes and chain statistics.
func (i *Index) Stats() Stats {
	return Stats{
		ZoneEntries:    i.Zones.Len(),
		ZoneBuckets:    i.Zones.Buckets(),
		ServiceEntries: i.Services.Len(),
		ServiceBuckets: i.Services.Buckets(),
		Zones:          i.Zones.ChainStats(),
		Services:       i.Services.ChainStats(),
	}
}

// Destroy releases both tables.
func (i *Index) Destroy() {
	if i == nil {
		return
	}
	i.Zones.Destroy()
	i.Services.Destroy()
	i.devices = nil
}
