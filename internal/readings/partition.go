package readings

import "sort"

// Partition is an ordered slice of readings sharing one key. The slice is
// owned exclusively by the unit of work that processes it.
type Partition struct {
	Key      string
	Readings []Reading
}

// ByStation splits readings into per-station partitions. Partitions are
// disjoint, their union is the input, and each is sorted by timestamp
// (stable, so equal timestamps keep input order). Partitions come back
// sorted by key.
func ByStation(rs []Reading) []Partition {
	return partitionBy(rs, func(r Reading) string { return r.StationID })
}

// ByRegion splits readings into per-region partitions with the same
// ordering guarantees as ByStation.
func ByRegion(rs []Reading) []Partition {
	return partitionBy(rs, func(r Reading) string { return r.Region })
}

func partitionBy(rs []Reading, key func(Reading) string) []Partition {
	groups := make(map[string][]Reading)
	for _, r := range rs {
		k := key(r)
		groups[k] = append(groups[k], r)
	}

	parts := make([]Partition, 0, len(groups))
	for k, group := range groups {
		sort.SliceStable(group, func(i, j int) bool { return group[i].TS.Before(group[j].TS) })
		parts = append(parts, Partition{Key: k, Readings: group})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].Key < parts[j].Key })
	return parts
}

// Dataset is a read-only handle over one fully materialized batch of
// readings. It is built once at startup and passed by reference into each
// task, never re-read per task.
type Dataset struct {
	all       []Reading
	stations  []Partition
	regions   []Partition
	byStation map[string]Partition
	byRegion  map[string]Partition
}

// NewDataset indexes a batch of readings by station and region.
func NewDataset(rs []Reading) *Dataset {
	d := &Dataset{
		all:       rs,
		stations:  ByStation(rs),
		regions:   ByRegion(rs),
		byStation: make(map[string]Partition),
		byRegion:  make(map[string]Partition),
	}
	for _, p := range d.stations {
		d.byStation[p.Key] = p
	}
	for _, p := range d.regions {
		d.byRegion[p.Key] = p
	}
	return d
}

// All returns every reading in the batch.
func (d *Dataset) All() []Reading { return d.all }

// Len returns the number of readings in the batch.
func (d *Dataset) Len() int { return len(d.all) }

// Stations returns the per-station partitions sorted by key.
func (d *Dataset) Stations() []Partition { return d.stations }

// Regions returns the per-region partitions sorted by key.
func (d *Dataset) Regions() []Partition { return d.regions }

// Station looks up one station partition by key.
func (d *Dataset) Station(key string) (Partition, bool) {
	p, ok := d.byStation[key]
	return p, ok
}

// Region looks up one region partition by key.
func (d *Dataset) Region(key string) (Partition, bool) {
	p, ok := d.byRegion[key]
	return p, ok
}
