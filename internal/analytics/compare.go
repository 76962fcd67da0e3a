package analytics

import (
	"fmt"
	"math"
)

// Comparison tolerances for numeric leaves.
const (
	RelTolerance = 1e-9
	AbsTolerance = 1e-9
)

// Mismatch describes one difference between two result sets, tagged with
// the full path of the offending leaf.
type Mismatch struct {
	Path   string
	Detail string
}

func (m Mismatch) String() string { return m.Path + ": " + m.Detail }

// Compare deep-compares two aggregated fragment sets key by key. Numeric
// leaves are equal within RelTolerance/AbsTolerance. It never fails; every
// difference is reported as a path-tagged mismatch. An empty result means
// the sets are equivalent.
func Compare(a, b Fragments) []Mismatch {
	var out []Mismatch
	out = append(out, comparePercentages(a.Percentages, b.Percentages)...)
	out = append(out, compareCoOccurrences(a.CoOccurrences, b.CoOccurrences)...)
	out = append(out, compareSeries(a.RegionalAverages, b.RegionalAverages)...)
	return out
}

func comparePercentages(a, b []AnomalyPercentage) []Mismatch {
	type key struct {
		station string
		sensor  string
	}
	left := make(map[key]float64, len(a))
	for _, p := range a {
		left[key{p.StationID, string(p.Sensor)}] = p.Pct
	}
	right := make(map[key]float64, len(b))
	for _, p := range b {
		right[key{p.StationID, string(p.Sensor)}] = p.Pct
	}

	var out []Mismatch
	for k, va := range left {
		path := fmt.Sprintf("percentages[%s/%s]", k.station, k.sensor)
		vb, ok := right[k]
		if !ok {
			out = append(out, Mismatch{Path: path, Detail: "missing on right"})
			continue
		}
		if !closeEnough(va, vb) {
			out = append(out, Mismatch{Path: path, Detail: fmt.Sprintf("%v != %v", va, vb)})
		}
	}
	for k := range right {
		if _, ok := left[k]; !ok {
			out = append(out, Mismatch{
				Path:   fmt.Sprintf("percentages[%s/%s]", k.station, k.sensor),
				Detail: "missing on left",
			})
		}
	}
	return out
}

func compareCoOccurrences(a, b []CoOccurrenceCount) []Mismatch {
	left := make(map[string]int, len(a))
	for _, c := range a {
		left[c.StationID] = c.Windows
	}
	right := make(map[string]int, len(b))
	for _, c := range b {
		right[c.StationID] = c.Windows
	}

	var out []Mismatch
	for station, va := range left {
		path := fmt.Sprintf("co_occurrences[%s]", station)
		vb, ok := right[station]
		if !ok {
			out = append(out, Mismatch{Path: path, Detail: "missing on right"})
			continue
		}
		if va != vb {
			out = append(out, Mismatch{Path: path, Detail: fmt.Sprintf("%d != %d", va, vb)})
		}
	}
	for station := range right {
		if _, ok := left[station]; !ok {
			out = append(out, Mismatch{Path: fmt.Sprintf("co_occurrences[%s]", station), Detail: "missing on left"})
		}
	}
	return out
}

func compareSeries(a, b []RegionalAverage) []Mismatch {
	left := groupSeries(a)
	right := groupSeries(b)

	var out []Mismatch
	for region, sa := range left {
		sb, ok := right[region]
		if !ok {
			out = append(out, Mismatch{Path: fmt.Sprintf("regional[%s]", region), Detail: "missing on right"})
			continue
		}
		if len(sa) != len(sb) {
			out = append(out, Mismatch{
				Path:   fmt.Sprintf("regional[%s]", region),
				Detail: fmt.Sprintf("series length %d != %d", len(sa), len(sb)),
			})
			continue
		}
		for i := range sa {
			out = append(out, comparePoint(region, i, sa[i], sb[i])...)
		}
	}
	for region := range right {
		if _, ok := left[region]; !ok {
			out = append(out, Mismatch{Path: fmt.Sprintf("regional[%s]", region), Detail: "missing on left"})
		}
	}
	return out
}

func comparePoint(region string, i int, a, b RegionalAverage) []Mismatch {
	var out []Mismatch
	prefix := fmt.Sprintf("regional[%s][%d]", region, i)
	if !a.TS.Equal(b.TS) {
		out = append(out, Mismatch{Path: prefix + ".timestamp", Detail: fmt.Sprintf("%s != %s", a.TS, b.TS)})
	}
	leaves := []struct {
		name   string
		va, vb float64
	}{
		{"temperature", a.Temperature, b.Temperature},
		{"humidity", a.Humidity, b.Humidity},
		{"pressure", a.Pressure, b.Pressure},
	}
	for _, leaf := range leaves {
		if !closeEnough(leaf.va, leaf.vb) {
			out = append(out, Mismatch{
				Path:   prefix + "." + leaf.name,
				Detail: fmt.Sprintf("%v != %v", leaf.va, leaf.vb),
			})
		}
	}
	return out
}

func groupSeries(series []RegionalAverage) map[string][]RegionalAverage {
	grouped := make(map[string][]RegionalAverage)
	for _, r := range series {
		grouped[r.Region] = append(grouped[r.Region], r)
	}
	return grouped
}

func closeEnough(a, b float64) bool {
	if a == b {
		return true
	}
	diff := math.Abs(a - b)
	limit := RelTolerance * math.Max(math.Abs(a), math.Abs(b))
	if limit < AbsTolerance {
		limit = AbsTolerance
	}
	return diff <= limit
}
