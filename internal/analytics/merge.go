package analytics

import "sort"

// Merge combines per-unit fragment sets into one deterministic result.
// Fragments are keyed, and a later duplicate overwrites an earlier one, so
// a unit processed twice (at-least-once delivery) never double-counts.
// Output ordering is fixed: percentages by (station, sensor),
// co-occurrences by station, regional series by (region, series order).
func Merge(parts ...Fragments) Fragments {
	type pctKey struct {
		station string
		sensor  string
	}
	pcts := make(map[pctKey]AnomalyPercentage)
	coocs := make(map[string]CoOccurrenceCount)
	series := make(map[string][]RegionalAverage)

	for _, part := range parts {
		for _, p := range part.Percentages {
			pcts[pctKey{p.StationID, string(p.Sensor)}] = p
		}
		for _, c := range part.CoOccurrences {
			coocs[c.StationID] = c
		}
	}
	// A region's series arrives as one unit; keep the last copy whole.
	for _, part := range parts {
		byRegion := make(map[string][]RegionalAverage)
		for _, r := range part.RegionalAverages {
			byRegion[r.Region] = append(byRegion[r.Region], r)
		}
		for region, s := range byRegion {
			series[region] = s
		}
	}

	var out Fragments
	for _, p := range pcts {
		out.Percentages = append(out.Percentages, p)
	}
	sort.Slice(out.Percentages, func(i, j int) bool {
		a, b := out.Percentages[i], out.Percentages[j]
		if a.StationID != b.StationID {
			return a.StationID < b.StationID
		}
		return a.Sensor < b.Sensor
	})

	for _, c := range coocs {
		out.CoOccurrences = append(out.CoOccurrences, c)
	}
	sort.Slice(out.CoOccurrences, func(i, j int) bool {
		return out.CoOccurrences[i].StationID < out.CoOccurrences[j].StationID
	})

	regionKeys := make([]string, 0, len(series))
	for region := range series {
		regionKeys = append(regionKeys, region)
	}
	sort.Strings(regionKeys)
	for _, region := range regionKeys {
		out.RegionalAverages = append(out.RegionalAverages, series[region]...)
	}
	return out
}
