package emergency

import (
	"sort"

	"github.com/sahayak/sahayak/pkg/geo"
)

// Locate keeps the facilities within radiusKm of origin, nearest first.
// Filtering and ordering use the exact distance; the reported distance is
// rounded to 0.1 km.
func Locate(origin geo.Point, facilities []*Facility, radiusKm float64) []Nearby {
	type hit struct {
		f *Facility
		d float64
	}
	var hits []hit
	for _, f := range facilities {
		d := geo.HaversineKm(origin, f.Location.Point())
		if d <= radiusKm {
			hits = append(hits, hit{f, d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].d < hits[j].d })

	out := make([]Nearby, 0, len(hits))
	for _, h := range hits {
		out = append(out, Nearby{Facility: h.f, DistanceKm: geo.RoundKm(h.d)})
	}
	return out
}
