package board

import (
	"sort"
	"sync"

	"github.com/tidwall/rtree"
	"tubeboard.app/internal/tfl"
	"tubeboard.app/internal/utils"
)

// NearbyStation is a station and its distance in meters from the query
// point.
type NearbyStation struct {
	Station  tfl.Station `json:"station"`
	Distance float64     `json:"distance"`
}

// StationIndex is a spatial index of every station the board has fetched.
// Points are stored as (lon, lat).
type StationIndex struct {
	mu   sync.RWMutex
	tree rtree.RTreeG[tfl.Station]
	ids  map[string]struct{}
}

func NewStationIndex() *StationIndex {
	return &StationIndex{ids: map[string]struct{}{}}
}

// Add indexes stations that carry coordinates and have not been seen
// before. It returns how many were added.
func (x *StationIndex) Add(stations ...tfl.Station) int {
	x.mu.Lock()
	defer x.mu.Unlock()

	added := 0
	for _, st := range stations {
		if st.ID == "" || !st.HasLocation() || !utils.ValidCoordinate(st.Lat, st.Lon) {
			continue
		}
		if _, ok := x.ids[st.ID]; ok {
			continue
		}
		pt := [2]float64{st.Lon, st.Lat}
		x.tree.Insert(pt, pt, st)
		x.ids[st.ID] = struct{}{}
		added++
	}
	return added
}

func (x *StationIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.ids)
}

// Near returns stations within radius meters of (lat, lon), closest first.
// limit <= 0 returns all of them.
func (x *StationIndex) Near(lat, lon, radius float64, limit int) []NearbyStation {
	if radius <= 0 {
		return []NearbyStation{}
	}
	bounds := utils.CalculateBounds(lat, lon, radius)

	x.mu.RLock()
	out := []NearbyStation{}
	x.tree.Search(bounds.Min(), bounds.Max(), func(_, _ [2]float64, st tfl.Station) bool {
		if d := utils.Distance(lat, lon, st.Lat, st.Lon); d <= radius {
			out = append(out, NearbyStation{Station: st, Distance: d})
		}
		return true
	})
	x.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance == out[j].Distance {
			return out[i].Station.ID < out[j].Station.ID
		}
		return out[i].Distance < out[j].Distance
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
