package finder

import (
	"sort"

	"github.com/banshee-data/rupture.report/internal/config"
	"github.com/banshee-data/rupture.report/internal/geo"
)

// TriggerResult partitions one observation window and lists the candidate
// trigger coordinates found in it. An empty Candidates slice means no
// trigger; that is a normal outcome, not an error.
type TriggerResult struct {
	Candidates []geo.Coord
	Included   []Observation
	Rejected   []Observation
}

// TriggerScan decides whether a new or continuing rupture trigger exists in
// an observation window and filters noisy or disconnected stations.
type TriggerScan struct {
	params config.Params
}

// NewTriggerScan returns a scanner over the frozen configuration.
func NewTriggerScan(params config.Params) *TriggerScan {
	return &TriggerScan{params: params}
}

// Scan runs the full trigger pipeline: noise rejection, per-threshold
// proximity clustering, moveout filtering, and a connectivity check.
// Stations on secondary networks never count toward triggering. Candidates
// lying within the exclusion radius of an active event are dropped; the
// engine routes those observations to the owning event instead.
func (s *TriggerScan) Scan(obs []Observation, active []*Event) TriggerResult {
	work := make([]Observation, len(obs))
	copy(work, obs)

	s.rejectNoisy(work)

	var candidates []geo.Coord
	for _, threshold := range s.params.Thresholds {
		eligible := s.triggerEligible(work, threshold)
		if len(eligible) < s.params.MinTriggerStations {
			continue
		}
		for _, cluster := range s.proximityClusters(eligible) {
			if len(cluster) < s.params.MinTriggerStations {
				continue
			}
			cluster = s.rejectByMoveout(cluster)
			cluster = s.largestConnectedCluster(cluster)
			if len(cluster) < s.params.MinTriggerStations {
				continue
			}
			coords := make([]geo.Coord, len(cluster))
			for i, o := range cluster {
				coords[i] = o.Coord
			}
			candidates = appendCandidate(candidates, geo.Centroid(coords), s.params.TriggerRadiusKm)
		}
	}

	candidates = s.dropNearActive(candidates, active)

	res := TriggerResult{Candidates: candidates}
	for _, o := range work {
		if o.Include {
			res.Included = append(res.Included, o)
		} else {
			res.Rejected = append(res.Rejected, o)
		}
	}
	return res
}

// triggerEligible returns the included stations at or above threshold that
// are allowed to count toward triggering.
func (s *TriggerScan) triggerEligible(obs []Observation, threshold float64) []Observation {
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if !o.Include || o.PGA < threshold {
			continue
		}
		if s.params.SecondaryNetworks[o.Network] {
			continue
		}
		out = append(out, o)
	}
	return out
}

// rejectNoisy flags stations whose amplitude exceeds the distance-scaled
// ratio of their nearest neighbours' amplitudes for more than MinPercent of
// comparisons. Only neighbours within MinRatioDistKm take part; the allowed
// ratio grows linearly with separation: allowed(d) = MinRatio + d/MinRatioA.
func (s *TriggerScan) rejectNoisy(obs []Observation) {
	type neighbour struct {
		dist float64
		pga  float64
	}

	for i := range obs {
		if !obs[i].Include || obs[i].PGA <= 0 {
			continue
		}
		neighbours := make([]neighbour, 0, len(obs)-1)
		for j := range obs {
			if j == i || !obs[j].Include || obs[j].PGA <= 0 {
				continue
			}
			d := geo.DistanceKm(obs[i].Coord, obs[j].Coord)
			if d > s.params.MinRatioDistKm {
				continue
			}
			neighbours = append(neighbours, neighbour{dist: d, pga: obs[j].PGA})
		}
		sort.Slice(neighbours, func(a, b int) bool { return neighbours[a].dist < neighbours[b].dist })
		if len(neighbours) > s.params.NumNeighbors {
			neighbours = neighbours[:s.params.NumNeighbors]
		}
		if len(neighbours) == 0 {
			continue
		}

		exceeded := 0
		for _, n := range neighbours {
			allowed := s.params.MinRatio + n.dist/s.params.MinRatioA
			if obs[i].PGA > allowed*n.pga {
				exceeded++
			}
		}
		pct := 100 * float64(exceeded) / float64(len(neighbours))
		if pct > s.params.MinPercent {
			obs[i].Include = false
		}
	}
}

// proximityClusters groups stations by single linkage where the link
// distance between two stations is the smaller of their trigger radii.
func (s *TriggerScan) proximityClusters(obs []Observation) [][]Observation {
	n := len(obs)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	next := 0
	for i := 0; i < n; i++ {
		if labels[i] != -1 {
			continue
		}
		labels[i] = next
		queue := []int{i}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for j := 0; j < n; j++ {
				if labels[j] != -1 {
					continue
				}
				link := s.params.StationRadius(obs[cur].Station)
				if r := s.params.StationRadius(obs[j].Station); r < link {
					link = r
				}
				if geo.DistanceKm(obs[cur].Coord, obs[j].Coord) <= link {
					labels[j] = next
					queue = append(queue, j)
				}
			}
		}
		next++
	}

	clusters := make([][]Observation, next)
	for i, o := range obs {
		clusters[labels[i]] = append(clusters[labels[i]], o)
	}
	// Deterministic ordering: largest cluster first, then by first station.
	sort.Slice(clusters, func(a, b int) bool {
		if len(clusters[a]) != len(clusters[b]) {
			return len(clusters[a]) > len(clusters[b])
		}
		return clusters[a][0].Station < clusters[b][0].Station
	})
	return clusters
}

// rejectByMoveout drops cluster members farther from the cluster centroid
// than the S-wave front could have reached since the earliest trigger time.
func (s *TriggerScan) rejectByMoveout(cluster []Observation) []Observation {
	if len(cluster) == 0 {
		return cluster
	}
	coords := make([]geo.Coord, len(cluster))
	first := cluster[0].Timestamp
	for i, o := range cluster {
		coords[i] = o.Coord
		if o.Timestamp < first {
			first = o.Timestamp
		}
	}
	centre := geo.Centroid(coords)

	out := make([]Observation, 0, len(cluster))
	for _, o := range cluster {
		elapsed := o.Timestamp - first
		if elapsed < 0 {
			elapsed = 0
		}
		maxDist := s.params.TriggerRadiusKm + elapsed*s.params.SWaveVelocity
		if geo.DistanceKm(centre, o.Coord) <= maxDist {
			out = append(out, o)
		}
	}
	return out
}

// largestConnectedCluster re-runs single-linkage on the cluster and keeps
// only the biggest connected component, dropping spatial outliers.
func (s *TriggerScan) largestConnectedCluster(cluster []Observation) []Observation {
	sub := s.proximityClusters(cluster)
	if len(sub) == 0 {
		return nil
	}
	return sub[0]
}

// dropNearActive removes candidates that fall inside the exclusion radius
// of an already-active event.
func (s *TriggerScan) dropNearActive(candidates []geo.Coord, active []*Event) []geo.Coord {
	if len(active) == 0 {
		return candidates
	}
	out := candidates[:0]
	for _, c := range candidates {
		keep := true
		for _, ev := range active {
			if ev.Released() {
				continue
			}
			if geo.DistanceKm(c, ev.Solution.Centroid) <= ev.ExclusionRadiusKm(s.params) {
				keep = false
				break
			}
		}
		if keep {
			out = append(out, c)
		}
	}
	return out
}

// appendCandidate adds c unless an existing candidate lies within dedupeKm.
func appendCandidate(candidates []geo.Coord, c geo.Coord, dedupeKm float64) []geo.Coord {
	for _, existing := range candidates {
		if geo.DistanceKm(existing, c) <= dedupeKm {
			return candidates
		}
	}
	return append(candidates, c)
}
