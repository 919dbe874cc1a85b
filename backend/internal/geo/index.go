package geo

import (
	"context"
	"sort"
)

// Hit is one indexed point returned by a radius query.
type Hit struct {
	ID         string  `json:"id"`
	Point      Point   `json:"point"`
	DistanceKm float64 `json:"distance_km"`
}

// Index is a set of independent named layers mapping point ids to coordinates.
type Index interface {
	// Upsert inserts id into layer or moves it to p.
	Upsert(ctx context.Context, layer, id string, p Point) error
	// Remove drops id from layer. Removing an unknown id is not an error.
	Remove(ctx context.Context, layer, id string) error
	// Within returns every point of layer whose great-circle distance to
	// center is <= radiusKm, nearest first.
	Within(ctx context.Context, layer string, center Point, radiusKm float64) ([]Hit, error)
}

func sortHits(hits []Hit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].DistanceKm != hits[j].DistanceKm {
			return hits[i].DistanceKm < hits[j].DistanceKm
		}
		return hits[i].ID < hits[j].ID
	})
}
