package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"diarymap/backend/internal/constants"
	"diarymap/backend/internal/social"
	apperrors "diarymap/backend/pkg/errors"
)

// ============================================================================
// Spatial Operations
// ============================================================================

// NearbyDiaries implements social.Store.
func (r *Repository) NearbyDiaries(ctx context.Context, uid string, radiusKm float64) ([]social.NearbyDiary, error) {
	query := `
		MATCH (me:User {id: $uid})
		WHERE me.latitude IS NOT NULL AND me.longitude IS NOT NULL
		CALL spatial.withinDistance($layer, {latitude: me.latitude, longitude: me.longitude}, $distance)
		YIELD node as d, distance
		MATCH (author:User)-[:PUBLISHED]->(d)
		WHERE author <> me
		  AND d.permission <> 'private'
		  AND (d.permission <> 'friends' OR (me)-[:FRIEND]-(author))
		RETURN d as diary, ` + summaryProjection("author") + ` as author, distance
		ORDER BY distance ASC, d.id ASC
	`
	rows, err := collect(ctx, r, query, map[string]interface{}{
		"uid":      uid,
		"layer":    constants.IndexDiary,
		"distance": radiusKm,
	}, func(rec *neo4j.Record) social.NearbyDiary {
		return social.NearbyDiary{
			Diary:      diaryFromProps(getPropsFromRecord(rec, "diary")),
			Author:     summaryFromProps(getPropsFromRecord(rec, "author")),
			DistanceKm: getFloat64FromRecord(rec, "distance"),
		}
	})
	if err != nil {
		return nil, apperrors.NewStoreFailure("nearby_diaries", "spatial_index", err)
	}
	return rows, nil
}

// NearbyMembers implements social.Store.
func (r *Repository) NearbyMembers(ctx context.Context, uid string, radiusKm float64) ([]social.UserSummary, error) {
	query := `
		MATCH (me:User {id: $uid})
		WHERE me.latitude IS NOT NULL AND me.longitude IS NOT NULL
		CALL spatial.withinDistance($layer, {latitude: me.latitude, longitude: me.longitude}, $distance)
		YIELD node as m, distance
		WITH m, distance
		WHERE m.id <> $uid
		RETURN ` + summaryProjection("m") + ` as user
		ORDER BY distance ASC, m.id ASC
	`
	return r.summaries(ctx, "nearby_members", query, map[string]interface{}{
		"uid":      uid,
		"layer":    constants.IndexMember,
		"distance": radiusKm,
	})
}
