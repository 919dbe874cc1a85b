package graph

import (
	"context"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"diarymap/backend/internal/social"
	apperrors "diarymap/backend/pkg/errors"
)

// ============================================================================
// Similarity Operations
// ============================================================================

// SimilarUsers implements social.Store. Ties are broken by user id.
func (r *Repository) SimilarUsers(ctx context.Context, uid string, limit int) ([]social.SimilarUser, error) {
	query := `
		MATCH (you:User {id: $uid})-[:PUBLISHED]->(:Post)<-[:TAGGED]-(tag:Tag),
		      (they:User)-[:PUBLISHED]->(:Post)<-[:TAGGED]-(tag)
		WHERE you <> they
		WITH they, collect(DISTINCT tag.name) as tags
		RETURN they.id as id, they.name as name, tags
		ORDER BY size(tags) DESC, id ASC
		LIMIT $limit
	`
	rows, err := collect(ctx, r, query, map[string]interface{}{"uid": uid, "limit": limit}, func(rec *neo4j.Record) social.SimilarUser {
		tags := getStringSliceFromRecord(rec, "tags")
		sort.Strings(tags)
		return social.SimilarUser{
			ID:   getStringFromRecord(rec, "id"),
			Name: getStringFromRecord(rec, "name"),
			Tags: tags,
		}
	})
	if err != nil {
		return nil, apperrors.NewStoreFailure("similar_users", "", err)
	}
	return rows, nil
}

// Commonality implements social.Store: how many of a's posts b liked, and
// the tags both have written about.
func (r *Repository) Commonality(ctx context.Context, a, b string) (social.Commonality, error) {
	query := `
		MATCH (you:User {id: $a})
		MATCH (they:User {id: $b})
		OPTIONAL MATCH (they)-[:PUBLISHED]->(:Post)<-[:TAGGED]-(tag:Tag),
		               (you)-[:PUBLISHED]->(:Post)<-[:TAGGED]-(tag)
		WITH you, they, collect(DISTINCT tag.name) as tags
		RETURN count{ (they)-[:LIKED]->(:Post)<-[:PUBLISHED]-(you) } as likes, tags
	`
	rows, err := collect(ctx, r, query, map[string]interface{}{"a": a, "b": b}, func(rec *neo4j.Record) social.Commonality {
		tags := getStringSliceFromRecord(rec, "tags")
		sort.Strings(tags)
		return social.Commonality{
			Likes: getIntFromRecord(rec, "likes"),
			Tags:  tags,
		}
	})
	if err != nil {
		return social.Commonality{}, apperrors.NewStoreFailure("commonality", "", err)
	}
	if len(rows) == 0 {
		return social.Commonality{Tags: []string{}}, nil
	}
	return rows[0], nil
}
