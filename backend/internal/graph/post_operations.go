package graph

import (
	"context"
	"sort"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"diarymap/backend/internal/social"
	apperrors "diarymap/backend/pkg/errors"
)

// CreatePost implements social.Store. The post, its PUBLISHED edge and its
// tags are written in one statement.
func (r *Repository) CreatePost(ctx context.Context, uid string, post social.Post, tags []string) error {
	record, err := r.writeOne(ctx, "create_post", `
		MATCH (u:User {id: $uid})
		CREATE (u)-[:PUBLISHED]->(p:Post)
		SET p = $post
		WITH p
		FOREACH (name IN $tags |
			MERGE (t:Tag {name: name})
			CREATE (t)-[:TAGGED]->(p))
		RETURN p.id as id
	`, map[string]interface{}{
		"uid":  uid,
		"post": postParams(post),
		"tags": tags,
	})
	if err != nil {
		return err
	}
	if record == nil {
		return apperrors.NewUserNotFound(uid)
	}
	return nil
}

// RecentPosts implements social.Store. Untagged posts are included.
func (r *Repository) RecentPosts(ctx context.Context, date string, limit int) ([]social.PostWithTags, error) {
	query := `
		MATCH (user:User)-[:PUBLISHED]->(post:Post)
		WHERE post.date = $date
		OPTIONAL MATCH (post)<-[:TAGGED]-(tag:Tag)
		WITH user, post, collect(DISTINCT tag.name) as tags
		RETURN ` + summaryProjection("user") + ` as author, post, tags
		ORDER BY post.created_at DESC, post.id ASC
		LIMIT $limit
	`
	rows, err := collect(ctx, r, query, map[string]interface{}{"date": date, "limit": limit}, func(rec *neo4j.Record) social.PostWithTags {
		tags := getStringSliceFromRecord(rec, "tags")
		sort.Strings(tags)
		return social.PostWithTags{
			Post:   postFromProps(getPropsFromRecord(rec, "post")),
			Author: summaryFromProps(getPropsFromRecord(rec, "author")),
			Tags:   tags,
		}
	})
	if err != nil {
		return nil, apperrors.NewStoreFailure("recent_posts", "", err)
	}
	return rows, nil
}
