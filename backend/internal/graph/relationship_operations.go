package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"diarymap/backend/internal/social"
	apperrors "diarymap/backend/pkg/errors"
)

// ============================================================================
// Relationship Operations
// ============================================================================

// AddFriend implements social.Store. Friends who have not registered yet are
// kept as stub users holding only fb_id and name.
func (r *Repository) AddFriend(ctx context.Context, uid string, friend social.FriendProfile) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (u:User {id: $uid})
			RETURN u.fb_id as fb_id
		`, map[string]interface{}{"uid": uid})
		if err != nil {
			return nil, apperrors.NewStoreFailure("add_friend", "match_user", err)
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, apperrors.NewStoreFailure("add_friend", "match_user", err)
			}
			return nil, apperrors.NewUserNotFound(uid)
		}
		if getStringFromRecord(result.Record(), "fb_id") == friend.ExternalID {
			return nil, apperrors.NewValidationFailed("friend.id", "cannot befriend yourself")
		}

		_, err = tx.Run(ctx, `
			MATCH (u:User {id: $uid})
			MERGE (f:User {fb_id: $friendID})
			ON CREATE SET f.name = $friendName
			MERGE (u)-[:FRIEND]->(f)
		`, map[string]interface{}{
			"uid":        uid,
			"friendID":   friend.ExternalID,
			"friendName": friend.Name,
		})
		if err != nil {
			return nil, apperrors.NewStoreFailure("add_friend", "merge_friend", err)
		}
		return nil, nil
	})
	if err != nil {
		return storeErr("add_friend", err)
	}
	return nil
}

// AddLike implements social.Store.
func (r *Repository) AddLike(ctx context.Context, uid string, like social.LikeTarget) error {
	record, err := r.writeOne(ctx, "add_like", `
		MATCH (u:User {id: $uid})
		MERGE (k:Likes {id: $likeID})
		SET k.name = CASE WHEN $name <> '' THEN $name ELSE k.name END
		MERGE (u)-[:LIKE]->(k)
		RETURN count(u) as matched
	`, map[string]interface{}{
		"uid":    uid,
		"likeID": like.ID,
		"name":   like.Name,
	})
	if err != nil {
		return err
	}
	if record == nil || getIntFromRecord(record, "matched") == 0 {
		return apperrors.NewUserNotFound(uid)
	}
	return nil
}

// LikePost implements social.Store.
func (r *Repository) LikePost(ctx context.Context, uid, postID string) error {
	record, err := r.writeOne(ctx, "like_post", `
		MATCH (u:User {id: $uid})
		OPTIONAL MATCH (p:Post {id: $postID})
		FOREACH (_ IN CASE WHEN p IS NULL THEN [] ELSE [1] END |
			MERGE (u)-[:LIKED]->(p))
		RETURN p IS NOT NULL as found
	`, map[string]interface{}{
		"uid":    uid,
		"postID": postID,
	})
	if err != nil {
		return err
	}
	if record == nil {
		return apperrors.NewUserNotFound(uid)
	}
	if !getBoolFromRecord(record, "found") {
		return apperrors.NewPostNotFound(postID)
	}
	return nil
}

// FriendsOf implements social.Store. Any relationship between the two users
// counts, not only FRIEND.
func (r *Repository) FriendsOf(ctx context.Context, uid string) ([]social.UserSummary, error) {
	query := `
		MATCH (n:User {id: $uid})-[]-(u:User)
		WITH DISTINCT u
		RETURN ` + summaryProjection("u") + ` as user
		ORDER BY u.name, u.id
	`
	return r.summaries(ctx, "friends_of", query, map[string]interface{}{"uid": uid})
}

// FriendsOfFriends implements social.Store.
func (r *Repository) FriendsOfFriends(ctx context.Context, uid string) ([]social.UserSummary, error) {
	query := `
		MATCH (n:User {id: $uid})-[:FRIEND]-(:User)-[:FRIEND]-(v:User)
		WHERE v <> n AND NOT (n)-[:FRIEND]-(v)
		WITH DISTINCT v
		RETURN ` + summaryProjection("v") + ` as user
		ORDER BY v.name, v.id
	`
	return r.summaries(ctx, "friends_of_friends", query, map[string]interface{}{"uid": uid})
}

// CommonLikeUsers implements social.Store.
func (r *Repository) CommonLikeUsers(ctx context.Context, uid string) ([]social.CommonLikeUser, error) {
	query := `
		MATCH (n:User {id: $uid})-[:LIKE]->(k:Likes)<-[:LIKE]-(v:User)
		WHERE v <> n
		WITH v, count(DISTINCT k) as amount
		RETURN v.id as id, v.name as name, v.gender as gender, v.portrait as portrait,
		       amount as amount_of_common_likes
		ORDER BY amount DESC, id ASC, name ASC
	`
	rows, err := collect(ctx, r, query, map[string]interface{}{"uid": uid}, func(rec *neo4j.Record) social.CommonLikeUser {
		return social.CommonLikeUser{
			ID:                  getStringFromRecord(rec, "id"),
			Name:                getStringFromRecord(rec, "name"),
			Gender:              getStringFromRecord(rec, "gender"),
			Portrait:            getStringFromRecord(rec, "portrait"),
			AmountOfCommonLikes: getIntFromRecord(rec, "amount_of_common_likes"),
		}
	})
	if err != nil {
		return nil, apperrors.NewStoreFailure("common_like_users", "", err)
	}
	return rows, nil
}

// CommonLikes implements social.Store.
func (r *Repository) CommonLikes(ctx context.Context, uid, otherID string) ([]social.LikeTarget, error) {
	query := `
		MATCH (n:User {id: $uid})-[:LIKE]->(k:Likes)<-[:LIKE]-(v:User {id: $otherID})
		RETURN DISTINCT k.id as id, k.name as name
		ORDER BY id
	`
	rows, err := collect(ctx, r, query, map[string]interface{}{"uid": uid, "otherID": otherID}, func(rec *neo4j.Record) social.LikeTarget {
		return social.LikeTarget{
			ID:   getStringFromRecord(rec, "id"),
			Name: getStringFromRecord(rec, "name"),
		}
	})
	if err != nil {
		return nil, apperrors.NewStoreFailure("common_likes", "", err)
	}
	return rows, nil
}

// summaries runs a query whose "user" column is a summary projection.
func (r *Repository) summaries(ctx context.Context, op, query string, params map[string]interface{}) ([]social.UserSummary, error) {
	rows, err := collect(ctx, r, query, params, func(rec *neo4j.Record) social.UserSummary {
		return summaryFromProps(getPropsFromRecord(rec, "user"))
	})
	if err != nil {
		return nil, apperrors.NewStoreFailure(op, "", err)
	}
	return rows, nil
}
