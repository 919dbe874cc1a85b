package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"diarymap/backend/internal/constants"
	"diarymap/backend/internal/social"
	apperrors "diarymap/backend/pkg/errors"
)

// CreateDiary implements social.Store. The diary node and its diary layer
// entry are created in the same transaction.
func (r *Repository) CreateDiary(ctx context.Context, uid string, diary social.Diary) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MATCH (u:User {id: $uid})
			CREATE (u)-[:PUBLISHED]->(d:Diary)
			SET d = $diary
			RETURN d.id as id
		`, map[string]interface{}{
			"uid":   uid,
			"diary": diaryParams(diary),
		})
		if err != nil {
			return nil, apperrors.NewStoreFailure("create_diary", "create_diary", err)
		}
		if !result.Next(ctx) {
			if err := result.Err(); err != nil {
				return nil, apperrors.NewStoreFailure("create_diary", "create_diary", err)
			}
			return nil, apperrors.NewUserNotFound(uid)
		}

		if err := runSpatial(ctx, tx, `
			MATCH (d:Diary {id: $id})
			CALL spatial.addNode($layer, d) YIELD node
			RETURN count(node) as indexed
		`, map[string]interface{}{
			"id":    diary.ID,
			"layer": constants.IndexDiary,
		}); err != nil {
			return nil, apperrors.NewStoreFailure("create_diary", "spatial_index", err)
		}
		return nil, nil
	})
	if err != nil {
		return storeErr("create_diary", err)
	}
	return nil
}

// FriendsDiaries implements social.Store.
func (r *Repository) FriendsDiaries(ctx context.Context, uid string, maxCreatedAt float64, limit int) ([]social.FriendDiary, error) {
	query := `
		MATCH (:User {id: $uid})-[:FRIEND]-(friend:User)-[:PUBLISHED]->(diary:Diary)
		WHERE diary.created_at <= $maxCreatedAt AND diary.permission <> 'private'
		WITH DISTINCT friend, diary
		RETURN diary, {gender: friend.gender, name: friend.name, portrait: friend.portrait, id: friend.id} as friend
		ORDER BY diary.created_at DESC, diary.id ASC
		LIMIT $limit
	`
	rows, err := collect(ctx, r, query, map[string]interface{}{
		"uid":          uid,
		"maxCreatedAt": maxCreatedAt,
		"limit":        limit,
	}, func(rec *neo4j.Record) social.FriendDiary {
		return social.FriendDiary{
			Diary:  diaryFromProps(getPropsFromRecord(rec, "diary")),
			Friend: summaryFromProps(getPropsFromRecord(rec, "friend")),
		}
	})
	if err != nil {
		return nil, apperrors.NewStoreFailure("friends_diaries", "", err)
	}
	return rows, nil
}

// UserDiaries implements social.Store.
func (r *Repository) UserDiaries(ctx context.Context, uid string) ([]social.Diary, error) {
	query := `
		MATCH (:User {id: $uid})-[:PUBLISHED]->(d:Diary)
		RETURN d
		ORDER BY d.created_at DESC, d.id ASC
	`
	rows, err := collect(ctx, r, query, map[string]interface{}{"uid": uid}, func(rec *neo4j.Record) social.Diary {
		return diaryFromProps(getPropsFromRecord(rec, "d"))
	})
	if err != nil {
		return nil, apperrors.NewStoreFailure("user_diaries", "", err)
	}
	return rows, nil
}
