package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/saulfrancisco-ruizacevedo/gocypher"
	"go.uber.org/zap"

	"diarymap/backend/internal/constants"
	"diarymap/backend/internal/geo"
	"diarymap/backend/internal/social"
	apperrors "diarymap/backend/pkg/errors"
)

// ============================================================================
// User Operations
// ============================================================================

// Register implements social.Store. The MERGE on the uniquely constrained
// fb_id serializes concurrent registrations of the same identity.
func (r *Repository) Register(ctx context.Context, p social.Profile, newID string) (social.RegisterResult, error) {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	profile := map[string]interface{}{
		"name":         p.Name,
		"email":        p.Email,
		"gender":       p.Gender,
		"access_token": p.AccessToken,
		"portrait":     p.Portrait,
	}

	res, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
			MERGE (u:User {fb_id: $fbID})
			ON CREATE SET u.pending = true
			RETURN u.id as id, coalesce(u.pending, false) as created
		`, map[string]interface{}{"fbID": p.ExternalID})
		if err != nil {
			return nil, apperrors.NewStoreFailure("register", "merge_user", err)
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, apperrors.NewStoreFailure("register", "merge_user", err)
		}

		existing := getStringFromRecord(record, "id")
		created := getBoolFromRecord(record, "created")
		if existing != "" && !created {
			return social.RegisterResult{ID: existing, Outcome: social.OutcomeAlreadyRegistered}, nil
		}

		_, err = tx.Run(ctx, `
			MATCH (u:User {fb_id: $fbID})
			SET u += $profile, u.id = $id
			REMOVE u.pending
		`, map[string]interface{}{
			"fbID":    p.ExternalID,
			"profile": profile,
			"id":      newID,
		})
		if err != nil {
			return nil, apperrors.NewStoreFailure("register", "set_profile", err)
		}

		outcome := social.OutcomeCreated
		if !created {
			outcome = social.OutcomeBackfilled
		}
		return social.RegisterResult{ID: newID, Registered: true, Outcome: outcome}, nil
	})
	if err != nil {
		return social.RegisterResult{}, storeErr("register", err)
	}

	result := res.(social.RegisterResult)
	if result.Outcome == social.OutcomeBackfilled {
		r.logger.Info("Backfilled user id", zap.String("fb_id", p.ExternalID), zap.String("user_id", newID))
	}
	return result, nil
}

// FindUserByID implements social.Store.
func (r *Repository) FindUserByID(ctx context.Context, id string) (*social.User, error) {
	return r.findUser(ctx, "id", id)
}

// FindUserByExternalID implements social.Store.
func (r *Repository) FindUserByExternalID(ctx context.Context, externalID string) (*social.User, error) {
	return r.findUser(ctx, "fb_id", externalID)
}

func (r *Repository) findUser(ctx context.Context, key, value string) (*social.User, error) {
	query, params, err := gocypher.NewQueryBuilder().
		Match(gocypher.N("u", constants.LabelUser).WithProperties(map[string]interface{}{key: value})).
		Return("u").
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build user lookup: %w", err)
	}

	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, apperrors.NewStoreFailure("find_user", "", err)
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return nil, apperrors.NewStoreFailure("find_user", "", err)
		}
		return nil, nil
	}
	return userFromProps(getPropsFromRecord(result.Record(), "u")), nil
}

// UpdateLocation implements social.Store. The coordinates and the member
// layer entry change in one transaction.
func (r *Repository) UpdateLocation(ctx context.Context, uid string, p geo.Point) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		indexed, err := lockUser(ctx, tx, uid)
		if err != nil {
			return nil, err
		}
		if indexed {
			if err := runSpatial(ctx, tx, `
				MATCH (u:User {id: $uid})
				CALL spatial.removeNode($layer, u) YIELD nodeId
				RETURN count(nodeId) as indexed
			`, map[string]interface{}{"uid": uid, "layer": constants.IndexMember}); err != nil {
				return nil, apperrors.NewStoreFailure("update_location", "spatial_remove", err)
			}
		}

		if err := runSpatial(ctx, tx, `
			MATCH (u:User {id: $uid})
			SET u.latitude = $lat, u.longitude = $lon, u.wkt = $wkt
			WITH u
			CALL spatial.addNode($layer, u) YIELD node
			RETURN count(node) as indexed
		`, map[string]interface{}{
			"uid":   uid,
			"lat":   p.Lat,
			"lon":   p.Lon,
			"wkt":   p.WKT(),
			"layer": constants.IndexMember,
		}); err != nil {
			return nil, apperrors.NewStoreFailure("update_location", "spatial_index", err)
		}
		return nil, nil
	})
	if err != nil {
		return storeErr("update_location", err)
	}
	return nil
}

// lockUser checks that uid exists and reports whether it already carries a
// location. The SET takes the write lock on the node for the rest of tx.
func lockUser(ctx context.Context, tx neo4j.ManagedTransaction, uid string) (bool, error) {
	result, err := tx.Run(ctx, `
		MATCH (u:User {id: $uid})
		SET u.id = u.id
		RETURN u.wkt IS NOT NULL as indexed
	`, map[string]interface{}{"uid": uid})
	if err != nil {
		return false, apperrors.NewStoreFailure("lock_user", "", err)
	}
	if !result.Next(ctx) {
		if err := result.Err(); err != nil {
			return false, apperrors.NewStoreFailure("lock_user", "", err)
		}
		return false, apperrors.NewUserNotFound(uid)
	}
	return getBoolFromRecord(result.Record(), "indexed"), nil
}

// runSpatial runs a spatial procedure call that must index exactly one node.
func runSpatial(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]interface{}) error {
	result, err := tx.Run(ctx, query, params)
	if err != nil {
		return err
	}
	record, err := result.Single(ctx)
	if err != nil {
		return err
	}
	if n := getIntFromRecord(record, "indexed"); n != 1 {
		return fmt.Errorf("spatial procedure indexed %d nodes, expected 1", n)
	}
	return nil
}

// storeErr keeps typed errors raised inside a transaction and wraps the rest.
func storeErr(op string, err error) error {
	if apperrors.IsErrorType(err, apperrors.ErrorTypeStore) ||
		apperrors.IsNotFound(err) ||
		apperrors.IsValidation(err) {
		return err
	}
	return apperrors.NewStoreFailure(op, "", err)
}
