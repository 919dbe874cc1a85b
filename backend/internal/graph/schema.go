package graph

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"diarymap/backend/internal/constants"
)

// Constraints lists the uniqueness constraints the store relies on.
var Constraints = []string{
	"CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE",
	"CREATE CONSTRAINT user_fb_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.fb_id IS UNIQUE",
	"CREATE CONSTRAINT post_id_unique IF NOT EXISTS FOR (p:Post) REQUIRE p.id IS UNIQUE",
	"CREATE CONSTRAINT diary_id_unique IF NOT EXISTS FOR (d:Diary) REQUIRE d.id IS UNIQUE",
	"CREATE CONSTRAINT tag_name_unique IF NOT EXISTS FOR (t:Tag) REQUIRE t.name IS UNIQUE",
	"CREATE CONSTRAINT likes_id_unique IF NOT EXISTS FOR (k:Likes) REQUIRE k.id IS UNIQUE",
}

// Indexes lists plain property indexes used by the feed queries.
var Indexes = []string{
	"CREATE INDEX post_date IF NOT EXISTS FOR (p:Post) ON (p.date)",
	"CREATE INDEX diary_created_at IF NOT EXISTS FOR (d:Diary) ON (d.created_at)",
}

// SpatialLayers are the WKT layers created by EnsureSchema.
var SpatialLayers = []string{constants.IndexMember, constants.IndexDiary}

// EnsureSchema installs constraints, indexes and spatial layers. It is
// idempotent.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	for _, stmt := range append(append([]string{}, Constraints...), Indexes...) {
		if _, err := session.Run(ctx, stmt, nil); err != nil {
			return fmt.Errorf("failed to apply %q: %w", stmt, err)
		}
	}

	existing, err := r.spatialLayers(ctx)
	if err != nil {
		return err
	}
	for _, layer := range SpatialLayers {
		if existing[layer] {
			continue
		}
		_, err := session.Run(ctx, "CALL spatial.addWKTLayer($layer, 'wkt')", map[string]interface{}{"layer": layer})
		if err != nil {
			return fmt.Errorf("failed to create spatial layer %s: %w", layer, err)
		}
		r.logger.Info("Spatial layer created", zap.String("layer", layer))
	}
	return nil
}

func (r *Repository) spatialLayers(ctx context.Context) (map[string]bool, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, "CALL spatial.layers() YIELD name RETURN name", nil)
	if err != nil {
		if strings.Contains(err.Error(), "ProcedureNotFound") {
			return nil, fmt.Errorf("neo4j-spatial plugin is not installed: %w", err)
		}
		return nil, fmt.Errorf("failed to list spatial layers: %w", err)
	}

	layers := make(map[string]bool)
	for result.Next(ctx) {
		layers[getStringFromRecord(result.Record(), "name")] = true
	}
	return layers, result.Err()
}

// SchemaVersion names the schema installed by EnsureSchema.
const SchemaVersion = "diarymap_schema_v1"

// MigrationApplied reports whether a Migration marker for version exists.
func (r *Repository) MigrationApplied(ctx context.Context, version string) (bool, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (m:Migration {version: $version})
		RETURN m.applied_at as applied_at
	`, map[string]interface{}{"version": version})
	if err != nil {
		return false, fmt.Errorf("failed to read migration marker: %w", err)
	}
	return result.Next(ctx), result.Err()
}

// MarkMigration records that version has been applied.
func (r *Repository) MarkMigration(ctx context.Context, version, description string) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	_, err := session.Run(ctx, `
		MERGE (m:Migration {version: $version})
		SET m.applied_at = datetime(),
		    m.description = $description
	`, map[string]interface{}{"version": version, "description": description})
	if err != nil {
		return fmt.Errorf("failed to write migration marker: %w", err)
	}
	return nil
}
