package lineup

import (
	"fmt"

	"github.com/stwalsh4118/airwave/internal/logger"
	"github.com/stwalsh4118/airwave/internal/models"
)

// MigrationStep upgrades a raw lineup blob from one schema version to the
// next. Steps are strictly forward and one-directional, and Migrate must be
// idempotent: re-applying a step to an already-migrated blob is harmless.
type MigrationStep struct {
	From    int
	To      int
	Migrate func(raw map[string]interface{}) error
}

// migrationSteps is the full forward chain. A lineup at version v passes
// through every step v -> v+1 ... -> CurrentLineupVersion before being served.
var migrationSteps = []MigrationStep{
	{From: 1, To: 2, Migrate: migrateOffsetTable},
}

// migrateOffsetTable (v1 -> v2) backfills the persisted offset table. Version 1
// blobs stored items only and recomputed offsets on every load; version 2
// persists the running-sum array alongside the items.
func migrateOffsetTable(raw map[string]interface{}) error {
	items, _ := raw["items"].([]interface{})

	offsets := make([]interface{}, len(items)+1)
	var sum float64
	offsets[0] = float64(0)
	for i, entry := range items {
		item, ok := entry.(map[string]interface{})
		if !ok {
			return fmt.Errorf("item %d is not an object", i)
		}
		dur, ok := item["duration_ms"].(float64)
		if !ok || dur <= 0 {
			return fmt.Errorf("item %d has invalid duration", i)
		}
		sum += dur
		offsets[i+1] = sum
	}

	raw["offsets"] = offsets
	return nil
}

// findStep returns the migration step starting at the given version, or nil
func findStep(from int) *MigrationStep {
	for i := range migrationSteps {
		if migrationSteps[i].From == from {
			return &migrationSteps[i]
		}
	}
	return nil
}

// applyMigrations walks the migration chain on a raw lineup blob. It returns
// true only if the blob was upgraded all the way to CurrentLineupVersion; a
// missing step is logged and leaves the blob serving under its old version.
func applyMigrations(channelID string, raw map[string]interface{}) bool {
	version := rawVersion(raw)
	if version >= models.CurrentLineupVersion {
		return false
	}

	migrated := false
	for version < models.CurrentLineupVersion {
		step := findStep(version)
		if step == nil {
			logger.Log.Warn().
				Str("channel_id", channelID).
				Int("version", version).
				Int("current_version", models.CurrentLineupVersion).
				Msg("No lineup migration path from stored version; serving unmigrated")
			return false
		}

		if err := step.Migrate(raw); err != nil {
			logger.Log.Warn().
				Err(err).
				Str("channel_id", channelID).
				Int("from", step.From).
				Int("to", step.To).
				Msg("Lineup migration step failed; serving unmigrated")
			return false
		}

		raw["version"] = float64(step.To)
		version = step.To
		migrated = true
	}

	return migrated
}

// rawVersion extracts the schema version from a raw lineup blob.
// Blobs that predate the version field are treated as version 1.
func rawVersion(raw map[string]interface{}) int {
	v, ok := raw["version"].(float64)
	if !ok {
		return 1
	}
	return int(v)
}
