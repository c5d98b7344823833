package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/querylens-ai/querylens-engine/pkg/database"
	"github.com/querylens-ai/querylens-engine/pkg/health"
	"github.com/querylens-ai/querylens-engine/pkg/models"
)

// SchemaContextKey is the Redis key holding the generated schema context
// that provider prompts are built from. The retrain job rebuilds it.
const SchemaContextKey = "querylens:schema:context"

// backupFile is the JSON shape written by backup and read by restore.
type backupFile struct {
	ExportedAt time.Time           `json:"exported_at"`
	Rules      []models.PolicyRule `json:"rules"`
}

// BackupRunner exports the policy rule set to a timestamped JSON file.
type BackupRunner struct {
	db     *database.DB
	dir    string
	logger *zap.Logger
}

// NewBackupRunner creates the backup runner. Files land in dir.
func NewBackupRunner(db *database.DB, dir string, logger *zap.Logger) *BackupRunner {
	return &BackupRunner{db: db, dir: dir, logger: logger.Named("backup")}
}

// Kind returns the job kind this runner handles.
func (r *BackupRunner) Kind() string { return KindBackup }

// Run exports every policy rule to a JSON file and reports its path.
func (r *BackupRunner) Run(ctx context.Context, job *Job) ([]byte, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, scope, target_table,
		       COALESCE(predicate_template, ''), COALESCE(column_name, ''),
		       applies_to_role, created_at, updated_at
		FROM policy_rules ORDER BY target_table, created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy rules: %w", err)
	}
	defer rows.Close()

	export := backupFile{ExportedAt: time.Now()}
	for rows.Next() {
		var rule models.PolicyRule
		if err := rows.Scan(&rule.ID, &rule.Scope, &rule.TargetTable,
			&rule.PredicateTemplate, &rule.ColumnName,
			&rule.AppliesToRole, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan policy rule: %w", err)
		}
		export.Rules = append(export.Rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read policy rules: %w", err)
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create backup dir: %w", err)
	}

	path := filepath.Join(r.dir,
		fmt.Sprintf("policy-rules-%s.json", time.Now().UTC().Format("20060102T150405Z")))
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("failed to write backup file: %w", err)
	}

	r.logger.Info("policy backup written",
		zap.String("path", path),
		zap.Int("rules", len(export.Rules)))

	return json.Marshal(map[string]any{"path": path, "rules": len(export.Rules)})
}

// RestoreRunner loads a backup file back into the policy_rules table.
type RestoreRunner struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRestoreRunner creates the restore runner.
func NewRestoreRunner(db *database.DB, logger *zap.Logger) *RestoreRunner {
	return &RestoreRunner{db: db, logger: logger.Named("restore")}
}

// Kind returns the job kind this runner handles.
func (r *RestoreRunner) Kind() string { return KindRestore }

// Run upserts every rule from the backup file named in the payload.
func (r *RestoreRunner) Run(ctx context.Context, job *Job) ([]byte, error) {
	var payload struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return nil, fmt.Errorf("invalid restore payload: %w", err)
	}
	if payload.Path == "" {
		return nil, fmt.Errorf("restore payload missing path")
	}

	data, err := os.ReadFile(payload.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read backup file: %w", err)
	}
	var backup backupFile
	if err := json.Unmarshal(data, &backup); err != nil {
		return nil, fmt.Errorf("failed to decode backup file: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin restore: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, rule := range backup.Rules {
		_, err := tx.Exec(ctx, `
			INSERT INTO policy_rules
			    (id, scope, target_table, predicate_template, column_name, applies_to_role, created_at, updated_at)
			VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, $7, now())
			ON CONFLICT (id) DO UPDATE SET
			    scope = EXCLUDED.scope,
			    target_table = EXCLUDED.target_table,
			    predicate_template = EXCLUDED.predicate_template,
			    column_name = EXCLUDED.column_name,
			    applies_to_role = EXCLUDED.applies_to_role,
			    updated_at = now()`,
			rule.ID, rule.Scope, rule.TargetTable, rule.PredicateTemplate,
			rule.ColumnName, rule.AppliesToRole, rule.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to restore rule %s: %w", rule.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit restore: %w", err)
	}

	r.logger.Info("policy rules restored",
		zap.String("path", payload.Path),
		zap.Int("rules", len(backup.Rules)))

	return json.Marshal(map[string]any{"restored": len(backup.Rules)})
}

// RetrainRunner rebuilds the schema context that provider prompts are built
// from, then refreshes the index heartbeat so the health supervisor sees a
// fresh index.
type RetrainRunner struct {
	db     *database.DB
	cache  *redis.Client
	logger *zap.Logger
}

// NewRetrainRunner creates the retrain runner.
func NewRetrainRunner(db *database.DB, cache *redis.Client, logger *zap.Logger) *RetrainRunner {
	return &RetrainRunner{db: db, cache: cache, logger: logger.Named("retrain")}
}

// Kind returns the job kind this runner handles.
func (r *RetrainRunner) Kind() string { return KindRetrain }

// Run regenerates a DDL-style schema summary from information_schema and
// publishes it to Redis.
func (r *RetrainRunner) Run(ctx context.Context, job *Job) ([]byte, error) {
	if r.cache == nil {
		return nil, fmt.Errorf("cache is not configured")
	}

	schemaContext, tables, err := r.buildSchemaContext(ctx)
	if err != nil {
		return nil, err
	}

	if err := r.cache.Set(ctx, SchemaContextKey, schemaContext, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to publish schema context: %w", err)
	}
	heartbeat := time.Now().UTC().Format(time.RFC3339)
	if err := r.cache.Set(ctx, health.IndexHeartbeatKey, heartbeat, 0).Err(); err != nil {
		return nil, fmt.Errorf("failed to refresh index heartbeat: %w", err)
	}

	r.logger.Info("schema context rebuilt", zap.Int("tables", tables))

	return json.Marshal(map[string]any{"tables": tables, "bytes": len(schemaContext)})
}

func (r *RetrainRunner) buildSchemaContext(ctx context.Context) (string, int, error) {
	rows, err := r.db.Query(ctx, `
		SELECT table_name, column_name, data_type
		FROM information_schema.columns
		WHERE table_schema = 'public'
		ORDER BY table_name, ordinal_position`)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read schema: %w", err)
	}
	defer rows.Close()

	var b strings.Builder
	var currentTable string
	tables := 0
	for rows.Next() {
		var table, column, dataType string
		if err := rows.Scan(&table, &column, &dataType); err != nil {
			return "", 0, fmt.Errorf("failed to scan schema row: %w", err)
		}
		if table != currentTable {
			if currentTable != "" {
				b.WriteString(");\n")
			}
			fmt.Fprintf(&b, "CREATE TABLE %s (", table)
			currentTable = table
			tables++
		} else {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s %s", column, dataType)
	}
	if err := rows.Err(); err != nil {
		return "", 0, fmt.Errorf("failed to read schema: %w", err)
	}
	if currentTable != "" {
		b.WriteString(");\n")
	}

	return b.String(), tables, nil
}
