package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/agora-backend/internal/domain"
)

// VectorDims sizes the two embedding spaces. They are independent and must
// match what the analysis service returns.
type VectorDims struct {
	Content int
	Claim   int
}

func Migrate(db *gorm.DB, dims VectorDims) error {
	if err := EnsureExtensions(db); err != nil {
		return err
	}
	if err := AutoMigrateAll(db); err != nil {
		return fmt.Errorf("automigrate: %w", err)
	}
	steps := []func(*gorm.DB) error{
		EnsureAuthIndexes,
		EnsureAgentIndexes,
		EnsureContentIndexes,
		EnsureArgumentIndexes,
		EnsureJobIndexes,
	}
	for _, step := range steps {
		if err := step(db); err != nil {
			return err
		}
	}
	return EnsureVectorColumns(db, dims)
}

func EnsureExtensions(db *gorm.DB) error {
	for _, ext := range []string{"vector", "ltree"} {
		if err := db.Exec(fmt.Sprintf(`CREATE EXTENSION IF NOT EXISTS %q;`, ext)).Error; err != nil {
			return fmt.Errorf("enable %s: %w", ext, err)
		}
	}
	return nil
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.Models()...)
}

func exec(db *gorm.DB, name, sql string) error {
	if err := db.Exec(sql).Error; err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	return nil
}

func EnsureAuthIndexes(db *gorm.DB) error {
	if err := exec(db, "idx_user_email_active", `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_user_email_active
		ON "user"(lower(email))
		WHERE deleted_at IS NULL AND email <> '';
	`); err != nil {
		return err
	}
	if err := exec(db, "idx_user_handle_active", `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_user_handle_active
		ON "user"(lower(handle))
		WHERE deleted_at IS NULL;
	`); err != nil {
		return err
	}
	return exec(db, "idx_magic_link_token_expires_at",
		`CREATE INDEX IF NOT EXISTS idx_magic_link_token_expires_at ON magic_link_token(expires_at);`)
}

func EnsureAgentIndexes(db *gorm.DB) error {
	if err := exec(db, "idx_agent_identity_handle_active", `
		CREATE UNIQUE INDEX IF NOT EXISTS idx_agent_identity_handle_active
		ON agent_identity(lower(handle))
		WHERE deleted_at IS NULL;
	`); err != nil {
		return err
	}
	if err := exec(db, "idx_agent_identity_owner_active", `
		CREATE INDEX IF NOT EXISTS idx_agent_identity_owner_active
		ON agent_identity(owner_user_id)
		WHERE deleted_at IS NULL;
	`); err != nil {
		return err
	}
	return exec(db, "idx_agent_token_agent_live", `
		CREATE INDEX IF NOT EXISTS idx_agent_token_agent_live
		ON agent_token(agent_id)
		WHERE revoked_at IS NULL;
	`)
}

func EnsureContentIndexes(db *gorm.DB) error {
	stmts := []struct{ name, sql string }{
		{"idx_post_feed_new", `CREATE INDEX IF NOT EXISTS idx_post_feed_new ON post(created_at DESC, id DESC) WHERE deleted_at IS NULL;`},
		{"idx_post_feed_top", `CREATE INDEX IF NOT EXISTS idx_post_feed_top ON post(score DESC, created_at DESC, id DESC) WHERE deleted_at IS NULL;`},
		{"idx_post_author_created", `CREATE INDEX IF NOT EXISTS idx_post_author_created ON post(author_id, created_at);`},
		{"idx_reply_author_created", `CREATE INDEX IF NOT EXISTS idx_reply_author_created ON reply(author_id, created_at);`},
		{"idx_reply_path_gist", `CREATE INDEX IF NOT EXISTS idx_reply_path_gist ON reply USING GIST (path);`},
		{"idx_reply_post_path", `CREATE INDEX IF NOT EXISTS idx_reply_post_path ON reply(post_id, path);`},
		{"idx_vote_voter_target", `CREATE UNIQUE INDEX IF NOT EXISTS idx_vote_voter_target ON vote(voter_id, target_type, target_id);`},
		{"idx_vote_target", `CREATE INDEX IF NOT EXISTS idx_vote_target ON vote(target_type, target_id);`},
		{"idx_vote_voter_created", `CREATE INDEX IF NOT EXISTS idx_vote_voter_created ON vote(voter_id, created_at);`},
		{"idx_content_embedding_unit", `CREATE UNIQUE INDEX IF NOT EXISTS idx_content_embedding_unit ON content_embedding(content_type, content_id);`},
	}
	for _, s := range stmts {
		if err := exec(db, s.name, s.sql); err != nil {
			return err
		}
	}
	return nil
}

func EnsureArgumentIndexes(db *gorm.DB) error {
	stmts := []struct{ name, sql string }{
		{"idx_adu_source_span", `
			CREATE UNIQUE INDEX IF NOT EXISTS idx_adu_source_span
			ON adu(source_type, source_id, source_hash, span_start, span_end, adu_type);`},
		{"idx_adu_source_live", `
			CREATE INDEX IF NOT EXISTS idx_adu_source_live
			ON adu(source_type, source_id, position)
			WHERE superseded_at IS NULL;`},
		{"idx_argument_relation_edge", `
			CREATE UNIQUE INDEX IF NOT EXISTS idx_argument_relation_edge
			ON argument_relation(source_adu_id, target_adu_id, relation_type);`},
	}
	for _, s := range stmts {
		if err := exec(db, s.name, s.sql); err != nil {
			return err
		}
	}
	return nil
}

func EnsureJobIndexes(db *gorm.DB) error {
	return exec(db, "idx_job_run_claim", `
		CREATE INDEX IF NOT EXISTS idx_job_run_claim
		ON job_run(status, run_after, created_at)
		WHERE deleted_at IS NULL;
	`)
}

// EnsureVectorColumns adds the embedding columns with the configured
// dimensions plus HNSW cosine indexes. gorm skips these fields during
// AutoMigrate because the dimension is runtime config.
func EnsureVectorColumns(db *gorm.DB, dims VectorDims) error {
	if dims.Content <= 0 || dims.Claim <= 0 {
		return fmt.Errorf("vector dims must be positive (content=%d claim=%d)", dims.Content, dims.Claim)
	}
	cols := []struct {
		table string
		dim   int
	}{
		{"content_embedding", dims.Content},
		{"adu", dims.Claim},
		{"canonical_claim", dims.Claim},
	}
	for _, c := range cols {
		if err := exec(db, c.table+".embedding", fmt.Sprintf(
			`ALTER TABLE %s ADD COLUMN IF NOT EXISTS embedding vector(%d);`, c.table, c.dim)); err != nil {
			return err
		}
	}
	for _, table := range []string{"content_embedding", "canonical_claim"} {
		name := "idx_" + table + "_embedding_hnsw"
		if err := exec(db, name, fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops);`, name, table)); err != nil {
			return err
		}
	}
	return nil
}
