package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/studyloop/recall/pkg/models"
)

type ResourceSchema struct {
	bun.BaseModel `bun:"table:resource,alias:r"`

	UUID uuid.UUID `bun:",pk,type:uuid,default:gen_random_uuid()"`
	// ID is used as a cursor for pagination
	ID        int64     `bun:",autoincrement"`
	CreatedAt time.Time `bun:"type:timestamptz,nullzero,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"type:timestamptz,nullzero,notnull,default:current_timestamp"`
	DeletedAt time.Time `bun:"type:timestamptz,soft_delete,nullzero"`
	UserID    string    `bun:",notnull"`
	Content   string    `bun:",notnull"`
}

var _ bun.BeforeAppendModelHook = (*ResourceSchema)(nil)

func (s *ResourceSchema) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.UpdateQuery); ok {
		s.UpdatedAt = time.Now()
	}
	return nil
}

// BeforeCreateTable is a marker method to ensure uniform interface across all table models - used in table creation iterator
func (s *ResourceSchema) BeforeCreateTable(
	_ context.Context,
	_ *bun.CreateTableQuery,
) error {
	return nil
}

// ResourceEmbeddingSchema stores one embedded chunk of a resource's
// content. UserID is denormalized from the parent resource so similarity
// queries can filter on it without a join; the two must always agree.
type ResourceEmbeddingSchema struct {
	bun.BaseModel `bun:"table:resource_embedding,alias:re"`

	UUID         uuid.UUID       `bun:",pk,type:uuid,default:gen_random_uuid()"`
	CreatedAt    time.Time       `bun:"type:timestamptz,notnull,default:current_timestamp"`
	UpdatedAt    time.Time       `bun:"type:timestamptz,nullzero,default:current_timestamp"`
	DeletedAt    time.Time       `bun:"type:timestamptz,soft_delete,nullzero"`
	ResourceUUID uuid.UUID       `bun:"type:uuid,notnull"`
	UserID       string          `bun:",notnull"`
	Content      string          `bun:",notnull"`
	TokenCount   int             `bun:",notnull,default:0"`
	Embedding    pgvector.Vector `bun:"type:vector(384)"`
	Resource     *ResourceSchema `bun:"rel:belongs-to,join:resource_uuid=uuid,on_delete:cascade"`
}

var _ bun.BeforeAppendModelHook = (*ResourceEmbeddingSchema)(nil)

func (s *ResourceEmbeddingSchema) BeforeAppendModel(_ context.Context, query bun.Query) error {
	if _, ok := query.(*bun.UpdateQuery); ok {
		s.UpdatedAt = time.Now()
	}
	return nil
}

func (s *ResourceEmbeddingSchema) BeforeCreateTable(
	_ context.Context,
	_ *bun.CreateTableQuery,
) error {
	return nil
}

var _ bun.AfterCreateTableHook = (*ResourceSchema)(nil)
var _ bun.AfterCreateTableHook = (*ResourceEmbeddingSchema)(nil)

func (*ResourceSchema) AfterCreateTable(
	ctx context.Context,
	query *bun.CreateTableQuery,
) error {
	_, err := query.DB().NewCreateIndex().
		Model((*ResourceSchema)(nil)).
		Index("resource_user_id_idx").
		Column("user_id").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return err
	}

	_, err = query.DB().NewCreateIndex().
		Model((*ResourceSchema)(nil)).
		Index("resource_id_idx").
		Column("id").
		IfNotExists().
		Exec(ctx)
	return err
}

func (*ResourceEmbeddingSchema) AfterCreateTable(
	ctx context.Context,
	query *bun.CreateTableQuery,
) error {
	colsToIndex := []string{"user_id", "resource_uuid"}
	for _, col := range colsToIndex {
		_, err := query.DB().NewCreateIndex().
			Model((*ResourceEmbeddingSchema)(nil)).
			Index(fmt.Sprintf("resource_embedding_%s_idx", col)).
			IfNotExists().
			Column(col).
			Exec(ctx)
		if err != nil {
			return err
		}
	}
	return nil
}

// tableList holds all schemas in foreign key order. Iterated in reverse
// when creating so referenced tables exist first, in order when purging so
// children go first.
var tableList = []bun.BeforeCreateTableHook{
	&ResourceEmbeddingSchema{},
	&ResourceSchema{},
}

// CreateSchema creates the db schema if it does not exist.
func CreateSchema(
	ctx context.Context,
	appState *models.AppState,
	db *bun.DB,
) error {
	for i := len(tableList) - 1; i >= 0; i-- {
		schema := tableList[i]
		_, err := db.NewCreateTable().
			Model(schema).
			IfNotExists().
			WithForeignKeys().
			Exec(ctx)
		if err != nil {
			// bun still trying to create indexes despite IfNotExists flag
			if strings.Contains(err.Error(), "already exists") {
				continue
			}
			return fmt.Errorf("error creating table for schema %T: %w", schema, err)
		}
	}

	// check that the embedding column width matches the configured model
	if err := checkEmbeddingDims(ctx, appState, db); err != nil {
		return fmt.Errorf("error checking embedding dimensions: %w", err)
	}

	// Create HNSW index on resource_embedding if available
	if appState.Config.Store.Postgres.AvailableIndexes.HSNW {
		if err := createHNSWIndex(ctx, db, "resource_embedding", "embedding"); err != nil {
			return fmt.Errorf("error creating hnsw index: %w", err)
		}
	}

	return nil
}

// createHNSWIndex creates an HNSW index on the given table and column if it does not exist.
// The index is created with the default M and efConstruction values. Only vector_cosine_ops is supported.
func createHNSWIndex(ctx context.Context, db *bun.DB, table, column string) error {
	const (
		m              = 16
		efConstruction = 64
	)

	idx := table + "_" + column + "_hnsw_idx"

	log.Infof("creating hnsw index on %s.%s if it does not exist", table, column)

	_, err := db.ExecContext(
		ctx,
		"CREATE INDEX CONCURRENTLY IF NOT EXISTS ? ON ? USING hnsw (? vector_cosine_ops) WITH (M = ?, ef_construction = ?);",
		bun.Safe(idx),
		bun.Ident(table),
		bun.Ident(column),
		m,
		efConstruction,
	)
	if err != nil {
		return err
	}

	log.Infof("created hnsw index successfully on %s.%s if it did not exist", table, column)

	return nil
}

// checkEmbeddingDims checks the width of the embedding column against the
// dimensions of the configured embedding model. If they do not match, the column is dropped and
// recreated with the correct width.
func checkEmbeddingDims(ctx context.Context, appState *models.AppState, db *bun.DB) error {
	dimensions := appState.Config.Embeddings.Dimensions
	width, err := getEmbeddingColumnWidth(ctx, "resource_embedding", db)
	if err != nil {
		return fmt.Errorf("error getting embedding column width: %w", err)
	}

	if width != dimensions {
		log.Warnf(
			"embedding column width is %d, expected %d.\n migrating embedding column width to %d. this may result in loss of existing embedding vectors",
			width,
			dimensions,
			dimensions,
		)
		err := migrateEmbeddingDims(ctx, db, dimensions)
		if err != nil {
			return fmt.Errorf("error migrating embedding dimensions: %w", err)
		}
	}
	return nil
}

// getEmbeddingColumnWidth returns the width of the embedding column in the provided table.
func getEmbeddingColumnWidth(ctx context.Context, tableName string, db *bun.DB) (int, error) {
	var width int
	err := db.NewSelect().
		Table("pg_attribute").
		ColumnExpr("atttypmod"). // vector width is stored in atttypmod
		Where("attrelid = ?::regclass", tableName).
		Where("attname = 'embedding'").
		Scan(ctx, &width)
	if err != nil {
		return 0, fmt.Errorf("error getting embedding column width: %w", err)
	}
	return width, nil
}

// migrateEmbeddingDims drops the old embedding column and creates a new one with the
// correct width.
func migrateEmbeddingDims(
	ctx context.Context,
	db *bun.DB,
	dimensions int,
) error {
	columnQuery := `DO $$
BEGIN
    IF EXISTS (
        SELECT 1
        FROM   information_schema.columns
        WHERE  table_name = 'resource_embedding'
        AND    column_name = 'embedding'
    ) THEN
        ALTER TABLE resource_embedding DROP COLUMN embedding;
    END IF;
END $$;`

	_, err := db.ExecContext(ctx, columnQuery)
	if err != nil {
		return fmt.Errorf("error dropping column embedding: %w", err)
	}
	_, err = db.NewAddColumn().
		Model((*ResourceEmbeddingSchema)(nil)).
		ColumnExpr(fmt.Sprintf("embedding vector(%d)", dimensions)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("error adding column embedding: %w", err)
	}

	return nil
}

// NewPostgresConn creates a new bun.DB connection to a postgres database using the provided DSN.
// The connection is configured to pool connections based on the number of PROCs available.
func NewPostgresConn(appState *models.AppState) (*bun.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	maxOpenConns := 4 * runtime.GOMAXPROCS(0)

	// WithReadTimeout is 10 minutes to avoid timeouts when creating indexes.
	sqldb := sql.OpenDB(
		pgdriver.NewConnector(
			pgdriver.WithDSN(appState.Config.Store.Postgres.DSN),
			pgdriver.WithReadTimeout(10*time.Minute),
		),
	)
	sqldb.SetMaxOpenConns(maxOpenConns)
	sqldb.SetMaxIdleConns(maxOpenConns)

	db := bun.NewDB(sqldb, pgdialect.New())

	// Enable pgvector extension
	err := enablePgVectorExtension(ctx, db)
	if err != nil {
		log.Print("error enabling pgvector extension: ", err)
		return nil, err
	}

	// IVFFLAT indexes are always available
	appState.Config.Store.Postgres.AvailableIndexes.IVFFLAT = true

	// Check if HNSW indexes are available
	isHNSW, err := isHNSWAvailable(ctx, db)
	if err != nil {
		log.Print("error checking if hnsw indexes are available: ", err)
		return nil, err
	}
	if isHNSW {
		appState.Config.Store.Postgres.AvailableIndexes.HSNW = true
	}

	return db, nil
}

// enablePgVectorExtension creates the pgvector extension if it does not exist and updates it if it is out of date.
func enablePgVectorExtension(ctx context.Context, db *bun.DB) error {
	// Create pgvector extension if it does not exist
	_, err := db.Exec("CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("error creating pgvector extension: %w", err)
	}

	// if this is an upgrade, we may need to update the pgvector extension
	// this is a no-op if the extension is already up to date
	_, err = db.Exec("ALTER EXTENSION vector UPDATE")
	if err != nil {
		return fmt.Errorf("error updating pgvector extension: %w", err)
	}

	return nil
}

// isHNSWAvailable checks if the vector extension version is 0.5.0+.
func isHNSWAvailable(ctx context.Context, db *bun.DB) (bool, error) {
	const minVersion = "0.5.0"
	requiredVersion, err := semver.NewVersion(minVersion)
	if err != nil {
		return false, fmt.Errorf("error parsing required vector extension version: %w", err)
	}

	var version string
	err = db.NewSelect().
		Column("extversion").
		TableExpr("pg_extension").
		Where("extname = 'vector'").
		Scan(ctx, &version)
	if err != nil {
		if err == sql.ErrNoRows {
			// The vector extension is not installed
			log.Debug("vector extension not installed")
			return false, nil
		}
		return false, fmt.Errorf("error checking vector extension version: %w", err)
	}

	thisVersion, err := semver.NewVersion(version)
	if err != nil {
		return false, fmt.Errorf("error parsing vector extension version: %w", err)
	}

	available := !thisVersion.LessThan(requiredVersion)
	log.Debugf("vector extension version %s. hnsw available: %t", version, available)
	return available, nil
}
