package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"

	"github.com/studyloop/recall/internal"
	"github.com/studyloop/recall/pkg/models"
	"github.com/studyloop/recall/pkg/store"
)

var log = internal.GetLogger()

// NewPostgresKnowledgeStore returns a new PostgresKnowledgeStore. Use this to correctly initialize the store.
func NewPostgresKnowledgeStore(
	appState *models.AppState,
	client *bun.DB,
) (*PostgresKnowledgeStore, error) {
	if appState == nil {
		return nil, store.NewStorageError("nil appState received", nil)
	}

	pks := &PostgresKnowledgeStore{
		BaseKnowledgeStore: store.BaseKnowledgeStore[*bun.DB]{Client: client},
		appState:           appState,
	}

	err := pks.OnStart(context.Background())
	if err != nil {
		return nil, store.NewStorageError("failed to run OnInit", err)
	}
	return pks, nil
}

// Force compiler to validate that PostgresKnowledgeStore implements the KnowledgeStore interface.
var _ models.KnowledgeStore = &PostgresKnowledgeStore{}

type PostgresKnowledgeStore struct {
	store.BaseKnowledgeStore[*bun.DB]
	appState *models.AppState
}

func (pks *PostgresKnowledgeStore) OnStart(
	ctx context.Context,
) error {
	err := CreateSchema(ctx, pks.appState, pks.Client)
	if err != nil {
		return store.NewStorageError("failed to ensure postgres schema setup", err)
	}

	return nil
}

func (pks *PostgresKnowledgeStore) GetClient() *bun.DB {
	return pks.Client
}

// CreateResource inserts a resource and all of its chunk embeddings in a
// single transaction. A failure on any insert rolls back everything, so a
// resource is never visible without its embeddings or vice versa.
func (pks *PostgresKnowledgeStore) CreateResource(
	ctx context.Context,
	resource *models.Resource,
	embeddings []models.ResourceEmbedding,
) (*models.Resource, error) {
	if resource.UserID == "" {
		return nil, store.NewStorageError("resource userID is empty", nil)
	}

	dimensions := pks.appState.Config.Embeddings.Dimensions
	for i := range embeddings {
		if len(embeddings[i].Embedding) != dimensions {
			return nil, store.NewEmbeddingMismatchError(
				fmt.Errorf(
					"embedding %d is %d-wide, expected %d",
					i,
					len(embeddings[i].Embedding),
					dimensions,
				),
			)
		}
	}

	resourceRow := &ResourceSchema{
		UserID:  resource.UserID,
		Content: resource.Content,
	}

	err := pks.Client.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(resourceRow).Returning("*").Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert resource: %w", err)
		}

		if len(embeddings) == 0 {
			return nil
		}

		embeddingRows := make([]ResourceEmbeddingSchema, len(embeddings))
		for i, embedding := range embeddings {
			embeddingRows[i] = ResourceEmbeddingSchema{
				ResourceUUID: resourceRow.UUID,
				UserID:       resource.UserID,
				Content:      embedding.Content,
				TokenCount:   embedding.TokenCount,
				Embedding:    pgvector.NewVector(embedding.Embedding),
			}
		}
		_, err = tx.NewInsert().Model(&embeddingRows).Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to insert resource embeddings: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, store.NewStorageError("failed to create resource", err)
	}

	createdResource := &models.Resource{}
	if err := copier.Copy(createdResource, resourceRow); err != nil {
		return nil, store.NewStorageError("failed to copy resource", err)
	}

	return createdResource, nil
}

// GetResource returns a resource by UUID. Resources are scoped to their
// owner; a UUID owned by another user is a not found, never a leak.
func (pks *PostgresKnowledgeStore) GetResource(
	ctx context.Context,
	userID string,
	resourceUUID uuid.UUID,
) (*models.Resource, error) {
	resourceRow := new(ResourceSchema)
	err := pks.Client.NewSelect().
		Model(resourceRow).
		Where("uuid = ?", resourceUUID).
		Where("user_id = ?", userID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.NewNotFoundError("resource " + resourceUUID.String())
		}
		return nil, store.NewStorageError("failed to get resource", err)
	}

	resource := &models.Resource{}
	if err := copier.Copy(resource, resourceRow); err != nil {
		return nil, store.NewStorageError("failed to copy resource", err)
	}
	return resource, nil
}

// ListResources returns a page of the user's resources ordered by
// insertion. cursor is the last seen resource ID; 0 starts from the top.
func (pks *PostgresKnowledgeStore) ListResources(
	ctx context.Context,
	userID string,
	cursor int64,
	limit int,
) (*models.ResourceListResponse, error) {
	var resourceRows []ResourceSchema
	query := pks.Client.NewSelect().
		Model(&resourceRows).
		Where("user_id = ?", userID).
		Where("id > ?", cursor).
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Scan(ctx)
	if err != nil {
		return nil, store.NewStorageError("failed to list resources", err)
	}

	totalCount, err := pks.Client.NewSelect().
		Model((*ResourceSchema)(nil)).
		Where("user_id = ?", userID).
		Count(ctx)
	if err != nil {
		return nil, store.NewStorageError("failed to count resources", err)
	}

	resources := make([]*models.Resource, len(resourceRows))
	for i := range resourceRows {
		resources[i] = &models.Resource{}
		if err := copier.Copy(resources[i], &resourceRows[i]); err != nil {
			return nil, store.NewStorageError("failed to copy resource", err)
		}
	}

	return &models.ResourceListResponse{
		Resources:  resources,
		TotalCount: totalCount,
		RowCount:   len(resources),
	}, nil
}

// DeleteResource soft deletes a resource and all of its embeddings in a
// single transaction. The FK cascade covers hard deletes at purge time.
func (pks *PostgresKnowledgeStore) DeleteResource(
	ctx context.Context,
	userID string,
	resourceUUID uuid.UUID,
) error {
	err := pks.Client.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		r, err := tx.NewDelete().
			Model((*ResourceSchema)(nil)).
			Where("uuid = ?", resourceUUID).
			Where("user_id = ?", userID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete resource: %w", err)
		}
		rowsAffected, err := r.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return models.NewNotFoundError("resource " + resourceUUID.String())
		}

		_, err = tx.NewDelete().
			Model((*ResourceEmbeddingSchema)(nil)).
			Where("resource_uuid = ?", resourceUUID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete resource embeddings: %w", err)
		}

		return nil
	})
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return err
		}
		return store.NewStorageError("failed to delete resource", err)
	}
	return nil
}

// PurgeDeleted hard deletes all soft deleted records from the knowledge store.
func (pks *PostgresKnowledgeStore) PurgeDeleted(ctx context.Context) error {
	log.Debugf("purging knowledge store")

	for _, schema := range tableList {
		log.Debugf("purging schema %T", schema)
		_, err := pks.Client.NewDelete().
			Model(schema).
			WhereDeleted().
			ForceDelete().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("error purging rows from %T: %w", schema, err)
		}
	}
	log.Info("completed purging knowledge store")

	return nil
}

func (pks *PostgresKnowledgeStore) Close() error {
	if pks.Client != nil {
		return pks.Client.Close()
	}
	return nil
}
