package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func CleanDB(t *testing.T, db *bun.DB) {
	_, err := db.NewDropTable().
		Model(&ResourceEmbeddingSchema{}).
		Cascade().
		IfExists().
		Exec(context.Background())
	require.NoError(t, err)

	_, err = db.NewDropTable().
		Model(&ResourceSchema{}).
		Cascade().
		IfExists().
		Exec(context.Background())
	require.NoError(t, err)
}
