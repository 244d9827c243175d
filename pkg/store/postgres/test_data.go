package postgres

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dbfixture"
	"github.com/uptrace/bun/extra/bundebug"
	"gopkg.in/yaml.v3"

	"github.com/studyloop/recall/pkg/models"
)

type Row interface {
	ResourceSchema
}

type FixtureModel[T Row] struct {
	Model string `yaml:"model"`
	Rows  []T    `yaml:"rows"`
}

type Fixtures[T Row] []FixtureModel[T]

func generateTimeLastNDays(nDays int) time.Time {
	now := time.Now()
	windowStart := now.Add(time.Duration(-nDays) * 24 * time.Hour)
	return gofakeit.DateRange(windowStart, now)
}

// generateRandomUnitVector returns a random vector of the given width with
// unit length, so cosine similarities over fixture data stay well-formed.
func generateRandomUnitVector(width int) []float32 {
	vector := make([]float32, width)
	var norm float64
	for i := range vector {
		vector[i] = gofakeit.Float32Range(-1, 1)
		norm += float64(vector[i]) * float64(vector[i])
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		vector[0] = 1
		return vector
	}
	for i := range vector {
		vector[i] = float32(float64(vector[i]) / norm)
	}
	return vector
}

// GenerateFixtureData generates fixture YAML for the resource table. Chunk
// embeddings are not written to YAML; LoadFixtures derives them from the
// loaded resources with random unit vectors.
func GenerateFixtureData(fixtureCount int, outputDir string) {
	fakerGlobal := gofakeit.NewUnlocked(0)
	gofakeit.SetGlobalFaker(fakerGlobal)

	userCount := fixtureCount / 10
	if userCount == 0 {
		userCount = 1
	}
	userIDs := make([]string, userCount)
	for i := range userIDs {
		userIDs[i] = strings.ToLower(gofakeit.Username())
	}

	resources := make([]ResourceSchema, fixtureCount)
	for i := 0; i < fixtureCount; i++ {
		dateCreated := generateTimeLastNDays(14)
		sentenceCount := gofakeit.Number(1, 5)
		sentences := make([]string, sentenceCount)
		for j := range sentences {
			sentences[j] = gofakeit.Sentence(gofakeit.Number(5, 15))
		}
		resources[i] = ResourceSchema{
			UUID:      uuid.New(),
			CreatedAt: dateCreated,
			UpdatedAt: dateCreated,
			UserID:    userIDs[gofakeit.Number(0, userCount-1)],
			Content:   strings.Join(sentences, " "),
		}
	}

	fixtures := Fixtures[ResourceSchema]{
		{Model: "ResourceSchema", Rows: resources},
	}
	writeFixtureToYAML(fixtures, outputDir, "resource_fixtures.yaml")
}

func writeFixtureToYAML[T Row](fixtures Fixtures[T], outputDir, filename string) {
	data, err := yaml.Marshal(&fixtures)
	if err != nil {
		fmt.Printf("error: %v", err)
		return
	}

	file, err := os.Create(filepath.Join(outputDir, filename))
	if err != nil {
		fmt.Printf("error: %v", err)
		return
	}
	defer func(file *os.File) {
		err := file.Close()
		if err != nil {
			fmt.Printf("error: %v", err)
			return
		}
	}(file)

	_, err = file.Write(data)
	if err != nil {
		fmt.Printf("error: %v", err)
		return
	}

	fmt.Printf("Fixtures generated successfully in %s!\n", filename)
}

// generateResourceEmbeddings chunks every loaded resource and inserts one
// embedding row per chunk, using random unit vectors in place of real ones.
func generateResourceEmbeddings(ctx context.Context, appState *models.AppState, db *bun.DB) error {
	width := appState.Config.Embeddings.Dimensions

	var resources []ResourceSchema
	err := db.NewSelect().Model(&resources).Scan(ctx)
	if err != nil {
		return fmt.Errorf("failed to query resources: %w", err)
	}

	var embeddings []ResourceEmbeddingSchema
	for i := range resources {
		chunks := strings.Split(strings.TrimSpace(resources[i].Content), ".")
		for _, chunk := range chunks {
			chunk = strings.TrimSpace(chunk)
			if chunk == "" {
				continue
			}
			embeddings = append(embeddings, ResourceEmbeddingSchema{
				UUID:         uuid.New(),
				CreatedAt:    resources[i].CreatedAt,
				ResourceUUID: resources[i].UUID,
				UserID:       resources[i].UserID,
				Content:      chunk,
				Embedding:    pgvector.NewVector(generateRandomUnitVector(width)),
			})
		}
	}

	if len(embeddings) == 0 {
		return nil
	}

	_, err = db.NewInsert().Model(&embeddings).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to insert embeddings: %w", err)
	}

	return nil
}

func LoadFixtures(
	ctx context.Context,
	appState *models.AppState,
	db *bun.DB,
	fixturePath string,
) error {
	db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))

	dropSchemaQuery := `DROP SCHEMA public CASCADE;
CREATE SCHEMA public;
GRANT ALL ON SCHEMA public TO postgres;
GRANT ALL ON SCHEMA public TO public;`

	_, err := db.ExecContext(ctx, dropSchemaQuery)
	if err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}

	err = enablePgVectorExtension(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to enable pg_vector extension: %w", err)
	}

	err = CreateSchema(ctx, appState, db)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	db.RegisterModel(
		(*ResourceSchema)(nil),
		(*ResourceEmbeddingSchema)(nil),
	)

	fixture := dbfixture.New(db)

	files, err := os.ReadDir(fixturePath)
	if err != nil {
		return fmt.Errorf("failed to read fixture directory: %w", err)
	}

	for _, file := range files {
		if filepath.Ext(file.Name()) == ".yaml" {
			err = fixture.Load(ctx, os.DirFS(fixturePath), file.Name())
			if err != nil {
				return fmt.Errorf("failed to load fixture %s: %w", file.Name(), err)
			}
		}
	}

	return generateResourceEmbeddings(ctx, appState, db)
}
