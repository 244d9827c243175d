package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oiime/logrusbun"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"

	"github.com/studyloop/recall/config"
	"github.com/studyloop/recall/pkg/auth"
	"github.com/studyloop/recall/pkg/embeddings"
	"github.com/studyloop/recall/pkg/models"
	"github.com/studyloop/recall/pkg/server"
	"github.com/studyloop/recall/pkg/store/postgres"
)

const (
	ErrStoreTypeNotSet   = "store.type must be set"
	ErrPostgresDSNNotSet = "store.postgres.dsn must be set"
	StoreTypePostgres    = "postgres"
)

// run is the entrypoint for the recall server
func run() {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		log.Fatalf("Error configuring recall: %s", err)
	}

	handleCLIOptions(cfg)

	log.Infof("Starting recall server version %s", config.VersionString)

	config.SetLogLevel(cfg)
	appState := NewAppState(cfg)

	srv := server.Create(appState)

	log.Infof("Listening on: %s", srv.Addr)
	err = srv.ListenAndServe()
	if err != nil {
		log.Fatal(err)
	}
}

// NewAppState creates an AppState struct from the config file / ENV, initializes the
// knowledge store, and creates the embeddings client
func NewAppState(cfg *config.Config) *models.AppState {
	embeddingsClient, err := embeddings.NewCohereClient(cfg)
	if err != nil {
		log.Fatalf("Error creating embeddings client: %s", err)
	}

	appState := &models.AppState{
		EmbeddingsClient: embeddingsClient,
		Config:           cfg,
	}

	initializeKnowledgeStore(appState)
	setupSignalHandler(appState)
	setupPurgeProcessor(context.Background(), appState)

	return appState
}

// handleCLIOptions handles CLI options that don't require the server to run
func handleCLIOptions(cfg *config.Config) {
	if showVersion {
		fmt.Println(config.VersionString)
		os.Exit(0)
	}
	if generateKey {
		fmt.Println(auth.GenerateJWT(cfg))
		os.Exit(0)
	}
	if dumpConfig {
		// Secrets are redacted before dumping
		redacted := *cfg
		redacted.Embeddings.APIKey = ""
		redacted.Auth.Secret = ""
		out, err := json.MarshalIndent(redacted, "", "  ")
		if err != nil {
			log.Fatalf("Error dumping config: %s", err)
		}
		fmt.Println(string(out))
		os.Exit(0)
	}
}

// initializeKnowledgeStore initializes the knowledge store based on the config file / ENV
func initializeKnowledgeStore(appState *models.AppState) {
	if appState.Config.Store.Type == "" {
		log.Fatal(ErrStoreTypeNotSet)
	}
	if appState.Config.Store.Type != StoreTypePostgres {
		log.Fatalf("store.type (%s) is not supported", appState.Config.Store.Type)
	}
	if appState.Config.Store.Postgres.DSN == "" {
		log.Fatal(ErrPostgresDSNNotSet)
	}

	db, err := postgres.NewPostgresConn(appState)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if appState.Config.Log.Level == "debug" {
		pgDebugLogging(db)
	}

	knowledgeStore, err := postgres.NewPostgresKnowledgeStore(appState, db)
	if err != nil {
		log.Fatal(err)
	}
	appState.KnowledgeStore = knowledgeStore
}

func pgDebugLogging(db *bun.DB) {
	db.AddQueryHook(logrusbun.NewQueryHook(logrusbun.QueryHookOptions{
		LogSlow:         time.Second,
		Logger:          log,
		QueryLevel:      logrus.DebugLevel,
		ErrorLevel:      logrus.ErrorLevel,
		SlowLevel:       logrus.WarnLevel,
		MessageTemplate: "{{.Operation}}[{{.Duration}}]: {{.Query}}",
		ErrorTemplate:   "{{.Operation}}[{{.Duration}}]: {{.Query}}: {{.Error}}",
	}))
}

// setupSignalHandler sets up a signal handler to close the KnowledgeStore connection on termination
func setupSignalHandler(appState *models.AppState) {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalCh
		if err := appState.KnowledgeStore.Close(); err != nil {
			log.Errorf("Error closing KnowledgeStore connection: %v", err)
		}
		os.Exit(0)
	}()
}

// setupPurgeProcessor sets up a go routine to purge soft deleted records from the
// KnowledgeStore at a regular interval. It's cancellable via the passed context.
// If Config.Data.PurgeEvery is 0, this function does nothing.
func setupPurgeProcessor(ctx context.Context, appState *models.AppState) {
	interval := time.Duration(appState.Config.Data.PurgeEvery) * time.Minute
	if interval == 0 {
		log.Debug("purge delete processor disabled")
		return
	}

	log.Infof("Starting purge delete processor. Purging every %v", interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				log.Info("Stopping purge delete processor")
				return
			default:
				err := appState.KnowledgeStore.PurgeDeleted(ctx)
				if err != nil {
					log.Errorf("error purging deleted records: %v", err)
				}
			}
			time.Sleep(interval)
		}
	}()
}
