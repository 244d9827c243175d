package models

import (
	"github.com/studyloop/recall/config"
)

// AppState is a struct that holds the state of the application
// Use cmd.NewAppState to create a new instance
type AppState struct {
	EmbeddingsClient EmbeddingsClient
	KnowledgeStore   KnowledgeStore
	Config           *config.Config
}
