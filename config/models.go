package config

import "time"

// Config holds the configuration of the application
// Use cmd.NewConfig to create a new instance
type Config struct {
	Embeddings EmbeddingsConfig `mapstructure:"embeddings"`
	Retrieval  RetrievalConfig  `mapstructure:"retrieval"`
	Store      StoreConfig      `mapstructure:"store"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Data       DataConfig       `mapstructure:"data"`
}

// EmbeddingsConfig configures the embedding provider. The model and
// dimensions are a hard contract: vectors persisted under one model must
// never be compared against vectors from another.
type EmbeddingsConfig struct {
	Service string `mapstructure:"service"`
	Model   string `mapstructure:"model"`
	// Dimensions is the vector width returned by Model.
	// embed-english-light-v3.0 returns 384-wide vectors.
	Dimensions int `mapstructure:"dimensions"`
	// APIKey is loaded from ENV not config file.
	APIKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
}

// RetrievalConfig configures the recall query contract.
type RetrievalConfig struct {
	// MinScore is the relevance floor. Results with cosine similarity at or
	// below this value are excluded.
	MinScore float64 `mapstructure:"min_score"`
	// TopK is the maximum number of results returned from a recall query.
	TopK int       `mapstructure:"top_k"`
	MMR  MMRConfig `mapstructure:"mmr"`
}

// MMRConfig configures optional Maximal Marginal Relevance reranking.
type MMRConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Lambda balances relevance against diversity. 1.0 is pure relevance.
	Lambda float64 `mapstructure:"lambda"`
	// Multiplier determines how many candidates beyond TopK are fetched
	// for reranking.
	Multiplier int `mapstructure:"multiplier"`
}

type StoreConfig struct {
	Type     string         `mapstructure:"type"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
	// AvailableIndexes is populated at connection time based on the
	// installed pgvector version. Not read from the config file.
	AvailableIndexes AvailableIndexes `mapstructure:"available_indexes"`
}

type AvailableIndexes struct {
	IVFFLAT bool `mapstructure:"ivfflat"`
	HSNW    bool `mapstructure:"hsnw"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	Secret   string `mapstructure:"secret"`
	Required bool   `mapstructure:"required"`
}

type DataConfig struct {
	// PurgeEvery is the interval at which soft deleted records are purged.
	// Expressed in minutes. 0 disables purging.
	PurgeEvery int `mapstructure:"purge_every"`
}
