package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/kotae/data/catalog.db"
	}
	if cfg.Embedding.BaseURL == "" {
		cfg.Embedding.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedding.APIKeyEnv == "" {
		cfg.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-ada-002"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 1536
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Generation.APIKeyEnv == "" {
		cfg.Generation.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "gpt-4o"
	}
	if cfg.Index.Type == "" {
		cfg.Index.Type = "pinecone"
	}
	if cfg.Index.APIKeyEnv == "" {
		cfg.Index.APIKeyEnv = "PINECONE_API_KEY"
	}
	if cfg.Index.Cloud == "" {
		cfg.Index.Cloud = "aws"
	}
	if cfg.Index.Region == "" {
		cfg.Index.Region = "us-east-1"
	}
	if cfg.Index.ControlURL == "" {
		cfg.Index.ControlURL = "https://api.pinecone.io"
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 1000
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 10
	}
	if cfg.Query.TopK == 0 {
		cfg.Query.TopK = 3
	}
	// Query.ScoreCutoff defaults to 0 (filtering disabled).
	// Watch.Recursive defaults to true when unset (nil).
	if len(cfg.Watch.Directories) > 0 && cfg.Watch.Recursive == nil {
		t := true
		cfg.Watch.Recursive = &t
	}
}
