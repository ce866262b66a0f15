package config

import (
	"os"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

type Config struct {
	Port string

	// Chat model (xAI, OpenAI wire protocol)
	XAIAPIKey string
	XAIAPIURL string
	XAIModel  string

	// Optional embedding API; absent key selects the local fallback
	OpenAIAPIKey   string
	EmbeddingModel string

	ConversationsDB string
	KnowledgeDB     string
	CORSOrigins     string
	StaticDir       string
}

func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "3000"),
		XAIAPIKey:       getEnv("XAI_API_KEY", ""),
		XAIAPIURL:       getEnv("XAI_API_URL", "https://api.x.ai/v1"),
		XAIModel:        getEnv("XAI_MODEL", "grok-3"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		ConversationsDB: getEnv("CONVERSATIONS_DB", "data/conversations.db"),
		KnowledgeDB:     getEnv("KNOWLEDGE_DB", "data/rag_embeddings.db"),
		CORSOrigins:     getEnv("CORS_ORIGINS", "*"),
		StaticDir:       getEnv("STATIC_DIR", "web"),
	}
}

// Validate enforces the startup-time requirements. A missing model
// credential is fatal here, not per-request.
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, is.Port),
		validation.Field(&c.XAIAPIKey, validation.Required.Error("XAI_API_KEY must be set")),
		validation.Field(&c.XAIAPIURL, validation.Required, is.URL),
		validation.Field(&c.XAIModel, validation.Required),
		validation.Field(&c.ConversationsDB, validation.Required),
		validation.Field(&c.KnowledgeDB, validation.Required),
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
