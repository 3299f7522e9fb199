package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate LLM config
	if c.LLM.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "llm.api_key",
			Message: "OPENAI_API_KEY is required",
		})
	}

	if c.LLM.BaseURL != "" {
		if u, err := url.Parse(c.LLM.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "llm.base_url",
				Message: "invalid OpenAI base URL",
			})
		}
	}

	if c.LLM.MaxTokens < 1 || c.LLM.MaxTokens > 4096 {
		errors = append(errors, ValidationError{
			Field:   "llm.max_tokens",
			Message: "max_tokens must be between 1 and 4096",
		})
	}

	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "llm.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Validate vector store config
	if c.Vector.IndexName == "" {
		errors = append(errors, ValidationError{
			Field:   "vector.index_name",
			Message: "INDEX_NAME is required",
		})
	}

	switch c.Vector.Backend {
	case BackendPinecone:
		if c.Pinecone.APIKey == "" {
			errors = append(errors, ValidationError{
				Field:   "pinecone.api_key",
				Message: "PINECONE_API_KEY is required for the pinecone backend",
			})
		}
	case BackendPGVector:
		if c.Database.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "DATABASE_URL is required for the pgvector backend",
			})
		} else if _, err := url.Parse(c.Database.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "database.url",
				Message: "invalid database URL",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "vector.backend",
			Message: fmt.Sprintf("unknown vector backend: %s", c.Vector.Backend),
		})
	}

	if c.Vector.Dimension < 1 {
		errors = append(errors, ValidationError{
			Field:   "vector.dimension",
			Message: "dimension must be positive",
		})
	}

	if c.Vector.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "vector.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Vector.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "vector.batch_size",
			Message: "batch_size must be positive",
		})
	}

	// Validate Processor config
	if c.Processor.ChunkSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_size",
			Message: "chunk_size must be positive",
		})
	}

	if c.Processor.ChunkOverlap < 0 || c.Processor.ChunkOverlap >= c.Processor.ChunkSize {
		errors = append(errors, ValidationError{
			Field:   "processor.chunk_overlap",
			Message: "chunk_overlap must be non-negative and less than chunk_size",
		})
	}

	// Validate Scraper config
	if c.Scraper.MaxDepth < 0 {
		errors = append(errors, ValidationError{
			Field:   "scraper.max_depth",
			Message: "max_depth must not be negative",
		})
	}

	if c.Scraper.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "scraper.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Server.MaxBodyBytes < 1 {
		errors = append(errors, ValidationError{
			Field:   "server.max_body_bytes",
			Message: "max_body_bytes must be positive",
		})
	}

	return errors
}
