package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestNewConfig_Options(t *testing.T) {
	cfg := NewConfig(
		WithHost("http://models.internal:8080"),
		WithEmbeddingModel("text-embedding-3-small"),
		WithGeneratorModel("gpt-4o-mini"),
		WithMaxContextChars(1000),
	)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://models.internal:8080/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://models.internal:8080/v1", cfg.GeneratorHost)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, "gpt-4o-mini", cfg.GeneratorModel)
	assert.Equal(t, 1000, cfg.MaxContextChars)
}

func TestConfig_SplitHosts(t *testing.T) {
	cfg := NewConfig(
		WithEmbeddingHost("http://embed.internal:8080"),
		WithGeneratorHost("http://gen.internal:8080/v1"),
	)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://embed.internal:8080/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://gen.internal:8080/v1", cfg.GeneratorHost)
}

func TestConfig_NormalizeTrailingSlash(t *testing.T) {
	cfg := NewConfig(WithHost("http://localhost:11434/"))
	cfg.Normalize()
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
}

func TestConfig_ValidateRejectsIncomplete(t *testing.T) {
	cfg := NewConfig()
	cfg.EmbeddingModel = ""
	assert.Error(t, cfg.Validate())

	cfg = NewConfig()
	cfg.GeneratorHost = ""
	assert.Error(t, cfg.Validate())

	cfg = NewConfig(WithMaxContextChars(0))
	assert.Error(t, cfg.Validate())
}
