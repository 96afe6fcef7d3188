package orchestrate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryDelay_Doubles(t *testing.T) {
	base := 500 * time.Millisecond
	max := 30 * time.Second

	assert.Equal(t, 500*time.Millisecond, retryDelay(base, max, 1))
	assert.Equal(t, time.Second, retryDelay(base, max, 2))
	assert.Equal(t, 2*time.Second, retryDelay(base, max, 3))
	assert.Equal(t, 4*time.Second, retryDelay(base, max, 4))
}

func TestRetryDelay_Capped(t *testing.T) {
	base := 500 * time.Millisecond
	max := 3 * time.Second

	assert.Equal(t, max, retryDelay(base, max, 4))
	assert.Equal(t, max, retryDelay(base, max, 50))
}

func TestRetryDelay_ClampsAttempt(t *testing.T) {
	base := time.Second
	assert.Equal(t, base, retryDelay(base, time.Minute, 0))
	assert.Equal(t, base, retryDelay(base, time.Minute, -3))
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := NewConfig(WithMaxAttempts(0))
	assert.Error(t, cfg.Validate())

	cfg = NewConfig(WithMaxRetryDelay(time.Millisecond), WithRetryBaseDelay(time.Second))
	assert.Error(t, cfg.Validate())

	cfg = NewConfig(WithRetrievalLimit(0))
	assert.Error(t, cfg.Validate())
}
