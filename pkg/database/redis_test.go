package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-sales/pkg/config"
)

func TestNewRedisClient_DisabledReturnsNil(t *testing.T) {
	client, err := NewRedisClient(context.Background(), &config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestRedisOptions(t *testing.T) {
	opts := redisOptions(&config.RedisConfig{Host: "cache.internal", Port: 6380, Password: "pw", DB: 2})

	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, "ekaya-sales", opts.ClientName)
}
