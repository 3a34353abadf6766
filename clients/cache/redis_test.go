package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitTestRedisConfigOptions(t *testing.T) {
	options, err := (&RedisConfig{Address: "localhost:6379", Password: "secret", DB: 2}).options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", options.Addr)
	assert.Equal(t, "secret", options.Password)
	assert.Equal(t, 2, options.DB)

	options, err = (&RedisConfig{Address: "redis://:fromurl@redis:6380/3"}).options()
	require.NoError(t, err)
	assert.Equal(t, "redis:6380", options.Addr)
	assert.Equal(t, "fromurl", options.Password)
	assert.Equal(t, 3, options.DB)

	options, err = (&RedisConfig{Address: "redis://:fromurl@redis:6380/3", Password: "override"}).options()
	require.NoError(t, err)
	assert.Equal(t, "override", options.Password)

	_, err = (&RedisConfig{Address: "http://redis:6379"}).options()
	require.Error(t, err)
}
