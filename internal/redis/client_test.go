package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	c, err := NewClient("redis://:pw@localhost:6380/2")
	require.NoError(t, err)
	defer c.Close()

	opts := c.Options()
	assert.Equal(t, "localhost:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 2, opts.DB)
}

func TestNewClient_BadURL(t *testing.T) {
	_, err := NewClient("http://localhost")
	assert.Error(t, err)
}
