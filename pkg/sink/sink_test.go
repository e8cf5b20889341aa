package sink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySink(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	chunk := []byte{1, 2, 3}
	require.NoError(t, m.Consume(ctx, chunk))
	chunk[0] = 9 // caller reuses its buffer
	require.NoError(t, m.Consume(ctx, []byte{4}))

	assert.Equal(t, []byte{1, 2, 3, 4}, m.Bytes())
	assert.Equal(t, 2, m.Chunks())

	require.NoError(t, m.Close())
	assert.True(t, m.Closed())
	assert.ErrorIs(t, m.Consume(ctx, chunk), ErrClosed)
}
