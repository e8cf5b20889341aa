package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPCMConversion(t *testing.T) {
	p := []byte{0x01, 0x00, 0xff, 0xff, 0x00, 0x80, 0x07}

	t.Run("bytes to ints", func(t *testing.T) {
		got := BytesToInts(nil, p)
		assert.Equal(t, []int{1, -1, -32768}, got)

		got = BytesToInts([]int{9}, p[:2])
		assert.Equal(t, []int{9, 1}, got)
	})

	t.Run("bytes to int16", func(t *testing.T) {
		dst := make([]int16, 2)
		n := BytesToInt16(dst, p)
		assert.Equal(t, 2, n)
		assert.Equal(t, []int16{1, -1}, dst)
	})

	t.Run("ints to bytes clips", func(t *testing.T) {
		got := IntsToBytes(nil, []int{1, -1, 40000, -40000})
		assert.Equal(t, []byte{0x01, 0x00, 0xff, 0xff, 0xff, 0x7f, 0x00, 0x80}, got)
	})
}
