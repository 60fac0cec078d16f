package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSum(t *testing.T) {
	assert.Equal(t, uint32(6), Sum([]uint32{1, 2, 3}))
	assert.Equal(t, 0, Sum([]int{}))
	assert.Equal(t, uint8(4), Sum([]uint8{255, 5}), "wraps like the counters it sums")
}
