package rterr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type cursor interface{ Next() }

type nopCursor struct{}

func (*nopCursor) Next() {}

func TestIsNil(t *testing.T) {
	var typed *nopCursor
	var viaInterface cursor = typed

	assert.True(t, IsNil(nil))
	assert.True(t, IsNil(viaInterface))
	assert.True(t, IsNil([]float64(nil)))
	assert.False(t, IsNil(cursor(&nopCursor{})))
	assert.False(t, IsNil(0.0))
	assert.False(t, IsNil(""))
}
