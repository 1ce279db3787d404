package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFind(t *testing.T) {
	items := []*struct{ n int }{{1}, {2}, {3}}

	found := Find(items, func(i *struct{ n int }) bool { return i.n == 2 })
	assert.Equal(t, 2, found.n)

	missing := Find(items, func(i *struct{ n int }) bool { return i.n == 9 })
	assert.Nil(t, missing)
}
