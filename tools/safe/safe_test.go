package safe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMustNotNil(t *testing.T) {
	var typed *int
	var iface any = typed
	assert.Panics(t, func() { MustNotNil(nil, "nil") })
	assert.Panics(t, func() { MustNotNil(iface, "typed nil") })
	assert.NotPanics(t, func() { MustNotNil(new(int), "ptr") })
	assert.NotPanics(t, func() { MustNotNil(3, "value") })
}

func TestGoRecovers(t *testing.T) {
	var wg sync.WaitGroup
	wg.Add(1)
	ran := false
	Go("boom", func() {
		defer wg.Done()
		ran = true
		panic("boom")
	})
	wg.Wait()
	assert.True(t, ran)
}
