package invariant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViolated(t *testing.T) {
	if Strict() {
		assert.Panics(t, func() { Violated("double release", "cell", 3) })
		return
	}
	assert.NotPanics(t, func() { Violated("double release", "cell", 3) })
}
