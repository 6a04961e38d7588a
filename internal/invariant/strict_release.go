//go:build !farmdebug

package invariant

const strict = false
