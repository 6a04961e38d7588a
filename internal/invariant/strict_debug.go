//go:build farmdebug

package invariant

const strict = true
