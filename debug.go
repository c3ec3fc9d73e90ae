//go:build debug

package metrics

// debugBuild is set by the "debug" build tag. Debug builds panic on
// internal invariant violations instead of logging them.
const debugBuild = true
