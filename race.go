//go:build race

package metrics

// raceBuild is set when the race detector is enabled; invariant violations
// fail fast so races surface in CI.
const raceBuild = true
