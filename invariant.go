package metrics

// isDebugBuild reports whether we're in a "debug" or "race" build, in which
// internal invariant violations panic instead of being logged.
func isDebugBuild() bool {
	return raceBuild || debugBuild
}
