package build

import "errors"

// Sentinel errors for orchestrator failures. They are wrapped in classified
// errors carrying the package and path.
var (
	// ErrUnresolvedTarget is the cause when an explicitly requested unit
	// matches no role naming convention.
	ErrUnresolvedTarget = errors.New("requested unit matches no role")
	// ErrFallbackLoop is the cause when a second source control fallback
	// would be needed within one build.
	ErrFallbackLoop = errors.New("source control fallback repeated")
)
