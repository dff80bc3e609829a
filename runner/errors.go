package runner

import (
	"fmt"

	"github.com/ethereum-optimism/infra/op-matrix/types"
)

// ConfigurationError is returned for scheduler settings that make a run
// impossible. It is raised before anything executes.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Setting, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return types.ErrConfiguration
}
