package resolver

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownContract = errors.New("contract is not in the catalog")
	// ErrDevelopmentOnly is returned when a development-only contract is resolved for a public network.
	ErrDevelopmentOnly = errors.New("contract is deployed on development networks only")
)

// DependencyNotFoundError means a contract was resolved before a record it needs
// exists in the run, which is an ordering bug in the catalog.
type DependencyNotFoundError struct {
	Contract   string
	Dependency string
}

func (e *DependencyNotFoundError) Error() string {
	return fmt.Sprintf("dependency not found: %s requires %s, which has not been deployed in this run", e.Contract, e.Dependency)
}
