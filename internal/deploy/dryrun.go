package deploy

import (
	"context"

	"github.com/compose-network/contract-deployer/internal/artifacts"
	"github.com/compose-network/contract-deployer/internal/contracts"
	"github.com/ethereum/go-ethereum/common"
)

type (
	// DryRunDeployer sends nothing. It type-checks constructor arguments when the
	// artifact is available and returns zero addresses so dependents still resolve.
	DryRunDeployer struct{}

	// dryRunArtifacts falls back to a bare artifact so a dry run works before compilation.
	dryRunArtifacts struct {
		set artifacts.Set
	}
)

func (DryRunDeployer) Deploy(_ context.Context, req contracts.Request) (contracts.Result, error) {
	if len(req.Artifact.Bytecode) > 0 {
		if _, err := contracts.CoerceArgs(req.Artifact.ABI.Constructor.Inputs, req.ConstructorArgs); err != nil {
			return contracts.Result{}, err
		}
	}

	var result contracts.Result
	if req.Proxy != nil {
		result.Implementation = &common.Address{}
	}
	if req.Outputs != nil {
		result.Outputs = make(map[string]common.Address, len(req.Outputs.Fields))
		for _, field := range req.Outputs.Fields {
			result.Outputs[field] = common.Address{}
		}
	}

	return result, nil
}

func (a dryRunArtifacts) Get(name string) (artifacts.Artifact, error) {
	if artifact, err := a.set.Get(name); err == nil {
		return artifact, nil
	}

	return artifacts.Artifact{Name: name}, nil
}
