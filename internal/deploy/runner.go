// Package deploy runs the catalog against a network: resolution, transaction
// submission, records and best-effort verification.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/compose-network/contract-deployer/internal/artifacts"
	"github.com/compose-network/contract-deployer/internal/catalog"
	"github.com/compose-network/contract-deployer/internal/contracts"
	"github.com/compose-network/contract-deployer/internal/logger"
	"github.com/compose-network/contract-deployer/internal/network"
	"github.com/compose-network/contract-deployer/internal/records"
	"github.com/compose-network/contract-deployer/internal/resolver"
	"github.com/compose-network/contract-deployer/internal/verify"
)

type (
	Resolver interface {
		Resolve(profile network.Profile, contractName string) (resolver.Plan, error)
	}

	Deployer interface {
		Deploy(ctx context.Context, req contracts.Request) (contracts.Result, error)
	}

	Verifier interface {
		Verify(ctx context.Context, req verify.Request) error
	}

	ArtifactSource interface {
		Get(name string) (artifacts.Artifact, error)
	}

	HistoryWriter interface {
		Write(record records.Record) error
	}

	// BlockedError marks a contract that was not attempted because a contract it needs failed.
	BlockedError struct {
		Contract   string
		Dependency string
	}

	Failure struct {
		Contract string
		Err      error
	}

	Report struct {
		Plans    []resolver.Plan
		Deployed []records.Record
		Skipped  []string
		Failed   []Failure
		// Unverified holds verification failures. They never fail a contract.
		Unverified []Failure
	}

	Runner struct {
		catalog   *catalog.Catalog
		resolver  Resolver
		deployer  Deployer
		verifier  Verifier
		artifacts ArtifactSource
		history   HistoryWriter
		registry  *records.Registry
		now       func() time.Time
		logger    *slog.Logger
	}
)

func (e *BlockedError) Error() string {
	return fmt.Sprintf("%s was not deployed: dependency %s failed", e.Contract, e.Dependency)
}

// Err joins every contract failure, or returns nil when all selected contracts deployed.
func (r Report) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("%s: %w", f.Contract, f.Err))
	}

	return errors.Join(errs...)
}

// FailedByContract indexes Failed by contract name.
func (r Report) FailedByContract() map[string]error {
	failed := make(map[string]error, len(r.Failed))
	for _, f := range r.Failed {
		failed[f.Contract] = f.Err
	}

	return failed
}

// NewRunner wires a pipeline. history and verifier may be nil.
func NewRunner(cat *catalog.Catalog, res Resolver, deployer Deployer, verifier Verifier, source ArtifactSource, history HistoryWriter, registry *records.Registry) *Runner {
	return &Runner{
		catalog:   cat,
		resolver:  res,
		deployer:  deployer,
		verifier:  verifier,
		artifacts: source,
		history:   history,
		registry:  registry,
		now:       time.Now,
		logger:    logger.Named("deploy_runner"),
	}
}

// Run deploys the contracts selected by tags, and the contracts they need, in catalog order.
// A failed contract blocks its dependents; independent contracts still deploy.
func (r *Runner) Run(ctx context.Context, profile network.Profile, tags []string) (Report, error) {
	if err := profile.Validate(); err != nil {
		return Report{}, err
	}

	var (
		report   Report
		failed   = make(map[string]bool)
		selected = r.selectWithDependencies(tags, profile.IsDevelopment)
	)

	r.logger.
		With("network", profile.String()).
		With("contracts", len(selected)).
		Info("starting deployment run")

	for _, contract := range selected {
		log := r.logger.With("contract", contract.Name)

		if err := ctx.Err(); err != nil {
			report.Failed = append(report.Failed, Failure{Contract: contract.Name, Err: err})
			failed[contract.Name] = true
			continue
		}

		if contract.DevelopmentOnly && !profile.IsDevelopment {
			log.With("network", profile.Name).Info("skipping development-only contract")
			report.Skipped = append(report.Skipped, contract.Name)
			continue
		}

		if dep, blocked := firstFailed(r.catalog.Dependencies(contract, profile.IsDevelopment), failed); blocked {
			err := &BlockedError{Contract: contract.Name, Dependency: dep}
			log.With("dependency", dep).Warn("contract blocked by failed dependency")
			report.Failed = append(report.Failed, Failure{Contract: contract.Name, Err: err})
			failed[contract.Name] = true
			continue
		}

		plan, record, err := r.deploy(ctx, profile, contract)
		if err != nil {
			log.With("err", err.Error()).Error("contract deployment failed")
			report.Failed = append(report.Failed, Failure{Contract: contract.Name, Err: err})
			failed[contract.Name] = true
			continue
		}
		report.Plans = append(report.Plans, plan)
		report.Deployed = append(report.Deployed, record)

		if plan.ShouldVerify {
			if err := r.verify(ctx, profile, contract, record); err != nil {
				log.With("err", err.Error()).Warn("source verification failed, deployment is kept")
				report.Unverified = append(report.Unverified, Failure{Contract: contract.Name, Err: err})
			}
		}
	}

	r.logger.
		With("deployed", len(report.Deployed)).
		With("skipped", len(report.Skipped)).
		With("failed", len(report.Failed)).
		Info("deployment run finished")

	return report, report.Err()
}

func (r *Runner) deploy(ctx context.Context, profile network.Profile, contract catalog.Contract) (resolver.Plan, records.Record, error) {
	plan, err := r.resolver.Resolve(profile, contract.Name)
	if err != nil {
		return resolver.Plan{}, records.Record{}, err
	}

	artifact, err := r.artifacts.Get(contract.Artifact)
	if err != nil {
		return resolver.Plan{}, records.Record{}, err
	}

	req := contracts.Request{
		ContractName:    contract.Name,
		Artifact:        artifact,
		ConstructorArgs: plan.ConstructorArgs,
		Confirmations:   plan.ConfirmationsRequired,
	}
	if contract.Proxy != nil {
		proxyArtifact, err := r.artifacts.Get(contract.Proxy.Artifact)
		if err != nil {
			return resolver.Plan{}, records.Record{}, err
		}
		req.Proxy = &contracts.ProxyRequest{
			Artifact:        proxyArtifact,
			Initializer:     contract.Proxy.Initializer,
			InitializerArgs: plan.InitializerArgs,
		}
	}
	if contract.Outputs != nil {
		req.Outputs = &contracts.OutputsRequest{Method: contract.Outputs.Method, Fields: contract.Outputs.Fields}
	}

	result, err := r.deployer.Deploy(ctx, req)
	if err != nil {
		return resolver.Plan{}, records.Record{}, err
	}

	record := records.Record{
		ContractName:          contract.Name,
		Artifact:              contract.Artifact,
		Network:               profile.Name,
		ChainID:               profile.ChainID,
		Address:               result.Address,
		Implementation:        result.Implementation,
		ConstructorArgs:       plan.ConstructorArgs,
		EncodedArgs:           result.EncodedArgs,
		ConfirmationsRequired: plan.ConfirmationsRequired,
		TxHash:                result.TxHash,
		BlockNumber:           result.BlockNumber,
		Outputs:               result.Outputs,
		DeployedAt:            r.now().UTC(),
	}
	r.registry.Save(record)

	if r.history != nil {
		if err := r.history.Write(record); err != nil {
			r.logger.
				With("contract", contract.Name).
				With("err", err.Error()).
				Warn("failed to append deployment history")
		}
	}

	return plan, record, nil
}

func (r *Runner) verify(ctx context.Context, profile network.Profile, contract catalog.Contract, record records.Record) error {
	if r.verifier == nil {
		return nil
	}

	artifact, err := r.artifacts.Get(contract.Artifact)
	if err != nil {
		return &verify.VerificationFailure{Contract: contract.Name, Address: record.VerificationTarget(), Err: err}
	}

	return r.verifier.Verify(ctx, verify.Request{
		ChainID:     profile.ChainID,
		Address:     record.VerificationTarget(),
		Artifact:    artifact,
		EncodedArgs: record.EncodedArgs,
	})
}

// selectWithDependencies returns the tagged contracts plus everything they need, in catalog order.
func (r *Runner) selectWithDependencies(tags []string, development bool) []catalog.Contract {
	wanted := make(map[string]bool)
	var visit func(name string)
	visit = func(name string) {
		if wanted[name] {
			return
		}
		contract, ok := r.catalog.Contract(name)
		if !ok {
			return
		}
		wanted[name] = true
		for _, dep := range r.catalog.Dependencies(contract, development) {
			visit(dep)
		}
	}

	for _, contract := range r.catalog.Select(tags) {
		visit(contract.Name)
	}

	return slices.DeleteFunc(r.catalog.Contracts(), func(c catalog.Contract) bool {
		return !wanted[c.Name]
	})
}

func firstFailed(deps []string, failed map[string]bool) (string, bool) {
	for _, dep := range deps {
		if failed[dep] {
			return dep, true
		}
	}

	return "", false
}
