// Package verify submits contract sources to an Etherscan-compatible explorer.
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/compose-network/contract-deployer/configs"
	"github.com/compose-network/contract-deployer/internal/artifacts"
	"github.com/compose-network/contract-deployer/internal/logger"
	"github.com/ethereum/go-ethereum/common"
)

const (
	statusOK          = "1"
	resultPending     = "pending in queue"
	resultPass        = "pass - verified"
	resultAlreadyDone = "already verified"

	defaultPollInterval = 5 * time.Second
)

var (
	ErrMissingAPIKey = errors.New("explorer API key is not configured")
	ErrPollsExceeded = errors.New("verification still pending")
)

type (
	Request struct {
		ChainID     uint64
		Address     common.Address
		Artifact    artifacts.Artifact
		EncodedArgs []byte
	}

	// VerificationFailure wraps every error Verify returns.
	VerificationFailure struct {
		Contract string
		Address  common.Address
		Err      error
	}

	Verifier struct {
		apiURL       string
		apiKey       string
		client       *http.Client
		pollInterval time.Duration
		maxPolls     int
		logger       *slog.Logger
	}

	apiResponse struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		Result  string `json:"result"`
	}
)

func (e *VerificationFailure) Error() string {
	return fmt.Sprintf("verification of %s at %s failed: %v", e.Contract, e.Address.Hex(), e.Err)
}

func (e *VerificationFailure) Unwrap() error {
	return e.Err
}

func NewVerifier(cfg configs.Verification, apiKey string) *Verifier {
	maxPolls := cfg.MaxPolls
	if maxPolls <= 0 {
		maxPolls = 1
	}
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	return &Verifier{
		apiURL:       cfg.APIURL,
		apiKey:       apiKey,
		client:       &http.Client{Timeout: cfg.Timeout},
		pollInterval: pollInterval,
		maxPolls:     maxPolls,
		logger:       logger.Named("verifier"),
	}
}

// Verify submits the standard-JSON input of req.Artifact once and polls for the outcome.
// A contract the explorer already knows counts as verified.
func (v *Verifier) Verify(ctx context.Context, req Request) error {
	fail := func(err error) error {
		return &VerificationFailure{Contract: req.Artifact.Name, Address: req.Address, Err: err}
	}

	if v.apiKey == "" {
		return fail(ErrMissingAPIKey)
	}

	contractName, err := req.Artifact.FullyQualifiedName()
	if err != nil {
		return fail(err)
	}
	info, err := req.Artifact.BuildInfo()
	if err != nil {
		return fail(err)
	}

	log := v.logger.
		With("contract", contractName).
		With("address", req.Address).
		With("chain_id", req.ChainID)

	form := url.Values{}
	form.Set("apikey", v.apiKey)
	form.Set("module", "contract")
	form.Set("action", "verifysourcecode")
	form.Set("contractaddress", req.Address.Hex())
	form.Set("sourceCode", string(info.Input))
	form.Set("codeformat", "solidity-standard-json-input")
	form.Set("contractname", contractName)
	form.Set("compilerversion", "v"+strings.TrimPrefix(info.SolcLongVersion, "v"))
	// Etherscan's parameter name is misspelled.
	form.Set("constructorArguements", common.Bytes2Hex(req.EncodedArgs))

	log.Info("submitting source verification")

	submitted, err := v.do(ctx, http.MethodPost, req.ChainID, form)
	if err != nil {
		return fail(err)
	}
	if submitted.Status != statusOK {
		if isAlreadyVerified(submitted.Result) {
			log.Info("contract is already verified")
			return nil
		}
		return fail(fmt.Errorf("submission rejected: %s", submitted.Result))
	}

	guid := submitted.Result
	log = log.With("guid", guid)

	ticker := time.NewTicker(v.pollInterval)
	defer ticker.Stop()

	for poll := 1; poll <= v.maxPolls; poll++ {
		select {
		case <-ctx.Done():
			return fail(ctx.Err())
		case <-ticker.C:
		}

		query := url.Values{}
		query.Set("apikey", v.apiKey)
		query.Set("module", "contract")
		query.Set("action", "checkverifystatus")
		query.Set("guid", guid)

		status, err := v.do(ctx, http.MethodGet, req.ChainID, query)
		if err != nil {
			return fail(err)
		}

		result := strings.ToLower(status.Result)
		switch {
		case strings.Contains(result, resultPending):
			log.With("poll", poll).Debug("verification pending")
			continue
		case isAlreadyVerified(status.Result):
			log.Info("contract is already verified")
			return nil
		case status.Status == statusOK && strings.HasPrefix(result, resultPass):
			log.Info("contract verified")
			return nil
		default:
			return fail(fmt.Errorf("explorer reported: %s", status.Result))
		}
	}

	return fail(fmt.Errorf("%w after %d polls", ErrPollsExceeded, v.maxPolls))
}

func isAlreadyVerified(result string) bool {
	return strings.Contains(strings.ToLower(result), resultAlreadyDone)
}

func (v *Verifier) do(ctx context.Context, method string, chainID uint64, params url.Values) (apiResponse, error) {
	endpoint, err := url.Parse(v.apiURL)
	if err != nil {
		return apiResponse{}, fmt.Errorf("invalid explorer API url: %w", err)
	}

	query := endpoint.Query()
	query.Set("chainid", strconv.FormatUint(chainID, 10))

	var body io.Reader
	if method == http.MethodGet {
		for key, values := range params {
			query[key] = values
		}
	} else {
		body = strings.NewReader(params.Encode())
	}
	endpoint.RawQuery = query.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint.String(), body)
	if err != nil {
		return apiResponse{}, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := v.client.Do(httpReq)
	if err != nil {
		return apiResponse{}, fmt.Errorf("explorer request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return apiResponse{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return apiResponse{}, fmt.Errorf("failed to read response body: %w", err)
	}

	var decoded apiResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return apiResponse{}, fmt.Errorf("failed to unmarshal explorer response: %w", err)
	}

	return decoded, nil
}
