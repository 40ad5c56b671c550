// Package network holds the per-network deploy parameters the ledger is
// bootstrapped from: owner, oracle, LINK token, fee percent and URIs.
package network

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/nomadhouse/nomadhouse/internal/chain"
	"github.com/nomadhouse/nomadhouse/internal/validation"
)

// ErrUnknownNetwork is returned when a profile name is not defined
var ErrUnknownNetwork = errors.New("unknown network")

// Profile is the raw, file-level description of a network
type Profile struct {
	ChainID        uint64   `toml:"chain_id" yaml:"chain_id"`
	Owner          string   `toml:"owner" yaml:"owner"`
	Oracle         string   `toml:"oracle" yaml:"oracle"`
	LinkToken      string   `toml:"link_token" yaml:"link_token"`
	OracleFee      string   `toml:"oracle_fee" yaml:"oracle_fee"`
	JobID          string   `toml:"job_id" yaml:"job_id"`
	FeePercent     uint64   `toml:"fee_percent" yaml:"fee_percent"`
	StartNonce     uint64   `toml:"start_nonce" yaml:"start_nonce"`
	TokenURI       string   `toml:"token_uri" yaml:"token_uri"`
	TitleSearchURI string   `toml:"title_search_uri" yaml:"title_search_uri"`
	Compilers      []string `toml:"compilers" yaml:"compilers"`
}

// File is the on-disk layout of a profiles file
type File struct {
	Networks map[string]Profile `toml:"networks" yaml:"networks"`
}

// Params is a validated profile with parsed values
type Params struct {
	Name           string
	ChainID        uint64
	Owner          common.Address
	Oracle         common.Address
	LinkToken      common.Address
	OracleFee      *big.Int
	JobID          string
	FeePercent     uint64
	StartNonce     uint64
	TokenURI       string
	TitleSearchURI string
	Compiler       string
}

const (
	titleSearchURI = "https://bafybeihuftdtf5rjkep52k5afrydtlo4mvznafhtmrsqaunaninykew3qe.ipfs.dweb.link/"
	jobID          = "4c7b7ffb66b344fbaa64995af81e355a"
	oneLink        = "1000000000000000000"
)

var compilers = []string{"0.8.4", "0.8.3", "0.8.0", "0.7.0"}

// Defaults returns the built-in profiles
func Defaults() map[string]Profile {
	return map[string]Profile{
		"hardhat": {
			ChainID:        31337,
			Owner:          "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
			Oracle:         "0x90F79bf6EB2c4f870365E785982E1f101E93b906",
			LinkToken:      "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
			OracleFee:      "0",
			JobID:          jobID,
			FeePercent:     2,
			StartNonce:     2,
			TitleSearchURI: titleSearchURI,
			Compilers:      compilers,
		},
		"kovan": {
			ChainID:        42,
			Oracle:         "0x094C858cF9428a4c18023AA714d3e205b6Db6354",
			LinkToken:      "0xa36085F69e2889c224210F603D836748e7dC0088",
			OracleFee:      oneLink,
			JobID:          jobID,
			FeePercent:     2,
			TitleSearchURI: titleSearchURI,
			Compilers:      compilers,
		},
	}
}

// LoadFile reads profiles from a TOML or YAML file, chosen by extension
func LoadFile(path string) (map[string]Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading networks file: %w", err)
	}

	var f File
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &f); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported networks file extension %q", filepath.Ext(path))
	}
	return f.Networks, nil
}

// Registry resolves profiles by name
type Registry struct {
	profiles map[string]Profile
}

// NewRegistry builds a registry from the defaults, overlaid by the given file
// when one is set. A profile in the file replaces the built-in one wholesale.
func NewRegistry(path string) (*Registry, error) {
	profiles := Defaults()
	if path != "" {
		extra, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		for name, p := range extra {
			profiles[name] = p
		}
	}
	return &Registry{profiles: profiles}, nil
}

// Names lists the known profile names in order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.profiles))
	for name := range r.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the validated parameters for a named network
func (r *Registry) Resolve(name string) (*Params, error) {
	p, ok := r.profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNetwork, name)
	}
	params, err := p.Params(name)
	if err != nil {
		return nil, fmt.Errorf("network %s: %w", name, err)
	}
	return params, nil
}

// Params validates the profile and parses its values
func (p Profile) Params(name string) (*Params, error) {
	if p.Owner == "" {
		return nil, errors.New("owner is required")
	}
	owner, err := chain.ParseAddress(p.Owner)
	if err != nil {
		return nil, fmt.Errorf("owner: %w", err)
	}
	oracle, err := chain.ParseAddress(p.Oracle)
	if err != nil {
		return nil, fmt.Errorf("oracle: %w", err)
	}

	link := chain.ZeroAddress
	if p.LinkToken != "" {
		if link, err = chain.ParseAddress(p.LinkToken); err != nil {
			return nil, fmt.Errorf("link_token: %w", err)
		}
	}

	fee := new(big.Int)
	if p.OracleFee != "" {
		if fee, err = chain.ParseAmount(p.OracleFee); err != nil {
			return nil, fmt.Errorf("oracle_fee: %w", err)
		}
	}

	if err := validation.ValidateFeePercent(p.FeePercent); err != nil {
		return nil, err
	}
	if err := validation.ValidateURI(p.TokenURI); err != nil {
		return nil, fmt.Errorf("token_uri: %w", err)
	}
	if err := validation.ValidateURI(p.TitleSearchURI); err != nil {
		return nil, fmt.Errorf("title_search_uri: %w", err)
	}
	for _, v := range p.Compilers {
		if err := validation.ValidateCompilerVersion(v); err != nil {
			return nil, err
		}
	}

	return &Params{
		Name:           name,
		ChainID:        p.ChainID,
		Owner:          owner,
		Oracle:         oracle,
		LinkToken:      link,
		OracleFee:      fee,
		JobID:          p.JobID,
		FeePercent:     p.FeePercent,
		StartNonce:     p.StartNonce,
		TokenURI:       p.TokenURI,
		TitleSearchURI: p.TitleSearchURI,
		Compiler:       validation.LatestVersion(p.Compilers),
	}, nil
}

// CollectionAddress is the address the Collection is deployed at
func (p *Params) CollectionAddress() common.Address {
	return chain.ContractAddress(p.Owner, p.StartNonce)
}

// MarketplaceAddress is the address the Marketplace is deployed at, right
// after the Collection.
func (p *Params) MarketplaceAddress() common.Address {
	return chain.ContractAddress(p.Owner, p.StartNonce+1)
}
