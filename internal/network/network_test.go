package network

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Defaults(t *testing.T) {
	r, err := NewRegistry("")
	require.NoError(t, err)

	assert.Equal(t, []string{"hardhat", "kovan"}, r.Names())

	p, err := r.Resolve("hardhat")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), p.FeePercent)
	assert.Equal(t, common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906"), p.Oracle)
	assert.Equal(t, "0.8.4", p.Compiler)
	assert.Equal(t, common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"), p.CollectionAddress())
	assert.Equal(t, common.HexToAddress("0xCf7Ed3AccA5a467e9e704C703E8D87F634fB0Fc9"), p.MarketplaceAddress())
}

func TestRegistry_KovanNeedsOwner(t *testing.T) {
	r, err := NewRegistry("")
	require.NoError(t, err)

	_, err = r.Resolve("kovan")
	assert.ErrorContains(t, err, "owner is required")
}

func TestRegistry_Unknown(t *testing.T) {
	r, err := NewRegistry("")
	require.NoError(t, err)

	_, err = r.Resolve("mainnet")
	assert.ErrorIs(t, err, ErrUnknownNetwork)
}

func TestLoadFile_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.toml")
	content := `
[networks.kovan]
chain_id = 42
owner = "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"
oracle = "0x094C858cF9428a4c18023AA714d3e205b6Db6354"
link_token = "0xa36085F69e2889c224210F603D836748e7dC0088"
oracle_fee = "1000000000000000000"
fee_percent = 5
title_search_uri = "https://false.faux/"
compilers = ["0.8.0", "0.8.4"]
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	r, err := NewRegistry(path)
	require.NoError(t, err)

	p, err := r.Resolve("kovan")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), p.FeePercent)
	assert.Equal(t, "1000000000000000000", p.OracleFee.String())
	assert.Equal(t, "https://false.faux/", p.TitleSearchURI)
	assert.Equal(t, "0.8.4", p.Compiler)
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.yaml")
	content := `
networks:
  local:
    owner: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
    oracle: "0x90F79bf6EB2c4f870365E785982E1f101E93b906"
    fee_percent: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	r, err := NewRegistry(path)
	require.NoError(t, err)

	p, err := r.Resolve("local")
	require.NoError(t, err)
	assert.Equal(t, uint64(10), p.FeePercent)
	assert.Equal(t, common.Address{}, p.LinkToken)
	assert.Equal(t, int64(0), p.OracleFee.Int64())
}

func TestProfile_Invalid(t *testing.T) {
	base := Defaults()["hardhat"]

	tests := []struct {
		name   string
		mutate func(p *Profile)
	}{
		{"bad owner", func(p *Profile) { p.Owner = "0x1234" }},
		{"bad oracle", func(p *Profile) { p.Oracle = "" }},
		{"fee over 100", func(p *Profile) { p.FeePercent = 101 }},
		{"negative oracle fee", func(p *Profile) { p.OracleFee = "-1" }},
		{"bad compiler", func(p *Profile) { p.Compilers = []string{"0.8"} }},
		{"bad uri", func(p *Profile) { p.TitleSearchURI = "ftp://x/" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			p.Compilers = append([]string(nil), base.Compilers...)
			tt.mutate(&p)
			_, err := p.Params("hardhat")
			assert.Error(t, err)
		})
	}
}

func TestLoadFile_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}
