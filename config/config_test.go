package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xdao.co/attest/compliance"
	"xdao.co/attest/errs"
	"xdao.co/attest/record"
	"xdao.co/attest/resolver"
	"xdao.co/attest/schema"
	"xdao.co/attest/storage/archive"
	"xdao.co/attest/uid"
)

const genesis = `
compliance: strict
resolvers:
  - address: "0x00000000000000000000000000000000000000a1"
    kind: attestation-ref
  - address: "0x00000000000000000000000000000000000000a2"
    kind: recipient
    params:
      target: "0x00000000000000000000000000000000000000b1"
schemas:
  - schema: "bool isFriend"
    revocable: true
  - schema: "bytes32 eventId,uint8 ticketType,uint32 ticketNum"
    resolver: "0x00000000000000000000000000000000000000a1"
    revocable: true
archive:
  write_policy: all
  backends:
    - name: memory
`

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "easd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestFromEnvironment_Defaults(t *testing.T) {
	d, err := FromEnvironment(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7420", d.ListenAddr)
	assert.Equal(t, "info", d.LogLevel)
	assert.Equal(t, "json", d.LogFormat)
	assert.Equal(t, 10*time.Second, d.ShutdownTimeout)
	require.NoError(t, d.Validate())
}

func TestFromEnvironment_Overrides(t *testing.T) {
	d, err := FromEnvironment(map[string]string{
		"EASD_LISTEN_ADDR":      ":9000",
		"EASD_LOG_FORMAT":       "console",
		"EASD_COMPLIANCE":       "strict",
		"EASD_SHUTDOWN_TIMEOUT": "3s",
		"LISTEN_ADDR":           "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, ":9000", d.ListenAddr)
	assert.Equal(t, "console", d.LogFormat)
	assert.Equal(t, 3*time.Second, d.ShutdownTimeout)

	mode, err := d.ComplianceMode(File{Compliance: "permissive"})
	require.NoError(t, err)
	assert.Equal(t, compliance.Strict, mode, "environment wins over the file")

	log, err := d.Logger()
	require.NoError(t, err)
	require.NotNil(t, log)
}

func TestDaemonValidate(t *testing.T) {
	base, err := FromEnvironment(map[string]string{})
	require.NoError(t, err)

	cases := map[string]func(*Daemon){
		"empty listen":  func(d *Daemon) { d.ListenAddr = " " },
		"bad level":     func(d *Daemon) { d.LogLevel = "loud" },
		"bad format":    func(d *Daemon) { d.LogFormat = "xml" },
		"bad mode":      func(d *Daemon) { d.Compliance = "lenient" },
		"negative size": func(d *Daemon) { d.MaxMsgBytes = -1 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := base
			mutate(&d)
			require.Error(t, d.Validate())
		})
	}
}

func TestLoadAndApplyGenesis(t *testing.T) {
	f, err := Load(writeFile(t, genesis))
	require.NoError(t, err)
	require.NoError(t, f.Validate())

	d, err := FromEnvironment(map[string]string{})
	require.NoError(t, err)
	mode, err := d.ComplianceMode(f)
	require.NoError(t, err)
	assert.Equal(t, compliance.Strict, mode)

	ac := d.ArchiveConfig(f)
	assert.Equal(t, "all", ac.WritePolicy)

	dir := resolver.NewDirectory()
	require.NoError(t, f.BindResolvers(dir))
	assert.Len(t, dir.Addresses(), 2)

	reg := schema.NewRegistry()
	ids, err := f.RegisterSchemas(reg)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, uid.Schema("bool isFriend", record.NoResolver, true), ids[0])

	sc, err := reg.Get(ids[1])
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x00000000000000000000000000000000000000a1"), sc.Resolver)

	_, err = f.RegisterSchemas(reg)
	require.ErrorIs(t, err, errs.ErrAlreadyExists)
}

func TestArchiveConfigFallbacks(t *testing.T) {
	ac := Daemon{ArchiveDir: "/var/lib/easd"}.ArchiveConfig(File{})
	require.Equal(t, []archive.Backend{{Name: archive.LocalFS, Dir: "/var/lib/easd"}}, ac.Backends)

	ac = Daemon{}.ArchiveConfig(File{})
	require.Equal(t, []archive.Backend{{Name: archive.Memory}}, ac.Backends)
}

func TestFileValidate_Rejects(t *testing.T) {
	const a1 = "0x00000000000000000000000000000000000000a1"
	cases := map[string]File{
		"bad mode":        {Compliance: "lenient"},
		"bad address":     {Resolvers: []ResolverBinding{{Address: "0x12", Kind: resolver.KindRecipient}}},
		"zero address":    {Resolvers: []ResolverBinding{{Address: "0x0000000000000000000000000000000000000000", Kind: resolver.KindData}}},
		"unknown kind":    {Resolvers: []ResolverBinding{{Address: a1, Kind: "oracle"}}},
		"duplicate bind":  {Resolvers: []ResolverBinding{{Address: a1, Kind: resolver.KindData}, {Address: a1, Kind: resolver.KindRecipient}}},
		"unbound":         {Schemas: []GenesisSchema{{Schema: "bool x", Resolver: a1}}},
		"bad schema addr": {Schemas: []GenesisSchema{{Schema: "bool x", Resolver: "nope"}}},
		"duplicate":       {Schemas: []GenesisSchema{{Schema: "bool x"}, {Schema: "bool x"}}},
		"bad archive":     {Archive: &archive.Config{}},
	}
	for name, f := range cases {
		t.Run(name, func(t *testing.T) {
			require.Error(t, f.Validate())
		})
	}

	// Same schema text under different revocability is a different schema.
	ok := File{Schemas: []GenesisSchema{{Schema: "bool x"}, {Schema: "bool x", Revocable: true}}}
	require.NoError(t, ok.Validate())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	_, err = Load(writeFile(t, "resolvers: [unterminated"))
	require.Error(t, err)
}
