package keys

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"xdao.co/attest/model"
)

func TestSignRecover(t *testing.T) {
	seed := testSeed(7)
	key, err := PrivateKeyFromSeed(seed)
	require.NoError(t, err)
	addr, err := AddressFromSeed(seed)
	require.NoError(t, err)

	digest := crypto.Keccak256([]byte("hello"))
	sig, err := Sign(digest, key)
	require.NoError(t, err)
	require.Len(t, sig, crypto.SignatureLength)

	got, err := Recover(digest, sig)
	require.NoError(t, err)
	require.Equal(t, addr, got)

	other := crypto.Keccak256([]byte("other"))
	got, err = Recover(other, sig)
	if err == nil {
		require.NotEqual(t, addr, got)
	}

	_, err = Recover(digest, sig[:10])
	require.Error(t, err)
	_, err = Sign(digest, nil)
	require.Error(t, err)
}

func TestSignEnvelope(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	env := model.Envelope{Method: "Attest", Body: []byte(`{"schema":"0x00"}`), Nonce: "n-1", Expires: 1700000060}
	require.NoError(t, SignEnvelope(&env, key))

	signer, err := EnvelopeSigner(env)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(key.PublicKey), signer)

	for name, tamper := range map[string]func(*model.Envelope){
		"nonce":   func(e *model.Envelope) { e.Nonce = "n-2" },
		"expires": func(e *model.Envelope) { e.Expires += 3600 },
		"method":  func(e *model.Envelope) { e.Method = "Revoke" },
	} {
		changed := env
		tamper(&changed)
		got, err := EnvelopeSigner(changed)
		if err == nil {
			require.NotEqual(t, signer, got, name)
		}
	}
}

func TestStoreLifecycle(t *testing.T) {
	st, err := OpenStore(t.TempDir())
	require.NoError(t, err)

	root, err := PrivateKeyFromSeed(testSeed(3))
	require.NoError(t, err)
	rootAddr, err := st.Create("alice", root, false)
	require.NoError(t, err)
	require.Equal(t, crypto.PubkeyToAddress(root.PublicKey), rootAddr)

	path := st.Path(Ref{Attester: "alice"})
	require.Equal(t, filepath.Join(st.Dir, "alice", "root.key"), path)
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	_, err = st.Create("alice", root, false)
	require.Error(t, err, "existing key must not be overwritten")
	_, err = st.Create("alice", root, true)
	require.NoError(t, err)

	issuer, err := st.Derive("alice", "issuer", false)
	require.NoError(t, err)
	require.NotEqual(t, rootAddr, issuer)
	again, err := st.Derive("alice", "issuer", true)
	require.NoError(t, err)
	require.Equal(t, issuer, again, "derivation is deterministic")

	got, err := st.Address(Ref{Attester: "alice"})
	require.NoError(t, err)
	require.Equal(t, rootAddr, got)

	key, err := st.Key(Ref{Attester: "alice", Role: "issuer"})
	require.NoError(t, err)
	require.Equal(t, issuer, crypto.PubkeyToAddress(key.PublicKey))

	_, err = st.Derive("bob", "issuer", false)
	require.Error(t, err, "bob has no root key")
	_, err = st.Derive("alice", "", false)
	require.Error(t, err)
	_, err = st.Key(Ref{Attester: "a/b"})
	require.Error(t, err)

	list, err := st.Attesters()
	require.NoError(t, err)
	require.Equal(t, []Attester{{
		Name:    "alice",
		Address: rootAddr,
		Roles:   []RoleAddress{{Role: "issuer", Address: issuer}},
	}}, list)
}

func TestStoreAttesters_SkipsForeignEntries(t *testing.T) {
	st := &Store{Dir: filepath.Join(t.TempDir(), "missing")}
	list, err := st.Attesters()
	require.NoError(t, err)
	require.Empty(t, list)

	st.Dir = t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(st.Dir, "empty"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(st.Dir, "stray.txt"), []byte("x"), 0o600))
	key, err := PrivateKeyFromSeed(testSeed(9))
	require.NoError(t, err)
	_, err = st.Create("carol", key, false)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(st.Dir, "carol", "roles"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(st.Dir, "carol", "roles", "notes.txt"), []byte("x"), 0o600))

	list, err = st.Attesters()
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "carol", list[0].Name)
	require.Empty(t, list[0].Roles)
}

func TestParseKey(t *testing.T) {
	seed := testSeed(5)
	want, err := AddressFromSeed(seed)
	require.NoError(t, err)
	for _, in := range []string{hex.EncodeToString(seed), "0x" + hex.EncodeToString(seed), " " + hex.EncodeToString(seed) + "\n"} {
		key, err := ParseKey(in)
		require.NoError(t, err, in)
		require.Equal(t, want, crypto.PubkeyToAddress(key.PublicKey))
	}
	_, err = ParseKey("abcd")
	require.Error(t, err)
	_, err = ParseKey(strings.Repeat("0", 64))
	require.Error(t, err, "zero is not a valid scalar")
}
