package keys

import (
	"crypto/ecdsa"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Store keeps attester signing keys on disk. Every attester has a root key;
// role keys are derived from it so one operator can attest under a separate
// address per role without handing out the root.
type Store struct {
	Dir string
}

// Ref names one key in a Store. An empty Role selects the root key.
type Ref struct {
	Attester string
	Role     string
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

func checkName(what, s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("invalid %s name %q: use letters, digits, '-' or '_'", what, s)
	}
	return nil
}

func (r Ref) Validate() error {
	if err := checkName("attester", r.Attester); err != nil {
		return err
	}
	if r.Role != "" {
		return checkName("role", r.Role)
	}
	return nil
}

func (r Ref) String() string {
	if r.Role == "" {
		return r.Attester
	}
	return r.Attester + "/" + r.Role
}

// Attester is a stored identity with the address of each of its keys.
type Attester struct {
	Name    string
	Address common.Address
	Roles   []RoleAddress
}

type RoleAddress struct {
	Role    string
	Address common.Address
}

// OpenStore returns the store at dir, or at ~/.xdao/attest/keys when dir is
// empty. Nothing is created until a key is written.
func OpenStore(dir string) (*Store, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".xdao", "attest", "keys")
	}
	return &Store{Dir: dir}, nil
}

// Path is the key file backing ref.
func (s *Store) Path(ref Ref) string {
	if ref.Role == "" {
		return filepath.Join(s.Dir, ref.Attester, "root.key")
	}
	return filepath.Join(s.Dir, ref.Attester, "roles", ref.Role+".key")
}

// Create stores key as the root key of attester and returns its address.
func (s *Store) Create(attester string, key *ecdsa.PrivateKey, overwrite bool) (common.Address, error) {
	ref := Ref{Attester: attester}
	if err := ref.Validate(); err != nil {
		return common.Address{}, err
	}
	if key == nil {
		return common.Address{}, errors.New("missing private key")
	}
	if err := writeKey(s.Path(ref), key, overwrite); err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// Derive writes the role key of attester, derived from its root key, and
// returns the role's address. The same root and role always give the same
// address.
func (s *Store) Derive(attester, role string, overwrite bool) (common.Address, error) {
	ref := Ref{Attester: attester, Role: role}
	if role == "" {
		return common.Address{}, errors.New("role cannot be empty")
	}
	if err := ref.Validate(); err != nil {
		return common.Address{}, err
	}
	root, err := s.Key(Ref{Attester: attester})
	if err != nil {
		return common.Address{}, err
	}
	seed, err := DeriveRoleSeed(crypto.FromECDSA(root), role)
	if err != nil {
		return common.Address{}, err
	}
	key, err := PrivateKeyFromSeed(seed)
	if err != nil {
		return common.Address{}, err
	}
	if err := writeKey(s.Path(ref), key, overwrite); err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// Key loads the signing key named by ref.
func (s *Store) Key(ref Ref) (*ecdsa.PrivateKey, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	key, err := crypto.LoadECDSA(s.Path(ref))
	if err != nil {
		return nil, fmt.Errorf("load key %s: %w", ref, err)
	}
	return key, nil
}

// Address is the attestation address of the key named by ref.
func (s *Store) Address(ref Ref) (common.Address, error) {
	key, err := s.Key(ref)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// Attesters lists stored attesters by name with their root and role
// addresses. Directories without a readable root key are skipped. A missing
// store is empty.
func (s *Store) Attesters() ([]Attester, error) {
	dirs, err := os.ReadDir(s.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []Attester
	for _, d := range dirs {
		if !d.IsDir() || checkName("attester", d.Name()) != nil {
			continue
		}
		addr, err := s.Address(Ref{Attester: d.Name()})
		if err != nil {
			continue
		}
		a := Attester{Name: d.Name(), Address: addr}
		roles, _ := os.ReadDir(filepath.Join(s.Dir, d.Name(), "roles"))
		for _, r := range roles {
			role, ok := strings.CutSuffix(r.Name(), ".key")
			if r.IsDir() || !ok {
				continue
			}
			ra, err := s.Address(Ref{Attester: d.Name(), Role: role})
			if err != nil {
				continue
			}
			a.Roles = append(a.Roles, RoleAddress{Role: role, Address: ra})
		}
		out = append(out, a)
	}
	return out, nil
}

// ParseKey decodes a hex private key, with or without a 0x prefix.
func ParseKey(s string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
}

// writeKey stores key in the format crypto.LoadECDSA reads, readable only by
// the owner. Existing files are kept unless overwrite is set.
func writeKey(path string, key *ecdsa.PrivateKey, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(hex.EncodeToString(crypto.FromECDSA(key)) + "\n"); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
