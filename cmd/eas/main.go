package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"xdao.co/attest/keys"
	"xdao.co/attest/ledgerrpc"
	"xdao.co/attest/model"
	"xdao.co/attest/storage/bundle"
	"xdao.co/attest/storage/localfs"
	"xdao.co/attest/uid"
)

const defaultTarget = "127.0.0.1:7420"

// dial is replaced in tests.
var dial = func(ctx context.Context, target string, key *ecdsa.PrivateKey) (*ledgerrpc.Client, error) {
	return ledgerrpc.Dial(ctx, target, key, ledgerrpc.DialOptions{MaxRetries: 3})
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "schema":
		return cmdSchema(args[1:], out, errOut)
	case "attest":
		return cmdAttest(args[1:], out, errOut)
	case "multi-attest":
		return cmdMultiAttest(args[1:], out, errOut)
	case "revoke":
		return cmdRevoke(args[1:], out, errOut)
	case "multi-revoke":
		return cmdMultiRevoke(args[1:], out, errOut)
	case "get":
		return cmdGet(args[1:], out, errOut)
	case "timestamp":
		return cmdTimestamp(args[1:], out, errOut)
	case "bundle":
		return cmdBundle(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "eas: attestation ledger CLI")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  eas key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  eas key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  eas key list")
	fmt.Fprintln(w, "  eas key export --name <name> [--role <role>]")
	fmt.Fprintln(w, "  eas schema uid --schema <text> [--resolver <addr>] [--revocable]")
	fmt.Fprintln(w, "  eas schema register --schema <text> [--resolver <addr>] [--revocable]")
	fmt.Fprintln(w, "  eas schema get --uid <uid>")
	fmt.Fprintln(w, "  eas schema list")
	fmt.Fprintln(w, "  eas attest --schema <uid> [--recipient <addr>] [--data <hex>] [--expiration <unix>] [--ref <uid>] [--revocable] [--value <n>] <signer>")
	fmt.Fprintln(w, "  eas multi-attest --file <requests.json> <signer>")
	fmt.Fprintln(w, "  eas revoke --schema <uid> --uid <uid> [--value <n>] <signer>")
	fmt.Fprintln(w, "  eas multi-revoke --file <requests.json> <signer>")
	fmt.Fprintln(w, "  eas get --uid <uid>")
	fmt.Fprintln(w, "  eas timestamp --data <uid> [--data <uid> ...]")
	fmt.Fprintln(w, "  eas bundle export --archive <dir> --out <file.tar>")
	fmt.Fprintln(w, "  eas bundle import --archive <dir> <file.tar>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - <signer> is one of --seed-hex <64hex> | --signer <name> [--signer-role <role>] | --key-file <path>")
	fmt.Fprintln(w, "  - keys are secp256k1; the signer's address is the attester or revoker")
	fmt.Fprintln(w, "  - KMS-lite stores keys under ~/.xdao/attest/keys/<name> (0600 private key files); override with --keys-dir")
	fmt.Fprintln(w, "  - remote commands talk to easd at --target (default "+defaultTarget+", or $EAS_TARGET)")
	fmt.Fprintln(w, "  - results are printed as JSON")
}

// remote holds the flags shared by commands that talk to easd.
type remote struct {
	target  string
	timeout time.Duration
}

func (r *remote) register(fs *flag.FlagSet) {
	target := os.Getenv("EAS_TARGET")
	if target == "" {
		target = defaultTarget
	}
	fs.StringVar(&r.target, "target", target, "easd address host:port")
	fs.DurationVar(&r.timeout, "timeout", 10*time.Second, "Per-RPC timeout")
}

func (r *remote) client(key *ecdsa.PrivateKey) (*ledgerrpc.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	c, err := dial(ctx, r.target, key)
	if err != nil {
		return nil, err
	}
	c.Timeout = r.timeout
	return c, nil
}

// signer holds the flags that select a signing key.
type signer struct {
	keysDir string
	seedHex string
	name    string
	role    string
	keyFile string
}

func (s *signer) register(fs *flag.FlagSet) {
	fs.StringVar(&s.keysDir, "keys-dir", "", "Key store directory (default ~/.xdao/attest/keys)")
	fs.StringVar(&s.seedHex, "seed-hex", "", "Private key as 64 hex chars")
	fs.StringVar(&s.name, "signer", "", "Key name in the key store")
	fs.StringVar(&s.role, "signer-role", "", "Optional derived role of --signer")
	fs.StringVar(&s.keyFile, "key-file", "", "Path to a hex private key file")
}

// load picks the signing key: an inline key first, then a key file, then a
// key store entry.
func (s *signer) load() (*ecdsa.PrivateKey, error) {
	switch {
	case s.seedHex != "":
		return keys.ParseKey(s.seedHex)
	case s.keyFile != "":
		return crypto.LoadECDSA(s.keyFile)
	case s.name != "":
		st, err := keys.OpenStore(s.keysDir)
		if err != nil {
			return nil, err
		}
		return st.Key(keys.Ref{Attester: s.name, Role: s.role})
	}
	return nil, errors.New("no signer: set --seed-hex, --key-file or --signer")
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printKeyUsage(errOut)
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(args[1:], out, errOut)
	case "derive":
		return cmdKeyDerive(args[1:], out, errOut)
	case "list":
		return cmdKeyList(args[1:], out, errOut)
	case "export":
		return cmdKeyExport(args[1:], out, errOut)
	case "help", "-h", "--help":
		printKeyUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n\n", args[0])
		printKeyUsage(errOut)
		return 2
	}
}

func printKeyUsage(w io.Writer) {
	fmt.Fprintln(w, "eas key: minimal local key management (KMS-lite)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  eas key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  eas key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  eas key list")
	fmt.Fprintln(w, "  eas key export --name <name> [--role <role>]")
}

func cmdKeyInit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key init", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var dir string
	var name string
	var seedHex string
	var force bool

	fs.StringVar(&dir, "keys-dir", "", "Key store directory")
	fs.StringVar(&name, "name", "", "Attester name (directory under the key store)")
	fs.StringVar(&seedHex, "seed-hex", "", "Optional private key as 64 hex chars (for reproducible demos)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	ref := keys.Ref{Attester: name}
	if err := ref.Validate(); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 2
	}

	var key *ecdsa.PrivateKey
	var err error
	if seedHex != "" {
		if key, err = keys.ParseKey(seedHex); err != nil {
			fmt.Fprintf(errOut, "invalid --seed-hex: %v\n", err)
			return 2
		}
	} else if key, err = crypto.GenerateKey(); err != nil {
		fmt.Fprintf(errOut, "generate key: %v\n", err)
		return 1
	}

	st, err := keys.OpenStore(dir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	addr, err := st.Create(name, key, force)
	if err != nil {
		fmt.Fprintf(errOut, "write key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created root key: %s\n", addr.Hex())
	fmt.Fprintf(out, "Stored at: %s\n", st.Path(ref))
	return 0
}

func cmdKeyDerive(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key derive", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var dir string
	var ref keys.Ref
	var force bool

	fs.StringVar(&dir, "keys-dir", "", "Key store directory")
	fs.StringVar(&ref.Attester, "from", "", "Attester whose root key derives the role")
	fs.StringVar(&ref.Role, "role", "", "Role identifier (e.g. issuer, auditor)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if ref.Role == "" {
		fmt.Fprintln(errOut, "missing --role")
		return 2
	}
	if err := ref.Validate(); err != nil {
		fmt.Fprintf(errOut, "invalid --from/--role: %v\n", err)
		return 2
	}
	st, err := keys.OpenStore(dir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	addr, err := st.Derive(ref.Attester, ref.Role, force)
	if err != nil {
		fmt.Fprintf(errOut, "derive role key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created role key: %s\n", addr.Hex())
	fmt.Fprintf(out, "Stored at: %s\n", st.Path(ref))
	return 0
}

func cmdKeyExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key export", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var dir string
	var ref keys.Ref

	fs.StringVar(&dir, "keys-dir", "", "Key store directory")
	fs.StringVar(&ref.Attester, "name", "", "Attester name")
	fs.StringVar(&ref.Role, "role", "", "Optional role (if set, exports the derived role address)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := ref.Validate(); err != nil {
		fmt.Fprintf(errOut, "invalid --name/--role: %v\n", err)
		return 2
	}
	st, err := keys.OpenStore(dir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	addr, err := st.Address(ref)
	if err != nil {
		fmt.Fprintf(errOut, "export key: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, addr.Hex())
	return 0
}

// cmdKeyList prints one line per key: "<attester>[/<role>]\t<address>".
func cmdKeyList(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key list", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var dir string
	fs.StringVar(&dir, "keys-dir", "", "Key store directory")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	st, err := keys.OpenStore(dir)
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	attesters, err := st.Attesters()
	if err != nil {
		fmt.Fprintf(errOut, "list keys: %v\n", err)
		return 1
	}
	for _, a := range attesters {
		fmt.Fprintf(out, "%s\t%s\n", a.Name, a.Address.Hex())
		for _, r := range a.Roles {
			fmt.Fprintf(out, "%s\t%s\n", keys.Ref{Attester: a.Name, Role: r.Role}, r.Address.Hex())
		}
	}
	return 0
}

func cmdSchema(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: eas schema <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: uid, register, get, list")
		return 2
	}
	sub := args[0]
	fs := flag.NewFlagSet("schema "+sub, flag.ContinueOnError)
	fs.SetOutput(errOut)
	var r remote
	var text, resolverHex, id string
	var revocable bool

	switch sub {
	case "uid", "register":
		fs.StringVar(&text, "schema", "", "Schema definition text")
		fs.StringVar(&resolverHex, "resolver", "", "Resolver address (omit for none)")
		fs.BoolVar(&revocable, "revocable", false, "Allow revocation of attestations under this schema")
	case "get":
		fs.StringVar(&id, "uid", "", "Schema UID")
	case "list":
	default:
		fmt.Fprintf(errOut, "unknown schema subcommand: %s\n", sub)
		return 2
	}
	if sub != "uid" {
		r.register(fs)
	}
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	var resolverAddr common.Address
	if resolverHex != "" {
		if !common.IsHexAddress(resolverHex) {
			fmt.Fprintf(errOut, "invalid --resolver: %q\n", resolverHex)
			return 2
		}
		resolverAddr = common.HexToAddress(resolverHex)
	}

	switch sub {
	case "uid":
		fmt.Fprintln(out, uid.Schema(text, resolverAddr, revocable).Hex())
		return 0
	case "register":
		return withClient(r, nil, out, errOut, func(ctx context.Context, c *ledgerrpc.Client) (any, error) {
			got, err := c.RegisterSchema(ctx, model.SchemaRegistration{Schema: text, Resolver: resolverAddr, Revocable: revocable})
			return model.UIDRef{UID: got}, err
		})
	case "get":
		u, err := uid.Parse(id)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --uid: %v\n", err)
			return 2
		}
		return withClient(r, nil, out, errOut, func(ctx context.Context, c *ledgerrpc.Client) (any, error) {
			return c.GetSchema(ctx, u)
		})
	default:
		return withClient(r, nil, out, errOut, func(ctx context.Context, c *ledgerrpc.Client) (any, error) {
			return c.ListSchemas(ctx)
		})
	}
}

func cmdAttest(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("attest", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var r remote
	var s signer
	r.register(fs)
	s.register(fs)

	var schemaHex, recipientHex, dataHex, refHex, value string
	var expiration uint64
	var revocable bool
	fs.StringVar(&schemaHex, "schema", "", "Schema UID")
	fs.StringVar(&recipientHex, "recipient", "", "Recipient address")
	fs.StringVar(&dataHex, "data", "0x", "Attestation payload as hex")
	fs.Uint64Var(&expiration, "expiration", 0, "Expiration time (unix seconds, 0 = never)")
	fs.StringVar(&refHex, "ref", "", "Referenced attestation UID")
	fs.BoolVar(&revocable, "revocable", false, "Request a revocable attestation")
	fs.StringVar(&value, "value", "", "Value sent to the schema's resolver (decimal)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	schemaUID, err := uid.Parse(schemaHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --schema: %v\n", err)
		return 2
	}
	req := model.AttestationRequest{Schema: schemaUID, Data: model.AttestationRequestData{
		ExpirationTime: expiration,
		Revocable:      revocable,
		Value:          value,
	}}
	if recipientHex != "" {
		if !common.IsHexAddress(recipientHex) {
			fmt.Fprintf(errOut, "invalid --recipient: %q\n", recipientHex)
			return 2
		}
		req.Data.Recipient = common.HexToAddress(recipientHex)
	}
	if refHex != "" {
		if req.Data.RefUID, err = uid.Parse(refHex); err != nil {
			fmt.Fprintf(errOut, "invalid --ref: %v\n", err)
			return 2
		}
	}
	if req.Data.Data, err = hexutil.Decode(dataHex); err != nil {
		fmt.Fprintf(errOut, "invalid --data: %v\n", err)
		return 2
	}

	key, err := s.load()
	if err != nil {
		fmt.Fprintf(errOut, "load signer: %v\n", err)
		return 2
	}
	return withClient(r, key, out, errOut, func(ctx context.Context, c *ledgerrpc.Client) (any, error) {
		id, err := c.Attest(ctx, req)
		return model.UIDRef{UID: id}, err
	})
}

func cmdMultiAttest(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("multi-attest", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var r remote
	var s signer
	var file string
	r.register(fs)
	s.register(fs)
	fs.StringVar(&file, "file", "", "JSON array of {schema, data: [...]} groups")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	var groups []model.MultiAttestationRequest
	if code := readJSON(file, &groups, errOut); code != 0 {
		return code
	}
	key, err := s.load()
	if err != nil {
		fmt.Fprintf(errOut, "load signer: %v\n", err)
		return 2
	}
	return withClient(r, key, out, errOut, func(ctx context.Context, c *ledgerrpc.Client) (any, error) {
		ids, err := c.MultiAttest(ctx, groups)
		return model.UIDList{UIDs: ids}, err
	})
}

func cmdRevoke(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("revoke", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var r remote
	var s signer
	r.register(fs)
	s.register(fs)
	var schemaHex, id, value string
	fs.StringVar(&schemaHex, "schema", "", "Schema UID")
	fs.StringVar(&id, "uid", "", "Attestation UID")
	fs.StringVar(&value, "value", "", "Value sent to the schema's resolver (decimal)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	schemaUID, err := uid.Parse(schemaHex)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --schema: %v\n", err)
		return 2
	}
	target, err := uid.Parse(id)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --uid: %v\n", err)
		return 2
	}
	key, err := s.load()
	if err != nil {
		fmt.Fprintf(errOut, "load signer: %v\n", err)
		return 2
	}
	req := model.RevocationRequest{Schema: schemaUID, Data: model.RevocationRequestData{UID: target, Value: value}}
	return withClient(r, key, out, errOut, func(ctx context.Context, c *ledgerrpc.Client) (any, error) {
		return model.UIDRef{UID: target}, c.Revoke(ctx, req)
	})
}

func cmdMultiRevoke(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("multi-revoke", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var r remote
	var s signer
	var file string
	r.register(fs)
	s.register(fs)
	fs.StringVar(&file, "file", "", "JSON array of {schema, data: [{uid, value}]} groups")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	var groups []model.MultiRevocationRequest
	if code := readJSON(file, &groups, errOut); code != 0 {
		return code
	}
	key, err := s.load()
	if err != nil {
		fmt.Fprintf(errOut, "load signer: %v\n", err)
		return 2
	}
	var revoked []uid.UID
	for _, g := range groups {
		for _, d := range g.Data {
			revoked = append(revoked, d.UID)
		}
	}
	return withClient(r, key, out, errOut, func(ctx context.Context, c *ledgerrpc.Client) (any, error) {
		return model.UIDList{UIDs: revoked}, c.MultiRevoke(ctx, groups)
	})
}

func cmdGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var r remote
	var id string
	r.register(fs)
	fs.StringVar(&id, "uid", "", "Attestation UID")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	u, err := uid.Parse(id)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --uid: %v\n", err)
		return 2
	}
	return withClient(r, nil, out, errOut, func(ctx context.Context, c *ledgerrpc.Client) (any, error) {
		return c.GetAttestation(ctx, u)
	})
}

// uidList collects repeated --data flags.
type uidList []uid.UID

func (l *uidList) String() string { return fmt.Sprint(*l) }

func (l *uidList) Set(s string) error {
	u, err := uid.Parse(s)
	if err != nil {
		return err
	}
	*l = append(*l, u)
	return nil
}

func cmdTimestamp(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("timestamp", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var r remote
	var data uidList
	r.register(fs)
	fs.Var(&data, "data", "Data UID to timestamp (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if len(data) == 0 {
		fmt.Fprintln(errOut, "missing --data")
		return 2
	}
	return withClient(r, nil, out, errOut, func(ctx context.Context, c *ledgerrpc.Client) (any, error) {
		t, err := c.MultiTimestamp(ctx, data)
		return model.TimeResult{Time: t}, err
	})
}

func cmdBundle(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: eas bundle <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: export, import")
		return 2
	}
	sub := args[0]
	fs := flag.NewFlagSet("bundle "+sub, flag.ContinueOnError)
	fs.SetOutput(errOut)
	var dir, outPath string
	fs.StringVar(&dir, "archive", "", "localfs archive directory")
	switch sub {
	case "export":
		fs.StringVar(&outPath, "out", "", "Output TAR path")
	case "import":
	default:
		fmt.Fprintf(errOut, "unknown bundle subcommand: %s\n", sub)
		return 2
	}
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if dir == "" {
		fmt.Fprintln(errOut, "missing --archive")
		return 2
	}
	cas, err := localfs.New(dir)
	if err != nil {
		fmt.Fprintf(errOut, "open archive: %v\n", err)
		return 1
	}

	if sub == "import" {
		if fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: eas bundle import --archive <dir> <file.tar>")
			return 2
		}
		f, err := os.Open(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "open bundle: %v\n", err)
			return 1
		}
		defer f.Close()
		idx, err := bundle.Import(f, cas)
		if err != nil {
			fmt.Fprintf(errOut, "import: %v\n", err)
			return 1
		}
		return printJSON(out, errOut, idx)
	}

	if outPath == "" {
		fmt.Fprintln(errOut, "missing --out")
		return 2
	}
	entries, err := bundle.Latest(cas)
	if err != nil {
		fmt.Fprintf(errOut, "scan archive: %v\n", err)
		return 1
	}
	f, err := os.Create(outPath)
	if err != nil {
		fmt.Fprintf(errOut, "create %s: %v\n", outPath, err)
		return 1
	}
	if err := bundle.Export(f, cas, entries); err != nil {
		_ = f.Close()
		fmt.Fprintf(errOut, "export: %v\n", err)
		return 1
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(errOut, "write %s: %v\n", outPath, err)
		return 1
	}
	fmt.Fprintf(out, "Exported %d records to %s\n", len(entries), outPath)
	return 0
}

func withClient(r remote, key *ecdsa.PrivateKey, out io.Writer, errOut io.Writer, fn func(context.Context, *ledgerrpc.Client) (any, error)) int {
	c, err := r.client(key)
	if err != nil {
		fmt.Fprintf(errOut, "connect %s: %v\n", r.target, err)
		return 1
	}
	defer c.Close()
	v, err := fn(context.Background(), c)
	if err != nil {
		printError(errOut, err)
		return 1
	}
	return printJSON(out, errOut, v)
}

func printError(w io.Writer, err error) {
	coded := model.FromError(err)
	if coded.RuleID != "" {
		fmt.Fprintf(w, "%s [%s]: %s\n", coded.Code, coded.RuleID, coded.Message)
		return
	}
	fmt.Fprintf(w, "%s: %s\n", coded.Code, coded.Message)
}

func printJSON(out io.Writer, errOut io.Writer, v any) int {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(errOut, "encode result: %v\n", err)
		return 1
	}
	fmt.Fprintln(out, string(b))
	return 0
}

func readJSON(path string, v any, errOut io.Writer) int {
	if path == "" {
		fmt.Fprintln(errOut, "missing --file")
		return 2
	}
	b, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(errOut, "read --file: %v\n", err)
		return 1
	}
	if err := json.Unmarshal(b, v); err != nil {
		fmt.Fprintf(errOut, "parse --file: %v\n", err)
		return 2
	}
	return 0
}
