package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ipfs/go-cid"
	log "github.com/sirupsen/logrus"

	"github.com/gordonbrander/szdat/envelope"
	"github.com/gordonbrander/szdat/keys"
	"github.com/gordonbrander/szdat/storage"
	"github.com/gordonbrander/szdat/storage/bundle"
	"github.com/gordonbrander/szdat/storage/registry"
	"github.com/gordonbrander/szdat/storage/storeconfig"

	_ "github.com/gordonbrander/szdat/storage/grpcstore"
	_ "github.com/gordonbrander/szdat/storage/localfs"
)

type storeFlags struct {
	backend      string
	config       string
	prefer       string
	listBackends bool
}

func (c *storeFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&c.backend, "backend", "localfs", "Store backend name")
	fs.StringVar(&c.config, "config", "", "Store config file (.json, .yaml); overrides --backend")
	fs.StringVar(&c.prefer, "prefer", "", "With --config: backend name or id that takes writes")
	fs.BoolVar(&c.listBackends, "list-backends", false, "List supported backends and exit")
	registry.RegisterFlags(fs, registry.UsageCLI)
}

func (c *storeFlags) open() (storage.Store, func() error, error) {
	if c.config != "" {
		cfg, err := storeconfig.LoadFile(c.config)
		if err != nil {
			return nil, nil, err
		}
		log.WithFields(log.Fields{"config": c.config, "backends": len(cfg.Backends)}).Debug("opening stores from config")
		return cfg.Open(registry.UsageCLI, c.prefer)
	}
	log.WithField("backend", c.backend).Debug("opening store")
	return registry.Open(c.backend, registry.UsageCLI)
}

func printBackends(w io.Writer) {
	for _, b := range registry.List(registry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(w, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", b.Name, b.Description)
	}
}

func closeStore(closeFn func() error) {
	if closeFn == nil {
		return
	}
	if err := closeFn(); err != nil {
		log.WithError(err).Warn("closing store")
	}
}

func cmdPublish(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common storeFlags
	common.add(fs)
	var pubText string
	fs.StringVar(&pubText, "pubkey", "", "Refuse to publish unless the envelope verifies under this key")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: szdat publish [store flags] [--pubkey <text>] <file>")
		return 2
	}

	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return reportErr(errOut, "read", err)
	}
	env, err := envelope.Unmarshal(b)
	if err != nil {
		return reportErr(errOut, "publish", err)
	}
	if pubText != "" {
		pub, err := keys.ParsePublicKey(pubText)
		if err != nil {
			return reportErr(errOut, "publish", err)
		}
		if err := env.Verify(pub); err != nil {
			return reportErr(errOut, "publish", err)
		}
	}

	s, closeFn, err := common.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeStore(closeFn)

	id, err := storage.Envelopes{Store: s}.Publish(env)
	if err != nil {
		return reportErr(errOut, "publish", err)
	}
	fmt.Fprintln(out, id.String())
	return 0
}

func cmdFetch(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common storeFlags
	common.add(fs)
	var idText, outPath, pubText string
	fs.StringVar(&idText, "id", "", "Envelope ID to fetch")
	fs.StringVar(&outPath, "out", "", "Output file (default stdout)")
	fs.StringVar(&pubText, "pubkey", "", "Verify under this key before writing")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if idText == "" || fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: szdat fetch [store flags] --id <cid> [--pubkey <text>] [--out <file>]")
		return 2
	}
	id, err := cid.Decode(idText)
	if err != nil {
		fmt.Fprintln(errOut, storage.ErrInvalidID)
		return 2
	}

	s, closeFn, err := common.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeStore(closeFn)

	env, err := storage.Envelopes{Store: s}.Fetch(id)
	if err != nil {
		return reportErr(errOut, "fetch", err)
	}
	if pubText != "" {
		pub, err := keys.ParsePublicKey(pubText)
		if err != nil {
			return reportErr(errOut, "fetch", err)
		}
		if err := env.Verify(pub); err != nil {
			return reportErr(errOut, "fetch", err)
		}
	}

	var buf bytes.Buffer
	if _, err := env.WriteTo(&buf); err != nil {
		return reportErr(errOut, "encode", err)
	}
	if outPath == "" {
		_, _ = out.Write(buf.Bytes())
		return 0
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return reportErr(errOut, "write", err)
	}
	return 0
}

func cmdBundle(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: szdat bundle <export|import> ...")
		return 2
	}
	switch args[0] {
	case "export":
		return cmdBundleExport(args[1:], out, errOut)
	case "import":
		return cmdBundleImport(args[1:], out, errOut)
	default:
		fmt.Fprintf(errOut, "unknown bundle subcommand: %s\n", args[0])
		return 2
	}
}

func cmdBundleExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("bundle export", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common storeFlags
	common.add(fs)
	var idTexts stringList
	var outPath string
	var withIndex bool
	fs.Var(&idTexts, "id", "Envelope ID to export (repeatable)")
	fs.StringVar(&outPath, "out", "", "Bundle file to write")
	fs.BoolVar(&withIndex, "index", false, "Include index.json")
	var labelTexts stringList
	fs.Var(&labelTexts, "label", "Index label name=cid (repeatable; implies --index)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if len(idTexts) == 0 || outPath == "" || fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: szdat bundle export [store flags] --id <cid> [--id ...] [--index] [--label name=cid ...] --out <file>")
		return 2
	}
	labels, err := parseLabels(labelTexts)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --label: %v\n", err)
		return 2
	}
	ids := make([]cid.Cid, 0, len(idTexts))
	for _, s := range idTexts {
		id, err := cid.Decode(s)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --id %q: %v\n", s, err)
			return 2
		}
		ids = append(ids, id)
	}

	s, closeFn, err := common.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeStore(closeFn)

	var buf bytes.Buffer
	opts := bundle.ExportOptions{IncludeIndex: withIndex || len(labels) > 0, Labels: labels}
	if err := bundle.Export(&buf, s, ids, opts); err != nil {
		return reportErr(errOut, "bundle export", err)
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0o644); err != nil {
		return reportErr(errOut, "write", err)
	}
	fmt.Fprintln(out, outPath)
	return 0
}

// parseLabels reads name=cid pairs. A name may be given only once.
func parseLabels(texts []string) (map[string]cid.Cid, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	labels := make(map[string]cid.Cid, len(texts))
	for _, t := range texts {
		name, value, ok := strings.Cut(t, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%q: want name=cid", t)
		}
		if _, dup := labels[name]; dup {
			return nil, fmt.Errorf("%q: duplicate label", name)
		}
		id, err := cid.Decode(value)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", t, err)
		}
		labels[name] = id
	}
	return labels, nil
}

func cmdBundleImport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("bundle import", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common storeFlags
	common.add(fs)
	var ignoreUnknown bool
	fs.BoolVar(&ignoreUnknown, "ignore-unknown", false, "Skip entries that are not envelopes")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: szdat bundle import [store flags] [--ignore-unknown] <file>")
		return 2
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return reportErr(errOut, "read", err)
	}
	defer f.Close()

	s, closeFn, err := common.open()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer closeStore(closeFn)

	ids, err := bundle.Import(f, s, bundle.ImportOptions{IgnoreUnknown: ignoreUnknown})
	if err != nil {
		return reportErr(errOut, "bundle import", err)
	}
	for _, id := range ids {
		fmt.Fprintln(out, id.String())
	}
	return 0
}
