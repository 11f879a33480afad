package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gordonbrander/szdat/archive"
	"github.com/gordonbrander/szdat/envelope"
	"github.com/gordonbrander/szdat/keys"
)

// Ext is the conventional extension of an encoded envelope file.
const Ext = ".szdat"

func cmdArchive(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("archive", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var kf keyFlags
	kf.add(fs)
	var outPath string
	var workers int
	fs.StringVar(&outPath, "out", "", "Output file (default <dir>.szdat)")
	fs.IntVar(&workers, "workers", 0, "Parallel file reads (default 8)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: szdat archive (--privkey <text> | --key <name>) [--out <file>] <dir>")
		return 2
	}
	priv, ok, err := kf.load()
	if !ok {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if err != nil {
		return reportErr(errOut, "load key", err)
	}

	dir := filepath.Clean(fs.Arg(0))
	if outPath == "" {
		outPath = dir + Ext
	}

	a, err := archive.Builder{Workers: workers}.FromDir(dir)
	if err != nil {
		return reportErr(errOut, "archive", err)
	}
	env, err := envelope.SealArchive(a, priv)
	if err != nil {
		return reportErr(errOut, "seal", err)
	}
	b, err := envelope.Marshal(env)
	if err != nil {
		return reportErr(errOut, "encode", err)
	}
	if err := os.WriteFile(outPath, b, 0o644); err != nil {
		return reportErr(errOut, "write", err)
	}
	id, err := envelope.ID(b)
	if err != nil {
		return reportErr(errOut, "id", err)
	}
	log.WithFields(log.Fields{"files": a.Len(), "bytes": len(b), "id": id.String()}).Debug("archive written")
	fmt.Fprintln(out, outPath)
	return 0
}

// readVerified reads an envelope file and opens it under the public key text.
func readVerified(path, pubText string) (*archive.Archive, error) {
	pub, err := keys.ParsePublicKey(pubText)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	env, err := envelope.Read(f)
	if err != nil {
		return nil, err
	}
	return env.Open(pub)
}

func cmdUnarchive(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("unarchive", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var pubText, outDir string
	var noClobber bool
	fs.StringVar(&pubText, "pubkey", "", "Public key text of the expected signer")
	fs.StringVar(&outDir, "out", "", "Output directory (default <file> without extension)")
	fs.BoolVar(&noClobber, "no-clobber", false, "Fail instead of overwriting existing files")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: szdat unarchive --pubkey <text> [--no-clobber] [--out <dir>] <file>")
		return 2
	}
	if pubText == "" {
		fmt.Fprintln(errOut, "missing --pubkey")
		return 2
	}
	path := fs.Arg(0)
	if outDir == "" {
		ext := filepath.Ext(path)
		if ext == "" {
			fmt.Fprintln(errOut, "cannot derive output directory from a file without extension; use --out")
			return 2
		}
		outDir = strings.TrimSuffix(path, ext)
	}

	a, err := readVerified(path, pubText)
	if err != nil {
		return reportErr(errOut, "unarchive", err)
	}
	opts := archive.ExtractOptions{Policy: archive.Overwrite}
	if noClobber {
		opts.Policy = archive.FailIfExists
	}
	if err := archive.WriteDir(a, outDir, opts); err != nil {
		return reportErr(errOut, "extract", err)
	}
	log.WithFields(log.Fields{"files": a.Len(), "dir": outDir}).Debug("archive extracted")
	fmt.Fprintln(out, outDir)
	return 0
}

func cmdInspect(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var pubText string
	fs.StringVar(&pubText, "pubkey", "", "Public key text of the expected signer")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 || pubText == "" {
		fmt.Fprintln(errOut, "usage: szdat inspect --pubkey <text> <file>")
		return 2
	}

	a, err := readVerified(fs.Arg(0), pubText)
	if err != nil {
		return reportErr(errOut, "inspect", err)
	}
	created := time.Unix(int64(a.CreatedAt()), 0).UTC()
	fmt.Fprintf(out, "created_at: %d (%s)\n", a.CreatedAt(), created.Format(time.RFC3339))
	fmt.Fprintf(out, "files: %d\n", a.Len())
	for _, e := range a.Manifest() {
		fmt.Fprintf(out, "%s  %10d  %s\n", hex.EncodeToString(e.SHA3[:]), e.Size, e.Path)
	}
	return 0
}

func cmdID(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("id", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: szdat id <file>")
		return 2
	}
	b, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return reportErr(errOut, "read", err)
	}
	if _, err := envelope.Unmarshal(b); err != nil {
		return reportErr(errOut, "id", err)
	}
	id, err := envelope.ID(b)
	if err != nil {
		return reportErr(errOut, "id", err)
	}
	fmt.Fprintln(out, id.String())
	return 0
}
