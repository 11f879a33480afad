package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/gordonbrander/szdat/szerr"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	global := flag.NewFlagSet("szdat", flag.ContinueOnError)
	global.SetOutput(errOut)
	logLevel := global.String("log-level", "warn", "Log level: trace, debug, info, warn, error")
	if err := global.Parse(args); err != nil {
		return 2
	}
	if err := setupLogging(*logLevel, errOut); err != nil {
		fmt.Fprintf(errOut, "invalid --log-level: %v\n", err)
		return 2
	}
	args = global.Args()
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "genkey":
		return cmdGenKey(args[1:], out, errOut)
	case "pubkey":
		return cmdPubKey(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "archive":
		return cmdArchive(args[1:], out, errOut)
	case "unarchive":
		return cmdUnarchive(args[1:], out, errOut)
	case "inspect":
		return cmdInspect(args[1:], out, errOut)
	case "id":
		return cmdID(args[1:], out, errOut)
	case "publish":
		return cmdPublish(args[1:], out, errOut)
	case "fetch":
		return cmdFetch(args[1:], out, errOut)
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

func setupLogging(level string, w io.Writer) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetOutput(w)
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "szdat: signed, content-addressed directory archives")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  szdat [--log-level <level>] <command> ...")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  szdat genkey [--save <name>] [--force]")
	fmt.Fprintln(w, "  szdat pubkey (--privkey <text> | --key <name>)")
	fmt.Fprintln(w, "  szdat key list")
	fmt.Fprintln(w, "  szdat archive (--privkey <text> | --key <name>) [--out <file>] <dir>")
	fmt.Fprintln(w, "  szdat unarchive --pubkey <text> [--no-clobber] [--out <dir>] <file>")
	fmt.Fprintln(w, "  szdat inspect --pubkey <text> <file>")
	fmt.Fprintln(w, "  szdat id <file>")
	fmt.Fprintln(w, "  szdat publish [store flags] [--pubkey <text>] <file>")
	fmt.Fprintln(w, "  szdat fetch [store flags] --id <cid> [--pubkey <text>] [--out <file>]")
	fmt.Fprintln(w, "  szdat bundle export [store flags] --id <cid> [--id ...] [--index] [--label name=cid ...] --out <file>")
	fmt.Fprintln(w, "  szdat bundle import [store flags] [--ignore-unknown] <file>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Store flags:")
	fmt.Fprintln(w, "  --backend <name> plus backend flags (e.g. --localfs-dir, --grpc-target)")
	fmt.Fprintln(w, "  --config <file.json|file.yaml> [--prefer <backend>] to open several backends")
	fmt.Fprintln(w, "  --list-backends lists linked backends")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - keys are printed as unpadded upper-case base32; private keys are the 32-byte seed")
	fmt.Fprintln(w, "  - the key store lives under ~/.szdat/keys (override with --keys-dir)")
	fmt.Fprintln(w, "  - archive writes <dir>.szdat; unarchive extracts <file> without its extension")
	fmt.Fprintln(w, "  - nothing is decoded or extracted before the signature verifies")
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// reportErr prints err and returns the exit status for a failed command.
func reportErr(errOut io.Writer, what string, err error) int {
	fields := log.Fields{}
	if id := szerr.RuleID(err); id != "" {
		fields["rule"] = id
	}
	log.WithFields(fields).WithError(err).Debug(what + " failed")
	fmt.Fprintf(errOut, "%s: %v\n", what, err)
	return 1
}
