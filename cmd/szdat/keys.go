package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/gordonbrander/szdat/keys"
)

type keyFlags struct {
	privkey string
	name    string
	dir     string
}

func (k *keyFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&k.privkey, "privkey", "", "Private key text")
	fs.StringVar(&k.name, "key", "", "Name of a private key in the key store")
	fs.StringVar(&k.dir, "keys-dir", "", "Key store directory (default ~/.szdat/keys)")
}

// load returns the private key and whether the flags were usable at all.
func (k *keyFlags) load() (keys.PrivateKey, bool, error) {
	switch {
	case k.privkey != "" && k.name != "":
		return keys.PrivateKey{}, false, fmt.Errorf("use only one of --privkey and --key")
	case k.privkey != "":
		priv, err := keys.ParsePrivateKey(k.privkey)
		return priv, true, err
	case k.name != "":
		ks, err := keys.OpenKeyStore(k.dir)
		if err != nil {
			return keys.PrivateKey{}, true, err
		}
		priv, err := ks.Load(k.name)
		return priv, true, err
	default:
		return keys.PrivateKey{}, false, fmt.Errorf("missing --privkey or --key")
	}
}

func cmdGenKey(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("genkey", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var save, dir string
	var force bool
	fs.StringVar(&save, "save", "", "Also store the key in the key store under this name")
	fs.StringVar(&dir, "keys-dir", "", "Key store directory (default ~/.szdat/keys)")
	fs.BoolVar(&force, "force", false, "Overwrite an existing key of the same name")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: szdat genkey [--save <name>] [--force]")
		return 2
	}
	if save != "" {
		if err := keys.CheckKeyName(save); err != nil {
			fmt.Fprintf(errOut, "invalid --save: %v\n", err)
			return 2
		}
	}

	priv, pub, err := keys.Generate(nil)
	if err != nil {
		return reportErr(errOut, "genkey", err)
	}
	if save != "" {
		ks, err := keys.OpenKeyStore(dir)
		if err != nil {
			return reportErr(errOut, "keys", err)
		}
		path, err := ks.Save(save, priv, force)
		if err != nil {
			return reportErr(errOut, "write key", err)
		}
		fmt.Fprintf(errOut, "Stored at: %s\n", path)
		fmt.Fprintf(errOut, "Public key: %s\n", pub)
	}
	fmt.Fprintln(out, keys.EncodePrivateKey(priv))
	return 0
}

func cmdPubKey(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("pubkey", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var kf keyFlags
	kf.add(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: szdat pubkey (--privkey <text> | --key <name>)")
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
	fmt.Fprintln(out, keys.EncodePublicKey(priv.Public()))
	return 0
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 || args[0] != "list" {
		fmt.Fprintln(errOut, "usage: szdat key list [--keys-dir <dir>]")
		return 2
	}
	fs := flag.NewFlagSet("key list", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var dir string
	fs.StringVar(&dir, "keys-dir", "", "Key store directory (default ~/.szdat/keys)")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	ks, err := keys.OpenKeyStore(dir)
	if err != nil {
		return reportErr(errOut, "keys", err)
	}
	names, err := ks.List()
	if err != nil {
		return reportErr(errOut, "list keys", err)
	}
	for _, name := range names {
		priv, err := ks.Load(name)
		if err != nil {
			fmt.Fprintf(out, "%s\t<unreadable: %v>\n", name, err)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\n", name, priv.Public())
	}
	return 0
}
