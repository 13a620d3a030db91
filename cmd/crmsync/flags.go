package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/crmsync/internal/config"
	"github.com/JonMunkholm/crmsync/internal/core"
	"github.com/spf13/pflag"
)

const usageLine = "usage: crmsync [--delete | --getobject --key K] --email E --object T [--strict-schema] [--translate-key] [--insecure] FILE"

// cliFlags holds the parsed command line.
type cliFlags struct {
	delete       bool
	getObject    bool
	key          string
	email        string
	object       string
	strictSchema bool
	translateKey bool
	insecure     bool
	file         string
}

// parseFlags parses args (without the program name). It returns
// pflag.ErrHelp when help was requested.
func parseFlags(args []string, stderr io.Writer) (cliFlags, error) {
	var f cliFlags

	fs := pflag.NewFlagSet("crmsync", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintln(stderr, usageLine)
		fs.PrintDefaults()
	}

	fs.BoolVar(&f.delete, "delete", false, "delete the objects whose keys are listed in FILE")
	fs.BoolVar(&f.getObject, "getobject", false, "fetch the object given by --key and write it to FILE")
	fs.StringVar(&f.key, "key", "", "object key for --getobject")
	fs.StringVar(&f.email, "email", "", "login email (default $CRM_EMAIL, prompted when empty)")
	fs.StringVar(&f.object, "object", "", "object type, e.g. event or supporter (required)")
	fs.BoolVar(&f.strictSchema, "strict-schema", false, "fail when FILE has columns the object type does not know")
	fs.BoolVar(&f.translateKey, "translate-key", false, "send <object>_KEY as key on save")
	fs.BoolVar(&f.insecure, "insecure", false, "skip TLS certificate verification")

	if err := fs.Parse(args); err != nil {
		return cliFlags{}, err
	}

	var errs []error
	if fs.NArg() != 1 {
		errs = append(errs, fmt.Errorf("expected exactly one FILE argument, got %d", fs.NArg()))
	} else {
		f.file = fs.Arg(0)
	}
	if f.object == "" {
		errs = append(errs, errors.New("--object is required"))
	}
	if f.delete && f.getObject {
		errs = append(errs, errors.New("--delete and --getobject cannot be combined"))
	}
	if f.getObject && f.key == "" {
		errs = append(errs, errors.New("--getobject needs --key"))
	}
	if !f.getObject && f.key != "" {
		errs = append(errs, errors.New("--key is only used with --getobject"))
	}
	if len(errs) > 0 {
		return cliFlags{}, fmt.Errorf("invalid options: %w", errors.Join(errs...))
	}

	return f, nil
}

func (f cliFlags) mode() core.Mode {
	switch {
	case f.delete:
		return core.ModeDelete
	case f.getObject:
		return core.ModeFetch
	default:
		return core.ModeSave
	}
}

// apply overrides config values the command line set explicitly.
func (f cliFlags) apply(cfg *config.Config) {
	if f.email != "" {
		cfg.CRM.Email = f.email
	}
	if f.insecure {
		cfg.CRM.InsecureSkipVerify = true
	}
	if f.strictSchema {
		cfg.Sync.StrictSchema = true
	}
	if f.translateKey {
		cfg.Sync.SaveKeyPolicy = string(core.KeyPolicyTranslate)
	}
}
