package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"

	"github.com/jLantxa/mapache-sub000/internal/backend"
	"github.com/jLantxa/mapache-sub000/internal/backend/limiter"
	"github.com/jLantxa/mapache-sub000/internal/backend/local"
	"github.com/jLantxa/mapache-sub000/internal/backend/location"
	"github.com/jLantxa/mapache-sub000/internal/backend/sftp"
	"github.com/jLantxa/mapache-sub000/internal/crypto"
	"github.com/jLantxa/mapache-sub000/internal/errors"
	"github.com/jLantxa/mapache-sub000/internal/options"
	"github.com/jLantxa/mapache-sub000/internal/repository"
	"github.com/jLantxa/mapache-sub000/internal/textfile"
)

// GlobalOptions are the flags accepted by every subcommand.
type GlobalOptions struct {
	Repo            string
	PasswordFile    string
	PasswordCommand string
	Quiet           bool
	Verbose         bool
	JSON            bool

	Options []string

	password string
	extended options.Options
}

var globalOptions GlobalOptions

func init() {
	f := cmdRoot.PersistentFlags()
	f.StringVarP(&globalOptions.Repo, "repo", "r", os.Getenv("MAPACHE_REPOSITORY"), "repository location")
	f.StringVar(&globalOptions.PasswordFile, "password-file", os.Getenv("MAPACHE_PASSWORD_FILE"), "read the repository password from a file")
	f.StringVar(&globalOptions.PasswordCommand, "password-command", os.Getenv("MAPACHE_PASSWORD_COMMAND"), "run a shell command and use its stdout as the repository password")
	f.BoolVarP(&globalOptions.Quiet, "quiet", "q", false, "print only essential messages")
	f.BoolVarP(&globalOptions.Verbose, "verbose", "v", false, "print more messages")
	f.BoolVar(&globalOptions.JSON, "json", false, "emit machine-readable JSON output")
	f.StringSliceVarP(&globalOptions.Options, "option", "o", nil, "set a backend option (can be given multiple times)")
}

func backendRegistry() *location.Registry {
	r := location.NewRegistry()
	r.Register(local.NewFactory())
	r.Register(sftp.NewFactory())
	return r
}

// openBackend resolves the repository location and limiter from the global
// flags and returns a live backend connection.
func openBackend(ctx context.Context, create bool) (backend.Backend, error) {
	if globalOptions.Repo == "" {
		return nil, errors.Fatal("please specify a repository location (--repo or $MAPACHE_REPOSITORY)")
	}

	opts, err := options.Parse(globalOptions.Options)
	if err != nil {
		return nil, err
	}
	globalOptions.extended = opts

	registry := backendRegistry()
	loc, err := location.Parse(registry, globalOptions.Repo)
	if err != nil {
		return nil, errors.Wrap(err, "parse repository location")
	}

	factory := registry.Lookup(loc.Scheme)
	if factory == nil {
		return nil, errors.Errorf("unknown backend scheme %q", loc.Scheme)
	}

	lim := limiter.NewStaticLimiter(limiter.Limits{})
	if create {
		return factory.Create(ctx, loc.Config, nil, lim)
	}
	return factory.Open(ctx, loc.Config, nil, lim)
}

// OpenRepository opens the repository configured by the global flags,
// prompting for its password if one wasn't supplied on the command line.
func OpenRepository(ctx context.Context) (*repository.Repository, error) {
	be, err := openBackend(ctx, false)
	if err != nil {
		return nil, err
	}

	pwd, err := resolvePassword("enter repository password: ")
	if err != nil {
		return nil, err
	}

	return repository.Open(ctx, be, pwd)
}

// CreateRepository creates and opens a fresh repository at the location
// configured by the global flags.
func CreateRepository(ctx context.Context) (*repository.Repository, error) {
	be, err := openBackend(ctx, true)
	if err != nil {
		return nil, err
	}

	pwd, err := resolvePasswordTwice()
	if err != nil {
		return nil, err
	}

	return repository.Create(ctx, be, pwd, crypto.DefaultKDFParams)
}

// resolvePassword returns the repository password from a password file,
// a password command, the MAPACHE_PASSWORD environment variable, or (as a
// last resort) an interactive prompt using prompt as its text.
func resolvePassword(prompt string) (string, error) {
	if globalOptions.password != "" {
		return globalOptions.password, nil
	}

	if globalOptions.PasswordFile != "" && globalOptions.PasswordCommand != "" {
		return "", errors.Fatal("--password-file and --password-command are mutually exclusive")
	}

	if globalOptions.PasswordCommand != "" {
		args, err := backend.SplitShellStrings(globalOptions.PasswordCommand)
		if err != nil {
			return "", err
		}
		cmd := exec.Command(args[0], args[1:]...)
		cmd.Stderr = os.Stderr
		out, err := cmd.Output()
		if err != nil {
			return "", errors.Wrap(err, "password command")
		}
		return strings.TrimSpace(string(out)), nil
	}

	if globalOptions.PasswordFile != "" {
		data, err := textfile.Read(globalOptions.PasswordFile)
		if err != nil {
			return "", errors.Wrap(err, "read password file")
		}
		return strings.TrimSpace(string(data)), nil
	}

	if pwd := os.Getenv("MAPACHE_PASSWORD"); pwd != "" {
		return pwd, nil
	}

	return readPasswordInteractive(prompt)
}

func resolvePasswordTwice() (string, error) {
	pw1, err := resolvePassword("enter password for new repository: ")
	if err != nil {
		return "", err
	}

	// Only re-prompt when the password actually came from an interactive
	// terminal; a scripted password source is trusted as-is.
	if globalOptions.password != "" || globalOptions.PasswordFile != "" ||
		globalOptions.PasswordCommand != "" || os.Getenv("MAPACHE_PASSWORD") != "" {
		return pw1, nil
	}

	pw2, err := readPasswordInteractive("enter password again: ")
	if err != nil {
		return "", err
	}
	if pw1 != pw2 {
		return "", errors.Fatal("passwords do not match")
	}
	return pw1, nil
}

func readPasswordInteractive(prompt string) (string, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", errors.Wrap(err, "read password")
		}
		if len(b) == 0 {
			return "", errors.Fatal("an empty password is not allowed")
		}
		return string(b), nil
	}

	sc := bufio.NewScanner(io.Reader(os.Stdin))
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", errors.Fatal("an empty password is not allowed")
	}
	return sc.Text(), nil
}
