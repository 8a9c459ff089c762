package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ligustah/eccofetch/internal/catalog"
	"github.com/ligustah/eccofetch/internal/config"
	"github.com/ligustah/eccofetch/internal/diskaware"
	"github.com/ligustah/eccofetch/internal/earthdata"
	eccohttp "github.com/ligustah/eccofetch/internal/http"
	"github.com/ligustah/eccofetch/internal/retrieve"
	"github.com/ligustah/eccofetch/internal/store"
)

// app holds what every command shares: configuration, logging and the
// factories for remote services.
type app struct {
	stdout io.Writer
	stderr io.Writer
	log    *logrus.Logger
	fs     afero.Fs

	configPath string
	logLevel   string
	override   config.Config
	noProgress bool

	cfg config.Config

	// fixedFree is set by --free-space and wins over everything else.
	fixedFree diskaware.FreeSpaceProvider

	// free overrides free space detection when no fixed amount is
	// configured.
	free diskaware.FreeSpaceProvider

	// prompter asks for an Earthdata login when none is stored.
	prompter earthdata.Prompter

	// bucketOpener turns temporary credentials into a bucket opener.
	bucketOpener func(ctx context.Context, creds aws.CredentialsProvider, cfg config.Config) (store.BucketOpener, error)
}

func newApp(stdout, stderr io.Writer) *app {
	log := logrus.New()
	log.SetOutput(stderr)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	return &app{
		stdout:       stdout,
		stderr:       stderr,
		log:          log,
		fs:           afero.NewOsFs(),
		prompter:     earthdata.TerminalPrompter{In: os.Stdin, Out: stderr},
		bucketOpener: s3BucketOpener,
	}
}

func s3BucketOpener(ctx context.Context, creds aws.CredentialsProvider, cfg config.Config) (store.BucketOpener, error) {
	return store.S3Opener(ctx, creds, store.S3Options{
		Region:   cfg.Region,
		Endpoint: cfg.S3Endpoint,
	})
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "eccofetch",
		Short: "Retrieve ECCO datasets from the PO.DAAC archive",
		Long: `eccofetch finds ECCO granules in NASA's CMR catalog and either downloads
them or opens them directly from PO.DAAC's S3 buckets.

Earthdata Login credentials are read from your netrc file and prompted for
(and saved) when missing.`,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return a.setup(cmd) },
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "YAML configuration file")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.override.NetrcPath, "netrc", "", "netrc file holding the Earthdata login (default ~/.netrc)")

	root.AddCommand(
		a.queryCommand(),
		a.getCommand(),
		a.openCommand(),
		a.diskawareCommand(),
		a.refsCommand(),
	)
	return root
}

// setup resolves configuration: defaults, then the file, then ECCO_
// variables, then flags.
func (a *app) setup(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.configPath != "" {
		var err error
		cfg, err = config.LoadFromFile(a.configPath)
		if err != nil {
			return fmt.Errorf("%w: %v", config.ErrInvalid, err)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	override := a.override
	override.LogLevel = a.logLevel
	override.MaxAvailFrac = 0
	cfg = cfg.Merge(override)
	if a.noProgress {
		cfg.Progress = false
	}
	if flagChanged(cmd, "max-avail-frac") {
		// Merge ignores zero, but 0 is a meaningful fraction.
		cfg.MaxAvailFrac = a.override.MaxAvailFrac
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := logrus.ParseLevel(cfg.LogLevel)
	a.log.SetLevel(level)
	a.cfg = cfg
	return nil
}

func flagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func minimumArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MinimumNArgs(n)(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// Flag helpers shared by the retrieval commands.

func (a *app) addIntervalFlag(fs *pflag.FlagSet) {
	fs.StringVar(&a.override.SnapshotInterval, "snapshot-interval", "", "Snapshot spacing for SNAPSHOT datasets: monthly or daily")
}

func (a *app) addDownloadFlags(fs *pflag.FlagSet) {
	fs.StringVar(&a.override.DownloadRoot, "root", "", "Download root; files go to <root>/<ShortName> (default ~/Downloads/ECCO_V4r4_PODAAC)")
	fs.IntVar(&a.override.Workers, "workers", 0, "Parallel download workers (default 6)")
	fs.BoolVar(&a.override.Force, "force", false, "Download files again even if they exist")
	fs.BoolVar(&a.noProgress, "no-progress", false, "Disable the progress bar")
}

func (a *app) httpOptions() eccohttp.Options {
	opts := eccohttp.DefaultOptions()
	opts.RetryAttempts = a.cfg.Retry.Attempts
	opts.RetryBackoff = a.cfg.Retry.Backoff
	opts.RetryMaxBackoff = a.cfg.Retry.MaxBackoff
	return opts
}

func (a *app) interval() catalog.Interval {
	// Validated in setup.
	i, _ := catalog.ParseInterval(a.cfg.SnapshotInterval)
	return i
}

func (a *app) catalog() *catalog.Engine {
	return catalog.New(eccohttp.NewClient(a.httpOptions()), catalog.Options{
		URL: a.cfg.CMRURL,
		Log: a.log,
	})
}

// openStore authenticates with Earthdata, exchanges the login for temporary
// S3 credentials and returns a store using them. Credentials are fetched
// anew on every call and never cached.
func (a *app) openStore(ctx context.Context) (*store.BlobStore, error) {
	provider := earthdata.NewProvider(earthdata.Options{
		NetrcPath:      a.cfg.NetrcPath,
		CredentialsURL: a.cfg.CredentialsURL,
		Prompter:       a.prompter,
		HTTPOptions:    a.httpOptions(),
		Log:            a.log,
	})

	session, err := provider.EnsureCredentials(ctx, a.cfg.EarthdataHost)
	if err != nil {
		return nil, err
	}

	cred, err := session.ExchangeForCloudCredentials(ctx)
	if err != nil {
		return nil, err
	}
	entry := a.log.WithField("user", session.Username)
	if exp, ok := cred.ExpiresAt(); ok {
		entry = entry.WithField("expires", exp)
	}
	entry.Debug("Obtained temporary S3 credentials")

	opener, err := a.bucketOpener(ctx, cred, a.cfg)
	if err != nil {
		return nil, err
	}
	return store.New(opener), nil
}

func (a *app) retrieveOptions() retrieve.Options {
	return retrieve.Options{
		Fs:             a.fs,
		Progress:       a.cfg.Progress,
		ProgressOutput: a.stderr,
		Log:            a.log,
	}
}

func (a *app) policy() retrieve.Policy {
	return retrieve.ParallelThenSequential{Workers: a.cfg.Workers, Log: a.log}
}
