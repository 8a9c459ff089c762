package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ligustah/eccofetch/internal/config"
	"github.com/ligustah/eccofetch/internal/diskaware"
	"github.com/ligustah/eccofetch/internal/progress"
)

func (a *app) diskawareCommand() *cobra.Command {
	var (
		asJSON    bool
		dryRun    bool
		freeSpace string
	)

	cmd := &cobra.Command{
		Use:   "diskaware <start> <end> <short-name>...",
		Short: "Download datasets if they fit on disk, otherwise open them remotely",
		Long: `Estimate the size of every granule not yet downloaded for the given
datasets. If the total fits within --max-avail-frac of the free space at the
download root, download everything; otherwise open all granules on S3.`,
		Example: `  eccofetch diskaware 2000-01 2000-12 ECCO_L4_SSH_05DEG_MONTHLY_V4R4 ECCO_L4_TEMP_SALINITY_05DEG_MONTHLY_V4R4
  eccofetch diskaware 2000-01-01 2000-01-31 ECCO_L4_SSH_05DEG_DAILY_V4R4 --max-avail-frac 0.2 --dry-run`,
		Args: minimumArgs(3),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if !flagChanged(cmd, "free-space") {
				return nil
			}
			size, err := progress.ParseBytes(freeSpace)
			if err != nil {
				return fmt.Errorf("%w: --free-space: %v", config.ErrInvalid, err)
			}
			// Zero is a valid answer here, unlike the config default.
			a.fixedFree = diskaware.Static(size)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			start, end, ids := args[0], args[1], args[2:]

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			d := diskaware.New(a.catalog(), s, a.freeSpace(), a.retrieveOptions())
			opts := diskaware.Options{
				Root:         a.cfg.DownloadRoot,
				MaxAvailFrac: a.cfg.MaxAvailFrac,
				Interval:     a.interval(),
				Force:        a.cfg.Force,
				Policy:       a.policy(),
			}

			plan, err := d.Plan(ctx, ids, start, end, opts)
			if err != nil {
				return err
			}

			if dryRun {
				if asJSON {
					return writeJSON(a, plan)
				}
				fmt.Fprintf(a.stdout, "mode: %s\nrequired: %s\nfree: %s\nmax_avail_frac: %.2f\n",
					plan.Mode, progress.FormatBytes(int64(plan.Required)),
					progress.FormatBytes(int64(plan.Free)), plan.MaxAvailFrac)
				return nil
			}

			results, err := d.Execute(ctx, plan, opts)
			if err != nil {
				return err
			}
			defer func() {
				for _, r := range results {
					r.Close()
				}
			}()

			if asJSON {
				return writeJSON(a, results)
			}
			for _, id := range sortedKeys(results) {
				r := results[id]
				for _, p := range r.Paths.Items() {
					fmt.Fprintf(a.stdout, "%s\t%s\t%s\n", id, r.Mode, p)
				}
				for _, f := range r.Files.Items() {
					fmt.Fprintf(a.stdout, "%s\t%s\t%s\n", id, r.Mode, f)
				}
			}
			return nil
		},
	}

	fs := cmd.Flags()
	a.addDownloadFlags(fs)
	a.addIntervalFlag(fs)
	fs.Float64Var(&a.override.MaxAvailFrac, "max-avail-frac", diskaware.DefaultMaxAvailFrac, "Share of free disk space downloads may use, clamped to [0, 0.9]")
	fs.StringVar(&freeSpace, "free-space", "", "Use this much free space (e.g. 50GB) instead of asking the filesystem")
	fs.BoolVar(&dryRun, "dry-run", false, "Print the decision without downloading or opening anything")
	fs.BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

// freeSpace returns the provider the dispatcher measures the root with.
func (a *app) freeSpace() diskaware.FreeSpaceProvider {
	if a.fixedFree != nil {
		return a.fixedFree
	}
	if a.cfg.FreeSpace > 0 {
		return diskaware.Static(a.cfg.FreeSpace)
	}
	if a.free != nil {
		return a.free
	}
	return diskaware.StatfsProvider{}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
