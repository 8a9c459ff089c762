package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ligustah/eccofetch/internal/progress"
	"github.com/ligustah/eccofetch/internal/retrieve"
)

func (a *app) openCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open <short-name> <start> <end>",
		Short: "Open a dataset's granules in place on S3",
		Long: `Open every granule of a dataset between two dates directly on S3 without
downloading, and print each reference with its size. Useful to check access
to a dataset before processing it remotely.`,
		Args: exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			r := retrieve.NewRetriever(a.catalog(), s, a.retrieveOptions())
			result, err := r.Open(ctx, args[0], args[1], args[2], a.interval())
			if err != nil {
				return err
			}

			var total int64
			for _, f := range result.Items() {
				fmt.Fprintf(a.stdout, "%s\t%s\n", f, progress.FormatBytes(f.Size()))
				total += f.Size()
				f.Close()
			}
			a.log.WithField("files", result.Len()).
				WithField("size", progress.FormatBytes(total)).
				Info("Opened granules")
			return nil
		},
	}
	a.addIntervalFlag(cmd.Flags())
	return cmd
}
