package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) queryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query <short-name> <start> <end>",
		Short: "List the S3 references of a dataset's granules",
		Long: `Query the CMR catalog for granules of a dataset between two dates and print
their direct-access S3 references, one per line. Dates are YYYY-MM-DD or
YYYY-MM; no credentials are needed.`,
		Example: "  eccofetch query ECCO_L4_SSH_05DEG_MONTHLY_V4R4 2000-01 2000-12",
		Args:    exactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			refs, err := a.catalog().Query(cmd.Context(), args[0], args[1], args[2], a.interval())
			if err != nil {
				return err
			}
			for _, ref := range refs {
				fmt.Fprintln(a.stdout, ref)
			}
			a.log.WithField("granules", len(refs)).Debug("Query complete")
			return nil
		},
	}
	a.addIntervalFlag(cmd.Flags())
	return cmd
}
