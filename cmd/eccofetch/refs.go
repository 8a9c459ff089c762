package main

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ligustah/eccofetch/internal/progress"
	"github.com/ligustah/eccofetch/internal/refs"
)

func (a *app) refsCommand() *cobra.Command {
	var (
		jsonRoot string
		key      string
	)

	cmd := &cobra.Command{
		Use:   "refs <short-name>",
		Short: "Inspect a dataset's kerchunk reference file",
		Long: `Locate the kerchunk reference file for a dataset under --json-root and list
its keys with their byte ranges. With --key, print the bytes that key refers
to, reading them from S3 when they are not stored inline.`,
		Example: "  eccofetch refs ECCO_L4_SSH_LLC0090GRID_MONTHLY_V4R4 --json-root ./ECCO_V4r4_PODAAC_MZZ --key SSH/.zarray",
		Args:    exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			path, err := refs.ResolvePath(a.fs, jsonRoot, args[0])
			if err != nil {
				return err
			}
			exists, err := afero.Exists(a.fs, path)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("%w: %s does not exist", refs.ErrNoReferenceFile, path)
			}

			m, err := refs.Load(a.fs, path)
			if err != nil {
				return err
			}
			a.log.WithField("path", path).WithField("keys", m.Len()).Debug("Loaded reference file")

			if key == "" {
				for _, k := range m.Keys() {
					r, _ := m.Ref(k)
					if r.IsInline() {
						fmt.Fprintf(a.stdout, "%s\tinline\t%s\n", k, progress.FormatBytes(int64(len(r.Inline))))
						continue
					}
					fmt.Fprintf(a.stdout, "%s\t%s\t%d\t%d\n", k, r.URL, r.Offset, r.Length)
				}
				return nil
			}

			r, ok := m.Ref(key)
			if !ok {
				return usageError{fmt.Errorf("%w: %s", refs.ErrKeyNotFound, key)}
			}
			if r.IsInline() {
				_, err := a.stdout.Write(r.Inline)
				return err
			}

			s, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			data, err := m.Get(ctx, s, key)
			if err != nil {
				return err
			}
			_, err = a.stdout.Write(data)
			return err
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&jsonRoot, "json-root", "", "Directory holding the MZZ_* reference file folders")
	fs.StringVar(&key, "key", "", "Print the data for this key instead of listing keys")
	_ = cmd.MarkFlagRequired("json-root")
	return cmd
}
