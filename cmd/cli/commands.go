package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/himanishpuri/AdvertDNA/pkg/advertdna"
	"github.com/himanishpuri/AdvertDNA/pkg/advertdna/engine"
	"github.com/spf13/cobra"
)

func newInitCommand(ctx *commandContext) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the working directories and write the engine config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if force {
				if err := engine.WriteDocument(cfg.ConfigPath, cfg.EngineDocument()); err != nil {
					return err
				}
			}
			if _, err := ctx.ensureApp(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Upload dir:    %s\n", cfg.UploadDir)
			fmt.Fprintf(out, "Temp dir:      %s\n", cfg.TempDir)
			fmt.Fprintf(out, "Engine config: %s\n", cfg.ConfigPath)
			fmt.Fprintf(out, "Database:      %s (%s)\n", cfg.Database.Name, cfg.Connection().Dialect())
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Rewrite the engine config even if it exists")
	return cmd
}

func newRegisterCommand(ctx *commandContext) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "register <clip>",
		Short: "Register a clip unless it duplicates an existing advertisement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}

			path := args[0]
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			reg, err := a.Pipeline.Register(cmd.Context(), name, filepath.Base(path), f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch reg.Outcome {
			case advertdna.OutcomeDuplicate:
				fmt.Fprintf(out, "Advertisement already exists: %s (%s)\n", reg.CanonicalName, reg.Identifier)
			default:
				id := reg.Identifier
				if id == "" {
					id = "unresolved"
				}
				fmt.Fprintf(out, "Advertisement created: %s (%s)\n", reg.CanonicalName, id)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Advertisement name (defaults to the file name)")
	return cmd
}

func newMatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "match <clip>",
		Short: "Rank registered advertisements against a clip without registering it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			records, err := a.Pipeline.Match(cmd.Context(), filepath.Base(args[0]), f)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(records) == 0 {
				fmt.Fprintln(out, "No matches")
				return nil
			}

			rows := make([][]string, len(records))
			for i, r := range records {
				rows[i] = []string{
					strconv.Itoa(i + 1),
					r.Identifier,
					r.CanonicalName,
					strconv.FormatFloat(r.FingerprintConfidence, 'f', 3, 64),
					strconv.FormatFloat(r.InputConfidence, 'f', 3, 64),
					strconv.Itoa(r.AlignedHashes),
				}
			}
			fmt.Fprintln(out, renderTable(
				[]string{"#", "ID", "Name", "Fingerprint", "Input", "Hashes"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))
			return nil
		},
	}
}

func newProbeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <url>",
		Short: "Check that a stream is reachable and measure its bitrate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}

			res, err := a.Prober.Probe(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !res.Reachable {
				fmt.Fprintln(out, "Url cannot be used.")
				return nil
			}
			fmt.Fprintf(out, "Url can be used. Bitrate: %d kb/s\n", res.BitrateKbps)
			return nil
		},
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered advertisements",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}

			ads, err := a.Pipeline.List(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(ads) == 0 {
				fmt.Fprintln(out, "No advertisements registered")
				return nil
			}

			rows := make([][]string, len(ads))
			for i, ad := range ads {
				rows[i] = []string{
					ad.Identifier,
					ad.CanonicalName,
					fmt.Sprintf("%.1fs", float64(ad.DurationMs)/1000),
					strconv.Itoa(ad.TotalHashes),
				}
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Name", "Duration", "Hashes"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
			))
			fmt.Fprintf(out, "%d advertisement(s)\n", len(ads))
			return nil
		},
	}
}
