package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pipelined.dev/graph/rig"
)

func newEffectsCmd() *cobra.Command {
	o := &options{bits: 16}
	cmd := &cobra.Command{
		Use:   "effects",
		Short: "Show the list of available node types",
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := o.registry()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "Effects:")
			for _, t := range registry.Types() {
				fmt.Fprintf(w, "  %s\n", t)
			}
			fmt.Fprintln(w, "Utility:")
			fmt.Fprintf(w, "  %s\n  %s\n", rig.SplitterType, rig.MixerType)
			return nil
		},
	}
	cmd.Flags().StringVar(&o.record, "record", "", "Include recorder writing to the wav file")
	return cmd
}
