package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "stararc",
		Short: "Read, sort and export star-shaped text archives",
		Long: "stararc reads star-shaped text archives: a core data file plus\n" +
			"extension files referencing core rows by a shared identifier.\n" +
			"An archive directory is described by a descriptor.json file.",
		SilenceUsage: true,
	}
	addCommands(root)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
