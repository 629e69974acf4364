package main

import (
	"time"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "chattxt",
		Short:        "Convert chat exports to a plain-text transcript",
		Long:         "chattxt turns JSON or HTML chat exports into one _chat.txt transcript, from the command line or as an HTTP service.",
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(newConvertCmd(), newBackfillCmd(), newServeCmd())
	return root
}

// loadLocation resolves a timezone name; "" and "Local" mean the host zone.
func loadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}
