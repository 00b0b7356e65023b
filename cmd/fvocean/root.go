package main

import (
	"fmt"

	"github.com/notargets/FVOcean/config"
	"github.com/spf13/cobra"
)

// Version is the release of fvocean
const Version = "0.1.0"

var (
	configFile string
	// Config is the scenario loaded by the persistent pre-run
	Config *config.Config
)

func init() {
	RootCmd.AddCommand(versionCmd, configCmd, runCmd)
	RootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"scenario file location; the built-in default scenario is used when empty")
}

// RootCmd is the main command
var RootCmd = &cobra.Command{
	Use:   "fvocean",
	Short: "A finite-volume hydrostatic free-surface ocean model.",
	Long: `fvocean steps a hydrostatic free-surface flow on a rectilinear C-grid
with centered, upwind-biased or WENO advection and an explicit, implicit or
split-explicit free surface.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return Startup(configFile)
	},
}

// Startup loads the scenario file, or the default scenario when path is empty
func Startup(path string) error {
	if path == "" {
		Config = config.Default()
		return nil
	}
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	Config = c
	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of fvocean",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fvocean v%s\n", Version)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the scenario as TOML",
	Long: `Print the loaded scenario, or the default one, as TOML. The output is a
complete scenario file to start from.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return Config.Encode(cmd.OutOrStdout())
	},
}
