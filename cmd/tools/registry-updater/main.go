// cmd/tools/registry-updater/main.go
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"scrape-planner/pkg/registry"
)

var registryPath string

var rootCmd = &cobra.Command{
	Use:   "registry-updater",
	Short: "Maintain the activity registry for the scrape-planning workers",
	Long: `registry-updater keeps configs/activity-registry.json in line with the
job types, input schemas and timeouts compiled into the workers.`,
	SilenceUsage: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Write the compiled worker activities into the registry",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registry.LoadRegistry(registryPath)
		if os.IsNotExist(err) {
			reg = &registry.ActivityRegistry{Version: "1.0.0"}
		} else if err != nil {
			return fmt.Errorf("failed to load registry: %w", err)
		}

		activities, err := compiledActivities()
		if err != nil {
			return err
		}
		now := time.Now()
		changed := 0
		for _, a := range activities {
			if reg.Upsert(a, now) {
				changed++
				fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", a.ID)
			}
		}
		if err := reg.Validate(); err != nil {
			return fmt.Errorf("refusing to write invalid registry: %w", err)
		}
		if changed == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "registry already up to date")
			return nil
		}
		return registry.SaveRegistry(reg, registryPath)
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the registry file and check it against the compiled workers",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registry.LoadRegistry(registryPath)
		if err != nil {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		if err := reg.Validate(); err != nil {
			return err
		}
		if err := checkDrift(reg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registry validation passed. Found %d activities.\n", len(reg.Activities))
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one activity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registry.LoadRegistry(registryPath)
		if err != nil {
			return fmt.Errorf("failed to load registry: %w", err)
		}
		activity, ok := reg.Find(args[0])
		if !ok {
			return fmt.Errorf("activity with ID %s not found", args[0])
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(activity)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&registryPath, "path", registry.DefaultPath, "Path to registry file")
	rootCmd.AddCommand(syncCmd, validateCmd, showCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
