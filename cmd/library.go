package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/s0up4200/wpbs/bunny"
)

var replicationRegions []string

// libraryCmd groups account-level video library commands
var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage Stream video libraries",
}

var libraryCreateCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a video library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := app.libraries.CreateLibrary(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("✓ Library %q created with ID %s\n", args[0], id)
		fmt.Println("Set bunny.library_id to use it with the other commands.")
		return nil
	},
}

// storageCmd groups storage zone commands
var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Manage storage zones for media offloading",
}

var storageCreateZoneCmd = &cobra.Command{
	Use:   "create-zone",
	Short: "Create an SSD storage zone with optional replication",
	Long:  storageZoneHelp(),
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		regions := make([]string, 0, len(replicationRegions))
		for _, r := range replicationRegions {
			regions = append(regions, strings.ToUpper(strings.TrimSpace(r)))
		}

		zone, err := app.zones.CreateStorageZone(cmd.Context(), regions)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Storage zone %s created (ID %d)\n", zone.Name, zone.ID)
		if zone.StorageHostname != "" {
			fmt.Printf("- Hostname: %s\n", zone.StorageHostname)
		}
		if len(zone.ReplicationRegions) > 0 {
			fmt.Printf("- Replicated to: %s\n", strings.Join(zone.ReplicationRegions, ", "))
		}
		return nil
	},
}

func storageZoneHelp() string {
	regions := make([]string, 0, len(bunny.ReplicationRegions))
	for code, name := range bunny.ReplicationRegions {
		regions = append(regions, fmt.Sprintf("  %-4s %s", code, name))
	}
	sort.Strings(regions)
	return fmt.Sprintf("Create a storage zone with a generated name in the main region (%s).\n\nReplication regions:\n%s",
		bunny.MainStorageRegion, strings.Join(regions, "\n"))
}

func init() {
	rootCmd.AddCommand(libraryCmd, storageCmd)
	libraryCmd.AddCommand(libraryCreateCmd)
	storageCmd.AddCommand(storageCreateZoneCmd)

	storageCreateZoneCmd.Flags().StringSliceVarP(&replicationRegions, "replicate", "r", nil, "replication regions, e.g. UK,NY")
}
