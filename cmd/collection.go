package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/s0up4200/wpbs/bunny"
)

var (
	collectionData   map[string]string
	collectionFilter string
	collectionUser   string
	collectionName   string
)

// collectionCmd groups the per-user collection commands
var collectionCmd = &cobra.Command{
	Use:   "collection",
	Short: "Manage per-user video collections",
}

var collectionCreateCmd = &cobra.Command{
	Use:   "create <user-id>",
	Short: "Create (or find) the collection of a user",
	Long: `Create the collection of a user in the configured library. If a collection
with the derived name already exists it is reused. Concurrent creators for the
same user are rejected while one is in progress.`,
	Args: cobra.ExactArgs(1),
	RunE: runCollectionCreate,
}

var collectionGetCmd = &cobra.Command{
	Use:   "get <collection-id>",
	Short: "Show one collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionGet,
}

var collectionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List collections, optionally filtered",
	Long: `List the collections of the configured library.

--filter takes either the name of a filter from the config file or an
expression over name, guid, userId, managed, videoCount, totalSize,
previews and libraryId, for example:

  wpbs collection list --filter 'managed && videoCount == 0'`,
	Args: cobra.NoArgs,
	RunE: runCollectionList,
}

var collectionUpdateCmd = &cobra.Command{
	Use:   "update <collection-id>",
	Short: "Update a collection",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionUpdate,
}

var collectionDeleteCmd = &cobra.Command{
	Use:   "delete <collection-id>",
	Short: "Delete a collection and forget its user link",
	Args:  cobra.ExactArgs(1),
	RunE:  runCollectionDelete,
}

func init() {
	rootCmd.AddCommand(collectionCmd)
	collectionCmd.AddCommand(collectionCreateCmd, collectionGetCmd, collectionListCmd, collectionUpdateCmd, collectionDeleteCmd)

	collectionCreateCmd.Flags().StringToStringVar(&collectionData, "data", nil, "additional fields sent with the create request")
	collectionListCmd.Flags().StringVarP(&collectionFilter, "filter", "f", "", "filter name or expression")
	collectionUpdateCmd.Flags().StringVar(&collectionName, "name", "", "new collection name")
	collectionUpdateCmd.Flags().StringToStringVar(&collectionData, "data", nil, "fields to update")
	collectionDeleteCmd.Flags().StringVar(&collectionUser, "user", "", "user whose link should be cleared")
}

func runCollectionCreate(cmd *cobra.Command, args []string) error {
	userID := args[0]
	id, err := app.collections.CreateCollection(cmd.Context(), userID, toAnyMap(collectionData))
	if errors.Is(err, bunny.ErrCollectionCreationLocked) {
		return fmt.Errorf("another process is creating the collection of user %s, try again shortly", userID)
	}
	if err != nil {
		return fmt.Errorf("failed to create collection for user %s: %w", userID, err)
	}

	fmt.Printf("✓ Collection %s (%s) ready for user %s\n", app.collections.CollectionName(userID), id, userID)
	return nil
}

func runCollectionGet(cmd *cobra.Command, args []string) error {
	collection, err := app.collections.GetCollection(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if collection == nil {
		return fmt.Errorf("collection %s not found", args[0])
	}
	return printJSON(collection)
}

func runCollectionList(cmd *cobra.Command, args []string) error {
	list, err := app.collections.ListCollections(cmd.Context())
	if err != nil {
		return err
	}

	collections := list.Items
	if collectionFilter != "" {
		expression := collectionFilter
		if named, ok := cfg.Filters[strings.ToLower(collectionFilter)]; ok {
			expression = named
		}

		logger.Debug().Str("filter", expression).Msg("Filtering collections")
		f, err := app.filters.Get(expression)
		if err != nil {
			return fmt.Errorf("invalid filter expression: %w", err)
		}
		if collections, err = f.Apply(collections); err != nil {
			return err
		}
	}

	if len(collections) == 0 {
		fmt.Println("No collections found.")
		return nil
	}

	fmt.Printf("\nFound %d collections:\n", len(collections))
	fmt.Println(strings.Repeat("-", 80))
	for _, c := range collections {
		fmt.Printf("• %s  %s  videos=%d  size=%s\n", c.GUID, c.Name, c.VideoCount, humanBytes(c.TotalSize))
	}
	return nil
}

func runCollectionUpdate(cmd *cobra.Command, args []string) error {
	data := toAnyMap(collectionData)
	if collectionName != "" {
		data["name"] = collectionName
	}

	resp, err := app.collections.UpdateCollection(cmd.Context(), args[0], data)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Collection %s updated\n", args[0])
	if !resp.Empty() {
		return printJSON(json.RawMessage(resp))
	}
	return nil
}

func runCollectionDelete(cmd *cobra.Command, args []string) error {
	if err := app.collections.DeleteCollection(cmd.Context(), args[0], collectionUser); err != nil {
		return err
	}
	fmt.Printf("✓ Collection %s deleted\n", args[0])
	return nil
}

func toAnyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
