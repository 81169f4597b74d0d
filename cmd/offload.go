package cmd

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/s0up4200/wpbs/media"
)

var (
	offloadPostID string
	offloadUserID string
	offloadType   string
)

// offloadCmd moves a media library video to Bunny Stream
var offloadCmd = &cobra.Command{
	Use:   "offload <file>",
	Short: "Offload a media library video to Bunny Stream",
	Long: `Upload a video attachment into the uploader's collection and record the
video GUID and playback URL for the attachment. Attachments that were
already offloaded are skipped. With offload.delete_local the local copy is
removed after a successful upload.`,
	Args: cobra.ExactArgs(1),
	RunE: runOffload,
}

var offloadBackfillCmd = &cobra.Command{
	Use:   "backfill <post-id>...",
	Short: "Fill in playback URLs that were not ready at upload time",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runOffloadBackfill,
}

var offloadForgetCmd = &cobra.Command{
	Use:   "forget <post-id>...",
	Short: "Drop the stored video metadata of attachments",
	Long: `Remove the recorded video GUID and playback URL of each attachment so it
can be offloaded again. The videos stay in Bunny Stream.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runOffloadForget,
}

func init() {
	rootCmd.AddCommand(offloadCmd)
	offloadCmd.AddCommand(offloadBackfillCmd, offloadForgetCmd)

	offloadCmd.Flags().StringVar(&offloadPostID, "post", "", "attachment post ID")
	offloadCmd.Flags().StringVar(&offloadUserID, "user", "", "uploading user ID")
	offloadCmd.Flags().StringVar(&offloadType, "type", "", "MIME type reported by the uploader (default: detected)")
	offloadCmd.MarkFlagRequired("post")
}

func runOffload(cmd *cobra.Command, args []string) error {
	upload := media.Upload{File: args[0], Type: offloadType, PostID: offloadPostID}
	if upload.Type == "" {
		mtype, err := mimetype.DetectFile(upload.File)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", upload.File, err)
		}
		upload.Type = mtype.String()
	}

	result, err := app.offloader.OffloadVideo(cmd.Context(), upload, offloadUserID)
	if err != nil {
		return err
	}

	if result.Skipped {
		fmt.Printf("Skipped %s: %s\n", upload.File, result.Reason)
		return nil
	}
	fmt.Printf("✓ Offloaded %s\n", upload.File)
	fmt.Printf("- Video: %s\n", result.VideoGUID)
	fmt.Printf("- Collection: %s\n", result.CollectionID)
	if result.VideoURL != "" {
		fmt.Printf("- Playback: %s\n", result.VideoURL)
	} else {
		fmt.Println("- Playback: pending, run 'wpbs offload backfill' once encoding finishes")
	}
	return nil
}

func runOffloadBackfill(cmd *cobra.Command, args []string) error {
	var updated, failed int
	for _, postID := range args {
		changed, err := app.offloader.HandleAttachmentMetadata(cmd.Context(), postID)
		switch {
		case err != nil:
			failed++
			fmt.Printf("✗ %s: %v\n", postID, err)
		case changed:
			updated++
			fmt.Printf("✓ %s: playback URL stored\n", postID)
		default:
			fmt.Printf("- %s: nothing to do\n", postID)
		}
	}

	logger.Info().Int("updated", updated).Int("failed", failed).Msg("Backfill complete")
	if failed > 0 {
		return fmt.Errorf("%d of %d attachments could not be backfilled", failed, len(args))
	}
	return nil
}

func runOffloadForget(cmd *cobra.Command, args []string) error {
	var failed int
	for _, postID := range args {
		forgotten, err := app.offloader.ForgetAttachment(cmd.Context(), postID)
		switch {
		case err != nil:
			failed++
			fmt.Printf("✗ %s: %v\n", postID, err)
		case forgotten:
			fmt.Printf("✓ %s: metadata removed\n", postID)
		default:
			fmt.Printf("- %s: not offloaded\n", postID)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d attachments could not be forgotten", failed, len(args))
	}
	return nil
}
