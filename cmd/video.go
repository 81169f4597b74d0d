package cmd

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var (
	videoCollection string
	waitInterval    time.Duration
	waitTimeout     time.Duration
)

// videoCmd groups the Stream video commands
var videoCmd = &cobra.Command{
	Use:   "video",
	Short: "Create, upload and inspect Stream videos",
}

var videoCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create an empty video object",
	Args:  cobra.ExactArgs(1),
	RunE:  runVideoCreate,
}

var videoUploadCmd = &cobra.Command{
	Use:   "upload <file> <guid-or-title>",
	Short: "Upload a file into an existing video, or as a new video",
	Long: `Upload the file as the raw request body. When the second argument is a
video GUID the bytes go into that video; otherwise a new video with that
title is created.`,
	Args: cobra.ExactArgs(2),
	RunE: runVideoUpload,
}

var videoStatusCmd = &cobra.Command{
	Use:   "status <guid>",
	Short: "Show the encoding status of a video",
	Args:  cobra.ExactArgs(1),
	RunE:  runVideoStatus,
}

var videoWaitCmd = &cobra.Command{
	Use:   "wait <guid>...",
	Short: "Wait until videos finish encoding",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runVideoWait,
}

var videoPlaybackCmd = &cobra.Command{
	Use:   "playback <guid>",
	Short: "Print the playback URL of a video",
	Args:  cobra.ExactArgs(1),
	RunE:  runVideoPlayback,
}

func init() {
	rootCmd.AddCommand(videoCmd)
	videoCmd.AddCommand(videoCreateCmd, videoUploadCmd, videoStatusCmd, videoWaitCmd, videoPlaybackCmd)

	videoCreateCmd.Flags().StringVarP(&videoCollection, "collection", "c", "", "collection to create the video in")
	videoWaitCmd.Flags().DurationVar(&waitInterval, "interval", 0, "poll interval (default from offload.poll_interval)")
	videoWaitCmd.Flags().DurationVar(&waitTimeout, "timeout", 30*time.Minute, "give up after this long")
}

func runVideoCreate(cmd *cobra.Command, args []string) error {
	video, err := app.videos.CreateVideoObject(cmd.Context(), args[0], videoCollection)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Video %q created: %s\n", video.Title, video.GUID)
	return nil
}

func runVideoUpload(cmd *cobra.Command, args []string) error {
	resp, err := app.videos.UploadVideo(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Printf("✓ Uploaded %s\n", args[0])
	if m, err := resp.Map(); err == nil && len(m) > 0 {
		return printJSON(m)
	}
	return nil
}

func runVideoStatus(cmd *cobra.Command, args []string) error {
	status, progress, err := app.videos.GetVideoStatus(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s (%d%%)\n", args[0], status, progress)
	return nil
}

func runVideoWait(cmd *cobra.Command, args []string) error {
	interval := waitInterval
	if interval <= 0 {
		interval = cfg.Offload.PollInterval
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), waitTimeout)
	defer cancel()

	logger.Info().Int("videos", len(args)).Dur("interval", interval).Msg("Waiting for encoding")
	results, waitErr := app.offloader.WaitForEncoding(ctx, args, interval)

	guids := make([]string, 0, len(results))
	for guid := range results {
		guids = append(guids, guid)
	}
	sort.Strings(guids)

	var failed int
	for _, guid := range guids {
		r := results[guid]
		switch {
		case r.Err != nil:
			failed++
			fmt.Printf("✗ %s: %s (%v)\n", guid, r.Status, r.Err)
		case r.Done():
			fmt.Printf("✓ %s: %s\n", guid, r.Status)
		default:
			fmt.Printf("… %s: %s (%d%%)\n", guid, r.Status, r.Progress)
		}
	}

	if waitErr != nil {
		return fmt.Errorf("stopped waiting: %w", waitErr)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d videos could not be checked", failed, len(args))
	}
	return nil
}

func runVideoPlayback(cmd *cobra.Command, args []string) error {
	url, err := app.videos.GetPlaybackURL(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Println(url)
	return nil
}
