package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	commentText string
	audioFile   string
)

var commentCmd = &cobra.Command{
	Use:   "comment <post-id>",
	Short: "Add a text comment to a post",
	Args:  cobra.ExactArgs(1),
	RunE:  runComment,
}

var audioCommentCmd = &cobra.Command{
	Use:   "audio-comment <post-id>",
	Short: "Add an audio comment to a post",
	Args:  cobra.ExactArgs(1),
	RunE:  runAudioComment,
}

func init() {
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(audioCommentCmd)

	commentCmd.Flags().StringVar(&commentText, "text", "", "comment text")
	commentCmd.MarkFlagRequired("text")

	audioCommentCmd.Flags().StringVar(&audioFile, "file", "", "recorded audio file")
	audioCommentCmd.MarkFlagRequired("file")
}

func runComment(cmd *cobra.Command, args []string) error {
	post, err := findPost(cmd, args[0])
	if err != nil {
		return err
	}

	if err := store.AddTextComment(cmd.Context(), commentText, post); err != nil {
		return fmt.Errorf("failed to add comment: %w", err)
	}

	color.Green("Commented on: %s", post.Title)
	return nil
}

func runAudioComment(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(audioFile)
	if err != nil {
		return fmt.Errorf("read audio file: %w", err)
	}

	post, err := findPost(cmd, args[0])
	if err != nil {
		return err
	}

	if err := store.AddAudioComment(cmd.Context(), data, post); err != nil {
		return fmt.Errorf("failed to add audio comment: %w", err)
	}

	color.Green("Audio comment added to: %s", post.Title)
	return nil
}
