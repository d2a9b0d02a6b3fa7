package main

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/blackmichael/timeline/internal/domain"
)

var (
	postTitle string
	postType  string
	postFile  string
	postRatio float64
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Upload an image or audio file as a new post",
	Args:  cobra.NoArgs,
	RunE:  runPost,
}

func init() {
	rootCmd.AddCommand(postCmd)

	postCmd.Flags().StringVar(&postTitle, "title", "", "post title")
	postCmd.Flags().StringVar(&postType, "type", string(domain.MediaImage), "media type: image or audio")
	postCmd.Flags().StringVar(&postFile, "file", "", "media file to upload")
	postCmd.Flags().Float64Var(&postRatio, "ratio", 0, "image aspect ratio (omit if unknown)")
	postCmd.MarkFlagRequired("title")
	postCmd.MarkFlagRequired("file")
}

func runPost(cmd *cobra.Command, args []string) error {
	mediaType, err := domain.ParseMediaType(postType)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(postFile)
	if err != nil {
		return fmt.Errorf("read media file: %w", err)
	}

	var ratio *float64
	if cmd.Flags().Changed("ratio") {
		ratio = &postRatio
	}

	post, err := store.CreatePost(cmd.Context(), postTitle, mediaType, data, ratio)
	if err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}

	color.Green("Posted: %s", post.Title)
	fmt.Printf("Post ID: %s\n", post.ID)
	fmt.Printf("Media:   %s (%s)\n", post.MediaURL, humanize.Bytes(uint64(len(data))))
	return nil
}
