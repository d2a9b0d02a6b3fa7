package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackmichael/timeline/internal/auth"
	"github.com/blackmichael/timeline/internal/config"
	"github.com/blackmichael/timeline/internal/domain"
	"github.com/blackmichael/timeline/internal/remote"
)

var (
	serverURL string
	uidFlag   string
	nameFlag  string

	store *domain.PostStore
)

var rootCmd = &cobra.Command{
	Use:   "timeline",
	Short: "Post images and audio, and comment on them",
	Long: `timeline is a client for a timeline server.

Posts carry an image or an audio clip. Anyone signed in can attach text or
audio comments, and "timeline watch" follows the feed as it changes.

Configuration comes from the environment (or a .env file):
  TIMELINE_SERVER_URL    server base URL (required)
  TIMELINE_UID           your user id; unset means signed out
  TIMELINE_DISPLAY_NAME  your display name (defaults to $USER)
  TIMELINE_LOG_LEVEL     debug, info, warn or error`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if serverURL != "" {
			os.Setenv("TIMELINE_SERVER_URL", serverURL)
		}
		cfg, err := config.LoadClient()
		if err != nil {
			return err
		}
		if uidFlag != "" {
			cfg.UID = uidFlag
		}
		if nameFlag != "" {
			cfg.DisplayName = nameFlag
		}

		store = newStore(cfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (overrides TIMELINE_SERVER_URL)")
	rootCmd.PersistentFlags().StringVar(&uidFlag, "as", "", "user id to act as (overrides TIMELINE_UID)")
	rootCmd.PersistentFlags().StringVar(&nameFlag, "name", "", "display name (overrides TIMELINE_DISPLAY_NAME)")
}

func newStore(cfg *config.ClientConfig) *domain.PostStore {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	client := remote.NewClient(cfg.ServerURL, logger)
	provider := auth.NewProvider(cfg.UID, cfg.DisplayName)
	return domain.NewPostStore(client, domain.NewMediaStore(client, logger), provider, logger)
}

// findPost loads the feed and returns the post with the given id.
func findPost(cmd *cobra.Command, id string) (*domain.Post, error) {
	posts, err := store.ListPosts(cmd.Context())
	if err != nil {
		return nil, err
	}
	for i := range posts {
		if posts[i].ID == id {
			return &posts[i], nil
		}
	}
	return nil, fmt.Errorf("post not found: %s", id)
}
