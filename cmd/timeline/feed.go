package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/blackmichael/timeline/internal/domain"
)

var showComments bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List posts, newest first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the feed until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(listCmd, watchCmd)

	listCmd.Flags().BoolVarP(&showComments, "comments", "c", false, "show comments under each post")
	watchCmd.Flags().BoolVarP(&showComments, "comments", "c", false, "show comments under each post")
}

func runList(cmd *cobra.Command, args []string) error {
	posts, err := store.ListPosts(cmd.Context())
	if err != nil {
		return err
	}
	return printFeed(os.Stdout, posts)
}

func runWatch(cmd *cobra.Command, args []string) error {
	sub, err := store.ObservePosts(cmd.Context())
	if err != nil {
		return err
	}
	defer sub.Cancel()

	color.Cyan("Watching feed, Ctrl-C to stop")
	for posts := range sub.Updates() {
		fmt.Println()
		if err := printFeed(os.Stdout, posts); err != nil {
			return err
		}
	}
	return nil
}

func printFeed(out io.Writer, posts []domain.Post) error {
	if len(posts) == 0 {
		fmt.Fprintln(out, "No posts yet.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tTYPE\tAUTHOR\tPOSTED\tCOMMENTS")
	for _, p := range posts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			p.ID, p.Title, p.MediaType, p.Author.DisplayName,
			humanize.Time(p.Timestamp), len(p.Comments))
		if !showComments {
			continue
		}
		for _, c := range p.Comments {
			body := c.Text
			if c.AudioURL != "" {
				body = color.MagentaString("[audio] ") + c.AudioURL
			}
			fmt.Fprintf(w, "\t  %s: %s\t\t\t%s\t\n", c.Author.DisplayName, body, humanize.Time(c.Timestamp))
		}
	}
	return w.Flush()
}
