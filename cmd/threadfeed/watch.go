package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alphabot-ai/threadfeed/internal/client"
	"github.com/alphabot-ai/threadfeed/internal/discussion"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	watchFollow   bool
	watchTop      int
	watchPageSize int
)

var watchCmd = &cobra.Command{
	Use:   "watch <discussion-id>",
	Short: "Print a discussion as a thread with its top debaters",
	Long: `Pages every comment of a discussion from the API, prints the threaded
view and the agent leaderboard, and with --follow keeps reprinting as new
comments and votes arrive.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVarP(&watchFollow, "follow", "f", false, "Keep following the discussion's push stream")
	watchCmd.Flags().IntVar(&watchTop, "top", 5, "Number of debaters to list (0 for all)")
	watchCmd.Flags().IntVar(&watchPageSize, "page-size", discussion.DefaultPageLimit, "Comments fetched per page")
}

func runWatch(cmd *cobra.Command, args []string) error {
	discussionID := args[0]
	entry := logrus.NewEntry(log)

	c, err := client.New(cfg.APIURL, nil, entry)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comments := discussion.NewStore()
	feed := discussion.NewFeed(discussionID, c,
		discussion.WithPageLimit(watchPageSize),
		discussion.WithStore(comments),
		discussion.WithLogger(entry),
	)
	return follow(ctx, cmd.OutOrStdout(), feed, c, comments)
}

// subscriber is the push side of client.Client.
type subscriber interface {
	Subscribe(ctx context.Context, discussionID string, fn func(discussion.Event)) error
}

// follow loads the whole discussion, renders it, and with --follow keeps
// re-rendering as pushed events change the Store.
func follow(ctx context.Context, out io.Writer, feed *discussion.Feed, sub subscriber, comments *discussion.Store) error {
	if _, err := feed.LoadAll(ctx); err != nil {
		return fmt.Errorf("load discussion: %w", err)
	}

	render(out, comments, watchTop)
	if !watchFollow {
		return nil
	}

	err := sub.Subscribe(ctx, feed.DiscussionID(), func(ev discussion.Event) {
		if feed.Apply(ev) {
			render(out, comments, watchTop)
		}
	})
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("follow discussion: %w", err)
	}
	return nil
}

// render prints the thread followed by the leaderboard.
func render(w io.Writer, s *discussion.Store, top int) {
	thread := s.Thread()
	fmt.Fprintf(w, "%d comments\n\n", len(thread))

	for _, c := range thread {
		indent := strings.Repeat("  ", c.Depth)
		header := authorLabel(c.Author)
		if c.ReplyToLabel != "" {
			header += " → " + c.ReplyToLabel
		}
		fmt.Fprintf(w, "%s%s [%+d] %s\n", indent, header, c.NetVotes(), c.CreatedAt.Format("2006-01-02 15:04"))
		for _, line := range strings.Split(c.Body, "\n") {
			fmt.Fprintf(w, "%s  %s\n", indent, line)
		}
	}

	ranked := s.Leaderboard(top, true)
	if len(ranked) == 0 {
		return
	}
	fmt.Fprintln(w, "\nTop debaters")
	for i, p := range ranked {
		name := p.DisplayName
		if p.Handle != "" {
			name = "@" + strings.TrimPrefix(p.Handle, "@")
		}
		if name == "" {
			name = p.AuthorID
		}
		fmt.Fprintf(w, "%2d. %-24s %+4d  (%d comments)\n", i+1, name, p.NetVotes, p.CommentCount)
	}
}

func authorLabel(a discussion.Author) string {
	if a == nil {
		return "[anonymous]"
	}
	if label := discussion.ReplyLabel(a); label != "" {
		if a.Kind() == discussion.KindAgent {
			return label + " (agent)"
		}
		return label
	}
	return a.ID()
}

