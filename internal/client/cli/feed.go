package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"komun/internal/client/app"
	"komun/internal/client/tui"
)

var (
	feedPages int
	postImage string
)

func init() {
	feedCmd.Flags().IntVar(&feedPages, "pages", 1, "Number of pages to load")
	postCreateCmd.Flags().StringVar(&postImage, "image", "", "Path of an image to attach")

	postCmd.AddCommand(postShowCmd, postCreateCmd, postLikeCmd, postCommentCmd)
}

var feedCmd = &cobra.Command{
	Use:   "feed",
	Short: "Show the community feed",
	Args:  cobra.NoArgs,
	RunE: withSession(true, func(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error {
		if err := s.Posts.FetchFirstPage(ctx, true); err != nil {
			return err
		}
		for i := 1; i < feedPages && s.Posts.State().HasMore; i++ {
			if err := s.Posts.FetchNextPage(ctx); err != nil {
				return err
			}
		}
		if err := s.Blocked.Fetch(ctx); err != nil {
			return err
		}

		printOut(cmd, tui.Posts(s.VisiblePosts(), time.Now()))
		if st := s.Posts.State(); st.HasMore {
			printOut(cmd, "")
			printOut(cmd, fmt.Sprintf("More posts: komun feed --pages %d", st.Page+1))
		}
		return nil
	}),
}

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Read, write and react to posts",
}

var postShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a post with its comments",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(true, func(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error {
		if err := s.Posts.FetchPost(ctx, args[0]); err != nil {
			return err
		}
		if err := s.Posts.FetchComments(ctx, args[0]); err != nil {
			return err
		}
		if err := s.Blocked.Fetch(ctx); err != nil {
			return err
		}

		now := time.Now()
		printOut(cmd, tui.Post(*s.Posts.State().CurrentPost, now))
		printOut(cmd, "")
		printOut(cmd, tui.Comments(s.VisibleComments(), now))
		return nil
	}),
}

var postCreateCmd = &cobra.Command{
	Use:   "create [content]",
	Short: "Publish a post",
	Args:  cobra.MinimumNArgs(1),
	RunE: withSession(true, func(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error {
		post, err := s.Posts.CreatePost(ctx, strings.Join(args, " "), postImage)
		if err != nil {
			return err
		}
		printOut(cmd, "Published post #"+post.ID)
		return nil
	}),
}

var postLikeCmd = &cobra.Command{
	Use:   "like [id]",
	Short: "Like a post, or remove your like",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(true, func(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error {
		if err := s.Posts.FetchPost(ctx, args[0]); err != nil {
			return err
		}
		if err := s.Posts.ToggleLike(ctx, args[0]); err != nil {
			return err
		}
		post := s.Posts.State().CurrentPost
		verb := "Unliked"
		if post.LikedByMe {
			verb = "Liked"
		}
		printOut(cmd, fmt.Sprintf("%s post #%s (%d likes)", verb, post.ID, post.LikesCount))
		return nil
	}),
}

var postCommentCmd = &cobra.Command{
	Use:   "comment [id] [content]",
	Short: "Comment on a post",
	Args:  cobra.MinimumNArgs(2),
	RunE: withSession(true, func(ctx context.Context, s *app.Session, cmd *cobra.Command, args []string) error {
		if _, err := s.Posts.AddComment(ctx, args[0], strings.Join(args[1:], " ")); err != nil {
			return err
		}
		printOut(cmd, "Comment added to post #"+args[0])
		return nil
	}),
}
