package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"quizgram/internal/events"
	"quizgram/internal/model"
	"quizgram/internal/session"
)

func toggleCmd(a *app) *cobra.Command {
	var assumeFollowing bool

	cmd := &cobra.Command{
		Use:   "toggle <target-user-id>",
		Short: "Follow or unfollow a user",
		Long: `Flip the viewer's relationship to the target user.

The current state is loaded from the server first. When that fails the
state given by --following is assumed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			targetID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || targetID <= 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}

			s, err := session.New(a.cfg, a.metrics)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if err := s.LoadFollowStatus(ctx, []int64{targetID}); err != nil {
				state := model.NotFollowing
				if assumeFollowing {
					state = model.Following
				}
				fmt.Fprintf(out, "could not load follow status (%v), assuming %s\n", err, state)
				s.Toggler.Track(model.RelationshipEdge{SourceID: s.ViewerID, TargetID: targetID, State: state})
			}

			unsubscribe := s.Bus.Subscribe(func(e events.Event) {
				switch ev := e.(type) {
				case events.RelationshipChanged:
					printFollowerCount(ctx, cmd, s, ev)
				case events.MutationFailed:
					fmt.Fprintf(out, "reverted to %s: %s (%s)\n", ev.Edge.State, ev.Message, ev.Kind)
				}
			})
			defer unsubscribe()

			edge, err := s.ToggleFollow(ctx, targetID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "user %d -> user %d: %s\n", edge.SourceID, edge.TargetID, edge.State)
			return nil
		},
	}

	cmd.Flags().BoolVar(&assumeFollowing, "following", false, "Assume the viewer already follows the target if status cannot be loaded")

	return cmd
}

func printFollowerCount(ctx context.Context, cmd *cobra.Command, s *session.Session, ev events.RelationshipChanged) {
	n, err := s.Client.FollowerCount(ctx, ev.TargetID)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "follower count unavailable: %v\n", err)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "user %d now has %d followers\n", ev.TargetID, n)
}
