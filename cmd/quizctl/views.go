package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"quizgram/internal/session"
)

func viewCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "view <entity-id>...",
		Short: "Record one view of each entity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDArgs(args)
			if err != nil {
				return err
			}

			s, err := session.New(a.cfg, a.metrics)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			if err := s.Views.Refresh(ctx, ids); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "refresh failed: %v\n", err)
			}
			for _, id := range ids {
				s.Views.RecordView(ctx, id)
			}
			printCounts(cmd, s, ids)
			return nil
		},
	}
}

func countsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "counts <entity-id>...",
		Short: "Print the view count of each entity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDArgs(args)
			if err != nil {
				return err
			}

			s, err := session.New(a.cfg, a.metrics)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Views.Refresh(cmd.Context(), ids); err != nil {
				return err
			}
			printCounts(cmd, s, ids)
			return nil
		},
	}
}

func printCounts(cmd *cobra.Command, s *session.Session, ids []int64) {
	for _, id := range ids {
		fmt.Fprintf(cmd.OutOrStdout(), "%d\t%d\t%s\n", id, s.Views.GetCount(id), s.Views.State(id))
	}
}

func parseIDArgs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid entity id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
