// Command reconcile rebuilds denormalized comment counters from source rows.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/lostmedia/interaction-service/internal/app"
	"github.com/lostmedia/interaction-service/internal/config"
	"github.com/lostmedia/interaction-service/internal/logger"
	"github.com/lostmedia/interaction-service/internal/repository"
	"github.com/lostmedia/interaction-service/internal/service"
	"github.com/lostmedia/interaction-service/internal/validate"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var svc service.CommentService

	root := &cobra.Command{
		Use:          "reconcile",
		Short:        "Recompute reply and like counters",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger.Configure(cfg.LogLevel, false)

			db, err := app.InitDB(cfg)
			if err != nil {
				return err
			}
			// counters only; the gateway and the event bus are never touched
			svc = service.NewCommentService(repository.NewCommentRepository(db), nil, nil, validate.New())
			return nil
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "post <post-id>",
		Short: "Reconcile every comment on a post and remove orphaned replies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := svc.ReconcilePost(cmdContext(cmd), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "orphans deleted: %d, reply counts fixed: %d, like counts fixed: %d\n",
				result.OrphansDeleted, result.RepliesFixed, result.LikesFixed)
			return nil
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "comment <comment-id>",
		Short: "Reconcile a single comment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			comment, err := svc.ReconcileComment(cmdContext(cmd), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "comment %s: replies=%d likes=%d\n",
				comment.ID, comment.ReplyCount, comment.LikeCount)
			return nil
		},
	})

	return root
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
