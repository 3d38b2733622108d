package app

import (
	"context"

	"github.com/matheus3301/optsync/internal/client"
	"github.com/matheus3301/optsync/internal/entity"
	"github.com/matheus3301/optsync/internal/mutate"
	"go.uber.org/zap"
)

// runDemo drives a representative workload against the feed: load every
// page, toggle likes (the first one is scripted to conflict), compose a
// post, and edit it. It exists so the daemon has observable behavior
// without a UI attached.
func runDemo(ctx context.Context, c *client.Client[entity.Post], logger *zap.Logger) {
	for c.HasMore() {
		if ctx.Err() != nil {
			return
		}
		if err := c.FetchNext(ctx); err != nil {
			logger.Warn("demo fetch failed", zap.Error(err))
			return
		}
	}
	logger.Info("feed loaded",
		zap.Int("posts", len(c.OrderedIDs())),
		zap.String("status", string(c.Status())),
	)

	// post-1 has a scripted conflict: the like shows up, then rolls back.
	likeAndWait(ctx, c, "post-1", logger)
	likeAndWait(ctx, c, "post-2", logger)

	h, err := c.Mutate(ctx, "", KindCompose, ComposePayload{
		Author: "author-0",
		Body:   "hello from the demo driver",
	})
	if err != nil {
		logger.Warn("compose rejected", zap.Error(err))
		return
	}
	res, err := h.Wait(ctx)
	if err != nil {
		return
	}
	logger.Info("compose resolved",
		zap.String("post", h.EntityID),
		zap.String("state", string(res.State)),
	)
	if res.State != mutate.StateCommitted {
		return
	}

	if eh, err := c.Mutate(ctx, h.EntityID, KindEdit, "hello from the demo driver (edited)"); err == nil {
		if eres, werr := eh.Wait(ctx); werr == nil {
			logger.Info("edit resolved",
				zap.String("post", h.EntityID),
				zap.String("state", string(eres.State)),
			)
		}
	}

	logger.Info("demo finished",
		zap.Int("posts", len(c.OrderedIDs())),
		zap.Int("pending", c.Pending()),
	)
}

func likeAndWait(ctx context.Context, c *client.Client[entity.Post], id string, logger *zap.Logger) {
	h, err := c.Mutate(ctx, id, KindLike, nil)
	if err != nil {
		logger.Warn("like rejected", zap.String("post", id), zap.Error(err))
		return
	}
	res, err := h.Wait(ctx)
	if err != nil {
		return
	}
	fields := []zap.Field{
		zap.String("post", id),
		zap.String("state", string(res.State)),
	}
	if res.Reason != "" {
		fields = append(fields, zap.String("reason", res.Reason))
	}
	logger.Info("like resolved", fields...)
}
