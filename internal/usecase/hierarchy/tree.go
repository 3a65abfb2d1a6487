package hierarchy

import (
	"context"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"go.uber.org/zap"
)

// BuildDisplayTree nests the viewer's downline. Levels come from the live
// traversal, never from the stored depth. Clean trees are cached unless an
// invalidation ran while they were built; trees carrying integrity issues
// are always rebuilt.
func (uc *DefaultHierarchyUsecase) BuildDisplayTree(ctx context.Context, viewerPartnerID string) (*domain.DisplayTree, error) {
	if uc.Cache != nil {
		tree, ok, err := uc.Cache.GetTree(ctx, viewerPartnerID)
		if err != nil {
			uc.Logger.Warn("tree cache read failed", zap.String("partner_id", viewerPartnerID), zap.Error(err))
		}
		uc.Metrics.RecordTreeCache(ok)
		if ok {
			return tree, nil
		}
	}

	generation := uc.invalidations.Load()
	traversal, err := CollectDownline(ctx, uc.Store, viewerPartnerID, uc.MaxDepth)
	if traversal == nil {
		return nil, err
	}
	uc.reportIssues(viewerPartnerID, traversal.Issues)

	tree := &domain.DisplayTree{
		Root:      nest(traversal),
		Issues:    traversal.Issues,
		Truncated: traversal.Truncated,
	}
	if err == nil && len(tree.Issues) == 0 && uc.Cache != nil && uc.invalidations.Load() == generation {
		if perr := uc.Cache.PutTree(ctx, viewerPartnerID, tree); perr != nil {
			uc.Logger.Warn("tree cache write failed", zap.String("partner_id", viewerPartnerID), zap.Error(perr))
		}
	}
	return tree, err
}

func nest(t *Traversal) *domain.TreeNode {
	root := &domain.TreeNode{Partner: t.Root, Level: 0, Children: []*domain.TreeNode{}}
	byID := map[string]*domain.TreeNode{t.Root.ID: root}
	for _, v := range t.Visits {
		node := &domain.TreeNode{Partner: v.Partner, Level: v.Level, Children: []*domain.TreeNode{}}
		byID[v.Partner.ID] = node
		parent := byID[v.ParentID]
		parent.Children = append(parent.Children, node)
	}
	return root
}

// InvalidateAbove drops cached trees that can contain partnerID: its own
// and those of its ancestors within the depth bound.
func (uc *DefaultHierarchyUsecase) InvalidateAbove(ctx context.Context, partnerID string) {
	if uc.Cache == nil {
		return
	}
	uc.invalidations.Add(1)
	chain, err := Ancestors(ctx, uc.Store, partnerID, uc.MaxDepth)
	if err != nil {
		uc.Logger.Warn("ancestor walk incomplete", zap.String("partner_id", partnerID), zap.Error(err))
	}
	ids := append([]string{partnerID}, chain...)
	if err := uc.Cache.Invalidate(ctx, ids...); err != nil {
		uc.Logger.Warn("tree cache invalidation failed", zap.Strings("partner_ids", ids), zap.Error(err))
	}
}
