package hierarchy

import (
	"context"
	"fmt"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
)

const DefaultMaxDepth = 10

// Visit is one node reached by a traversal.
type Visit struct {
	Partner  *domain.PartnerNode
	Level    int
	ParentID string
}

type Traversal struct {
	Root      *domain.PartnerNode
	Visits    []*Visit
	Issues    []domain.IntegrityIssue
	Truncated bool
}

func (t *Traversal) HasCycle() bool {
	for _, is := range t.Issues {
		if is.Kind == domain.IssueCycle {
			return true
		}
	}
	return false
}

// CollectDownline walks the parent->children adjacency breadth-first from
// rootID using an explicit queue and a visited set. Nodes deeper than
// maxDepth levels are not expanded. A node reached twice means the stored
// hierarchy has a cycle: the walk skips it, keeps going and returns the
// partial traversal together with ErrCycleDetected.
func CollectDownline(ctx context.Context, reader domain.PartnerReader, rootID string, maxDepth int) (*Traversal, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	root, err := reader.FindPartnerByID(ctx, rootID)
	if err != nil {
		return nil, err
	}

	type queued struct {
		node  *domain.PartnerNode
		level int
	}
	t := &Traversal{Root: root}
	visited := map[string]struct{}{root.ID: {}}
	queue := []queued{{node: root, level: 0}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewTransientError(err)
		}
		cur := queue[0]
		queue = queue[1:]

		children, err := reader.FindChildren(ctx, cur.node.ID)
		if err != nil {
			return nil, err
		}
		if cur.level >= maxDepth {
			if len(children) > 0 {
				t.Truncated = true
				t.Issues = append(t.Issues, domain.IntegrityIssue{
					Kind:      domain.IssueDepthTruncated,
					PartnerID: cur.node.ID,
					Detail:    fmt.Sprintf("%d children below depth bound %d", len(children), maxDepth),
				})
			}
			continue
		}

		for _, child := range children {
			if _, seen := visited[child.ID]; seen {
				t.Issues = append(t.Issues, domain.IntegrityIssue{
					Kind:      domain.IssueCycle,
					PartnerID: child.ID,
					Detail:    fmt.Sprintf("reached again from %s", cur.node.ID),
				})
				continue
			}
			visited[child.ID] = struct{}{}

			level := cur.level + 1
			if stored := child.Depth - root.Depth; stored != level {
				t.Issues = append(t.Issues, domain.IntegrityIssue{
					Kind:      domain.IssueDepthMismatch,
					PartnerID: child.ID,
					Detail:    fmt.Sprintf("stored relative depth %d, traversal level %d", stored, level),
				})
			}
			t.Visits = append(t.Visits, &Visit{Partner: child, Level: level, ParentID: cur.node.ID})
			queue = append(queue, queued{node: child, level: level})
		}
	}

	if t.HasCycle() {
		return t, domain.ErrCycleDetected.Withf("downline of %s", root.ID)
	}
	return t, nil
}

// Ancestors returns the chain of parent ids above partnerID, nearest first,
// stopping after maxDepth hops or at a repeated id.
func Ancestors(ctx context.Context, reader domain.PartnerReader, partnerID string, maxDepth int) ([]string, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	node, err := reader.FindPartnerByID(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	seen := map[string]struct{}{node.ID: {}}
	var chain []string
	for hops := 0; hops < maxDepth && node.ParentID != nil; hops++ {
		parentID := *node.ParentID
		if _, ok := seen[parentID]; ok {
			return chain, domain.ErrCycleDetected.Withf("ancestors of %s", partnerID)
		}
		seen[parentID] = struct{}{}
		chain = append(chain, parentID)
		if node, err = reader.FindPartnerByID(ctx, parentID); err != nil {
			return chain, err
		}
	}
	return chain, nil
}
