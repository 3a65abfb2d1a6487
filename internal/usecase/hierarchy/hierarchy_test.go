package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/LavaJover/shvark-ib-service/internal/domain"
	"github.com/LavaJover/shvark-ib-service/internal/infrastructure/memory"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// mapReader is a PartnerReader over a fixed adjacency, able to hold data no
// real store would accept, such as cycles.
type mapReader struct {
	nodes    map[string]*domain.PartnerNode
	children map[string][]string
}

func newMapReader() *mapReader {
	return &mapReader{nodes: map[string]*domain.PartnerNode{}, children: map[string][]string{}}
}

func (r *mapReader) add(id, parentID string, depth int) {
	n := &domain.PartnerNode{ID: id, OwnerUserID: "user-" + id, Depth: depth, Status: domain.PartnerActive}
	if parentID != "" {
		n.ParentID = &parentID
	}
	r.nodes[id] = n
	if parentID != "" {
		r.children[parentID] = append(r.children[parentID], id)
	}
}

func (r *mapReader) FindPartnerByID(_ context.Context, id string) (*domain.PartnerNode, error) {
	n, ok := r.nodes[id]
	if !ok {
		return nil, domain.ErrPartnerNotFound
	}
	return n.Clone(), nil
}

func (r *mapReader) FindPartnerByUser(context.Context, string) (*domain.PartnerNode, error) {
	return nil, domain.ErrNoHierarchyRecord
}

func (r *mapReader) FindPartnerByCode(context.Context, string) (*domain.PartnerNode, error) {
	return nil, domain.ErrReferralCodeNotFound
}

func (r *mapReader) FindChildren(_ context.Context, id string) ([]*domain.PartnerNode, error) {
	var out []*domain.PartnerNode
	for _, c := range r.children[id] {
		out = append(out, r.nodes[c].Clone())
	}
	return out, nil
}

// failingAggregates fails commission sums attributed to one source user.
type failingAggregates struct {
	domain.Store
	sourceUserID string
}

func (s failingAggregates) SumCommissions(ctx context.Context, f domain.CommissionFilter) (domain.CommissionTotals, error) {
	if f.SourceUserID == s.sourceUserID {
		return domain.CommissionTotals{}, domain.NewTransientError(errors.New("statement timeout"))
	}
	return s.Store.SumCommissions(ctx, f)
}

// cancellingAggregates ends the caller's context on the first commission sum.
type cancellingAggregates struct {
	domain.Store
	cancel context.CancelFunc
}

func (s cancellingAggregates) SumCommissions(ctx context.Context, _ domain.CommissionFilter) (domain.CommissionTotals, error) {
	s.cancel()
	return domain.CommissionTotals{}, ctx.Err()
}

// extraChildren adds adjacency on top of a real store.
type extraChildren struct {
	domain.Store
	extra map[string][]*domain.PartnerNode
}

func (s extraChildren) FindChildren(ctx context.Context, id string) ([]*domain.PartnerNode, error) {
	children, err := s.Store.FindChildren(ctx, id)
	if err != nil {
		return nil, err
	}
	return append(children, s.extra[id]...), nil
}

// invalidateDuringWalk runs one invalidation while the first children
// lookup is in flight, as a concurrent enrollment would.
type invalidateDuringWalk struct {
	domain.Store
	once       *sync.Once
	invalidate func()
}

func (s invalidateDuringWalk) FindChildren(ctx context.Context, id string) ([]*domain.PartnerNode, error) {
	children, err := s.Store.FindChildren(ctx, id)
	s.once.Do(s.invalidate)
	return children, err
}

type countingCache struct {
	mu          sync.Mutex
	trees       map[string]*domain.DisplayTree
	puts        int
	invalidated []string
}

func newCountingCache() *countingCache {
	return &countingCache{trees: map[string]*domain.DisplayTree{}}
}

func (c *countingCache) GetTree(_ context.Context, id string) (*domain.DisplayTree, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.trees[id]
	return t, ok, nil
}

func (c *countingCache) PutTree(_ context.Context, id string, t *domain.DisplayTree) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trees[id] = t
	c.puts++
	return nil
}

func (c *countingCache) Invalidate(_ context.Context, ids ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range ids {
		delete(c.trees, id)
	}
	c.invalidated = append(c.invalidated, ids...)
	return nil
}

var created = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func insertNode(t *testing.T, store domain.Store, id string, parent *domain.PartnerNode) *domain.PartnerNode {
	t.Helper()
	n := &domain.PartnerNode{
		ID:           id,
		OwnerUserID:  "user-" + id,
		ReferralCode: fmt.Sprintf("C%05d", len(id)*100+int(id[len(id)-1])),
		Status:       domain.PartnerActive,
		CreatedAt:    created,
	}
	created = created.Add(time.Second)
	if parent != nil {
		parentID := parent.ID
		n.ParentID = &parentID
		n.Depth = parent.Depth + 1
	}
	if err := store.InsertPartner(context.Background(), n); err != nil {
		t.Fatalf("insert %s: %v", id, err)
	}
	return n
}

func appendCommission(t *testing.T, store domain.Store, id, partnerID, sourceUserID, amount, volume string) {
	t.Helper()
	_, err := store.AppendCommission(context.Background(), &domain.CommissionEntry{
		ID: id, PartnerID: partnerID, SourceUserID: sourceUserID,
		Amount: decimal.RequireFromString(amount), Volume: decimal.RequireFromString(volume),
	})
	if err != nil {
		t.Fatalf("append commission: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Traversal
// ---------------------------------------------------------------------------

func TestCollectDownline_RelativeLevels(t *testing.T) {
	r := newMapReader()
	r.add("root", "", 3)
	r.add("y", "root", 4)
	r.add("x", "y", 5)
	r.add("z", "x", 6)

	tr, err := CollectDownline(context.Background(), r, "y", 10)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	levels := map[string]int{}
	for _, v := range tr.Visits {
		levels[v.Partner.ID] = v.Level
	}
	if len(levels) != 2 || levels["x"] != 1 || levels["z"] != 2 {
		t.Fatalf("unexpected levels: %v", levels)
	}
	if len(tr.Issues) != 0 || tr.Truncated {
		t.Fatalf("unexpected issues: %+v", tr.Issues)
	}
}

func TestCollectDownline_CycleTerminates(t *testing.T) {
	r := newMapReader()
	r.add("a", "", 0)
	r.add("b", "a", 1)
	r.add("c", "b", 2)
	// c points back at a
	r.children["c"] = append(r.children["c"], "a")

	done := make(chan struct{})
	var tr *Traversal
	var err error
	go func() {
		defer close(done)
		tr, err = CollectDownline(context.Background(), r, "a", 10)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("traversal did not terminate on a cycle")
	}

	if !errors.Is(err, domain.ErrCycleDetected) || domain.KindOf(err) != domain.KindIntegrity {
		t.Fatalf("expected cycle integrity error, got %v", err)
	}
	if tr == nil || len(tr.Visits) != 2 || !tr.HasCycle() {
		t.Fatalf("expected partial traversal with cycle flagged, got %+v", tr)
	}
}

func TestCollectDownline_DepthBound(t *testing.T) {
	r := newMapReader()
	r.add("n0", "", 0)
	for i := 1; i <= 15; i++ {
		r.add(fmt.Sprintf("n%d", i), fmt.Sprintf("n%d", i-1), i)
	}

	tr, err := CollectDownline(context.Background(), r, "n0", 10)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(tr.Visits) != 10 || !tr.Truncated {
		t.Fatalf("expected 10 visits and truncation, got %d truncated=%v", len(tr.Visits), tr.Truncated)
	}
	if tr.Issues[0].Kind != domain.IssueDepthTruncated || tr.Issues[0].PartnerID != "n10" {
		t.Fatalf("unexpected issue: %+v", tr.Issues[0])
	}
}

func TestCollectDownline_StaleDepthFlagged(t *testing.T) {
	r := newMapReader()
	r.add("a", "", 0)
	r.add("b", "a", 1)
	r.add("c", "b", 7)

	tr, err := CollectDownline(context.Background(), r, "a", 10)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(tr.Issues) != 1 || tr.Issues[0].Kind != domain.IssueDepthMismatch || tr.Issues[0].PartnerID != "c" {
		t.Fatalf("expected depth mismatch on c, got %+v", tr.Issues)
	}
	if tr.Visits[1].Level != 2 {
		t.Fatalf("level must come from traversal, got %d", tr.Visits[1].Level)
	}
}

func TestAncestors(t *testing.T) {
	r := newMapReader()
	r.add("a", "", 0)
	r.add("b", "a", 1)
	r.add("c", "b", 2)

	chain, err := Ancestors(context.Background(), r, "c", 10)
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if len(chain) != 2 || chain[0] != "b" || chain[1] != "a" {
		t.Fatalf("unexpected chain: %v", chain)
	}
}

// ---------------------------------------------------------------------------
// Downline with aggregates
// ---------------------------------------------------------------------------

func seedThreeLevels(t *testing.T) (*memory.Store, *domain.PartnerNode, *domain.PartnerNode, *domain.PartnerNode) {
	store := memory.NewStore()
	y := insertNode(t, store, "y", nil)
	x := insertNode(t, store, "x", y)
	z := insertNode(t, store, "z", x)

	appendCommission(t, store, "c1", y.ID, x.OwnerUserID, "5", "100")
	appendCommission(t, store, "c2", y.ID, z.OwnerUserID, "1", "40")
	appendCommission(t, store, "c3", x.ID, z.OwnerUserID, "3", "40")
	appendCommission(t, store, "c4", y.ID, "outside-client", "9", "900")
	return store, y, x, z
}

func TestBuildDownline_PerNodeAggregates(t *testing.T) {
	store, y, x, z := seedThreeLevels(t)
	uc := NewDefaultHierarchyUsecase(store, nil, 10, 2, nil, nil)

	d, err := uc.BuildDownline(context.Background(), y.ID, true)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(d.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(d.Entries))
	}
	byID := map[string]*domain.DownlineEntry{}
	for _, e := range d.Entries {
		byID[e.Partner.ID] = e
	}

	if e := byID[x.ID]; e.Level != 1 || e.DepthLevel != 1 || !e.Volume.Equal(decimal.RequireFromString("100")) || !e.EarnedFromThisPartner.Equal(decimal.RequireFromString("5")) {
		t.Fatalf("unexpected x entry: %+v", e)
	}
	if e := byID[z.ID]; e.Level != 2 || !e.Volume.Equal(decimal.RequireFromString("80")) || !e.EarnedFromThisPartner.Equal(decimal.RequireFromString("1")) {
		t.Fatalf("unexpected z entry: %+v", e)
	}
	if d.Summary.TotalPartners != 2 || d.Summary.DirectCount != 1 || !d.Summary.TotalEarned.Equal(decimal.RequireFromString("6")) {
		t.Fatalf("unexpected summary: %+v", d.Summary)
	}
}

func TestBuildDownline_AggregateFailureIsPartial(t *testing.T) {
	store, y, x, z := seedThreeLevels(t)
	uc := NewDefaultHierarchyUsecase(failingAggregates{Store: store, sourceUserID: z.OwnerUserID}, nil, 10, 4, nil, nil)

	d, err := uc.BuildDownline(context.Background(), y.ID, true)
	if err != nil {
		t.Fatalf("build must not fail on one aggregate: %v", err)
	}
	for _, e := range d.Entries {
		switch e.Partner.ID {
		case z.ID:
			if !e.AggregateFailed || !e.Volume.IsZero() || !e.EarnedFromThisPartner.IsZero() {
				t.Fatalf("expected zeroed failed entry, got %+v", e)
			}
		case x.ID:
			if e.AggregateFailed || !e.Volume.Equal(decimal.RequireFromString("100")) {
				t.Fatalf("unexpected x entry: %+v", e)
			}
		}
	}
}

func TestBuildDownline_ContextEndedDuringAggregatesIsTransient(t *testing.T) {
	store, y, _, _ := seedThreeLevels(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	uc := NewDefaultHierarchyUsecase(cancellingAggregates{Store: store, cancel: cancel}, nil, 10, 2, nil, nil)

	d, err := uc.BuildDownline(ctx, y.ID, true)
	if d != nil {
		t.Fatalf("expected no downline, got %d entries", len(d.Entries))
	}
	if domain.KindOf(err) != domain.KindTransient {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestBuildDownline_CycleReturnsPartialAndIntegrityError(t *testing.T) {
	store := memory.NewStore()
	a := insertNode(t, store, "a", nil)
	b := insertNode(t, store, "b", a)
	cyclic := extraChildren{Store: store, extra: map[string][]*domain.PartnerNode{b.ID: {a}}}
	uc := NewDefaultHierarchyUsecase(cyclic, nil, 10, 2, nil, nil)

	d, err := uc.BuildDownline(context.Background(), a.ID, false)
	if !errors.Is(err, domain.ErrCycleDetected) {
		t.Fatalf("expected cycle error, got %v", err)
	}
	if d == nil || len(d.Entries) != 1 || d.Entries[0].Partner.ID != b.ID {
		t.Fatalf("expected partial downline with b, got %+v", d)
	}
}

// ---------------------------------------------------------------------------
// Display tree
// ---------------------------------------------------------------------------

func TestBuildDisplayTree_NestsAndCaches(t *testing.T) {
	store, y, x, z := seedThreeLevels(t)
	w := insertNode(t, store, "w", y)
	cache := newCountingCache()
	uc := NewDefaultHierarchyUsecase(store, cache, 10, 2, nil, nil)

	tree, err := uc.BuildDisplayTree(context.Background(), y.ID)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	if tree.Root.Partner.ID != y.ID || len(tree.Root.Children) != 2 {
		t.Fatalf("unexpected root: %+v", tree.Root)
	}
	first := tree.Root.Children[0]
	if first.Partner.ID != x.ID || first.Level != 1 || tree.Root.Children[1].Partner.ID != w.ID {
		t.Fatalf("children must follow creation order, got %+v", tree.Root.Children)
	}
	if len(first.Children) != 1 || first.Children[0].Partner.ID != z.ID || first.Children[0].Level != 2 {
		t.Fatalf("unexpected grandchildren: %+v", first.Children)
	}

	if _, err := uc.BuildDisplayTree(context.Background(), y.ID); err != nil {
		t.Fatalf("second tree: %v", err)
	}
	if cache.puts != 1 {
		t.Fatalf("expected one cache write, got %d", cache.puts)
	}

	uc.InvalidateAbove(context.Background(), z.ID)
	if _, ok, _ := cache.GetTree(context.Background(), y.ID); ok {
		t.Fatal("expected viewer tree to be invalidated")
	}
	if len(cache.invalidated) != 3 {
		t.Fatalf("expected z, x and y invalidated, got %v", cache.invalidated)
	}
}

func TestBuildDisplayTree_DoesNotCacheFlaggedTrees(t *testing.T) {
	store := memory.NewStore()
	a := insertNode(t, store, "a", nil)
	b := insertNode(t, store, "b", a)
	cache := newCountingCache()
	cyclic := extraChildren{Store: store, extra: map[string][]*domain.PartnerNode{b.ID: {a}}}
	uc := NewDefaultHierarchyUsecase(cyclic, cache, 10, 2, nil, nil)

	tree, err := uc.BuildDisplayTree(context.Background(), a.ID)
	if !errors.Is(err, domain.ErrCycleDetected) || tree == nil {
		t.Fatalf("expected partial tree with cycle error, got %+v, %v", tree, err)
	}
	if cache.puts != 0 {
		t.Fatalf("flagged tree must not be cached")
	}
}

func TestBuildDisplayTree_SkipsCacheWhenInvalidatedDuringBuild(t *testing.T) {
	store, y, _, z := seedThreeLevels(t)
	cache := newCountingCache()
	walk := invalidateDuringWalk{Store: store, once: &sync.Once{}}
	uc := NewDefaultHierarchyUsecase(walk, cache, 10, 2, nil, nil)
	walk.invalidate = func() { uc.InvalidateAbove(context.Background(), z.ID) }
	uc.Store = walk

	if _, err := uc.BuildDisplayTree(context.Background(), y.ID); err != nil {
		t.Fatalf("tree: %v", err)
	}
	if cache.puts != 0 {
		t.Fatalf("tree built across an invalidation must not be cached, got %d puts", cache.puts)
	}

	if _, err := uc.BuildDisplayTree(context.Background(), y.ID); err != nil {
		t.Fatalf("second tree: %v", err)
	}
	if cache.puts != 1 {
		t.Fatalf("expected the next clean build to be cached, got %d puts", cache.puts)
	}
}
