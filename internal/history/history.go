// Package history rebuilds the browsable product index from stored media names.
//
// Nothing is persisted: every index is derived from a fresh listing of a bucket's
// folder, so it can never disagree with the store.
package history

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"

	"github.com/scanshelf/scanshelf/internal/logger"
	"github.com/scanshelf/scanshelf/internal/naming"
	"github.com/scanshelf/scanshelf/internal/objectstore"
)

// ProductGroup is every asset of one product in one bucket.
type ProductGroup struct {
	BaseName string               `json:"base_name"`
	Bucket   naming.Bucket        `json:"bucket"`
	Assets   []objectstore.Object `json:"assets"`
	// LastModified is the newest asset modification time, zero if unknown.
	LastModified time.Time `json:"last_modified"`
}

// Build groups objects of one bucket by base name.
//
// Assets inside a group are ordered bare first, then by ascending sequence number,
// then timestamp-named. Groups are ordered newest first, ties by base name.
func Build(bucket naming.Bucket, objects []objectstore.Object) []ProductGroup {
	byBase := make(map[string][]member)
	for _, obj := range objects {
		n := naming.ParseName(obj.Name)
		byBase[n.Base] = append(byBase[n.Base], member{obj: obj, name: n})
	}

	groups := make([]ProductGroup, 0, len(byBase))
	for base, members := range byBase {
		groups = append(groups, newGroup(bucket, base, members))
	}

	sortGroups(groups)
	return groups
}

type member struct {
	obj  objectstore.Object
	name naming.Name
}

func newGroup(bucket naming.Bucket, base string, members []member) ProductGroup {
	sort.SliceStable(members, func(i, j int) bool {
		a, b := members[i].name, members[j].name
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Seq != b.Seq {
			return a.Seq < b.Seq
		}
		return a.Raw < b.Raw
	})

	g := ProductGroup{BaseName: base, Bucket: bucket, Assets: make([]objectstore.Object, 0, len(members))}
	for _, m := range members {
		g.Assets = append(g.Assets, m.obj)
		if m.obj.ModTime.After(g.LastModified) {
			g.LastModified = m.obj.ModTime
		}
	}
	return g
}

func sortGroups(groups []ProductGroup) {
	sort.Slice(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if !a.LastModified.Equal(b.LastModified) {
			return a.LastModified.After(b.LastModified)
		}
		return a.BaseName < b.BaseName
	})
}

// Search returns the groups whose base name contains query, ignoring case.
// An empty query returns every group.
func Search(groups []ProductGroup, query string) []ProductGroup {
	query = strings.TrimSpace(query)
	if query == "" {
		return groups
	}

	fold := cases.Fold()
	needle := fold.String(query)

	var out []ProductGroup
	for _, g := range groups {
		if strings.Contains(fold.String(g.BaseName), needle) {
			out = append(out, g)
		}
	}
	return out
}

// Indexer builds indexes from the live store.
type Indexer struct {
	store  objectstore.Store
	logger *slog.Logger
}

// NewIndexer creates an indexer.
func NewIndexer(store objectstore.Store, log *slog.Logger) *Indexer {
	return &Indexer{store: store, logger: logger.OrDiscard(log)}
}

// Index lists the bucket's folder and groups it.
func (ix *Indexer) Index(ctx context.Context, bucket naming.Bucket) ([]ProductGroup, error) {
	start := time.Now()
	objects, err := ix.store.Query(ctx, bucket.Folder(), "")
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	groups := Build(bucket, objects)
	ix.logger.Debug("index built",
		"bucket", bucket, "assets", len(objects), "products", len(groups), "elapsed", time.Since(start))
	return groups, nil
}

// IndexAll indexes every bucket concurrently. Buckets are never merged.
func (ix *Indexer) IndexAll(ctx context.Context) (map[naming.Bucket][]ProductGroup, error) {
	results := make([][]ProductGroup, len(naming.Buckets))

	g, gctx := errgroup.WithContext(ctx)
	for i, bucket := range naming.Buckets {
		g.Go(func() error {
			groups, err := ix.Index(gctx, bucket)
			if err != nil {
				return err
			}
			results[i] = groups
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[naming.Bucket][]ProductGroup, len(naming.Buckets))
	for i, bucket := range naming.Buckets {
		out[bucket] = results[i]
	}
	return out, nil
}

// Group returns the assets of one product, ordered as in Build. Unlike Build it
// knows the base, so a product whose own code ends in "-<n>" is not split. The
// group is empty, not an error, when the product has no assets.
func (ix *Indexer) Group(ctx context.Context, bucket naming.Bucket, base string) (ProductGroup, error) {
	objects, err := ix.store.Query(ctx, bucket.Folder(), objectstore.EscapeGlob(base)+"*")
	if err != nil {
		return ProductGroup{}, err
	}

	var members []member
	for _, obj := range objects {
		if n, ok := naming.MatchBase(obj.Name, base); ok {
			members = append(members, member{obj: obj, name: n})
		}
	}
	return newGroup(bucket, base, members), nil
}
