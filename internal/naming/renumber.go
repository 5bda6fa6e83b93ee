package naming

import (
	"context"
	"log/slog"
	"path"
	"slices"
	"sort"

	domainerrors "github.com/scanshelf/scanshelf/internal/errors"
	"github.com/scanshelf/scanshelf/internal/logger"
	"github.com/scanshelf/scanshelf/internal/objectstore"
)

// Rename moves one asset to a new name.
type Rename struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// PlanRenumber computes the renames that make base's sequence dense. The
// sequence spans every extension and each asset keeps its own extension.
//
// The bare asset keeps its name. Numbered assets, in ascending order of their
// current number, become base-1..base-k. A second bare asset, left over from
// before the sequence was shared, and timestamp-named assets follow in name
// order. A dense group yields no renames.
//
// Renames are returned in the order they must be applied so none targets a name
// still held by an asset yet to move: moves to a lower number ascending, then
// moves to a higher number descending. Higher targets only occur when two
// extensions hold the same number.
func PlanRenumber(base string, names []string) []Rename {
	var bare, numbered, rest []Name
	for _, raw := range names {
		n, ok := MatchBase(raw, base)
		if !ok {
			continue
		}
		switch n.Kind {
		case KindBare:
			bare = append(bare, n)
		case KindNumbered:
			numbered = append(numbered, n)
		case KindFallback:
			rest = append(rest, n)
		}
	}

	sort.SliceStable(numbered, func(i, j int) bool {
		if numbered[i].Seq != numbered[j].Seq {
			return numbered[i].Seq < numbered[j].Seq
		}
		return numbered[i].Raw < numbered[j].Raw
	})
	sort.SliceStable(bare, func(i, j int) bool { return bare[i].Raw < bare[j].Raw })
	if len(bare) > 1 {
		rest = append(rest, bare[1:]...)
	}
	sort.SliceStable(rest, func(i, j int) bool { return rest[i].Raw < rest[j].Raw })

	queue := make([]Name, 0, len(numbered)+len(rest))
	queue = append(queue, numbered...)
	queue = append(queue, rest...)

	var down, up []Rename
	for i, n := range queue {
		seq := i + 1
		target := SeqName(base, n.Ext, seq)
		if n.Raw == target {
			continue
		}
		if n.Kind == KindNumbered && n.Seq < seq {
			up = append(up, Rename{From: n.Raw, To: target})
		} else {
			down = append(down, Rename{From: n.Raw, To: target})
		}
	}
	slices.Reverse(up)
	return append(down, up...)
}

// RenumberResult reports a renumbering pass.
type RenumberResult struct {
	Renamed []Rename `json:"renamed"`
	Failed  []Rename `json:"failed,omitempty"`
}

// Renumberer applies PlanRenumber against the store.
type Renumberer struct {
	store  objectstore.Store
	logger *slog.Logger
}

// NewRenumberer creates a renumberer.
func NewRenumberer(store objectstore.Store, log *slog.Logger) *Renumberer {
	return &Renumberer{store: store, logger: logger.OrDiscard(log)}
}

// Renumber closes the gaps in base's sequence.
//
// Each rename is insert target, copy content, delete source. A rename that fails
// is logged and skipped; the asset keeps its old name for the next pass. Only the
// initial listing can fail the whole pass.
func (r *Renumberer) Renumber(ctx context.Context, bucket Bucket, base string) (RenumberResult, error) {
	folder := bucket.Folder()
	objects, err := r.store.Query(ctx, folder, objectstore.EscapeGlob(base)+"*")
	if err != nil {
		return RenumberResult{}, storeFailure(ctx, "list "+base, err)
	}

	byName := make(map[string]objectstore.Object, len(objects))
	names := make([]string, 0, len(objects))
	for _, obj := range objects {
		if _, ok := MatchBase(obj.Name, base); !ok {
			continue
		}
		byName[obj.Name] = obj
		names = append(names, obj.Name)
	}

	result := RenumberResult{}
	for _, rn := range PlanRenumber(base, names) {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := r.rename(ctx, folder, byName[rn.From], rn.To); err != nil {
			r.logger.Warn("rename failed, keeping old name",
				"folder", folder, "from", rn.From, "to", rn.To, "error", err)
			result.Failed = append(result.Failed, rn)
			continue
		}
		result.Renamed = append(result.Renamed, rn)
	}

	if len(result.Renamed) > 0 || len(result.Failed) > 0 {
		r.logger.Info("renumbered product",
			"folder", folder, "base", base,
			"renamed", len(result.Renamed), "failed", len(result.Failed))
	}
	return result, nil
}

func (r *Renumberer) rename(ctx context.Context, folder string, src objectstore.Object, to string) error {
	mimeType := src.MimeType
	if mimeType == "" {
		mimeType = mimeTypeFor(to)
	}

	dst, err := r.store.Insert(ctx, to, mimeType, folder)
	if err != nil {
		return err
	}

	if _, err := objectstore.Copy(ctx, r.store, src.Handle, dst.Handle); err != nil {
		if delErr := r.store.Delete(ctx, dst.Handle); delErr != nil && !domainerrors.Is(delErr, objectstore.ErrNotFound) {
			r.logger.Error("failed to remove partial copy", "name", to, "error", delErr)
		}
		return err
	}

	if err := r.store.Delete(ctx, src.Handle); err != nil {
		// The copy stays: both names now hold the content.
		return err
	}
	return nil
}

func mimeTypeFor(name string) string {
	switch path.Ext(name) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	default:
		return "application/octet-stream"
	}
}
