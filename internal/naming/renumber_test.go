package naming

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanshelf/scanshelf/internal/objectstore"
)

func TestPlanRenumber(t *testing.T) {
	tests := []struct {
		name  string
		names []string
		want  []Rename
	}{
		{
			name:  "dense group is a no-op",
			names: []string{"A.jpg", "A-1.jpg", "A-2.jpg"},
			want:  nil,
		},
		{
			name:  "gap closed",
			names: []string{"A.jpg", "A-3.jpg"},
			want:  []Rename{{From: "A-3.jpg", To: "A-1.jpg"}},
		},
		{
			name:  "order preserved",
			names: []string{"A-7.jpg", "A-2.jpg", "A-4.jpg"},
			want: []Rename{
				{From: "A-2.jpg", To: "A-1.jpg"},
				{From: "A-4.jpg", To: "A-2.jpg"},
				{From: "A-7.jpg", To: "A-3.jpg"},
			},
		},
		{
			name:  "fallback names go last",
			names: []string{"A.jpg", "A-t200.jpg", "A-2.jpg", "A-t100.jpg"},
			want: []Rename{
				{From: "A-2.jpg", To: "A-1.jpg"},
				{From: "A-t100.jpg", To: "A-2.jpg"},
				{From: "A-t200.jpg", To: "A-3.jpg"},
			},
		},
		{
			name:  "other products untouched",
			names: []string{"A.jpg", "A-B.jpg", "A-B-1.jpg", "AB-3.jpg", "A-1.png"},
			want:  nil,
		},
		{
			name:  "extensions share one sequence",
			names: []string{"A.jpg", "A-2.png", "A-5.jpg"},
			want: []Rename{
				{From: "A-2.png", To: "A-1.png"},
				{From: "A-5.jpg", To: "A-2.jpg"},
			},
		},
		{
			name:  "second bare asset and duplicate number",
			names: []string{"A.jpg", "A.png", "A-1.jpg", "A-1.png"},
			want: []Rename{
				{From: "A.png", To: "A-3.png"},
				{From: "A-1.png", To: "A-2.png"},
			},
		},
		{
			name:  "upward moves run highest first",
			names: []string{"A-1.jpg", "A-1.png", "A-2.png"},
			want: []Rename{
				{From: "A-2.png", To: "A-3.png"},
				{From: "A-1.png", To: "A-2.png"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlanRenumber("A", tt.names))
		})
	}
}

func TestPlanRenumber_Idempotent(t *testing.T) {
	tests := [][]string{
		{"A.jpg", "A-2.jpg", "A-9.jpg", "A-t5.jpg"},
		{"A.jpg", "A.png", "A-1.jpg", "A-1.png", "A-4.png", "A-t1.jpg"},
		{"A-3.png", "A-3.jpg", "A-2.jpg", "A-2.png", "A-7.jpg"},
	}

	for _, names := range tests {
		renames := PlanRenumber("A", names)
		require.NotEmpty(t, renames)

		after := applyRenames(t, names, renames)
		assert.Empty(t, PlanRenumber("A", after), "names %v", names)

		bare, seqs := 0, make(map[int]bool)
		for _, name := range after {
			n, ok := MatchBase(name, "A")
			require.True(t, ok)
			switch n.Kind {
			case KindBare:
				bare++
			case KindNumbered:
				assert.False(t, seqs[n.Seq], "number %d used twice in %v", n.Seq, after)
				seqs[n.Seq] = true
			default:
				t.Errorf("unexpected %s name %s", n.Kind, name)
			}
		}
		assert.LessOrEqual(t, bare, 1)
		for i := 1; i <= len(seqs); i++ {
			assert.True(t, seqs[i], "gap at %d in %v", i, after)
		}
	}
}

// applyRenames moves names in order, failing if a target is still taken.
func applyRenames(t *testing.T, names []string, renames []Rename) []string {
	t.Helper()
	set := make(map[string]bool)
	for _, n := range names {
		set[n] = true
	}
	for _, r := range renames {
		require.True(t, set[r.From], "source %s missing", r.From)
		require.False(t, set[r.To], "target %s still taken", r.To)
		delete(set, r.From)
		set[r.To] = true
	}
	out := make([]string, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	return out
}

func seed(t *testing.T, s objectstore.Store, folder string, names ...string) map[string]objectstore.Object {
	t.Helper()
	objs := make(map[string]objectstore.Object)
	for _, n := range names {
		obj, err := s.Insert(context.Background(), n, "image/jpeg", folder)
		require.NoError(t, err)
		w, err := s.OpenWrite(context.Background(), obj.Handle)
		require.NoError(t, err)
		_, err = io.WriteString(w, "content of "+n)
		require.NoError(t, err)
		require.NoError(t, w.Close())
		objs[n] = obj
	}
	return objs
}

func listNames(t *testing.T, s objectstore.Store, folder string) []string {
	t.Helper()
	objs, err := s.Query(context.Background(), folder, "")
	require.NoError(t, err)
	names := make([]string, 0, len(objs))
	for _, o := range objs {
		names = append(names, o.Name)
	}
	return names
}

func content(t *testing.T, s objectstore.Store, folder, name string) string {
	t.Helper()
	objs, err := s.Query(context.Background(), folder, objectstore.EscapeGlob(name))
	require.NoError(t, err)
	require.Len(t, objs, 1)
	r, err := s.OpenRead(context.Background(), objs[0].Handle)
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func TestRenumberer_ClosesGapAfterDelete(t *testing.T) {
	mem := objectstore.NewMemory()
	objs := seed(t, mem, FolderPrimary, "base.jpg", "base-1.jpg", "base-3.jpg")
	require.NoError(t, mem.Delete(context.Background(), objs["base-1.jpg"].Handle))

	res, err := NewRenumberer(mem, nil).Renumber(context.Background(), BucketPrimary, "base")
	require.NoError(t, err)

	assert.Equal(t, []Rename{{From: "base-3.jpg", To: "base-1.jpg"}}, res.Renamed)
	assert.Empty(t, res.Failed)
	assert.Equal(t, []string{"base-1.jpg", "base.jpg"}, listNames(t, mem, FolderPrimary))
	assert.Equal(t, "content of base-3.jpg", content(t, mem, FolderPrimary, "base-1.jpg"))
}

func TestRenumberer_SecondPassIsNoop(t *testing.T) {
	mem := objectstore.NewMemory()
	seed(t, mem, FolderSecondary, "SKU.jpg", "SKU-4.jpg", "SKU-6.png")
	r := NewRenumberer(mem, nil)

	first, err := r.Renumber(context.Background(), BucketSecondary, "SKU")
	require.NoError(t, err)
	assert.Len(t, first.Renamed, 2)

	second, err := r.Renumber(context.Background(), BucketSecondary, "SKU")
	require.NoError(t, err)
	assert.Empty(t, second.Renamed)
	assert.Equal(t, []string{"SKU-1.jpg", "SKU-2.png", "SKU.jpg"}, listNames(t, mem, FolderSecondary))
}

func TestRenumberer_FailedRenameKeepsOldName(t *testing.T) {
	mem := objectstore.NewMemory()
	seed(t, mem, FolderPrimary, "A-2.jpg", "A-5.jpg")
	fs := &faultyStore{Store: mem, copyFail: map[string]bool{"A-1.jpg": true}}

	res, err := NewRenumberer(fs, nil).Renumber(context.Background(), BucketPrimary, "A")
	require.NoError(t, err)

	// A-2 cannot move, so A-5 finds A-2 still taken and is skipped too.
	assert.Empty(t, res.Renamed)
	assert.Len(t, res.Failed, 2)
	assert.Equal(t, []string{"A-2.jpg", "A-5.jpg"}, listNames(t, mem, FolderPrimary))

	// The next healthy pass finishes the job.
	res, err = NewRenumberer(mem, nil).Renumber(context.Background(), BucketPrimary, "A")
	require.NoError(t, err)
	assert.Len(t, res.Renamed, 2)
	assert.Equal(t, []string{"A-1.jpg", "A-2.jpg"}, listNames(t, mem, FolderPrimary))
	assert.Equal(t, "content of A-5.jpg", content(t, mem, FolderPrimary, "A-2.jpg"))
}

func TestRenumberer_ListFailure(t *testing.T) {
	fs := &faultyStore{Store: objectstore.NewMemory(), queryErr: objectstore.ErrUnavailable}

	_, err := NewRenumberer(fs, nil).Renumber(context.Background(), BucketPrimary, "A")
	assert.ErrorIs(t, err, objectstore.ErrUnavailable)
}

func TestRenumberer_LocalFS(t *testing.T) {
	local, err := objectstore.NewLocalFS(t.TempDir(), nil)
	require.NoError(t, err)
	seed(t, local, FolderPrimary, "123.jpg", "123-2.jpg", "123-3.jpg", "1234.jpg")

	res, err := NewRenumberer(local, nil).Renumber(context.Background(), BucketPrimary, "123")
	require.NoError(t, err)

	assert.Len(t, res.Renamed, 2)
	assert.Equal(t, []string{"123-1.jpg", "123-2.jpg", "123.jpg", "1234.jpg"}, listNames(t, local, FolderPrimary))
	assert.Equal(t, "content of 123-3.jpg", content(t, local, FolderPrimary, "123-2.jpg"))
}

func TestRenumberer_SourceDeleteFailure(t *testing.T) {
	mem := objectstore.NewMemory()
	objs := seed(t, mem, FolderPrimary, "A.jpg", "A-3.jpg")
	fs := &faultyStore{Store: mem, deleteFail: map[objectstore.Handle]bool{objs["A-3.jpg"].Handle: true}}

	res, err := NewRenumberer(fs, nil).Renumber(context.Background(), BucketPrimary, "A")
	require.NoError(t, err)

	assert.Equal(t, []Rename{{From: "A-3.jpg", To: "A-1.jpg"}}, res.Failed)
	assert.Equal(t, []string{"A-1.jpg", "A-3.jpg", "A.jpg"}, listNames(t, mem, FolderPrimary))
}
