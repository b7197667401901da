// Copyright 2025 Erst Users
// SPDX-License-Identifier: Apache-2.0

package transcode

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dotandev/abcmerge/internal/abc"
	"github.com/dotandev/abcmerge/internal/cache"
	"github.com/dotandev/abcmerge/internal/config"
	"github.com/dotandev/abcmerge/internal/db"
	"github.com/dotandev/abcmerge/internal/errors"
	"github.com/dotandev/abcmerge/internal/namefilter"
	"github.com/dotandev/abcmerge/internal/swf"
)

// classBlock builds an ABC block defining the empty class pkg:name.
func classBlock(t *testing.T, pkg, name string) []byte {
	t.Helper()
	b := abc.NewBuilder()
	object := b.QName(b.PackageNamespace(""), "Object")
	cls := b.PackageQName(pkg, name)

	iinit := b.AddMethod(abc.MethodInfo{})
	cinit := b.AddMethod(abc.MethodInfo{})
	sinit := b.AddMethod(abc.MethodInfo{})
	idx := b.AddClass(abc.Instance{Name: cls, SuperName: object, Flags: abc.InstanceSealed, Init: iinit}, abc.Class{Init: cinit})
	b.AddScript(abc.Script{Init: sinit, Traits: []abc.Trait{{Name: cls, Kind: abc.TraitClass, SlotID: 1, Index: idx}}})

	ret := abc.NewCode().Op(abc.OpGetLocal0).Op(abc.OpPushScope).Op(abc.OpDebugLine, 7).Op(abc.OpReturnVoid).MustAssemble()
	install := abc.NewCode().
		Op(abc.OpGetLocal0).Op(abc.OpPushScope).
		Op(abc.OpGetScopeObject, 0).
		Op(abc.OpGetLex, object).Op(abc.OpPushScope).
		Op(abc.OpGetLex, object).Op(abc.OpNewClass, idx).
		Op(abc.OpPopScope).
		Op(abc.OpInitProperty, cls).
		Op(abc.OpReturnVoid).MustAssemble()
	b.AddBody(abc.MethodBody{Method: iinit, MaxStack: 1, LocalCount: 1, MaxScopeDepth: 1, Code: ret})
	b.AddBody(abc.MethodBody{Method: cinit, MaxStack: 1, LocalCount: 1, MaxScopeDepth: 1, Code: ret})
	b.AddBody(abc.MethodBody{Method: sinit, MaxStack: 2, LocalCount: 1, MaxScopeDepth: 2, Code: install})
	return b.Bytes()
}

// writeMovie writes a movie with one DoABC2 fragment per class, plus any
// extra tags, and returns its path.
func writeMovie(t *testing.T, dir, name string, classes []string, extra ...[]byte) string {
	t.Helper()
	tags := swf.AppendTag(nil, swf.TagFileAttributes, []byte{swf.AttrActionScript3, 0, 0, 0})
	for _, c := range classes {
		pkg, cls, _ := strings.Cut(c, ":")
		tags = swf.AppendDoABC2(tags, swf.Fragment{Flags: swf.DoABCLazyInitialize, Name: c, ABC: classBlock(t, pkg, cls)})
	}
	for _, e := range extra {
		tags = append(tags, e...)
	}
	tags = swf.AppendTag(tags, swf.TagShowFrame, nil)
	tags = swf.AppendTag(tags, swf.TagEnd, nil)
	data, err := swf.Encode(swf.Header{Version: 10, FrameRate: 24 << 8, FrameCount: 1}, tags, false)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func loadMovie(t *testing.T, path string) *swf.Movie {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	m, err := swf.Parse(data)
	require.NoError(t, err)
	return m
}

func fragmentNames(t *testing.T, m *swf.Movie) []string {
	t.Helper()
	frags, err := m.Fragments()
	require.NoError(t, err)
	var names []string
	for _, f := range frags {
		names = append(names, f.Name)
	}
	return names
}

func filter(t *testing.T, include, exclude []string) *namefilter.Filter {
	t.Helper()
	f, err := namefilter.New(include, exclude)
	require.NoError(t, err)
	return f
}

func TestFilter(t *testing.T) {
	dir := t.TempDir()
	in := writeMovie(t, dir, "game.swf", []string{"game:Main", "debug:Console"})
	out := filepath.Join(dir, "out.swf")

	rep, err := New(nil).Filter(context.Background(), in, out, filter(t, nil, []string{"debug/**"}))
	require.NoError(t, err)

	assert.Equal(t, OpFilter, rep.Op)
	assert.False(t, rep.CacheHit)
	assert.Equal(t, []string{"game:Main"}, rep.Result.Kept)
	assert.Equal(t, []string{"debug:Console"}, rep.Result.Rejected)
	assert.Equal(t, 2, rep.Result.Stats.InstructionsRemoved, "debugline stripped from iinit and cinit")

	m := loadMovie(t, out)
	assert.Equal(t, []string{"game:Main"}, fragmentNames(t, m))
	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, int64(rep.OutputBytes), info.Size())
}

func TestMergeInputKinds(t *testing.T) {
	dir := t.TempDir()
	first := writeMovie(t, dir, "shell.swf", []string{"app:Shell"})
	lib := filepath.Join(dir, "widgets.abc")
	require.NoError(t, os.WriteFile(lib, classBlock(t, "ui", "Button"), 0644))

	t.Run("movie output", func(t *testing.T) {
		out := filepath.Join(dir, "merged.swf")
		rep, err := New(nil).Merge(context.Background(), []string{first, lib}, out, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"app:Shell", "widgets"}, rep.Result.Kept)
		assert.Equal(t, []string{"app:Shell"}, fragmentNames(t, loadMovie(t, out)))
	})

	t.Run("abc output", func(t *testing.T) {
		out := filepath.Join(dir, "merged.abc")
		_, err := New(nil).Merge(context.Background(), []string{first, lib}, out, nil)
		require.NoError(t, err)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		d, err := abc.NewDecoder("merged", data)
		require.NoError(t, err)
		names, err := d.ClassNames()
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"app:Shell", "ui:Button"}, names)
	})
}

func TestInject(t *testing.T) {
	dir := t.TempDir()
	in := writeMovie(t, dir, "game.swf", []string{"game:Boot", "game:Main"})
	payload := filepath.Join(dir, "patch.abc")
	require.NoError(t, os.WriteFile(payload, classBlock(t, "patch", "Hook"), 0644))
	out := filepath.Join(dir, "out.abc")

	tr := New(nil)
	rep, err := tr.Inject(context.Background(), in, payload, "game.Main", out, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"patch"}, rep.Result.Injected)
	assert.Equal(t, 3, rep.Result.Stats.Fragments)

	_, err = tr.Inject(context.Background(), in, payload, "game.Missing", out, nil)
	assert.ErrorIs(t, err, errors.ErrAnchorNotFound)

	_, err = tr.Inject(context.Background(), in, payload, "", out, nil)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestInjectMoviePayload(t *testing.T) {
	dir := t.TempDir()
	in := writeMovie(t, dir, "game.swf", []string{"game:Main"})
	payload := writeMovie(t, dir, "extras.swf", []string{"x:One", "x:Two"})
	out := filepath.Join(dir, "out.swf")

	rep, err := New(nil).Inject(context.Background(), in, payload, "game:Main", out, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"extras"}, rep.Result.Injected)
	assert.Equal(t, []string{"extras"}, fragmentNames(t, loadMovie(t, out)), "merged tag is named after the first fragment")
}

func TestExtractSymbol(t *testing.T) {
	dir := t.TempDir()
	// DefineShape 1 with an empty bounding box and no records.
	shape := swf.AppendTag(nil, swf.TagDefineShape, []byte{1, 0, 0, 0, 0, 0, 0})
	exports := swf.AppendSymbols(nil, swf.TagExportAssets, []swf.Symbol{{ID: 1, Name: "Logo"}})
	in := writeMovie(t, dir, "assets.swf", nil, shape, exports)
	out := filepath.Join(dir, "logo.swf")

	tr := New(nil)
	rep, err := tr.ExtractSymbol(context.Background(), in, "Logo", out)
	require.NoError(t, err)
	assert.Equal(t, OpExtract, rep.Op)

	m := loadMovie(t, out)
	assert.Equal(t, uint16(1), m.Header.FrameCount)
	assert.GreaterOrEqual(t, m.Find(swf.TagDefineShape), 0)
	assert.GreaterOrEqual(t, m.Find(swf.TagPlaceObject2), 0)

	_, err = tr.ExtractSymbol(context.Background(), in, "Missing", out)
	assert.ErrorIs(t, err, errors.ErrSymbolNotFound)
}

func TestGenerateClassPool(t *testing.T) {
	out := filepath.Join(t.TempDir(), "pool.swf")
	rep, err := New(nil).GenerateClassPool(context.Background(), swf.PoolImage, 3, out)
	require.NoError(t, err)
	assert.Equal(t, OpClassPool, rep.Op)

	m := loadMovie(t, out)
	i := m.Find(swf.TagSymbolClass)
	require.GreaterOrEqual(t, i, 0)
	syms, err := swf.ParseSymbols(m.Body(m.Tags[i]))
	require.NoError(t, err)
	assert.Len(t, syms, 3)
	assert.Equal(t, "_img3", syms[2].Name)

	_, err = New(nil).GenerateClassPool(context.Background(), swf.PoolImage, 0, out)
	assert.ErrorIs(t, err, errors.ErrValidation)
}

func TestFailureLeavesOutputUntouched(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(in, []byte("not a movie"), 0644))
	out := filepath.Join(dir, "out.swf")
	require.NoError(t, os.WriteFile(out, []byte("previous"), 0644))

	_, err := New(nil).Filter(context.Background(), in, out, nil)
	assert.ErrorIs(t, err, errors.ErrUnknownFormat)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "previous", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary files left behind")
}

func TestCancelledContext(t *testing.T) {
	dir := t.TempDir()
	in := writeMovie(t, dir, "game.swf", []string{"game:Main"})
	out := filepath.Join(dir, "out.swf")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).Filter(ctx, in, out, nil)
	assert.True(t, stderrors.Is(err, context.Canceled))
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestCacheAndHistory(t *testing.T) {
	dir := t.TempDir()
	in := writeMovie(t, dir, "game.swf", []string{"game:Main", "debug:Console"})
	out := filepath.Join(dir, "out.swf")

	store, err := db.Open(filepath.Join(dir, "history.db"))
	require.NoError(t, err)
	defer store.Close()
	manager := cache.NewManager(filepath.Join(dir, "cache"), cache.DefaultConfig())
	tr := New(config.DefaultConfig(), WithCache(manager), WithHistory(store))
	ctx := context.Background()

	first, err := tr.Filter(ctx, in, out, nil)
	require.NoError(t, err)
	assert.False(t, first.CacheHit)
	want, err := os.ReadFile(out)
	require.NoError(t, err)

	require.NoError(t, os.Remove(out))
	second, err := tr.Filter(ctx, in, out, nil)
	require.NoError(t, err)
	assert.True(t, second.CacheHit)
	got, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	third, err := tr.Filter(ctx, in, out, filter(t, nil, []string{"debug/*"}))
	require.NoError(t, err)
	assert.False(t, third.CacheHit, "a different filter is a different request")

	_, err = tr.Filter(ctx, filepath.Join(dir, "missing.swf"), out, nil)
	require.Error(t, err)

	runs, err := store.SearchRuns(db.SearchParams{})
	require.NoError(t, err)
	require.Len(t, runs, 4)
	assert.Equal(t, db.StatusFailed, runs[0].Status)
	assert.Contains(t, runs[0].ErrorMsg, "read input")
	hits := 0
	for _, r := range runs[1:] {
		assert.Equal(t, db.StatusOK, r.Status)
		assert.Equal(t, OpFilter, r.Op)
		assert.Positive(t, r.OutputBytes)
		if r.CacheHit {
			hits++
		}
	}
	assert.Equal(t, 1, hits)
}

func TestCacheKeepsFragmentNames(t *testing.T) {
	dir := t.TempDir()
	block := classBlock(t, "ui", "Button")
	alpha := filepath.Join(dir, "alpha.abc")
	beta := filepath.Join(dir, "beta.abc")
	require.NoError(t, os.WriteFile(alpha, block, 0644))
	require.NoError(t, os.WriteFile(beta, block, 0644))

	manager := cache.NewManager(filepath.Join(dir, "cache"), cache.DefaultConfig())
	tr := New(config.DefaultConfig(), WithCache(manager))
	ctx := context.Background()

	out := filepath.Join(dir, "alpha.swf")
	rep, err := tr.Merge(ctx, []string{alpha}, out, nil)
	require.NoError(t, err)
	assert.False(t, rep.CacheHit)
	assert.Equal(t, []string{"alpha"}, fragmentNames(t, loadMovie(t, out)))

	out = filepath.Join(dir, "beta.swf")
	rep, err = tr.Merge(ctx, []string{beta}, out, nil)
	require.NoError(t, err)
	assert.False(t, rep.CacheHit, "same bytes under another name is another fragment")
	assert.Equal(t, []string{"beta"}, fragmentNames(t, loadMovie(t, out)))

	// The name also decides what a filter keeps.
	rep, err = tr.Merge(ctx, []string{beta}, filepath.Join(dir, "kept.abc"), filter(t, []string{"beta"}, nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"beta"}, rep.Result.Kept)

	rep, err = tr.Merge(ctx, []string{beta}, filepath.Join(dir, "again.swf"), nil)
	require.NoError(t, err)
	assert.True(t, rep.CacheHit)
}

func TestWithOptions(t *testing.T) {
	dir := t.TempDir()
	in := writeMovie(t, dir, "game.swf", []string{"game:Main"})
	out := filepath.Join(dir, "out.swf")

	opts := swf.DefaultOptions()
	opts.ABC.StripDebug = false
	opts.Compress = true
	rep, err := New(nil, WithOptions(opts)).Filter(context.Background(), in, out, nil)
	require.NoError(t, err)
	assert.Zero(t, rep.Result.Stats.InstructionsRemoved)
	assert.True(t, loadMovie(t, out).Compressed)
}

func TestDump(t *testing.T) {
	dir := t.TempDir()
	in := writeMovie(t, dir, "game.swf", []string{"game:Main", "game:Util"})

	listings, err := Dump(context.Background(), in, abc.Style{})
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "game:Main", listings[0].Name)
	assert.Contains(t, listings[0].Text, "class 0 game:Main")
	assert.Contains(t, listings[1].Text, "debugline")

	bare := filepath.Join(dir, "util.abc")
	require.NoError(t, os.WriteFile(bare, classBlock(t, "", "Util"), 0644))
	listings, err = Dump(context.Background(), bare, abc.Style{})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "util", listings[0].Name)
}

func TestWantsABC(t *testing.T) {
	assert.True(t, WantsABC("out.abc"))
	assert.True(t, WantsABC("dir/OUT.ABC"))
	assert.False(t, WantsABC("out.swf"))
	assert.False(t, WantsABC("abc"))
}

func TestValidation(t *testing.T) {
	tr := New(nil)
	_, err := tr.Merge(context.Background(), nil, "out.swf", nil)
	assert.ErrorIs(t, err, errors.ErrValidation)
	_, err = tr.ExtractSymbol(context.Background(), "in.swf", "", "out.swf")
	assert.ErrorIs(t, err, errors.ErrValidation)
	_, err = tr.Filter(context.Background(), "in.swf", "", nil)
	assert.ErrorIs(t, err, errors.ErrValidation)
}
