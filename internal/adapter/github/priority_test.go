package github

import (
	"strings"
	"testing"

	"github-repo-judge/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTier(t *testing.T) {
	tests := []struct {
		path string
		want int
	}{
		{"README.md", 0},
		{"docs/README.md", 0},
		{"package.json", 0},
		{"Dockerfile", 0},
		{"src/app.py", 0},
		{"src/util.py", 1},
		{"internal/service/x.go", 1},
		{"scripts/run.py", 2},
		{"schema.sql", 3},
		{"config/settings.yaml", 4},
		{"docs/guide.md", 5},
		{"public/index.html", 6},
		{"LICENSE", catchAllTier},
		{"data/blob.xyz", catchAllTier},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Tier(tt.path))
		})
	}
}

func TestExcludedAndSkipped(t *testing.T) {
	assert.True(t, isExcluded("node_modules/react/index.js"))
	assert.True(t, isExcluded("web/.next/cache/x"))
	assert.True(t, isExcluded(".git/config"))
	assert.False(t, isExcluded("src/build_utils.go"))

	assert.True(t, isSkippedFile("yarn.lock"))
	assert.True(t, isSkippedFile("static/app.min.js"))
	assert.True(t, isSkippedFile("img/Logo.PNG"))
	assert.False(t, isSkippedFile("src/main.go"))
}

func TestRankCandidates(t *testing.T) {
	entries := []domain.TreeEntry{
		{Path: "src", Type: domain.EntryDir},
		{Path: "src/big.go", Type: domain.EntryFile, Size: 900},
		{Path: "src/small.go", Type: domain.EntryFile, Size: 90},
		{Path: "README.md", Type: domain.EntryFile, Size: 5000},
		{Path: "huge.json", Type: domain.EntryFile, Size: 10_000_000},
		{Path: "notes.txt", Type: domain.EntryFile, Size: 10},
		{Path: "vendor/lib.go", Type: domain.EntryFile, Size: 1},
	}

	got := rankCandidates(entries, func(p string) string { return "loc:" + p }, 1_000_000)
	require.Len(t, got, 4)

	assert.Equal(t, "README.md", got[0].Path)
	assert.Equal(t, "src/small.go", got[1].Path)
	assert.Equal(t, "src/big.go", got[2].Path)
	assert.Equal(t, "notes.txt", got[3].Path)
	assert.Equal(t, "loc:src/small.go", got[1].Locator)
	assert.Equal(t, "small.go", got[1].Name)
}

func TestComputeStats(t *testing.T) {
	tree := []domain.TreeEntry{
		{Path: "src", Type: domain.EntryDir},
		{Path: "src/a.go", Type: domain.EntryFile},
		{Path: "src/pkg/b.go", Type: domain.EntryFile},
		{Path: "Makefile", Type: domain.EntryFile},
	}
	files := []domain.FetchedFileContent{
		{Path: "src/a.go", Content: "ab"},
		{Path: "Makefile", Content: "héé", Truncated: true},
	}

	stats := ComputeStats(tree, files)
	assert.Equal(t, 3, stats.TotalFiles)
	assert.Equal(t, 2, stats.TotalDirs)
	assert.Equal(t, []string{"src", "src/pkg"}, stats.Directories)
	assert.Equal(t, map[string]int{".go": 2, "(none)": 1}, stats.ExtensionCounts)
	assert.Equal(t, 2, stats.FetchedFiles)
	assert.Equal(t, 5, stats.TotalChars)
	assert.Equal(t, 1, stats.TruncatedFiles)
}

func TestRenderContext_GroupsByDirectory(t *testing.T) {
	snap := &domain.RepoSnapshot{
		Ref:      domain.RepoRef{Owner: "o", Name: "r"},
		Metadata: domain.RepoMetadata{Description: "demo", Contributors: []string{"alice"}},
		Files: []domain.FetchedFileContent{
			{Path: "src/z.go", Content: "package src\n", Lines: 1},
			{Path: "README.md", Content: "# r", Lines: 1},
			{Path: "lib/a.py", Content: "x", Lines: 1, Truncated: true, OriginalSize: 10},
			{Path: "src/a.go", Content: "package src\n", Lines: 1},
		},
	}

	out := RenderContext(snap)
	assert.Contains(t, out, "Contributors: alice")
	assert.Contains(t, out, "[... truncated: showing 1 of 10 characters]")

	root := strings.Index(out, "## Directory: (root)")
	lib := strings.Index(out, "## Directory: lib")
	src := strings.Index(out, "## Directory: src")
	assert.True(t, root < lib && lib < src, "root first, then alphabetical")

	z := strings.Index(out, "FILE: src/z.go")
	a := strings.Index(out, "FILE: src/a.go")
	assert.True(t, z < a, "rank order kept inside a directory")
}

