package github

import (
	"path"
	"sort"
	"strings"

	"github-repo-judge/internal/domain"
)

// Directories never worth reading: VCS metadata, dependency caches, build
// output, virtual environments and editor state.
var excludedDirs = toSet(
	".git", ".hg", ".svn",
	"node_modules", "bower_components", "vendor", "Pods", ".dart_tool", ".gradle",
	"dist", "build", "out", "target", ".next", ".nuxt", ".output", "coverage",
	"__pycache__", ".pytest_cache", ".mypy_cache", ".tox", ".venv", "venv", "env", "site-packages",
	".idea", ".vscode", ".cache",
)

// Files that carry no signal for a reviewer even though they are text.
var skippedNames = toSet(
	"package-lock.json", "yarn.lock", "pnpm-lock.yaml", "poetry.lock", "pipfile.lock",
	"cargo.lock", "go.sum", "composer.lock", "gemfile.lock", "pubspec.lock", ".ds_store",
)

var binaryExts = toSet(
	".png", ".jpg", ".jpeg", ".gif", ".bmp", ".ico", ".webp", ".svg", ".psd",
	".pdf", ".zip", ".gz", ".tgz", ".tar", ".rar", ".7z", ".jar", ".war", ".apk", ".ipa",
	".exe", ".dll", ".so", ".dylib", ".o", ".a", ".class", ".pyc", ".wasm", ".bin",
	".woff", ".woff2", ".ttf", ".otf", ".eot",
	".mp3", ".mp4", ".wav", ".mov", ".avi", ".webm", ".ogg",
	".db", ".sqlite", ".sqlite3", ".pkl", ".pt", ".pth", ".h5", ".onnx", ".npy", ".npz", ".parquet",
)

// Directories whose sources rank one tier above the same extension elsewhere.
var coreDirs = toSet(
	"src", "app", "lib", "api", "routes", "server", "backend", "frontend", "core",
	"services", "controllers", "models", "components", "pages", "handlers",
	"internal", "cmd", "pkg",
)

type matchKind int

const (
	byName matchKind = iota
	byExt
)

// tierRule maps a filename or extension to a tier. coreTier applies when the
// file sits under one of coreDirs.
type tierRule struct {
	kind     matchKind
	keys     []string
	tier     int
	coreTier int
}

// catchAllTier ranks anything no rule recognises.
const catchAllTier = 7

// Evaluated top to bottom; the first match wins.
var tierTable = []tierRule{
	{byName, []string{
		"readme", "readme.md", "readme.rst", "readme.txt",
		"package.json", "requirements.txt", "pyproject.toml", "setup.py", "go.mod", "cargo.toml",
		"pom.xml", "build.gradle", "pubspec.yaml", "dockerfile", "docker-compose.yml", "docker-compose.yaml",
		"makefile", "main.py", "app.py", "manage.py", "main.go", "main.rs", "index.js", "index.ts",
		"main.js", "main.ts", "app.js", "app.ts", "app.tsx", "server.js", "server.ts",
	}, 0, 0},
	{byExt, []string{
		".py", ".js", ".ts", ".tsx", ".jsx", ".go", ".rs", ".java", ".kt", ".swift", ".dart",
		".c", ".cc", ".cpp", ".cs", ".rb", ".php", ".vue", ".svelte", ".ipynb",
	}, 2, 1},
	{byExt, []string{
		".h", ".hpp", ".scala", ".sql", ".sh", ".graphql", ".proto", ".m", ".lua", ".r", ".ex", ".exs",
	}, 3, 3},
	{byExt, []string{".json", ".yaml", ".yml", ".toml", ".ini", ".cfg", ".xml", ".gradle", ".properties"}, 4, 4},
	{byExt, []string{".md", ".rst", ".txt"}, 5, 5},
	{byExt, []string{".html", ".htm", ".css", ".scss", ".sass", ".less"}, 6, 6},
}

type compiledRule struct {
	keys     map[string]struct{}
	kind     matchKind
	tier     int
	coreTier int
}

var compiledTiers = func() []compiledRule {
	out := make([]compiledRule, len(tierTable))
	for i, r := range tierTable {
		out[i] = compiledRule{keys: toSet(r.keys...), kind: r.kind, tier: r.tier, coreTier: r.coreTier}
	}
	return out
}()

func toSet(keys ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}

// isExcluded reports whether any segment of p is an excluded directory.
func isExcluded(p string) bool {
	for _, seg := range strings.Split(p, "/") {
		if _, ok := excludedDirs[seg]; ok {
			return true
		}
	}
	return false
}

// isSkippedFile rejects lock files, binaries and minified bundles.
func isSkippedFile(p string) bool {
	name := strings.ToLower(path.Base(p))
	if _, ok := skippedNames[name]; ok {
		return true
	}
	if strings.HasSuffix(name, ".min.js") || strings.HasSuffix(name, ".min.css") {
		return true
	}
	_, ok := binaryExts[path.Ext(name)]
	return ok
}

func inCoreDir(p string) bool {
	dir := path.Dir(p)
	if dir == "." {
		return false
	}
	for _, seg := range strings.Split(dir, "/") {
		if _, ok := coreDirs[strings.ToLower(seg)]; ok {
			return true
		}
	}
	return false
}

// Tier returns the priority tier of a file path. Lower is more important.
func Tier(p string) int {
	name := strings.ToLower(path.Base(p))
	ext := path.Ext(name)
	core := inCoreDir(p)

	for _, r := range compiledTiers {
		key := name
		if r.kind == byExt {
			key = ext
		}
		if _, ok := r.keys[key]; !ok {
			continue
		}
		if core {
			return r.coreTier
		}
		return r.tier
	}
	return catchAllTier
}

// rankCandidates turns a listing into download candidates ordered by
// (tier, size, path).
func rankCandidates(entries []domain.TreeEntry, locate func(string) string, maxFileBytes int64) []domain.RepoFileEntry {
	out := make([]domain.RepoFileEntry, 0, len(entries))
	for _, e := range entries {
		if e.Type != domain.EntryFile || isExcluded(e.Path) || isSkippedFile(e.Path) {
			continue
		}
		if maxFileBytes > 0 && e.Size > maxFileBytes {
			continue
		}
		out = append(out, domain.RepoFileEntry{
			Path:    e.Path,
			Name:    path.Base(e.Path),
			Size:    e.Size,
			Tier:    Tier(e.Path),
			Locator: locate(e.Path),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Tier != out[j].Tier {
			return out[i].Tier < out[j].Tier
		}
		if out[i].Size != out[j].Size {
			return out[i].Size < out[j].Size
		}
		return out[i].Path < out[j].Path
	})
	return out
}
