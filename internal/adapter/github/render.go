package github

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"unicode/utf8"

	"github-repo-judge/internal/domain"
)

// ComputeStats summarises a listing and the files fetched from it. Directories
// include implicit parents of files, so walk and tree listings agree.
func ComputeStats(tree []domain.TreeEntry, files []domain.FetchedFileContent) domain.RepoStats {
	stats := domain.RepoStats{
		ExtensionCounts: map[string]int{},
		Directories:     []string{},
	}

	dirs := map[string]struct{}{}
	for _, e := range tree {
		switch e.Type {
		case domain.EntryDir:
			dirs[e.Path] = struct{}{}
		case domain.EntryFile:
			stats.TotalFiles++
			ext := strings.ToLower(path.Ext(e.Path))
			if ext == "" {
				ext = "(none)"
			}
			stats.ExtensionCounts[ext]++
			for d := path.Dir(e.Path); d != "." && d != "/"; d = path.Dir(d) {
				dirs[d] = struct{}{}
			}
		}
	}
	for d := range dirs {
		stats.Directories = append(stats.Directories, d)
	}
	sort.Strings(stats.Directories)
	stats.TotalDirs = len(stats.Directories)

	for _, fc := range files {
		stats.FetchedFiles++
		stats.TotalChars += utf8.RuneCountInString(fc.Content)
		if fc.Truncated {
			stats.TruncatedFiles++
		}
	}
	return stats
}

// RenderContext groups fetched files by directory into one delimited blob for
// the scorer. The root directory comes first, the rest alphabetically; files
// keep their rank order inside a directory.
func RenderContext(snap *domain.RepoSnapshot) string {
	var b strings.Builder
	m := snap.Metadata

	fmt.Fprintf(&b, "# Repository: %s\n", snap.Ref.FullName())
	if m.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", m.Description)
	}
	if m.Language != "" {
		fmt.Fprintf(&b, "Primary language: %s\n", m.Language)
	}
	fmt.Fprintf(&b, "Stars: %d\n", m.Stars)
	if !m.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "Created: %s  Updated: %s\n", m.CreatedAt.Format("2006-01-02"), m.UpdatedAt.Format("2006-01-02"))
	}
	if len(m.Contributors) > 0 {
		fmt.Fprintf(&b, "Contributors: %s\n", strings.Join(m.Contributors, ", "))
	}
	if a := snap.Activity; a != nil && a.Commits > 0 {
		fmt.Fprintf(&b, "Recent commits: %d", a.Commits)
		if !a.LatestCommitAt.IsZero() {
			fmt.Fprintf(&b, " (latest %s)", a.LatestCommitAt.Format("2006-01-02 15:04"))
		}
		b.WriteString("\n")
		if a.ReadmeOnly {
			fmt.Fprintf(&b, "Note: the %d most recent commits only change README files\n", a.Inspected)
		}
	}

	s := snap.Stats
	fmt.Fprintf(&b, "Files: %d  Directories: %d  Included: %d  Truncated: %d\n",
		s.TotalFiles, s.TotalDirs, s.FetchedFiles, s.TruncatedFiles)
	if len(s.ExtensionCounts) > 0 {
		fmt.Fprintf(&b, "Extensions: %s\n", formatExtensions(s.ExtensionCounts))
	}

	groups := map[string][]domain.FetchedFileContent{}
	var order []string
	for _, fc := range snap.Files {
		dir := path.Dir(fc.Path)
		if _, ok := groups[dir]; !ok {
			order = append(order, dir)
		}
		groups[dir] = append(groups[dir], fc)
	}
	sort.Slice(order, func(i, j int) bool {
		if order[i] == "." || order[j] == "." {
			return order[i] == "."
		}
		return order[i] < order[j]
	})

	for _, dir := range order {
		label := dir
		if dir == "." {
			label = "(root)"
		}
		fmt.Fprintf(&b, "\n## Directory: %s\n", label)
		for _, fc := range groups[dir] {
			fmt.Fprintf(&b, "\n===== FILE: %s (%d lines) =====\n", fc.Path, fc.Lines)
			b.WriteString(fc.Content)
			if !strings.HasSuffix(fc.Content, "\n") {
				b.WriteString("\n")
			}
			if fc.Truncated {
				fmt.Fprintf(&b, "[... truncated: showing %d of %d characters]\n",
					utf8.RuneCountInString(fc.Content), fc.OriginalSize)
			}
			b.WriteString("===== END FILE =====\n")
		}
	}
	return b.String()
}

// formatExtensions renders the counts most-frequent first.
func formatExtensions(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, " ")
}
