package forge

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github-repo-judge/internal/domain"
)

// Directories the sandbox walk never enters.
var walkSkipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true, "bower_components": true,
	"venv": true, ".venv": true, "env": true, "__pycache__": true, ".tox": true,
	"dist": true, "build": true, "target": true, ".next": true, ".nuxt": true,
	".gradle": true, ".dart_tool": true, "Pods": true,
}

var (
	frontendExts = extSet(".jsx", ".tsx", ".vue", ".svelte", ".html", ".css", ".scss", ".sass", ".less")
	backendExts  = extSet(".go", ".py", ".java", ".rb", ".php", ".cs", ".rs", ".scala", ".ex")
	mlExts       = extSet(".ipynb", ".pt", ".pth", ".h5", ".onnx", ".pkl")
	mobileExts   = extSet(".dart", ".swift", ".kt", ".m")
	databaseExts = extSet(".sql", ".prisma")
)

var testDirs = map[string]bool{"test": true, "tests": true, "__tests__": true, "spec": true, "specs": true}

func extSet(exts ...string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		m[e] = true
	}
	return m
}

// Inspect walks a cloned tree and records counts and marker signals.
// Unreadable entries are skipped; the error reports only a failure to start.
func Inspect(dir string) (*domain.ForgeStats, error) {
	stats := &domain.ForgeStats{ExtensionCounts: map[string]int{}}

	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if p == dir {
			return nil
		}

		rel, _ := filepath.Rel(dir, p)
		rel = filepath.ToSlash(rel)
		name := d.Name()
		lower := strings.ToLower(name)

		if d.IsDir() {
			if walkSkipDirs[name] {
				return filepath.SkipDir
			}
			stats.TotalDirs++
			if testDirs[lower] {
				stats.HasTests = true
			}
			if rel == ".circleci" {
				stats.HasCI = true
			}
			return nil
		}

		stats.TotalFiles++
		if info, err := d.Info(); err == nil {
			stats.TotalBytes += info.Size()
		}
		ext := strings.ToLower(filepath.Ext(name))
		if ext == "" {
			stats.ExtensionCounts["(none)"]++
		} else {
			stats.ExtensionCounts[ext]++
		}

		markFile(stats, rel, lower, ext)
		return nil
	})
	return stats, err
}

func markFile(stats *domain.ForgeStats, rel, name, ext string) {
	switch {
	case name == "package.json":
		stats.HasPackageJSON = true
	case name == "requirements.txt" || name == "setup.py" || name == "pyproject.toml" || name == "pipfile":
		stats.HasRequirements = true
	case strings.HasPrefix(name, "readme"):
		stats.HasReadme = true
	case name == "dockerfile" || strings.HasPrefix(name, "dockerfile.") ||
		name == "docker-compose.yml" || name == "docker-compose.yaml" ||
		name == "compose.yml" || name == "compose.yaml":
		stats.HasDocker = true
	case name == ".gitlab-ci.yml" || name == ".travis.yml" || name == "jenkinsfile" || name == "azure-pipelines.yml":
		stats.HasCI = true
	case name == "androidmanifest.xml" || name == "pubspec.yaml" || name == "podfile":
		stats.HasMobile = true
	}

	if strings.HasPrefix(rel, ".github/workflows/") {
		stats.HasCI = true
	}
	if isTestFile(name) {
		stats.HasTests = true
	}

	if frontendExts[ext] {
		stats.HasFrontend = true
	}
	if backendExts[ext] {
		stats.HasBackend = true
	}
	if mlExts[ext] {
		stats.HasML = true
	}
	if mobileExts[ext] {
		stats.HasMobile = true
	}
	if databaseExts[ext] {
		stats.HasDatabase = true
	}
}

func isTestFile(name string) bool {
	switch {
	case strings.HasSuffix(name, "_test.go"),
		strings.HasPrefix(name, "test_") && strings.HasSuffix(name, ".py"),
		strings.HasSuffix(name, "_test.py"),
		strings.Contains(name, ".test."),
		strings.Contains(name, ".spec."):
		return true
	}
	return false
}

// ProjectTypes derives the project-type tags from accumulated signals.
// A project with no signal is exactly {"Generic"}.
func ProjectTypes(stats *domain.ForgeStats) []string {
	var tags []string
	if stats.HasFrontend {
		tags = append(tags, domain.ProjectFrontend)
	}
	if stats.HasBackend {
		tags = append(tags, domain.ProjectBackend)
	}
	if stats.HasML {
		tags = append(tags, domain.ProjectML)
	}
	if stats.HasMobile {
		tags = append(tags, domain.ProjectMobile)
	}
	if stats.HasDocker {
		tags = append(tags, domain.ProjectDocker)
	}
	if len(tags) == 0 {
		return []string{domain.ProjectGeneric}
	}
	return tags
}
