package forge

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github-repo-judge/internal/domain"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/modfile"
	"gopkg.in/yaml.v3"
)

type ecosystem int

const (
	ecoNPM ecosystem = iota
	ecoPython
	ecoGo
	ecoCargo
	ecoPub
)

type knownDep struct {
	eco      ecosystem
	dep      string // npm/pypi/crate/pub name, or Go module path prefix
	name     string
	category string
}

var knownDeps = []knownDep{
	{ecoNPM, "react", "React", domain.CategoryFrontend},
	{ecoNPM, "next", "Next.js", domain.CategoryFrontend},
	{ecoNPM, "vue", "Vue", domain.CategoryFrontend},
	{ecoNPM, "nuxt", "Nuxt", domain.CategoryFrontend},
	{ecoNPM, "svelte", "Svelte", domain.CategoryFrontend},
	{ecoNPM, "@angular/core", "Angular", domain.CategoryFrontend},
	{ecoNPM, "tailwindcss", "Tailwind CSS", domain.CategoryFrontend},
	{ecoNPM, "express", "Express", domain.CategoryBackend},
	{ecoNPM, "koa", "Koa", domain.CategoryBackend},
	{ecoNPM, "fastify", "Fastify", domain.CategoryBackend},
	{ecoNPM, "@nestjs/core", "NestJS", domain.CategoryBackend},
	{ecoNPM, "prisma", "Prisma", domain.CategoryDatabase},
	{ecoNPM, "@prisma/client", "Prisma", domain.CategoryDatabase},
	{ecoNPM, "mongoose", "Mongoose", domain.CategoryDatabase},
	{ecoNPM, "sequelize", "Sequelize", domain.CategoryDatabase},
	{ecoNPM, "typeorm", "TypeORM", domain.CategoryDatabase},
	{ecoNPM, "react-native", "React Native", domain.CategoryMobile},
	{ecoNPM, "expo", "Expo", domain.CategoryMobile},
	{ecoNPM, "@tensorflow/tfjs", "TensorFlow.js", domain.CategoryML},
	{ecoNPM, "vite", "Vite", domain.CategoryTooling},
	{ecoNPM, "typescript", "TypeScript", domain.CategoryTooling},
	{ecoNPM, "electron", "Electron", domain.CategoryTooling},

	{ecoPython, "django", "Django", domain.CategoryBackend},
	{ecoPython, "flask", "Flask", domain.CategoryBackend},
	{ecoPython, "fastapi", "FastAPI", domain.CategoryBackend},
	{ecoPython, "sqlalchemy", "SQLAlchemy", domain.CategoryDatabase},
	{ecoPython, "psycopg2", "PostgreSQL", domain.CategoryDatabase},
	{ecoPython, "psycopg2-binary", "PostgreSQL", domain.CategoryDatabase},
	{ecoPython, "pymongo", "MongoDB", domain.CategoryDatabase},
	{ecoPython, "torch", "PyTorch", domain.CategoryML},
	{ecoPython, "tensorflow", "TensorFlow", domain.CategoryML},
	{ecoPython, "keras", "Keras", domain.CategoryML},
	{ecoPython, "scikit-learn", "scikit-learn", domain.CategoryML},
	{ecoPython, "sklearn", "scikit-learn", domain.CategoryML},
	{ecoPython, "transformers", "Transformers", domain.CategoryML},
	{ecoPython, "pandas", "Pandas", domain.CategoryML},
	{ecoPython, "numpy", "NumPy", domain.CategoryML},
	{ecoPython, "langchain", "LangChain", domain.CategoryML},
	{ecoPython, "openai", "OpenAI SDK", domain.CategoryML},
	{ecoPython, "streamlit", "Streamlit", domain.CategoryFrontend},
	{ecoPython, "gradio", "Gradio", domain.CategoryFrontend},
	{ecoPython, "kivy", "Kivy", domain.CategoryMobile},

	{ecoGo, "github.com/gin-gonic/gin", "Gin", domain.CategoryBackend},
	{ecoGo, "github.com/labstack/echo", "Echo", domain.CategoryBackend},
	{ecoGo, "github.com/gofiber/fiber", "Fiber", domain.CategoryBackend},
	{ecoGo, "github.com/go-chi/chi", "chi", domain.CategoryBackend},
	{ecoGo, "google.golang.org/grpc", "gRPC", domain.CategoryBackend},
	{ecoGo, "gorm.io/gorm", "GORM", domain.CategoryDatabase},
	{ecoGo, "github.com/jackc/pgx", "pgx", domain.CategoryDatabase},
	{ecoGo, "go.mongodb.org/mongo-driver", "MongoDB", domain.CategoryDatabase},
	{ecoGo, "github.com/spf13/cobra", "Cobra", domain.CategoryTooling},

	{ecoCargo, "actix-web", "Actix Web", domain.CategoryBackend},
	{ecoCargo, "axum", "Axum", domain.CategoryBackend},
	{ecoCargo, "rocket", "Rocket", domain.CategoryBackend},
	{ecoCargo, "tokio", "Tokio", domain.CategoryBackend},
	{ecoCargo, "diesel", "Diesel", domain.CategoryDatabase},
	{ecoCargo, "sqlx", "SQLx", domain.CategoryDatabase},
	{ecoCargo, "yew", "Yew", domain.CategoryFrontend},
	{ecoCargo, "leptos", "Leptos", domain.CategoryFrontend},
	{ecoCargo, "tauri", "Tauri", domain.CategoryTooling},

	{ecoPub, "flutter", "Flutter", domain.CategoryMobile},
	{ecoPub, "firebase_core", "Firebase", domain.CategoryDatabase},
}

var manifests = []struct {
	file  string
	eco   ecosystem
	parse func([]byte) []string
}{
	{"package.json", ecoNPM, parsePackageJSON},
	{"requirements.txt", ecoPython, parseRequirements},
	{"pyproject.toml", ecoPython, parsePyproject},
	{"go.mod", ecoGo, parseGoMod},
	{"Cargo.toml", ecoCargo, parseCargo},
	{"pubspec.yaml", ecoPub, parsePubspec},
}

// DetectFrameworks parses the manifests at the project root and one level
// below it, matches their dependencies against knownDeps, and raises the
// matching stats signals. Missing or malformed manifests are ignored.
func DetectFrameworks(dir string, stats *domain.ForgeStats) []domain.Framework {
	found := []domain.Framework{}
	seen := map[string]bool{}

	for _, d := range manifestDirs(dir) {
		for _, m := range manifests {
			data, err := os.ReadFile(filepath.Join(d, m.file))
			if err != nil {
				continue
			}
			for _, dep := range m.parse(data) {
				kd, ok := lookupDep(m.eco, dep)
				if !ok || seen[kd.name] {
					continue
				}
				seen[kd.name] = true
				found = append(found, domain.Framework{Name: kd.name, Category: kd.category})
				applyCategory(stats, kd.category)
			}
		}
	}
	return found
}

// manifestDirs is the root followed by its visible subdirectories in name order.
func manifestDirs(dir string) []string {
	dirs := []string{dir}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return dirs
	}
	var subs []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") && !walkSkipDirs[e.Name()] {
			subs = append(subs, e.Name())
		}
	}
	sort.Strings(subs)
	for _, s := range subs {
		dirs = append(dirs, filepath.Join(dir, s))
	}
	return dirs
}

func lookupDep(eco ecosystem, dep string) (knownDep, bool) {
	for _, kd := range knownDeps {
		if kd.eco != eco {
			continue
		}
		if eco == ecoGo {
			if dep == kd.dep || strings.HasPrefix(dep, kd.dep+"/") {
				return kd, true
			}
			continue
		}
		if dep == kd.dep {
			return kd, true
		}
	}
	return knownDep{}, false
}

func applyCategory(stats *domain.ForgeStats, category string) {
	if stats == nil {
		return
	}
	switch category {
	case domain.CategoryFrontend:
		stats.HasFrontend = true
	case domain.CategoryBackend:
		stats.HasBackend = true
	case domain.CategoryDatabase:
		stats.HasDatabase = true
	case domain.CategoryML:
		stats.HasML = true
	case domain.CategoryMobile:
		stats.HasMobile = true
	}
}

func parsePackageJSON(data []byte) []string {
	var pkg struct {
		Dependencies     map[string]string `json:"dependencies"`
		DevDependencies  map[string]string `json:"devDependencies"`
		PeerDependencies map[string]string `json:"peerDependencies"`
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return nil
	}
	return sortedKeys(pkg.Dependencies, pkg.DevDependencies, pkg.PeerDependencies)
}

func parseRequirements(data []byte) []string {
	var deps []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if i := strings.Index(line, "#"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		if line == "" || strings.HasPrefix(line, "-") {
			continue
		}
		if name := pep508Name(line); name != "" {
			deps = append(deps, name)
		}
	}
	return deps
}

// pep508Name extracts the normalised distribution name of a requirement.
func pep508Name(req string) string {
	end := strings.IndexAny(req, "=<>!~[;@ (")
	if end >= 0 {
		req = req[:end]
	}
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(req)), "_", "-")
}

func parsePyproject(data []byte) []string {
	var doc struct {
		Project struct {
			Dependencies         []string            `toml:"dependencies"`
			OptionalDependencies map[string][]string `toml:"optional-dependencies"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Dependencies    map[string]any `toml:"dependencies"`
				DevDependencies map[string]any `toml:"dev-dependencies"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil
	}

	var deps []string
	for _, r := range doc.Project.Dependencies {
		deps = append(deps, pep508Name(r))
	}
	groups := make([]string, 0, len(doc.Project.OptionalDependencies))
	for g := range doc.Project.OptionalDependencies {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		for _, r := range doc.Project.OptionalDependencies[g] {
			deps = append(deps, pep508Name(r))
		}
	}
	for _, name := range sortedKeys(doc.Tool.Poetry.Dependencies, doc.Tool.Poetry.DevDependencies) {
		deps = append(deps, pep508Name(name))
	}
	return deps
}

func parseGoMod(data []byte) []string {
	f, err := modfile.ParseLax("go.mod", data, nil)
	if err != nil {
		return nil
	}
	deps := make([]string, 0, len(f.Require))
	for _, r := range f.Require {
		deps = append(deps, r.Mod.Path)
	}
	return deps
}

func parseCargo(data []byte) []string {
	var doc struct {
		Dependencies    map[string]any `toml:"dependencies"`
		DevDependencies map[string]any `toml:"dev-dependencies"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil
	}
	return sortedKeys(doc.Dependencies, doc.DevDependencies)
}

func parsePubspec(data []byte) []string {
	var doc struct {
		Dependencies    map[string]any `yaml:"dependencies"`
		DevDependencies map[string]any `yaml:"dev_dependencies"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil
	}
	return sortedKeys(doc.Dependencies, doc.DevDependencies)
}

// sortedKeys merges map keys in a stable order: each map sorted, maps in argument order.
func sortedKeys[V any](maps ...map[string]V) []string {
	var out []string
	for _, m := range maps {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out = append(out, keys...)
	}
	return out
}
