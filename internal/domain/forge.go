package domain

// CloneErrorKind is the closed set of clone failure classes.
type CloneErrorKind string

const (
	CloneOK           CloneErrorKind = ""
	CloneNotFound     CloneErrorKind = "not_found"
	CloneAuthRequired CloneErrorKind = "auth_required"
	CloneTimeout      CloneErrorKind = "timeout"
	CloneFailed       CloneErrorKind = "clone_failed"
	CloneBusy         CloneErrorKind = "sandbox_busy"
)

// Project type tags.
const (
	ProjectFrontend = "Frontend"
	ProjectBackend  = "Backend"
	ProjectML       = "ML"
	ProjectMobile   = "Mobile"
	ProjectDocker   = "Docker"
	ProjectGeneric  = "Generic"
)

// Framework categories.
const (
	CategoryFrontend = "frontend"
	CategoryBackend  = "backend"
	CategoryDatabase = "database"
	CategoryML       = "ml"
	CategoryMobile   = "mobile"
	CategoryTooling  = "tooling"
)

// Framework is a technology recognised from a manifest.
type Framework struct {
	Name     string `json:"name"`
	Category string `json:"category"`
}

// ForgeStats is what the sandbox walk found.
type ForgeStats struct {
	TotalFiles      int            `json:"total_files"`
	TotalDirs       int            `json:"total_dirs"`
	TotalBytes      int64          `json:"total_bytes"`
	ExtensionCounts map[string]int `json:"extension_counts"`

	HasPackageJSON  bool `json:"has_package_json"`
	HasRequirements bool `json:"has_requirements"`
	HasReadme       bool `json:"has_readme"`
	HasDocker       bool `json:"has_docker"`
	HasCI           bool `json:"has_ci"`
	HasTests        bool `json:"has_tests"`

	HasFrontend bool `json:"has_frontend"`
	HasBackend  bool `json:"has_backend"`
	HasDatabase bool `json:"has_database"`
	HasML       bool `json:"has_ml"`
	HasMobile   bool `json:"has_mobile"`
}

// ForgeAuditResult is the outcome of one sandbox audit.
type ForgeAuditResult struct {
	Success      bool           `json:"success"`
	ErrorKind    CloneErrorKind `json:"error_kind,omitempty"`
	Error        string         `json:"error,omitempty"`
	Stats        *ForgeStats    `json:"stats,omitempty"`
	Frameworks   []Framework    `json:"frameworks"`
	ProjectTypes []string       `json:"project_types"`

	BuildAttempted bool     `json:"build_attempted"`
	BuildSuccess   bool     `json:"build_success"`
	BuildCommand   string   `json:"build_command,omitempty"`
	BuildLog       []string `json:"build_log"`

	SandboxPath string `json:"sandbox_path"`
}

// FrameworkNames returns the names in detection order.
func (r *ForgeAuditResult) FrameworkNames() []string {
	names := make([]string, 0, len(r.Frameworks))
	for _, f := range r.Frameworks {
		names = append(names, f.Name)
	}
	return names
}
