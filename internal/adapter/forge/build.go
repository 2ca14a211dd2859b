package forge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github-repo-judge/internal/domain"
	"github-repo-judge/pkg/logger"
	"github-repo-judge/pkg/metrics"
)

type buildStep struct {
	marker string // file at the project root that selects this step
	name   string
	args   []string
}

// First marker present wins.
var buildSteps = []buildStep{
	{"package.json", "npm", []string{"install", "--ignore-scripts", "--no-audit", "--no-fund"}},
	{"go.mod", "go", []string{"build", "./..."}},
	{"Cargo.toml", "cargo", []string{"check", "--quiet"}},
	{"requirements.txt", "pip", []string{"install", "--dry-run", "-r", "requirements.txt"}},
}

func selectBuild(dir string) (buildStep, bool) {
	for _, s := range buildSteps {
		if _, err := os.Stat(filepath.Join(dir, s.marker)); err == nil {
			return s, true
		}
	}
	return buildStep{}, false
}

// build runs one best-effort install/build step. Its outcome only ever lands
// in the result's build fields and log.
func (f *Forge) build(ctx context.Context, dir string, res *domain.ForgeAuditResult) {
	step, ok := selectBuild(dir)
	if !ok {
		res.BuildLog = append(res.BuildLog, "no build step for this project")
		return
	}

	command := step.name + " " + strings.Join(step.args, " ")
	res.BuildAttempted = true
	res.BuildCommand = command
	res.BuildLog = append(res.BuildLog, "$ "+command)

	out, err := f.runner.Run(ctx, step.name, step.args, RunOpts{
		Dir:     dir,
		Env:     append(os.Environ(), "CI=true", "NPM_CONFIG_UPDATE_NOTIFIER=false"),
		Timeout: f.buildTimeout,
	})

	switch {
	case err != nil:
		res.BuildLog = append(res.BuildLog, "build tool unavailable: "+err.Error())
	case out.TimedOut:
		res.BuildLog = append(res.BuildLog, tailLines(out.Stdout+"\n"+out.Stderr, f.logTail)...)
		res.BuildLog = append(res.BuildLog, fmt.Sprintf("build timed out after %s", f.buildTimeout))
	default:
		res.BuildLog = append(res.BuildLog, tailLines(out.Stdout+"\n"+out.Stderr, f.logTail)...)
		res.BuildLog = append(res.BuildLog, fmt.Sprintf("exit code: %d", out.ExitCode))
		res.BuildSuccess = out.ExitCode == 0
	}

	metrics.RecordBuild(res.BuildSuccess)
	f.logger.Info(ctx, "build step finished",
		logger.String("command", command),
		logger.Bool("success", res.BuildSuccess),
	)
}

// tailLines returns the last n non-blank lines of s.
func tailLines(s string, n int) []string {
	var lines []string
	for _, l := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, strings.TrimRight(l, " \t\r"))
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
