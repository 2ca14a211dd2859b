package forge

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

type runCall struct {
	name string
	args []string
	opts RunOpts
}

// fakeRunner records calls. Clones are served by onClone, which receives the
// target directory; everything else returns the queued result for its name.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []runCall
	onClone func(dir string) (CmdResult, error)
	results map[string]CmdResult
	started chan struct{}
	block   chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string, opts RunOpts) (CmdResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, runCall{name: name, args: append([]string(nil), args...), opts: opts})
	f.mu.Unlock()

	if name == "git" && len(args) > 0 && args[0] == "clone" {
		if f.started != nil {
			f.started <- struct{}{}
		}
		if f.block != nil {
			<-f.block
		}
		dir := args[len(args)-1]
		if f.onClone != nil {
			return f.onClone(dir)
		}
		return CmdResult{}, os.MkdirAll(dir, 0o755)
	}
	if r, ok := f.results[name]; ok {
		return r, nil
	}
	return CmdResult{}, nil
}

func (f *fakeRunner) callNames() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		names = append(names, c.name+" "+strings.Join(c.args, " "))
	}
	return names
}

// cloneFiles returns an onClone that materialises files into the target.
func cloneFiles(files map[string]string) func(string) (CmdResult, error) {
	return func(dir string) (CmdResult, error) {
		for rel, content := range files {
			p := filepath.Join(dir, filepath.FromSlash(rel))
			if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
				return CmdResult{}, err
			}
			if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
				return CmdResult{}, err
			}
		}
		return CmdResult{}, nil
	}
}
