package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"github-repo-judge/internal/common"
	"github-repo-judge/internal/domain"
	"github-repo-judge/pkg/logger"
	"github-repo-judge/pkg/metrics"
)

// downloadAll fetches candidates in rank order until the file count or the
// character budget is reached. Lengths are counted in runes.
func (f *Fetcher) downloadAll(ctx context.Context, log logger.Logger, candidates []domain.RepoFileEntry) []domain.FetchedFileContent {
	files := make([]domain.FetchedFileContent, 0, min(len(candidates), f.maxFiles))
	total := 0

	for _, c := range candidates {
		if len(files) >= f.maxFiles || total >= f.maxTotalChars {
			break
		}
		if ctx.Err() != nil {
			log.Warn(ctx, "download loop interrupted", logger.Error(ctx.Err()))
			break
		}

		raw, err := f.download(ctx, c.Locator)
		if err != nil {
			metrics.RecordFileFetch("error")
			log.Warn(ctx, "file download failed, skipping", logger.String("path", c.Path), logger.Error(err))
			continue
		}
		if bytes.IndexByte(raw, 0) >= 0 || !utf8.Valid(raw) {
			metrics.RecordFileFetch("binary")
			continue
		}

		text := string(raw)
		if strings.HasSuffix(strings.ToLower(c.Path), ".ipynb") {
			text = notebookSource(raw)
		}

		fc := truncate(c.Path, text, f.maxFileChars)
		n := utf8.RuneCountInString(fc.Content)
		if total+n > f.maxTotalChars {
			metrics.RecordFileFetch("over_budget")
			log.Debug(ctx, "character budget reached", logger.String("path", c.Path), logger.Int("chars", n))
			break
		}

		total += n
		files = append(files, fc)
		metrics.RecordFileFetch("ok")
	}
	return files
}

// download reads one file through the API client so auth and error mapping
// match the REST calls. Transient failures get a single retry.
func (f *Fetcher) download(ctx context.Context, locator string) ([]byte, error) {
	var buf bytes.Buffer
	err := common.Do(ctx, func() error {
		buf.Reset()
		callCtx, cancel := context.WithTimeout(ctx, f.requestTimeout)
		defer cancel()

		req, err := f.client.NewRequest(http.MethodGet, locator, nil)
		if err != nil {
			return err
		}
		_, err = f.client.Do(callCtx, req, &buf)
		return err
	},
		common.WithMaxRetries(1),
		common.WithInitialDelay(f.retryDelay),
		common.WithRetryIf(isTransient),
	)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// truncate cuts text to maxChars runes. Truncated is set iff the original is longer.
func truncate(p, text string, maxChars int) domain.FetchedFileContent {
	original := utf8.RuneCountInString(text)
	fc := domain.FetchedFileContent{
		Path:         p,
		Content:      text,
		OriginalSize: original,
		Lines:        lineCount(text),
	}
	if original > maxChars {
		fc.Content = string([]rune(text)[:maxChars])
		fc.Truncated = true
	}
	return fc
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}
	n := strings.Count(s, "\n")
	if !strings.HasSuffix(s, "\n") {
		n++
	}
	return n
}

type notebook struct {
	Cells []struct {
		CellType string          `json:"cell_type"`
		Source   json.RawMessage `json:"source"`
	} `json:"cells"`
}

// notebookSource flattens code and markdown cells into annotated pseudo-source.
// Anything that does not parse as a notebook is returned unchanged.
func notebookSource(raw []byte) string {
	var nb notebook
	if err := json.Unmarshal(raw, &nb); err != nil || len(nb.Cells) == 0 {
		return string(raw)
	}

	var b strings.Builder
	for i, cell := range nb.Cells {
		if cell.CellType != "code" && cell.CellType != "markdown" {
			continue
		}
		src := cellSource(cell.Source)
		if strings.TrimSpace(src) == "" {
			continue
		}

		fmt.Fprintf(&b, "# %%%% [%s] cell %d\n", cell.CellType, i+1)
		if cell.CellType == "markdown" {
			for _, line := range strings.Split(strings.TrimRight(src, "\n"), "\n") {
				b.WriteString("# " + line + "\n")
			}
		} else {
			b.WriteString(strings.TrimRight(src, "\n") + "\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// cellSource accepts both the list-of-lines and single-string encodings.
func cellSource(raw json.RawMessage) string {
	var lines []string
	if err := json.Unmarshal(raw, &lines); err == nil {
		return strings.Join(lines, "")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}
