package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github-repo-judge/internal/domain"
)

// batchFile 描述一批提交，共用同一份评分标准
type batchFile struct {
	Rubric struct {
		Title        string   `yaml:"title"`
		Description  string   `yaml:"description"`
		Requirements []string `yaml:"requirements"`
	} `yaml:"rubric"`
	VerifyBuild bool `yaml:"verify_build"`
	Submissions []struct {
		SubmissionID string `yaml:"submission_id"`
		RepoURL      string `yaml:"repo_url"`
		TeamName     string `yaml:"team_name"`
		VerifyBuild  *bool  `yaml:"verify_build"`
	} `yaml:"submissions"`
}

func parseBatch(data []byte) ([]domain.JobPayload, error) {
	var bf batchFile
	if err := yaml.Unmarshal(data, &bf); err != nil {
		return nil, fmt.Errorf("parse batch: %w", err)
	}
	if len(bf.Submissions) == 0 {
		return nil, fmt.Errorf("batch has no submissions")
	}
	rubric := domain.Rubric{
		Title:        bf.Rubric.Title,
		Description:  bf.Rubric.Description,
		Requirements: bf.Rubric.Requirements,
	}

	seen := map[string]bool{}
	out := make([]domain.JobPayload, 0, len(bf.Submissions))
	for i, s := range bf.Submissions {
		if s.RepoURL == "" {
			return nil, fmt.Errorf("submission %d: repo_url is required", i+1)
		}
		id := s.SubmissionID
		if id == "" {
			id = uuid.NewString()
		}
		if seen[id] {
			return nil, fmt.Errorf("submission %d: duplicate submission_id %q", i+1, id)
		}
		seen[id] = true

		verify := bf.VerifyBuild
		if s.VerifyBuild != nil {
			verify = *s.VerifyBuild
		}
		out = append(out, domain.JobPayload{
			SubmissionID: id,
			RepoURL:      s.RepoURL,
			TeamName:     s.TeamName,
			Rubric:       rubric,
			VerifyBuild:  verify,
		})
	}
	return out, nil
}

func newBatchCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Evaluate every submission listed in a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			payloads, err := parseBatch(data)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if concurrency > 0 {
				cfg.BatchConcurrency = concurrency
			}
			ctx := cmd.Context()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			outcomes := a.service.EvaluateBatch(ctx, payloads, cfg.BatchConcurrency)
			if err := printJSON(cmd.OutOrStdout(), outcomes); err != nil {
				return err
			}
			failed := 0
			for _, o := range outcomes {
				if o.Error != "" {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d submissions failed", failed, len(outcomes))
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "parallel evaluations (overrides config)")
	return cmd
}
