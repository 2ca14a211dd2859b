package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github-repo-judge/internal/domain"
)

type rubricFlags struct {
	file         string
	title        string
	description  string
	requirements []string
}

func (r *rubricFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&r.file, "rubric", "", "YAML or JSON file with title, description and requirements")
	cmd.Flags().StringVar(&r.title, "title", "", "challenge title")
	cmd.Flags().StringVar(&r.description, "description", "", "challenge description")
	cmd.Flags().StringArrayVar(&r.requirements, "requirement", nil, "challenge requirement (repeatable)")
}

// rubric 先读文件，命令行参数覆盖文件内容
func (r *rubricFlags) rubric() (domain.Rubric, error) {
	var out domain.Rubric
	if r.file != "" {
		data, err := os.ReadFile(r.file)
		if err != nil {
			return out, fmt.Errorf("read rubric: %w", err)
		}
		out, err = parseRubric(data)
		if err != nil {
			return out, err
		}
	}
	if r.title != "" {
		out.Title = r.title
	}
	if r.description != "" {
		out.Description = r.description
	}
	if len(r.requirements) > 0 {
		out.Requirements = r.requirements
	}
	return out, nil
}

// parseRubric accepts YAML, and therefore JSON.
func parseRubric(data []byte) (domain.Rubric, error) {
	var raw struct {
		Title        string   `yaml:"title"`
		Description  string   `yaml:"description"`
		Requirements []string `yaml:"requirements"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return domain.Rubric{}, fmt.Errorf("parse rubric: %w", err)
	}
	return domain.Rubric{Title: raw.Title, Description: raw.Description, Requirements: raw.Requirements}, nil
}

func newEvaluateCmd() *cobra.Command {
	var (
		rf           rubricFlags
		submissionID string
		teamName     string
		verifyBuild  bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate <repo-url>",
		Short: "Evaluate one repository synchronously and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rubric, err := rf.rubric()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			a, err := buildApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if submissionID == "" {
				submissionID = uuid.NewString()
			}
			res, err := a.service.Evaluate(ctx, domain.JobPayload{
				SubmissionID: submissionID,
				RepoURL:      args[0],
				TeamName:     teamName,
				Rubric:       rubric,
				VerifyBuild:  verifyBuild,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	rf.register(cmd)
	cmd.Flags().StringVar(&submissionID, "submission-id", "", "submission id (random when empty)")
	cmd.Flags().StringVar(&teamName, "team", "", "team name")
	cmd.Flags().BoolVar(&verifyBuild, "verify-build", false, "clone into the sandbox and run the build check")
	return cmd
}

func newFetchCmd() *cobra.Command {
	var showContext bool

	cmd := &cobra.Command{
		Use:   "fetch <repo-url>",
		Short: "Fetch a repository snapshot and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			snap, err := newFetcher(cfg).Fetch(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if showContext {
				_, err = io.WriteString(cmd.OutOrStdout(), snap.Context)
				return err
			}
			return printJSON(cmd.OutOrStdout(), snap)
		},
	}

	cmd.Flags().BoolVar(&showContext, "context", false, "print the rendered LLM context instead of JSON")
	return cmd
}

func newAuditCmd() *cobra.Command {
	var (
		submissionID string
		keep         bool
	)

	cmd := &cobra.Command{
		Use:   "audit <repo-url>",
		Short: "Clone a repository into the sandbox and inspect it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			fg, err := newForge(cfg)
			if err != nil {
				return err
			}
			if fg == nil {
				return fmt.Errorf("sandbox_root is not configured")
			}
			if submissionID == "" {
				submissionID = "audit-" + uuid.NewString()
			}

			res := fg.Audit(cmd.Context(), args[0], submissionID)
			if !keep {
				defer fg.Cleanup(submissionID)
			}
			if err := printJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if !res.Success {
				return fmt.Errorf("audit failed (%s): %s", res.ErrorKind, res.Error)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&submissionID, "submission-id", "", "sandbox id (random when empty)")
	cmd.Flags().BoolVar(&keep, "keep", false, "keep the sandbox directory afterwards")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
