package repository

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github-repo-judge/internal/common"
	"github-repo-judge/internal/domain"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupMockDB 创建一个模拟的数据库连接
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	// 创建 GORM 数据库实例，禁用日志以减少输出
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open gorm db: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return gormDB, mock, cleanup
}

func sampleRecord(id string) *domain.EvaluationRecord {
	now := time.Now()
	return &domain.EvaluationRecord{
		SubmissionID:      id,
		RepoURL:           "https://github.com/team/app",
		TeamName:          "team",
		QualityScore:      80,
		SatisfactionScore: 70,
		InnovationScore:   60,
		TotalScore:        70,
		RequirementsMet:   2,
		Feedback:          "solid",
		Breakdown:         []domain.RequirementResult{{Requirement: "auth", Met: true}},
		FileTree:          []domain.TreeEntry{{Path: "main.go", Type: domain.EntryFile, Size: 10}},
		Frameworks:        []domain.Framework{{Name: "Gin", Category: domain.CategoryBackend}},
		DetailedReport:    "# Evaluation",
		EvaluatedAt:       now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// upsertSQL 匹配重新评审的 upsert，SET 子句不含 created_at
func upsertSQL() string {
	cols := []string{
		"repo_url", "team_name",
		"quality_score", "satisfaction_score", "innovation_score", "total_score",
		"requirements_met", "feedback", "breakdown", "placeholder",
		"file_tree", "frameworks", "build_verified", "detailed_report",
		"evaluated_at", "updated_at",
	}
	sets := make([]string, 0, len(cols))
	for _, c := range cols {
		sets = append(sets, `"`+c+`"="excluded"."`+c+`"`)
	}
	return regexp.QuoteMeta(`INSERT INTO "evaluations"`) + `.*` +
		regexp.QuoteMeta(`ON CONFLICT ("submission_id") DO UPDATE SET `+strings.Join(sets, ",")) + `$`
}

func TestPostgresRepo_SaveEvaluation(t *testing.T) {
	tests := []struct {
		name       string
		record     *domain.EvaluationRecord
		setupMock  func(sqlmock.Sqlmock)
		expectCode string
	}{
		{
			name:   "覆盖已有记录",
			record: sampleRecord("sub-1"),
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(upsertSQL()).
					WillReturnResult(sqlmock.NewResult(1, 1))
				mock.ExpectCommit()
			},
		},
		{
			name:   "数据库错误",
			record: sampleRecord("sub-2"),
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(upsertSQL()).
					WillReturnError(gorm.ErrInvalidDB)
				mock.ExpectRollback()
			},
			expectCode: common.ErrCodeDatabase,
		},
		{
			name:       "缺少 submission id",
			record:     &domain.EvaluationRecord{},
			expectCode: common.ErrCodeInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gormDB, mock, cleanup := setupMockDB(t)
			defer cleanup()

			if tt.setupMock != nil {
				tt.setupMock(mock)
			}

			repo := &PostgresRepo{db: gormDB}
			err := repo.SaveEvaluation(context.Background(), tt.record)

			if tt.expectCode != "" {
				assert.Error(t, err)
				assert.Equal(t, tt.expectCode, common.CodeOf(err))
			} else {
				assert.NoError(t, err)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresRepo_FindEvaluation(t *testing.T) {
	columns := []string{"submission_id", "repo_url", "team_name", "total_score", "breakdown", "file_tree", "frameworks", "detailed_report"}

	t.Run("找到记录并解码 JSON 列", func(t *testing.T) {
		gormDB, mock, cleanup := setupMockDB(t)
		defer cleanup()

		rows := sqlmock.NewRows(columns).AddRow(
			"sub-1", "https://github.com/team/app", "team", 88,
			`[{"requirement":"auth","met":true,"comment":"ok"}]`,
			`[{"path":"main.go","type":"file","size":10}]`,
			`[{"name":"Gin","category":"backend"}]`,
			"# Evaluation",
		)
		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "evaluations" WHERE submission_id = $1`)).
			WillReturnRows(rows)

		repo := &PostgresRepo{db: gormDB}
		rec, err := repo.FindEvaluation(context.Background(), "sub-1")
		require.NoError(t, err)

		assert.Equal(t, 88, rec.TotalScore)
		require.Len(t, rec.Breakdown, 1)
		assert.True(t, rec.Breakdown[0].Met)
		assert.Equal(t, "main.go", rec.FileTree[0].Path)
		assert.Equal(t, "Gin", rec.Frameworks[0].Name)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("记录不存在", func(t *testing.T) {
		gormDB, mock, cleanup := setupMockDB(t)
		defer cleanup()

		mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "evaluations"`)).
			WillReturnRows(sqlmock.NewRows(columns))

		repo := &PostgresRepo{db: gormDB}
		_, err := repo.FindEvaluation(context.Background(), "missing")
		assert.Equal(t, common.ErrCodeNotFound, common.CodeOf(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepo_TopEvaluations(t *testing.T) {
	gormDB, mock, cleanup := setupMockDB(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"submission_id", "total_score"}).
		AddRow("a", 90).
		AddRow("b", 75)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "evaluations" ORDER BY total_score DESC`)).
		WillReturnRows(rows)

	repo := &PostgresRepo{db: gormDB}
	recs, err := repo.TopEvaluations(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].SubmissionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
