package repository

import (
	"context"
	"errors"
	"fmt"

	"github-repo-judge/internal/common"
	"github-repo-judge/internal/domain"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// PostgresRepo 实现了 port.Repository 接口
type PostgresRepo struct {
	db *gorm.DB
}

// NewPostgresRepo 初始化数据库连接并自动迁移表结构
func NewPostgresRepo(dsn string) (*PostgresRepo, error) {
	// 1. 连接数据库
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	// 2. 自动迁移 evaluations 表
	if err := db.AutoMigrate(&domain.EvaluationRecord{}); err != nil {
		return nil, fmt.Errorf("数据库迁移失败: %w", err)
	}

	return &PostgresRepo{db: db}, nil
}

// evaluationUpdateColumns 是重新评审时覆盖的列，created_at 保留首次写入的值
var evaluationUpdateColumns = []string{
	"repo_url", "team_name",
	"quality_score", "satisfaction_score", "innovation_score", "total_score",
	"requirements_met", "feedback", "breakdown", "placeholder",
	"file_tree", "frameworks", "build_verified", "detailed_report",
	"evaluated_at", "updated_at",
}

// SaveEvaluation 保存评审结果，同一 submission 的旧记录被覆盖 (Upsert)
func (r *PostgresRepo) SaveEvaluation(ctx context.Context, rec *domain.EvaluationRecord) error {
	if rec == nil || rec.SubmissionID == "" {
		return common.NewError(common.ErrCodeInvalidInput, "submission id is required")
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "submission_id"}},
		DoUpdates: clause.AssignmentColumns(evaluationUpdateColumns),
	}).Create(rec).Error
	if err != nil {
		return common.WrapError(common.ErrCodeDatabase, "保存评审结果失败", err)
	}
	return nil
}

// FindEvaluation 按 submission id 查询
func (r *PostgresRepo) FindEvaluation(ctx context.Context, submissionID string) (*domain.EvaluationRecord, error) {
	var rec domain.EvaluationRecord
	err := r.db.WithContext(ctx).Where("submission_id = ?", submissionID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.WrapError(common.ErrCodeNotFound, "评审结果不存在", err)
	}
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "查询评审结果失败", err)
	}
	return &rec, nil
}

// TopEvaluations 返回总分最高的 limit 条记录
func (r *PostgresRepo) TopEvaluations(ctx context.Context, limit int) ([]*domain.EvaluationRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	var recs []*domain.EvaluationRecord
	err := r.db.WithContext(ctx).
		Order("total_score DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, common.WrapError(common.ErrCodeDatabase, "查询排行榜失败", err)
	}
	return recs, nil
}

// Close 关闭底层连接池
func (r *PostgresRepo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
