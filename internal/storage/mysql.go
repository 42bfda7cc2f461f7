package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"recruit-agent-go/internal/config"
	"recruit-agent-go/internal/storage/models"
	"recruit-agent-go/internal/tracing"
)

var mysqlTracer = otel.Tracer("recruit-agent-go/storage/mysql")

type gormSpanKey struct{}

// GormTracingPlugin GORM插件，为数据库操作创建OpenTelemetry追踪点
type GormTracingPlugin struct {
	tracer   trace.Tracer
	dbName   string
	dbSystem string
}

// NewGormTracingPlugin 创建一个新的GORM追踪插件
func NewGormTracingPlugin(dbName string) *GormTracingPlugin {
	return &GormTracingPlugin{
		tracer:   mysqlTracer,
		dbName:   dbName,
		dbSystem: "mysql",
	}
}

// Name 返回插件名称
func (p *GormTracingPlugin) Name() string {
	return "GormOpenTelemetryPlugin"
}

// Initialize 注册GORM回调以启用追踪
func (p *GormTracingPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()

	if err := cb.Create().Before("gorm:create").Register("otel:before_create", p.before("CREATE")); err != nil {
		return err
	}
	if err := cb.Create().After("gorm:create").Register("otel:after_create", p.after()); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("otel:before_query", p.before("SELECT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("otel:after_query", p.after()); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("otel:before_update", p.before("UPDATE")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("otel:after_update", p.after()); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("otel:before_delete", p.before("DELETE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("otel:after_delete", p.after()); err != nil {
		return err
	}

	return nil
}

// before 返回在GORM操作之前执行的回调函数
func (p *GormTracingPlugin) before(operation string) func(db *gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}

		tableName := db.Statement.Table
		if tableName == "" {
			tableName = "unknown"
		}

		spanName := fmt.Sprintf("%s %s", operation, tableName)
		newCtx, span := p.tracer.Start(ctx, spanName,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.DBSystemMySQL,
				attribute.String("db.name", p.dbName),
				attribute.String("db.operation", operation),
				attribute.String("db.sql.table", tableName),
			),
		)

		// 将span保存在DB上下文中，供after回调取出
		db.Statement.Context = context.WithValue(newCtx, gormSpanKey{}, span)
	}
}

// after 返回在GORM操作之后执行的回调函数
func (p *GormTracingPlugin) after() func(db *gorm.DB) {
	return func(db *gorm.DB) {
		span, ok := db.Statement.Context.Value(gormSpanKey{}).(trace.Span)
		if !ok {
			return
		}
		defer span.End()

		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if sql := db.Statement.SQL.String(); sql != "" {
			span.SetAttributes(attribute.String("db.statement", tracing.SafeSQL(sql)))
		}

		// ErrRecordNotFound 是业务正常分支，不按错误上报
		if db.Error != nil {
			if errors.Is(db.Error, gorm.ErrRecordNotFound) {
				span.SetAttributes(attribute.String("error.type", "record_not_found"))
				span.SetStatus(codes.Ok, "record not found")
			} else {
				tracing.RecordError(span, db.Error, tracing.ErrorTypeDB)
			}
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}
}

// MySQL 提供关系数据库功能
type MySQL struct {
	db  *gorm.DB
	cfg *config.MySQLConfig
}

// NewMySQL 创建MySQL客户端并自动迁移表结构
func NewMySQL(cfg *config.MySQLConfig) (*MySQL, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MySQL配置不能为空")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%ds&readTimeout=%ds&writeTimeout=%ds",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.Database,
		cfg.ConnectTimeoutSeconds, cfg.ReadTimeoutSeconds, cfg.WriteTimeoutSeconds)

	var logLevel gormlogger.LogLevel
	switch cfg.LogLevel {
	case 1:
		logLevel = gormlogger.Silent
	case 2:
		logLevel = gormlogger.Error
	case 3:
		logLevel = gormlogger.Warn
	default:
		logLevel = gormlogger.Info
	}

	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(logLevel),
		PrepareStmt:                              true,
	}

	db, err := gorm.Open(mysql.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("连接MySQL失败: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取底层 sql.DB 失败: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	if err := db.Use(NewGormTracingPlugin(cfg.Database)); err != nil {
		return nil, fmt.Errorf("注册追踪插件失败: %w", err)
	}

	m := &MySQL{db: db, cfg: cfg}
	if err := m.autoMigrateSchema(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("自动迁移数据库结构失败: %w", err)
	}

	log.Println("成功连接到MySQL并自动迁移数据库结构")
	return m, nil
}

// autoMigrateSchema 使用GORM自动迁移数据库表结构
func (m *MySQL) autoMigrateSchema() error {
	return m.db.AutoMigrate(
		&models.Candidate{},
		&models.Job{},
		&models.Application{},
		&models.OutboxMessage{},
	)
}

// DB 返回GORM数据库连接实例
func (m *MySQL) DB() *gorm.DB {
	return m.db
}

// Close 关闭数据库连接
func (m *MySQL) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

//
// 候选人相关操作
//

// FindCandidateByFilename 按规范化文件名查找候选人，未找到时返回 (nil, nil)
func (m *MySQL) FindCandidateByFilename(ctx context.Context, normalizedFilename string) (*models.Candidate, error) {
	var candidate models.Candidate
	err := m.db.WithContext(ctx).
		Where("filename = ?", normalizedFilename).
		First(&candidate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("按文件名查询候选人失败: %w", err)
	}
	return &candidate, nil
}

// CreateCandidateWithEvent 在同一事务中插入候选人记录和outbox事件。
// 事件为nil时仅插入候选人。
func (m *MySQL) CreateCandidateWithEvent(ctx context.Context, candidate *models.Candidate, event *models.OutboxMessage) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(candidate).Error; err != nil {
			return fmt.Errorf("插入候选人记录失败: %w", err)
		}
		if event != nil {
			if err := tx.Create(event).Error; err != nil {
				return fmt.Errorf("写入outbox事件失败: %w", err)
			}
		}
		return nil
	})
}

// GetCandidate 按ID获取候选人
func (m *MySQL) GetCandidate(ctx context.Context, candidateID string) (*models.Candidate, error) {
	var candidate models.Candidate
	err := m.db.WithContext(ctx).
		Where("candidate_id = ?", candidateID).
		First(&candidate).Error
	if err != nil {
		return nil, err
	}
	return &candidate, nil
}

// ListCandidates 分页列出候选人，jobID非空时按岗位过滤
func (m *MySQL) ListCandidates(ctx context.Context, jobID string, page, size int) ([]models.Candidate, int64, error) {
	query := m.db.WithContext(ctx).Model(&models.Candidate{})
	if jobID != "" {
		query = query.Where("job_id = ?", jobID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计候选人总数失败: %w", err)
	}

	var candidates []models.Candidate
	err := query.Order("created_at desc").
		Offset((page - 1) * size).
		Limit(size).
		Find(&candidates).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询候选人列表失败: %w", err)
	}
	return candidates, total, nil
}

// DeleteCandidate 按ID删除候选人
func (m *MySQL) DeleteCandidate(ctx context.Context, candidateID string) error {
	result := m.db.WithContext(ctx).
		Where("candidate_id = ?", candidateID).
		Delete(&models.Candidate{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

//
// 岗位相关操作
//

// CreateJob 插入岗位记录
func (m *MySQL) CreateJob(ctx context.Context, job *models.Job) error {
	return m.db.WithContext(ctx).Create(job).Error
}

// GetJob 按ID获取岗位
func (m *MySQL) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	var job models.Job
	if err := m.db.WithContext(ctx).Where("job_id = ?", jobID).First(&job).Error; err != nil {
		return nil, err
	}
	return &job, nil
}

// ListJobs 分页列出岗位，status非空时按状态过滤
func (m *MySQL) ListJobs(ctx context.Context, status string, page, size int) ([]models.Job, int64, error) {
	query := m.db.WithContext(ctx).Model(&models.Job{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计岗位总数失败: %w", err)
	}

	var jobs []models.Job
	err := query.Order("created_at desc").
		Offset((page - 1) * size).
		Limit(size).
		Find(&jobs).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询岗位列表失败: %w", err)
	}
	return jobs, total, nil
}

// UpdateJob 按ID更新岗位的给定字段
func (m *MySQL) UpdateJob(ctx context.Context, jobID string, updates map[string]interface{}) (*models.Job, error) {
	result := m.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("job_id = ?", jobID).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return m.GetJob(ctx, jobID)
}

// DeleteJob 按ID删除岗位
func (m *MySQL) DeleteJob(ctx context.Context, jobID string) error {
	result := m.db.WithContext(ctx).Where("job_id = ?", jobID).Delete(&models.Job{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

//
// 投递相关操作
//

// CreateApplication 插入投递记录
func (m *MySQL) CreateApplication(ctx context.Context, application *models.Application) error {
	return m.db.WithContext(ctx).Create(application).Error
}

// GetApplication 按ID获取投递
func (m *MySQL) GetApplication(ctx context.Context, applicationID string) (*models.Application, error) {
	var application models.Application
	if err := m.db.WithContext(ctx).Where("application_id = ?", applicationID).First(&application).Error; err != nil {
		return nil, err
	}
	return &application, nil
}

// ListApplications 分页列出投递，jobID/candidateID/status非空时按条件过滤
func (m *MySQL) ListApplications(ctx context.Context, jobID, candidateID, status string, page, size int) ([]models.Application, int64, error) {
	query := m.db.WithContext(ctx).Model(&models.Application{})
	if jobID != "" {
		query = query.Where("job_id = ?", jobID)
	}
	if candidateID != "" {
		query = query.Where("candidate_id = ?", candidateID)
	}
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计投递总数失败: %w", err)
	}

	var applications []models.Application
	err := query.Order("applied_at desc").
		Offset((page - 1) * size).
		Limit(size).
		Find(&applications).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询投递列表失败: %w", err)
	}
	return applications, total, nil
}

// UpdateApplication 按ID更新投递的给定字段
func (m *MySQL) UpdateApplication(ctx context.Context, applicationID string, updates map[string]interface{}) (*models.Application, error) {
	result := m.db.WithContext(ctx).
		Model(&models.Application{}).
		Where("application_id = ?", applicationID).
		Updates(updates)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return m.GetApplication(ctx, applicationID)
}

// DeleteApplication 按ID删除投递
func (m *MySQL) DeleteApplication(ctx context.Context, applicationID string) error {
	result := m.db.WithContext(ctx).Where("application_id = ?", applicationID).Delete(&models.Application{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
