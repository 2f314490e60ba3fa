package repository

import (
	"github.com/mautops/schedule-gin/internal/model"
	"gorm.io/gorm"
)

// AuditLogRepository 审计日志仓储接口,查询均限定组织
type AuditLogRepository interface {
	Save(log *model.AuditLogModel) error
	FindByResource(orgID, resourceType, resourceID string) ([]*model.AuditLogModel, error)
	FindByRequestID(orgID, requestID string) ([]*model.AuditLogModel, error)
}

type auditLogRepository struct {
	db *gorm.DB
}

// NewAuditLogRepository 创建审计日志仓储
func NewAuditLogRepository(db *gorm.DB) AuditLogRepository {
	return &auditLogRepository{db: db}
}

// Save 保存审计日志
func (r *auditLogRepository) Save(log *model.AuditLogModel) error {
	if err := log.Validate(); err != nil {
		return err
	}
	return r.db.Create(log).Error
}

// FindByResource 按资源查询,按时间正序
func (r *auditLogRepository) FindByResource(orgID, resourceType, resourceID string) ([]*model.AuditLogModel, error) {
	var logs []*model.AuditLogModel
	err := r.db.Where("organization_id = ? AND resource_type = ? AND resource_id = ?", orgID, resourceType, resourceID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}

// FindByRequestID 查询同一请求产生的审计日志
func (r *auditLogRepository) FindByRequestID(orgID, requestID string) ([]*model.AuditLogModel, error) {
	var logs []*model.AuditLogModel
	err := r.db.Where("organization_id = ? AND request_id = ?", orgID, requestID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}
