package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mautops/schedule-gin/internal/model"
	"github.com/mautops/schedule-gin/internal/repository"
	"gorm.io/datatypes"
)

// 审计动作
const (
	ActionCreateTask       = "create_task"
	ActionUpdateTask       = "update_task"
	ActionSetStatus        = "set_status"
	ActionDeleteTask       = "delete_task"
	ActionAddDependency    = "add_dependency"
	ActionRemoveDependency = "remove_dependency"
)

// AuditLogService 审计日志服务
type AuditLogService interface {
	RecordAction(ctx context.Context, scope Scope, action string, resourceType string, resourceID string, details interface{}) error
	ListByResource(scope Scope, resourceType string, resourceID string) ([]*model.AuditLogModel, error)
	ListByRequest(scope Scope, requestID string) ([]*model.AuditLogModel, error)
}

// auditLogService 审计日志服务实现
type auditLogService struct {
	auditRepo repository.AuditLogRepository
}

// NewAuditLogService 创建审计日志服务
func NewAuditLogService(auditRepo repository.AuditLogRepository) AuditLogService {
	return &auditLogService{
		auditRepo: auditRepo,
	}
}

// RecordAction 记录操作审计日志
func (s *auditLogService) RecordAction(
	ctx context.Context,
	scope Scope,
	action string,
	resourceType string,
	resourceID string,
	details interface{},
) error {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return err
	}

	auditLog := &model.AuditLogModel{
		ID:             uuid.New().String(),
		OrganizationID: scope.OrganizationID,
		UserID:         scope.operator(),
		Action:         action,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		RequestID:      GetRequestID(ctx),
		IP:             GetClientIP(ctx),
		UserAgent:      GetUserAgent(ctx),
		Details:        datatypes.JSON(detailsJSON),
		CreatedAt:      time.Now().UTC(),
	}

	return s.auditRepo.Save(auditLog)
}

// ListByResource 查询资源的审计日志
func (s *auditLogService) ListByResource(scope Scope, resourceType string, resourceID string) ([]*model.AuditLogModel, error) {
	return s.auditRepo.FindByResource(scope.OrganizationID, resourceType, resourceID)
}

// ListByRequest 查询一次请求产生的审计日志
func (s *auditLogService) ListByRequest(scope Scope, requestID string) ([]*model.AuditLogModel, error) {
	return s.auditRepo.FindByRequestID(scope.OrganizationID, requestID)
}
