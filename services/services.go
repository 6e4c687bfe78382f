package services

import (
	"github.com/casetrail/casetrail/repositories"
)

// Services holds all service instances
type Services struct {
	AuditLogger   AuditLogger
	AuditVerifier AuditVerifier
	AuditQuery    AuditQueryService
	Case          CaseService
	GDPR          GDPRService
}

// Options configures service construction.
type Options struct {
	Audit AuditLoggerOptions
}

// NewServices creates and initializes all service instances. The audit
// logger is built once here and handed to every service that emits events;
// nothing reaches it through global state.
func NewServices(repos *repositories.Repositories, opts Options) *Services {
	auditLogger := NewAuditLogger(repos.Audit, opts.Audit)

	return &Services{
		AuditLogger:   auditLogger,
		AuditVerifier: NewAuditVerifier(repos.Audit),
		AuditQuery:    NewAuditQueryService(repos.Audit),
		Case:          NewCaseService(repos.Case, auditLogger),
		GDPR:          NewGDPRService(repos.Case, auditLogger),
	}
}
