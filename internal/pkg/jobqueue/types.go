package jobqueue

import (
	"encoding/json"
	"time"

	"github.com/streamvault/streamvault/internal/pkg/provisioning"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeProvisionCreate  JobType = "provision_create"
	JobTypeProvisionExtend  JobType = "provision_extend"
	JobTypeProvisionSuspend JobType = "provision_suspend"
	JobTypePlanChange       JobType = "plan_change"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job. Attempts counts finished attempts; the
// attempt currently running is Attempts+1.
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	Attempts    int                    `json:"attempts"`
	MaxAttempts int                    `json:"max_attempts"`
}

// ProvisionCreateJobPayload identifies the rows a create job works on.
type ProvisionCreateJobPayload struct {
	OrderID        uint `json:"order_id"`
	SubscriptionID uint `json:"subscription_id"`
	UserID         uint `json:"user_id"`
	PlanID         uint `json:"plan_id"`
}

// ToMap converts the payload to a map for storage
func (p ProvisionCreateJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"order_id":        p.OrderID,
		"subscription_id": p.SubscriptionID,
		"user_id":         p.UserID,
		"plan_id":         p.PlanID,
	}
}

// ProvisionCreateJobPayloadFromMap creates a payload from a map
func ProvisionCreateJobPayloadFromMap(data map[string]interface{}) (*ProvisionCreateJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ProvisionCreateJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// ProvisionExtendJobPayload identifies the rows an extend job works on.
// OrderID is nil for extensions not backed by a payment.
type ProvisionExtendJobPayload struct {
	SubscriptionID   uint  `json:"subscription_id"`
	ServiceAccountID uint  `json:"service_account_id"`
	PlanID           uint  `json:"plan_id"`
	OrderID          *uint `json:"order_id,omitempty"`
}

// ToMap converts the payload to a map for storage
func (p ProvisionExtendJobPayload) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"subscription_id":    p.SubscriptionID,
		"service_account_id": p.ServiceAccountID,
		"plan_id":            p.PlanID,
	}
	if p.OrderID != nil {
		m["order_id"] = *p.OrderID
	}
	return m
}

// ProvisionExtendJobPayloadFromMap creates a payload from a map
func ProvisionExtendJobPayloadFromMap(data map[string]interface{}) (*ProvisionExtendJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ProvisionExtendJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// ProvisionSuspendJobPayload identifies the rows a suspend job works on.
type ProvisionSuspendJobPayload struct {
	SubscriptionID   uint `json:"subscription_id"`
	ServiceAccountID uint `json:"service_account_id"`
}

// ToMap converts the payload to a map for storage
func (p ProvisionSuspendJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"subscription_id":    p.SubscriptionID,
		"service_account_id": p.ServiceAccountID,
	}
}

// ProvisionSuspendJobPayloadFromMap creates a payload from a map
func ProvisionSuspendJobPayloadFromMap(data map[string]interface{}) (*ProvisionSuspendJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload ProvisionSuspendJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// PlanChangeJobPayload identifies the plan change to complete.
type PlanChangeJobPayload struct {
	PlanChangeID uint `json:"plan_change_id"`
}

// ToMap converts the payload to a map for storage
func (p PlanChangeJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"plan_change_id": p.PlanChangeID,
	}
}

// PlanChangeJobPayloadFromMap creates a payload from a map
func PlanChangeJobPayloadFromMap(data map[string]interface{}) (*PlanChangeJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload PlanChangeJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.Attempts < j.MaxAttempts
}

// NextBackoff returns the delay before re-dispatching this job.
func (j *Job) NextBackoff() time.Duration {
	return provisioning.BackoffDelay(j.Attempts)
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed records a finished, unsuccessful attempt
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.Attempts++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
