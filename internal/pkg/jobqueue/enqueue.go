package jobqueue

// Typed enqueue helpers for the job variants the queue knows about.

// EnqueueProvisionCreate queues first-time provisioning for a paid order.
func (q *Queue) EnqueueProvisionCreate(p ProvisionCreateJobPayload) (*Job, error) {
	return q.EnqueueJob(JobTypeProvisionCreate, p.ToMap())
}

// EnqueueProvisionExtend queues a renewal of an existing account.
func (q *Queue) EnqueueProvisionExtend(p ProvisionExtendJobPayload) (*Job, error) {
	return q.EnqueueJob(JobTypeProvisionExtend, p.ToMap())
}

// EnqueueProvisionSuspend queues suspension of an account.
func (q *Queue) EnqueueProvisionSuspend(p ProvisionSuspendJobPayload) (*Job, error) {
	return q.EnqueueJob(JobTypeProvisionSuspend, p.ToMap())
}

// EnqueuePlanChange queues completion of a plan change request. Satisfies
// planchange.Enqueuer.
func (q *Queue) EnqueuePlanChange(planChangeID uint) error {
	_, err := q.EnqueueJob(JobTypePlanChange, PlanChangeJobPayload{PlanChangeID: planChangeID}.ToMap())
	return err
}
