package pool

import "context"

// Service is the job-submission surface of Pool.
type Service interface {
	Start()
	Stop()
	Close() error
	Submit(job *Job) error
	SubmitBlocking(ctx context.Context, job *Job) error
	Stats() Stats
}
