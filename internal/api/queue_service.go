package api

import (
	"context"
	"strings"

	"scribe/internal/queue"
	"scribe/internal/services"
)

// QueueReader exposes the queue lookups the API layer needs.
type QueueReader interface {
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error)
	GetByID(ctx context.Context, id int64) (*queue.Job, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
}

// QueueService adapts queue storage into API payloads.
type QueueService struct {
	reader QueueReader
}

// NewQueueService builds a QueueService around the provided reader.
func NewQueueService(reader QueueReader) *QueueService {
	return &QueueService{reader: reader}
}

// List returns queue items, optionally filtered by status.
func (s *QueueService) List(ctx context.Context, statuses ...queue.Status) ([]Job, error) {
	if s == nil || s.reader == nil {
		return nil, nil
	}
	jobs, err := s.reader.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// Get returns a single queue item by identifier.
func (s *QueueService) Get(ctx context.Context, id int64) (*Job, error) {
	if s == nil || s.reader == nil {
		return nil, nil
	}
	job, err := s.reader.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	item := FromJob(job)
	return &item, nil
}

// Stats returns queue counts keyed by status string.
func (s *QueueService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.reader == nil {
		return map[string]int{}, nil
	}
	stats, err := s.reader.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return QueueStatsMap(stats), nil
}

// Validate checks the submission envelope. The file name is the only
// mandatory field; everything else has a daemon-side default.
func (r SubmitRequest) Validate() error {
	if strings.TrimSpace(r.Input.FileName) == "" {
		return services.Wrap(services.ErrValidation, "api", "submit", "file_name is required", nil)
	}
	if origin := strings.TrimSpace(r.Input.Origin); origin != "" {
		if _, ok := queue.ParseOrigin(origin); !ok {
			return services.Wrap(services.ErrValidation, "api", "submit", "unknown origin "+origin, nil)
		}
	}
	return nil
}

// Origin resolves the submission origin, defaulting to S3 object keys.
func (r SubmitRequest) Origin() queue.Origin {
	if origin, ok := queue.ParseOrigin(r.Input.Origin); ok {
		return origin
	}
	return queue.OriginS3
}

// JobOptions extracts the queue options carried by the envelope.
func (r SubmitRequest) JobOptions() queue.JobOptions {
	return queue.JobOptions{
		Model:    strings.TrimSpace(r.Input.ModelSize),
		Language: strings.TrimSpace(r.Input.Language),
		Align:    r.Input.Align,
	}
}
