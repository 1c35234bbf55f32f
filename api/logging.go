package api

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/convoycd/convoy/history"
	"github.com/convoycd/convoy/scheduler"
)

type Middleware func(Service) Service

// LoggingMiddleware logs every service call with its duration and
// error, if any.
func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next Service) Service {
		return &loggingService{logger: logger, next: next}
	}
}

type loggingService struct {
	logger log.Logger
	next   Service
}

func (s *loggingService) Run(ctx context.Context, spec RunSpec) (res scheduler.Result, err error) {
	defer func(begin time.Time) {
		s.logger.Log(
			"method", "Run",
			"ref", spec.Ref,
			"revision", spec.Revision,
			"status", res.Status,
			"took", time.Since(begin),
			"err", err,
		)
	}(time.Now())
	return s.next.Run(ctx, spec)
}

func (s *loggingService) Approve(ctx context.Context, jobName string) (err error) {
	defer func(begin time.Time) {
		s.logger.Log("method", "Approve", "job", jobName, "took", time.Since(begin), "err", err)
	}(time.Now())
	return s.next.Approve(ctx, jobName)
}

func (s *loggingService) Status(ctx context.Context) (Status, error) {
	return s.next.Status(ctx)
}

func (s *loggingService) History(ctx context.Context) ([]history.Event, error) {
	return s.next.History(ctx)
}

func (s *loggingService) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}
