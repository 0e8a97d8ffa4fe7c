// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package services

import (
	"context"
	"fmt"
)

// QueueRunner is the worker loop of *tasks.Queue.
type QueueRunner interface {
	Run(ctx context.Context) error
}

// TaskQueueService runs the sync task queue worker under supervision.
//
// The worker sits in the sync layer next to the sync manager. On shutdown the
// running task's run is cancelled at its next checkpoint and the task goes
// back to pending.
type TaskQueueService struct {
	queue QueueRunner
	name  string
}

// NewTaskQueueService wraps queue.
func NewTaskQueueService(queue QueueRunner) *TaskQueueService {
	return &TaskQueueService{queue: queue, name: "task-queue"}
}

// Serve implements suture.Service.
func (s *TaskQueueService) Serve(ctx context.Context) error {
	if err := s.queue.Run(ctx); err != nil {
		return fmt.Errorf("task queue failed: %w", err)
	}
	return ctx.Err()
}

func (s *TaskQueueService) String() string {
	return s.name
}
