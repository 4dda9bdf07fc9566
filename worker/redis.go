package worker

import (
	"fmt"
	"time"

	"carelens.com/stitch/tasks"
)

type redisTransactions interface {
	getTask(redisKey string) (*tasks.StitchTask, error)
	onTaskStarted(task *Task) error
	onTaskCompleted(task *Task, resultsKey string) error
	onTaskFailedWithError(task *Task, taskErr error) error
	onTaskCancelled(task *Task) error
	onTaskExceededRetries(task *Task, maxRetries int) error
	getCachedResult(contentHash uint64) ([]byte, bool, error)
	cacheResult(contentHash uint64, results []byte) error
	close()
}

type redisClientWrapper struct {
	client *tasks.Client
}

func timestampNow() *string {
	now := time.Now().UTC().Format(time.RFC3339)
	return &now
}

func (wrapper *redisClientWrapper) getTask(redisKey string) (*tasks.StitchTask, error) {
	return wrapper.client.Jobs.Get(redisKey)
}

func (wrapper *redisClientWrapper) onTaskStarted(task *Task) error {
	patch := struct {
		Status    tasks.TaskStatus `json:"status"`
		StartedAt *string          `json:"started_at"`
		Attempts  int              `json:"attempts"`
	}{
		Status:    tasks.TaskStatusStarted,
		StartedAt: timestampNow(),
		Attempts:  task.stitchTask.Attempts + 1,
	}
	task.stitchTask.Attempts++
	return wrapper.client.Jobs.Update(task.redisKey, patch)
}

func (wrapper *redisClientWrapper) onTaskCompleted(task *Task, resultsKey string) error {
	patch := struct {
		Status         tasks.TaskStatus `json:"status"`
		CompletedAt    *string          `json:"completed_at"`
		ResultsFileKey string           `json:"results_file_key"`
	}{
		Status:         tasks.TaskStatusCompletedSuccess,
		CompletedAt:    timestampNow(),
		ResultsFileKey: resultsKey,
	}
	return wrapper.client.Jobs.Update(task.redisKey, patch)
}

func (wrapper *redisClientWrapper) onTaskFailedWithError(task *Task, taskErr error) error {
	patch := struct {
		Status        tasks.TaskStatus `json:"status"`
		CompletedAt   *string          `json:"completed_at"`
		ErrorMessages []string         `json:"error_messages"`
	}{
		Status:        tasks.TaskStatusCompletedFailure,
		CompletedAt:   timestampNow(),
		ErrorMessages: append(task.stitchTask.ErrorMessages, taskErr.Error()),
	}
	return wrapper.client.Jobs.Update(task.redisKey, patch)
}

func (wrapper *redisClientWrapper) onTaskCancelled(task *Task) error {
	patch := struct {
		Status      tasks.TaskStatus `json:"status"`
		CompletedAt *string          `json:"completed_at"`
	}{
		Status:      tasks.TaskStatusCanceled,
		CompletedAt: timestampNow(),
	}
	return wrapper.client.Jobs.Update(task.redisKey, patch)
}

func (wrapper *redisClientWrapper) onTaskExceededRetries(task *Task, maxRetries int) error {
	patch := struct {
		Status        tasks.TaskStatus `json:"status"`
		CompletedAt   *string          `json:"completed_at"`
		ErrorMessages []string         `json:"error_messages"`
	}{
		Status:      tasks.TaskStatusCompletedFailure,
		CompletedAt: timestampNow(),
		ErrorMessages: append(
			task.stitchTask.ErrorMessages,
			fmt.Sprintf("task has exceeded the maximum retry count of %d", maxRetries),
		),
	}
	return wrapper.client.Jobs.Update(task.redisKey, patch)
}

func (wrapper *redisClientWrapper) getCachedResult(contentHash uint64) ([]byte, bool, error) {
	return wrapper.client.Cache.Get(contentHash)
}

func (wrapper *redisClientWrapper) cacheResult(contentHash uint64, results []byte) error {
	return wrapper.client.Cache.Put(contentHash, results)
}

func (wrapper *redisClientWrapper) close() {
	wrapper.client.Close()
}
