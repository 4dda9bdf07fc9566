package worker

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"carelens.com/stitch/tasks"
	"carelens.com/stitch/utils"
)

type Message struct {
	WorkType string `json:"work_type"`
	RedisKey string `json:"redis_key"`
	Sender   string `json:"sender"`
	Version  string `json:"version"`
}

type Task struct {
	delivery   *amqp.Delivery
	stitchTask *tasks.StitchTask
	message    *Message
	redisKey   string
	log        *zerolog.Logger
}

func (worker *Worker) processMessage(delivery *amqp.Delivery) {
	task, err := worker.createTask(delivery)
	rejectLogger := worker.log.With().Str("message_id", delivery.MessageId).Logger()
	if err != nil {
		worker.log.Err(err).
			Str("message_id", delivery.MessageId).
			Str("tid", string(delivery.Body)).
			Msg("Failed to create task for delivery")
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.processTask(task); err != nil {
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.rmq.publishResult(task, *task.message); err != nil {
		task.log.Err(err).Msg("Got error while sending message to results queue")
		worker.rmq.rejectDelivery(delivery, &rejectLogger)
		return
	}
	if err = worker.rmq.acknowledgeDelivery(delivery); err != nil {
		task.log.Err(err).Msg("Failed to acknowledge delivery")
	}
	task.log.Info().Msg("Finished processing RMQ message")
}

func (worker *Worker) createTask(delivery *amqp.Delivery) (*Task, error) {
	var message Message
	err := json.Unmarshal(delivery.Body, &message)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal message, got error %w", err)
	}
	stitchTask, err := worker.redis.getTask(message.RedisKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query stitch task for message, got error %w", err)
	}
	taskLogger := worker.log.With().Str("tid", message.RedisKey).Logger()
	task := Task{
		delivery:   delivery,
		stitchTask: stitchTask,
		redisKey:   message.RedisKey,
		message:    &message,
		log:        &taskLogger,
	}
	return &task, nil
}

func (worker *Worker) processTask(task *Task) error {
	shouldPerform, err := worker.shouldPerformTask(task)
	if err != nil {
		task.log.Err(err).Msg("Got error while trying to decide whether to run task")
		return err
	}
	if !shouldPerform {
		return nil
	}
	if err = worker.redis.onTaskStarted(task); err != nil {
		task.log.Err(err).Msg("Failed to update task info")
		return fmt.Errorf("failed to update task info: %w", err)
	}
	resultsKey, err := worker.runPipeline(task)
	if err != nil {
		task.log.Err(err).Msg("Got error while running stitch pipeline")
		if err = worker.redis.onTaskFailedWithError(task, err); err != nil {
			return err
		}
		return nil
	}
	task.log.Info().Msg("Saved results, marking task as complete")
	if err = worker.redis.onTaskCompleted(task, resultsKey); err != nil {
		task.log.Err(err).Msg("Got error while trying to mark task as complete")
		return err
	}
	return nil
}

func (worker *Worker) runPipeline(task *Task) (resultsKey string, err error) {
	defer utils.RecoverWithError(&err)
	task.log.Info().Msgf("Processing message from RMQ, attempt # %d", task.stitchTask.Attempts)
	data, err := worker.s3.getPatientFile(task)
	if err != nil {
		task.log.Err(err).Caller().Msg("Could not fetch patient file from s3")
		return "", fmt.Errorf("failed to fetch patient file from s3: %w", err)
	}

	// The transform is pure, so results can be reused for identical input.
	contentHash := utils.HashBytes(data)
	results, cached, err := worker.redis.getCachedResult(contentHash)
	if err != nil {
		task.log.Err(err).Msg("Result cache lookup failed, running pipeline")
		cached = false
	}
	if !cached {
		results, err = worker.ppln(data)
		if err != nil {
			return "", err
		}
		if err := worker.redis.cacheResult(contentHash, results); err != nil {
			task.log.Err(err).Msg("Failed to store results in cache")
		}
	} else {
		task.log.Info().Msg("Reusing cached results for identical input")
	}

	task.log.Info().Msg("Finished pipeline, saving results to s3")
	resultsKey, err = worker.s3.saveResultsFile(task, results)
	if err != nil {
		task.log.Err(err).Msg("Got error while trying to save results")
		return "", err
	}
	return resultsKey, nil
}

func (worker *Worker) shouldPerformTask(task *Task) (bool, error) {
	taskLogger := task.log

	if task.stitchTask.Status.Complete() {
		taskLogger.Info().Msg("Task is already done (might indicate issue acking message with RMQ). Publishing result notice.")
		return false, nil
	}
	if task.stitchTask.UserCanceled {
		taskLogger.Info().Msg("Job was canceled, no need to perform this task")
		err := worker.redis.onTaskCancelled(task)
		return false, err
	}
	if task.stitchTask.Attempts >= worker.config.TaskMaxRetries {
		taskLogger.Info().Msg("Stitch task has exceeded retries")
		err := worker.redis.onTaskExceededRetries(task, worker.config.TaskMaxRetries)
		return false, err
	}
	return true, nil
}
