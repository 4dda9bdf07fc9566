package worker

import (
	"errors"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"

	"carelens.com/stitch/tasks"
)

type failingMethod struct {
	fail bool
}

type withValue struct {
	fail          bool
	returnedValue interface{}
}

type pipelineMock struct {
	config pipelineMockConfig
	calls  pipelineCall
}

type pipelineMockConfig struct {
	fail   bool
	result string
}

type pipelineCall struct {
	pipeline bool
}

func (mock *pipelineMock) ppln(data []byte) ([]byte, error) {
	mock.calls.pipeline = true
	if mock.config.fail {
		return nil, errors.New("pipeline failed")
	}
	return []byte(mock.config.result), nil
}

type redisMock struct {
	config redisMockConfig
	calls  redisMockCalls
}

type redisMockConfig struct {
	getTask               withValue
	onTaskStarted         failingMethod
	onTaskCompleted       failingMethod
	onTaskFailedWithError failingMethod
	onTaskCancelled       failingMethod
	onTaskExceededRetries failingMethod
	getCachedResult       withValue
	cacheResult           failingMethod
}

type redisMockCalls struct {
	getTask               bool
	onTaskStarted         bool
	onTaskCompleted       bool
	onTaskFailedWithError bool
	onTaskCancelled       bool
	onTaskExceededRetries bool
	getCachedResult       bool
	cacheResult           bool
}

func (mock *redisMock) close() {}

func (mock *redisMock) getTask(redisKey string) (*tasks.StitchTask, error) {
	mock.calls.getTask = true
	if mock.config.getTask.fail {
		return nil, errors.New("failed to get stitch task")
	}
	switch task := mock.config.getTask.returnedValue.(type) {
	case tasks.StitchTask:
		return &task, nil
	default:
		return &tasks.StitchTask{}, nil
	}
}

func (mock *redisMock) onTaskStarted(task *Task) error {
	mock.calls.onTaskStarted = true
	if mock.config.onTaskStarted.fail {
		return errors.New("failed to update stitch task on start")
	}
	return nil
}

func (mock *redisMock) onTaskCompleted(task *Task, resultsKey string) error {
	mock.calls.onTaskCompleted = true
	if mock.config.onTaskCompleted.fail {
		return errors.New("failed to update stitch task on complete")
	}
	return nil
}

func (mock *redisMock) onTaskFailedWithError(task *Task, taskErr error) error {
	mock.calls.onTaskFailedWithError = true
	if mock.config.onTaskFailedWithError.fail {
		return errors.New("failed to update stitch task on fail with error")
	}
	return nil
}

func (mock *redisMock) onTaskCancelled(task *Task) error {
	mock.calls.onTaskCancelled = true
	if mock.config.onTaskCancelled.fail {
		return errors.New("failed to update stitch task on cancel")
	}
	return nil
}

func (mock *redisMock) onTaskExceededRetries(task *Task, maxRetries int) error {
	mock.calls.onTaskExceededRetries = true
	if mock.config.onTaskExceededRetries.fail {
		return errors.New("failed to update stitch task on exceeded retries")
	}
	return nil
}

func (mock *redisMock) getCachedResult(contentHash uint64) ([]byte, bool, error) {
	mock.calls.getCachedResult = true
	if mock.config.getCachedResult.fail {
		return nil, false, errors.New("failed to query result cache")
	}
	switch cached := mock.config.getCachedResult.returnedValue.(type) {
	case string:
		return []byte(cached), true, nil
	default:
		return nil, false, nil
	}
}

func (mock *redisMock) cacheResult(contentHash uint64, results []byte) error {
	mock.calls.cacheResult = true
	if mock.config.cacheResult.fail {
		return errors.New("failed to store result in cache")
	}
	return nil
}

type rmqMock struct {
	config rmqMockConfig
	calls  rmqMockCalls
}

type rmqMockConfig struct {
	publishResult       failingMethod
	acknowledgeDelivery failingMethod
}

type rmqMockCalls struct {
	publishResult       bool
	acknowledgeDelivery bool
	rejectDelivery      bool
}

func (mock *rmqMock) close() {}

func (mock *rmqMock) getDeliveriesCh() <-chan amqp.Delivery {
	return nil
}

func (mock *rmqMock) getConsumeErrorsCh() <-chan *amqp.Error {
	return nil
}

func (mock *rmqMock) getPublishErrorsCh() <-chan *amqp.Error {
	return nil
}

func (mock *rmqMock) publishResult(task *Task, message Message) error {
	mock.calls.publishResult = true
	if mock.config.publishResult.fail {
		return errors.New("failed to publish result notice")
	}
	return nil
}

func (mock *rmqMock) acknowledgeDelivery(delivery *amqp.Delivery) error {
	mock.calls.acknowledgeDelivery = true
	if mock.config.acknowledgeDelivery.fail {
		return errors.New("failed to acknowledge delivery")
	}
	return nil
}

func (mock *rmqMock) rejectDelivery(delivery *amqp.Delivery, log *zerolog.Logger) {
	mock.calls.rejectDelivery = true
}

type s3Mock struct {
	config s3MockConfig
	calls  s3MockCalls
}

type s3MockConfig struct {
	getPatientFile  withValue
	saveResultsFile failingMethod
}

type s3MockCalls struct {
	getPatientFile  bool
	saveResultsFile bool
}

func (mock *s3Mock) close() {}

func (mock *s3Mock) getPatientFile(task *Task) ([]byte, error) {
	mock.calls.getPatientFile = true
	if mock.config.getPatientFile.fail {
		return nil, errors.New("failed to fetch patient file")
	}
	switch data := mock.config.getPatientFile.returnedValue.(type) {
	case string:
		return []byte(data), nil
	default:
		return []byte("{}"), nil
	}
}

func (mock *s3Mock) saveResultsFile(task *Task, results []byte) (string, error) {
	mock.calls.saveResultsFile = true
	if mock.config.saveResultsFile.fail {
		return "", errors.New("failed to save results file")
	}
	return "stitched/test.json", nil
}
