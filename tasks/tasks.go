package tasks

import (
	"encoding/json"
	"fmt"

	"carelens.com/stitch/redis"
)

const (
	JobsDB  redis.DB = 0
	CacheDB redis.DB = 1
)

type TaskStatus string

const (
	TaskStatusSubmitted        TaskStatus = "submitted"
	TaskStatusStarted          TaskStatus = "started"
	TaskStatusCompletedSuccess TaskStatus = "completed - success"
	TaskStatusCompletedFailure TaskStatus = "completed - failure"
	TaskStatusCanceled         TaskStatus = "canceled"
)

func (s TaskStatus) Complete() bool {
	return s == TaskStatusCompletedSuccess || s == TaskStatusCompletedFailure || s == TaskStatusCanceled
}

// StitchTask is the shared job document for one stitch request. Other
// services own fields of the same document, so updates always go through a
// merge patch of only the fields listed here.
type StitchTask struct {
	PatientID      string     `json:"patient_id"`
	SourceFileKey  string     `json:"source_file_key"`
	ResultsFileKey string     `json:"results_file_key"`
	StartedAt      *string    `json:"started_at"`
	CompletedAt    *string    `json:"completed_at"`
	Attempts       int        `json:"attempts"`
	Status         TaskStatus `json:"status"`
	ErrorMessages  []string   `json:"error_messages"`
	UserCanceled   bool       `json:"user_canceled"`
}

type JobTasks struct {
	client redis.Client
}

func (tasks JobTasks) Get(redisKey string) (*StitchTask, error) {
	raw, ok, err := tasks.client.Get(redisKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no task found under %s", redisKey)
	}
	var task StitchTask
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("corrupt task document %s: %w", redisKey, err)
	}
	return &task, nil
}

// Update merge-patches the job document with the given fields.
func (tasks JobTasks) Update(redisKey string, patch interface{}) error {
	patchJSON, err := json.Marshal(patch)
	if err != nil {
		return err
	}
	return tasks.client.MergeUpdate(redisKey, patchJSON)
}

// ResultCache memoizes stitched results by input content hash. The core
// transform is pure, so a cache hit is always safe to reuse.
type ResultCache struct {
	client redis.Client
}

func cacheKey(contentHash uint64) string {
	return fmt.Sprintf("stitch-result:%016x", contentHash)
}

func (cache ResultCache) Get(contentHash uint64) ([]byte, bool, error) {
	return cache.client.Get(cacheKey(contentHash))
}

func (cache ResultCache) Put(contentHash uint64, result []byte) error {
	return cache.client.Set(cacheKey(contentHash), result, 0)
}

type Client struct {
	Jobs  JobTasks
	Cache ResultCache
}

// NewClient is the preferred way of working with task documents and the
// result cache.
func NewClient() (Client, error) {
	jobsClient, err := redis.NewClient(JobsDB)
	if err != nil {
		return Client{}, err
	}
	cacheClient, err := redis.NewClient(CacheDB)
	if err != nil {
		return Client{}, err
	}
	return Client{
		Jobs:  JobTasks{client: jobsClient},
		Cache: ResultCache{client: cacheClient},
	}, nil
}

func (client *Client) Close() {
	_ = client.Jobs.client.Close()
	_ = client.Cache.client.Close()
}
