package worker

import (
	"fmt"

	"carelens.com/stitch/s3client"
)

type s3Transactions interface {
	getPatientFile(task *Task) ([]byte, error)
	saveResultsFile(task *Task, results []byte) (string, error)
	close()
}

type s3ClientWrapper struct {
	client        *s3client.Client
	resultsPrefix string
}

func (wrapper *s3ClientWrapper) close() {
	wrapper.client.Close()
}

func (wrapper *s3ClientWrapper) getPatientFile(task *Task) ([]byte, error) {
	return wrapper.client.Download(task.stitchTask.SourceFileKey)
}

func (wrapper *s3ClientWrapper) saveResultsFile(task *Task, results []byte) (string, error) {
	resultsKey := fmt.Sprintf("%s/%s.json", wrapper.resultsPrefix, task.redisKey)
	if err := wrapper.client.Upload(resultsKey, results); err != nil {
		return "", err
	}
	return resultsKey, nil
}
