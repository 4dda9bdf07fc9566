package api

import (
	"io/ioutil"
	"net/http"

	"carelens.com/stitch/pipeline"
)

type Request struct {
	Pipeline pipeline.Pipeline
}

// ProcessData stitches a patient record posted as the request body. The
// endpoint exists for local runs and smoke tests, production traffic arrives
// through the task queue.
func (req *Request) ProcessData(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	logger := makeRequestLogger(r)

	if r.Method != "POST" {
		logger.Err(nil).Int("status", http.StatusMethodNotAllowed).Msg("Only 'POST' method is allowed here")
		http.Error(w, "", http.StatusMethodNotAllowed)
		return
	}

	msg, err := ioutil.ReadAll(r.Body)
	if err != nil {
		logger.Err(err).Int("status", http.StatusBadRequest).Msg("Could not read request body")
		http.Error(w, "", http.StatusBadRequest)
		return
	}

	logger.Info().Msg("Starting pipeline for request from API")
	resp, err := req.Pipeline(msg)
	if err != nil {
		logger.Err(err).Int("status", http.StatusUnprocessableEntity).Msg("Pipeline failed for request")
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	_, _ = w.Write(resp)
	logger.Info().Int("status", http.StatusOK).Msg("Finished processing request")
}
