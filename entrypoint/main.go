package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"

	"carelens.com/stitch/api"
	"carelens.com/stitch/logger"
	"carelens.com/stitch/pipeline"
	"carelens.com/stitch/record"
	"carelens.com/stitch/stitch"
	"carelens.com/stitch/worker"
)

type Config struct {
	ProfilePath   string `envconfig:"STITCH_PROFILE_PATH" default:""`
	AssetsDir     string `envconfig:"STITCH_ASSETS_DIR" required:"true"`
	RestAPIActive bool   `envconfig:"STITCH_REST_API_ACTIVE" default:"false"`
	RestAPIPort   string `envconfig:"STITCH_REST_API_PORT" default:"10000"`
}

func main() {
	logger.SetupLogging()
	mainLogger := logger.NewLogger("Main")
	fatalErrLogger := mainLogger.Fatal().Caller()
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		fatalErrLogger.Err(err).Msg("Failed to read environment")
		os.Exit(1)
	}

	profile := stitch.DefaultProfile()
	if config.ProfilePath != "" {
		var err error
		profile, err = stitch.LoadProfile(config.ProfilePath)
		if err != nil {
			fatalErrLogger.Err(err).Msg("Failed to load stitch profile")
			os.Exit(1)
		}
		mainLogger.Info().Msgf("Loaded stitch profile from %s", config.ProfilePath)
	}

	assets, err := record.LoadAssets(config.AssetsDir)
	if err != nil {
		fatalErrLogger.Err(err).Msg("Failed to load reference assets")
		os.Exit(1)
	}
	mainLogger.Info().Msgf(
		"Loaded reference assets: %d locations, %d medications, %d organizations",
		len(assets.Locations), len(assets.Medications), len(assets.Organizations))

	ppln := pipeline.New(profile, assets, time.Now)

	if config.RestAPIActive {
		go func() {
			mainLogger.Info().Msg("Starting API service")
			apiRequest := &api.Request{
				Pipeline: ppln,
			}
			http.HandleFunc("/", apiRequest.ProcessData)
			host := fmt.Sprintf(":%s", config.RestAPIPort)
			mainLogger.Info().Msgf("REST API on %s", host)
			err := http.ListenAndServe(host, nil)
			fatalErrLogger.Err(err).Msg("REST API stopped with error")
		}()
	}

	mainLogger.Info().Msg("Starting stitch worker")
	for {
		rmqWorker, err := worker.New(ppln)
		if err != nil {
			mainLogger.Fatal().Err(err).Msg("Could not initialize RMQ worker")
			os.Exit(1)
		}
		if err = rmqWorker.StartWorker(); err != nil {
			mainLogger.Err(err).Msg("Worker returned with error. Launching new in 5 seconds")
			time.Sleep(5 * time.Second)
		}
	}
}
