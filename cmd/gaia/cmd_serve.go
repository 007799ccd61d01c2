package main

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/spf13/cobra"

	httpadapter "github.com/couchcryptid/gaia-diary-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/gaia-diary-service/internal/adapter/kafka"
	"github.com/couchcryptid/gaia-diary-service/internal/pipeline"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and, when Kafka is enabled, the stage workers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		// A nil *NarrativeStage must not become a non-nil interface.
		var narrative httpadapter.NarrativeRunner
		if a.narrative != nil {
			narrative = a.narrative
		}
		latest := pipeline.NewNarrativeIndex(a.store, a.catalog, a.cfg.DiaryPrefix)
		api := httpadapter.NewAPI(a.diary, narrative, a.store, latest, a.catalog, a.logger)
		srv := httpadapter.NewServer(a.cfg.HTTPAddr, api, a.store, a.logger)

		var wg sync.WaitGroup
		var closers []func() error

		if a.cfg.KafkaEnabled {
			closers = a.startWorkers(ctx, &wg)
		} else {
			a.logger.Info("kafka workers disabled")
		}

		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("http server error", "error", err)
			}
		}()

		<-ctx.Done()
		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("http server shutdown error", "error", err)
		}
		wg.Wait()
		for _, c := range closers {
			if err := c(); err != nil {
				a.logger.Error("kafka close error", "error", err)
			}
		}

		a.logger.Info("shutdown complete")
		return nil
	},
}

// startWorkers runs the diary worker and, when text generation is enabled,
// the narrative worker. It returns the close funcs for their readers and writers.
func (a *app) startWorkers(ctx context.Context, wg *sync.WaitGroup) []func() error {
	cfg := a.cfg
	var closers []func() error

	run := func(w *pipeline.Worker) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				a.logger.Error("worker error", "error", err)
			}
		}()
	}

	diaryReader := kafkaadapter.NewReader(cfg.KafkaBrokers, cfg.KafkaDiaryRequestTopic, cfg.KafkaGroupID+"-diary", cfg.BatchFlushInterval, a.logger)
	diaryWriter := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaDiaryCreatedTopic, a.logger)
	closers = append(closers, diaryReader.Close, diaryWriter.Close)
	run(pipeline.NewWorker("diary", diaryReader, pipeline.NewDiaryTransformer(a.diary, a.clock), diaryWriter, a.logger, a.metrics, cfg.BatchSize))

	if a.narrative == nil {
		a.logger.Info("narrative worker disabled")
		return closers
	}

	narrativeReader := kafkaadapter.NewReader(cfg.KafkaBrokers, cfg.KafkaDiaryCreatedTopic, cfg.KafkaGroupID+"-narrative", cfg.BatchFlushInterval, a.logger)
	narrativeWriter := kafkaadapter.NewWriter(cfg.KafkaBrokers, cfg.KafkaNarrativeCreatedTopic, a.logger)
	closers = append(closers, narrativeReader.Close, narrativeWriter.Close)
	run(pipeline.NewWorker("narrative", narrativeReader, pipeline.NewNarrativeTransformer(a.narrative, a.clock), narrativeWriter, a.logger, a.metrics, cfg.BatchSize))

	return closers
}
