package main

import (
	"context"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"loan-schedule-engine/internal/batch"
	"loan-schedule-engine/internal/config"
	"loan-schedule-engine/internal/domain/loan"
	"loan-schedule-engine/internal/infrastructure/logging"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noActiveLoans struct{}

func (noActiveLoans) ListActiveLoanIDs(context.Context) ([]int64, error) { return nil, nil }

type noopRecalculator struct{}

func (noopRecalculator) RecalculateSchedule(context.Context, int64) (*loan.ScheduleSnapshot, error) {
	return nil, nil
}

func TestInitializeApp(t *testing.T) {
	cfg, log := initializeApp()

	assert.NotNil(t, cfg, "Config should not be nil")
	assert.NotNil(t, log, "Logger should not be nil")
}

func TestInitializeMathContext(t *testing.T) {
	cfg := &config.Config{Engine: config.EngineConfig{Precision: 34, RoundingMode: "HALF_EVEN"}}

	mc := initializeMathContext(cfg, logging.NewLogger(config.LoggerConfig{}))

	assert.Equal(t, int32(34), mc.Precision())
	assert.Equal(t, "HALF_EVEN", mc.Mode().String())
}

func TestRabbitMQURI(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.RabbitMQConfig
		want    string
		wantErr bool
	}{
		{"with credentials", config.RabbitMQConfig{Host: "mq", Port: 5673, Username: "u", Password: "p"}, "amqp://u:p@mq:5673/", false},
		{"default port", config.RabbitMQConfig{Host: "mq"}, "amqp://mq:5672/", false},
		{"missing host", config.RabbitMQConfig{}, "", true},
		{"username without password", config.RabbitMQConfig{Host: "mq", Username: "u"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rabbitMQURI(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStartBatchJobs(t *testing.T) {
	logger := logging.NewLogger(config.LoggerConfig{})
	job := batch.NewRecalculateSchedulesJob(noActiveLoans{}, noopRecalculator{}, 1, logger)

	t.Run("uses configured schedule", func(t *testing.T) {
		cfg := &config.Config{Batch: config.BatchConfig{RecalculationSchedule: "*/5 * * * *", RecalculationTimeout: time.Minute}}

		c := startBatchJobs(cfg, logger, job)
		defer c.Stop()

		assert.Len(t, c.Entries(), 1)
	})

	t.Run("falls back to the default schedule", func(t *testing.T) {
		c := startBatchJobs(&config.Config{}, logger, job)
		defer c.Stop()

		assert.Len(t, c.Entries(), 1)
	})

	t.Run("invalid schedule registers nothing", func(t *testing.T) {
		cfg := &config.Config{Batch: config.BatchConfig{RecalculationSchedule: "every night"}}

		c := startBatchJobs(cfg, logger, job)
		defer c.Stop()

		assert.Empty(t, c.Entries())
	})
}

func TestStartServer(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:         0,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 5 * time.Second,
			IdleTimeout:  5 * time.Second,
		},
	}
	logger := logging.NewLogger(config.LoggerConfig{})
	router := http.NewServeMux()

	srv, serverErrors, shutdownChan := startServer(cfg, router, logger)
	t.Cleanup(func() { _ = srv.Close() })

	assert.NotNil(t, srv, "Server should not be nil")
	assert.NotNil(t, serverErrors, "Server errors channel should not be nil")
	assert.NotNil(t, shutdownChan, "Shutdown channel should not be nil")
}

func TestHandleShutdown(t *testing.T) {
	logger := logging.NewLogger(config.LoggerConfig{})
	cronScheduler := cron.New()
	srv := &http.Server{}
	shutdownChan := make(chan os.Signal, 1)
	serverErrors := make(chan error, 1)

	shutdownChan <- syscall.SIGINT
	serverErrors <- nil

	done := make(chan struct{})
	go func() {
		handleShutdown(srv, cronScheduler, nil, shutdownChan, serverErrors, logger)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("shutdown did not complete")
	}
}
