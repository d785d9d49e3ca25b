package main

import (
	"context"
	"io"
	"net/http"
	"time"

	"vet/internal/amqp"
	"vet/internal/config"
	applog "vet/internal/log"
	"vet/internal/services"
	"vet/internal/storage"
	"vet/internal/syncapi"
	"vet/internal/view"
)

// app wires the record store to the workflows every command uses.
type app struct {
	ctx      context.Context
	cfg      *config.Config
	logger   *applog.Logger
	store    storage.RecordStore
	state    *view.State
	expenses *services.ExpenseService
	broker   *amqp.Client
	out      io.Writer
}

func newApp(ctx context.Context, cfg *config.Config, logger *applog.Logger, store storage.RecordStore, out io.Writer) *app {
	state := view.NewState(store, nil)
	return &app{
		ctx:      ctx,
		cfg:      cfg,
		logger:   logger,
		store:    store,
		state:    state,
		expenses: services.NewExpenseService(store, state),
		out:      out,
	}
}

// connectBroker subscribes the AMQP publisher when AMQP_URL is set. A broker
// that cannot be reached is logged and skipped; change events are advisory.
func (a *app) connectBroker() {
	if a.cfg.AMQPURL == "" {
		return
	}
	client, err := amqp.NewClient(a.ctx, amqp.Config{
		URL:         a.cfg.AMQPURL,
		Exchange:    a.cfg.AMQPExchange,
		Queue:       a.cfg.AMQPQueue,
		MaxDialTime: 5 * time.Second,
	})
	if err != nil {
		a.logger.Warn("AMQP unavailable, continuing without change events", applog.FieldError, err)
		return
	}
	a.broker = client
	a.expenses.Subscribe(client)
	a.logger.Debug("Connected to AMQP", "exchange", a.cfg.AMQPExchange, "queue", a.cfg.AMQPQueue)
}

// notifiers returns the change observers for the sync processor.
func (a *app) notifiers() []services.ChangeNotifier {
	observers := []services.ChangeNotifier{a.state}
	if a.broker != nil {
		observers = append(observers, a.broker)
	}
	return observers
}

func (a *app) syncProcessor() (*services.SyncProcessor, error) {
	client, err := syncapi.NewClient(&http.Client{Timeout: a.cfg.SyncTimeout}, a.cfg.SyncURL)
	if err != nil {
		return nil, err
	}
	return services.NewSyncProcessor(
		a.store,
		client,
		services.SyncProcessorConfig{Interval: a.cfg.SyncInterval},
		a.notifiers()...,
	), nil
}

func (a *app) close() {
	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			a.logger.Warn("Failed to close AMQP client", applog.FieldError, err)
		}
	}
}
