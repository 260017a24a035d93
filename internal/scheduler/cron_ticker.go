package scheduler

import (
	"context"
	"fmt"
	"time"

	"FolioPulse/pkg/logger"

	"github.com/robfig/cron/v3"
)

// CronTicker schedules fixed-interval jobs on a robfig cron runner.
type CronTicker struct {
	Cron *cron.Cron
}

func NewCronTicker(log *logger.Logger) *CronTicker {
	return &CronTicker{
		Cron: cron.New(cron.WithLogger(cronLogger{log: log})),
	}
}

func (t *CronTicker) Every(d time.Duration, fn func()) func() {
	id := t.Cron.Schedule(cron.Every(d), cron.FuncJob(fn))
	return func() { t.Cron.Remove(id) }
}

func (t *CronTicker) Start() {
	t.Cron.Start()
}

// Stop halts the runner and waits for running jobs or ctx.
func (t *CronTicker) Stop(ctx context.Context) {
	done := t.Cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// cronLogger routes cron's own messages into the app logger.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logger.Error(err))...)
}

func kvFields(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields = append(fields, logger.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return fields
}
