// Package scheduler runs recurring jobs contributed by modules. Jobs
// are providers tagged with JobCapability; the plugin discovers them
// during application init, schedules them on a cron runner, and stops
// the runner on shutdown.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/tascaenzo/trinacria/app"
	"github.com/tascaenzo/trinacria/di"
)

// JobCapability tags providers whose instances are scheduled jobs.
var JobCapability = di.NewCapability[Job]("scheduler.job")

// Job is one recurring unit of work. Spec uses the cron format, with an
// optional leading seconds field ("*/5 * * * * *" runs every five
// seconds, "0 3 * * *" daily at 03:00).
type Job interface {
	Name() string
	Spec() string
	Run(ctx context.Context) error
}

// Plugin owns the cron runner.
type Plugin struct {
	cron   *cron.Cron
	logger *zap.Logger
}

// New returns a scheduler plugin.
func New() *Plugin {
	return &Plugin{logger: zap.NewNop()}
}

// Name implements app.Plugin.
func (p *Plugin) Name() string { return "scheduler" }

// OnInit discovers every contributed job, schedules it, and starts the
// runner.
func (p *Plugin) OnInit(ctx context.Context, appCtx *app.Context) error {
	p.logger = appCtx.Logger().Named("scheduler")

	instances, err := appCtx.ResolveByCapability(ctx, JobCapability.Key())
	if err != nil {
		return fmt.Errorf("scheduler: resolve jobs: %w", err)
	}

	runner := cron.New(cron.WithParser(cron.NewParser(
		cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)))
	for _, inst := range instances {
		job, ok := inst.(Job)
		if !ok {
			return fmt.Errorf("scheduler: %T is tagged as a job but does not implement Job", inst)
		}
		if _, err := runner.AddFunc(job.Spec(), p.wrap(job)); err != nil {
			return fmt.Errorf("scheduler: job %s: invalid spec %q: %w", job.Name(), job.Spec(), err)
		}
		p.logger.Info("job scheduled",
			zap.String("job", job.Name()), zap.String("spec", job.Spec()))
	}

	runner.Start()
	p.cron = runner
	return nil
}

// wrap contains a job run: panics are recovered and outcomes logged, so
// one misbehaving job cannot take the runner down.
func (p *Plugin) wrap(job Job) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("job panicked",
					zap.String("job", job.Name()), zap.Any("panic", r))
			}
		}()
		if err := job.Run(context.Background()); err != nil {
			p.logger.Warn("job failed",
				zap.String("job", job.Name()), zap.Error(err))
			return
		}
		p.logger.Debug("job completed", zap.String("job", job.Name()))
	}
}

// OnDestroy stops the runner and waits for in-flight runs, bounded by
// ctx.
func (p *Plugin) OnDestroy(ctx context.Context, appCtx *app.Context) error {
	if p.cron == nil {
		return nil
	}
	done := p.cron.Stop().Done()
	select {
	case <-done:
		p.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler shutdown: %w", ctx.Err())
	}
}
