package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/smsflow/smsflow/config"
	"github.com/smsflow/smsflow/pkg/gateway"
	"github.com/smsflow/smsflow/pkg/lease"
	"github.com/smsflow/smsflow/pkg/seencache"
	"github.com/smsflow/smsflow/pkg/timer"
	"github.com/smsflow/smsflow/repository"
	"github.com/smsflow/smsflow/service/bounce"
	"github.com/smsflow/smsflow/service/ingest"
	"github.com/smsflow/smsflow/service/jobs"
	"github.com/smsflow/smsflow/service/queue"
	"github.com/smsflow/smsflow/service/reconcile"
	"github.com/smsflow/smsflow/service/recovery"
	"github.com/smsflow/smsflow/service/schedule"
	"github.com/smsflow/smsflow/service/webhook"
	"go.uber.org/zap"
)

// seenExpireSecs is how long a processed webhook event id stays in the dedupe hint
const seenExpireSecs = 3600

type app struct {
	conf   config.Config
	logger *zap.Logger
	db     *sqlx.DB

	webhook   *webhook.Handler
	processor *webhook.Processor
	queue     *queue.Processor
	schedule  *schedule.Service
	reconcile *reconcile.Service
	recovery  *recovery.Service
	runner    *jobs.Runner

	closers []func() error
}

func newApp(conf config.Config, logger *zap.Logger) *app {
	db := conf.MySQL.MustConnect()
	provider := repository.NewProvider(db)
	clock := timer.New()

	campaignRepo := repository.NewCampaign()
	membershipRepo := repository.NewMembership()
	contactRepo := repository.NewContact()
	conversationRepo := repository.NewConversation()
	activityRepo := repository.NewActivity()
	eventRepo := repository.NewWebhookEvent()
	retryRepo := repository.NewFailedRetry()

	client := gateway.NewClient(conf.Gateway, gateway.WithTimer(clock))

	bounceSvc := bounce.NewService(provider, membershipRepo, activityRepo)
	ingestSvc := ingest.NewService(
		contactRepo, conversationRepo, activityRepo, membershipRepo,
		bounceSvc, clock, conf.Queue.ReplyWindow,
	)

	seen := seencache.New(conf.Webhook.SeenCacheSize, seenExpireSecs)
	processor := webhook.NewProcessor(
		provider, eventRepo, retryRepo, ingestSvc, seen, clock,
		conf.Webhook.Secret, conf.Recovery.BaseBackoff,
	)

	a := &app{
		conf:   conf,
		logger: logger,
		db:     db,

		webhook:   webhook.NewHandler(processor, conf.Webhook.SignatureHeader),
		processor: processor,
		queue: queue.NewProcessor(
			provider, campaignRepo, membershipRepo, contactRepo, conversationRepo, activityRepo,
			ingestSvc, client, clock, conf,
		),
		schedule: schedule.NewService(provider, campaignRepo, membershipRepo, clock, conf.DefaultTimezone),
		reconcile: reconcile.NewService(
			provider, client, ingestSvc, conversationRepo, activityRepo, clock, conf.Reconcile,
		),
		recovery: recovery.NewService(provider, retryRepo, processor, clock, conf.Recovery),
	}
	a.closers = append(a.closers, db.Close)

	a.runner = jobs.NewRunner(a.newLocker(), conf.Jobs.LeaseDuration, logger)
	a.registerJobs()
	return a
}

func (a *app) newLocker() jobs.Locker {
	if !a.conf.Jobs.UseLease {
		return jobs.NoLock()
	}

	host, err := os.Hostname()
	if err != nil {
		host = "worker"
	}
	client := lease.New(a.conf.Memcache, host+"-"+uuid.NewString())
	a.closers = append(a.closers, client.Close)
	return client
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close resource", zap.Error(err))
		}
	}
}

func (a *app) registerJobs() {
	conf := a.conf.Jobs

	a.runner.Add(jobs.Job{
		Name:     jobs.RunScheduled,
		Interval: conf.ScheduleInterval,
		Run:      a.runScheduled,
	})
	a.runner.Add(jobs.Job{
		Name:     jobs.ProcessQueue,
		Interval: conf.QueueInterval,
		Run:      a.processQueue,
	})
	a.runner.Add(jobs.Job{
		Name:     jobs.Reconcile,
		Interval: conf.ReconcileInterval,
		Run:      a.runReconcile,
	})
	a.runner.Add(jobs.Job{
		Name:     jobs.RecoverFailed,
		Interval: conf.RecoveryInterval,
		Run:      a.recoverFailed,
	})
	a.runner.Add(jobs.Job{
		Name:     jobs.CleanupOverdue,
		Interval: conf.CleanupInterval,
		Run:      a.cleanupOverdue,
	})
	a.runner.Add(jobs.Job{
		Name:     jobs.CheckIntegrity,
		Interval: conf.IntegrityInterval,
		Run:      a.checkIntegrity,
	})
}

func (a *app) runScheduled(ctx context.Context) error {
	result, err := a.schedule.RunScheduled(ctx)
	if err != nil {
		return err
	}
	if len(result.Executed) > 0 || len(result.Errors) > 0 {
		a.logger.Info("scheduled campaigns started",
			zap.Int64s("campaign_ids", result.Executed),
			zap.Strings("errors", result.Errors),
		)
	}
	return nil
}

func (a *app) processQueue(ctx context.Context) error {
	result, err := a.queue.ProcessCampaignQueue(ctx)
	if err != nil {
		return err
	}

	a.logger.Info("campaign queue processed",
		zap.Int("sent", result.Sent),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Int64s("completed", result.Completed),
		zap.Strings("errors", result.Errors),
	)
	for _, notice := range result.LimitNotices {
		a.logger.Info("campaign reached daily limit",
			zap.Int64("campaign_id", notice.CampaignID),
			zap.String("campaign_name", notice.Name),
			zap.Int64("daily_limit", notice.DailyLimit),
			zap.Int64("sent_today", notice.SentToday),
		)
	}
	for _, w := range result.Winners {
		a.logger.Info("A/B test winner declared",
			zap.Int64("campaign_id", w.CampaignID),
			zap.String("variant", string(w.Variant)),
			zap.Float64("p_value", w.PValue),
		)
	}
	return nil
}

func (a *app) runReconcile(ctx context.Context) error {
	messages, err := a.reconcile.ReconcileMessages(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("messages reconciled",
		zap.Int("pages", messages.Pages),
		zap.Int("created", messages.Created),
		zap.Int("updated", messages.Updated),
		zap.Int("existing", messages.Existing),
		zap.Int("skipped", messages.Skipped),
		zap.Int("failed", messages.Failed),
		zap.Bool("stopped", messages.Stopped),
		zap.Strings("errors", messages.Errors),
	)

	conversations, err := a.reconcile.SyncConversations(ctx)
	if err != nil {
		return err
	}
	a.logger.Info("conversations synced",
		zap.Int("pages", conversations.Pages),
		zap.Int("synced", conversations.Synced),
		zap.Int("skipped", conversations.Skipped),
		zap.Int("failed", conversations.Failed),
		zap.Bool("stopped", conversations.Stopped),
	)
	return nil
}

func (a *app) recoverFailed(ctx context.Context) error {
	_, err := a.recovery.RecoverFailed(ctx)
	return err
}

func (a *app) cleanupOverdue(ctx context.Context) error {
	failed, err := a.schedule.CleanupOverdue(ctx)
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		a.logger.Warn("overdue campaigns failed", zap.Int64s("campaign_ids", failed))
	}
	return nil
}

func (a *app) checkIntegrity(ctx context.Context) error {
	_, err := a.reconcile.CheckIntegrity(ctx)
	return err
}

// runJob runs one job outside the server, bounded by the lease duration
func (a *app) runJob(name string) error {
	timeout := a.conf.Jobs.LeaseDuration
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return a.runner.Run(ctx, name)
}
