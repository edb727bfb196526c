// Package pipeline runs one subscriber submission end to end: validate,
// forward, back up, notify.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/mailproxy/internal/intake"
	"github.com/JakeFAU/mailproxy/internal/metrics"
)

const defaultStepTimeout = 5 * time.Second

// Submission outcomes recorded in metrics and logs.
const (
	OutcomeRejected          = "rejected"
	OutcomeRegistered        = "registered"
	OutcomeAlreadyRegistered = "already_registered"
	OutcomeFailed            = "failed"
)

// Config bounds the secondary steps.
type Config struct {
	BackupTimeout time.Duration
	NotifyTimeout time.Duration
}

// Pipeline is safe for concurrent use provided its collaborators are.
type Pipeline struct {
	forwarder intake.Forwarder
	store     intake.BackupStore
	notifier  intake.Notifier
	clock     intake.Clock
	cfg       Config
	logger    *zap.Logger
}

// New wires a Pipeline. store may be nil, which disables backups.
func New(cfg Config, forwarder intake.Forwarder, store intake.BackupStore, notifier intake.Notifier, clock intake.Clock, logger *zap.Logger) (*Pipeline, error) {
	if forwarder == nil {
		return nil, errors.New("forwarder is required")
	}
	if notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if cfg.BackupTimeout <= 0 {
		cfg.BackupTimeout = defaultStepTimeout
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = defaultStepTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		forwarder: forwarder,
		store:     store,
		notifier:  notifier,
		clock:     clock,
		cfg:       cfg,
		logger:    logger.Named("pipeline"),
	}, nil
}

// Submit processes one request and returns the message for the caller. It
// never fails: every internal error maps onto one of the fixed responses.
func (p *Pipeline) Submit(ctx context.Context, req intake.SubscriberRequest) intake.Response {
	sub, err := intake.Validate(req)
	if err != nil {
		var verr *intake.ValidationError
		msg := intake.MessageMissingField
		if errors.As(err, &verr) {
			msg = verr.Message()
		}
		p.logger.Info("submission rejected", zap.Error(err))
		metrics.ObserveSubmission(OutcomeRejected)
		return intake.Response{Message: msg}
	}

	who := zap.String("subscriber", intake.ObfuscateEmail(sub.Email))
	outcome := p.forwarder.Forward(ctx, sub)

	switch outcome.Result {
	case intake.ForwardRegistered:
		p.logger.Info("subscriber registered", who, zap.String("backend_id", outcome.BackendID))
		metrics.ObserveSubmission(OutcomeRegistered)
		p.afterRegistered(ctx, sub)
		return intake.Response{Message: intake.MessageRegistered}
	case intake.ForwardAlreadyRegistered:
		p.logger.Info("subscriber already registered", who)
		metrics.ObserveSubmission(OutcomeAlreadyRegistered)
		return intake.Response{Message: intake.MessageAlready}
	default:
		p.logger.Error("forward failed", who, zap.Error(outcome.Err))
		metrics.ObserveSubmission(OutcomeFailed)
		p.notify(ctx, intake.NotificationEvent{
			Kind:    intake.EventError,
			Stage:   intake.StageForward,
			Message: reason(outcome.Err),
		})
		return intake.Response{Message: intake.MessageRetryLater}
	}
}

// afterRegistered runs the backup and success notification. The subscriber
// already exists upstream, so these steps outlive the caller's cancellation.
func (p *Pipeline) afterRegistered(ctx context.Context, sub intake.Subscriber) {
	detached := context.WithoutCancel(ctx)
	local := intake.ObfuscateEmail(sub.Email)

	if p.store == nil {
		p.notify(detached, intake.NotificationEvent{
			Kind:    intake.EventSuccess,
			Message: fmt.Sprintf("New subscriber: %s", local),
		})
		return
	}

	receipt, err := p.backup(detached, sub)
	if err != nil {
		p.logger.Error("backup failed", zap.String("subscriber", local), zap.Error(err))
		p.notify(detached, intake.NotificationEvent{
			Kind:    intake.EventError,
			Stage:   intake.StageBackup,
			Message: reason(err),
		})
		return
	}
	if receipt.AlreadyPresent {
		p.logger.Info("subscriber already in backup", zap.String("subscriber", local))
	}
	msg := fmt.Sprintf("New subscriber: %s", local)
	if receipt.TotalKnown() {
		msg = fmt.Sprintf("%s (total tracked: %d)", msg, receipt.Total)
	} else {
		p.logger.Warn("backup stored but total unavailable", zap.String("subscriber", local), zap.Error(receipt.TotalErr))
	}
	p.notify(detached, intake.NotificationEvent{Kind: intake.EventSuccess, Message: msg})
}

func (p *Pipeline) backup(ctx context.Context, sub intake.Subscriber) (intake.BackupReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.BackupTimeout)
	defer cancel()

	receipt, err := p.store.Backup(ctx, intake.NewBackupRecord(sub, p.clock.Now()))
	switch {
	case err != nil:
		metrics.ObserveBackup(metrics.BackupFailed)
		return intake.BackupReceipt{}, fmt.Errorf("backup subscriber: %w", err)
	case receipt.AlreadyPresent:
		metrics.ObserveBackup(metrics.BackupPresent)
	default:
		metrics.ObserveBackup(metrics.BackupInserted)
	}
	return receipt, nil
}

func (p *Pipeline) notify(ctx context.Context, evt intake.NotificationEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.NotifyTimeout)
	defer cancel()
	p.notifier.Notify(ctx, evt)
}

func reason(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
