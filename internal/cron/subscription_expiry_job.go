package cron

import (
	"context"
	"fmt"

	"github.com/agrimandi/agrimarket-backend/pkg/logger"
)

const expiryBatchSize = 200

// subscriptionExpirer is the slice of the insurance service this job needs.
type subscriptionExpirer interface {
	ExpireOverdue(ctx context.Context, batchSize int) (int, error)
}

// SubscriptionExpiryJobParams configures the expiry sweep.
type SubscriptionExpiryJobParams struct {
	Logger    *logger.Logger
	Insurance subscriptionExpirer
}

type subscriptionExpiryJob struct {
	logg      *logger.Logger
	insurance subscriptionExpirer
}

// NewSubscriptionExpiryJob constructs the job that flips active subscriptions
// past their end date to expired.
func NewSubscriptionExpiryJob(params SubscriptionExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Insurance == nil {
		return nil, fmt.Errorf("insurance service required")
	}
	return &subscriptionExpiryJob{
		logg:      params.Logger,
		insurance: params.Insurance,
	}, nil
}

func (j *subscriptionExpiryJob) Name() string {
	return "subscription_expiry"
}

func (j *subscriptionExpiryJob) Run(ctx context.Context) error {
	total := 0
	for {
		expired, err := j.insurance.ExpireOverdue(ctx, expiryBatchSize)
		total += expired
		if err != nil {
			return err
		}
		if expired < expiryBatchSize {
			break
		}
	}
	logCtx := j.logg.WithField(ctx, "expired", total)
	j.logg.Info(logCtx, "subscription expiry sweep complete")
	return nil
}
