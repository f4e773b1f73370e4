package queue

import (
	"context"
	"fmt"

	"github.com/smsflow/smsflow/model"
	"github.com/smsflow/smsflow/pkg/otellib"
	"github.com/smsflow/smsflow/repository"
	"go.uber.org/zap"
)

// EvaluateABTests declares a winner for every undecided A/B campaign with a significant difference.
// A declared winner is never evaluated again.
func (p *Processor) EvaluateABTests(ctx context.Context) ([]Winner, error) {
	campaigns, err := p.campaignRepo.ListUndecidedABTests(p.provider.Readonly(ctx))
	if err != nil {
		return nil, err
	}

	var winners []Winner
	for _, c := range campaigns {
		winner, ok, err := p.evaluate(ctx, c)
		if err != nil {
			return winners, fmt.Errorf("campaign %d: %w", c.ID, err)
		}
		if ok {
			winners = append(winners, winner)
		}
	}
	return winners, nil
}

func (p *Processor) evaluate(ctx context.Context, c model.Campaign) (Winner, bool, error) {
	logger := otellib.Extract(ctx).With(zap.Int64("campaign_id", c.ID))

	stats, err := p.membershipRepo.GetVariantStats(p.provider.Readonly(ctx), c.ID)
	if err != nil {
		return Winner{}, false, err
	}

	var a, b repository.VariantStat
	for _, s := range stats {
		switch s.Variant {
		case model.VariantA:
			a = s
		case model.VariantB:
			b = s
		}
	}

	if a.Sent < p.abConf.MinSendsPerVariant || b.Sent < p.abConf.MinSendsPerVariant {
		logger.Debug("ab test deferred", zap.Int64("sent_a", a.Sent), zap.Int64("sent_b", b.Sent))
		return Winner{}, false, nil
	}

	pValue := ChiSquarePValue(a.Positive, a.Sent-a.Positive, b.Positive, b.Sent-b.Positive)
	if pValue >= p.abConf.Significance {
		logger.Debug("ab test not significant", zap.Float64("p_value", pValue))
		return Winner{}, false, nil
	}

	rateA := float64(a.Positive) / float64(a.Sent)
	rateB := float64(b.Positive) / float64(b.Sent)
	if rateA == rateB {
		return Winner{}, false, nil
	}

	variant := model.VariantA
	if rateB > rateA {
		variant = model.VariantB
	}

	err = p.provider.Transact(ctx, func(ctx context.Context) error {
		return p.campaignRepo.SetCampaignWinner(ctx, c.ID, variant, pValue, p.timer.Now().UTC())
	})
	if err != nil {
		return Winner{}, false, err
	}

	logger.Info("ab test winner declared",
		zap.String("variant", string(variant)),
		zap.Float64("p_value", pValue),
		zap.Float64("rate_a", rateA),
		zap.Float64("rate_b", rateB),
	)
	return Winner{CampaignID: c.ID, Variant: variant, PValue: pValue}, true, nil
}
