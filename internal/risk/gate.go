package risk

import (
	"context"
	"encoding/hex"
	"fmt"
	"regexp"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/polkiloo/payouts/internal/config"
	"github.com/polkiloo/payouts/internal/domain/model"
	"github.com/polkiloo/payouts/internal/domain/repository"
	"github.com/polkiloo/payouts/internal/metrics"
)

// Scorer rates a withdrawal for fraud.
type Scorer interface {
	Score(ctx context.Context, req model.FraudScoreRequest) (model.FraudScore, error)
}

// Screener checks the reputation of a destination address.
type Screener interface {
	Screen(ctx context.Context, address string) (model.AddressScreening, error)
}

// Input is everything the gate looks at for one withdrawal.
type Input struct {
	User    *model.User
	Request model.WithdrawalRequest
	Session string
}

// Gate decides whether a withdrawal may proceed. It never returns an error:
// every failure is a RISK_CHECK decline.
type Gate struct {
	users        repository.UserRepository
	scorer       Scorer
	screener     Screener
	flagPatterns []*regexp.Regexp
	disableScore float64
	metrics      *metrics.Metrics
	logger       *zap.Logger
}

// New compiles the configured flag patterns and builds a Gate.
func New(cfg config.RiskConfig, users repository.UserRepository, scorer Scorer, screener Screener, m *metrics.Metrics, logger *zap.Logger) (*Gate, error) {
	patterns := make([]*regexp.Regexp, 0, len(cfg.FlagPatterns))
	for _, p := range cfg.FlagPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile flag pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}
	return &Gate{
		users:        users,
		scorer:       scorer,
		screener:     screener,
		flagPatterns: patterns,
		disableScore: cfg.DisableScore,
		metrics:      m,
		logger:       logger,
	}, nil
}

// Check runs the checks in order and returns the first decisive verdict.
func (g *Gate) Check(ctx context.Context, in Input) (decision model.RiskDecision) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("risk check panicked",
				zap.Int64("user_id", in.Request.UserID),
				zap.String("rail", string(in.Request.Rail)),
				zap.Any("panic", r),
			)
			decision = model.DeclinedDecision(model.ReasonRiskCheck)
		}
		g.metrics.RiskDecision(string(decision.Outcome), string(decision.Reason))
	}()

	d, err := g.evaluate(ctx, in)
	if err != nil {
		g.logger.Error("risk check failed",
			zap.Int64("user_id", in.Request.UserID),
			zap.String("rail", string(in.Request.Rail)),
			zap.Error(err),
		)
		return model.DeclinedDecision(model.ReasonRiskCheck)
	}
	return d
}

func (g *Gate) evaluate(ctx context.Context, in Input) (model.RiskDecision, error) {
	req := in.Request
	if in.User.Locked {
		return model.DeclinedDecision(model.ReasonAccountLocked), nil
	}

	custom := map[string]any{
		"rail":    string(req.Rail),
		"network": string(req.Network),
	}

	var screening *model.AddressScreening
	if req.Rail.IsCrypto() {
		s, err := g.screener.Screen(ctx, req.Address)
		if err != nil {
			return model.RiskDecision{}, fmt.Errorf("screen address: %w", err)
		}
		screening = &s
		custom["address_risk"] = s.Risk
		custom["address_cluster"] = s.Cluster
		custom["address_category"] = s.Category
	}

	score, err := g.scorer.Score(ctx, model.FraudScoreRequest{
		UserID:       req.UserID,
		Email:        in.User.Email,
		Session:      in.Session,
		DeviceHash:   Fingerprint(in.Session),
		Rail:         req.Rail,
		Amount:       req.Amount,
		Currency:     req.Currency,
		CustomFields: custom,
	})
	if err != nil {
		return model.RiskDecision{}, fmt.Errorf("score withdrawal: %w", err)
	}

	if screening != nil && screening.HighRisk() {
		return model.DeclinedDecision(model.ReasonChainalysisCheck), nil
	}
	if score.HardDecline() {
		return model.DeclinedDecision(model.ReasonSeonCheck), nil
	}

	if g.disableScore > 0 && score.Score >= g.disableScore {
		g.logger.Warn("disabling withdrawals after high fraud score",
			zap.Int64("user_id", req.UserID),
			zap.Float64("score", score.Score),
		)
		if err := g.users.DisableWithdrawals(ctx, req.UserID); err != nil {
			return model.RiskDecision{}, fmt.Errorf("disable withdrawals: %w", err)
		}
	}

	user, err := g.users.GetByID(ctx, req.UserID)
	if err != nil {
		return model.RiskDecision{}, fmt.Errorf("reload user: %w", err)
	}
	if !user.WithdrawalsEnabled {
		return model.DeclinedDecision(model.ReasonRiskCheck), nil
	}

	for _, rule := range score.AppliedRules {
		for _, re := range g.flagPatterns {
			if re.MatchString(rule.Name) {
				return model.FlaggedDecision(fmt.Sprintf("fraud rule %q matched %s", rule.Name, re)), nil
			}
		}
	}

	return model.ClearDecision(), nil
}

// Fingerprint digests the fraud session so the raw value is not the device id.
func Fingerprint(session string) string {
	if session == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(session))
	return hex.EncodeToString(sum[:])
}
