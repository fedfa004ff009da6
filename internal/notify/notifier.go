package notify

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"proposalRelay/internal/metrics"
	"proposalRelay/internal/model"
	"proposalRelay/internal/storage"
)

// Sender delivers a text message to a chat.
type Sender interface {
	SendMessage(ctx context.Context, chatID, text string) (string, error)
}

// Config holds notifier settings.
type Config struct {
	ChatID string
	// Rate is the maximum sends per second; zero disables pacing.
	Rate  float64
	Burst int
}

// Notifier formats proposals and forwards them to a chat.
type Notifier struct {
	cfg     Config
	links   LinkBuilder
	sender  Sender
	limiter *rate.Limiter
	journal storage.Journal
	logger  *zap.Logger
	now     func() time.Time
}

// New builds a Notifier. journal may be nil.
func New(cfg Config, links LinkBuilder, sender Sender, journal storage.Journal, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	return &Notifier{
		cfg:     cfg,
		links:   links,
		sender:  sender,
		limiter: limiter,
		journal: journal,
		logger:  logger,
		now:     time.Now,
	}
}

// Notify sends one message for proposal. Only transport failures are
// returned; the response body is logged whatever it says.
func (n *Notifier) Notify(ctx context.Context, proposal model.Proposal) error {
	link := n.links.ProposalLink(proposal.ProposalID)
	text := FormatMessage(proposal, link)

	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	response, err := n.sender.SendMessage(ctx, n.cfg.ChatID, text)
	if err != nil {
		metrics.NotificationsSent.WithLabelValues("error").Inc()
	} else {
		metrics.NotificationsSent.WithLabelValues("ok").Inc()
		n.logger.Info("telegram response",
			zap.String("proposal_id", proposal.ProposalID.String()),
			zap.String("response", response),
		)
	}

	n.record(ctx, proposal, link, text, response, err)
	return err
}

func (n *Notifier) record(ctx context.Context, proposal model.Proposal, link, text, response string, sendErr error) {
	if n.journal == nil {
		return
	}

	record := model.NotificationRecord{
		ProposalID:     proposal.ProposalID.String(),
		VotingEndBlock: proposal.VotingEndBlock.String(),
		Link:           link,
		ChatID:         n.cfg.ChatID,
		Text:           text,
		Response:       response,
		BlockNumber:    proposal.BlockNumber,
		TxHash:         proposal.TxHash,
		LogIndex:       proposal.LogIndex,
		SentAt:         n.now().UTC().Format(time.RFC3339Nano),
	}
	if sendErr != nil {
		record.Error = sendErr.Error()
	}

	if err := n.journal.PutNotification(ctx, record); err != nil {
		metrics.JournalErrors.Inc()
		n.logger.Warn("journal write failed", zap.Error(err), zap.String("proposal_id", record.ProposalID))
	}
}
