package ingestion

import (
	"context"
	"strings"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// updater is the part of tgbot.BotAPI the source needs.
type updater interface {
	GetUpdatesChan(config tgbot.UpdateConfig) tgbot.UpdatesChannel
	StopReceivingUpdates()
}

// TelegramSource reads channel posts through a bot that is a member of the
// channel. The Bot API only delivers posts published while the bot listens,
// so a run ends after IdleTimeout without new posts.
type TelegramSource struct {
	bot         updater
	channelID   int64
	idleTimeout time.Duration
	logger      *zap.Logger
}

// TelegramOptions contains configuration for creating a TelegramSource.
type TelegramOptions struct {
	Token       string
	ChannelID   int64         // 0 accepts posts from any channel the bot is in
	IdleTimeout time.Duration // 0 listens until ctx is done
	Logger      *zap.Logger
}

// NewTelegramSource connects to the Bot API.
func NewTelegramSource(opts TelegramOptions) (*TelegramSource, error) {
	if opts.Token == "" {
		return nil, errors.New("telegram bot token is empty")
	}

	bot, err := tgbot.NewBotAPI(opts.Token)
	if err != nil {
		return nil, errors.Wrap(err, "connect telegram bot")
	}

	return newTelegramSource(bot, opts), nil
}

func newTelegramSource(bot updater, opts TelegramOptions) *TelegramSource {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramSource{
		bot:         bot,
		channelID:   opts.ChannelID,
		idleTimeout: opts.IdleTimeout,
		logger:      logger,
	}
}

// Messages implements MessageSource.
func (s *TelegramSource) Messages(ctx context.Context, since time.Time, sink func(Message) error) error {
	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"channel_post"}

	updates := s.bot.GetUpdatesChan(u)
	defer s.bot.StopReceivingUpdates()

	var idle <-chan time.Time
	var timer *time.Timer
	if s.idleTimeout > 0 {
		timer = time.NewTimer(s.idleTimeout)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle:
			s.logger.Info("telegram source idle, stopping", zap.Duration("idle_timeout", s.idleTimeout))
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(s.idleTimeout)
			}

			msg, ok := s.toMessage(update)
			if !ok || msg.Date.Before(since) {
				continue
			}
			if err := sink(msg); err != nil {
				return errors.Wrapf(err, "handle telegram post %d", msg.ID)
			}
		}
	}
}

// toMessage extracts a post of the configured channel.
func (s *TelegramSource) toMessage(update tgbot.Update) (Message, bool) {
	post := update.ChannelPost
	if post == nil || post.Chat == nil {
		return Message{}, false
	}
	if s.channelID != 0 && post.Chat.ID != s.channelID {
		return Message{}, false
	}

	text := strings.TrimSpace(post.Text)
	if text == "" {
		text = strings.TrimSpace(post.Caption)
	}
	if text == "" {
		return Message{}, false
	}

	return Message{
		ID:   post.MessageID,
		Date: post.Time().UTC(),
		Text: text,
	}, true
}

var _ MessageSource = (*TelegramSource)(nil)
