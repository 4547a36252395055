// Package slack publishes report summaries and chart images to a Slack
// channel.
package slack

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// Upload describes a file to share with the channel.
type Upload struct {
	Path    string
	Title   string
	Comment string // posted with the file as its initial comment
}

// Publisher posts report output to a chat channel.
type Publisher interface {
	PostMessage(ctx context.Context, text string) error
	UploadFile(ctx context.Context, u Upload) error
}

// Client posts to a single channel with a bot token.
type Client struct {
	api     *slack.Client
	channel string
}

// Option configures a Client
type Option func(*clientOptions)

type clientOptions struct {
	apiURL string
}

// WithAPIURL points the client at a different API root (used by tests).
func WithAPIURL(url string) Option {
	return func(o *clientOptions) { o.apiURL = url }
}

// NewClient creates a publisher for channel.
func NewClient(token, channel string, opts ...Option) *Client {
	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}

	var slackOpts []slack.Option
	if o.apiURL != "" {
		slackOpts = append(slackOpts, slack.OptionAPIURL(o.apiURL))
	}

	return &Client{
		api:     slack.New(token, slackOpts...),
		channel: channel,
	}
}

// PostMessage sends text (Slack mrkdwn) to the channel.
func (c *Client) PostMessage(ctx context.Context, text string) error {
	_, _, err := c.api.PostMessageContext(ctx, c.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack post message: %w", err)
	}
	return nil
}

// UploadFile shares a local file with the channel.
func (c *Client) UploadFile(ctx context.Context, u Upload) error {
	info, err := os.Stat(u.Path)
	if err != nil {
		return fmt.Errorf("slack upload %s: %w", u.Path, err)
	}

	_, err = c.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Channel:        c.channel,
		File:           u.Path,
		FileSize:       int(info.Size()),
		Filename:       filepath.Base(u.Path),
		Title:          u.Title,
		InitialComment: u.Comment,
	})
	if err != nil {
		return fmt.Errorf("slack upload %s: %w", filepath.Base(u.Path), err)
	}
	return nil
}

// DryRun logs what would have been published. It backs --no-publish and
// runs with slack.disabled.
type DryRun struct {
	Logger *zap.Logger
}

func (d DryRun) PostMessage(_ context.Context, text string) error {
	d.Logger.Info("publishing disabled, message not sent", zap.Int("length", len(text)))
	return nil
}

func (d DryRun) UploadFile(_ context.Context, u Upload) error {
	d.Logger.Info("publishing disabled, file not uploaded",
		zap.String("file", u.Path),
		zap.String("title", u.Title),
	)
	return nil
}

// CodeBlock wraps text in a Slack code block.
func CodeBlock(text string) string {
	return "```\n" + text + "\n```"
}
