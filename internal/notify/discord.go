package notify

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/courtsync-io/courtsync/internal/logging"
)

// Embed colors per severity.
var discordColors = map[Severity]int{
	SeverityError:   0xff0000,
	SeverityWarning: 0xffaa00,
	SeverityInfo:    0x0099ff,
	SeveritySuccess: 0x00ff00,
}

// Discord posts notifications to a Discord webhook as embeds.
type Discord struct {
	webhookURL string
	client     *resty.Client
	logger     *logging.Logger
}

// NewDiscord creates a Discord notifier for the given webhook URL.
func NewDiscord(webhookURL string, logger *logging.Logger) *Discord {
	if logger == nil {
		logger = logging.Global()
	}
	client := resty.New().
		SetTimeout(10 * time.Second).
		SetRetryCount(1)
	return &Discord{
		webhookURL: webhookURL,
		client:     client,
		logger:     logger,
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
	Timestamp   string `json:"timestamp"`
	Footer      struct {
		Text string `json:"text"`
	} `json:"footer"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// Notify posts the message. Errors are logged and swallowed.
func (d *Discord) Notify(ctx context.Context, severity Severity, message string) {
	if d.webhookURL == "" {
		return
	}

	embed := discordEmbed{
		Title:       "courtsync " + string(severity),
		Description: message,
		Color:       discordColors[severity],
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
	embed.Footer.Text = "courtsync collector"

	resp, err := d.client.R().
		SetContext(ctx).
		SetBody(discordPayload{Embeds: []discordEmbed{embed}}).
		Post(d.webhookURL)
	if err != nil {
		d.logger.Warnf("discord notification failed", map[string]any{"error": err.Error()})
		return
	}
	if resp.IsError() {
		d.logger.Warnf("discord notification rejected", map[string]any{"status": resp.StatusCode()})
	}
}

var _ Notifier = (*Discord)(nil)
