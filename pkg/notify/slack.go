package notify

import "time"

// SlackTemplate frames a notification as a Slack incoming-webhook attachment.
const SlackTemplate = `{
  "attachments": [{
    "color": {{if eq .notification.Level "error"}}"#e74c3c"{{else if eq .notification.Level "warning"}}"#f1c40f"{{else}}"#3498db"{{end}},
    "title": {{json .notification.Subject}},
    "text": {{json .notification.Message}},
    "footer": {{json .notification.HostName}},
    "ts": {{json .notification.Timestamp}}
  }]
}`

func NewSlackWebhook(webhookURL string, cooldown time.Duration) *WebhookNotifier {
	return NewWebhookNotifier(WebhookConfig{
		Enabled:  true,
		URL:      webhookURL,
		Template: SlackTemplate,
		Cooldown: cooldown,
	})
}
