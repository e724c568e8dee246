package notify

import "time"

const (
	DiscordColorRed    = 15158332 // Error
	DiscordColorYellow = 16776960 // Warning
	DiscordColorBlue   = 3447003  // Info
)

const DiscordTemplate = `{
  "embeds": [{
    "title": {{json .notification.Subject}},
    "description": {{json .notification.Message}},
    "color": {{if eq .notification.Level "error"}}15158332{{else if eq .notification.Level "warning"}}16776960{{else}}3447003{{end}},
    "timestamp": {{json .notification.Timestamp}},
    "fields": [
      {
        "name": "Host",
        "value": {{json .notification.HostName}},
        "inline": true
      }
      {{range $key, $value := .notification.Details}},
      {
        "name": {{json $key}},
        "value": {{json $value}},
        "inline": true
      }
      {{end}}
    ]
  }]
}`

func NewDiscordWebhook(webhookURL string, cooldown time.Duration) *WebhookNotifier {
	return NewWebhookNotifier(WebhookConfig{
		Enabled:  true,
		URL:      webhookURL,
		Template: DiscordTemplate,
		Cooldown: cooldown,
	})
}
