package notify

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/polkiloo/payouts/internal/domain/model"
)

// Alerter raises operator-facing alerts such as flagged withdrawals.
type Alerter interface {
	Alert(ctx context.Context, a model.Alert) error
}

// LogAlerter writes alerts to the log only.
type LogAlerter struct {
	logger *zap.Logger
}

func NewLogAlerter(logger *zap.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

func (l *LogAlerter) Alert(_ context.Context, a model.Alert) error {
	fields := []zap.Field{zap.String("subject", a.Subject), zap.String("body", a.Body)}
	for _, k := range sortedKeys(a.Fields) {
		fields = append(fields, zap.String(k, a.Fields[k]))
	}
	l.logger.Warn("operational alert", fields...)
	return nil
}

type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// MailAlerter emails alerts to the operations list.
type MailAlerter struct {
	dialer mailDialer
	from   string
	to     []string
}

func NewMailAlerter(dialer mailDialer, from string, to []string) *MailAlerter {
	return &MailAlerter{dialer: dialer, from: from, to: to}
}

func (m *MailAlerter) Alert(_ context.Context, a model.Alert) error {
	if len(m.to) == 0 {
		return nil
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to...)
	msg.SetHeader("Subject", a.Subject)
	msg.SetBody("text/html", renderAlert(a))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send alert mail: %w", err)
	}
	return nil
}

func renderAlert(a model.Alert) string {
	var b strings.Builder
	b.WriteString("<p>")
	b.WriteString(html.EscapeString(a.Body))
	b.WriteString("</p>")
	if len(a.Fields) > 0 {
		b.WriteString("<table>")
		for _, k := range sortedKeys(a.Fields) {
			fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td></tr>", html.EscapeString(k), html.EscapeString(a.Fields[k]))
		}
		b.WriteString("</table>")
	}
	return b.String()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
