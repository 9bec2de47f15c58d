// Package email renderiza y envía las notificaciones del control plane:
// bienvenida con credenciales, código de validación, aviso de registro a
// admins y email de prueba.
package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/nshost/internal/observability/logger"
)

// ErrNoRecipient: no hay a quién enviar (fail closed).
var ErrNoRecipient = errors.New("email: no recipient")

// SendOptions se pasa en cada envío. En dev los emails se suprimen salvo ForceSend.
type SendOptions struct {
	ForceSend bool
}

type WelcomeData struct {
	To        string
	Name      string
	Subdomain string
	APISecret string
}

type RegistrationData struct {
	RequestID  int64
	Subdomain  string
	OwnerName  string
	OwnerEmail string
	DataSource string
}

type NotifierConfig struct {
	// Dev suprime envíos salvo ForceSend.
	Dev             bool
	PublicDomain    string
	BaseURL         string
	AdminRecipients []string
	ValidFor        time.Duration
}

type Notifier struct {
	sender Sender
	cfg    NotifierConfig
	log    *zap.Logger
}

func NewNotifier(sender Sender, cfg NotifierConfig) *Notifier {
	if cfg.ValidFor <= 0 {
		cfg.ValidFor = 10 * time.Minute
	}
	return &Notifier{sender: sender, cfg: cfg, log: logger.Named("email")}
}

func (n *Notifier) deliver(ctx context.Context, kind, to string, msg Rendered, opts SendOptions) error {
	log := logger.From(ctx).With(logger.Component("email"), logger.String("kind", kind), logger.Email(to))
	if n.cfg.Dev && !opts.ForceSend {
		log.Info("email suppressed in dev", logger.String("subject", msg.Subject))
		return nil
	}
	if n.sender == nil {
		return errors.New("email: sender not configured")
	}
	if err := n.sender.Send(to, msg.Subject, msg.HTML, msg.Text); err != nil {
		log.Error("email delivery failed", logger.Err(err))
		return err
	}
	return nil
}

func validRecipient(to string) bool {
	if strings.TrimSpace(to) == "" {
		return false
	}
	_, err := mail.ParseAddress(to)
	return err == nil
}

// SendWelcome envía la URL y el API secret al dueño.
func (n *Notifier) SendWelcome(ctx context.Context, d WelcomeData, opts SendOptions) error {
	if !validRecipient(d.To) {
		return ErrNoRecipient
	}
	url := fmt.Sprintf("https://%s.%s", d.Subdomain, n.cfg.PublicDomain)
	msg, err := render("welcome", map[string]any{
		"Name":         firstNonEmpty(d.Name, d.To),
		"Subdomain":    d.Subdomain,
		"PublicDomain": n.cfg.PublicDomain,
		"URL":          url,
		"APISecret":    d.APISecret,
	})
	if err != nil {
		return fmt.Errorf("email: render welcome: %w", err)
	}
	return n.deliver(ctx, "welcome", d.To, msg, opts)
}

// SendValidationCode envía el código de 6 dígitos.
func (n *Notifier) SendValidationCode(ctx context.Context, to, code string, opts SendOptions) error {
	if !validRecipient(to) {
		return ErrNoRecipient
	}
	msg, err := render("validation", map[string]any{
		"Code":         code,
		"ValidMinutes": int(n.cfg.ValidFor / time.Minute),
	})
	if err != nil {
		return fmt.Errorf("email: render validation: %w", err)
	}
	return n.deliver(ctx, "validation", to, msg, opts)
}

// SendRegistrationNotification avisa a cada admin configurado. Devuelve el
// primer error pero intenta con todos.
func (n *Notifier) SendRegistrationNotification(ctx context.Context, d RegistrationData, opts SendOptions) error {
	if len(n.cfg.AdminRecipients) == 0 {
		n.log.Debug("no admin recipients configured")
		return nil
	}
	review := ""
	if n.cfg.BaseURL != "" {
		review = fmt.Sprintf("%s/admin/register/%d", strings.TrimRight(n.cfg.BaseURL, "/"), d.RequestID)
	}
	msg, err := render("registration", map[string]any{
		"Subdomain":  d.Subdomain,
		"OwnerName":  d.OwnerName,
		"OwnerEmail": d.OwnerEmail,
		"DataSource": d.DataSource,
		"ReviewURL":  review,
	})
	if err != nil {
		return fmt.Errorf("email: render registration: %w", err)
	}
	var first error
	for _, to := range n.cfg.AdminRecipients {
		if err := n.deliver(ctx, "registration", to, msg, opts); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Test kinds aceptados por SendTest.
const (
	TestPlain        = "test"
	TestWelcome      = "welcome"
	TestValidation   = "validation"
	TestRegistration = "registration"
)

// SendTest envía un ejemplo de cada template a to.
func (n *Notifier) SendTest(ctx context.Context, kind, to string, opts SendOptions) error {
	switch kind {
	case TestWelcome:
		return n.SendWelcome(ctx, WelcomeData{To: to, Name: "Test", Subdomain: "example", APISecret: "example-secret"}, opts)
	case TestValidation:
		return n.SendValidationCode(ctx, to, "123456", opts)
	case TestRegistration:
		if !validRecipient(to) {
			return ErrNoRecipient
		}
		msg, err := render("registration", map[string]any{
			"Subdomain": "example", "OwnerName": "Test", "OwnerEmail": to, "DataSource": "API",
		})
		if err != nil {
			return err
		}
		return n.deliver(ctx, "registration", to, msg, opts)
	case TestPlain, "":
		if !validRecipient(to) {
			return ErrNoRecipient
		}
		msg, err := render("test", map[string]any{"SentAt": time.Now().UTC().Format(time.RFC3339)})
		if err != nil {
			return err
		}
		return n.deliver(ctx, "test", to, msg, opts)
	default:
		return fmt.Errorf("email: unknown test kind %q", kind)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
