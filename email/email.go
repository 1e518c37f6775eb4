package email

import (
	"errors"
	"fmt"
	"mime"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"

	"pagesmith/common"
)

var (
	ErrHelpdeskDisabled = errors.New("helpdesk is disabled")
	ErrInvalidContact   = errors.New("name, a valid email and a message are required")
)

// ContactMessage is what a visitor posts through the contact form.
type ContactMessage struct {
	Name    string
	Email   string
	Subject string
	Message string
	Site    string
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// HelpdeskMailer forwards contact messages to the helpdesk address.
type HelpdeskMailer struct {
	enabled      bool
	host         string
	port         int
	user         string
	password     string
	contactName  string
	contactEmail string
	fromName     string
	noreplyEmail string
	send         sendFunc
}

func NewHelpdeskMailer(cfg *common.Config) *HelpdeskMailer {
	return &HelpdeskMailer{
		enabled:      cfg.HelpdeskEnabled,
		host:         cfg.SMTPHost,
		port:         cfg.SMTPPort,
		user:         cfg.SMTPUser,
		password:     cfg.SMTPPassword,
		contactName:  cfg.ContactName,
		contactEmail: cfg.ContactEmail,
		fromName:     cfg.FromName,
		noreplyEmail: cfg.NoreplyEmail,
		send:         smtp.SendMail,
	}
}

func (h *HelpdeskMailer) Enabled() bool {
	return h != nil && h.enabled && h.contactEmail != ""
}

// headerValue drops line breaks so a visitor cannot add headers.
func headerValue(v string) string {
	return strings.Join(strings.Fields(strings.NewReplacer("\r", " ", "\n", " ").Replace(v)), " ")
}

// Validate trims the message and checks the required fields.
func (m *ContactMessage) Validate() error {
	m.Name = headerValue(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	m.Subject = headerValue(m.Subject)
	m.Message = strings.TrimSpace(m.Message)

	if m.Name == "" || m.Message == "" {
		return ErrInvalidContact
	}
	addr, err := mail.ParseAddress(m.Email)
	if err != nil || addr.Address != m.Email {
		return ErrInvalidContact
	}
	return nil
}

// BuildMessage renders the RFC 822 message sent to the helpdesk. Replies go
// to the visitor.
func (h *HelpdeskMailer) BuildMessage(m ContactMessage) []byte {
	from := mail.Address{Name: h.fromName, Address: h.noreplyEmail}
	to := mail.Address{Name: h.contactName, Address: h.contactEmail}
	replyTo := mail.Address{Name: m.Name, Address: m.Email}

	subject := m.Subject
	if subject == "" {
		subject = "Contact form"
	}
	if m.Site != "" {
		subject = fmt.Sprintf("[%s] %s", headerValue(m.Site), subject)
	}

	body := fmt.Sprintf("Name: %s\r\nEmail: %s\r\n\r\n%s\r\n", m.Name, m.Email,
		strings.ReplaceAll(strings.ReplaceAll(m.Message, "\r\n", "\n"), "\n", "\r\n"))

	return []byte(fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Reply-To: %s\r\n"+
		"Subject: %s\r\n"+
		"Content-Type: text/plain; charset=UTF-8\r\n"+
		"\r\n"+
		"%s", from.String(), to.String(), replyTo.String(), mime.QEncoding.Encode("UTF-8", subject), body))
}

func (h *HelpdeskMailer) SendContactMessage(m ContactMessage) error {
	if !h.Enabled() {
		return ErrHelpdeskDisabled
	}
	if err := m.Validate(); err != nil {
		return err
	}

	var auth smtp.Auth
	if h.user != "" {
		auth = smtp.PlainAuth("", h.user, h.password, h.host)
	}
	addr := h.host + ":" + strconv.Itoa(h.port)

	if err := h.send(addr, auth, h.noreplyEmail, []string{h.contactEmail}, h.BuildMessage(m)); err != nil {
		return fmt.Errorf("error sending contact message: %w", err)
	}
	return nil
}
