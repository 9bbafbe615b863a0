package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// SMTPConfig configures the email channel.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

func (c *SMTPConfig) validate() error {
	if c.Host == "" || c.Port <= 0 {
		return errors.New("email notifications require smtp host and port")
	}
	if c.From == "" && c.Username == "" {
		return errors.New("email notifications require smtp from or username")
	}
	if _, err := mail.ParseAddress(c.From); c.From != "" && err != nil {
		return errors.Wrapf(err, "invalid smtp from address %q", c.From)
	}
	return nil
}

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// EmailSender delivers over SMTP with PLAIN auth when credentials are set.
// Every network step is bounded by the send context.
type EmailSender struct {
	config SMTPConfig
	dial   dialFunc
}

func NewEmailSender(config SMTPConfig) (*EmailSender, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	if config.From == "" {
		config.From = config.Username
	}
	return &EmailSender{config: config, dial: (&net.Dialer{}).DialContext}, nil
}

func (s *EmailSender) Send(ctx context.Context, target, title, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	addr, err := mail.ParseAddress(strings.TrimSpace(target))
	if err != nil {
		return errors.Wrapf(err, "invalid email address %q", target)
	}
	to := addr.Address

	if err := s.deliver(ctx, to, composeEmail(s.config.From, to, title, body)); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return errors.Wrapf(ctxErr, "smtp send to %s", to)
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return errors.Wrapf(context.DeadlineExceeded, "smtp send to %s", to)
		}
		return errors.Wrapf(err, "smtp send to %s", to)
	}
	return nil
}

func (s *EmailSender) deliver(ctx context.Context, to string, msg []byte) error {
	hostPort := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	conn, err := s.dial(ctx, "tcp", hostPort)
	if err != nil {
		return err
	}
	// closing the connection unblocks any read or write once ctx ends
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return err
		}
	}

	c, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.config.Host}); err != nil {
			return err
		}
	}
	if s.config.Username != "" {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("server does not support AUTH")
		}
		auth := smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host)
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(s.config.From); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

var headerBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// composeEmail builds a plain-text message. Line breaks in the subject are
// flattened and non-ASCII text is Q-encoded, so no value can start a header.
func composeEmail(from, to, title, body string) []byte {
	subject := mime.QEncoding.Encode("utf-8", headerBreaks.Replace(title))

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
