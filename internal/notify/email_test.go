package notify

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smtpSession records what one client sent to smtpServer.
type smtpSession struct {
	mu   sync.Mutex
	auth []string
	from string
	rcpt []string
	data string
}

func (s *smtpSession) snapshot() smtpSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	return smtpSession{auth: s.auth, from: s.from, rcpt: s.rcpt, data: s.data}
}

// smtpServer speaks just enough ESMTP for net/smtp. Recipients listed in
// reject get a 550.
func smtpServer(t *testing.T, reject ...string) (SMTPConfig, *smtpSession) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	session := &smtpSession{}
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveSMTP(conn, session, reject)
		}
	}()

	return listenerConfig(t, ln), session
}

func serveSMTP(conn net.Conn, s *smtpSession, reject []string) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	reply := func(lines string) { fmt.Fprintf(conn, "%s\r\n", lines) }

	reply("220 localhost ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])

		s.mu.Lock()
		switch verb {
		case "EHLO":
			reply("250-localhost\r\n250-AUTH PLAIN\r\n250 8BITMIME")
		case "HELO", "NOOP", "RSET":
			reply("250 OK")
		case "AUTH":
			s.auth = append(s.auth, line)
			reply("235 2.7.0 Authentication successful")
		case "MAIL":
			s.from = between(line, "<", ">")
			reply("250 OK")
		case "RCPT":
			rcpt := between(line, "<", ">")
			if slices.Contains(reject, rcpt) {
				reply("550 5.1.1 No such user")
				break
			}
			s.rcpt = append(s.rcpt, rcpt)
			reply("250 OK")
		case "DATA":
			reply("354 End data with <CR><LF>.<CR><LF>")
			var lines []string
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					s.mu.Unlock()
					return
				}
				l = strings.TrimRight(l, "\r\n")
				if l == "." {
					break
				}
				lines = append(lines, strings.TrimPrefix(l, "."))
			}
			s.data = strings.Join(lines, "\r\n")
			reply("250 OK")
		case "QUIT":
			reply("221 Bye")
			s.mu.Unlock()
			return
		default:
			reply("502 Command not implemented")
		}
		s.mu.Unlock()
	}
}

func between(s, left, right string) string {
	start := strings.Index(s, left)
	end := strings.LastIndex(s, right)
	if start < 0 || end <= start {
		return ""
	}
	return s[start+1 : end]
}

func listenerConfig(t *testing.T, ln net.Listener) SMTPConfig {
	t.Helper()
	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return SMTPConfig{Host: host, Port: port, From: "feeder@example.com"}
}

// headers returns the header block of a message received by smtpServer.
func headers(data string) []string {
	head, _, _ := strings.Cut(data, "\r\n\r\n")
	return strings.Split(head, "\r\n")
}

func TestEmailSender(t *testing.T) {
	cfg, session := smtpServer(t)
	cfg.From = ""
	cfg.Username = "keeper@example.com"
	cfg.Password = "secret"

	sender, err := NewEmailSender(cfg)
	require.NoError(t, err)

	require.NoError(t, sender.Send(context.Background(), "Owner <owner@example.com>", testTitle, testBody))

	got := session.snapshot()
	require.Len(t, got.auth, 1)
	assert.True(t, strings.HasPrefix(got.auth[0], "AUTH PLAIN "))
	assert.Equal(t, "keeper@example.com", got.from)
	assert.Equal(t, []string{"owner@example.com"}, got.rcpt)
	assert.Contains(t, headers(got.data), "Subject: "+testTitle)
	assert.Contains(t, headers(got.data), "To: owner@example.com")
	assert.True(t, strings.HasSuffix(got.data, "\r\n\r\n"+testBody))
}

func TestEmailSenderRejectedRecipient(t *testing.T) {
	cfg, _ := smtpServer(t, "gone@example.com")
	sender, err := NewEmailSender(cfg)
	require.NoError(t, err)

	err = sender.Send(context.Background(), "gone@example.com", testTitle, testBody)
	assert.ErrorContains(t, err, "550")
}

func TestEmailSenderHeaderSafety(t *testing.T) {
	tests := []struct {
		name        string
		target      string
		title       string
		wantErr     bool
		wantSubject string
	}{
		{
			name:        "line break in title is flattened",
			target:      "owner@example.com",
			title:       "Overdue Feeding: Monty\r\nBcc: victim@evil.test",
			wantSubject: "Subject: Overdue Feeding: Monty Bcc: victim@evil.test",
		},
		{
			name:        "bare newline in title is flattened",
			target:      "owner@example.com",
			title:       "Overdue Feeding: Monty\nBcc: victim@evil.test",
			wantSubject: "Subject: Overdue Feeding: Monty Bcc: victim@evil.test",
		},
		{
			name:        "non-ascii title is encoded",
			target:      "owner@example.com",
			title:       "Fütterung",
			wantSubject: "Subject: =?utf-8?q?F=C3=BCtterung?=",
		},
		{
			name:    "line break in target is rejected",
			target:  "owner@example.com\r\nBcc: victim@evil.test",
			title:   testTitle,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, session := smtpServer(t)
			sender, err := NewEmailSender(cfg)
			require.NoError(t, err)

			err = sender.Send(context.Background(), tt.target, tt.title, testBody)
			got := session.snapshot()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, got.rcpt)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, []string{"owner@example.com"}, got.rcpt)
			assert.Contains(t, headers(got.data), tt.wantSubject)
			for _, h := range headers(got.data) {
				assert.False(t, strings.HasPrefix(strings.ToLower(h), "bcc:"), "unexpected header %q", h)
			}
		})
	}
}

// silentListener accepts connections and never writes a greeting.
func silentListener(t *testing.T) SMTPConfig {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var mu sync.Mutex
	var conns []net.Conn
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()
	t.Cleanup(func() {
		ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, c := range conns {
			c.Close()
		}
	})
	return listenerConfig(t, ln)
}

func TestEmailSenderHonoursContext(t *testing.T) {
	t.Run("deadline", func(t *testing.T) {
		sender, err := NewEmailSender(silentListener(t))
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		err = sender.Send(ctx, "owner@example.com", testTitle, testBody)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("cancel", func(t *testing.T) {
		sender, err := NewEmailSender(silentListener(t))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(100*time.Millisecond, cancel)

		start := time.Now()
		err = sender.Send(ctx, "owner@example.com", testTitle, testBody)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}
