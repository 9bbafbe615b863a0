package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// DefaultNtfyHost is used when no ntfy host is configured.
const DefaultNtfyHost = "ntfy.sh"

// NtfyConfig configures the push channel. Host may carry a scheme; plain
// hosts are reached over http.
type NtfyConfig struct {
	Host string `yaml:"host"`
}

// NtfySender publishes to an ntfy topic named by the target.
type NtfySender struct {
	baseURL string
	client  *http.Client
}

func NewNtfySender(config NtfyConfig, client *http.Client) *NtfySender {
	host := strings.TrimRight(config.Host, "/")
	if host == "" {
		host = DefaultNtfyHost
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	if client == nil {
		client = defaultHTTPClient()
	}
	return &NtfySender{baseURL: host, client: client}
}

func (s *NtfySender) Send(ctx context.Context, target, title, body string) error {
	topic := strings.Trim(strings.TrimSpace(target), "/")
	if topic == "" {
		return errors.New("ntfy topic is empty")
	}

	endpoint := fmt.Sprintf("%s/%s", s.baseURL, url.PathEscape(topic))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "build ntfy request")
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Title", title)

	return do(s.client, req, "ntfy")
}

// GotifyConfig configures the gotify channel.
type GotifyConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// GotifySender posts to a Gotify server's message endpoint. The target is
// shown as a prefix since Gotify has no per-user addressing.
type GotifySender struct {
	config GotifyConfig
	client *http.Client
}

func NewGotifySender(config GotifyConfig, client *http.Client) (*GotifySender, error) {
	if config.URL == "" || config.Token == "" {
		return nil, errors.New("gotify notifications require url and token")
	}
	config.URL = strings.TrimRight(config.URL, "/")
	if client == nil {
		client = defaultHTTPClient()
	}
	return &GotifySender{config: config, client: client}, nil
}

type gotifyMessage struct {
	Title    string `json:"title"`
	Message  string `json:"message"`
	Priority int    `json:"priority"`
}

func (s *GotifySender) Send(ctx context.Context, target, title, body string) error {
	message := body
	if target != "" {
		message = fmt.Sprintf("%s: %s", target, body)
	}
	data, err := json.Marshal(gotifyMessage{Title: title, Message: message, Priority: 5})
	if err != nil {
		return errors.Wrap(err, "encode gotify message")
	}

	endpoint := fmt.Sprintf("%s/message?token=%s", s.config.URL, url.QueryEscape(s.config.Token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "build gotify request")
	}
	req.Header.Set("Content-Type", "application/json")

	return do(s.client, req, "gotify")
}
