package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// DefaultTwilioBaseURL is the production Twilio REST API root.
const DefaultTwilioBaseURL = "https://api.twilio.com"

// TwilioConfig configures the SMS channel.
type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
	BaseURL    string `yaml:"base_url"`
}

// SMSSender posts messages to the Twilio Messages resource.
type SMSSender struct {
	config TwilioConfig
	client *http.Client
}

func NewSMSSender(config TwilioConfig, client *http.Client) (*SMSSender, error) {
	if config.AccountSID == "" || config.AuthToken == "" || config.FromNumber == "" {
		return nil, errors.New("sms notifications require twilio account_sid, auth_token and from_number")
	}
	if config.BaseURL == "" {
		config.BaseURL = DefaultTwilioBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if client == nil {
		client = defaultHTTPClient()
	}
	return &SMSSender{config: config, client: client}, nil
}

func (s *SMSSender) Send(ctx context.Context, target, title, body string) error {
	to := strings.TrimSpace(target)
	if to == "" {
		return errors.New("sms target phone number is empty")
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.config.FromNumber)
	form.Set("Body", fmt.Sprintf("%s\n%s", title, body))

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.config.BaseURL, url.PathEscape(s.config.AccountSID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "build twilio request")
	}
	req.SetBasicAuth(s.config.AccountSID, s.config.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return do(s.client, req, "twilio")
}
