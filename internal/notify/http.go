package notify

import (
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const defaultHTTPTimeout = 15 * time.Second

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// do sends req and treats any non-2xx status as a failure.
func do(client *http.Client, req *http.Request, service string) error {
	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s request failed", service)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("%s request failed with status %s: %s", service, resp.Status, detail)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
