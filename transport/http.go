package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/mikabele/canoe/event"
)

// HTTPSource polls a REST endpoint on an interval, decoding each
// response body as a batch of event.Update values. Grounded on
// cmd/mcrew/http.go's Jar (a cookiejar.Jar configured with
// publicsuffix.List so cookies scope correctly across subdomains),
// reused here for a polling client that needs to hold a session cookie
// across requests.
type HTTPSource struct {
	URL      string
	Interval time.Duration

	client *http.Client
}

// NewHTTPSource builds an HTTPSource with a cookie-aware client.
func NewHTTPSource(url string, interval time.Duration) (*HTTPSource, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("transport: http source: %w", err)
	}
	return &HTTPSource{
		URL:      url,
		Interval: interval,
		client:   &http.Client{Jar: jar},
	}, nil
}

// Run polls s.URL every s.Interval, decoding the response body as a
// JSON array of Updates and forwarding each to out, until ctx is done.
func (s *HTTPSource) Run(ctx context.Context, out chan<- event.Update) error {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.poll(ctx, out); err != nil {
				logDecodeError("http", nil, err)
			}
		}
	}
}

func (s *HTTPSource) poll(ctx context.Context, out chan<- event.Update) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var updates []event.Update
	if err := json.Unmarshal(body, &updates); err != nil {
		return err
	}

	for _, u := range updates {
		select {
		case out <- u:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}
