package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// ErrDomainRejected is returned when the authorization service reports the
// deployment inactive or registered to another domain.
var ErrDomainRejected = errors.New("domain not authorized")

// DomainCheck asks an external service whether this deployment is still
// licensed. The service answers {"active": bool, "domain": string}.
type DomainCheck struct {
	URL    string
	Domain string
	Client *http.Client
}

type domainStatus struct {
	Active bool   `json:"active"`
	Domain string `json:"domain"`
}

// Authorize implements DomainAuthorizer.
func (d *DomainCheck) Authorize(ctx context.Context) error {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("domain check: http status %d", resp.StatusCode)
	}

	var st domainStatus
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&st); err != nil {
		return fmt.Errorf("domain check: decode: %w", err)
	}
	if !st.Active {
		return fmt.Errorf("%w: inactive", ErrDomainRejected)
	}
	if d.Domain != "" && !strings.EqualFold(strings.TrimSpace(st.Domain), d.Domain) {
		return fmt.Errorf("%w: registered to %q", ErrDomainRejected, st.Domain)
	}
	return nil
}
