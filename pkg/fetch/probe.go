package fetch

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"
)

// StatusUnreachable is the sentinel status recorded for external references
// that cannot be reached. It is not a real HTTP status from the target: it
// marks failed DNS resolution or a transport failure during the probe.
const StatusUnreachable = http.StatusNotFound

// HostResolver resolves hostnames to addresses. *net.Resolver satisfies it;
// tests substitute a canned implementation.
type HostResolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Prober performs lightweight reachability checks on external references.
// It deliberately bypasses seed sessions: external content is out of scope
// for capture, so only reachability matters.
type Prober struct {
	client   *http.Client
	resolver HostResolver
	log      *logrus.Entry
}

// NewProber creates a Prober using the system DNS resolver
func NewProber(client *http.Client, log *logrus.Entry) *Prober {
	return NewProberWithResolver(client, net.DefaultResolver, log)
}

// NewProberWithResolver creates a Prober with a custom resolver (test doubles)
func NewProberWithResolver(client *http.Client, resolver HostResolver, log *logrus.Entry) *Prober {
	return &Prober{client: client, resolver: resolver, log: log}
}

// Probe checks whether absURL is reachable. The hostname is resolved first;
// if resolution fails no request is made and StatusUnreachable is returned.
// Otherwise an unauthenticated GET is issued within the client's timeout
// budget and any transport failure also maps to StatusUnreachable. The body
// is always discarded.
func (p *Prober) Probe(ctx context.Context, absURL string) int {
	probeLog := p.log.WithField("url", absURL)

	parsed, err := url.Parse(absURL)
	if err != nil {
		probeLog.Warnf("Unparseable external URL: %v", err)
		return StatusUnreachable
	}

	if _, err := p.resolver.LookupHost(ctx, parsed.Hostname()); err != nil {
		probeLog.Debugf("DNS lookup failed for host '%s': %v", parsed.Hostname(), err)
		return StatusUnreachable
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, absURL, nil)
	if err != nil {
		probeLog.Warnf("Failed to build probe request: %v", err)
		return StatusUnreachable
	}

	resp, err := p.client.Do(req)
	if err != nil {
		probeLog.Debugf("Probe transport failure: %v", err)
		return StatusUnreachable
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	probeLog.WithField("status", resp.StatusCode).Trace("External probe complete")
	return resp.StatusCode
}
