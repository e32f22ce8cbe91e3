package audit

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"

	"vanguard/internal/domain"
)

const (
	userAgent    = "Vanguard-SAI-838"
	maxBodyBytes = 2 << 20

	issueLatency         = "CRITICAL LATENCY: %.2fs - High DDoS vulnerability."
	issueClickjacking    = "SECURITY GAP: Missing Clickjacking protection (X-Frame-Options)."
	issueCSP             = "SECURITY GAP: Missing Content-Security-Policy. XSS exposure."
	issueMetaDescription = "SEO EXPOSURE: No Meta Description. Site is invisible to indexing."
	issueConnection      = "CONNECTION_FAILURE: Architecture shielded. Error: %v"
)

// SiteRules toggles the individual header and body checks.
type SiteRules struct {
	Clickjacking    bool
	CSP             bool
	CSPSeverity     domain.Severity
	MetaDescription bool
}

type SiteOptions struct {
	Timeout          time.Duration
	LatencyThreshold time.Duration
	Rules            SiteRules
	// Transport overrides the default dialer-bounded transport.
	Transport http.RoundTripper
}

// DefaultSiteOptions enables every check.
func DefaultSiteOptions() SiteOptions {
	return SiteOptions{
		Timeout:          10 * time.Second,
		LatencyThreshold: 1500 * time.Millisecond,
		Rules: SiteRules{
			Clickjacking:    true,
			CSP:             true,
			CSPSeverity:     domain.SeverityCritical,
			MetaDescription: true,
		},
	}
}

// SiteScanner probes a website once and derives findings from the response.
type SiteScanner struct {
	opts   SiteOptions
	client *http.Client
}

func NewSiteScanner(opts SiteOptions) *SiteScanner {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.LatencyThreshold <= 0 {
		opts.LatencyThreshold = 1500 * time.Millisecond
	}
	if opts.Rules.CSPSeverity == 0 {
		opts.Rules.CSPSeverity = domain.SeverityCritical
	}
	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: opts.Timeout,
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
		}
	}
	return &SiteScanner{
		opts:   opts,
		client: &http.Client{Timeout: opts.Timeout, Transport: transport},
	}
}

// NormalizeURL prepends https:// to targets without an http:// or https://
// scheme. Scheme matching ignores case; hosts such as httpbin.org still get one.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return raw
	}
	return "https://" + raw
}

// Scan never fails: an unreachable site is reported as a single
// connection-failure issue at LOW severity.
func (s *SiteScanner) Scan(ctx context.Context, raw string) domain.Finding {
	target := NormalizeURL(raw)
	f := domain.Finding{
		Kind:     domain.TargetWebsite,
		Target:   target,
		Issues:   []string{},
		Severity: domain.SeverityLow,
		Domain:   registrableDomain(target),
	}

	resp, body, elapsed, err := s.fetch(ctx, target)
	if err != nil {
		f.Issues = []string{fmt.Sprintf(issueConnection, err)}
		f.Failure = domain.NewFailure(domain.NetworkUnreachable, err)
		f.RemediationDays, f.Cost = Quote(len(f.Issues))
		return f
	}
	f.StatusCode = resp.StatusCode

	if elapsed > s.opts.LatencyThreshold {
		f.Issues = append(f.Issues, fmt.Sprintf(issueLatency, elapsed.Seconds()))
		f.Severity = f.Severity.Escalate(domain.SeverityHigh)
	}
	rules := s.opts.Rules
	if rules.Clickjacking && resp.Header.Get("X-Frame-Options") == "" {
		f.Issues = append(f.Issues, issueClickjacking)
		f.Severity = f.Severity.Escalate(domain.SeverityMedium)
	}
	if rules.CSP && resp.Header.Get("Content-Security-Policy") == "" {
		f.Issues = append(f.Issues, issueCSP)
		f.Severity = f.Severity.Escalate(rules.CSPSeverity)
	}
	if rules.MetaDescription && !hasMetaDescription(body) {
		f.Issues = append(f.Issues, issueMetaDescription)
	}

	f.RemediationDays, f.Cost = Quote(len(f.Issues))
	return f
}

// fetch issues exactly one GET. Elapsed covers headers and body, like a
// client that downloads the page before inspecting it.
func (s *SiteScanner) fetch(ctx context.Context, target string) (*http.Response, []byte, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, 0, err
	}
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, nil, 0, err
	}
	return resp, body, time.Since(start), nil
}

func hasMetaDescription(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	return doc.Find(`meta[name="description"]`).Length() > 0
}

func registrableDomain(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if net.ParseIP(host) != nil {
		return host
	}
	registrable, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return registrable
}
