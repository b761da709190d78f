// Package probe turns a single HTTP fetch into a classified outcome.
package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/GauravPawar101/Validate-me/internal/constants"
	"github.com/GauravPawar101/Validate-me/internal/models"
	"github.com/GauravPawar101/Validate-me/pkg/fetch"
)

// Outcome is the classified result of one probe.
type Outcome struct {
	Status  constants.TickStatus
	Latency time.Duration
	Details models.TickDetails
}

// LatencyMillis returns the latency in whole milliseconds.
func (o Outcome) LatencyMillis() int64 {
	return o.Latency.Milliseconds()
}

// Prober fetches URLs and classifies the responses.
type Prober struct {
	fetcher fetch.Fetcher
	timeout time.Duration
	policy  string
	now     func() time.Time
}

// NewProber creates a Prober. Zero timeout and empty policy fall back to defaults.
func NewProber(fetcher fetch.Fetcher, timeout time.Duration, policy string) *Prober {
	if timeout <= 0 {
		timeout = constants.DefaultFetchTimeout
	}
	if policy == "" {
		policy = constants.PolicyAny2xx
	}
	return &Prober{
		fetcher: fetcher,
		timeout: timeout,
		policy:  policy,
		now:     time.Now,
	}
}

// Timeout returns the hard fetch timeout.
func (p *Prober) Timeout() time.Duration {
	return p.timeout
}

// Probe fetches rawURL and classifies the result. Transport failures yield a
// bad outcome with zero latency; Probe itself never fails.
func (p *Prober) Probe(ctx context.Context, rawURL string) Outcome {
	start := p.now()
	resp, err := p.fetcher.Fetch(ctx, rawURL, p.timeout)
	if err != nil {
		return Failure(err)
	}
	if resp == nil {
		return Failure(errors.New("empty response"))
	}

	latency := p.now().Sub(start)
	if latency < 0 {
		latency = 0
	}

	status := Classify(resp.StatusCode, p.policy)
	details := models.TickDetails{
		ResponseCode:  resp.StatusCode,
		StatusText:    http.StatusText(resp.StatusCode),
		ContentLength: int64(len(resp.Body)),
	}
	if resp.Header != nil {
		details.ContentType = resp.Header.Get("Content-Type")
		details.ServerInfo = resp.Header.Get("Server")
	}
	if status == constants.StatusGood {
		details.Message = "OK"
	} else {
		details.Message = fmt.Sprintf("HTTP %d %s", resp.StatusCode, details.StatusText)
	}

	return Outcome{Status: status, Latency: latency, Details: details}
}

// Failure builds the outcome recorded for a transport error.
func Failure(err error) Outcome {
	code := ErrorCode(err)
	msg := err.Error()
	if code == constants.ErrCodeTimeout {
		msg = "Request timed out"
	}
	return Outcome{
		Status:  constants.StatusBad,
		Latency: 0,
		Details: models.TickDetails{
			Error:   msg,
			Code:    code,
			Message: msg,
		},
	}
}

// Classify maps an HTTP status code to good or bad under policy.
func Classify(code int, policy string) constants.TickStatus {
	if policy == constants.PolicyStrict200 {
		if code == http.StatusOK {
			return constants.StatusGood
		}
		return constants.StatusBad
	}
	if code >= 200 && code < 300 {
		return constants.StatusGood
	}
	return constants.StatusBad
}

// ErrorCode classifies a transport error.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return constants.ErrCodeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return constants.ErrCodeTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return constants.ErrCodeDNS
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return constants.ErrCodeConnectionRefused
	}
	if errors.Is(err, syscall.ECONNRESET) {
		return constants.ErrCodeConnectionReset
	}

	var (
		certErr      *tls.CertificateVerificationError
		unknownCA    x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		invalidCert  x509.CertificateInvalidError
		recordHeader tls.RecordHeaderError
	)
	if errors.As(err, &certErr) || errors.As(err, &unknownCA) || errors.As(err, &hostnameErr) ||
		errors.As(err, &invalidCert) || errors.As(err, &recordHeader) {
		return constants.ErrCodeTLS
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Op == "parse" {
		return constants.ErrCodeInvalidURL
	}
	if strings.Contains(err.Error(), "unsupported protocol scheme") {
		return constants.ErrCodeInvalidURL
	}

	return constants.ErrCodeUnknown
}
