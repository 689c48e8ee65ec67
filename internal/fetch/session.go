package fetch

import (
	"net/http/cookiejar"
	"time"

	"inventory-scrapers/internal/inventory"
	"inventory-scrapers/lib/restyutil"
	"inventory-scrapers/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
)

type SessionOptions struct {
	UserAgent        string
	Timeout          time.Duration
	CloudflareBypass bool
	// Dump receives every request/response pair when set.
	Dump       restyutil.InstrumentOutput
	DumpPrefix string
}

// SessionOptionsFor derives session options from a brand config.
func SessionOptionsFor(cfg inventory.BrandConfig) SessionOptions {
	return SessionOptions{
		UserAgent:        cfg.UserAgent,
		Timeout:          cfg.Timeout.Std(),
		CloudflareBypass: cfg.CloudflareBypass,
		DumpPrefix:       cfg.Brand,
	}
}

// NewSession creates the http session owned by one brand run.
func NewSession(opts SessionOptions) (*resty.Client, error) {
	client := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	client.SetCookieJar(jar)
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = inventory.DefaultUserAgent
	}
	client.SetHeader("user-agent", userAgent)
	client.SetHeader("accept", "application/json, text/html;q=0.9, */*;q=0.8")

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	client.SetTimeout(timeout)

	telemetry.InstrumentResty(client, "inventory/http")
	restyutil.InstrumentClient(client, opts.DumpPrefix, opts.Dump)
	return client, nil
}
