// Package browser provides shared chromedp configuration with anti-bot-detection measures
// and the Page contract every browser-driving component is written against.
package browser

import "github.com/chromedp/chromedp"

// DefaultUserAgent is a realistic Chrome user agent
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// LaunchOptions configures one browser instance.
type LaunchOptions struct {
	Headless  bool
	UserAgent string
	ProxyURL  string
	ExecPath  string
}

// Options returns chromedp allocator options with anti-bot-detection measures.
// All browser instances should use this to ensure consistent stealth configuration.
func Options(lo LaunchOptions) []chromedp.ExecAllocatorOption {
	ua := lo.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", lo.Headless),

		// Prevent navigator.webdriver = true detection
		// This is the most important flag - X.com checks this
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),

		chromedp.UserAgent(ua),
		chromedp.WindowSize(1920, 1080),

		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	if lo.Headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	if lo.ProxyURL != "" {
		opts = append(opts, chromedp.ProxyServer(lo.ProxyURL))
	}
	if lo.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(lo.ExecPath))
	}

	return opts
}
