// Package browser provides shared chromedp configuration with anti-bot-detection measures.
package browser

import "github.com/chromedp/chromedp"

// DefaultUserAgent is a realistic Chrome user agent
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// Options returns chromedp allocator options with anti-bot-detection measures.
// All browser instances should use this to ensure consistent stealth configuration.
func Options(headless bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),

		// Prevent navigator.webdriver = true detection
		chromedp.Flag("disable-blink-features", "AutomationControlled"),

		chromedp.UserAgent(DefaultUserAgent),
		chromedp.WindowSize(1280, 900),

		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)

	if headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}

	return opts
}
