package reddit

// old.reddit.com DOM selectors used by BrowserFetcher.
// These are isolated here because the markup changes without notice.
// Update these when browser fetching breaks.

const (
	// Listing selectors
	SiteTable = `#siteTable`
	PostThing = `div.thing[data-fullname^="t3_"]`

	// Post detail selectors
	PostTitle = `a.title`
)

// Common wait conditions
const (
	WaitForListing = SiteTable
)
