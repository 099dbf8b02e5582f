package candidate

import (
	"net/url"
	"strings"
)

// DefaultBlockedDomains are ticketing and social aggregators whose pages are
// not accepted as an event source.
var DefaultBlockedDomains = []string{
	"eventbrite.com",
	"ticketmaster.com",
	"livenation.com",
	"bandsintown.com",
	"meetup.com",
	"facebook.com",
	"instagram.com",
	"allevents.in",
	"eventful.com",
	"stubhub.com",
	"tickpick.com",
	"vividseats.com",
	"songkick.com",
}

// IsBlockedDomain reports whether rawURL's host equals a blocked domain or is
// a subdomain of one. A leading "www." is ignored. Unparseable URLs are not
// blocked.
func IsBlockedDomain(rawURL string, blocklist []string) bool {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "" {
		return false
	}

	for _, blocked := range blocklist {
		blocked = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(blocked)), "www.")
		if blocked == "" {
			continue
		}
		if host == blocked || strings.HasSuffix(host, "."+blocked) {
			return true
		}
	}
	return false
}
