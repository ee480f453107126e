package archive

import (
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
)

// The site prints timestamps like "13-01-2026 | 10:59 AM".
var siteTimePattern = regexp.MustCompile(`\b\d{2}-\d{2}-\d{4}\s*\|\s*\d{1,2}:\d{2}\s*(?:AM|PM|am|pm)?`)

var siteTimeLayouts = []string{
	"02-01-2006 | 3:04 PM",
	"02-01-2006 | 15:04",
	"02-01-2006 3:04 PM",
	"02-01-2006 15:04",
	"02/01/2006 | 3:04 PM",
}

const publishedFormat = "02 Jan 2006, 03:04 PM"

// extractPublished pulls a raw published-time string out of the page,
// best effort: the site's own timestamp pattern first, then <time> tags,
// then common meta tags.
func extractPublished(doc *goquery.Document) string {
	if m := siteTimePattern.FindString(doc.Text()); m != "" {
		return strings.TrimSpace(m)
	}

	if v, ok := doc.Find("time[datetime]").First().Attr("datetime"); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	if v := strings.TrimSpace(doc.Find("time").First().Text()); v != "" {
		return v
	}

	metaSelectors := []string{
		`meta[property="article:published_time"]`,
		`meta[property="og:published_time"]`,
		`meta[itemprop="datePublished"]`,
		`meta[name="pubdate"]`,
		`meta[name="publishdate"]`,
		`meta[name="date"]`,
	}
	for _, sel := range metaSelectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// normalizePublished renders a raw timestamp string in a friendly, uniform
// format. Unparseable input is returned as-is rather than dropped.
func normalizePublished(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	for _, layout := range siteTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(publishedFormat)
		}
	}

	if t, err := dateparse.ParseAny(raw); err == nil {
		return t.Format(publishedFormat)
	}

	return raw
}
