// Plexdigest - Media Server Newsletter Digest Generator
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/plexdigest

package newsletter

import (
	"fmt"
	"net/url"
	"strings"
)

// Recognized template tokens. Tokens are literal, case-sensitive substrings;
// a token absent from the template skips that card's computation entirely.
const (
	TokenMostWatchedMovies   = "{{CARD_MOST_WATCHED_MOVIES}}"
	TokenMostWatchedShows    = "{{CARD_MOST_WATCHED_SHOWS}}"
	TokenMostWatchedEpisodes = "{{CARD_MOST_WATCHED_EPISODES}}"
	TokenPopularMovies       = "{{CARD_POPULAR_MOVIES}}"
	TokenPopularShows        = "{{CARD_POPULAR_SHOWS}}"
	TokenPopularPlatforms    = "{{CARD_POPULAR_PLATFORMS}}"
	TokenServerTotals        = "{{CARD_SERVER_TOTALS}}"
	TokenRecentMovies        = "{{CARD_RECENT_MOVIES}}"
	TokenRecentEpisodes      = "{{CARD_RECENT_EPISODES}}"
)

// OwnerRecTokens are the accepted spellings for the host recommendation
// card. All of them expand to the same fragment.
var OwnerRecTokens = []string{
	"{{CARD_OWNER_RECOMMENDATION}}",
	"{{CARD_HOST_RECOMMENDATION}}",
	"{{HOST_RECOMMENDATION}}",
	"{{HOSTS_RECOMMENDATION}}",
}

const noDataHTML = `<div style="opacity:.7">No data</div>`

// containsToken reports whether the template carries the literal token.
func containsToken(templateHTML, token string) bool {
	return strings.Contains(templateHTML, token)
}

// stringsReplacerAll performs one simultaneous pass over the template, so a
// card body containing a token-shaped string is never expanded again.
func stringsReplacerAll(templateHTML string, pairs []string) string {
	return strings.NewReplacer(pairs...).Replace(templateHTML)
}

// htmlBuilder accumulates card body fragments.
type htmlBuilder struct {
	b strings.Builder
}

func (h *htmlBuilder) raw(s string) { h.b.WriteString(s) }

func (h *htmlBuilder) Len() int { return h.b.Len() }

func (h *htmlBuilder) String() string { return h.b.String() }

// entry renders one poster row with a bold title and a muted detail line.
func (h *htmlBuilder) entry(posterSrc, title, detail, extra string) {
	h.raw(`<div style="display:flex;align-items:center;margin:8px 0">`)
	if posterSrc != "" {
		h.raw(posterImg(posterSrc, title, 46, 68))
	}
	h.raw(`<div><div style="font-weight:600">` + htmlEscape(title) + `</div>`)
	if detail != "" {
		h.raw(`<div style="opacity:.7;font-size:13px">` + htmlEscape(detail) + `</div>`)
	}
	if extra != "" {
		h.raw(`<div style="font-size:13px;margin-top:4px">` + htmlEscape(extra) + `</div>`)
	}
	h.raw(`</div></div>`)
}

// linkedEntry renders a poster row whose title links out when href is set.
func (h *htmlBuilder) linkedEntry(posterSrc, title, href, summary string) {
	h.raw(`<div style="display:flex;align-items:flex-start;margin:10px 0">`)
	if posterSrc != "" {
		h.raw(posterImg(posterSrc, title, 46, 68))
	}
	h.raw(`<div>`)
	if href != "" {
		h.raw(`<div style="font-weight:600"><a href="` + href + `" style="color:#2563eb;text-decoration:none">` + htmlEscape(title) + `</a></div>`)
	} else {
		h.raw(`<div style="font-weight:600">` + htmlEscape(title) + `</div>`)
	}
	if summary != "" {
		h.raw(`<div style="opacity:.8;font-size:13px;margin-top:4px">` + htmlEscape(summary) + `</div>`)
	}
	h.raw(`</div></div>`)
}

// iconEntry renders a small icon row for the platforms card.
func (h *htmlBuilder) iconEntry(iconSrc, name, detail string) {
	h.raw(`<div style="display:flex;align-items:center;margin:6px 0">`)
	h.raw(`<img src="` + iconSrc + `" alt="" style="width:22px;height:22px;margin-right:10px" />`)
	h.raw(`<div style="font-weight:600;margin-right:8px">` + htmlEscape(name) + `</div>`)
	h.raw(`<div style="opacity:.7;font-size:13px">` + htmlEscape(detail) + `</div>`)
	h.raw(`</div>`)
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
)

// htmlEscape escapes text for embedding in card HTML.
func htmlEscape(s string) string {
	return htmlEscaper.Replace(s)
}

// cardHTML wraps a body fragment in the shared card chrome.
func cardHTML(title, bodyHTML string) string {
	return `<div style="border:1px solid #e5e7eb;border-radius:12px;padding:16px;background:#fff;margin:16px 0;">
    <h3 style="margin:0 0 10px 0;font-size:16px;line-height:1.2">` + htmlEscape(title) + `</h3>
    ` + bodyHTML + `
  </div>`
}

// liHTML renders one label/value list entry.
func liHTML(label, value string) string {
	return `<li>` + htmlEscape(label) + ` <span style="opacity:.7">— ` + htmlEscape(value) + `</span></li>`
}

// formatInt renders n with thousands separators.
func formatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// formatHm renders an hours/minutes duration label such as
// "2 Hours, 0 Minutes".
func formatHm(hours, minutes int) string {
	hs := "Hours"
	if hours == 1 {
		hs = "Hour"
	}
	ms := "Minutes"
	if minutes == 1 {
		ms = "Minute"
	}
	return fmt.Sprintf("%s %s, %s %s", formatInt(hours), hs, formatInt(minutes), ms)
}

// posterImg renders a small poster image tag.
func posterImg(src, alt string, w, h int) string {
	return fmt.Sprintf(
		`<img src="%s" alt="%s" style="width:%dpx;height:%dpx;object-fit:cover;border-radius:6px;margin-right:10px;border:1px solid #e5e7eb" />`,
		src, htmlEscape(alt), w, h,
	)
}

// imageProxyURL rewrites an upstream artwork reference through the
// same-origin image proxy: server-relative paths ride on ?path=, absolute
// URLs on ?u=. Mail clients never talk to the media server directly.
func imageProxyURL(baseURL, p string) string {
	if p == "" {
		return ""
	}
	base := strings.TrimRight(baseURL, "/")
	if strings.HasPrefix(p, "/") {
		return base + "/api/v1/plex/image?path=" + url.QueryEscape(p)
	}
	return base + "/api/v1/plex/image?u=" + url.QueryEscape(p)
}

// appPlexHref builds an app.plex.tv deep link for a library item.
func appPlexHref(machineID, ratingKey string) string {
	if machineID == "" || ratingKey == "" {
		return ""
	}
	key := "/library/metadata/" + url.PathEscape(ratingKey)
	return "https://app.plex.tv/desktop/#!/server/" + url.PathEscape(machineID) +
		"/details?key=" + url.QueryEscape(key)
}

// twoDigits zero-pads an episode or season number, rendering "??" for an
// unknown value.
func twoDigits(n *int) string {
	if n == nil {
		return "??"
	}
	return fmt.Sprintf("%02d", *n)
}

// truncate shortens s to at most n runes with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// platformIconURL maps a raw platform name to a bundled icon.
func platformIconURL(baseURL, nameRaw string) string {
	base := strings.TrimRight(baseURL, "/") + "/assets/platforms"
	s := strings.ToLower(nameRaw)
	switch {
	case strings.Contains(s, "tvos"), strings.Contains(s, "apple tv"):
		return base + "/atv.png"
	case strings.Contains(s, "android tv"):
		return base + "/androidtv.png"
	case strings.Contains(s, "android"):
		return base + "/android.png"
	case strings.Contains(s, "roku"):
		return base + "/roku.png"
	case strings.Contains(s, "fire tv"), strings.Contains(s, "firetv"):
		return base + "/firetv.png"
	case strings.Contains(s, "samsung"), strings.Contains(s, "tizen"):
		return base + "/samsung.png"
	case strings.Contains(s, "lg"):
		return base + "/lg.png"
	case strings.Contains(s, "xbox"):
		return base + "/xbox.png"
	case strings.Contains(s, "playstation"), strings.Contains(s, "ps4"), strings.Contains(s, "ps5"):
		return base + "/playstation.png"
	case strings.Contains(s, "windows"):
		return base + "/windows.png"
	case strings.Contains(s, "ios"):
		return base + "/ios.png"
	case strings.Contains(s, "mac"):
		return base + "/macos.png"
	case strings.Contains(s, "linux"):
		return base + "/linux.png"
	case strings.Contains(s, "chrome"):
		return base + "/chrome.png"
	case strings.Contains(s, "safari"):
		return base + "/safari.png"
	case strings.Contains(s, "edge"):
		return base + "/edge.png"
	case strings.Contains(s, "web"):
		return base + "/web.png"
	default:
		return base + "/generic.png"
	}
}

// platformDisplayName maps a raw platform name to a friendly label.
func platformDisplayName(nameRaw string) string {
	s := strings.ToLower(nameRaw)
	switch {
	case strings.Contains(s, "tvos"), strings.Contains(s, "apple tv"):
		return "Apple TV"
	case strings.Contains(s, "tizen"), strings.Contains(s, "samsung"):
		return "Samsung TV"
	case strings.Contains(s, "roku"):
		return "Roku"
	case strings.Contains(s, "android tv"):
		return "Android TV"
	case s == "android":
		return "Plex App (Android)"
	case strings.Contains(s, "ios"):
		return "Plex App (iOS)"
	case strings.Contains(s, "windows"):
		return "Windows"
	case strings.Contains(s, "mac"):
		return "macOS"
	case strings.Contains(s, "linux"):
		return "Linux"
	case strings.Contains(s, "chrome"):
		return "Chrome"
	case strings.Contains(s, "safari"):
		return "Safari"
	case strings.Contains(s, "edge"):
		return "Edge"
	case strings.Contains(s, "firefox"):
		return "Firefox"
	case strings.Contains(s, "fire tv"), strings.Contains(s, "firetv"):
		return "Fire TV"
	case strings.Contains(s, "lg"):
		return "LG TV"
	case strings.Contains(s, "playstation"), strings.Contains(s, "ps4"), strings.Contains(s, "ps5"):
		return "PlayStation"
	case strings.Contains(s, "xbox"):
		return "Xbox"
	case strings.Contains(s, "web"):
		return "Web App"
	default:
		return "Other"
	}
}
