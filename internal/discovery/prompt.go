package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// Prompt is a single-turn generation request.
type Prompt struct {
	System string
	User   string
}

const systemPromptTemplate = `You are an assistant that researches real-world LOCAL public events (concerts, festivals, shows, markets, etc.) for a specified place and time window.
Use the %[1]s before answering so that every event is backed by a trustworthy local source.
Return STRICT JSON ONLY (no prose) as an array of events. If nothing is found, return [].

Rules:
- Use the requested timezone for dates/times.
- Normalize: dates = YYYY-MM-DD, times = HH:MM (24h).
- Strongly prefer LOCAL community sources: city/county (.gov/.us/.net), libraries, parks & recreation, community/downtown/chamber, museums/arts, tourism/visitors/CVB, and local news sites.
- Deprioritize large aggregators (Eventbrite, Ticketmaster, Meetup, Bandsintown, Facebook, Instagram) unless no local source exists.
- Actively click through %[2]s results to confirm the event page exists and visibly lists its date/time/venue before including it.
- Each event must include a verifiable source_url from that same inspected page.
- The source_url must be a live, fully-qualified event-detail URL on the official/local domain (never search results, generic homepages, redirect wrappers, or ticketing aggregators). If you cannot open or verify the page, omit the event.
- Aim to return 10 distinct events when available; include credible events even if some details are missing.
- De-duplicate by (title + start_date + venue).
- If any field is unknown, omit the field rather than guessing.

OUTPUT SCHEMA (use exactly these keys when present):
[
  {
    "title": "string",
    "description": "string",
    "start_date": "YYYY-MM-DD",
    "end_date": "YYYY-MM-DD",
    "start_time": "HH:MM",
    "end_time": "HH:MM",
    "timezone": "string",
    "location": {
      "venue": "string",
      "address": "string",
      "city": "string",
      "state": "string",
      "country": "string",
      "latitude": number,
      "longitude": number
    },
    "organizer": {
      "name": "string",
      "contact_email": "string",
      "phone": "string"
    },
    "ticket_info": {
      "price": "string",
      "currency": "string",
      "purchase_url": "string"
    },
    "media": {
      "image_url": "string",
      "video_url": "string"
    },
    "tags": ["string", "..."],
    "source_url": "string"
  }
]`

// SearchTool names the web search capability a generator exposes, as it
// should be referred to in prompts.
type SearchTool struct {
	// Grounding is the tool itself, e.g. "Google Search grounding tool".
	Grounding string
	// Results names the result set, e.g. "Google Search".
	Results string
}

// GenericSearchTool is used for providers without a branded search tool.
var GenericSearchTool = SearchTool{Grounding: "web search tool", Results: "web search"}

// SystemPrompt returns the research rules and output schema.
func SystemPrompt(tool SearchTool) string {
	return fmt.Sprintf(systemPromptTemplate, tool.Grounding, tool.Results)
}

// UserPrompt describes the place and window being searched.
func UserPrompt(a Area, tool SearchTool) string {
	radiusNote := "the immediate local area"
	if a.RadiusMiles > 0 {
		radiusNote = strconv.FormatFloat(a.RadiusMiles, 'f', -1, 64) + " mile radius"
	}

	locality := "Use any trustworthy sources you can confirm, leaning toward local/community references when available."
	if a.PreferLocal {
		locality = "Strongly prioritize official local/community sources (city or county sites, CVBs, tourism bureaus, downtown alliances, libraries, parks & recreation, local news). " +
			"Use " + tool.Grounding + " to surface these first."
	}

	return strings.Join([]string{
		"Find real-world public events for the requested place and window.",
		"When possible, gather around 10 solid options.",
		"",
		"Location:",
		"- city: " + a.City,
		"- region_or_state: " + a.Region,
		"- country: " + a.Country,
		"",
		"Time window:",
		"- start_date: " + a.StartDate,
		"- end_date: " + a.EndDate,
		"",
		"Target radius: " + radiusNote,
		locality,
		"Include events even if some logistical details are missing, as long as the source link is trustworthy.",
		"",
		"Instructions:",
		"- Only include events occurring within the requested dates (inclusive) and inside the radius.",
		"- Use " + tool.Results + " tool results to open an event page and verify the date/time/location before adding it.",
		"- Every event must cite the exact page you inspected as source_url.",
		"- The source_url must be a direct, working event-detail link on the official/local host (not homepages, search results, redirect URLs, or ticketing aggregators). Skip the event if you cannot find that exact page.",
		"- Favor community calendars, civic/tourism sites, local news, and avoid large ticketing aggregators.",
		"- Aim for roughly 10 qualifying events when the sources exist.",
		"- Format dates as YYYY-MM-DD and times as HH:MM (24h).",
		"",
		"Timezone for normalization: " + a.Timezone,
	}, "\n")
}
