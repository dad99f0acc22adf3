package scraper

import (
	"net/url"
	"strings"

	"github.com/caribvillas/villa-scraper/internal/models"
)

// Destinations is the closed vocabulary of locales the business operates in.
// Every stored property's location is one of these or the fallback.
var Destinations = []string{
	"Barbados",
	"Jamaica",
	"St. Lucia",
	"Antigua",
	"Bahamas",
	"Turks and Caicos",
	"Dominican Republic",
	"Grand Cayman",
	"St. Barts",
}

type hostnameRule struct {
	destination string
	domains     []string
}

// hostnameRules maps known listing-site hostnames to destinations. Dedicated
// per-destination sites come first; generic country substrings in the
// hostname are checked after them.
var hostnameRules = []hostnameRule{
	{"Barbados", []string{"barbadosvillarentals", "bajanvillas", "realtorslimited", "islandvillas.com"}},
	{"Jamaica", []string{"jamaicavillas", "villasinjamaica", "jamaicaescapes", "lintonsjamaica"}},
	{"St. Lucia", []string{"stluciavillas", "oasismarigot", "luciaescapes"}},
	{"Turks and Caicos", []string{"turksandcaicosvillas", "gracebaycottages", "tcvillas"}},
	{"Bahamas", []string{"bahamasvillarentals", "exumavillas"}},
	{"Antigua", []string{"antiguavillas", "antiguarentals"}},
	{"Grand Cayman", []string{"caymanvillas", "grandcaymanvillas"}},
	{"St. Barts", []string{"stbarth", "sibarthrealestate", "wimco"}},
	{"Dominican Republic", []string{"casadecampo", "puntacanavillas"}},
	// Generic fallbacks: country keyword anywhere in the hostname.
	{"Barbados", []string{"barbados"}},
	{"Jamaica", []string{"jamaica"}},
	{"St. Lucia", []string{"stlucia", "st-lucia"}},
	{"Antigua", []string{"antigua"}},
	{"Bahamas", []string{"bahamas"}},
	{"Turks and Caicos", []string{"turks"}},
	{"Grand Cayman", []string{"cayman"}},
	{"Dominican Republic", []string{"dominican"}},
}

type keywordRule struct {
	destination string
	keywords    []string
}

// contentRules maps page-text keywords to destinations. Place names unique to
// one destination rank above bare country names, which can appear in
// boilerplate ("villas across Jamaica, Barbados and beyond").
var contentRules = []keywordRule{
	{"Barbados", []string{"holetown", "speightstown", "sandy lane", "st. james parish", "platinum coast"}},
	{"Jamaica", []string{"montego bay", "ocho rios", "negril", "discovery bay", "tryall club"}},
	{"St. Lucia", []string{"castries", "soufriere", "rodney bay", "marigot bay", "cap estate"}},
	{"Turks and Caicos", []string{"providenciales", "grace bay", "long bay beach"}},
	{"Antigua", []string{"english harbour", "jolly harbour", "dickenson bay"}},
	{"Bahamas", []string{"nassau", "paradise island", "exuma", "eleuthera", "harbour island"}},
	{"Grand Cayman", []string{"seven mile beach", "rum point", "cayman kai"}},
	{"St. Barts", []string{"gustavia", "st. jean", "flamands"}},
	{"Dominican Republic", []string{"punta cana", "casa de campo", "cap cana", "la romana"}},
	// Country names last.
	{"Barbados", []string{"barbados"}},
	{"Jamaica", []string{"jamaica"}},
	{"St. Lucia", []string{"st. lucia", "saint lucia", "st lucia"}},
	{"Antigua", []string{"antigua"}},
	{"Bahamas", []string{"bahamas"}},
	{"Turks and Caicos", []string{"turks and caicos", "turks & caicos"}},
	{"Grand Cayman", []string{"grand cayman", "cayman islands"}},
	{"St. Barts", []string{"st. barts", "st barts", "saint barth"}},
	{"Dominican Republic", []string{"dominican republic"}},
}

// alternativeSources are villa-listing domains worth trying when a site
// blocks us, keyed by destination.
var alternativeSources = map[string][]string{
	"Barbados":           {"barbadosvillarentals.com", "islandvillas.com"},
	"Jamaica":            {"jamaicavillas.com", "villasinjamaica.com"},
	"St. Lucia":          {"stluciavillas.com", "oasismarigot.com"},
	"Turks and Caicos":   {"tcvillas.com", "gracebaycottages.com"},
	"Bahamas":            {"bahamasvillarentals.com", "exumavillas.com"},
	"Antigua":            {"antiguavillas.com"},
	"Grand Cayman":       {"caymanvillas.com"},
	"St. Barts":          {"wimco.com"},
	"Dominican Republic": {"casadecampo.com.do", "puntacanavillas.com"},
}

// ResolveDestination picks the destination for a property. Precedence is
// strict: an explicit caller-supplied destination always wins, then hostname
// rules, then page-content keywords, then the fallback. The explicit override
// exists because the heuristics below are unreliable and the business always
// knows which destination a batch of URLs belongs to.
func ResolveDestination(explicit, sourceURL, pageText string) string {
	if d := strings.TrimSpace(explicit); d != "" {
		return d
	}

	if u, err := url.Parse(sourceURL); err == nil {
		host := strings.ToLower(u.Hostname())
		for _, rule := range hostnameRules {
			for _, domain := range rule.domains {
				if strings.Contains(host, domain) {
					return rule.destination
				}
			}
		}
	}

	text := strings.ToLower(pageText)
	for _, rule := range contentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.destination
			}
		}
	}

	return models.FallbackDestination
}

// AlternativeSources returns domains to suggest when a scrape is blocked.
// The destination-specific list comes first, Barbados and Jamaica as general
// fallbacks when the destination is unknown.
func AlternativeSources(destination string) []string {
	if domains, ok := alternativeSources[destination]; ok {
		return domains
	}
	return append(alternativeSources["Barbados"], alternativeSources["Jamaica"]...)
}
