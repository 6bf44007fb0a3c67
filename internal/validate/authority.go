// Package validate classifies declared sources by authority tier for the
// audit report.
package validate

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/ppiankov/veracity/internal/model"
)

// sourceTypeHints promote a source whose declared Type names primary material
var sourceTypeHints = []string{"statute", "legislation", "regulation", "peer-reviewed", "academic paper", "court ruling", "standard"}

// AuthorityClassifier classifies sources into authority tiers
type AuthorityClassifier struct {
	config       *model.AuthorityConfig
	primaryMap   map[string]bool
	secondaryMap map[string]bool
	pathPatterns []*compiledPattern
}

type compiledPattern struct {
	pattern *regexp.Regexp
	tier    model.AuthorityTier
}

// NewAuthorityClassifier creates a new authority classifier
func NewAuthorityClassifier(config *model.AuthorityConfig) *AuthorityClassifier {
	if config == nil {
		config = &model.DefaultConfig().Authority
	}

	classifier := &AuthorityClassifier{
		config:       config,
		primaryMap:   make(map[string]bool),
		secondaryMap: make(map[string]bool),
		pathPatterns: make([]*compiledPattern, 0),
	}

	for _, domain := range config.PrimaryDomains {
		classifier.primaryMap[strings.ToLower(domain)] = true
	}
	for _, domain := range config.SecondaryDomains {
		classifier.secondaryMap[strings.ToLower(domain)] = true
	}

	// Invalid patterns are skipped
	for _, pathPattern := range config.PathPatterns {
		if re, err := regexp.Compile(pathPattern.Pattern); err == nil {
			classifier.pathPatterns = append(classifier.pathPatterns, &compiledPattern{
				pattern: re,
				tier:    parseTierString(pathPattern.Tier),
			})
		}
	}

	return classifier
}

// Annotate sets the Authority field of every source
func (a *AuthorityClassifier) Annotate(sources []model.SourceEntry) {
	for i := range sources {
		sources[i].Authority = a.ClassifySource(sources[i]).String()
	}
}

// ClassifySource classifies a declared source by its URI, promoting
// tertiary web sources whose declared Type names primary material
func (a *AuthorityClassifier) ClassifySource(src model.SourceEntry) model.AuthorityTier {
	tier := a.Classify(src.CanonicalURI)
	if tier != model.TierTertiary {
		return tier
	}

	declared := strings.ToLower(src.SourceType)
	for _, hint := range sourceTypeHints {
		if strings.Contains(declared, hint) {
			return model.TierSecondary
		}
	}
	return tier
}

// Classify classifies a URL into an authority tier. Local files and
// unparseable URIs are TierUnknown.
func (a *AuthorityClassifier) Classify(rawURL string) model.AuthorityTier {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "file" {
		return model.TierUnknown
	}

	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return model.TierUnknown
	}
	path := parsed.Path

	// Check explicit domain mappings from config
	if tierStr, ok := a.config.DomainMap[host]; ok {
		return parseTierString(tierStr)
	}

	if matchesDomain(host, a.primaryMap) {
		return model.TierPrimary
	}
	if matchesDomain(host, a.secondaryMap) {
		return model.TierSecondary
	}

	for _, cp := range a.pathPatterns {
		if cp.pattern.MatchString(path) {
			return cp.tier
		}
	}

	// Common suffixes that often indicate authority
	for _, suffix := range []string{".gov", ".edu", ".ac.uk", ".mil"} {
		if strings.HasSuffix(host, suffix) {
			return model.TierPrimary
		}
	}

	return model.TierTertiary
}

// matchesDomain reports whether host is one of domains or a subdomain of one
func matchesDomain(host string, domains map[string]bool) bool {
	if domains[host] {
		return true
	}
	for domain := range domains {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// parseTierString converts a tier string to AuthorityTier
func parseTierString(tier string) model.AuthorityTier {
	switch strings.ToLower(tier) {
	case "primary", "1":
		return model.TierPrimary
	case "secondary", "2":
		return model.TierSecondary
	default:
		return model.TierTertiary
	}
}
