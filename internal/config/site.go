package config

import "strings"

// SiteConfig holds settings for a single website.
type SiteConfig struct {
	// Cookie is an HTTP cookie sent with every request to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent with every request to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// MaxPages overrides the global page limit for this site when positive.
	MaxPages int `yaml:"maxPages,omitempty"`

	// IgnorePatterns are glob patterns matched against URL paths; matching
	// sub-pages are never fetched.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns restrict sub-pages to paths matching at least one pattern.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File represents the structure of the .decision-scraper configuration file.
type File struct {
	// Sites maps host names (e.g. "example.com") to site settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host merged over the defaults.
// The host is matched case-insensitively, with and without a "www." prefix.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	siteConfig, ok := cf.lookup(host)
	if !ok {
		return result
	}

	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if siteConfig.MaxPages > 0 {
		result.MaxPages = siteConfig.MaxPages
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range siteConfig.Headers {
			result.Headers[k] = v
		}
	}
	if len(siteConfig.IgnorePatterns) > 0 {
		result.IgnorePatterns = siteConfig.IgnorePatterns
	}
	if len(siteConfig.FollowPatterns) > 0 {
		result.FollowPatterns = siteConfig.FollowPatterns
	}

	return result
}

func (cf *File) lookup(host string) (SiteConfig, bool) {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.LastIndex(host, ":"); i > 0 && !strings.Contains(host[i:], "]") {
		host = host[:i]
	}

	candidates := []string{host}
	if trimmed := strings.TrimPrefix(host, "www."); trimmed != host {
		candidates = append(candidates, trimmed)
	} else {
		candidates = append(candidates, "www."+host)
	}

	for _, key := range candidates {
		for name, sc := range cf.Sites {
			if strings.EqualFold(name, key) {
				return sc, true
			}
		}
	}
	return SiteConfig{}, false
}
