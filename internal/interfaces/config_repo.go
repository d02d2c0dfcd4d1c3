package interfaces

import (
	"github.com/ternarybob/spinneret/internal/models"
)

// ScrapeProfile describes how a host should be crawled: the expected content
// shape, scripted UI actions, link skip-list, and continuation policy.
type ScrapeProfile struct {
	Host         string                  `yaml:"host"`
	ExpectedPart models.PartKind         `yaml:"expected_part"`
	UIActions    []models.UIAction       `yaml:"ui_actions"`
	URLSkipList  []string                `yaml:"url_skip_list"`
	Continuation models.ContinuationKind `yaml:"continuation"`
	DownloadRaw  bool                    `yaml:"download_raw"`
}

// ProfileRepository resolves the scrape profile to attach to a request.
// Read-only from the core's perspective.
type ProfileRepository interface {
	// ResolveProfile returns the profile for a URI's host; ok is false when no
	// profile is configured (callers fall back to autodetect defaults).
	ResolveProfile(uri string) (profile *ScrapeProfile, ok bool)
}
