package entity

import "time"

// SiteState is the cached scouting verdict for one page URL.
// Scouted implies SiteID != "".
type SiteState struct {
	URL       string `json:"url"`
	Domain    string `json:"domain"`
	SiteID    string `json:"site_id,omitempty"`
	Scouted   bool   `json:"scouted"`
	Timestamp int64  `json:"timestamp"` // unix millis, observability only
}

// NewSiteState builds a state computed now.
func NewSiteState(url, domain, siteID string, scouted bool) *SiteState {
	return &SiteState{
		URL:       url,
		Domain:    domain,
		SiteID:    siteID,
		Scouted:   scouted && siteID != "",
		Timestamp: time.Now().UnixMilli(),
	}
}

// Ready reports whether questions can be asked for this state.
func (s *SiteState) Ready() bool {
	return s != nil && s.Scouted && s.SiteID != ""
}
