package entity

import "strings"

// Tier identifies which backend search strategy produced an answer.
type Tier string

const (
	TierSearch       Tier = "search"
	TierVectorSearch Tier = "vector-search"
	TierQuery        Tier = "query"
)

// Source is a page the backend cites for an answer.
type Source struct {
	URL     string `json:"url"`
	Title   string `json:"title,omitempty"`
	Snippet string `json:"snippet,omitempty"`
}

// Answer is the result of a successful question dispatch.
type Answer struct {
	Text     string   `json:"text"`
	Sources  []Source `json:"sources"`
	UsedTier Tier     `json:"used_tier"`
}

var unknownPhrases = []string{
	"i don't know",
	"i do not know",
	"i dont know",
	"i'm not sure",
	"i am not sure",
	"no relevant information",
	"could not find",
	"couldn't find",
	"not able to find",
}

// Unknown reports whether the answer is an "I don't know" equivalent.
// Such answers are valid and must be rendered differently from failures.
func (a *Answer) Unknown() bool {
	if a == nil {
		return false
	}
	text := strings.ToLower(strings.ReplaceAll(a.Text, "’", "'"))
	for _, phrase := range unknownPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

// BestSource returns the first cited source, if any.
func (a *Answer) BestSource() (Source, bool) {
	if a == nil || len(a.Sources) == 0 {
		return Source{}, false
	}
	return a.Sources[0], true
}
