package chromedp_tab

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/chromedp/cdproto/target"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noneOwned(target.ID) bool { return false }

func TestPickActive(t *testing.T) {
	tests := []struct {
		name   string
		infos  []*target.Info
		skip   func(target.ID) bool
		wantID target.ID
		wantOK bool
	}{
		{
			name: "first web page wins",
			infos: []*target.Info{
				{TargetID: "sw", Type: "service_worker", URL: "https://example.com/sw.js"},
				{TargetID: "a", Type: "page", URL: "https://example.com/docs"},
				{TargetID: "b", Type: "page", URL: "https://other.com"},
			},
			skip:   noneOwned,
			wantID: "a",
			wantOK: true,
		},
		{
			name: "internal page only used as fallback",
			infos: []*target.Info{
				{TargetID: "ntp", Type: "page", URL: "chrome://newtab/"},
				{TargetID: "b", Type: "page", URL: "https://other.com"},
			},
			skip:   noneOwned,
			wantID: "b",
			wantOK: true,
		},
		{
			name:   "internal page when nothing else",
			infos:  []*target.Info{{TargetID: "ntp", Type: "page", URL: "chrome://newtab/"}},
			skip:   noneOwned,
			wantID: "ntp",
			wantOK: true,
		},
		{
			name: "owned and prerender targets skipped",
			infos: []*target.Info{
				{TargetID: "mine", Type: "page", URL: "https://example.com"},
				{TargetID: "pre", Type: "page", Subtype: "prerender", URL: "https://example.com/next"},
			},
			skip:   func(id target.ID) bool { return id == "mine" },
			wantOK: false,
		},
		{name: "no targets", skip: noneOwned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := pickActive(tt.infos, tt.skip)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantID, info.TargetID)
			}
		})
	}
}

func TestNavigationTarget(t *testing.T) {
	page := &target.Info{TargetID: "a", Type: "page", URL: "https://example.com"}

	info, ok := navigationTarget(&target.EventTargetInfoChanged{TargetInfo: page})
	require.True(t, ok)
	assert.Equal(t, "https://example.com", info.URL)

	_, ok = navigationTarget(&target.EventTargetCreated{TargetInfo: page})
	assert.True(t, ok)

	_, ok = navigationTarget(&target.EventTargetInfoChanged{TargetInfo: &target.Info{Type: "iframe", URL: "https://ads.example"}})
	assert.False(t, ok)

	_, ok = navigationTarget(&target.EventTargetDestroyed{TargetID: "a"})
	assert.False(t, ok)
}

// TestTabAgainstBrowser needs a Chrome started with --remote-debugging-port.
func TestTabAgainstBrowser(t *testing.T) {
	debuggerURL := os.Getenv("CHROME_DEBUGGER_TEST_URL")
	if debuggerURL == "" {
		t.Skip("CHROME_DEBUGGER_TEST_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tab, err := New(ctx, debuggerURL, 20*time.Second, nil)
	require.NoError(t, err)
	defer tab.Close()

	pc, err := tab.Capture(ctx, "https://example.com")
	require.NoError(t, err)
	assert.Contains(t, pc.Title, "Example")
}
