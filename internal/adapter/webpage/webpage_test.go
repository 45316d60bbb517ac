package webpage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tchan1002/apache/internal/repository"
)

const samplePage = `<!doctype html>
<html>
<head>
  <title>  Docs |
   Example </title>
  <meta property="og:description" content="Open graph text">
  <meta name="description" content="How to use Example.">
  <style>body { color: red }</style>
</head>
<body>
  <nav>Home About</nav>
  <h1>Getting started</h1>
  <p>Install   the tool.</p>
  <h2>Configuration</h2>
  <h3></h3>
  <script>var x = 1;</script>
  <p>Set the env vars.</p>
  <footer>Copyright</footer>
</body>
</html>`

func TestExtractPageContext(t *testing.T) {
	pc, err := ExtractPageContext("https://example.com/docs", samplePage)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/docs", pc.URL)
	assert.Equal(t, "Docs | Example", pc.Title)
	assert.Equal(t, "How to use Example.", pc.Description)
	assert.Equal(t, []string{"Getting started", "Configuration"}, pc.Headings)
	assert.Equal(t, "Getting started Install the tool. Configuration Set the env vars.", pc.Text)
}

func TestExtractPageContextFallsBackToOpenGraph(t *testing.T) {
	pc, err := ExtractPageContext("https://example.com", `<html><head><meta property="og:description" content="OG"></head><body></body></html>`)
	require.NoError(t, err)
	assert.Equal(t, "OG", pc.Description)
	assert.Empty(t, pc.Text)
}

func TestExtractPageContextTruncatesText(t *testing.T) {
	body := "<html><body><p>" + strings.Repeat("é ", MaxTextLen) + "</p></body></html>"
	pc, err := ExtractPageContext("https://example.com", body)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(pc.Text, "…"))
	assert.LessOrEqual(t, utf8.RuneCountInString(pc.Text), MaxTextLen+1)
}

func TestFetcherCapture(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	pc, err := NewFetcher(time.Second, nil).Capture(context.Background(), srv.URL+"/docs")
	require.NoError(t, err)
	assert.Equal(t, "Docs | Example", pc.Title)
	assert.Equal(t, srv.URL+"/docs", pc.URL)
}

func TestFetcherCaptureStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewFetcher(time.Second, nil).Capture(context.Background(), srv.URL)
	var netErr *repository.NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, http.StatusNotFound, netErr.StatusCode)
}
