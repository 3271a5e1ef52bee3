package external_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/jobscout/internal/common"
	"github.com/ternarybob/jobscout/internal/external"
)

const testListingHTML = `<html><head><title>Python Developer - Acme</title></head>
<body>
  <div class="job-title">Python Developer</div>
  <div class="job-card">one</div>
  <div class="job-card">two</div>
</body></html>`

func TestStaticPage_GotoAndQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testListingHTML))
	}))
	defer server.Close()

	page := external.NewStaticPage(nil, "jobscout-test/1.0")
	require.NoError(t, page.Goto(context.Background(), server.URL))

	title, err := page.Title(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Python Developer - Acme", title)

	html, found, err := page.QuerySelector(context.Background(), ".job-title")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Contains(t, html, "Python Developer")

	cards, err := page.QuerySelectorAll(context.Background(), ".job-card")
	require.NoError(t, err)
	assert.Len(t, cards, 2)

	assert.Equal(t, server.URL, page.URL())
}

func TestStaticPage_QuerySelectorMissReportsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testListingHTML))
	}))
	defer server.Close()

	page := external.NewStaticPage(nil, "")
	require.NoError(t, page.Goto(context.Background(), server.URL))

	_, found, err := page.QuerySelector(context.Background(), ".does-not-exist")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStaticPage_ForbiddenIsBlockedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	page := external.NewStaticPage(nil, "")
	err := page.Goto(context.Background(), server.URL)
	require.Error(t, err)
	assert.IsType(t, &common.BlockedError{}, err)
}
