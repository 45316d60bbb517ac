package repository

import (
	"context"

	"github.com/tchan1002/apache/internal/entity"
)

// TabRepository is the browser collaborator: the active tab and its navigations.
type TabRepository interface {
	// ActiveURL returns the URL of the currently active tab.
	ActiveURL(ctx context.Context) (string, error)
	// Navigate points the active tab at url.
	Navigate(ctx context.Context, url string) error
	// Navigations streams the URL of every top-level navigation or tab switch
	// until ctx is done.
	Navigations(ctx context.Context) (<-chan string, error)
}

// PageRepository captures what the user currently sees on a page.
type PageRepository interface {
	Capture(ctx context.Context, url string) (*entity.PageContext, error)
}
