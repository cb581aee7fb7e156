// internal/automation/navigate.go
package automation

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/filterctl/internal/locator"
	"github.com/xkilldash9x/filterctl/internal/router"
)

// openFilterPage walks the table's candidate paths in order and returns the
// URL of the first one that shows the filter marker.
func (f *flow) openFilterPage(ctx context.Context) (string, error) {
	marker, err := f.resolve(locator.FilterMarker)
	if err != nil {
		return "", err
	}

	tried := make([]string, 0, len(f.table.FilterPaths))
	for _, path := range f.table.FilterPaths {
		tried = append(tried, path)
		pageURL := f.conn.URL(path)
		logger := f.logger.With(zap.String("url", pageURL))

		if err := f.page.Navigate(ctx, pageURL); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			logger.Warn("Could not load candidate filter page.", zap.Error(err))
			continue
		}
		if err := f.page.WaitUntil(ctx, f.timeouts.ElementWait, f.present(marker)); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			logger.Info("Candidate page has no URL filter control.", zap.Error(err))
			continue
		}

		logger.Info("Found URL filter settings page.")
		return pageURL, nil
	}

	return "", router.NewError(router.KindPageNotFound, router.StageNavigation, nil,
		"URL filter settings not found at any of %s", strings.Join(tried, ", "))
}
