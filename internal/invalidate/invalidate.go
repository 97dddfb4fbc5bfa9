// Package invalidate implements the best-effort cache invalidation
// notifier that runs after a successful sync write batch.
package invalidate

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/lildude/stravasync/internal/cache"
	"github.com/lildude/stravasync/internal/client"
	"github.com/sirupsen/logrus"
)

// PurgeBaseURL is the CDN zone purge API root.
var PurgeBaseURL = "https://api.cloudflare.com/client/v4"

// Notifier purges cached activity-list reads for an owner: the local
// Redis entry and the externally cached list URL. Failures surface as
// warnings, never as errors — invalidation must not fail a sync unit
// whose writes are already durable.
type Notifier struct {
	cache    cache.Cache
	log      logrus.FieldLogger
	zoneID   string
	apiToken string
	baseURL  string
	rc       *client.Client
}

// NewNotifier builds a notifier from the CDN_ZONE_ID, CDN_API_TOKEN and
// BASE_URL environment variables. Missing CDN credentials downgrade the
// external purge to a warning.
func NewNotifier(c cache.Cache, log logrus.FieldLogger) *Notifier {
	u, _ := url.Parse(PurgeBaseURL)
	return &Notifier{
		cache:    c,
		log:      log,
		zoneID:   os.Getenv("CDN_ZONE_ID"),
		apiToken: os.Getenv("CDN_API_TOKEN"),
		baseURL:  os.Getenv("BASE_URL"),
		rc:       client.NewClient(u, &http.Client{Timeout: 5 * time.Second}),
	}
}

type purgeRequest struct {
	Files []string `json:"files"`
}

// Invalidate drops the owner's cached activity list and asks the CDN to
// purge the public list URL. The returned warnings describe anything
// that failed.
func (n *Notifier) Invalidate(ctx context.Context, ownerID int64) []string {
	var warnings []string

	if n.cache != nil {
		if err := n.cache.Del(ctx, cache.ActivityListKey(ownerID)); err != nil {
			n.log.WithError(err).Warn("cache invalidation failed")
			warnings = append(warnings, fmt.Sprintf("cache invalidation failed: %v", err))
		}
	}

	if n.zoneID == "" || n.apiToken == "" {
		warnings = append(warnings, "cdn purge skipped: missing CDN credentials")
		return warnings
	}

	fileURL := fmt.Sprintf("%s/api/users/%d/activities", n.baseURL, ownerID)
	path := fmt.Sprintf("/client/v4/zones/%s/purge_cache", n.zoneID)
	req, err := n.rc.NewRequest(ctx, http.MethodPost, path, &purgeRequest{Files: []string{fileURL}})
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("cdn purge failed: %v", err))
		return warnings
	}
	req.Header.Set("Authorization", "Bearer "+n.apiToken)

	resp, err := n.rc.Do(req, nil)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		n.log.WithError(err).WithField("owner", ownerID).Warn("cdn purge failed")
		warnings = append(warnings, fmt.Sprintf("cdn purge failed: %v", err))
		return warnings
	}

	n.log.WithField("owner", ownerID).Debug("purged cached activity list")
	return warnings
}
