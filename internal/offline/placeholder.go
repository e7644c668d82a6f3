package offline

import (
	"encoding/json"
	"net/http"
)

const placeholderSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="312" height="231" viewBox="0 0 312 231">` +
	`<rect width="312" height="231" fill="#f1f1f1"/>` +
	`<text x="156" y="120" font-family="sans-serif" font-size="16" fill="#999" text-anchor="middle">Image unavailable offline</text>` +
	`</svg>`

// OfflineMessage is returned in the body of a total-miss API response.
const OfflineMessage = "You appear to be offline and this request has not been cached yet."

func placeholderAsset(url string) *Asset {
	return &Asset{
		URL:        url,
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": {"image/svg+xml"}},
		Body:       []byte(placeholderSVG),
	}
}

// offlineAsset is the structured payload for a request that can be served
// neither from the network nor from the store.
func offlineAsset(url string) *Asset {
	body, _ := json.Marshal(map[string]any{
		"offline": true,
		"message": OfflineMessage,
	})
	return &Asset{
		URL:        url,
		StatusCode: http.StatusServiceUnavailable,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       body,
	}
}
