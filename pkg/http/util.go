package http

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildURL joins path onto baseURL and appends the non-empty query parameters.
// An absolute path (with scheme) is used as-is, keeping any query it carries.
func BuildURL(baseURL, path string, queryParams map[string]string) (string, error) {
	var parsedURL *url.URL
	var err error

	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		parsedURL, err = url.Parse(path)
		if err != nil {
			return "", fmt.Errorf("error parsing URL: %w", err)
		}
	} else {
		joined := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
		parsedURL, err = url.Parse(joined)
		if err != nil {
			return "", fmt.Errorf("error parsing base URL: %w", err)
		}
	}

	// Set query parameters dynamically
	q := parsedURL.Query()
	for key, value := range queryParams {
		if value == "" {
			continue
		}
		q.Set(key, value)
	}
	parsedURL.RawQuery = q.Encode()

	return parsedURL.String(), nil
}
