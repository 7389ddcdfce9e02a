package icloud

import "icloudalbum/pkg/models"

// Enrich assigns each derivative the URL stored under its checksum in urls
// and returns how many derivatives received one. Derivatives whose checksum
// is absent keep their current URL. Running it twice with the same map
// leaves the photos unchanged.
func Enrich(photos []models.Photo, urls map[string]string) int {
	if len(urls) == 0 {
		return 0
	}

	assigned := 0
	for _, photo := range photos {
		for key, d := range photo.Derivatives {
			url, ok := urls[d.Checksum]
			if !ok {
				continue
			}
			d.URL = url
			photo.Derivatives[key] = d
			assigned++
		}
	}
	return assigned
}
