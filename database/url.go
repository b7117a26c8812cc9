package database

import (
	"net/url"
	"strings"
)

// ConstructDatabaseURL appends databaseName to the path of baseURL and
// defaults sslmode to disable. An empty databaseName returns baseURL as-is.
func ConstructDatabaseURL(baseURL, databaseName string) string {
	if databaseName == "" {
		return baseURL
	}

	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" {
		return baseURL
	}

	u.Path = "/" + databaseName

	q := u.Query()
	if q.Get("sslmode") == "" {
		q.Set("sslmode", "disable")
	}
	u.RawQuery = q.Encode()

	return u.String()
}
