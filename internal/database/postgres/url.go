package postgres

import "strings"

// NormalizeURL accepts the SQLAlchemy-style URLs users often paste
// (postgresql+psycopg2://...) and returns a libpq URL pgx can parse.
// Anything else is returned unchanged.
func NormalizeURL(url string) string {
	scheme, rest, ok := strings.Cut(url, "://")
	if !ok {
		return url
	}
	base, _, _ := strings.Cut(scheme, "+")
	switch strings.ToLower(base) {
	case "postgres", "postgresql":
		return "postgres://" + rest
	}
	return url
}
