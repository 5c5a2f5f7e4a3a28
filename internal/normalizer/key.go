package normalizer

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"

	"github.com/stocknews/newsbot/internal/models"
)

// Key computes the DedupKey of an already normalized item
func Key(item models.NewsItem) models.DedupKey {
	parts := []string{
		string(item.Provider),
		strings.ToLower(strings.TrimSpace(item.Original.Title)),
		CanonicalURL(item.SourceURL),
	}
	return models.DedupKey(hash(strings.Join(parts, "\x1f")))
}

// CanonicalURL lower-cases scheme and host, drops the fragment and a trailing slash
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimSuffix(strings.ToLower(raw), "/")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

func hash(input string) string {
	hasher := sha256.New()
	hasher.Write([]byte(input))
	return hex.EncodeToString(hasher.Sum(nil))
}
