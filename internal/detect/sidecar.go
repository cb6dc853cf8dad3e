package detect

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/text/language"
	"golang.org/x/time/rate"
)

// SidecarDetector calls a presidio-style analyzer sidecar over HTTP. Requests
// are rate limited and responses are cached by content hash so rescans of an
// unchanged document do not hit the sidecar again.
type SidecarDetector struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	cache   *gocache.Cache
}

// SidecarOptions configures the sidecar client.
type SidecarOptions struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	CacheTTL          time.Duration
	CacheSweep        time.Duration
}

// NewSidecarDetector builds a sidecar client for the given base URL
// (e.g. "http://localhost:8001").
func NewSidecarDetector(opts SidecarOptions) *SidecarDetector {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = 4
	}
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	sweep := opts.CacheSweep
	if sweep <= 0 {
		sweep = 2 * ttl
	}
	return &SidecarDetector{
		url:     strings.TrimRight(opts.BaseURL, "/") + "/analyze",
		client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		cache:   gocache.New(ttl, sweep),
	}
}

func (d *SidecarDetector) Name() string { return "sidecar" }

type analyzeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type analyzeFinding struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

// Detect sends text to the sidecar analyzer. Any transport failure, non-200
// response, or malformed body converts to ErrUnavailable: a broken sidecar
// must never look like a clean "no findings" scan.
func (d *SidecarDetector) Detect(ctx context.Context, text string, lang language.Tag) ([]Candidate, error) {
	key := cacheKey(text, lang)
	if cached, ok := d.cache.Get(key); ok {
		return append([]Candidate(nil), cached.([]Candidate)...), nil
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return nil, Unavailable(d.Name(), err)
	}

	body, err := json.Marshal(analyzeRequest{Text: text, Language: lang.String()})
	if err != nil {
		return nil, Unavailable(d.Name(), err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return nil, Unavailable(d.Name(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, Unavailable(d.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, Unavailable(d.Name(), fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var findings []analyzeFinding
	if err := json.NewDecoder(resp.Body).Decode(&findings); err != nil {
		return nil, Unavailable(d.Name(), fmt.Errorf("decode response: %w", err))
	}

	candidates := make([]Candidate, 0, len(findings))
	for _, finding := range findings {
		candidates = append(candidates, Candidate{
			Start:      finding.Start,
			End:        finding.End,
			Category:   mapSidecarType(finding.EntityType),
			Confidence: finding.Score,
			Source:     d.Name(),
		})
	}
	d.cache.Set(key, candidates, gocache.DefaultExpiration)
	return append([]Candidate(nil), candidates...), nil
}

func cacheKey(text string, lang language.Tag) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:]) + ":" + lang.String()
}

func mapSidecarType(entityType string) Category {
	switch strings.ToUpper(strings.TrimSpace(entityType)) {
	case "PERSON", "PER":
		return CategoryPerson
	case "ORG", "ORGANIZATION":
		return CategoryOrg
	case "LOCATION", "LOC", "GPE":
		return CategoryLocation
	case "EMAIL", "EMAIL_ADDRESS":
		return CategoryEmail
	case "PHONE", "PHONE_NUMBER":
		return CategoryPhone
	case "ID_NUMBER", "IBAN_CODE", "US_SSN", "DE_TAX_ID":
		return CategoryIDNumber
	case "DATE", "DATE_TIME":
		return CategoryDate
	default:
		return CategoryMisc
	}
}
