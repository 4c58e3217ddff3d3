// Package httpport is an HTTP-backed dataport.DataPort, adapted from the
// teacher's internal/jira.dcClient: the same sliding-window response cache
// (RWMutex-guarded map, TTL extended on access up to a hit-count cap) and
// inter-request throttle, pointed at a caregiver/scheduling service's REST
// API instead of a Jira Data Center instance.
package httpport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"mcs-mcp/internal/matching/dataport"
	"mcs-mcp/internal/matching/domain"
)

// Config configures the HTTP-backed DataPort client.
type Config struct {
	BaseURL      string
	AuthToken    string
	RequestDelay time.Duration
	CacheTTL     time.Duration
}

type cacheEntry struct {
	value       interface{}
	expiration  time.Time
	accessCount int
	originalTTL time.Duration
}

// Client is an HTTP-backed dataport.DataPort, safe for concurrent use.
type Client struct {
	cfg         Config
	httpClient  *http.Client
	lastRequest time.Time
	reqMutex    sync.Mutex

	cache      map[string]*cacheEntry
	cacheMutex sync.RWMutex
}

var _ dataport.DataPort = (*Client)(nil)

// New returns an HTTP-backed DataPort, defaulting RequestDelay and CacheTTL
// the way the teacher's NewDataCenterClient defaulted RequestDelay.
func New(cfg Config) *Client {
	if cfg.RequestDelay == 0 {
		cfg.RequestDelay = 200 * time.Millisecond
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 2 * time.Minute
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		cache:      make(map[string]*cacheEntry),
	}
}

func (c *Client) getFromCache(key string) (interface{}, bool) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()

	entry, ok := c.cache[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiration) {
		delete(c.cache, key)
		return nil, false
	}

	// Sliding window extension, capped the way the teacher capped
	// AccessCount at 6 so a hot key can't pin a stale cache forever.
	if entry.accessCount < 6 {
		entry.expiration = time.Now().Add(entry.originalTTL)
		entry.accessCount++
	}
	return entry.value, true
}

func (c *Client) addToCache(key string, value interface{}, ttl time.Duration) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()
	c.cache[key] = &cacheEntry{value: value, expiration: time.Now().Add(ttl), originalTTL: ttl, accessCount: 1}
}

func (c *Client) throttle() {
	c.reqMutex.Lock()
	defer c.reqMutex.Unlock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < c.cfg.RequestDelay {
		wait := c.cfg.RequestDelay - elapsed
		log.Debug().Dur("wait", wait).Msg("throttling scheduling API request")
		time.Sleep(wait)
	}
	c.lastRequest = time.Now()
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	c.throttle()

	reqURL := fmt.Sprintf("%s%s", c.cfg.BaseURL, path)
	if len(query) > 0 {
		reqURL = reqURL + "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("scheduling API returned status %d for %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) GetVisit(ctx context.Context, id domain.VisitID) (*dataport.Visit, error) {
	cacheKey := "visit:" + id.String()
	if v, ok := c.getFromCache(cacheKey); ok {
		visit := v.(dataport.Visit)
		return &visit, nil
	}

	var visit dataport.Visit
	if err := c.get(ctx, "/visits/"+id.String(), nil, &visit); err != nil {
		return nil, err
	}
	c.addToCache(cacheKey, visit, c.cfg.CacheTTL)
	return &visit, nil
}

func (c *Client) AssignVisit(ctx context.Context, id domain.VisitID, caregiverID domain.CaregiverID) error {
	c.throttle()

	reqURL := fmt.Sprintf("%s/visits/%s/assign", c.cfg.BaseURL, id.String())
	body := strings.NewReader(fmt.Sprintf(`{"caregiverId":%q}`, caregiverID.String()))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.AuthToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("scheduling API returned status %d assigning visit %s", resp.StatusCode, id)
	}

	c.cacheMutex.Lock()
	delete(c.cache, "visit:"+id.String())
	c.cacheMutex.Unlock()
	return nil
}

func (c *Client) ActiveCaregiversInBranch(ctx context.Context, branchID domain.BranchID) ([]dataport.Caregiver, error) {
	cacheKey := "caregivers:" + branchID.String()
	if v, ok := c.getFromCache(cacheKey); ok {
		return v.([]dataport.Caregiver), nil
	}

	var caregivers []dataport.Caregiver
	query := url.Values{"branchId": {branchID.String()}, "active": {"true"}}
	if err := c.get(ctx, "/caregivers", query, &caregivers); err != nil {
		return nil, err
	}
	c.addToCache(cacheKey, caregivers, c.cfg.CacheTTL)
	return caregivers, nil
}

func (c *Client) BatchWeeklyHours(ctx context.Context, caregiverIDs []domain.CaregiverID, on time.Time) (map[domain.CaregiverID]float64, error) {
	cacheKey := "weeklyHours:" + idsKey(caregiverIDs) + ":" + on.Format("2006-01-02")
	if v, ok := c.getFromCache(cacheKey); ok {
		return v.(map[domain.CaregiverID]float64), nil
	}

	var out map[domain.CaregiverID]float64
	query := url.Values{"caregiverIds": {idsKey(caregiverIDs)}, "week": {on.Format("2006-01-02")}}
	if err := c.get(ctx, "/caregivers/weekly-hours", query, &out); err != nil {
		return nil, err
	}
	c.addToCache(cacheKey, out, c.cfg.CacheTTL)
	return out, nil
}

func (c *Client) BatchConflicts(ctx context.Context, caregiverIDs []domain.CaregiverID, day time.Time) (map[domain.CaregiverID][]domain.TimeInterval, error) {
	cacheKey := "conflicts:" + idsKey(caregiverIDs) + ":" + day.Format("2006-01-02")
	if v, ok := c.getFromCache(cacheKey); ok {
		return v.(map[domain.CaregiverID][]domain.TimeInterval), nil
	}

	var out map[domain.CaregiverID][]domain.TimeInterval
	query := url.Values{"caregiverIds": {idsKey(caregiverIDs)}, "day": {day.Format("2006-01-02")}}
	if err := c.get(ctx, "/caregivers/conflicts", query, &out); err != nil {
		return nil, err
	}
	c.addToCache(cacheKey, out, 30*time.Second)
	return out, nil
}

func (c *Client) BatchClientHistory(ctx context.Context, caregiverIDs []domain.CaregiverID, clientID domain.ClientID) (map[domain.CaregiverID]dataport.ClientHistory, error) {
	cacheKey := "clientHistory:" + clientID.String() + ":" + idsKey(caregiverIDs)
	if v, ok := c.getFromCache(cacheKey); ok {
		return v.(map[domain.CaregiverID]dataport.ClientHistory), nil
	}

	var out map[domain.CaregiverID]dataport.ClientHistory
	query := url.Values{"caregiverIds": {idsKey(caregiverIDs)}, "clientId": {clientID.String()}}
	if err := c.get(ctx, "/clients/history", query, &out); err != nil {
		return nil, err
	}
	c.addToCache(cacheKey, out, c.cfg.CacheTTL)
	return out, nil
}

func (c *Client) BatchReliability(ctx context.Context, caregiverIDs []domain.CaregiverID, asOf time.Time) (map[domain.CaregiverID]float64, error) {
	cacheKey := "reliability:" + idsKey(caregiverIDs) + ":" + asOf.Format("2006-01-02")
	if v, ok := c.getFromCache(cacheKey); ok {
		return v.(map[domain.CaregiverID]float64), nil
	}

	var out map[domain.CaregiverID]float64
	query := url.Values{"caregiverIds": {idsKey(caregiverIDs)}, "asOf": {asOf.Format(time.RFC3339)}}
	if err := c.get(ctx, "/caregivers/reliability", query, &out); err != nil {
		return nil, err
	}
	c.addToCache(cacheKey, out, c.cfg.CacheTTL)
	return out, nil
}

func (c *Client) BatchRecentRejections(ctx context.Context, caregiverIDs []domain.CaregiverID, asOf time.Time) (map[domain.CaregiverID]int, error) {
	cacheKey := "rejections:" + idsKey(caregiverIDs) + ":" + asOf.Format("2006-01-02")
	if v, ok := c.getFromCache(cacheKey); ok {
		return v.(map[domain.CaregiverID]int), nil
	}

	var out map[domain.CaregiverID]int
	query := url.Values{"caregiverIds": {idsKey(caregiverIDs)}, "asOf": {asOf.Format(time.RFC3339)}}
	if err := c.get(ctx, "/caregivers/rejections", query, &out); err != nil {
		return nil, err
	}
	c.addToCache(cacheKey, out, c.cfg.CacheTTL)
	return out, nil
}

func (c *Client) BatchDistances(ctx context.Context, caregiverIDs []domain.CaregiverID, lat, lon *float64) (map[domain.CaregiverID]float64, bool, error) {
	if lat == nil || lon == nil {
		out := make(map[domain.CaregiverID]float64, len(caregiverIDs))
		for _, id := range caregiverIDs {
			out[id] = 0
		}
		return out, false, nil
	}

	cacheKey := fmt.Sprintf("distances:%s:%f:%f", idsKey(caregiverIDs), *lat, *lon)
	if v, ok := c.getFromCache(cacheKey); ok {
		return v.(map[domain.CaregiverID]float64), true, nil
	}

	var out map[domain.CaregiverID]float64
	query := url.Values{
		"caregiverIds": {idsKey(caregiverIDs)},
		"lat":          {strconv.FormatFloat(*lat, 'f', -1, 64)},
		"lon":          {strconv.FormatFloat(*lon, 'f', -1, 64)},
	}
	if err := c.get(ctx, "/caregivers/distances", query, &out); err != nil {
		return nil, false, err
	}
	c.addToCache(cacheKey, out, c.cfg.CacheTTL)
	return out, true, nil
}

func idsKey(ids []domain.CaregiverID) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	return strings.Join(parts, ",")
}
