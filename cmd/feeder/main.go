package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	natsadapter "github.com/samirrijal/mylocation/internal/adapters/nats"
	"github.com/samirrijal/mylocation/internal/adapters/postgres"
	"github.com/samirrijal/mylocation/internal/adapters/valkey"
	"github.com/samirrijal/mylocation/internal/core/domain"
	"github.com/samirrijal/mylocation/internal/core/ports"
	"github.com/samirrijal/mylocation/internal/core/usecases"
	"github.com/samirrijal/mylocation/internal/pkg/config"
	"github.com/samirrijal/mylocation/internal/pkg/logging"
	"github.com/samirrijal/mylocation/internal/pkg/metrics"
)

// Feed is one entry of feeds.json.
type Feed struct {
	DeviceID string `json:"device_id"`
	URL      string `json:"url"`
}

// errStale is returned for a feed that still serves the fix seen last poll.
var errStale = errors.New("fix not newer than last poll")

func main() {
	cfg, err := config.Load("mylocation-feeder")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feedsPath := cfg.Feeder.FeedsFile
	if len(os.Args) > 1 {
		feedsPath = os.Args[1]
	}
	feeds, err := loadFeeds(feedsPath)
	if err != nil {
		log.Fatalf("feeds: %v", err)
	}

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr, "mylocation:")
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	p := &poller{
		client:      &http.Client{Timeout: 10 * time.Second},
		fixes:       usecases.NewFixService(postgres.NewFixRepo(db), cacheSvc, pub),
		concurrency: cfg.Feeder.Concurrency,
		last:        make(map[string]time.Time),
	}

	slog.Info("feeder started", "feeds", len(feeds), "interval", cfg.Feeder.PollInterval)

	ticker := time.NewTicker(cfg.Feeder.PollInterval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	p.pollAll(ctx, feeds)

	for {
		select {
		case <-ticker.C:
			p.pollAll(ctx, feeds)
		case sig := <-quit:
			slog.Info("shutting down feeder", "signal", sig.String())
			return
		}
	}
}

// loadFeeds reads the feed list. Entries without a device or URL are
// dropped.
func loadFeeds(path string) ([]Feed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var all []Feed
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	feeds := all[:0]
	for _, f := range all {
		if f.DeviceID == "" || f.URL == "" {
			slog.Warn("feed entry skipped", "device", f.DeviceID, "url", f.URL)
			continue
		}
		feeds = append(feeds, f)
	}
	return feeds, nil
}

type fixIngester interface {
	Ingest(ctx context.Context, fix *domain.Fix) error
}

type poller struct {
	client      *http.Client
	fixes       fixIngester
	concurrency int

	mu   sync.Mutex
	last map[string]time.Time // device -> time of last ingested fix
}

// pollAll fetches every feed once, at most p.concurrency at a time.
func (p *poller) pollAll(ctx context.Context, feeds []Feed) {
	var wg sync.WaitGroup
	sem := make(chan struct{}, p.concurrency)

	for _, f := range feeds {
		wg.Add(1)
		go func(feed Feed) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			err := p.poll(ctx, feed)
			switch {
			case err == nil, errors.Is(err, errStale):
			default:
				metrics.FeedPollErrors.WithLabelValues(feed.DeviceID).Inc()
				slog.Warn("poll failed", "device", feed.DeviceID, "error", err)
			}
		}(f)
	}

	wg.Wait()
}

func (p *poller) poll(ctx context.Context, feed Feed) error {
	start := time.Now()
	fix, err := fetchFix(ctx, p.client, feed.URL)
	metrics.FeedPollDuration.WithLabelValues(feed.DeviceID).Observe(time.Since(start).Seconds())
	if err != nil {
		return err
	}

	fix.DeviceID = feed.DeviceID
	fix.Source = "feeder"

	p.mu.Lock()
	prev, seen := p.last[feed.DeviceID]
	p.mu.Unlock()
	if seen && !fix.Time.IsZero() && !fix.Time.After(prev) {
		return errStale
	}

	if err := p.fixes.Ingest(ctx, fix); err != nil {
		return fmt.Errorf("ingest: %w", err)
	}

	p.mu.Lock()
	p.last[feed.DeviceID] = fix.Time
	p.mu.Unlock()
	return nil
}

// feedPayload accepts both a flat fix and a browser geolocation position
// ({"coords": {...}, "timestamp": <unix ms>}).
type feedPayload struct {
	Latitude  *float64   `json:"latitude"`
	Longitude *float64   `json:"longitude"`
	Accuracy  float64    `json:"accuracy"`
	Time      *time.Time `json:"time"`

	Coords *struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Accuracy  float64 `json:"accuracy"`
	} `json:"coords"`
	Timestamp int64 `json:"timestamp"`
}

func (p feedPayload) fix() (*domain.Fix, error) {
	fix := &domain.Fix{}
	switch {
	case p.Coords != nil:
		fix.Coordinates = domain.Coordinates{
			Latitude:  p.Coords.Latitude,
			Longitude: p.Coords.Longitude,
			Accuracy:  p.Coords.Accuracy,
		}
		if p.Timestamp > 0 {
			fix.Time = time.UnixMilli(p.Timestamp).UTC()
		}
	case p.Latitude != nil && p.Longitude != nil:
		fix.Coordinates = domain.Coordinates{
			Latitude:  *p.Latitude,
			Longitude: *p.Longitude,
			Accuracy:  p.Accuracy,
		}
		if p.Time != nil {
			fix.Time = p.Time.UTC()
		}
	default:
		return nil, errors.New("payload has no coordinates")
	}
	return fix, nil
}

// fetchFix GETs url and decodes the fix it serves.
func fetchFix(ctx context.Context, client *http.Client, url string) (*domain.Fix, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
	}

	var payload feedPayload
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return payload.fix()
}
