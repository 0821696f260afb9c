package endpoint

import (
	"context"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// Pool hands out backend base URLs with round-robin selection
type Pool interface {
	Get() string
	Len() int
}

type pool struct {
	endpoints []string
	current   int
	mutex     sync.Mutex
}

// NewStaticPool creates a Pool over endpoints without health checking them
func NewStaticPool(endpoints []string) Pool {
	cleaned := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		if e = strings.TrimRight(strings.TrimSpace(e), "/"); e != "" {
			cleaned = append(cleaned, e)
		}
	}
	return &pool{endpoints: cleaned}
}

// NewPool creates a Pool holding the endpoints that answer healthPath.
// When none of them answer, every configured endpoint is kept.
func NewPool(ctx context.Context, endpoints []string, healthPath string) Pool {
	candidates := NewStaticPool(endpoints).(*pool).endpoints
	if len(candidates) <= 1 {
		return &pool{endpoints: candidates}
	}

	healthyCh := make(chan string, len(candidates))
	semaphore := make(chan struct{}, 10)

	log.Infof("🔄 Checking %d backend endpoints in parallel...", len(candidates))

	var wg sync.WaitGroup
	for _, base := range candidates {
		wg.Add(1)

		go func(base string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if isHealthy(ctx, base+healthPath) {
				healthyCh <- base
				log.Infof("✅ Endpoint %s is healthy", base)
			} else {
				log.Infof("❌ Endpoint %s failed its health check, skipping", base)
			}
		}(base)
	}

	wg.Wait()
	close(healthyCh)

	healthy := make(map[string]bool, len(candidates))
	for base := range healthyCh {
		healthy[base] = true
	}

	// keep configured order so round-robin is predictable
	selected := make([]string, 0, len(healthy))
	for _, base := range candidates {
		if healthy[base] {
			selected = append(selected, base)
		}
	}

	if len(selected) == 0 {
		log.Warnf("⚠️ No backend endpoint passed its health check, keeping all %d", len(candidates))
		selected = candidates
	}

	log.Infof("✅ Endpoint pool initialized with %d of %d endpoints", len(selected), len(candidates))
	return &pool{endpoints: selected}
}

// Get returns the next endpoint in round-robin fashion
func (p *pool) Get() string {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if len(p.endpoints) == 0 {
		return ""
	}

	endpoint := p.endpoints[p.current]
	p.current = (p.current + 1) % len(p.endpoints)

	return endpoint
}

func (p *pool) Len() int {
	return len(p.endpoints)
}

func isHealthy(ctx context.Context, url string) bool {
	client := resty.New().
		SetTimeout(3 * time.Second).
		SetRetryCount(0)
	defer client.Close()

	resp, err := client.R().
		SetContext(ctx).
		Get(url)

	if err != nil {
		log.Debugf("Health check failed for %s: %v", url, err)
		return false
	}

	if resp.IsError() {
		log.Debugf("Health check failed for %s with status: %s", url, resp.Status())
		return false
	}

	return true
}
