package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// simulate hammers the reservation endpoints with concurrent bookers racing
// for a small shared set of slots, to observe the conflict rate and verify
// that exactly one reserve per slot triple wins at a time.

type SimConfig struct {
	APIBaseURL string
	Duration   time.Duration
	Workers    int
	SlotCount  int
	Bookers    int
}

func loadSimConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL: getEnv("SIM_API_URL", "http://127.0.0.1:8080"),
		Duration:   getDurationEnv("SIM_DURATION", 30*time.Second),
		Workers:    getIntEnv("SIM_WORKERS", 20),
		SlotCount:  getIntEnv("SIM_SLOTS", 10),
		Bookers:    getIntEnv("SIM_BOOKERS", 50),
	}
	return cfg
}

type slotTriple struct {
	EventTypeID int64
	Start       time.Time
	End         time.Time
}

type Metrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (m *Metrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&m.Total, 1)
	switch {
	case status == http.StatusCreated || status == http.StatusNoContent || status == http.StatusOK:
		atomic.AddInt64(&m.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&m.Conflict, 1)
	default:
		atomic.AddInt64(&m.Error, 1)
	}

	m.mu.Lock()
	m.latencies = append(m.latencies, latency)
	m.mu.Unlock()
}

func (m *Metrics) Report(name string) {
	m.mu.Lock()
	latencies := make([]time.Duration, len(m.latencies))
	copy(latencies, m.latencies)
	m.mu.Unlock()

	if len(latencies) == 0 {
		log.Printf("%s: no operations recorded", name)
		return
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	p50 := latencies[len(latencies)*50/100]
	p95 := latencies[min(len(latencies)*95/100, len(latencies)-1)]

	log.Printf("%s: total=%d success=%d conflict=%d error=%d avg=%s p50=%s p95=%s",
		name,
		atomic.LoadInt64(&m.Total),
		atomic.LoadInt64(&m.Success),
		atomic.LoadInt64(&m.Conflict),
		atomic.LoadInt64(&m.Error),
		sum/time.Duration(len(latencies)),
		p50,
		p95,
	)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cfg := loadSimConfig()
	log.Printf("simulate starting url=%s workers=%d slots=%d duration=%s",
		cfg.APIBaseURL, cfg.Workers, cfg.SlotCount, cfg.Duration)

	// A small pool of contended slot triples, all tomorrow morning.
	base := time.Now().UTC().AddDate(0, 0, 1).Truncate(time.Hour)
	slots := make([]slotTriple, cfg.SlotCount)
	for i := range slots {
		start := base.Add(time.Duration(i) * 30 * time.Minute)
		slots[i] = slotTriple{
			EventTypeID: int64(1 + i%3),
			Start:       start,
			End:         start.Add(30 * time.Minute),
		}
	}

	bookers := make([]string, cfg.Bookers)
	for i := range bookers {
		bookers[i] = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	reserveMetrics := &Metrics{}
	checkMetrics := &Metrics{}

	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			worker(ctx, client, cfg.APIBaseURL, slots, bookers, rng, reserveMetrics, checkMetrics)
		}(int64(w) + time.Now().UnixNano())
	}
	wg.Wait()

	reserveMetrics.Report("reserve")
	checkMetrics.Report("check")
}

func worker(ctx context.Context, client *http.Client, baseURL string, slots []slotTriple, bookers []string, rng *rand.Rand, reserveMetrics, checkMetrics *Metrics) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		slot := slots[rng.Intn(len(slots))]
		booker := bookers[rng.Intn(len(bookers))]

		// Mirror the checkout flow: check first, then try to reserve.
		start := time.Now()
		status := checkReserved(ctx, client, baseURL, slot, booker)
		checkMetrics.Record(time.Since(start), status)

		start = time.Now()
		status = reserveSlot(ctx, client, baseURL, slot, booker)
		reserveMetrics.Record(time.Since(start), status)

		time.Sleep(time.Duration(rng.Intn(50)) * time.Millisecond)
	}
}

func checkReserved(ctx context.Context, client *http.Client, baseURL string, slot slotTriple, booker string) int {
	url := fmt.Sprintf("%s/reservations/check?event_type_id=%d&slot_start=%s&slot_end=%s&uid=%s",
		baseURL,
		slot.EventTypeID,
		slot.Start.Format(time.RFC3339),
		slot.End.Format(time.RFC3339),
		booker,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0
	}
	defer drain(resp)

	return resp.StatusCode
}

func reserveSlot(ctx context.Context, client *http.Client, baseURL string, slot slotTriple, booker string) int {
	body, _ := json.Marshal(map[string]any{
		"event_type_id": slot.EventTypeID,
		"slot_start":    slot.Start.Format(time.RFC3339),
		"slot_end":      slot.End.Format(time.RFC3339),
		"owner_uid":     booker,
		"ttl_seconds":   60,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/reservations", bytes.NewReader(body))
	if err != nil {
		return 0
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0
	}
	defer drain(resp)

	return resp.StatusCode
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
