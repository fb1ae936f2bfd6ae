package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
)

// Metrics
var (
	totalRequests uint64
	created201    uint64 // commissions applied / payouts created
	dup409        uint64 // duplicate commission events
	rejected422   uint64 // insufficient funds / validation rejections
	busy503       uint64 // lock timeouts
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, i, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, workerID int, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}
	seq := 0

	for time.Since(start) < duration {
		seq++
		affiliateID := pickAffiliate()

		// Credit first so the payout has funds to draw on.
		eventID := fmt.Sprintf("bench-%d-%d-%d", workerID, seq, time.Now().UnixNano())
		post(client, "/api/v1/commissions", map[string]interface{}{
			"event_id":     eventID,
			"affiliate_id": affiliateID,
			"amount_minor": int64(5000),
			"currency":     "USD",
		})

		post(client, "/api/v1/payouts", map[string]interface{}{
			"affiliate_id": affiliateID,
			"method":       "wise",
			"amount_minor": int64(2500),
			"currency":     "USD",
			"country":      "US",
		})
	}
}

func post(client *http.Client, path string, payload map[string]interface{}) {
	body, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", targetURL+path, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		atomic.AddUint64(&failOther, 1)
		return
	}
	defer resp.Body.Close()

	atomic.AddUint64(&totalRequests, 1)
	switch resp.StatusCode {
	case 201:
		atomic.AddUint64(&created201, 1)
	case 409:
		atomic.AddUint64(&dup409, 1)
	case 422:
		atomic.AddUint64(&rejected422, 1)
	case 503:
		atomic.AddUint64(&busy503, 1)
	default:
		atomic.AddUint64(&failOther, 1)
	}
}

func pickAffiliate() string {
	// Assumes 1000 affiliates seeded (aff-0001 .. aff-1000)
	totalAffiliates := 1000

	if workload == "hotspot" {
		// Hotspot: 90% of traffic hammers two accounts to stress the
		// per-account lock.
		if rand.Float32() < 0.90 {
			if rand.Float32() < 0.5 {
				return "aff-0001"
			}
			return "aff-0002"
		}
	}

	return fmt.Sprintf("aff-%04d", rand.Intn(totalAffiliates)+1)
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	c201 := atomic.LoadUint64(&created201)
	d409 := atomic.LoadUint64(&dup409)
	r422 := atomic.LoadUint64(&rejected422)
	b503 := atomic.LoadUint64(&busy503)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()

	results := map[string]interface{}{
		"workload":       workload,
		"duration_sec":   d.Seconds(),
		"total_requests": total,
		"throughput_tps": tps,
		"created":        c201,
		"duplicates":     d409,
		"rejected":       r422,
		"lock_busy":      b503,
		"errors":         fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, _ := os.Create(filename)
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
