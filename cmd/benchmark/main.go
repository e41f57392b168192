package main

import (
	"bytes"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	books       int
	members     int
	returnRate  float64
)

// Metrics
var (
	totalRequests uint64
	created201    uint64 // Loans opened
	returned200   uint64 // Loans closed
	fail409       uint64 // No copies left (capacity)
	reject422     uint64 // Policy rejections: borrow limit, duplicate loan
	failOther     uint64
)

const hotBookID = 1

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "uniform", "Workload type: uniform | hotspot")
	flag.IntVar(&books, "books", 100, "Number of seeded books (IDs 1..n)")
	flag.IntVar(&members, "members", 1000, "Number of seeded members (IDs 1..n)")
	flag.Float64Var(&returnRate, "return-rate", 0.5, "Probability that a created loan is returned right away")
}

type bookState struct {
	TotalCopies     int `json:"total_copies"`
	AvailableCopies int `json:"available_copies"`
}

type dashboard struct {
	BooksBorrowed int `json:"books_borrowed"`
}

func main() {
	flag.Parse()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	logger.Info("starting benchmark", "workload", workload, "workers", concurrency, "duration", duration)

	client := &http.Client{Timeout: 5 * time.Second}
	var before dashboard
	if err := getJSON(client, "/api/reports/dashboard", &before); err != nil {
		logger.Error("reading dashboard failed", "error", err.Error())
		os.Exit(1)
	}

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start)
	}

	wg.Wait()
	elapsed := time.Since(start)

	var after dashboard
	var hot bookState
	errAfter := getJSON(client, "/api/reports/dashboard", &after)
	errHot := getJSON(client, fmt.Sprintf("/api/books/%d", hotBookID), &hot)
	if errAfter != nil || errHot != nil {
		logger.Error("reading final state failed", "dashboard", errAfter, "book", errHot)
		os.Exit(1)
	}

	// Every 201 took one copy and every successful return gave one back.
	openDelta := int(atomic.LoadUint64(&created201)) - int(atomic.LoadUint64(&returned200))
	consistent := after.BooksBorrowed-before.BooksBorrowed == openDelta &&
		hot.AvailableCopies >= 0 && hot.AvailableCopies <= hot.TotalCopies

	printResults(elapsed, consistent, hot)
	if !consistent {
		logger.Error("availability counters diverged from loan log",
			"open_delta", openDelta, "borrowed_delta", after.BooksBorrowed-before.BooksBorrowed)
		os.Exit(2)
	}
}

func worker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		payload := map[string]int64{
			"member_id": rand.Int64N(int64(members)) + 1,
			"book_id":   pickBook(),
		}
		body, _ := json.Marshal(payload)

		resp, err := client.Post(targetURL+"/api/borrowing", "application/json", bytes.NewReader(body))
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case http.StatusCreated:
			atomic.AddUint64(&created201, 1)
			var loan struct {
				ID int64 `json:"id"`
			}
			err := json.NewDecoder(resp.Body).Decode(&loan)
			if err == nil && rand.Float64() < returnRate {
				giveBack(client, loan.ID)
			}
		case http.StatusConflict:
			atomic.AddUint64(&fail409, 1)
		case http.StatusUnprocessableEntity:
			atomic.AddUint64(&reject422, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func giveBack(client *http.Client, loanID int64) {
	resp, err := client.Post(fmt.Sprintf("%s/api/borrowing/%d/return", targetURL, loanID), "application/json", nil)
	if err != nil {
		atomic.AddUint64(&failOther, 1)
		return
	}
	defer resp.Body.Close()

	atomic.AddUint64(&totalRequests, 1)
	if resp.StatusCode == http.StatusOK {
		atomic.AddUint64(&returned200, 1)
		return
	}
	atomic.AddUint64(&failOther, 1)
}

func pickBook() int64 {
	// Hotspot: every worker fights over the same title
	if workload == "hotspot" {
		return hotBookID
	}
	return rand.Int64N(int64(books)) + 1
}

func getJSON(client *http.Client, path string, dst any) error {
	resp, err := client.Get(targetURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", path, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

func printResults(d time.Duration, consistent bool, hot bookState) {
	total := atomic.LoadUint64(&totalRequests)
	c201 := atomic.LoadUint64(&created201)
	r200 := atomic.LoadUint64(&returned200)
	f409 := atomic.LoadUint64(&fail409)
	r422 := atomic.LoadUint64(&reject422)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	var capacityRate float64
	if total > 0 {
		capacityRate = float64(f409) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":             workload,
		"duration_sec":         d.Seconds(),
		"total_requests":       total,
		"throughput_tps":       tps,
		"loans_created":        c201,
		"loans_returned":       r200,
		"capacity_conflicts":   f409,
		"capacity_rate_pct":    capacityRate,
		"policy_rejections":    r422,
		"errors":               fErr,
		"hot_book_available":   hot.AvailableCopies,
		"hot_book_total":       hot.TotalCopies,
		"availability_matches": consistent,
	}

	// Print JSON for the python plotter to consume
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	// Also save to file
	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
