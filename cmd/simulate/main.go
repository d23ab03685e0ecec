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
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/clinicops/clinic-scheduling/internal/db"
)

// The simulator aims every worker at a single doctor's day, which is the
// worst case for the doctor-day lock: bookings race for the same slots and
// call-next requests race for the same queue head. A correct run books each
// slot exactly once and never seats two patients.

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	PostgresDSN string
}

func loadSimConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:  getEnv("SIM_API_URL", "http://127.0.0.1:8080"),
		Duration:    getDurationEnv("SIM_DURATION", 30*time.Second),
		Workers:     getIntEnv("SIM_WORKERS", 16),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
	}
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN is required")
	}
	return cfg
}

type OpCounter struct {
	Total    int64
	Success  int64
	Conflict int64
	Empty    int64
	Error    int64
}

func (c *OpCounter) Record(status int) {
	atomic.AddInt64(&c.Total, 1)
	switch {
	case status == http.StatusNoContent:
		atomic.AddInt64(&c.Empty, 1)
	case status >= 200 && status < 300:
		atomic.AddInt64(&c.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&c.Conflict, 1)
	default:
		atomic.AddInt64(&c.Error, 1)
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	cfg := loadSimConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration+30*time.Second)
	defer cancel()

	doctorID, patientIDs, err := loadTargets(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("load simulation targets: %v", err)
	}
	log.Printf("targeting doctor %s with %d patients, %d workers for %s",
		doctorID, len(patientIDs), cfg.Workers, cfg.Duration)

	client := &http.Client{Timeout: 10 * time.Second}
	var booking, callNext OpCounter

	deadline := time.Now().Add(cfg.Duration)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)))
			for time.Now().Before(deadline) {
				if rng.Intn(3) == 0 {
					status := postCallNext(client, cfg.APIBaseURL, doctorID)
					callNext.Record(status)
				} else {
					patientID := patientIDs[rng.Intn(len(patientIDs))]
					status := postBooking(client, cfg.APIBaseURL, doctorID, patientID, rng)
					booking.Record(status)
				}
			}
		}(i)
	}

	wg.Wait()

	report("booking", &booking)
	report("call-next", &callNext)
}

func report(name string, c *OpCounter) {
	fmt.Printf("%-10s total=%d success=%d conflict=%d empty=%d error=%d\n",
		name, c.Total, c.Success, c.Conflict, c.Empty, c.Error)
}

func postBooking(client *http.Client, baseURL string, doctorID, patientID uuid.UUID, rng *rand.Rand) int {
	// Contend for a small slot range tomorrow morning so conflicts are common.
	tomorrow := time.Now().AddDate(0, 0, 1)
	day := time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, tomorrow.Location())
	start := day.Add(9*time.Hour + time.Duration(rng.Intn(6))*30*time.Minute)

	body, _ := json.Marshal(map[string]any{
		"doctor_id":  doctorID.String(),
		"patient_id": patientID.String(),
		"start_time": start.Format(time.RFC3339),
		"type":       "consultation",
		"channel":    "staff",
	})

	resp, err := client.Post(baseURL+"/appointments", "application/json", bytes.NewReader(body))
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func postCallNext(client *http.Client, baseURL string, doctorID uuid.UUID) int {
	resp, err := client.Post(baseURL+"/queue/call-next?doctor_id="+doctorID.String(), "application/json", nil)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func loadTargets(ctx context.Context, dsn string) (uuid.UUID, []uuid.UUID, error) {
	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		return uuid.Nil, nil, err
	}
	defer pool.Close()

	var doctorID uuid.UUID
	err = pool.QueryRow(ctx, `SELECT id FROM doctors WHERE active LIMIT 1`).Scan(&doctorID)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("pick doctor: %w", err)
	}

	rows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT 200`)
	if err != nil {
		return uuid.Nil, nil, fmt.Errorf("pick patients: %w", err)
	}
	defer rows.Close()

	var patientIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return uuid.Nil, nil, err
		}
		patientIDs = append(patientIDs, id)
	}
	if err := rows.Err(); err != nil {
		return uuid.Nil, nil, err
	}
	if len(patientIDs) == 0 {
		return uuid.Nil, nil, fmt.Errorf("no patients found, run cmd/seed first")
	}

	return doctorID, patientIDs, nil
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
