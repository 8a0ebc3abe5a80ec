// simulate drives concurrent, deliberately overlapping booking requests at a
// running api-server and verifies afterwards that no doctor ended up
// double-booked. It is a harness for the non-overlap invariant under real
// contention, not a benchmark.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careslot/booking/internal/db"
)

type simConfig struct {
	baseURL  string
	workers  int
	duration time.Duration
	slots    int // distinct half-hour slots workers fight over, per doctor
}

type tally struct {
	total     int64
	booked    int64
	conflict  int64
	suggested int64
	busy      int64
	failed    int64

	mu        sync.Mutex
	latencies []time.Duration
}

func (t *tally) record(latency time.Duration, bucket *int64) {
	atomic.AddInt64(&t.total, 1)
	atomic.AddInt64(bucket, 1)

	t.mu.Lock()
	t.latencies = append(t.latencies, latency)
	t.mu.Unlock()
}

func (t *tally) percentile(p int) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(t.latencies))
	copy(sorted, t.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	cfg := simConfig{}
	flag.StringVar(&cfg.baseURL, "url", "http://localhost:8080", "api-server base URL")
	flag.IntVar(&cfg.workers, "workers", 16, "concurrent workers")
	flag.DurationVar(&cfg.duration, "duration", 30*time.Second, "how long to run")
	flag.IntVar(&cfg.slots, "slots", 8, "contended slots per doctor")
	flag.Parse()

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required (doctor ids and the final overlap audit come from the DB)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, dsn)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	doctors, err := loadDoctors(context.Background(), pool)
	if err != nil {
		log.Fatalf("load doctors: %v", err)
	}
	if len(doctors) == 0 {
		log.Fatal("no doctors found, run cmd/seed first")
	}
	log.Printf("simulating against %d doctors, %d workers for %s", len(doctors), cfg.workers, cfg.duration)

	gofakeit.Seed(time.Now().UnixNano())

	t := &tally{}
	runCtx, stop := context.WithTimeout(context.Background(), cfg.duration)
	defer stop()

	var wg sync.WaitGroup
	for w := 0; w < cfg.workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			worker(runCtx, cfg, doctors, t, rand.New(rand.NewSource(seed)))
		}(time.Now().UnixNano() + int64(w))
	}
	wg.Wait()

	log.Printf("requests=%d booked=%d conflict=%d suggested=%d busy=%d failed=%d p50=%s p95=%s",
		t.total, t.booked, t.conflict, t.suggested, t.busy, t.failed,
		t.percentile(50), t.percentile(95))

	overlaps, err := auditOverlaps(context.Background(), pool)
	if err != nil {
		log.Fatalf("overlap audit: %v", err)
	}
	if overlaps > 0 {
		log.Fatalf("INVARIANT VIOLATED: %d overlapping confirmed appointment pairs", overlaps)
	}
	log.Println("overlap audit clean: no doctor is double-booked")
}

func worker(ctx context.Context, cfg simConfig, doctors []uuid.UUID, t *tally, rng *rand.Rand) {
	client := &http.Client{Timeout: 10 * time.Second}

	for ctx.Err() == nil {
		doctor := doctors[rng.Intn(len(doctors))]

		// All workers draw from the same small set of tomorrow-morning
		// half-hours so conflicts are guaranteed.
		slot := rng.Intn(cfg.slots)
		day := time.Now().AddDate(0, 0, 1)
		start := time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, time.UTC).
			Add(time.Duration(slot) * 30 * time.Minute)
		end := start.Add(30 * time.Minute)

		body, _ := json.Marshal(map[string]any{
			"doctorId": doctor.String(),
			"patient": map[string]any{
				"name":  gofakeit.Name(),
				"email": gofakeit.Email(),
				"phone": gofakeit.Phone(),
			},
			"start":    start.Format(time.RFC3339),
			"end":      end.Format(time.RFC3339),
			"timezone": "UTC",
		})

		began := time.Now()
		resp, err := post(ctx, client, cfg.baseURL+"/api/appointments/request", body)
		latency := time.Since(began)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.record(latency, &t.failed)
			continue
		}

		switch {
		case resp.status == http.StatusCreated:
			t.record(latency, &t.booked)
		case resp.status == http.StatusConflict && resp.suggested:
			t.record(latency, &t.suggested)
		case resp.status == http.StatusConflict && resp.busy:
			t.record(latency, &t.busy)
		case resp.status == http.StatusConflict:
			t.record(latency, &t.conflict)
		default:
			t.record(latency, &t.failed)
		}
	}
}

type simResponse struct {
	status    int
	suggested bool
	busy      bool
}

func post(ctx context.Context, client *http.Client, url string, body []byte) (*simResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var parsed struct {
		Message   string          `json:"message"`
		Suggested json.RawMessage `json:"suggested"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&parsed)

	return &simResponse{
		status:    resp.StatusCode,
		suggested: len(parsed.Suggested) > 0,
		busy:      resp.StatusCode == http.StatusConflict && containsBusy(parsed.Message),
	}, nil
}

func containsBusy(msg string) bool {
	return msg == "Doctor is currently being booked, please retry shortly"
}

func loadDoctors(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM doctors ORDER BY created_at LIMIT 50`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// auditOverlaps counts pairs of confirmed appointments for the same doctor
// whose intervals half-open overlap. Must be zero after any run.
func auditOverlaps(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var count int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b
		  ON a.doctor_id = b.doctor_id
		 AND a.id < b.id
		 AND a.start_time < b.end_time
		 AND b.start_time < a.end_time
		WHERE a.status = 'confirmed'
		  AND b.status = 'confirmed'
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count overlapping pairs: %w", err)
	}
	return count, nil
}
