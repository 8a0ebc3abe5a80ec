package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careslot/booking/internal/db"
)

var timezones = []string{
	"Asia/Kolkata",
	"Europe/Berlin",
	"America/New_York",
	"Europe/London",
	"Australia/Sydney",
	"UTC",
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	doctorCount := flag.Int("doctors", 20, "number of doctors to seed")
	days := flag.Int("days", 5, "days of availability to create per doctor")
	flag.Parse()

	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedDoctors(context.Background(), pool, *doctorCount, *days); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}

	log.Println("seed complete")
}

// seedDoctors inserts doctors and, for each, one 09:00-17:00 availability
// window per day in the doctor's local timezone, starting tomorrow.
func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count, days int) error {
	log.Printf("seeding %d doctors with %d days of availability", count, days)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		email := gofakeit.Email()
		tz := timezones[gofakeit.Number(0, len(timezones)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, email, calendar_id, timezone, created_at, updated_at)
			VALUES ($1, $2, $3, $3, $4, now(), now())
			ON CONFLICT (email) DO NOTHING
		`, id, name, email, tz)
		if err != nil {
			return err
		}

		loc, err := time.LoadLocation(tz)
		if err != nil {
			return err
		}

		now := time.Now().In(loc)
		midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)

		for d := 1; d <= days; d++ {
			day := midnight.AddDate(0, 0, d)
			start := day.Add(9 * time.Hour)
			end := day.Add(17 * time.Hour)

			_, err := tx.Exec(ctx, `
				INSERT INTO availability_windows (id, doctor_id, start_time, end_time, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, uuid.New(), id, start.UTC(), end.UTC())
			if err != nil {
				return err
			}
		}

		log.Printf("seeded doctor %s (%s, %s)", name, tz, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("doctors seeded")
	return nil
}
