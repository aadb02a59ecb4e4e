package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vivaagenda/practice-scheduling/internal/civil"
	"github.com/vivaagenda/practice-scheduling/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
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

	if err := seedPatients(context.Background(), pool, 40); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedVacantGrid(context.Background(), pool, 14); err != nil {
		log.Fatalf("seed slots: %v", err)
	}

	log.Println("seed complete")
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i := 0; i < count; i++ {
		id := uuid.New()
		name := gofakeit.Name()
		phone := gofakeit.Phone()
		email := gofakeit.Email()

		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, name, phone, email, consent, created_at, updated_at)
			VALUES ($1, $2, $3, $4, true, now(), now())
		`, id, name, phone, email)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("patients seeded")
	return nil
}

// seedVacantGrid writes an empty booking grid: hourly vacant slots from
// 08:00 to 18:00 for the next days, weekends included (the practice
// decides its own days off via blocked days).
func seedVacantGrid(ctx context.Context, pool *pgxpool.Pool, days int) error {
	log.Printf("seeding vacant grid for %d days", days)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	date := civil.DateOf(time.Now())
	total := 0
	for d := 0; d < days; d++ {
		for hour := 8; hour < 18; hour++ {
			start, err := civil.ToInstant(date, civil.AddMinutes("00:00", hour*60))
			if err != nil {
				return err
			}
			end := start.Add(time.Hour)

			_, err = tx.Exec(ctx, `
				INSERT INTO slots (id, start_at, end_at, status, sibling_order,
					is_paid, is_inaugural, remind_week_before, remind_day_before,
					created_at, updated_at)
				VALUES ($1, $2, $3, 'Vago', 0, false, false, false, false, now(), now())
			`, uuid.New(), start, end)
			if err != nil {
				return err
			}
			total++
		}

		date, err = civil.AddDays(date, 1)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("vacant slots seeded: %d", total)
	return nil
}
