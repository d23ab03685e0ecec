package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicops/clinic-scheduling/internal/db"
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

	doctorIDs, err := seedDoctors(context.Background(), pool, 40)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	patientIDs, err := seedPatients(context.Background(), pool, 3000)
	if err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedTodaysBookings(context.Background(), pool, doctorIDs, patientIDs); err != nil {
		log.Fatalf("seed bookings: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"Dermatology",
		"Cardiology",
		"General Practice",
		"Orthopedics",
		"Endocrinology",
		"Neurology",
		"Pediatrics",
		"Psychiatry",
		"Ophthalmology",
		"ENT",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]

		// Morning shifts start 08:00 or 09:00; everyone works 8 hours.
		startMinute := gofakeit.Number(8, 9) * 60
		endMinute := startMinute + 8*60

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty, active, work_start_minute,
			                     work_end_minute, slot_minutes, created_at, updated_at)
			VALUES ($1, $2, $3, true, $4, $5, 30, now(), now())
		`, id, name, spec, startMinute, endMinute)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	ids := make([]uuid.UUID, 0, count)
	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return nil, err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()
			birthDate := gofakeit.DateRange(
				time.Now().AddDate(-90, 0, 0),
				time.Now().AddDate(-1, 0, 0),
			)

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email, birth_date, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, id, name, email, birthDate)
			if err != nil {
				_ = tx.Rollback(ctx)
				return nil, err
			}
			ids = append(ids, id)
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return ids, nil
}

// seedTodaysBookings fills part of each doctor's morning with scheduled
// appointments so the queue endpoints have something to show. A few entries
// get a priority reason to exercise call-next ordering.
func seedTodaysBookings(ctx context.Context, pool *pgxpool.Pool, doctorIDs, patientIDs []uuid.UUID) error {
	log.Println("seeding today's bookings")

	priorities := []string{"elderly", "pregnant", "disabled", "child_under_6"}
	visitTypes := []string{"consultation", "follow_up", "walk_in"}

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, doctorID := range doctorIDs {
		slots := gofakeit.Number(3, 8)
		for q := 1; q <= slots; q++ {
			patientID := patientIDs[gofakeit.Number(0, len(patientIDs)-1)]
			start := today.Add(9*time.Hour + time.Duration(q-1)*30*time.Minute)
			visitType := visitTypes[gofakeit.Number(0, len(visitTypes)-1)]

			var priority *string
			if gofakeit.Number(1, 5) == 1 {
				p := priorities[gofakeit.Number(0, len(priorities)-1)]
				priority = &p
			}

			_, err := tx.Exec(ctx, `
				INSERT INTO appointments (id, doctor_id, patient_id, start_time, duration_minutes,
				                          visit_type, status, queue_number, priority, created_at, updated_at)
				VALUES ($1, $2, $3, $4, 30, $5, 'scheduled', $6, $7, now(), now())
			`, uuid.New(), doctorID, patientID, start, visitType, q, priority)
			if err != nil {
				return err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Println("bookings seeded")
	return nil
}
