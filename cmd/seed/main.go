package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/hackgods/doctor-appointment-scheduling/internal/appointment"
	"github.com/hackgods/doctor-appointment-scheduling/internal/config"
	"github.com/hackgods/doctor-appointment-scheduling/internal/db"
	"github.com/hackgods/doctor-appointment-scheduling/internal/logging"
)

func main() {
	doctors := flag.Int("doctors", 20, "number of doctors to create")
	patients := flag.Int("patients", 2000, "number of patients to create")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		boot := logging.New("dev", "info")
		boot.Fatal().Err(err).Msg("config load error")
	}
	logger := logging.New(cfg.Env, cfg.LogLevel).With().Str("service", "seed").Logger()
	logger.Info().Msg("seed starting")

	if cfg.Store != config.StorePostgres {
		logger.Fatal().Str("store", cfg.Store).Msg("seed only supports the postgres store")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.DefaultPoolOptions())
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pool.Close()

	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	gofakeit.Seed(0)

	seedCtx := context.Background()

	admin := appointment.User{ID: uuid.New(), Name: "Admin", Email: "admin-" + gofakeit.LetterN(6) + "@clinic.test", Role: appointment.RoleAdmin}
	if err := insertUsers(seedCtx, pool, []appointment.User{admin}); err != nil {
		logger.Fatal().Err(err).Msg("seed admin")
	}
	logger.Info().Str("admin_id", admin.ID.String()).Msg("admin seeded")

	if err := seedRole(seedCtx, pool, logger, appointment.RoleDoctor, *doctors); err != nil {
		logger.Fatal().Err(err).Msg("seed doctors")
	}
	if err := seedRole(seedCtx, pool, logger, appointment.RolePatient, *patients); err != nil {
		logger.Fatal().Err(err).Msg("seed patients")
	}

	logger.Info().Msg("seed complete")
}

func fakeUser(role appointment.Role) appointment.User {
	name := gofakeit.Name()
	if role == appointment.RoleDoctor {
		name = gofakeit.LastName()
	}

	u := appointment.User{
		ID:    uuid.New(),
		Name:  name,
		Email: gofakeit.Email(),
		Role:  role,
	}
	// leave some users without a phone so skipped notifications show up
	if gofakeit.Number(1, 10) > 2 {
		phone := "+1" + gofakeit.Numerify("##########")
		u.Phone = &phone
	}
	return u
}

func seedRole(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger, role appointment.Role, count int) error {
	logger.Info().Int("count", count).Str("role", string(role)).Msg("seeding users")

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		batch := make([]appointment.User, 0, end-offset)
		for i := offset; i < end; i++ {
			batch = append(batch, fakeUser(role))
		}
		if err := insertUsers(ctx, pool, batch); err != nil {
			return err
		}

		logger.Info().Str("role", string(role)).Msg(fmt.Sprintf("users seeded: %d/%d", end, count))
	}

	return nil
}

func insertUsers(ctx context.Context, pool *pgxpool.Pool, users []appointment.User) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, u := range users {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, name, email, phone, role, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, now(), now())
			ON CONFLICT (email) DO NOTHING
		`, u.ID, u.Name, u.Email, u.Phone, u.Role)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
