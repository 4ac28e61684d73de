package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/hackgods/doctor-appointment-scheduling/internal/appointment"
	"github.com/hackgods/doctor-appointment-scheduling/internal/config"
	"github.com/hackgods/doctor-appointment-scheduling/internal/db"
	"github.com/hackgods/doctor-appointment-scheduling/internal/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	DaysAhead    int
	BookingRatio float64
	DecideRatio  float64
	ChangeRatio  float64
	ReadRatio    float64
	DoctorLimit  int
	PatientLimit int
	PostgresDSN  string
	Slots        []string
}

type booking struct {
	ID        uuid.UUID
	DoctorID  uuid.UUID
	PatientID uuid.UUID
}

type DataPool struct {
	Doctors  []uuid.UUID
	Patients []uuid.UUID

	mu       sync.RWMutex
	bookings []booking
}

func (dp *DataPool) AddBooking(b booking) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.bookings = append(dp.bookings, b)
}

func (dp *DataPool) RandomBooking(rng *rand.Rand) (booking, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.bookings) == 0 {
		return booking{}, false
	}
	return dp.bookings[rng.Intn(len(dp.bookings))], true
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	logger := logging.New("dev", "info").With().Str("service", "simulate").Logger()
	logger.Info().Msg("simulator starting")

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	logger.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("decide", cfg.DecideRatio).
		Float64("change", cfg.ChangeRatio).
		Float64("read", cfg.ReadRatio).
		Msg("config loaded")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.DefaultPoolOptions())
	if err != nil {
		logger.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}

	logger.Info().Int("doctors", len(dataPool.Doctors)).Int("patients", len(dataPool.Patients)).Msg("data pool loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger,
	}

	sim.Run()
	sim.PrintReport()

	dupes, err := countDoubleBookings(context.Background(), pgPool)
	if err != nil {
		logger.Fatal().Err(err).Msg("double booking check")
	}
	if dupes > 0 {
		logger.Fatal().Int("duplicates", dupes).Msg("double bookings detected")
	}
	logger.Info().Msg("no double bookings detected")
}

func loadConfig() (SimConfig, error) {
	baseCfg, err := config.Load()
	if err != nil {
		return SimConfig{}, fmt.Errorf("load base config: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("SIM")
	v.AutomaticEnv()
	v.SetDefault("API_BASE_URL", "http://localhost:8080")
	v.SetDefault("DURATION", "30s")
	v.SetDefault("WORKERS", 10)
	v.SetDefault("DAYS_AHEAD", 3)
	v.SetDefault("BOOKING_RATIO", 0.5)
	v.SetDefault("DECIDE_RATIO", 0.2)
	v.SetDefault("CHANGE_RATIO", 0.1)
	v.SetDefault("READ_RATIO", 0.2)
	v.SetDefault("DOCTOR_LIMIT", 5)
	v.SetDefault("PATIENT_LIMIT", 500)

	cfg := SimConfig{
		APIBaseURL:   v.GetString("API_BASE_URL"),
		Duration:     v.GetDuration("DURATION"),
		Workers:      v.GetInt("WORKERS"),
		DaysAhead:    v.GetInt("DAYS_AHEAD"),
		BookingRatio: v.GetFloat64("BOOKING_RATIO"),
		DecideRatio:  v.GetFloat64("DECIDE_RATIO"),
		ChangeRatio:  v.GetFloat64("CHANGE_RATIO"),
		ReadRatio:    v.GetFloat64("READ_RATIO"),
		DoctorLimit:  v.GetInt("DOCTOR_LIMIT"),
		PatientLimit: v.GetInt("PATIENT_LIMIT"),
		PostgresDSN:  baseCfg.PostgresDSN,
		Slots:        baseCfg.SlotCatalog,
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.DecideRatio + cfg.ChangeRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.DecideRatio /= total
		cfg.ChangeRatio /= total
		cfg.ReadRatio /= total
	}

	switch {
	case cfg.PostgresDSN == "":
		return SimConfig{}, fmt.Errorf("POSTGRES_DSN is required (set in .env or environment)")
	case cfg.Workers <= 0:
		return SimConfig{}, fmt.Errorf("SIM_WORKERS must be > 0")
	case cfg.Duration <= 0:
		return SimConfig{}, fmt.Errorf("SIM_DURATION must be > 0")
	case cfg.DaysAhead <= 0:
		return SimConfig{}, fmt.Errorf("SIM_DAYS_AHEAD must be > 0")
	}
	return cfg, nil
}

func loadIDs(ctx context.Context, pool *pgxpool.Pool, role appointment.Role, limit int) ([]uuid.UUID, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM users WHERE role = $1 ORDER BY created_at LIMIT $2`, role, limit)
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

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	doctors, err := loadIDs(ctx, pool, appointment.RoleDoctor, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	patients, err := loadIDs(ctx, pool, appointment.RolePatient, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}

	if len(doctors) == 0 {
		return nil, fmt.Errorf("no doctors loaded, run cmd/seed first")
	}
	if len(patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run cmd/seed first")
	}

	return &DataPool{Doctors: doctors, Patients: patients}, nil
}

// countDoubleBookings counts (doctor, date, slot) triples holding more than one active appointment.
func countDoubleBookings(ctx context.Context, pool *pgxpool.Pool) (int, error) {
	var n int
	err := pool.QueryRow(ctx, `
		SELECT count(*) FROM (
			SELECT doctor_id, appointment_date, slot
			FROM appointments
			WHERE status <> 'cancelled'
			GROUP BY doctor_id, appointment_date, slot
			HAVING count(*) > 1
		) dupes
	`).Scan(&n)
	return n, err
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.DecideRatio:
				s.doDecide(ctx, rng)
			case r < s.config.BookingRatio+s.config.DecideRatio+s.config.ChangeRatio:
				if rng.Intn(2) == 0 {
					s.doCancel(ctx, rng)
				} else {
					s.doReschedule(ctx, rng)
				}
			default:
				if rng.Intn(2) == 0 {
					s.doSuggest(ctx, rng)
				} else {
					s.doCalendar(ctx, rng)
				}
			}
		}
	}
}

func (s *Simulator) randomSchedule(rng *rand.Rand) (string, string) {
	date := time.Now().UTC().AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead))
	return appointment.DateKey(date), s.config.Slots[rng.Intn(len(s.config.Slots))]
}

type result struct {
	status int
	body   []byte
	err    error
}

func (s *Simulator) call(ctx context.Context, method, path string, actorID uuid.UUID, role appointment.Role, payload any) result {
	var body io.Reader
	if payload != nil {
		raw, _ := json.Marshal(payload)
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, body)
	if err != nil {
		return result{err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if actorID != uuid.Nil {
		req.Header.Set("X-User-ID", actorID.String())
		req.Header.Set("X-User-Role", string(role))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return result{err: err}
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	return result{status: resp.StatusCode, body: data}
}

func (s *Simulator) record(om *OperationMetrics, start time.Time, res result, okStatus int) {
	success := res.err == nil && res.status == okStatus
	conflict := res.err == nil && (res.status == http.StatusConflict || res.status == http.StatusBadRequest)
	om.Record(time.Since(start), success, conflict)
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	date, slot := s.randomSchedule(rng)

	start := time.Now()
	res := s.call(ctx, http.MethodPost, "/appointments", patientID, appointment.RolePatient, map[string]string{
		"doctor_id": doctorID.String(),
		"date":      date,
		"slot":      slot,
	})
	s.record(&s.metrics.Booking, start, res, http.StatusCreated)

	if res.err == nil && res.status == http.StatusCreated {
		var appt struct {
			ID uuid.UUID `json:"id"`
		}
		if json.Unmarshal(res.body, &appt) == nil && appt.ID != uuid.Nil {
			s.pool.AddBooking(booking{ID: appt.ID, DoctorID: doctorID, PatientID: patientID})
		}
	}
}

func (s *Simulator) doDecide(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.RandomBooking(rng)
	if !ok {
		return
	}
	action := "approve"
	if rng.Intn(4) == 0 {
		action = "reject"
	}

	start := time.Now()
	res := s.call(ctx, http.MethodPut, fmt.Sprintf("/appointments/%s/%s", b.ID, action), b.DoctorID, appointment.RoleDoctor, nil)
	s.record(&s.metrics.Decide, start, res, http.StatusOK)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.RandomBooking(rng)
	if !ok {
		return
	}

	start := time.Now()
	res := s.call(ctx, http.MethodPost, fmt.Sprintf("/appointments/%s/cancel", b.ID), b.PatientID, appointment.RolePatient, nil)
	s.record(&s.metrics.Cancel, start, res, http.StatusOK)
}

func (s *Simulator) doReschedule(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.RandomBooking(rng)
	if !ok {
		return
	}
	date, slot := s.randomSchedule(rng)

	start := time.Now()
	res := s.call(ctx, http.MethodPost, fmt.Sprintf("/appointments/%s/reschedule", b.ID), b.PatientID, appointment.RolePatient,
		map[string]string{"date": date, "slot": slot})
	s.record(&s.metrics.Reschedule, start, res, http.StatusOK)
}

func (s *Simulator) doSuggest(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]

	start := time.Now()
	res := s.call(ctx, http.MethodGet, fmt.Sprintf("/doctors/%s/suggestion?days=%d", doctorID, s.config.DaysAhead), uuid.Nil, "", nil)
	s.record(&s.metrics.Suggest, start, res, http.StatusOK)
}

func (s *Simulator) doCalendar(ctx context.Context, rng *rand.Rand) {
	doctorID := s.pool.Doctors[rng.Intn(len(s.pool.Doctors))]

	start := time.Now()
	// the calendar carries patient details, so the doctor reads their own
	res := s.call(ctx, http.MethodGet, fmt.Sprintf("/doctors/%s/calendar?days=%d", doctorID, s.config.DaysAhead), doctorID, appointment.RoleDoctor, nil)
	s.record(&s.metrics.Calendar, start, res, http.StatusOK)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + rule())
	fmt.Println("SIMULATION REPORT")
	fmt.Println(rule())
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Approve/Reject", &s.metrics.Decide)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Reschedule", &s.metrics.Reschedule)
	printOperationReport("Suggest", &s.metrics.Suggest)
	printOperationReport("Calendar", &s.metrics.Calendar)
}
