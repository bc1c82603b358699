package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/auth"
	"github.com/hackgods/clinic-scheduling/internal/logging"
)

// The simulator fires many concurrent bookings at the same slots of a running
// api-server and fails if any slot ends up booked more than once.

type SimConfig struct {
	APIBaseURL string
	Workers    int   // concurrent create requests per slot
	Slots      int   // number of distinct slots contended
	DoctorID   int64 // doctor owning every contended slot
	Patients   int64 // patients 1..Patients are used as bookers
	Date       appointment.Date
	JWTSecret  string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch status {
	case http.StatusCreated:
		atomic.AddInt64(&om.Success, 1)
	case http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	latencies := slices.Clone(om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	slices.Sort(latencies)

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	max = latencies[len(latencies)-1]
	return avg, p50, p95, max
}

type Simulator struct {
	config  SimConfig
	client  *http.Client
	log     *logrus.Logger
	token   string
	metrics OperationMetrics
	booked  []int64 // successful creates per slot index
}

func main() {
	_ = godotenv.Load()
	log := logging.New(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	tokens := auth.NewTokenService(cfg.JWTSecret, time.Hour)
	token, err := tokens.Issue(cfg.DoctorID, string(appointment.RoleStaff))
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
		token:  token,
		booked: make([]int64, cfg.Slots),
	}

	log.WithFields(logrus.Fields{
		"api":       cfg.APIBaseURL,
		"workers":   cfg.Workers,
		"slots":     cfg.Slots,
		"doctor_id": cfg.DoctorID,
		"date":      cfg.Date.String(),
	}).Info("simulator starting")

	ctx := context.Background()
	sim.Run(ctx)

	violations := sim.Verify(ctx)
	sim.PrintReport()

	if violations > 0 {
		log.Errorf("%d slot(s) violated single booking", violations)
		os.Exit(1)
	}
	log.Info("every contended slot was booked exactly once")
}

func loadConfig() (SimConfig, error) {
	cfg := SimConfig{
		APIBaseURL: getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Workers:    getInt("SIM_WORKERS", 20),
		Slots:      getInt("SIM_SLOTS", 10),
		DoctorID:   int64(getInt("SIM_DOCTOR_ID", 1)),
		Patients:   int64(getInt("SIM_PATIENTS", 10)),
		JWTSecret:  os.Getenv("JWT_SECRET"),
	}

	// A random far-future day keeps repeated runs from colliding.
	daysAhead := getInt("SIM_DAYS_AHEAD", 30+rand.Intn(3000))
	cfg.Date = appointment.DateOf(time.Now().AddDate(0, 0, daysAhead))

	switch {
	case cfg.JWTSecret == "":
		return cfg, fmt.Errorf("JWT_SECRET is required")
	case cfg.Workers <= 0:
		return cfg, fmt.Errorf("SIM_WORKERS must be > 0")
	case cfg.Slots <= 0 || cfg.Slots > 40:
		return cfg, fmt.Errorf("SIM_SLOTS must be between 1 and 40")
	case cfg.DoctorID <= 0 || cfg.Patients <= 0:
		return cfg, fmt.Errorf("SIM_DOCTOR_ID and SIM_PATIENTS must be > 0")
	}
	return cfg, nil
}

// slotTime spaces slots fifteen minutes apart from 08:00.
func slotTime(i int) appointment.TimeOfDay {
	minutes := 8*60 + i*15
	return appointment.TimeOfDay{Hour: minutes / 60, Minute: minutes % 60}
}

func (s *Simulator) Run(ctx context.Context) {
	start := make(chan struct{})
	var wg sync.WaitGroup

	for slot := 0; slot < s.config.Slots; slot++ {
		for w := 0; w < s.config.Workers; w++ {
			wg.Add(1)
			go func(slot, worker int) {
				defer wg.Done()
				<-start
				patientID := int64(worker)%s.config.Patients + 1
				s.doBooking(ctx, slot, patientID)
			}(slot, w)
		}
	}

	began := time.Now()
	close(start)
	wg.Wait()
	s.log.Infof("booking storm finished in %s", time.Since(began))
}

func (s *Simulator) doBooking(ctx context.Context, slot int, patientID int64) {
	body, _ := json.Marshal(map[string]any{
		"patientId": patientID,
		"doctorId":  s.config.DoctorID,
		"date":      s.config.Date.String(),
		"time":      slotTime(slot).String(),
	})

	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.token)

	began := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(began)

	if err != nil {
		s.metrics.Record(latency, 0)
		return
	}
	defer resp.Body.Close()

	s.metrics.Record(latency, resp.StatusCode)
	if resp.StatusCode == http.StatusCreated {
		atomic.AddInt64(&s.booked[slot], 1)
	}
}

// Verify cross-checks the create responses against the server's own view of
// each slot and returns the number of slots that broke single booking.
func (s *Simulator) Verify(ctx context.Context) int {
	active := make(map[string]int)
	list, err := s.listDay(ctx)
	if err != nil {
		s.log.WithError(err).Warn("could not list appointments for verification")
	}
	for _, a := range list {
		if a.Doctor.ID == s.config.DoctorID && a.Status != string(appointment.StatusCancelled) {
			active[a.Time]++
		}
	}

	violations := 0
	for slot := 0; slot < s.config.Slots; slot++ {
		at := slotTime(slot).String()
		entry := s.log.WithFields(logrus.Fields{
			"time":      at,
			"successes": s.booked[slot],
			"stored":    active[at],
		})

		if s.booked[slot] > 1 || active[at] > 1 {
			violations++
			entry.Error("slot double booked")
			continue
		}
		entry.Debug("slot ok")
	}
	return violations
}

type listedAppointment struct {
	ID     int64  `json:"id"`
	Time   string `json:"time"`
	Status string `json:"status"`
	Doctor struct {
		ID int64 `json:"id"`
	} `json:"doctor"`
}

func (s *Simulator) listDay(ctx context.Context) ([]listedAppointment, error) {
	day := s.config.Date.String()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/appointments?from=%s&to=%s", s.config.APIBaseURL, day, day), nil)
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list appointments: status %d", resp.StatusCode)
	}

	var list []listedAppointment
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode appointments: %w", err)
	}
	return list, nil
}

func (s *Simulator) PrintReport() {
	avg, p50, p95, max := s.metrics.Stats()

	fmt.Println()
	fmt.Println("=== Booking storm report ===")
	fmt.Printf("requests:  %d\n", s.metrics.Total)
	fmt.Printf("created:   %d\n", s.metrics.Success)
	fmt.Printf("conflicts: %d\n", s.metrics.Conflict)
	fmt.Printf("errors:    %d\n", s.metrics.Error)
	fmt.Printf("latency:   avg=%s p50=%s p95=%s max=%s\n", avg, p50, p95, max)
	fmt.Println()
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
