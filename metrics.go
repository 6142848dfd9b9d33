package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"micromouse/internal/pid"
	"micromouse/internal/transport"
)

// Metrics holds all Prometheus metrics for the robot
type Metrics struct {
	// Wheel metrics
	WheelPower    *prometheus.GaugeVec // Applied motor power per wheel
	WheelVelocity *prometheus.GaugeVec // Measured velocity (ticks/ms)
	WheelTarget   *prometheus.GaugeVec // Velocity target (ticks/ms)
	WheelPID      *prometheus.GaugeVec // Wheel PID terms

	// Body metrics
	Position *prometheus.GaugeVec // Linear and spin position (ticks)
	Distance *prometheus.GaugeVec // Distance sensor readings (mm)

	// Battery metrics
	BatteryRaw  prometheus.Gauge // Raw ADC reading
	BatteryDead prometheus.Gauge // 1 when the pack is considered dead

	// Move and plan metrics
	MoveActive    *prometheus.GaugeVec // 1 for the running move kind
	MovesFinished prometheus.Gauge     // Moves completed since start
	PlanX         prometheus.Gauge
	PlanY         prometheus.Gauge
	PlanHeading   prometheus.Gauge // 0 up, 1 right, 2 down, 3 left
	PlanQueue     prometheus.Gauge // Queued moves
	PlanGoing     prometheus.Gauge // 1 while exploring

	// System metrics
	MessagesTotal *prometheus.CounterVec // Link messages by direction
	ErrorsTotal   *prometheus.CounterVec // Error counters
	LoopDuration  prometheus.Histogram   // Superloop timing

	lastLink transport.Status
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
	Battery   string    `json:"battery"`
}

// WheelTelemetry is the state of one wheel loop
type WheelTelemetry struct {
	Power    float64
	Velocity float64
	Target   float64
	Terms    pid.Terms
}

// Telemetry is everything the metrics reflect after one loop iteration
type Telemetry struct {
	Left  WheelTelemetry
	Right WheelTelemetry

	LinearPos float64
	SpinPos   float64

	LeftDistance  uint8
	FrontDistance uint8
	RightDistance uint8

	BatteryRaw  uint16
	BatteryDead bool

	Move          string
	MovesFinished uint64

	PlanX   int
	PlanY   int
	Heading int
	Queued  int
	Going   bool

	Link         transport.Status
	LoopDuration time.Duration
}

var (
	// Global metrics instance
	metrics *Metrics

	// Start time for uptime calculation
	startTime time.Time
)

var moveKinds = []string{"idle", "spin", "linear"}

// InitMetrics creates all metrics and registers them with reg
func InitMetrics(reg prometheus.Registerer) *Metrics {
	startTime = time.Now()

	m := &Metrics{
		WheelPower: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "micromouse_wheel_power",
				Help: "Applied motor power",
			},
			[]string{"wheel"},
		),
		WheelVelocity: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "micromouse_wheel_velocity_ticks_per_ms",
				Help: "Measured wheel velocity in ticks per ms",
			},
			[]string{"wheel"},
		),
		WheelTarget: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "micromouse_wheel_target_ticks_per_ms",
				Help: "Wheel velocity target in ticks per ms",
			},
			[]string{"wheel"},
		),
		WheelPID: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "micromouse_wheel_pid",
				Help: "Wheel PID terms",
			},
			[]string{"wheel", "term"},
		),
		Position: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "micromouse_position_ticks",
				Help: "Linear and spin position in encoder ticks",
			},
			[]string{"axis"},
		),
		Distance: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "micromouse_distance_mm",
				Help: "Distance sensor range in mm",
			},
			[]string{"sensor"},
		),
		BatteryRaw: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "micromouse_battery_raw",
				Help: "Raw battery ADC reading",
			},
		),
		BatteryDead: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "micromouse_battery_dead",
				Help: "Battery dead status (1=dead, 0=ok)",
			},
		),
		MoveActive: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "micromouse_move_active",
				Help: "Current move kind (1=active)",
			},
			[]string{"move"},
		),
		MovesFinished: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "micromouse_moves_finished",
				Help: "Moves completed since start",
			},
		),
		PlanX: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "micromouse_plan_x",
				Help: "Grid column",
			},
		),
		PlanY: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "micromouse_plan_y",
				Help: "Grid row",
			},
		),
		PlanHeading: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "micromouse_plan_heading",
				Help: "Heading (0=up, 1=right, 2=down, 3=left)",
			},
		),
		PlanQueue: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "micromouse_plan_queue_length",
				Help: "Moves waiting in the plan queue",
			},
		),
		PlanGoing: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "micromouse_plan_going",
				Help: "Exploration status (1=going)",
			},
		),
		MessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "micromouse_link_messages_total",
				Help: "Messages moved over the host link",
			},
			[]string{"direction"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "micromouse_errors_total",
				Help: "Total number of errors by type",
			},
			[]string{"type"},
		),
		LoopDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "micromouse_loop_duration_seconds",
				Help:    "Superloop iteration time in seconds",
				Buckets: []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01},
			},
		),
	}

	reg.MustRegister(
		m.WheelPower,
		m.WheelVelocity,
		m.WheelTarget,
		m.WheelPID,
		m.Position,
		m.Distance,
		m.BatteryRaw,
		m.BatteryDead,
		m.MoveActive,
		m.MovesFinished,
		m.PlanX,
		m.PlanY,
		m.PlanHeading,
		m.PlanQueue,
		m.PlanGoing,
		m.MessagesTotal,
		m.ErrorsTotal,
		m.LoopDuration,
	)

	metrics = m
	return m
}

// StartMetricsServer serves /metrics and /health on port. The returned
// server is already listening in the background.
func StartMetricsServer(port int, gatherer prometheus.Gatherer, battery func() bool, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler(battery, logger))
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("starting metrics server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	return server
}

// healthHandler reports ok while the battery is alive
func healthHandler(batteryDead func() bool, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
			Uptime:    time.Since(startTime).String(),
			Battery:   "ok",
		}
		status := http.StatusOK
		if batteryDead != nil && batteryDead() {
			response.Status = "degraded"
			response.Battery = "dead"
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)

		if err := json.NewEncoder(w).Encode(response); err != nil {
			logger.Warn("failed to encode health response", zap.Error(err))
		}
	}
}

// Update sets every metric from t
func (m *Metrics) Update(t Telemetry) {
	m.updateWheel("left", t.Left)
	m.updateWheel("right", t.Right)

	m.Position.WithLabelValues("linear").Set(t.LinearPos)
	m.Position.WithLabelValues("spin").Set(t.SpinPos)

	m.Distance.WithLabelValues("left").Set(float64(t.LeftDistance))
	m.Distance.WithLabelValues("front").Set(float64(t.FrontDistance))
	m.Distance.WithLabelValues("right").Set(float64(t.RightDistance))

	m.BatteryRaw.Set(float64(t.BatteryRaw))
	m.BatteryDead.Set(boolGauge(t.BatteryDead))

	for _, kind := range moveKinds {
		m.MoveActive.WithLabelValues(kind).Set(boolGauge(kind == t.Move))
	}
	m.MovesFinished.Set(float64(t.MovesFinished))

	m.PlanX.Set(float64(t.PlanX))
	m.PlanY.Set(float64(t.PlanY))
	m.PlanHeading.Set(float64(t.Heading))
	m.PlanQueue.Set(float64(t.Queued))
	m.PlanGoing.Set(boolGauge(t.Going))

	// Link counters only grow; a fresh link starts them over
	if t.Link.Received >= m.lastLink.Received && t.Link.Sent >= m.lastLink.Sent {
		m.MessagesTotal.WithLabelValues("rx").Add(float64(t.Link.Received - m.lastLink.Received))
		m.MessagesTotal.WithLabelValues("tx").Add(float64(t.Link.Sent - m.lastLink.Sent))
	}
	m.lastLink = t.Link

	m.LoopDuration.Observe(t.LoopDuration.Seconds())
}

func (m *Metrics) updateWheel(wheel string, w WheelTelemetry) {
	m.WheelPower.WithLabelValues(wheel).Set(w.Power)
	m.WheelVelocity.WithLabelValues(wheel).Set(w.Velocity)
	m.WheelTarget.WithLabelValues(wheel).Set(w.Target)
	m.WheelPID.WithLabelValues(wheel, "p").Set(w.Terms.P)
	m.WheelPID.WithLabelValues(wheel, "i").Set(w.Terms.I)
	m.WheelPID.WithLabelValues(wheel, "d").Set(w.Terms.D)
	m.WheelPID.WithLabelValues(wheel, "error").Set(w.Terms.Error)
}

// RecordError increments the error counter for the specified type
func RecordError(errorType string) {
	if metrics == nil {
		return
	}
	metrics.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return metrics
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// MetricsSummary provides a summary of current metric values for logging
type MetricsSummary struct {
	Move     string
	X, Y     int
	Queued   int
	Battery  uint16
	Dead     bool
	Received uint64
	Sent     uint64
	LoopTime time.Duration
}

// GetMetricsSummary returns a summary of t for logging
func GetMetricsSummary(t Telemetry) MetricsSummary {
	return MetricsSummary{
		Move:     t.Move,
		X:        t.PlanX,
		Y:        t.PlanY,
		Queued:   t.Queued,
		Battery:  t.BatteryRaw,
		Dead:     t.BatteryDead,
		Received: t.Link.Received,
		Sent:     t.Link.Sent,
		LoopTime: t.LoopDuration,
	}
}

// LogMetricsSummary logs a summary line, as a warning once the battery is dead
func LogMetricsSummary(logger *zap.Logger, summary MetricsSummary) {
	fields := []zap.Field{
		zap.String("move", summary.Move),
		zap.Int("x", summary.X),
		zap.Int("y", summary.Y),
		zap.Int("queued", summary.Queued),
		zap.Uint16("battery", summary.Battery),
		zap.Uint64("rx", summary.Received),
		zap.Uint64("tx", summary.Sent),
		zap.Duration("loop_time", summary.LoopTime),
	}
	if summary.Dead {
		logger.Warn("battery dead", fields...)
		return
	}
	logger.Info("status", fields...)
}
