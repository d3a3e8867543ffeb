package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/clinicore/scheduler-api/internal/config"
	"github.com/clinicore/scheduler-api/internal/handler"
	appointmentHandler "github.com/clinicore/scheduler-api/internal/handler/appointment"
	calendarHandler "github.com/clinicore/scheduler-api/internal/handler/calendar"
	queueHandler "github.com/clinicore/scheduler-api/internal/handler/queue"
	scheduleHandler "github.com/clinicore/scheduler-api/internal/handler/schedule"
	slotHandler "github.com/clinicore/scheduler-api/internal/handler/slot"
	"github.com/clinicore/scheduler-api/internal/middleware"
	"github.com/clinicore/scheduler-api/internal/repository/postgres"
	"github.com/clinicore/scheduler-api/internal/router"
	calendarService "github.com/clinicore/scheduler-api/internal/service/calendar"
	eventService "github.com/clinicore/scheduler-api/internal/service/event"
	queueService "github.com/clinicore/scheduler-api/internal/service/queue"
	scheduleService "github.com/clinicore/scheduler-api/internal/service/schedule"
	slotService "github.com/clinicore/scheduler-api/internal/service/slot"
	"github.com/clinicore/scheduler-api/pkg/metrics"
)

func main() {
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := middleware.RegisterValidation(nil); err != nil {
		log.Fatal().Err(err).Msg("failed to register validators")
	}

	doctorRepo := postgres.NewDoctorRepository(db)
	hospitalRepo := postgres.NewHospitalRepository(db)
	scheduleRepo := postgres.NewScheduleRepository(db)
	slotRepo := postgres.NewSlotRepository(db)
	apptRepo := postgres.NewAppointmentRepository(db)
	queueRepo := postgres.NewQueueRepository(db)
	outboxRepo := postgres.NewOutboxRepository(db)

	m := metrics.New("scheduler")
	emitter := eventService.NewEmitter(outboxRepo, log.Logger)

	scheduleSvc := scheduleService.NewService(doctorRepo, scheduleRepo, apptRepo, emitter, cfg.Scheduling.CacheTTL, log.Logger)
	slotSvc := slotService.NewService(slotRepo, apptRepo, doctorRepo, scheduleSvc, emitter, m, cfg.Scheduling.MaxGenerateDays, log.Logger)
	calendarSvc := calendarService.NewService(slotRepo, doctorRepo, log.Logger)
	queueSvc := queueService.NewService(queueRepo, apptRepo, doctorRepo, hospitalRepo, emitter, m, log.Logger)

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.CORS.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	}

	r := router.NewRouter(
		handler.NewHandler(db),
		scheduleHandler.NewHandler(scheduleSvc),
		slotHandler.NewHandler(slotSvc),
		appointmentHandler.NewHandler(slotSvc),
		calendarHandler.NewHandler(calendarSvc),
		queueHandler.NewHandler(queueSvc),
		router.Config{
			RateLimit:  rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:  cfg.RateLimit.Burst,
			Timeout:    time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
			CORSConfig: corsConfig,
		},
	)
	r.Setup()

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r.Engine(),
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}
