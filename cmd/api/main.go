package main

import (
	"context"
	"crypto/tls"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jhoicas/invorya-verifactu/internal/application/billing"
	domainvf "github.com/jhoicas/invorya-verifactu/internal/domain/verifactu"
	"github.com/jhoicas/invorya-verifactu/internal/infrastructure/postgres"
	infravf "github.com/jhoicas/invorya-verifactu/internal/infrastructure/verifactu"
	"github.com/jhoicas/invorya-verifactu/internal/infrastructure/verifactu/signer"
	httpRouter "github.com/jhoicas/invorya-verifactu/internal/interfaces/http"
	"github.com/jhoicas/invorya-verifactu/pkg/config"
	"github.com/jhoicas/invorya-verifactu/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   "info",
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("verifactu_env", cfg.Verifactu.AppEnv).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB, cfg.App.Name)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	if err := postgres.Migrate(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("migraciones")
	}

	repos := postgres.NewRepos(pool)
	txRunner := postgres.NewTxRunner(pool)

	system := domainvf.SystemInfo{
		Name:          cfg.Verifactu.SystemName,
		ID:            cfg.Verifactu.SystemID,
		Version:       cfg.Verifactu.SystemVersion,
		ProducerTaxID: cfg.Verifactu.ProducerTaxID,
		ProducerName:  cfg.Verifactu.ProducerName,
	}
	invoiceUC := billing.NewInvoiceUseCase(
		txRunner, repos.Invoices, repos.Customers,
		billing.NewSeriesCounter(),
		billing.NewChainBuilder(system),
		billing.NewSubmissionQueue(cfg.Worker.MaxAttempts),
		log,
	)
	chainVerifier := billing.NewChainVerifier(repos.Ledger, log)

	// Certificado: firma XMLDSig y TLS mutuo. Sin certificado, firma provisional.
	var cert *tls.Certificate
	var docSigner signer.Signer = signer.NewPlaceholderSigner()
	if cfg.Verifactu.CertPath != "" {
		c, err := signer.LoadCertificate(cfg.Verifactu.CertPath, cfg.Verifactu.CertKeyPath, cfg.Verifactu.CertPassword)
		if err != nil {
			log.Fatal().Err(err).Msg("cargar certificado")
		}
		xs, err := signer.NewXMLDSigSigner(c)
		if err != nil {
			log.Fatal().Err(err).Msg("firmante XMLDSig")
		}
		cert, docSigner = &c, xs
	} else {
		log.Warn().Msg("VERIFACTU_CERT_PATH vacío: documentos con firma provisional")
	}

	transmitter, err := infravf.NewTransmitter(cfg.Verifactu.AppEnv, infravf.SOAPClientConfig{
		Endpoint:    cfg.Verifactu.Endpoint(),
		Timeout:     cfg.Worker.HTTPTimeout,
		RetryMax:    cfg.Worker.HTTPRetries,
		Certificate: cert,
		Logger:      log,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("transmisor")
	}

	worker := billing.NewSubmissionWorker(
		repos.Jobs, repos.Ledger, repos.Invoices, repos.Tenants,
		infravf.NewEncoder(), docSigner, transmitter,
		billing.RetryPolicy{
			Initial:    cfg.Worker.BackoffInitial,
			Max:        cfg.Worker.BackoffMax,
			Multiplier: cfg.Worker.BackoffMultiplier,
		},
		billing.WorkerConfig{
			BatchSize:   cfg.Worker.BatchSize,
			Interval:    cfg.Worker.Interval,
			Lease:       cfg.Worker.Lease,
			Concurrency: cfg.Worker.Concurrency,
		},
		log,
	)

	workerCtx, stopWorker := context.WithCancel(ctx)
	workerDone := make(chan struct{})
	if cfg.Worker.Enabled {
		go func() {
			defer close(workerDone)
			worker.Run(workerCtx)
		}()
	} else {
		close(workerDone)
		log.Info().Msg("worker de remisión deshabilitado (WORKER_ENABLED=false)")
	}

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 30,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Invorya VeriFactu API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := pool.Ping(c.Context()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "service": cfg.App.Name})
		}
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		InvoiceUC:     invoiceUC,
		ChainVerifier: chainVerifier,
		Worker:        worker,
		JWTSecret:     cfg.JWT.Secret,
	})

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}
	stopWorker()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("el worker no terminó a tiempo")
	}

	log.Info().Msg("aplicación detenida")
}
