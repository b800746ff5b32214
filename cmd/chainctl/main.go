// chainctl es la herramienta de operación de la cadena VeriFactu: verifica y exporta la
// cadena de un tenant y procesa lotes de la cola de remisión sin levantar la API.
//
//	chainctl verify --tenant <id>
//	chainctl export --tenant <id> [--out cadena.json]
//	chainctl process [--tenant <id>] [--limit 50]
//	chainctl token --tenant <id> --user <id> --role facturador
//
// verify termina con código 2 si la cadena tiene discrepancias.
package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jhoicas/invorya-verifactu/internal/application/billing"
	"github.com/jhoicas/invorya-verifactu/internal/domain/entity"
	"github.com/jhoicas/invorya-verifactu/internal/domain/repository"
	"github.com/jhoicas/invorya-verifactu/internal/infrastructure/postgres"
	infravf "github.com/jhoicas/invorya-verifactu/internal/infrastructure/verifactu"
	"github.com/jhoicas/invorya-verifactu/internal/infrastructure/verifactu/signer"
	"github.com/jhoicas/invorya-verifactu/pkg/config"
	"github.com/jhoicas/invorya-verifactu/pkg/jwt"
	"github.com/jhoicas/invorya-verifactu/pkg/logger"
	"github.com/samber/lo"
	"github.com/spf13/pflag"
)

// exitError lleva un código de salida distinto de 1.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }
func (e *exitError) ExitCode() int { return e.code }

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		var coder interface{ ExitCode() int }
		if errors.As(err, &coder) {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(coder.ExitCode())
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	var tenantID, outPath, userID, role string
	var limit int

	flagSet := pflag.NewFlagSet("chainctl", pflag.ContinueOnError)
	flagSet.StringVar(&tenantID, "tenant", "", "ID del tenant (verify, export, token; en process limita el lote)")
	flagSet.StringVar(&outPath, "out", "", "archivo de salida para export (vacío = stdout)")
	flagSet.IntVar(&limit, "limit", 0, "máximo de trabajos a procesar (0 = WORKER_BATCH_SIZE)")
	flagSet.StringVar(&userID, "user", "", "usuario del token (token)")
	flagSet.StringVar(&role, "role", "facturador", "rol del token: admin, facturador o auditor (token)")
	flagSet.BoolP("help", "h", false, "mostrar ayuda")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help || flagSet.NArg() == 0 {
		printHelp(flagSet)
		return nil
	}
	command := flagSet.Arg(0)
	if !lo.Contains([]string{"verify", "export", "process", "token"}, command) {
		return fmt.Errorf("comando desconocido %q", command)
	}
	if command != "process" && tenantID == "" {
		return fmt.Errorf("%s requiere --tenant", command)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("cargar configuración: %w", err)
	}
	if command == "token" {
		return issueToken(stdout, cfg.JWT, jwt.Identity{UserID: userID, TenantID: tenantID, Role: role})
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: "warn", Service: "chainctl", Out: os.Stderr})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.DB, "chainctl")
	if err != nil {
		return fmt.Errorf("conexión a PostgreSQL: %w", err)
	}
	defer pool.Close()
	repos := postgres.NewRepos(pool)

	switch command {
	case "verify":
		res, err := billing.NewChainVerifier(repos.Ledger, log).Verify(ctx, tenantID)
		if err != nil {
			return err
		}
		if err := writeJSON(stdout, res); err != nil {
			return err
		}
		if !res.Valid {
			return &exitError{code: 2, msg: fmt.Sprintf("cadena inválida: %d discrepancias", len(res.Errors))}
		}
		return nil

	case "export":
		entries, err := billing.NewChainVerifier(repos.Ledger, log).ExportChain(ctx, tenantID)
		if err != nil {
			return err
		}
		out := stdout
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("crear %s: %w", outPath, err)
			}
			defer f.Close()
			out = f
		}
		return writeJSON(out, lo.Map(entries, func(e *entity.LedgerEntry, _ int) any {
			return billing.ToLedgerEntryResponse(e)
		}))

	default:
		worker, err := newWorker(cfg, repos, log)
		if err != nil {
			return err
		}
		stats, err := worker.ProcessBatch(ctx, tenantID, limit)
		if err != nil {
			return err
		}
		return writeJSON(stdout, stats)
	}
}

func newWorker(cfg *config.Config, repos repository.Repos, log *logger.Logger) (*billing.SubmissionWorker, error) {
	var cert *tls.Certificate
	var docSigner signer.Signer = signer.NewPlaceholderSigner()
	if cfg.Verifactu.CertPath != "" {
		c, err := signer.LoadCertificate(cfg.Verifactu.CertPath, cfg.Verifactu.CertKeyPath, cfg.Verifactu.CertPassword)
		if err != nil {
			return nil, fmt.Errorf("cargar certificado: %w", err)
		}
		xs, err := signer.NewXMLDSigSigner(c)
		if err != nil {
			return nil, err
		}
		cert, docSigner = &c, xs
	}
	transmitter, err := infravf.NewTransmitter(cfg.Verifactu.AppEnv, infravf.SOAPClientConfig{
		Endpoint:    cfg.Verifactu.Endpoint(),
		Timeout:     cfg.Worker.HTTPTimeout,
		RetryMax:    cfg.Worker.HTTPRetries,
		Certificate: cert,
		Logger:      log,
	})
	if err != nil {
		return nil, err
	}
	return billing.NewSubmissionWorker(
		repos.Jobs, repos.Ledger, repos.Invoices, repos.Tenants,
		infravf.NewEncoder(), docSigner, transmitter,
		billing.RetryPolicy{
			Initial:    cfg.Worker.BackoffInitial,
			Max:        cfg.Worker.BackoffMax,
			Multiplier: cfg.Worker.BackoffMultiplier,
		},
		billing.WorkerConfig{
			BatchSize:   cfg.Worker.BatchSize,
			Lease:       cfg.Worker.Lease,
			Concurrency: cfg.Worker.Concurrency,
		},
		log,
	), nil
}

func issueToken(w io.Writer, cfg config.JWTConfig, id jwt.Identity) error {
	if !lo.Contains([]string{"admin", "facturador", "auditor"}, id.Role) {
		return fmt.Errorf("rol desconocido %q", id.Role)
	}
	tok, err := jwt.Sign(cfg.Secret, cfg.Issuer, id, time.Duration(cfg.Expiration)*time.Minute)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, tok)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `chainctl: operación de la cadena VeriFactu.

Uso:
  chainctl verify  --tenant <id>
  chainctl export  --tenant <id> [--out archivo.json]
  chainctl process [--tenant <id>] [--limit N]
  chainctl token   --tenant <id> --user <id> [--role facturador]

La configuración se lee del entorno (DATABASE_URL, JWT_*, VERIFACTU_*, WORKER_*).

Opciones:
%s`, flagSet.FlagUsages())
}
