// Package app assembles the draft store, connectivity watcher, sync
// coordinator and local API from configuration.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atinyakov/sms-drafts/internal/client/api"
	"github.com/atinyakov/sms-drafts/internal/client/autosave"
	"github.com/atinyakov/sms-drafts/internal/client/connectivity"
	"github.com/atinyakov/sms-drafts/internal/client/storage"
	"github.com/atinyakov/sms-drafts/internal/client/syncer"
	"github.com/atinyakov/sms-drafts/internal/config"
	"github.com/atinyakov/sms-drafts/internal/db"
	"github.com/atinyakov/sms-drafts/internal/logger"
	"github.com/atinyakov/sms-drafts/internal/metrics"
	"github.com/atinyakov/sms-drafts/internal/models"
	"github.com/atinyakov/sms-drafts/internal/repository"
	handler "github.com/atinyakov/sms-drafts/internal/server/handler/http"
)

// App holds the wired components.
type App struct {
	Options  *config.Options
	Log      *zap.Logger
	Store    *storage.Store
	Detector *connectivity.Detector
	Prober   *connectivity.Prober
	Syncer   *syncer.Coordinator
	Uploader *api.Uploader
	Registry *prometheus.Registry

	db     *sql.DB
	fileKV *storage.FileKV
	wg     sync.WaitGroup
}

// New builds an App. The detector starts offline until the first probe.
func New(opts *config.Options, log *zap.Logger) (*App, error) {
	log = logger.OrNop(log)
	a := &App{Options: opts, Log: log}

	kv, err := a.openKV()
	if err != nil {
		return nil, err
	}
	if opts.EncryptionKeyFile != "" {
		material, err := os.ReadFile(opts.EncryptionKeyFile)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("read encryption key: %w", err)
		}
		aead, err := storage.NewAEADFromPEM(material)
		if err != nil {
			a.Close()
			return nil, err
		}
		kv = storage.NewSealedKV(kv, aead)
	}

	a.Store, err = storage.NewStore(kv)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load drafts: %w", err)
	}
	if n := a.Store.Dropped(); n > 0 {
		log.Warn("skipped invalid persisted drafts", zap.Int("count", n))
	}

	httpClient := &http.Client{Timeout: 10 * time.Second}
	if opts.TLSCert != "" || opts.TLSKey != "" || opts.TLSCA != "" {
		httpClient, err = api.LoadClientTLS(opts.TLSCert, opts.TLSKey, opts.TLSCA)
		if err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewSync(a.Registry)

	backend := strings.TrimRight(opts.BackendURL, "/")
	a.Detector = connectivity.New(false)
	a.Prober = &connectivity.Prober{
		Detector: a.Detector,
		Check:    connectivity.HTTPCheck(httpClient, backend+"/health"),
		Interval: opts.ProbeInterval,
		Log:      log,
	}
	a.Syncer = syncer.New(a.Store, a.Detector, log, m)
	a.Uploader = api.NewUploader(api.NewClient(backend, httpClient, opts.BackendToken))

	log.Info("draft store ready",
		zap.String("driver", opts.StorageDriver),
		zap.Int("drafts", a.Store.Len()),
		zap.Bool("sealed", opts.EncryptionKeyFile != ""),
	)
	return a, nil
}

func (a *App) openKV() (storage.KV, error) {
	switch a.Options.StorageDriver {
	case config.DriverMemory:
		return storage.NewMemoryKV(), nil
	case config.DriverFile, "":
		kv, err := storage.NewFileKV(a.Options.DataDir)
		if err != nil {
			return nil, err
		}
		a.fileKV = kv
		return kv, nil
	case config.DriverSQLite:
		return a.openSQL(repository.DriverSQLite)
	case config.DriverPostgres:
		return a.openSQL(repository.DriverPostgres)
	}
	return nil, fmt.Errorf("unknown storage driver %q", a.Options.StorageDriver)
}

func (a *App) openSQL(driver string) (storage.KV, error) {
	conn, err := db.Open(driver, a.Options.StorageDSN)
	if err != nil {
		return nil, fmt.Errorf("cannot init database: %w", err)
	}
	a.db = conn
	return repository.NewSQLKV(conn, driver)
}

// Upload is the SyncFunc used for every pass.
func (a *App) Upload(ctx context.Context, d models.Draft) error {
	return a.Uploader.Upload(ctx, d)
}

// Start runs the prober and the reconnect sync loop until ctx is done.
func (a *App) Start(ctx context.Context) {
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.Prober.Watch(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.Syncer.Run(ctx, a.Upload)
	}()
}

// Wait blocks until the goroutines started by Start return.
func (a *App) Wait() {
	a.wg.Wait()
}

// Autosaver returns an autosaver for one form using the configured debounce.
func (a *App) Autosaver(t models.DraftType, id string) *autosave.Autosaver {
	return autosave.New(a.Store, t, id, a.Options.Debounce(), a.Log)
}

// Router returns the local draft API.
func (a *App) Router() http.Handler {
	return handler.NewRouter(handler.RouterConfig{
		Drafts:         handler.NewDraftHandler(a.Store, a.Log),
		Sync:           &handler.SyncHandler{Syncer: a.Syncer, Upload: a.Upload},
		Status:         &handler.StatusHandler{Conn: a.Detector, Store: a.Store},
		Metrics:        promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}),
		Logger:         a.Log,
		AllowedOrigins: a.Options.Origins(),
		APIToken:       a.Options.APIToken,
	})
}

// Close releases the database connection or the data directory lock.
func (a *App) Close() error {
	var err error
	if a.db != nil {
		err = a.db.Close()
	}
	if a.fileKV != nil {
		err = errors.Join(err, a.fileKV.Close())
	}
	return err
}
