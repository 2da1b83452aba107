package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/openseis/seisvol/datatype/seismic"
	"github.com/openseis/seisvol/rpc"
	"github.com/openseis/seisvol/seisvol"
	"github.com/openseis/seisvol/storage"

	// Register the storage engines.
	_ "github.com/openseis/seisvol/storage/badger"
	_ "github.com/openseis/seisvol/storage/sqlite"
)

var (
	svc   *seismic.Service
	svcMu sync.RWMutex

	httpServer *http.Server

	// shutdownCh is closed when a shutdown is requested via rpc.
	shutdownCh   = make(chan struct{})
	shutdownOnce sync.Once
)

func currentService() *seismic.Service {
	svcMu.RLock()
	defer svcMu.RUnlock()
	return svc
}

func setService(s *seismic.Service) {
	svcMu.Lock()
	svc = s
	svcMu.Unlock()
}

// logMutation journals a mutation record.  Journal failures are logged but
// don't fail the request that caused the change.
func logMutation(mutation map[string]interface{}) {
	if err := LogMutation(mutation); err != nil {
		seisvol.Errorf("unable to journal mutation %v: %v\n", mutation, err)
	}
}

// newService wraps an opened store with the service configured by the
// loaded TOML.
func newService(store storage.MetadataStore) *seismic.Service {
	s := seismic.NewService(store, seismic.Config{
		MaxFileJobs:     MaxFileJobs(),
		RejectIrregular: RejectIrregular(),
		CacheBytes:      CacheSize("geometry"),
	})
	s.OnMutation = logMutation
	return s
}

// Initialize sets up logging, the metadata store, kafka, the mutation journal
// and access control from the loaded configuration.
func Initialize() error {
	tc.Logging.SetLogger()
	seisvol.Infof("seisvol %s starting on %s\n", seisvol.Version, Host())

	store, created, err := storage.NewStore(StoreConfig())
	if err != nil {
		return fmt.Errorf("unable to open metadata store: %v", err)
	}
	if created {
		seisvol.Infof("Created new metadata store.\n")
	}

	if err := tc.Kafka.Initialize(Host()); err != nil {
		store.Close()
		return fmt.Errorf("can't initialize kafka: %v", err)
	}
	storage.SetFailedMessageHandler(func(topic string, msg []byte) {
		seisvol.Criticalf("kafka send failed on topic %s, %s message dropped\n", topic, seisvol.HumanBytes(int64(len(msg))))
	})
	if err := openJournal(MutationLogSpec()); err != nil {
		store.Close()
		return fmt.Errorf("can't open mutation journal: %v", err)
	}
	if err := loadAuthFile(); err != nil {
		store.Close()
		return fmt.Errorf("can't load auth file %q: %v", tc.Auth.AuthFile, err)
	}
	if err := loadBlockListFile(); err != nil {
		store.Close()
		return fmt.Errorf("can't load blocklist file %q: %v", tc.Server.BlockListFile, err)
	}
	if err := writePidFile(); err != nil {
		seisvol.Errorf("unable to write pid file %s: %v\n", tc.Server.PidFile, err)
	}

	setService(newService(store))
	rpc.RegisterCommandHandler(doCommand)
	resetRoutes()
	return nil
}

// Serve starts the RPC and HTTP servers and blocks until the HTTP server
// stops or a shutdown command arrives.
func Serve() error {
	if currentService() == nil {
		return fmt.Errorf("server not initialized")
	}
	if err := rpc.StartServer(RPCAddress()); err != nil {
		return fmt.Errorf("unable to start rpc server on %s: %v", RPCAddress(), err)
	}

	httpServer = &http.Server{
		Addr:        HTTPAddress(),
		Handler:     handler(),
		ReadTimeout: 1 * time.Hour,
	}
	errCh := make(chan error, 1)
	go func() {
		seisvol.Infof("Web server listening at %s ...\n", HTTPAddress())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-shutdownCh:
		seisvol.Infof("Shutdown requested.\n")
	}
	return nil
}

// requestShutdown asks Serve to return.  Safe to call more than once.
func requestShutdown() {
	shutdownOnce.Do(func() { close(shutdownCh) })
}

// Shutdown halts the servers and closes the store, kafka and the journal.
func Shutdown() {
	if httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := httpServer.Shutdown(ctx); err != nil {
			seisvol.Errorf("error shutting down web server: %v\n", err)
		}
		cancel()
		httpServer = nil
	}
	rpc.Shutdown()
	if s := currentService(); s != nil {
		s.Store().Close()
		setService(nil)
	}
	storage.KafkaShutdown()
	closeJournal()
	if tc.Server.PidFile != "" {
		if err := os.Remove(tc.Server.PidFile); err != nil && !os.IsNotExist(err) {
			seisvol.Errorf("unable to remove pid file: %v\n", err)
		}
	}
	seisvol.Infof("seisvol server halted.\n")
	seisvol.Shutdown()
}
