package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/tankgauge/pkg/app"
	"github.com/charlie0129/tankgauge/pkg/config"
	"github.com/charlie0129/tankgauge/pkg/events"
	"github.com/charlie0129/tankgauge/pkg/scheduler"
	"github.com/charlie0129/tankgauge/pkg/store"
)

// requestTimeout bounds how long a handler waits for the scheduler.
const requestTimeout = 5 * time.Second

type server struct {
	app     *app.App
	sched   *scheduler.Scheduler
	timeout time.Duration

	// ctx is canceled at shutdown and ends open streams, which
	// http.Server.Shutdown does not track.
	ctx      context.Context
	upgrader websocket.Upgrader
}

func newServer(ctx context.Context, a *app.App, s *scheduler.Scheduler) *server {
	return &server{
		app:     a,
		sched:   s,
		timeout: requestTimeout,
		ctx:     ctx,
		upgrader: websocket.Upgrader{
			// Only local clients reach the unix socket.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

func (s *server) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/config", s.getConfig)
	router.GET("/capacity", s.getCapacity)
	router.PUT("/capacity", s.setCapacity)
	router.GET("/tank-id", s.getTankID)
	router.PUT("/tank-id", s.setTankID)
	router.GET("/calibration", s.getCalibration)
	router.PUT("/calibration/action", s.setCalibrationAction)
	router.GET("/curve", s.getCurve)
	router.PUT("/curve", s.setCurve)
	router.GET("/offset/:sensor", s.getOffset)
	router.PUT("/offset/:sensor", s.setOffset)
	router.GET("/measurements", s.getMeasurements)
	router.GET("/tasks", s.getTasks)
	router.GET("/stream", s.stream)
	router.GET("/version", getVersion)

	return router
}

// openStore returns the directory store, or an in-memory store when the
// directory is unusable. Calibration then lasts until the daemon exits.
func openStore(dir string) store.Store {
	st, err := store.NewDir(dir)
	if err != nil {
		logrus.WithError(err).WithField("dir", dir).Error("failed to open store, calibration will not be persisted")
		return store.NewMemory()
	}
	logrus.WithField("dir", st.Root()).Info("store opened")
	return st
}

func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to parse config during startup")
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	sources := app.OpenSources(conf)
	defer func() {
		if err := sources.Close(); err != nil {
			logrus.Errorf("failed to close sensors: %v", err)
		}
	}()

	a, err := app.New(app.Options{
		Config:  conf,
		Store:   openStore(conf.StoreDir()),
		Hub:     events.NewEventHub(),
		Sources: sources,
	})
	if err != nil {
		return err
	}

	sched := scheduler.NewScheduler()
	a.Register(sched)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		logrus.Debugln("main loop starts")
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logrus.Errorf("main loop exited unexpectedly: %v", err)
		}
	}()

	// Receive SIGHUP to reload config. Capacity takes effect at once; source
	// and path settings need a restart.
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			err := conf.Load()
			if err != nil {
				logrus.Errorf("failed to reload config: %v", err)
				continue
			}
			logrus.WithFields(conf.LogrusFields()).Infof("config reloaded")
		}
	}()

	srv := &http.Server{
		Handler: newServer(ctx, a, sched).setupRoutes(),
	}
	srv.RegisterOnShutdown(cancel)

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to listen on %s", unixSocketPath)
	}

	if conf.AllowNonRootAccess() || allowNonRoot {
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
		err = os.Chmod(unixSocketPath, 0777)
		if err != nil {
			_ = l.Close()
			return pkgerrors.Wrapf(err, "failed to change permissions of %s", unixSocketPath)
		}
	}

	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Fatal(err)
		}
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM:
	sig := <-sigc
	logrus.Infof("caught signal \"%s\": shutting down.", sig)

	logrus.Info("shutting down http server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(shutdownCtx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	shutdownCancel()

	logrus.Info("stopping main loop")
	cancel()
	<-schedDone

	logrus.Info("exiting")
	return nil
}
