package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/tankgauge/pkg/app"
	"github.com/charlie0129/tankgauge/pkg/calibration"
	"github.com/charlie0129/tankgauge/pkg/config"
	"github.com/charlie0129/tankgauge/pkg/curve"
	"github.com/charlie0129/tankgauge/pkg/scheduler"
	"github.com/charlie0129/tankgauge/pkg/version"
)

// do runs fn on the scheduler goroutine and waits for it. It writes an error
// response and returns false when the scheduler does not get to it in time.
// A request that was already queued when the timeout hit still runs later.
func (s *server) do(c *gin.Context, fn func()) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()

	if err := s.sched.DoWait(ctx, fn); err != nil {
		if errors.Is(err, scheduler.ErrNotFinished) {
			err = pkgerrors.Wrap(err, "daemon is busy, request queued and may still apply")
		} else {
			err = pkgerrors.Wrap(err, "daemon is busy, request not applied")
		}
		abortWithError(c, http.StatusServiceUnavailable, err)
		return false
	}
	return true
}

func (s *server) getConfig(c *gin.Context) {
	fc, err := config.NewRawFileConfigFromConfig(s.app.Config())
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err)
		return
	}
	c.IndentedJSON(http.StatusOK, fc)
}

func (s *server) getCapacity(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.app.Config().CapacityLiters())
}

func (s *server) setCapacity(c *gin.Context) {
	var l float64
	if err := c.ShouldBindJSON(&l); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	if !(l > 0) {
		abortWithError(c, http.StatusBadRequest, fmt.Errorf("capacity must be positive, got %v", l))
		return
	}

	var err error
	if !s.do(c, func() { err = s.app.SetCapacity(l) }) {
		return
	}
	if err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		abortWithError(c, http.StatusInternalServerError, pkgerrors.Wrapf(err, "capacity set to %v L but not saved", l))
		return
	}

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("set tank capacity to %v L", l))
}

func (s *server) getTankID(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.app.Config().TankID())
}

func (s *server) setTankID(c *gin.Context) {
	var id string
	if err := c.ShouldBindJSON(&id); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	if err := config.ValidateTankID(id); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	var err error
	if !s.do(c, func() { err = s.app.SetTankID(id) }) {
		return
	}
	if err != nil {
		logrus.Errorf("saveConfig failed: %v", err)
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("set tank id to %s. Restart the daemon to publish under the new id.", id))
}

func (s *server) getCalibration(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.app.Calibration().View())
}

// parseActionBody accepts a JSON string or a bare token.
func parseActionBody(b []byte) calibration.Action {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		str = string(b)
	}
	return calibration.ParseAction(strings.TrimSpace(str))
}

func (s *server) setCalibrationAction(c *gin.Context) {
	b, err := c.GetRawData()
	if err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	act := parseActionBody(b)
	if !s.do(c, func() { s.app.ApplyCalibration(act) }) {
		return
	}

	c.IndentedJSON(http.StatusCreated, s.app.Calibration().View())
}

func (s *server) getCurve(c *gin.Context) {
	crv := s.app.Curve()
	c.IndentedJSON(http.StatusOK, curve.Document{
		TankID:     s.app.Config().TankID(),
		ExportedAt: time.Now().UTC(),
		FullScale:  crv.FullScale(),
		Samples:    crv.Samples(),
	})
}

func (s *server) setCurve(c *gin.Context) {
	var doc curve.Document
	if err := c.ShouldBindJSON(&doc); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	if err := curve.Validate(doc.Samples, s.app.Curve().FullScale()); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	var err error
	if !s.do(c, func() { err = s.app.ReplaceCurve(doc.Samples) }) {
		return
	}
	if err != nil {
		logrus.Errorf("failed to save imported curve: %v", err)
		abortWithError(c, http.StatusInternalServerError, pkgerrors.Wrap(err, "curve imported but not saved"))
		return
	}

	c.IndentedJSON(http.StatusCreated, fmt.Sprintf("imported curve with %d points", len(doc.Samples)))
}

func (s *server) getOffset(c *gin.Context) {
	name := c.Param("sensor")
	p, ok := s.app.Offset(name)
	if !ok {
		abortWithError(c, http.StatusNotFound, fmt.Errorf("%w: %s", app.ErrUnknownOffset, name))
		return
	}
	c.IndentedJSON(http.StatusOK, p)
}

func (s *server) setOffset(c *gin.Context) {
	name := c.Param("sensor")
	p, ok := s.app.Offset(name)
	if !ok {
		abortWithError(c, http.StatusNotFound, fmt.Errorf("%w: %s", app.ErrUnknownOffset, name))
		return
	}

	// Fields missing from the body keep their current value.
	if err := c.ShouldBindJSON(&p); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}

	var err error
	if !s.do(c, func() { err = s.app.SetOffset(name, p) }) {
		return
	}
	if err != nil {
		logrus.Errorf("failed to save offset: %v", err)
		abortWithError(c, http.StatusInternalServerError, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, p)
}

func (s *server) getMeasurements(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.app.Measurements().Snapshot())
}

func (s *server) getTasks(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, s.sched.Status())
}

func getVersion(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, version.Version)
}
