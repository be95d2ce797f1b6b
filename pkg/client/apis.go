package client

import (
	"context"
	"encoding/json"
	"net/url"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/tankgauge/pkg/calibration"
	"github.com/charlie0129/tankgauge/pkg/config"
	"github.com/charlie0129/tankgauge/pkg/curve"
	"github.com/charlie0129/tankgauge/pkg/events"
	"github.com/charlie0129/tankgauge/pkg/pipeline"
	"github.com/charlie0129/tankgauge/pkg/scheduler"
	"github.com/charlie0129/tankgauge/pkg/sink"
)

func getJSON[T any](c *Client, path, what string) (T, error) {
	var v T
	ret, err := c.Get(path)
	if err != nil {
		return v, pkgerrors.Wrapf(err, "failed to get %s", what)
	}
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return v, pkgerrors.Wrapf(err, "failed to unmarshal %s", what)
	}
	return v, nil
}

func putJSON[T any](c *Client, path string, body any, what string) (T, error) {
	var v T
	payload, err := json.Marshal(body)
	if err != nil {
		return v, err
	}
	ret, err := c.Put(path, string(payload))
	if err != nil {
		return v, pkgerrors.Wrapf(err, "failed to set %s", what)
	}
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return v, pkgerrors.Wrapf(err, "failed to unmarshal %s", what)
	}
	return v, nil
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	return getJSON[*config.RawFileConfig](c, "/config", "config")
}

func (c *Client) GetVersion() (string, error) {
	return getJSON[string](c, "/version", "version")
}

func (c *Client) GetCapacity() (float64, error) {
	return getJSON[float64](c, "/capacity", "capacity")
}

func (c *Client) SetCapacity(liters float64) (string, error) {
	return putJSON[string](c, "/capacity", liters, "capacity")
}

func (c *Client) GetTankID() (string, error) {
	return getJSON[string](c, "/tank-id", "tank id")
}

func (c *Client) SetTankID(id string) (string, error) {
	return putJSON[string](c, "/tank-id", id, "tank id")
}

func (c *Client) GetCalibration() (*calibration.View, error) {
	return getJSON[*calibration.View](c, "/calibration", "calibration status")
}

// CalibrationAction sends an operator action. Any form ParseAction accepts
// is valid, e.g. "S" or "start".
func (c *Client) CalibrationAction(action string) (*calibration.View, error) {
	return putJSON[*calibration.View](c, "/calibration/action", action, "calibration action")
}

func (c *Client) GetCurve() (*curve.Document, error) {
	return getJSON[*curve.Document](c, "/curve", "curve")
}

func (c *Client) SetCurve(doc curve.Document) (string, error) {
	return putJSON[string](c, "/curve", doc, "curve")
}

func (c *Client) GetOffset(sensor string) (pipeline.LinearParams, error) {
	return getJSON[pipeline.LinearParams](c, "/offset/"+url.PathEscape(sensor), "offset")
}

// SetOffset updates the offset of sensor. Nil fields keep their value.
func (c *Client) SetOffset(sensor string, multiplier, offset *float64) (pipeline.LinearParams, error) {
	body := map[string]float64{}
	if multiplier != nil {
		body["multiplier"] = *multiplier
	}
	if offset != nil {
		body["offset"] = *offset
	}
	return putJSON[pipeline.LinearParams](c, "/offset/"+url.PathEscape(sensor), body, "offset")
}

func (c *Client) GetMeasurements() ([]sink.Measurement, error) {
	return getJSON[[]sink.Measurement](c, "/measurements", "measurements")
}

func (c *Client) GetTasks() ([]scheduler.TaskStatus, error) {
	return getJSON[[]scheduler.TaskStatus](c, "/tasks", "tasks")
}

// Stream calls fn for every event the daemon publishes until ctx is done,
// fn returns an error, or the connection drops. An empty filter receives
// every event.
func (c *Client) Stream(ctx context.Context, filter string, fn func(events.Event) error) error {
	u := "ws://unix/stream"
	if filter != "" {
		u += "?event=" + url.QueryEscape(filter)
	}

	conn, _, err := c.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to open event stream")
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		var ev events.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return pkgerrors.Wrap(err, "event stream closed")
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}
