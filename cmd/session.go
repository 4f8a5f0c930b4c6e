// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/googlecloudplatform/volexec/cfg"
	"github.com/googlecloudplatform/volexec/common"
	"github.com/googlecloudplatform/volexec/internal/adjuster"
	"github.com/googlecloudplatform/volexec/internal/command"
	"github.com/googlecloudplatform/volexec/internal/locker"
	"github.com/googlecloudplatform/volexec/internal/logger"
	"github.com/googlecloudplatform/volexec/internal/monitor"
	"github.com/googlecloudplatform/volexec/internal/scene"
	"github.com/googlecloudplatform/volexec/internal/workerpool"
	"github.com/googlecloudplatform/volexec/metrics"
	"github.com/jacobsa/syncutil"
)

// Content types cycled through when populating the session universe.
var sessionContentTypes = []scene.ContentType{scene.Volume, scene.Ortho, scene.Surface, scene.Mesh}

// SessionReport is the outcome of one scripted session.
type SessionReport struct {
	Contents int
	// Slider is empty when the universe had no content to drag.
	Slider       adjuster.Stats
	Transparency int
	Smooth       workerpool.BatchReport
	Queue        workerpool.QueueStats
	Renders      int64
	Elapsed      time.Duration
}

// CoalescingRatio is the share of slider moves that never reached apply.
func (r SessionReport) CoalescingRatio() float64 {
	if r.Slider.Submitted == 0 {
		return 0
	}
	return 1 - float64(r.Slider.Applied+r.Slider.Failed)/float64(r.Slider.Submitted)
}

func (r SessionReport) Summary() string {
	return fmt.Sprintf(
		"contents=%d slider: moves=%d applied=%d coalesced=%.1f%% final=%d%% | smooth: total=%d ok=%d failed=%d skipped=%d | queue: executed=%d failed=%d dropped=%d rejected=%d | renders=%d elapsed=%v",
		r.Contents, r.Slider.Submitted, r.Slider.Applied, 100*r.CoalescingRatio(), r.Transparency,
		r.Smooth.Total, r.Smooth.Succeeded, r.Smooth.Failed, r.Smooth.Skipped,
		r.Queue.Executed, r.Queue.Failed, r.Queue.Dropped, r.Queue.Rejected,
		r.Renders, r.Elapsed.Round(time.Millisecond))
}

// Run sets up logging and metrics from c, runs the scripted session and
// prints its summary.
func Run(c *cfg.Config) (err error) {
	logger.SetLogFormat(c.Logging.Format)
	if err = logger.InitLogFile(c.Logging); err != nil {
		return fmt.Errorf("init log file: %w", err)
	}
	defer logger.Close()

	logger.Infof("Start volexec/%s for app %q", common.GetVersion(), c.AppName)
	if s, err := cfg.Stringify(c); err != nil {
		logger.Warnf("Failed to stringify config: %v", err)
	} else {
		logger.Infof("volexec config:\n%s", s)
	}

	if c.Debug.ExitOnInvariantViolation {
		locker.EnableInvariantsCheck()
		syncutil.EnableInvariantChecking()
	}
	if c.Debug.LogMutex {
		locker.EnableDebugMessages()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopSignals := registerTerminatingSignalHandler(cancel)
	defer stopSignals()

	shutdownFn := monitor.SetupOTelMetricExporters(ctx, c)
	var metricHandle metrics.MetricHandle = metrics.NewNoopMetrics()
	otelMetrics, err := metrics.NewOTelMetrics(ctx, int(c.Metrics.Workers), int(c.Metrics.BufferSize))
	if err != nil {
		logger.Errorf("Failed to create otel metrics, continuing without: %v", err)
	} else {
		metricHandle = otelMetrics
	}

	report, err := runSession(ctx, c, metricHandle)
	if err == nil || errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stdout, report.Summary())
		logger.Infof("Session finished: %s", report.Summary())
	}

	if otelMetrics != nil {
		otelMetrics.Close()
	}
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), c.Workers.ShutdownTimeout)
	defer cancelShutdown()
	if shutdownErr := shutdownFn(shutdownCtx); shutdownErr != nil {
		logger.Errorf("Error while shutting down metric exporters: %v", shutdownErr)
	}
	return err
}

func buildUniverse(c *cfg.Config) (*scene.Universe, error) {
	u := scene.NewUniverse(c.Session.RenderDelay)
	for i := range int(c.Session.Contents) {
		typ := sessionContentTypes[i%len(sessionContentTypes)]
		var opts []scene.ContentOption
		if typ == scene.Mesh {
			opts = append(opts, scene.WithoutImageData())
		}
		content, err := scene.NewContent(fmt.Sprintf("%v-%d", typ, i), typ, int(c.Session.Timepoints), opts...)
		if err != nil {
			return nil, err
		}
		if err = u.AddContent(content); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// runSession drags a transparency slider, smooths every mesh, queues fill
// tasks and flushes the queue, in that order.
func runSession(ctx context.Context, c *cfg.Config, mh metrics.MetricHandle) (report SessionReport, err error) {
	start := time.Now()
	universe, err := buildUniverse(c)
	if err != nil {
		return report, fmt.Errorf("build universe: %w", err)
	}
	contents := universe.Contents()
	report.Contents = len(contents)

	batch, err := workerpool.NewBatchRunner(int(c.Workers.BatchParallelism), workerpool.WithMetricHandle(mh))
	if err != nil {
		return report, err
	}
	serial := workerpool.NewSerialQueue("session", workerpool.WithMetricHandle(mh))
	d := command.NewDispatcher(universe, batch, serial, mh)
	defer d.Close()

	if len(contents) > 0 {
		if report.Slider, report.Transparency, err = dragTransparency(ctx, d, contents[0].Name(), &c.Session); err != nil {
			d.Flush()
			return report, err
		}
	}

	report.Smooth = d.SmoothAllMeshes(ctx)

	var volumes []string
	for _, content := range contents {
		if t := content.Type(); t == scene.Volume || t == scene.Ortho {
			volumes = append(volumes, content.Name())
		}
	}
	for i := range int(c.Session.Tasks) {
		var submitErr error
		if len(volumes) > 0 {
			submitErr = d.Fill(volumes[i%len(volumes)])
		} else {
			submitErr = d.Execute(workerpool.TaskFunc(func(context.Context) error {
				sleep(ctx, c.Session.RenderDelay)
				return nil
			}))
		}
		if submitErr != nil {
			logger.Warnf("Task %d was not queued: %v", i, submitErr)
		}
	}

	d.Flush()
	// The queue is drained even when the session was interrupted.
	awaitCtx, cancel := context.WithTimeout(context.Background(), c.Workers.ShutdownTimeout)
	defer cancel()
	if err = serial.AwaitTermination(awaitCtx); err != nil {
		return report, err
	}

	report.Queue = serial.Stats()
	report.Renders = universe.Renders()
	report.Elapsed = time.Since(start)
	if err = ctx.Err(); err != nil {
		return report, fmt.Errorf("session interrupted: %w", err)
	}
	return report, nil
}

func dragTransparency(ctx context.Context, d *command.Dispatcher, name string, s *cfg.SessionConfig) (adjuster.Stats, int, error) {
	ctl, err := d.ChangeTransparency(name)
	if err != nil {
		return adjuster.Stats{}, 0, err
	}
	for i := range int(s.SliderEvents) {
		if ctx.Err() != nil {
			break
		}
		ctl.Move(i % 101)
		sleep(ctx, s.EventInterval)
	}
	if err = ctl.Close(ctx.Err() != nil, true); err != nil {
		return adjuster.Stats{}, 0, err
	}
	return ctl.Stats(), ctl.Value(), nil
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// registerTerminatingSignalHandler cancels the session on SIGINT or SIGTERM.
// The returned function unregisters the handler.
func registerTerminatingSignalHandler(cancel context.CancelFunc) (stop func()) {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		select {
		case sig := <-signalChan:
			logger.Infof("Received %v, stopping the session...", sig)
			cancel()
		case <-done:
		}
	}()

	return func() {
		signal.Stop(signalChan)
		close(done)
	}
}
