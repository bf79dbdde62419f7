// Package worker implements the bounded-concurrency pool that pulls
// waiting jobs off the queue, drives them through the sandbox, and
// reports completion or failure back to the queue.
package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iamjoytank/docker-code-runner/internal/apierr"
	"github.com/iamjoytank/docker-code-runner/internal/catalog"
	"github.com/iamjoytank/docker-code-runner/internal/logging"
	"github.com/iamjoytank/docker-code-runner/internal/queue"
	"github.com/iamjoytank/docker-code-runner/internal/sandbox"
	"github.com/iamjoytank/docker-code-runner/internal/workspace"
	"github.com/iamjoytank/docker-code-runner/pkg/models"
)

// Config configures the Pool.
type Config struct {
	// Concurrency bounds the number of jobs in the "active" state at
	// once (spec.md §5).
	Concurrency int

	// PollTimeout is how long a single Dequeue call blocks waiting for
	// the next job before the dispatch loop re-checks ctx.
	PollTimeout time.Duration

	// DrainTimeout bounds how long Run, once its ctx is cancelled, waits
	// for in-flight jobs to finish before returning, matching §5's "cooperative... allowed to
	// complete within the drain window."
	DrainTimeout time.Duration
}

// DefaultConfig returns the pool defaults named in spec.md §6.
func DefaultConfig() Config {
	return Config{
		Concurrency:  5,
		PollTimeout:  2 * time.Second,
		DrainTimeout: 15 * time.Second,
	}
}

// Pool is the bounded-concurrency job processor (C5).
type Pool struct {
	cfg Config
	cat *catalog.Catalog
	ws  *workspace.Manager
	q   *queue.Queue
	drv *sandbox.Driver

	sem chan struct{}
}

// New returns a Pool wired to its collaborators.
func New(cfg Config, cat *catalog.Catalog, ws *workspace.Manager, q *queue.Queue, drv *sandbox.Driver) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	return &Pool{
		cfg: cfg,
		cat: cat,
		ws:  ws,
		q:   q,
		drv: drv,
		sem: make(chan struct{}, cfg.Concurrency),
	}
}

// Run drives the dispatch loop until ctx is cancelled, then drains
// in-flight jobs bounded by cfg.DrainTimeout before returning.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(context.Background())

	for {
		select {
		case <-ctx.Done():
			logging.S().Infow("worker: dispatch loop stopping, draining in-flight jobs")
			drainCtx, cancel := context.WithTimeout(context.Background(), p.cfg.DrainTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() { done <- g.Wait() }()

			select {
			case err := <-done:
				return err
			case <-drainCtx.Done():
				logging.S().Warnw("worker: drain timeout exceeded, returning with jobs still in-flight")
				return nil
			}

		default:
		}

		select {
		case p.sem <- struct{}{}:
		case <-ctx.Done():
			continue
		}

		job, err := p.q.Dequeue(ctx, p.cfg.PollTimeout)
		if err != nil {
			<-p.sem
			if ctx.Err() != nil {
				continue // loop will hit the Done case above
			}
			logging.S().Errorw("worker: dequeue failed", "error", err)
			continue
		}
		if job == nil {
			<-p.sem
			continue // PollTimeout elapsed with nothing waiting
		}

		job := job
		g.Go(func() error {
			defer func() { <-p.sem }()
			p.process(gctx, job)
			return nil
		})
	}
}

// process runs one job end to end: resolve its language, materialize
// its artifacts, invoke the sandbox, classify the result, report back
// to the queue, and clean up on success (spec.md §4.4).
func (p *Pool) process(ctx context.Context, job *models.Job) {
	logger := logging.S().With("jobId", job.ID, "language", job.Language)

	descriptor, err := p.cat.Resolve(job.Language)
	if err != nil {
		p.fail(ctx, job.ID, fmt.Sprintf("%v", err), logger)
		return
	}

	artifacts, err := p.ws.Prepare(descriptor, job.Code, job.ID)
	if err != nil {
		p.fail(ctx, job.ID, fmt.Sprintf("%v: %v", apierr.ErrWorkspace, err), logger)
		return
	}

	binding := catalog.Binding{
		File:   sandbox.ContainerPath(baseName(artifacts.SourcePath)),
		Output: sandbox.ContainerPath(baseName(artifacts.BinaryPath)),
	}
	if descriptor.Tag == "java" {
		binding.ClassName = className(artifacts.ClassFile)
	}
	command := descriptor.Expand(binding)

	limits := sandbox.Limits{
		MemoryMB:  descriptor.MemoryLimitMB,
		CPUs:      descriptor.CPULimit,
		PidsLimit: descriptor.PidsLimit,
	}

	result, runErr := p.drv.Run(ctx, descriptor.Image, command, artifacts.Dir, limits)
	out := classify(descriptor, result, runErr)

	if out.success {
		if err := p.q.Complete(ctx, job.ID, out.output); err != nil {
			logger.Errorw("worker: failed to record completion", "error", err)
		}
		p.ws.Cleanup(artifacts)
		if result.Stderr != "" {
			logger.Infow("worker: job wrote to stderr", "stderr", result.Stderr)
		}
		logger.Infow("worker: job completed", "durationMs", result.Duration.Milliseconds())
		return
	}

	if err := p.q.Fail(ctx, job.ID, out.reason); err != nil {
		logger.Errorw("worker: failed to record failure", "error", err)
	}
	// Failed-job artifacts are retained on disk for operator
	// post-mortem (spec.md §9); Cleanup is deliberately not called.
	logger.Warnw("worker: job failed", "reason", out.reason)
}

func (p *Pool) fail(ctx context.Context, jobID, reason string, logger *zap.SugaredLogger) {
	if err := p.q.Fail(ctx, jobID, reason); err != nil {
		logger.Errorw("worker: failed to record failure", "error", err)
	}
}

func baseName(path string) string {
	if path == "" {
		return ""
	}
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func className(classFile string) string {
	name := baseName(classFile)
	return name[:len(name)-len(".class")]
}
