// Package gateway issues creation requests to the world service without
// blocking the game loop and hands each outcome back to the loop, paired with
// the request that produced it.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/turtlecatch/spawner/internal/data"
	"github.com/turtlecatch/spawner/internal/spawn"
	"github.com/turtlecatch/spawner/internal/world"
	"github.com/turtlecatch/spawner/internal/worldsvc"
	"go.uber.org/zap"
)

// ErrRejected means the world answered with an empty name.
var ErrRejected = errors.New("creation rejected by world service")

// WorldService is the part of the world client the gateway needs.
type WorldService interface {
	WaitReady(ctx context.Context) error
	Spawn(ctx context.Context, req worldsvc.SpawnRequest) (worldsvc.SpawnResponse, error)
	SetPen(ctx context.Context, name string, pen data.PenStyle) error
}

// Committer receives confirmed entities. Implemented by *world.Registry.
type Committer interface {
	AddAlive(e world.Entity) bool
}

// Completion is the outcome of one creation request together with the
// request context it answers.
type Completion struct {
	Request  spawn.Request
	Response worldsvc.SpawnResponse
	Err      error
}

type Options struct {
	RequestTimeout time.Duration
	ResultBuffer   int
}

// Gateway owns the in-flight creation requests.
type Gateway struct {
	svc     WorldService
	commit  Committer
	pen     data.PenStyle
	timeout time.Duration
	log     *zap.Logger

	results chan Completion
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(svc WorldService, commit Committer, pen data.PenStyle, opts Options, log *zap.Logger) *Gateway {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}
	if opts.ResultBuffer <= 0 {
		opts.ResultBuffer = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Gateway{
		svc:     svc,
		commit:  commit,
		pen:     pen,
		timeout: opts.RequestTimeout,
		log:     log,
		results: make(chan Completion, opts.ResultBuffer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// RequestCreate sends a creation request and returns at once. The outcome is
// delivered on Results.
func (g *Gateway) RequestCreate(req spawn.Request) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		c := Completion{Request: req}
		c.Response, c.Err = g.create(req)
		select {
		case g.results <- c:
		case <-g.ctx.Done():
		}
	}()
}

func (g *Gateway) create(req spawn.Request) (worldsvc.SpawnResponse, error) {
	if err := g.svc.WaitReady(g.ctx); err != nil {
		return worldsvc.SpawnResponse{}, fmt.Errorf("wait for world service: %w", err)
	}
	ctx, cancel := context.WithTimeout(g.ctx, g.timeout)
	defer cancel()
	return g.svc.Spawn(ctx, worldsvc.SpawnRequest{X: req.X, Y: req.Y, Theta: req.Theta, Name: req.Name})
}

// Results is drained by the game loop.
func (g *Gateway) Results() <-chan Completion {
	return g.results
}

// HideTrack asks the world to lift the pen of name. Nothing waits for the
// outcome; failures are only logged.
func (g *Gateway) HideTrack(name string) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ctx, cancel := context.WithTimeout(g.ctx, g.timeout)
		defer cancel()
		if err := g.svc.SetPen(ctx, name, g.pen); err != nil {
			g.log.Debug("hide track failed", zap.String("name", name), zap.Error(err))
		}
	}()
}

// Complete applies one completion on the game loop. It reports whether an
// entity was committed. A failed or rejected creation is logged and dropped;
// the next scheduled spawn supersedes it.
func (g *Gateway) Complete(c Completion) (committed bool) {
	defer func() {
		if rec := recover(); rec != nil {
			g.log.Error("completion panic recovered",
				zap.String("name", c.Request.Name),
				zap.Any("panic", rec),
			)
			committed = false
		}
	}()

	if c.Err != nil {
		g.log.Error("service call failed", zap.String("name", c.Request.Name), zap.Error(c.Err))
		return false
	}
	if c.Response.Name == "" {
		g.log.Error("service call failed", zap.String("name", c.Request.Name), zap.Error(ErrRejected))
		return false
	}

	g.log.Info("turtle spawned", zap.String("name", c.Response.Name))
	e := world.Entity{
		Name:  c.Response.Name,
		X:     c.Request.X,
		Y:     c.Request.Y,
		Theta: c.Request.Theta,
	}
	g.HideTrack(e.Name)
	return g.commit.AddAlive(e)
}

// Drain applies every completion already waiting, without blocking, and
// returns how many entities were committed.
func (g *Gateway) Drain() int {
	n := 0
	for {
		select {
		case c := <-g.results:
			if g.Complete(c) {
				n++
			}
		default:
			return n
		}
	}
}

// Close abandons in-flight requests and waits for their goroutines.
func (g *Gateway) Close() {
	g.cancel()
	g.wg.Wait()
}
