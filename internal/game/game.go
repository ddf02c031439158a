// Package game shows a flock in an ebiten window. The window is the render
// consumer: every Draw renders the flock into the shared pixel buffer and
// copies the buffer to the screen.
package game

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/lao-tseu-is-alive/go-flocking-geese/internal/control"
	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/flock"
	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/goose"
	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/pixbuf"
	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/simstate"
	golog "github.com/tochemey/goakt/v3/log"
)

// CursorAttractor is the attractor index following the mouse.
const CursorAttractor = 0

// Dispatcher sends a command line to the flock controller.
type Dispatcher interface {
	Dispatch(ctx context.Context, line string) (string, error)
}

type Game struct {
	ctx        context.Context
	flock      *flock.Flock
	dispatcher Dispatcher
	logger     golog.Logger

	width, height int
	flockSize     int
	buffer        *pixbuf.Buffer
	screenImg     *ebiten.Image

	// UI Controls
	panel      *panel
	params     goose.Params
	showSprite bool

	// Timing instrumentation
	updateAvg float64 // Rolling average in ms
	drawAvg   float64 // Rolling average in ms
}

// New creates a width x height window driver for f. Commands go through
// dispatcher; rendering talks to f directly.
func New(ctx context.Context, f *flock.Flock, dispatcher Dispatcher, width, height, flockSize int, logger golog.Logger) (*Game, error) {
	buffer := pixbuf.New(width, height)
	if err := f.SetPixelBuffer(buffer); err != nil {
		return nil, fmt.Errorf("failed to attach pixel buffer: %w", err)
	}
	g := &Game{
		ctx:        ctx,
		flock:      f,
		dispatcher: dispatcher,
		logger:     logger,
		width:      width,
		height:     height,
		flockSize:  flockSize,
		buffer:     buffer,
		screenImg:  ebiten.NewImage(width, height),
		params:     f.Params(),
		showSprite: f.HasGooseSprite(),
	}
	g.panel = g.newTuningPanel()
	return g, nil
}

func (g *Game) newTuningPanel() *panel {
	p := newPanel(float64(g.width)-230, 10, 220)
	p.addSlider("Max speed", &g.params.MaxSpeed, 0.5, 10)
	p.addSlider("Max force", &g.params.MaxForce, 0.01, 0.5)
	p.addSlider("Separation radius", &g.params.SeparationRadius, 4, 100)
	p.addSlider("Neighbor radius", &g.params.NeighborRadius, 8, 200)
	p.addSlider("Separation", &g.params.SeparationWeight, 0, 5)
	p.addSlider("Alignment", &g.params.AlignmentWeight, 0, 5)
	p.addSlider("Cohesion", &g.params.CohesionWeight, 0, 5)
	p.addSlider("Attraction", &g.params.AttractorWeight, 0, 5)
	p.addToggle("Goose sprite", &g.showSprite)
	p.addButton("Run / pause", g.toggleRun)
	p.addButton("Reset flock", g.resetFlock)
	return p
}

func (g *Game) toggleRun() {
	if g.flock.SimulationMode() == simstate.Paused {
		g.send(control.NewCommand(control.MethodRunSimulation))
	} else {
		g.send(control.NewCommand(control.MethodPauseSimulation))
	}
}

func (g *Game) resetFlock() {
	g.send(control.NewCommand(control.MethodResetFlock).With("size", fmt.Sprint(g.flockSize)))
}

// applyPanel pushes what the panel edited to the flock.
func (g *Game) applyPanel() {
	if g.params != g.flock.Params() {
		g.flock.SetParams(g.params)
	}
	if g.showSprite != g.flock.HasGooseSprite() {
		if g.showSprite {
			g.flock.SetGooseSprite(flock.GooseSprite())
		} else {
			g.flock.SetGooseSprite(nil)
		}
	}
}

func (g *Game) Update() error {
	start := time.Now()
	defer func() {
		g.updateAvg = g.updateAvg*0.95 + float64(time.Since(start).Microseconds())/1000.0*0.05
	}()

	mx, my := ebiten.CursorPosition()
	pressed := ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft)
	g.panel.update(mx, my, pressed)
	g.applyPanel()

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.toggleRun()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyR) {
		g.resetFlock()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		g.panel.visible = !g.panel.visible
	}
	if pressed && !g.panel.contains(mx, my) {
		at := g.toWorld(image.Pt(mx, my))
		g.send(control.NewCommand(control.MethodSetAttractor).
			With("index", fmt.Sprint(CursorAttractor)).
			With("x", fmt.Sprint(at.X)).
			With("y", fmt.Sprint(at.Y)))
	}
	return nil
}

func (g *Game) send(cmd control.Command) {
	reply, err := g.dispatcher.Dispatch(g.ctx, cmd.String())
	if err != nil {
		g.logger.Errorf("command %s failed: %v", cmd.Method, err)
		return
	}
	g.logger.Debugf("%s -> %s", cmd.Method, reply)
}

// toWorld maps a screen pixel to flock coordinates.
func (g *Game) toWorld(p image.Point) geometry.Vector2D {
	bounds := g.flock.Bounds()
	return geometry.NewVector(
		float64(p.X)*bounds.Width/float64(g.width),
		float64(p.Y)*bounds.Height/float64(g.height),
	)
}

func (g *Game) Draw(screen *ebiten.Image) {
	start := time.Now()
	defer func() {
		g.drawAvg = g.drawAvg*0.95 + float64(time.Since(start).Microseconds())/1000.0*0.05
	}()

	if err := g.flock.Render(); err != nil {
		g.logger.Errorf("render failed: %v", err)
		return
	}
	if err := g.buffer.WithPixels(func(img *image.RGBA) error {
		g.screenImg.WritePixels(img.Pix)
		return nil
	}); err != nil {
		g.logger.Errorf("copy to screen failed: %v", err)
		return
	}
	screen.DrawImage(g.screenImg, nil)
	g.panel.draw(screen)

	msg := fmt.Sprintf("FPS: %.2f\nTPS: %.2f\nTicks/s: %.1f\nRenders/s: %.1f\nGeese: %d\nMode: %s\n\nUpdate: %.2fms\nDraw:   %.2fms\n\n[space] run/pause  [r] reset  [tab] panel  [mouse] attract",
		ebiten.ActualFPS(),
		ebiten.ActualTPS(),
		g.flock.FrameRate(),
		g.flock.RenderRate(),
		g.flock.Size(),
		g.flock.SimulationMode(),
		g.updateAvg,
		g.drawAvg)
	ebitenutil.DebugPrint(screen, msg)
}

func (g *Game) Layout(w, h int) (int, int) { return g.width, g.height }

// Close detaches the window buffer from the flock and releases it.
func (g *Game) Close() {
	if err := g.flock.SetPixelBuffer(nil); err != nil {
		g.logger.Warnf("failed to detach pixel buffer: %v", err)
	}
	g.buffer.Release()
	g.screenImg.Deallocate()
}
