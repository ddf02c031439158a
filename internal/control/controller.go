package control

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/flock"
	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/geometry"
	"github.com/lao-tseu-is-alive/go-flocking-geese/pkg/simstate"
	"github.com/tochemey/goakt/v3/actor"
	"github.com/tochemey/goakt/v3/goaktpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ActorName is the name the controller is spawned under.
const ActorName = "flock-controller"

// DefaultAskTimeout bounds a Dispatch.
const DefaultAskTimeout = 2 * time.Second

// Controller is the actor owning every driver-side operation on a flock.
// It receives command lines as wrapperspb.StringValue and responds with
// the reply line.
type Controller struct {
	flock    *flock.Flock
	limits   Limits
	commands int
}

// Limits caps what a single command may ask for.
type Limits struct {
	MaxFlockSize  int
	MaxAttractors int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{MaxFlockSize: 10000, MaxAttractors: 64}
}

func NewController(f *flock.Flock, limits Limits) *Controller {
	return &Controller{flock: f, limits: limits}
}

func (c *Controller) PreStart(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Info("flock controller starting")
	return nil
}

func (c *Controller) Receive(ctx *actor.ReceiveContext) {
	switch msg := ctx.Message().(type) {
	case *goaktpb.PostStart:
		ctx.Logger().Infof("flock controller started with %d geese", c.flock.Size())

	case *wrapperspb.StringValue:
		c.commands++
		reply := c.Handle(msg.GetValue())
		if reply.Method == ReplyError {
			ctx.Logger().Warnf("command %q failed: %s", msg.GetValue(), reply.Params["message"])
		} else {
			ctx.Logger().Debugf("command %q: %s", msg.GetValue(), reply)
		}
		ctx.Response(wrapperspb.String(reply.String()))

	default:
		ctx.Unhandled()
	}
}

func (c *Controller) PostStop(ctx *actor.Context) error {
	ctx.ActorSystem().Logger().Infof("flock controller stopped after %d commands", c.commands)
	return nil
}

// Handle runs one command line against the flock and returns the reply.
func (c *Controller) Handle(line string) Command {
	cmd, err := ParseCommand(line)
	if err != nil {
		return Error(err)
	}
	reply, err := c.handle(cmd)
	if err != nil {
		return Error(err)
	}
	return reply
}

func (c *Controller) handle(cmd Command) (Command, error) {
	switch cmd.Method {
	case MethodResetFlock:
		size, err := cmd.Int("size")
		if err != nil {
			return Command{}, err
		}
		if size > c.limits.MaxFlockSize {
			return Command{}, fmt.Errorf("%w: size %d exceeds %d", ErrOutOfRange, size, c.limits.MaxFlockSize)
		}
		at := c.flock.Bounds().Center()
		if cmd.Has("x") || cmd.Has("y") {
			if at, err = point(cmd, "x", "y"); err != nil {
				return Command{}, err
			}
		}
		if err := c.flock.ResetFlock(size, at); err != nil {
			return Command{}, err
		}

	case MethodRunSimulation:
		c.flock.StartSimulation()
		c.flock.SetSimulationMode(simstate.Running)

	case MethodPauseSimulation:
		c.flock.SetSimulationMode(simstate.Paused)

	case MethodSetAttractor:
		index, err := cmd.Int("index")
		if err != nil {
			return Command{}, err
		}
		if index < 0 || index >= c.limits.MaxAttractors {
			return Command{}, fmt.Errorf("%w: attractor index %d not in [0, %d)", ErrOutOfRange, index, c.limits.MaxAttractors)
		}
		at, err := point(cmd, "x", "y")
		if err != nil {
			return Command{}, err
		}
		c.flock.SetAttractorAtIndex(at, index)

	case MethodResize:
		size, err := point(cmd, "width", "height")
		if err != nil {
			return Command{}, err
		}
		bounds := geometry.NewSize(size.X, size.Y)
		if bounds.Empty() {
			return Command{}, fmt.Errorf("control: cannot resize to %s", bounds)
		}
		c.flock.Resize(bounds)

	case MethodGetSimulationInfo:
		return Info(c.flock), nil

	default:
		return Command{}, fmt.Errorf("%w %q", ErrUnknownMethod, cmd.Method)
	}
	return OK(cmd.Method), nil
}

func point(cmd Command, xKey, yKey string) (geometry.Vector2D, error) {
	x, err := cmd.Float(xKey)
	if err != nil {
		return geometry.Vector2D{}, err
	}
	y, err := cmd.Float(yKey)
	if err != nil {
		return geometry.Vector2D{}, err
	}
	return geometry.NewVector(x, y), nil
}

// Info describes the state of f as a setSimulationInfo reply.
func Info(f *flock.Flock) Command {
	return NewCommand(ReplySetSimulationInfo).
		With("frameRate", strconv.FormatFloat(f.FrameRate(), 'f', 1, 64)).
		With("renderRate", strconv.FormatFloat(f.RenderRate(), 'f', 1, 64)).
		With("size", strconv.Itoa(f.Size())).
		With("mode", f.SimulationMode().String()).
		With("running", strconv.FormatBool(f.IsSimulationRunning()))
}

// Client sends command lines to a spawned Controller.
type Client struct {
	pid     *actor.PID
	timeout time.Duration
}

// Spawn starts a Controller for f in system.
func Spawn(ctx context.Context, system actor.ActorSystem, f *flock.Flock, limits Limits, timeout time.Duration) (*Client, error) {
	pid, err := system.Spawn(ctx, ActorName, NewController(f, limits))
	if err != nil {
		return nil, fmt.Errorf("failed to spawn %s: %w", ActorName, err)
	}
	if timeout <= 0 {
		timeout = DefaultAskTimeout
	}
	return &Client{pid: pid, timeout: timeout}, nil
}

// Dispatch sends line to the controller and returns its reply line. A
// failing command is not an error: it comes back as an error reply.
func (c *Client) Dispatch(ctx context.Context, line string) (string, error) {
	resp, err := actor.Ask(ctx, c.pid, wrapperspb.String(line), c.timeout)
	if err != nil {
		return "", fmt.Errorf("failed to ask %s: %w", ActorName, err)
	}
	reply, ok := resp.(*wrapperspb.StringValue)
	if !ok {
		return "", fmt.Errorf("unexpected reply %T from %s", resp, ActorName)
	}
	return reply.GetValue(), nil
}
