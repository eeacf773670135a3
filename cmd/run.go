package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spaghettifunk/framegraph/engine"
	"github.com/spaghettifunk/framegraph/engine/core"
	"github.com/spaghettifunk/framegraph/engine/renderer"
	"github.com/spaghettifunk/framegraph/engine/renderer/headless"
	"github.com/spaghettifunk/framegraph/engine/renderer/vulkan"
	"github.com/spaghettifunk/framegraph/testbed"
)

type runOptions struct {
	backend    string
	frames     uint64
	graphFile  string
	shaderDir  string
	validation bool
	watch      bool
}

func newRunCommand(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the testbed frame loop",
		Long: "Run the testbed game, or a graph file, for a number of frames and\n" +
			"print the frame statistics. Interrupting the command finishes the\n" +
			"frames in flight before exiting.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runEngine(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.backend, "backend", "b", "headless", "Device backend. One of: (headless | vulkan)")
	cmd.Flags().Uint64VarP(&opts.frames, "frames", "n", 120, "Frames to run, 0 runs until interrupted")
	cmd.Flags().StringVar(&opts.graphFile, "graph", "", "TOML graph description, overrides the configuration")
	cmd.Flags().StringVar(&opts.shaderDir, "shaders", "", "Directory of .shadercfg files, overrides the configuration")
	cmd.Flags().BoolVar(&opts.validation, "validation", false, "Enable the Vulkan validation layers")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Reload the configuration file when it changes")
	return cmd
}

type shutdowner interface {
	Shutdown()
}

func newDevice(opts *runOptions, ac *engine.ApplicationConfig) (renderer.Device, error) {
	switch opts.backend {
	case "headless":
		return headless.NewDevice(headless.WithMultithreading()), nil
	case "vulkan":
		if ac.ShaderDir == "" {
			return nil, fmt.Errorf("the vulkan backend needs SPIR-V shaders, set --shaders")
		}
		dev, err := vulkan.New(vulkan.Config{
			ApplicationName: ac.Name,
			FramesInFlight:  ac.Graph.FramesInFlight,
			Validation:      opts.validation,
			Multithreaded:   true,
			DiscreteGPU:     true,
		})
		if err != nil {
			return nil, err
		}
		return dev, nil
	}
	return nil, fmt.Errorf("unknown backend %q", opts.backend)
}

func runEngine(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	c, err := root.loadConfig()
	if err != nil {
		return err
	}
	path := ""
	if opts.watch {
		path = root.configPath
	}
	ac := engine.ApplicationConfigFrom(c, path)
	ac.MaxFrames = opts.frames
	if opts.graphFile != "" {
		ac.GraphFile = opts.graphFile
	}
	if opts.shaderDir != "" {
		ac.ShaderDir = opts.shaderDir
	}

	dev, err := newDevice(opts, ac)
	if err != nil {
		return err
	}
	if s, ok := dev.(shutdowner); ok {
		defer s.Shutdown()
	}

	tb := testbed.NewTestGame(ac)
	e, err := engine.New(tb.Game, dev)
	if err != nil {
		return err
	}
	tb.Attach(e)
	if err := e.Initialize(); err != nil {
		_ = e.Shutdown()
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()
	runErr := e.Run(ctx)
	if runErr != nil {
		core.LogError("engine stopped: %v", runErr)
	}

	out := cmd.OutOrStdout()
	m := e.Metrics()
	plan := e.Graph().Plan()
	printKV(out, "backend", "%s", opts.backend)
	printKV(out, "graph", "%s, %d passes, %d barriers", e.Graph().ID(), len(plan.Steps), plan.BarrierCount())
	printKV(out, "frames", "%d", e.Frames())
	printKV(out, "frame time", "%.3fms avg, %.1f fps", m.FrameTime(), m.FPSValue())
	printKV(out, "pipelines", "%d", e.Graph().Pipelines().Len())
	printKV(out, "reloads", "%d shaders", e.Shaders().Reloaded())

	if err := e.Shutdown(); err != nil {
		return err
	}
	if h, ok := dev.(*headless.Device); ok {
		if leaks := h.Leaks(); len(leaks) > 0 {
			return fmt.Errorf("leaked device objects: %v", leaks)
		}
	}
	return runErr
}
