package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spaghettifunk/framegraph/engine/config"
	"github.com/spaghettifunk/framegraph/engine/renderer/graph"
	"github.com/spaghettifunk/framegraph/engine/renderer/graphfile"
	"github.com/spaghettifunk/framegraph/engine/renderer/headless"
	"github.com/spaghettifunk/framegraph/engine/renderer/metadata"
	"github.com/spaghettifunk/framegraph/engine/renderer/views"
)

type planOptions struct {
	graphFile string
	views     string
	width     uint32
	height    uint32
}

func newPlanCommand(root *rootOptions) *cobra.Command {
	opts := &planOptions{}
	cmd := &cobra.Command{
		Use:   "plan [graph.toml]",
		Short: "Compile a graph and print its barrier plan",
		Long: "Compile a graph on the headless device and print the execution order,\n" +
			"the barriers between passes and the renderpasses it needs. Without a\n" +
			"graph file the built-in views are compiled.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.graphFile = args[0]
			}
			c, err := root.loadConfig()
			if err != nil {
				return err
			}
			return runPlan(cmd, c, opts)
		},
	}
	cmd.Flags().StringVar(&opts.views, "views", "forward", "Built-in views to compile without a graph file. One of: (forward | depth-fxaa)")
	cmd.Flags().Uint32Var(&opts.width, "width", 0, "Graph width, defaults to the configured window width")
	cmd.Flags().Uint32Var(&opts.height, "height", 0, "Graph height, defaults to the configured window height")
	return cmd
}

func runPlan(cmd *cobra.Command, c *config.Config, opts *planOptions) error {
	width, height := c.Window.Width, c.Window.Height
	var f *graphfile.File
	if opts.graphFile != "" {
		var err error
		if f, err = graphfile.Load(opts.graphFile); err != nil {
			return err
		}
		if f.Width > 0 && f.Height > 0 {
			width, height = f.Width, f.Height
		}
	}
	if opts.width > 0 {
		width = opts.width
	}
	if opts.height > 0 {
		height = opts.height
	}

	dev := headless.NewDevice()
	b := graph.NewBuilder[views.Frame](dev, c.GraphConfig(), width, height)
	shaders := views.BuiltinShaders()
	name := opts.views
	switch {
	case f != nil:
		name = f.Name
		if _, err := graphfile.Apply(f, b, graphfile.Options[views.Frame]{Shaders: placeholderShader(shaders)}); err != nil {
			return err
		}
	case opts.views == "forward":
		if _, err := views.Forward(b, shaders); err != nil {
			return err
		}
	case opts.views == "depth-fxaa":
		if _, err := views.DepthToFXAA(b, shaders); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown views %q", opts.views)
	}

	g, err := b.Build()
	if err != nil {
		return err
	}
	defer g.Destroy()

	out := cmd.OutOrStdout()
	printKV(out, "graph", "%s (%s)", name, g.ID())
	printKV(out, "images", "%d", g.Resources().ImageCount())
	printKV(out, "buffers", "%d", g.Resources().BufferCount())
	printKV(out, "renderpasses", "%d", dev.Live(headless.KindRenderpass))
	fmt.Fprintln(out)
	fmt.Fprint(out, g.Plan().String())
	return nil
}

// placeholderShader resolves the shaders of a graph file for planning. The
// plan never records, so programs the views do not know are stubs.
func placeholderShader(shaders *views.Shaders) func(string) *metadata.ShaderProgram {
	return func(name string) *metadata.ShaderProgram {
		if p := shaders.Get(name); p != nil {
			return p
		}
		return &metadata.ShaderProgram{Name: name}
	}
}
