package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/harveysanders/hubmonitor/dashsim/render"
	"github.com/harveysanders/hubmonitor/dashsim/scenario"
	"github.com/harveysanders/hubmonitor/hubmonitor/panel"
)

// Command-specific flags
var (
	initForce   bool
	renderOut   string
	renderScale int
	showAll     bool
)

var errExists = errors.New("file already exists, use --force to overwrite")

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an example scenario",
	Long: `Write an example scenario file with three frames: a phone charging on
port 1, an idle port 2 and a reverse-fed port 3.

Examples:
  dashsim init
  dashsim init -s bench.yaml --force`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return initCommand(cmd, scenarioPath, initForce)
	},
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the last frame to a PNG",
	Long: `Play the scenario and write the final panel frame as a PNG, each panel
pixel enlarged to a scale x scale square.

Examples:
  dashsim render
  dashsim render -o frame.png --scale 6`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return renderCommand(cmd, renderOut, renderScale)
	},
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the panel in the terminal",
	Long: `Play the scenario and print the panel using truecolor half blocks,
two panel rows per terminal line.

Examples:
  dashsim show
  dashsim show --all`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return showCommand(cmd, showAll)
	},
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing scenario")

	renderCmd.Flags().StringVarP(&renderOut, "output", "o", "frame.png", "PNG file to write")
	renderCmd.Flags().IntVar(&renderScale, "scale", 4, "pixel scale factor")

	showCmd.Flags().BoolVar(&showAll, "all", false, "print every frame, not just the last")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(renderCmd)
	rootCmd.AddCommand(showCmd)
}

func initCommand(cmd *cobra.Command, path string, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
	if force {
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%s: %w", path, errExists)
		}
		return err
	}
	defer f.Close()

	if err := scenario.Template().WriteYAML(f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

func renderCommand(cmd *cobra.Command, out string, scale int) error {
	if scale < 1 {
		return fmt.Errorf("scale must be at least 1, got %d", scale)
	}
	pb, err := play(newLogger(cmd.ErrOrStderr()), nil)
	if err != nil {
		return err
	}

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := render.WritePNG(f, pb.canvas.Image(), scale); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", out, pb.summary())
	return nil
}

func showCommand(cmd *cobra.Command, all bool) error {
	w := cmd.OutOrStdout()
	var onFrame func(int, *panel.Canvas)
	if all {
		onFrame = func(n int, c *panel.Canvas) {
			fmt.Fprintf(w, "frame %d\n%s\n", n, render.HalfBlocks(c.Image()))
		}
	}
	pb, err := play(newLogger(cmd.ErrOrStderr()), onFrame)
	if err != nil {
		return err
	}
	if !all {
		fmt.Fprintln(w, render.HalfBlocks(pb.canvas.Image()))
	}
	fmt.Fprintln(w, pb.summary())
	return nil
}
