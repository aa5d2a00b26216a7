// Command snowfield renders the falling-glyph overlay headlessly. It is
// a development harness: it runs the CPU backend for a fixed number of
// frames and writes them out as PNGs, so tuning changes can be reviewed
// without embedding the engine in a host application.
package main

import (
	"fmt"
	"image/png"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/snowfield"
	"github.com/gogpu/snowfield/internal/atlas"
)

var (
	configFile string
	width      int
	height     int
	scale      float64
	frames     int
	fps        float64
	outDir     string
	seed       uint64
	background string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "snowfield",
		Short: "falling glyph overlay engine",
	}

	renderCmd := &cobra.Command{
		Use:   "render",
		Short: "run the simulation headlessly and write PNG frames",
		RunE:  renderFrames,
	}
	renderCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	renderCmd.Flags().IntVar(&width, "width", 800, "viewport width, px")
	renderCmd.Flags().IntVar(&height, "height", 600, "viewport height, px")
	renderCmd.Flags().Float64Var(&scale, "scale", 1.0, "device pixel scale")
	renderCmd.Flags().IntVar(&frames, "frames", 60, "number of frames to capture")
	renderCmd.Flags().Float64Var(&fps, "fps", 30, "frame rate")
	renderCmd.Flags().StringVar(&outDir, "out", "frames", "output directory")
	renderCmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 = time-based)")
	renderCmd.Flags().StringVar(&background, "bg", "", "page background hex color, e.g. #1a1a2e")
	renderCmd.Flags().BoolVar(&verbose, "v", false, "log engine events to stderr")

	atlasCmd := &cobra.Command{
		Use:   "atlas",
		Short: "build the glyph atlas and write it as a PNG",
		RunE:  dumpAtlas,
	}
	atlasCmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	atlasCmd.Flags().StringVar(&outDir, "out", "atlas.png", "output file")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "print the default configuration as yaml",
		RunE:  printConfig,
	}

	rootCmd.AddCommand(renderCmd, atlasCmd, configCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (snowfield.Config, error) {
	if configFile == "" {
		return snowfield.DefaultConfig(), nil
	}
	return snowfield.LoadConfig(configFile)
}

func renderFrames(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if verbose {
		snowfield.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	}

	opts := []snowfield.Option{
		snowfield.WithCPUBackend(),
		snowfield.WithViewport(width, height, scale),
		snowfield.WithFrameRate(fps),
	}
	if seed != 0 {
		opts = append(opts, snowfield.WithRandSource(rand.New(rand.NewPCG(seed, seed))))
	}

	s, err := snowfield.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer s.Stop()

	if background != "" {
		s.SetBackground(background)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	if err := s.Start(); err != nil {
		return err
	}

	fmt.Printf("rendering %d frames at %.0f fps...\n", frames, fps)
	start := time.Now()

	interval := time.Duration(float64(time.Second) / fps)
	for i := 0; i < frames; i++ {
		time.Sleep(interval)
		if err := saveFrame(s, i); err != nil {
			return err
		}
	}

	fmt.Printf("completed in %v\n", time.Since(start))
	fmt.Printf("frames written to %s\n", outDir)
	return nil
}

func saveFrame(s *snowfield.Session, index int) error {
	path := filepath.Join(outDir, fmt.Sprintf("frame_%04d.png", index))
	f, err := os.Create(path) //nolint:gosec // output path is user-provided
	if err != nil {
		return err
	}
	if err := png.Encode(f, s.Frame()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func dumpAtlas(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := atlas.Build(atlas.BuildParams{
		Letters:   cfg.SnowLetters,
		Sentences: cfg.SnowSentences,
	})
	if err != nil {
		return err
	}

	fmt.Printf("atlas: %d glyphs, %d sentences, %dx%d px\n",
		a.GlyphCount(), a.SentenceCount(),
		a.Pixmap().Width(), a.Pixmap().Height())
	return a.Pixmap().SavePNG(outDir)
}

func printConfig(cmd *cobra.Command, args []string) error {
	cfg := snowfield.DefaultConfig()
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}
