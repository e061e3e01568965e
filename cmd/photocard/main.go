package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/photocard"
	"github.com/menta2k/photocard/internal/api"
	"github.com/menta2k/photocard/internal/config"
	plog "github.com/menta2k/photocard/internal/log"
	"github.com/menta2k/photocard/internal/utils"
	"github.com/menta2k/photocard/pkg/layout"
	"github.com/menta2k/photocard/pkg/processing"
	"github.com/menta2k/photocard/pkg/raster"
	"github.com/menta2k/photocard/pkg/types"
)

const usage = `usage: photocard <command> [flags]

commands:
  normalize  fix orientation and bound the size of photos
  crop       crop a photo to the 3:4 card frame
  render     compose a card from a photo, a name and a title
  serve      run the HTTP API
  version    print the version

run "photocard <command> -h" for the flags of a command`

// common holds the flags every command accepts
type common struct {
	configFile string
	envFile    string
	logLevel   string
	verbose    bool
}

func (c *common) register(fs *flag.FlagSet) {
	fs.StringVar(&c.configFile, "config", "", "JSON config file (default: none, "+config.GetConfigPath()+" if present)")
	fs.StringVar(&c.envFile, "env", ".env", "dotenv file with PHOTOCARD_* overrides")
	fs.StringVar(&c.logLevel, "log-level", "", "log level override: trace|debug|info|warn|error")
	fs.BoolVar(&c.verbose, "v", false, "shorthand for -log-level debug")
}

// setup loads the configuration and builds the logger and the studio
func (c *common) setup() (*config.Config, *logrus.Logger, *photocard.Studio, error) {
	file := c.configFile
	if file == "" && utils.FileExists(config.GetConfigPath()) {
		file = config.GetConfigPath()
	}
	cfg, err := config.Load(file, c.envFile)
	if err != nil {
		return nil, nil, nil, err
	}
	if c.logLevel != "" {
		cfg.Log.Level = c.logLevel
	}
	if c.verbose {
		cfg.Log.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}

	logger, err := plog.New(plog.Options{
		Level:    cfg.Log.Level,
		File:     cfg.Log.File,
		NoColors: cfg.Log.NoColors,
		Caller:   cfg.Log.Level == "debug" || cfg.Log.Level == "trace",
	})
	if err != nil {
		return nil, nil, nil, err
	}

	studio, err := photocard.NewFromConfig(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, studio, nil
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "normalize":
		err = runNormalize(ctx, args)
	case "crop":
		err = runCrop(ctx, args)
	case "render":
		err = runRender(ctx, args)
	case "serve":
		err = runServe(ctx, args)
	case "version":
		fmt.Println("photocard", photocard.GetVersion())
	case "-h", "--help", "help":
		fmt.Println(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", cmd, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runNormalize(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("normalize", flag.ExitOnError)
	var c common
	c.register(fs)
	in := fs.String("in", "", "input photo, directory of photos, or http(s) URL")
	outDir := fs.String("out", "out", "output directory")
	fs.Parse(args)
	if *in == "" {
		return errors.New("normalize: -in is required")
	}

	cfg, logger, studio, err := c.setup()
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(*outDir); err != nil {
		return err
	}
	format, _ := raster.ParseFormat(cfg.Normalizer.Format)

	inputs := []string{*in}
	if !processing.IsURL(*in) && utils.DirExists(*in) {
		if inputs, err = utils.ListPhotos(*in); err != nil {
			return err
		}
	}

	loader := processing.NewLoader(nil)
	failed := 0
	for _, src := range inputs {
		data, err := loader.Load(ctx, src)
		if err == nil {
			var res types.NormalizationResult
			if res, err = studio.Normalizer().Normalize(ctx, data); err == nil {
				dst := utils.OutputPath(localName(src), *outDir, "_norm", format)
				if err = os.WriteFile(dst, res.Data, 0644); err == nil {
					logger.WithFields(logrus.Fields{
						"in":        src,
						"out":       dst,
						"size":      fmt.Sprintf("%dx%d", res.Width, res.Height),
						"bytes":     utils.FormatFileSize(int64(len(res.Data))),
						"too_small": res.TooSmall,
					}).Info("normalized")
				}
			}
		}
		if err != nil {
			failed++
			logger.WithError(err).WithField("in", src).Error("normalize failed")
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d photos failed", failed, len(inputs))
	}
	return nil
}

func runCrop(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("crop", flag.ExitOnError)
	var c common
	c.register(fs)
	in := fs.String("in", "", "input photo or http(s) URL")
	outDir := fs.String("out", "out", "output directory")
	zoom := fs.Float64("zoom", 1, "zoom factor applied to the largest 3:4 frame")
	region := fs.String("region", "", "explicit region x,y,w,h in normalized photo pixels")
	rotate := fs.Float64("rotate", 0, "rotation in degrees applied around the photo center")
	debug := fs.Bool("debug", false, "also write an overlay of the crop decision")
	fs.Parse(args)
	if *in == "" {
		return errors.New("crop: -in is required")
	}

	_, logger, studio, err := c.setup()
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(*outDir); err != nil {
		return err
	}

	data, err := processing.NewLoader(nil).Load(ctx, *in)
	if err != nil {
		return err
	}
	card := studio.CreateCard()
	if _, _, err := studio.Upload(ctx, card.ID, types.SourceRef{Filename: filepath.Base(*in)}, data); err != nil {
		return err
	}
	img, err := studio.Photo(card.ID)
	if err != nil {
		return err
	}

	session, err := studio.BeginCrop(ctx, card.ID)
	if err != nil {
		return err
	}
	fx, fy := session.Center()
	b := img.Bounds()
	fx, fy = fx/float64(b.Dx()), fy/float64(b.Dy())

	var r types.CropRegion
	if *region != "" {
		if r, err = parseRegion(*region); err != nil {
			return err
		}
	} else {
		session.SetZoom(*zoom)
		session.CenterOn(fx, fy)
		r = session.Complete()
	}

	res, err := studio.Cropper().Crop(img, r, *rotate)
	if err != nil {
		return err
	}
	dst := utils.OutputPath(localName(*in), *outDir, "_crop", res.Format)
	if err := os.WriteFile(dst, res.Data, 0644); err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"out":    dst,
		"region": fmt.Sprintf("%d,%d,%d,%d", r.X, r.Y, r.Width, r.Height),
		"zoom":   r.Zoom,
		"focus":  fmt.Sprintf("%.3f,%.3f", fx, fy),
	}).Info("cropped")

	if *debug {
		overlay := processing.Overlay(img, r, fx, fy)
		dbg := utils.OutputPath(localName(*in), *outDir, "_crop_debug", raster.PNG)
		data, err := raster.EncodeBytes(overlay, raster.PNG, raster.EncodeOptions{})
		if err == nil {
			err = os.WriteFile(dbg, data, 0644)
		}
		if err != nil {
			logger.WithError(err).Warn("debug overlay save failed")
		} else {
			logger.WithField("out", dbg).Info("wrote debug overlay")
		}
	}

	js, _ := json.MarshalIndent(r, "", "  ")
	fmt.Println(string(js))
	return nil
}

func runRender(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("render", flag.ExitOnError)
	var c common
	c.register(fs)
	in := fs.String("in", "", "input photo or http(s) URL")
	out := fs.String("out", "", "output file (default: <name>.<format> in the current directory)")
	name := fs.String("name", "", "name label (required)")
	title := fs.String("title", "", "title label")
	template := fs.String("template", "", "card template image (overrides the config)")
	layoutFile := fs.String("layout", "", "JSON layout with percent positions, as returned by the API")
	autoCrop := fs.Bool("crop", true, "crop the photo to the 3:4 frame around its subject")
	zoom := fs.Float64("zoom", 1, "crop zoom factor")
	width := fs.Int("width", 0, "layout width (default from config)")
	height := fs.Int("height", 0, "layout height (default from config)")
	scale := fs.Float64("scale", 0, "pixel density (default from config)")
	formatName := fs.String("format", "", "output format jpeg|png|webp (default from config)")
	fs.Parse(args)
	if *in == "" || *name == "" {
		return errors.New("render: -in and -name are required")
	}

	_, logger, studio, err := c.setup()
	if err != nil {
		return err
	}
	if *template != "" {
		tpl, err := processing.NewLoader(nil).Load(ctx, *template)
		if err != nil {
			return err
		}
		if err := studio.Renderer().LoadTemplate(tpl); err != nil {
			return err
		}
	}

	data, err := processing.NewLoader(nil).Load(ctx, *in)
	if err != nil {
		return err
	}
	card := studio.CreateCard()
	if _, _, err := studio.Upload(ctx, card.ID, types.SourceRef{Filename: filepath.Base(*in)}, data); err != nil {
		return err
	}
	if *autoCrop {
		if _, err := studio.AutoCrop(ctx, card.ID, *zoom); err != nil {
			return err
		}
	}
	store := studio.Store()
	store.SetName(card.ID, *name)
	store.SetTitle(card.ID, *title)
	if *layoutFile != "" {
		if err := applyLayout(store, card.ID, *layoutFile); err != nil {
			return err
		}
	}

	vp := studio.Viewport()
	if *width > 0 {
		vp.Width = *width
	}
	if *height > 0 {
		vp.Height = *height
	}
	if *scale > 0 {
		vp.Scale = *scale
	}
	format := studio.Format()
	if *formatName != "" {
		if format, err = raster.ParseFormat(*formatName); err != nil {
			return err
		}
	}

	img, err := studio.Export(card.ID, vp, format)
	if err != nil {
		return err
	}
	dst := *out
	if dst == "" {
		dst = utils.ExportFilename(*name, format)
	}
	if err := utils.EnsureDir(filepath.Dir(dst)); err != nil {
		return err
	}
	if err := os.WriteFile(dst, img, 0644); err != nil {
		return err
	}

	w, h := vp.Pixels()
	logger.WithFields(logrus.Fields{
		"out":   dst,
		"size":  fmt.Sprintf("%dx%d", w, h),
		"bytes": utils.FormatFileSize(int64(len(img))),
	}).Info("rendered card")
	return nil
}

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	var c common
	c.register(fs)
	addr := fs.String("addr", "", "listen address (overrides the config)")
	fs.Parse(args)

	cfg, logger, studio, err := c.setup()
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	events := studio.Store().Subscribe(64)
	go func() {
		for ev := range events {
			logger.WithFields(logrus.Fields{"card": ev.CardID, "kind": ev.Kind}).Debug("card changed")
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(studio, cfg.Server, logger.WithField("component", "api")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.Server.Addr).Info("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// localName gives URL inputs a file name to derive output names from
func localName(src string) string {
	if !processing.IsURL(src) {
		return src
	}
	name := filepath.Base(strings.SplitN(src, "?", 2)[0])
	if name == "" || name == "." || name == "/" {
		return "download"
	}
	return name
}

func parseRegion(s string) (types.CropRegion, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return types.CropRegion{}, fmt.Errorf("region %q: want x,y,w,h", s)
	}
	var v [4]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return types.CropRegion{}, fmt.Errorf("region %q: %w", s, err)
		}
		v[i] = n
	}
	return types.CropRegion{X: v[0], Y: v[1], Width: v[2], Height: v[3], Zoom: 1}, nil
}

// applyLayout copies placement and style fields from a saved layout
func applyLayout(store *layout.Store, id, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	l := layout.DefaultLayout()
	if err := json.Unmarshal(data, &l); err != nil {
		return fmt.Errorf("failed to parse layout: %w", err)
	}

	if _, err := store.UpdatePhoto(id, layout.PhotoUpdate{Position: &l.PhotoPosition, Size: &l.PhotoSize}); err != nil {
		return err
	}
	for _, t := range []struct {
		el    types.ElementType
		pos   types.Point
		style types.TextStyle
	}{
		{types.ElementName, l.NamePosition, l.NameStyle},
		{types.ElementTitle, l.TitlePosition, l.TitleStyle},
	} {
		patch := types.StylePatch{FontSize: &t.style.FontSize, Color: &t.style.Color, Weight: &t.style.Weight}
		if _, err := store.UpdateText(t.el, id, layout.TextUpdate{Position: &t.pos, Style: &patch}); err != nil {
			return err
		}
	}
	return nil
}
