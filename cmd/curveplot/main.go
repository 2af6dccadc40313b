// cmd/curveplot/main.go renders the response curves of an aircraft
// configuration to PNG files for tuning.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/opd-ai/go-dogfight/pkg/config"
	"github.com/opd-ai/go-dogfight/pkg/curve"
	"github.com/opd-ai/go-dogfight/pkg/flight"
	"github.com/opd-ai/go-dogfight/pkg/logging"
)

const samples = 181

func main() {
	logger := logging.NewLogger()
	ctx := context.Background()

	preset := flag.String("preset", "jet", "Aircraft preset to plot")
	configPath := flag.String("config", "", "Configuration file; plots -aircraft from it instead of a preset")
	aircraft := flag.String("aircraft", "", "Aircraft name in the configuration file")
	outDir := flag.String("out", "curves", "Output directory")
	flag.Parse()

	cfg, err := selectAircraft(*preset, *configPath, *aircraft)
	if err != nil {
		logger.Error(ctx, "No aircraft to plot", err, "preset", *preset, "config_path", *configPath)
		fmt.Fprintf(os.Stderr, "available presets: %v\n", config.ListAircraftPresets())
		os.Exit(1)
	}

	files, err := plotAircraft(cfg.Flight, cfg.Name, *outDir)
	if err != nil {
		logger.Error(ctx, "Failed to plot curves", err, "aircraft", cfg.Name)
		os.Exit(1)
	}
	for _, f := range files {
		logger.Info(ctx, "Wrote plot", "file", f)
	}
}

func selectAircraft(preset, configPath, name string) (*config.AircraftConfig, error) {
	if configPath == "" {
		cfg := config.GetAircraftPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q", preset)
		}
		return cfg, nil
	}

	simConfig, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	for i := range simConfig.Aircraft {
		if name == "" || simConfig.Aircraft[i].Name == name {
			return &simConfig.Aircraft[i], nil
		}
	}
	return nil, fmt.Errorf("aircraft %q not in %s", name, configPath)
}

type series struct {
	label string
	c     *curve.Curve
}

// plotAircraft writes one PNG per curve family and returns the file names
func plotAircraft(cfg flight.Config, name, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create directory: %w", err)
	}

	lift := []series{{"lift", cfg.LiftAOACurve}, {"induced drag", cfg.InducedDragCurve}}
	if cfg.YawLift != nil {
		lift = append(lift,
			series{"yaw lift", cfg.YawLift.AOACurve},
			series{"yaw induced drag", cfg.YawLift.InducedDragCurve})
	}
	d := cfg.Drag
	drag := []series{
		{"right", d.Right}, {"left", d.Left},
		{"top", d.Top}, {"bottom", d.Bottom},
		{"forward", d.Forward}, {"back", d.Back},
	}

	plots := []struct {
		file, title, xlabel, ylabel string
		series                      []series
	}{
		{name + "_lift.png", name + " lift", "angle of attack (deg)", "coefficient", lift},
		{name + "_drag.png", name + " directional drag", "speed along axis (m/s)", "coefficient", drag},
	}

	var files []string
	for _, p := range plots {
		path := filepath.Join(outDir, p.file)
		if err := saveCurves(path, p.title, p.xlabel, p.ylabel, p.series); err != nil {
			return files, err
		}
		files = append(files, path)
	}
	return files, nil
}

func saveCurves(path, title, xlabel, ylabel string, series []series) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xlabel
	p.Y.Label.Text = ylabel
	p.Add(plotter.NewGrid())

	lines := 0
	for i, s := range series {
		if s.c == nil {
			continue
		}
		keys := s.c.Sample(samples)
		pts := make(plotter.XYs, len(keys))
		for j, k := range keys {
			pts[j].X, pts[j].Y = k.In, k.Out
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("%s: %w", s.label, err)
		}
		line.LineStyle.Width = vg.Points(2)
		line.LineStyle.Color = palette[i%len(palette)]
		p.Add(line)
		p.Legend.Add(s.label, line)
		lines++
	}
	if lines == 0 {
		return errors.New("no curves to plot")
	}
	p.Legend.Top = true

	return savePNG(p, 8*vg.Inch, 6*vg.Inch, path)
}

var palette = []color.Color{
	color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	color.RGBA{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	color.RGBA{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	color.RGBA{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
	color.RGBA{R: 0x8c, G: 0x56, B: 0x4b, A: 0xff},
}

func savePNG(p *plot.Plot, w, h vg.Length, path string) error {
	c := vgimg.NewWith(vgimg.UseWH(w, h), vgimg.UseDPI(96))
	p.Draw(draw.New(c))

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create png: %w", err)
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(bw); err != nil {
		return fmt.Errorf("cannot write png: %w", err)
	}
	return bw.Flush()
}
