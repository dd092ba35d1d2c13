// Command fgdemo renders a small post processing frame graph into a window.
// The graph is described by a YAML or TOML file and rebuilt when the file
// changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gekko3d/framegraph"
	"github.com/gekko3d/framegraph/scene"
	"github.com/gekko3d/framegraph/tasks"
	"github.com/gekko3d/framegraph/wgpuengine"
)

func init() {
	runtime.LockOSThread()
}

type demoConfig struct {
	Graph       framegraph.Config `yaml:"graph" toml:"graph"`
	Width       int               `yaml:"width" toml:"width"`
	Height      int               `yaml:"height" toml:"height"`
	ClearColor  [4]float64        `yaml:"clear_color" toml:"clear_color"`
	Effect      string            `yaml:"effect" toml:"effect"`
	Temporal    bool              `yaml:"temporal" toml:"temporal"`
	BlendWeight float64           `yaml:"blend_weight" toml:"blend_weight"`
	MipMaps     bool              `yaml:"mipmaps" toml:"mipmaps"`
	Objects     int               `yaml:"objects" toml:"objects"`
}

func defaultDemoConfig() demoConfig {
	cfg := demoConfig{
		Graph:       framegraph.DefaultConfig(),
		Width:       1280,
		Height:      720,
		ClearColor:  [4]float64{0.1, 0.2, 0.4, 1},
		Effect:      "invert",
		BlendWeight: 0.9,
		Objects:     64,
	}
	cfg.Graph.Name = "fgdemo"
	return cfg
}

func loadDemoConfig(path string) (demoConfig, error) {
	cfg := defaultDemoConfig()
	if path == "" {
		return cfg, nil
	}
	format, err := framegraph.FormatForPath(path)
	if err != nil {
		return cfg, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := framegraph.Decode(data, format, &cfg); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Graph.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// demo owns the graph and the tasks toggled from the keyboard.
type demo struct {
	engine *wgpuengine.Engine
	graph  *framegraph.FrameGraph
	logger framegraph.Logger

	camera  *scene.Camera
	objects *scene.ObjectList

	effect   *tasks.EffectTask
	temporal *tasks.TemporalBlendTask
	cull     *tasks.CullObjectsTask
}

func (d *demo) setup(cfg demoConfig) error {
	if d.graph != nil {
		d.graph.Dispose()
	}
	d.graph = framegraph.New(d.engine, framegraph.WithConfig(cfg.Graph), framegraph.WithLogger(d.logger))
	d.graph.OnBuildError.Add(func(be *framegraph.BuildError) {
		d.logger.Errorf("frame graph %q: %v", d.graph.Name(), be)
	})
	d.effect, d.temporal = nil, nil

	opts := framegraph.NewTextureOptions(framegraph.FullScreen, framegraph.TextureFormatRGBA8Unorm)
	opts.MipMaps = cfg.MipMaps
	sceneTex, err := d.graph.TextureManager().CreateRenderTargetTexture("scene", opts, nil)
	if err != nil {
		return err
	}
	c := cfg.ClearColor
	var taskList []framegraph.Task

	d.objects = scene.NewObjectList()
	for i := range cfg.Objects {
		x := float32(i%8)*4 - 16
		y := float32(i/8)*4 - 16
		d.objects.Add(&scene.Object{
			Name:   fmt.Sprintf("box %d", i),
			Bounds: scene.AABB{Min: mgl32.Vec3{x, y, 0}, Max: mgl32.Vec3{x + 1, y + 1, 1}},
			Static: true,
		})
	}
	d.cull = tasks.NewCullObjectsTask("cull", d.camera, d.objects)
	taskList = append(taskList, d.cull)

	taskList = append(taskList, tasks.NewClearTask("clear scene", sceneTex.Base(), framegraph.Color{R: c[0], G: c[1], B: c[2], A: c[3]}))
	if cfg.MipMaps {
		taskList = append(taskList, tasks.NewGenerateMipmapsTask("scene mips", sceneTex.Base()))
	}

	output := sceneTex.Base()
	var fx *wgpuengine.Effect
	switch cfg.Effect {
	case "invert":
		fx = d.engine.Invert()
	case "grayscale":
		fx = d.engine.Grayscale()
	case "", "none":
	default:
		return fmt.Errorf("%w: unknown effect %q", framegraph.ErrInvalidArgument, cfg.Effect)
	}
	if fx != nil {
		d.effect = tasks.NewEffectTask(cfg.Effect, d.graph, fx, output)
		taskList = append(taskList, d.effect)
		output = d.effect.Output()
	}
	if cfg.Temporal {
		d.temporal = tasks.NewTemporalBlendTask("temporal", d.graph, d.engine.Blend(cfg.BlendWeight), output)
		taskList = append(taskList, d.temporal)
		output = d.temporal.Output()
	}
	taskList = append(taskList, tasks.NewCopyToTextureTask("present", output, framegraph.BackbufferColor))

	for _, t := range taskList {
		if err := d.graph.AddTask(t); err != nil {
			return err
		}
	}
	if err := d.graph.Build(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return d.graph.WhenReady(ctx, 0)
}

func (d *demo) frame() error {
	if err := d.engine.BeginFrame(); err != nil {
		return err
	}
	if err := d.graph.Execute(); err != nil {
		d.engine.EndFrame()
		return err
	}
	return d.engine.EndFrame()
}

func toggle(t interface {
	Disabled() bool
	SetDisabled(bool)
	Name() string
}, logger framegraph.Logger) {
	t.SetDisabled(!t.Disabled())
	logger.Infof("%s disabled: %v", t.Name(), t.Disabled())
}

// watchConfig sends the config again each time path is written.
func watchConfig(path string, logger framegraph.Logger, out chan<- demoConfig) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// editors replace files, so watch the directory
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}
	abs, _ := filepath.Abs(path)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if name, _ := filepath.Abs(event.Name); name != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				cfg, err := loadDemoConfig(path)
				if err != nil {
					logger.Errorf("reload %s: %v", path, err)
					continue
				}
				select {
				case out <- cfg:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warnf("watch %s: %v", path, err)
			}
		}
	}()
	return func() {
		close(done)
		watcher.Close()
	}, nil
}

func main() {
	configPath := flag.String("config", "", "YAML or TOML frame graph description")
	debug := flag.Bool("debug", false, "Enable debug logging and pass profiling")
	flag.Parse()

	cfg, err := loadDemoConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *debug {
		cfg.Graph.Debug = true
	}
	logger := framegraph.NewDefaultLogger("fgdemo", cfg.Graph.Debug)

	if err := glfw.Init(); err != nil {
		panic(err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, "Frame graph demo", nil, nil)
	if err != nil {
		panic(err)
	}
	defer window.Destroy()

	engine, err := wgpuengine.NewWindowEngine(window, wgpuengine.WithLogger(logger))
	if err != nil {
		panic(err)
	}
	defer engine.Release()

	d := &demo{engine: engine, logger: logger, camera: scene.NewCamera()}
	if err := d.setup(cfg); err != nil {
		logger.Errorf("setup: %v", err)
	}

	reloads := make(chan demoConfig, 1)
	if *configPath != "" {
		stop, err := watchConfig(*configPath, logger, reloads)
		if err != nil {
			logger.Warnf("config will not be reloaded: %v", err)
		} else {
			defer stop()
		}
	}

	resized := false
	window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		if err := engine.Resize(width, height); err != nil {
			logger.Errorf("resize: %v", err)
			return
		}
		resized = true
	})
	window.SetKeyCallback(func(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
		if action != glfw.Press {
			return
		}
		switch key {
		case glfw.KeyEscape:
			w.SetShouldClose(true)
		case glfw.Key1:
			if d.effect != nil {
				toggle(d.effect, logger)
			}
		case glfw.Key2:
			if d.temporal != nil {
				toggle(d.temporal, logger)
			}
		case glfw.Key3:
			toggle(d.cull, logger)
		case glfw.KeyP:
			logger.Infof("\n%s", d.graph.Profiler().StatsString())
		}
	})

	frames := 0
	for !window.ShouldClose() {
		glfw.PollEvents()

		select {
		case next := <-reloads:
			logger.Infof("config changed, rebuilding")
			if err := d.setup(next); err != nil {
				logger.Errorf("setup: %v", err)
			}
		default:
		}
		if resized {
			resized = false
			if err := d.graph.Build(); err != nil {
				continue
			}
		}
		if d.graph.State() == framegraph.StateFailed {
			time.Sleep(50 * time.Millisecond)
			continue
		}

		d.camera.Yaw += 0.25
		if err := d.frame(); err != nil {
			logger.Errorf("frame: %v", err)
		}
		frames++
		if cfg.Graph.Debug && frames%600 == 0 {
			logger.Debugf("\n%s", d.graph.Profiler().StatsString())
		}
	}
	d.graph.Dispose()
}
