package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/awesome-gocui/gocui"
	"github.com/benbjohnson/clock"
	"github.com/gethiox/sensi/internal/pkg/config"
	"github.com/gethiox/sensi/internal/pkg/display"
	"github.com/gethiox/sensi/internal/pkg/input"
	"github.com/gethiox/sensi/internal/pkg/location"
	"github.com/gethiox/sensi/internal/pkg/logger"
	"github.com/gethiox/sensi/internal/pkg/looper"
	"github.com/gethiox/sensi/internal/pkg/permission"
	"github.com/gethiox/sensi/internal/pkg/poll"
	"github.com/gethiox/sensi/internal/pkg/readout"
	"github.com/gethiox/sensi/internal/pkg/sensor"
	"github.com/gethiox/sensi/internal/pkg/utils"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const closeTimeout = 2 * time.Second

type options struct {
	ui        bool
	noColor   bool
	force256  bool
	silent    bool
	grab      bool
	logLevel  int
	configDir string
	mode      string
}

// level translates the user facing verbosity into the highest logger level to be shown.
func (o *options) level() int {
	if o.logLevel >= 3 {
		return logger.DebugLvl
	}
	return o.logLevel + logger.InfoLvl
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "sensi",
		Short: "sensor and location monitor",
		Long: `sensi shows live readings of the accelerometer, gyroscope, light and magnetic field sensors
together with GPS and network positions. Polling runs in one of three modes:
fast (every sample), slow (one sample per second) or stopped.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configDir, "config", config.Dir, "configuration directory")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "nocolor", false, "disable color")
	cmd.PersistentFlags().IntVar(&opts.logLevel, "loglevel", 2,
		"logging level, each level enables additional information class (0-3)\n"+
			"0: general info (eg. sensor sources, permission)\n"+
			"1: polling mode changes\n"+
			"2: location fixes\n"+
			"3: debug",
	)
	cmd.Flags().BoolVar(&opts.ui, "ui", false, "engage terminal ui")
	cmd.Flags().BoolVar(&opts.force256, "256", false, "force 256 color mode")
	cmd.Flags().BoolVar(&opts.silent, "silent", false, "no output logging")
	cmd.Flags().BoolVar(&opts.grab, "grab", false, "grab button input device for exclusive usage")
	cmd.Flags().StringVar(&opts.mode, "mode", "", "initial polling mode (fast, slow, stop), overrides config")

	cmd.AddCommand(newInitCmd(opts))
	return cmd
}

func newInitCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "create configuration tree",
		Long:  "init writes missing configuration files, existing files stay intact.",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := createConfigDirectoryIfNeeded(opts.configDir)
			flushLogs(!opts.noColor, opts.level())
			if err != nil {
				return err
			}
			fmt.Printf("configuration ready in \"%s\"\n", opts.configDir)
			return nil
		},
	}
}

func handleSigs(wg *sync.WaitGroup, sigs <-chan os.Signal, cancel func(), g *gocui.Gui) {
	defer wg.Done()
	var counter int
	for sig := range sigs {
		if counter > 0 {
			fmt.Println("Dirty exit")
			os.Exit(1)
		}
		log.Info(fmt.Sprintf("signal received: %v", sig), logger.Debug)
		cancel()
		if g != nil {
			g.Update(func(*gocui.Gui) error { return gocui.ErrQuit })
		}
		counter++
	}
}

func run(opts *options) error {
	if opts.force256 {
		os.Setenv("TERM", "xterm-256color")
	}

	if err := createConfigDirectoryIfNeeded(opts.configDir); err != nil {
		return err
	}
	cfg, devs, err := loadConfig(opts.configDir)
	if err != nil {
		return err
	}
	log.Info(fmt.Sprintf("sensi config: %+v", cfg), logger.Debug)

	mode := cfg.Sensi.InitialMode
	if opts.mode != "" {
		mode, err = poll.ParseMode(opts.mode)
		if err != nil {
			return err
		}
	}

	var sigs = make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.New()
	loop := looper.New(clk)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	go loop.Run(loopCtx)
	defer func() {
		stopLoop()
		<-loop.Done()
	}()

	sources := openSources(devs.Sensors, clk)
	hub, err := sensor.NewHub(loop, clk, cfg.Sensi.FastestPeriod, sources...)
	if err != nil {
		return multierr.Append(err, closeSources(sources))
	}

	locations, err := location.NewManager(loop, clk, locationFeeds(devs.Locations, clk)...)
	if err != nil {
		return multierr.Append(err, hub.Close())
	}
	locations.Start(ctx)

	labels, initial := boardLayout()
	board := readout.New(initial, labels...)
	snapshots, ids, outs, err := fanOutBoard(board, 2)
	if err != nil {
		return multierr.Combine(err, hub.Close(), locations.Close())
	}
	lcdIn, viewIn := outs[0], outs[1]
	locationSet := location.NewListenerSet(board)

	gate := permission.NewGate(loop, cfg.Permission, locationSet, devs.SerialPorts()...)
	ctrl := poll.NewController(loop, hub, locations, gate, board, locationSet, cfg.Sensi.Polling)
	gate.OnResult(func(permission.Status) { ctrl.PermissionChanged() })

	useUI := opts.ui && !opts.silent
	wg := sync.WaitGroup{}

	var scr *screen
	var g *gocui.Gui
	if useUI {
		scr = newScreen(ctrl, labels, !opts.noColor)
		g, err = scr.run(cancel)
		if err != nil {
			cancel()
			return multierr.Combine(err, hub.Close(), locations.Close())
		}
		gate.SetAsker(scr.ask)
	}

	wg.Add(1)
	go handleSigs(&wg, sigs, cancel, g)

	wg.Add(1)
	dd := GenerateDisplayData(ctx, &wg, cfg.Screen, lcdIn)
	dd1, dd2 := FanOut(dd)

	if cfg.Screen.Enabled {
		wg.Add(1)
		go display.HandleDisplay(&wg, cfg.Screen, dd1)
	} else {
		go func() {
			for range dd1 {
			}
		}()
	}

	if useUI {
		go scr.logView(g, opts.level(), cfg.Sensi.LogBufferSize, cfg.Sensi.LogViewRate)
		go scr.readoutView(g, viewIn, cfg.Sensi.LogViewRate)
		go scr.lcdView(g, dd2)
	} else {
		go func() {
			for range dd2 {
			}
		}()
		go printLogs(!opts.noColor, opts.level())
		if opts.silent {
			if err := snapshots.DespawnOutput(ids[1]); err != nil {
				log.Info(fmt.Sprintf("failed to drop readout output: %v", err), logger.Debug)
			}
		} else {
			fmt.Printf("for nicer output use --ui flag\n")
			go printReadouts(viewIn, !opts.noColor)
		}
	}

	if cfg.Buttons.Enabled {
		if err := listenButtons(ctx, cfg.Buttons, opts.grab, ctrl); err != nil {
			log.Info(fmt.Sprintf("hardware buttons disabled: %v", err), logger.Warning)
		}
	}

	wg.Add(1)
	go monitorConfChanges(ctx, &wg, opts.configDir, ctrl)

	gate.Start()
	ctrl.Set(mode)

	<-ctx.Done()
	log.Info("shutting down", logger.Info)

	select {
	case <-ctrl.Close():
	case <-time.After(closeTimeout):
		log.Info("controller did not stop in time", logger.Warning)
	}

	err = multierr.Combine(hub.Close(), locations.Close())
	if err != nil {
		log.Info(fmt.Sprintf("failed to close devices: %v", err), logger.Warning)
	}
	board.Close()

	signal.Stop(sigs)
	close(sigs)
	if scr != nil {
		<-scr.done
	}
	wg.Wait()
	<-snapshots.Done()
	return err
}

// fanOutBoard distributes board snapshots into n outputs.
// Outputs exist before anything touches the board, so the first snapshot reaches all of them.
func fanOutBoard(board *readout.Board, n int) (*utils.DynamicFanOut[readout.Snapshot], []int64, []<-chan readout.Snapshot, error) {
	fan := utils.NewDynamicFanOut(board.Changes())
	ids := make([]int64, 0, n)
	outs := make([]<-chan readout.Snapshot, 0, n)
	for i := 0; i < n; i++ {
		id, out, err := fan.SpawnOutput()
		if err != nil {
			return nil, nil, nil, err
		}
		ids = append(ids, id)
		outs = append(outs, out)
	}
	return fan, ids, outs, nil
}

// boardLayout returns readout labels in display order together with their initial texts.
func boardLayout() ([]string, map[string]string) {
	var labels []string
	initial := make(map[string]string)
	for _, k := range sensor.Kinds {
		labels = append(labels, k.Label())
		initial[k.Label()] = sensor.TextNoData
	}
	for _, p := range location.Providers {
		labels = append(labels, location.Label(p))
		initial[location.Label(p)] = location.TextNoData
	}
	return labels, initial
}

func listenButtons(ctx context.Context, cfg config.Buttons, grab bool, ctrl *poll.Controller) error {
	mapping, err := input.ParseMapping(cfg.Fast, cfg.Slow, cfg.Stop)
	if err != nil {
		return err
	}
	path, err := input.FindDevice(cfg.Device)
	if err != nil {
		return err
	}
	modes, err := input.Listen(ctx, path, grab, mapping)
	if err != nil {
		return err
	}
	log.Info(fmt.Sprintf("listening for buttons on \"%s\"", path), logger.Info)

	go func() {
		for mode := range modes {
			log.Info("button pressed", zap.String("mode", mode.String()), logger.Mode)
			ctrl.Set(mode)
		}
	}()
	return nil
}

func monitorConfChanges(ctx context.Context, wg *sync.WaitGroup, dir string, ctrl *poll.Controller) {
	defer wg.Done()

	changes, err := config.DetectChanges(ctx, dir, config.MainFile, config.DevicesFile)
	if err != nil {
		log.Info(fmt.Sprintf("config monitor disabled: %v", err), logger.Warning)
		return
	}

	for name := range changes {
		if name == config.DevicesFile {
			log.Info("device configuration changed, restart to apply", zap.String("config", name), logger.Warning)
			continue
		}

		cfg, err := config.Load(filepath.Join(dir, config.MainFile))
		if err != nil {
			log.Info(fmt.Sprintf("failed to reload config: %v", err), zap.String("config", name), logger.Warning)
			continue
		}
		log.Info("config reloaded", zap.String("config", name), logger.Info)
		ctrl.Reconfigure(cfg.Sensi.Polling)
	}
}

// FanOut copies every value of input into two outputs, outputs are closed with input.
func FanOut[T any](input <-chan T) (<-chan T, <-chan T) {
	size := cap(input)
	if size == 0 {
		// at least size of 1 to prevent from output channels blocking by each other
		size = 1
	}
	var output1 = make(chan T, size)
	var output2 = make(chan T, size)

	go func() {
		for v := range input {
			output1 <- v
			output2 <- v
		}
		close(output1)
		close(output2)
	}()
	return output1, output2
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
