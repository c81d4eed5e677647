// Package config gathers every command-line-configurable knob into a
// single immutable struct, built once by cmd/ampcore and threaded down
// into machine.New rather than read piecemeal from globals (spec.md
// DESIGN NOTES §9: "gather debugflags into a single immutable config
// struct").
//
// Grounded on master-g-childhood's go/chr2png/main.go, the pack's only
// urfave/cli usage: a cli.App with typed Flags and a single Action that
// populates a result value and returns it to the caller.
package config

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/amiga68k/core/cpu"
	"github.com/amiga68k/core/snapshot"
)

// Config is the fully-resolved, read-only set of choices the owning
// container needs to come up: which CPU model and memory sizes to wire,
// what to load, and which debug guards to install up front.
type Config struct {
	KickstartPath string
	Model         cpu.Model

	ChipRAMSize int
	SlowRAMSize int
	FastRAMSize int

	RunAheadFrames int

	SnapshotLoadPath   string
	SnapshotSavePath   string
	SnapshotCompressor snapshot.Compressor

	Frames int // headless run length; 0 means run until a guard stops it

	Breakpoints []uint32
	Watchpoints []uint32
}

// modelNames maps the --model flag's accepted strings to cpu.Model, the
// same "named enum flag" shape chr2png uses for --pal/--sp.
var modelNames = map[string]cpu.Model{
	"68000":   cpu.M68000,
	"68010":   cpu.M68010,
	"68ec020": cpu.M68EC020,
	"68020":   cpu.M68EC020,
}

var compressorNames = map[string]snapshot.Compressor{
	"none": snapshot.CompressorNone,
	"gzip": snapshot.CompressorGzip,
	"lz4":  snapshot.CompressorLZ4,
	"rle2": snapshot.CompressorRLE2,
	"rle3": snapshot.CompressorRLE3,
}

// Parse builds a Config from a command line (os.Args-shaped), running
// the cli.App's Action synchronously and returning the populated struct.
func Parse(args []string) (*Config, error) {
	cfg := &Config{}

	app := &cli.App{
		Name:    "ampcore",
		Usage:   "cycle-accurate Amiga execution core",
		Version: "v0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "kickstart",
				Aliases:  []string{"k"},
				Usage:    "path to the Kickstart ROM image",
				Required: true,
			},
			&cli.StringFlag{
				Name:    "model",
				Aliases: []string{"m"},
				Usage:   "CPU model: 68000, 68010, or 68ec020",
				Value:   "68000",
			},
			&cli.IntFlag{
				Name:  "chip-ram",
				Usage: "Chip RAM size in bytes",
				Value: 512 * 1024,
			},
			&cli.IntFlag{
				Name:  "slow-ram",
				Usage: "Slow (Ranger) RAM size in bytes",
				Value: 0,
			},
			&cli.IntFlag{
				Name:  "fast-ram",
				Usage: "Fast RAM size in bytes",
				Value: 0,
			},
			&cli.IntFlag{
				Name:  "run-ahead",
				Usage: "number of frames the run-ahead replica stays ahead by (0 disables it)",
				Value: 0,
			},
			&cli.StringFlag{
				Name:  "load-snapshot",
				Usage: "VASNAP file to restore before running",
			},
			&cli.StringFlag{
				Name:  "save-snapshot",
				Usage: "VASNAP file to write after the run completes",
			},
			&cli.StringFlag{
				Name:  "snapshot-compressor",
				Usage: "none, gzip, lz4, rle2, or rle3",
				Value: "gzip",
			},
			&cli.IntFlag{
				Name:  "frames",
				Usage: "number of frames to run headlessly (0 runs until a breakpoint stops it)",
				Value: 0,
			},
			&cli.UintSliceFlag{
				Name:  "break",
				Usage: "PC breakpoint address (repeatable)",
			},
			&cli.UintSliceFlag{
				Name:  "watch",
				Usage: "memory watchpoint address (repeatable)",
			},
		},
		Action: func(c *cli.Context) error {
			model, ok := modelNames[c.String("model")]
			if !ok {
				cli.ShowAppHelp(c)
				return cli.Exit(fmt.Sprintf("unknown --model %q", c.String("model")), 86)
			}
			compressor, ok := compressorNames[c.String("snapshot-compressor")]
			if !ok {
				cli.ShowAppHelp(c)
				return cli.Exit(fmt.Sprintf("unknown --snapshot-compressor %q", c.String("snapshot-compressor")), 86)
			}

			cfg.KickstartPath = c.String("kickstart")
			cfg.Model = model
			cfg.ChipRAMSize = c.Int("chip-ram")
			cfg.SlowRAMSize = c.Int("slow-ram")
			cfg.FastRAMSize = c.Int("fast-ram")
			cfg.RunAheadFrames = c.Int("run-ahead")
			cfg.SnapshotLoadPath = c.String("load-snapshot")
			cfg.SnapshotSavePath = c.String("save-snapshot")
			cfg.SnapshotCompressor = compressor
			cfg.Frames = c.Int("frames")

			for _, v := range c.UintSlice("break") {
				cfg.Breakpoints = append(cfg.Breakpoints, uint32(v))
			}
			for _, v := range c.UintSlice("watch") {
				cfg.Watchpoints = append(cfg.Watchpoints, uint32(v))
			}
			return nil
		},
	}

	if err := app.Run(args); err != nil {
		return nil, err
	}
	return cfg, nil
}
