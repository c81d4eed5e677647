// Command ampcore runs the Amiga execution core headlessly: it loads a
// Kickstart image and an optional snapshot, then drives the machine a
// fixed number of frames (or until a debug guard stops it), optionally
// writing a snapshot at the end.
//
// Grounded on user-none-eMkIII/cli/runner.go's "runner wraps an
// emulator, calls RunFrame() once per tick" shape, stripped of its
// ebiten window and audio player since this core has no video/audio
// output surface (spec.md Non-goals) — only the wrap-and-drive loop
// shape carries over.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/amiga68k/core/config"
	"github.com/amiga68k/core/debug"
	"github.com/amiga68k/core/machine"
)

func main() {
	if err := run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(args []string) error {
	cfg, err := config.Parse(args)
	if err != nil {
		return err
	}

	kickstart, err := os.ReadFile(cfg.KickstartPath)
	if err != nil {
		return fmt.Errorf("ampcore: read kickstart: %w", err)
	}

	m, err := machine.New(cfg, kickstart)
	if err != nil {
		return fmt.Errorf("ampcore: build machine: %w", err)
	}

	if cfg.SnapshotLoadPath != "" {
		buf, err := os.ReadFile(cfg.SnapshotLoadPath)
		if err != nil {
			return fmt.Errorf("ampcore: read snapshot: %w", err)
		}
		if err := m.Load(buf); err != nil {
			return fmt.Errorf("ampcore: load snapshot: %w", err)
		}
	}

	if cfg.RunAheadFrames > 0 {
		if err = runWithRunAhead(cfg, m); err != nil {
			return err
		}
	} else if err = runFrames(cfg, m); err != nil {
		return err
	}

	if cfg.SnapshotSavePath != "" {
		buf, err := m.Save(cfg.SnapshotCompressor)
		if err != nil {
			return fmt.Errorf("ampcore: save snapshot: %w", err)
		}
		if err := os.WriteFile(cfg.SnapshotSavePath, buf, 0o644); err != nil {
			return fmt.Errorf("ampcore: write snapshot: %w", err)
		}
	}

	return nil
}

// runFrames drives the primary machine directly, with no run-ahead
// replica, for cfg.Frames frames (or forever until a guard stops it when
// cfg.Frames is 0).
func runFrames(cfg *config.Config, m *machine.Machine) error {
	for i := 0; cfg.Frames == 0 || i < cfg.Frames; i++ {
		if reason := m.RunFrame(); reason != debug.StopNone {
			log.Printf("ampcore: stopped after %d frames: %s", m.FrameCount(), reason)
			return nil
		}
	}
	return nil
}

// runWithRunAhead builds a second machine from the same Kickstart image
// and drives the pair through machine.RunAhead, so the displayed frame
// (the replica's) is always cfg.RunAheadFrames frames ahead of the
// primary the snapshot path would otherwise save.
func runWithRunAhead(cfg *config.Config, primary *machine.Machine) error {
	kickstart, err := os.ReadFile(cfg.KickstartPath)
	if err != nil {
		return fmt.Errorf("ampcore: read kickstart for run-ahead replica: %w", err)
	}
	replica, err := machine.New(cfg, kickstart)
	if err != nil {
		return fmt.Errorf("ampcore: build run-ahead replica: %w", err)
	}

	ra, err := machine.NewRunAhead(primary, replica, cfg.RunAheadFrames)
	if err != nil {
		return fmt.Errorf("ampcore: start run-ahead: %w", err)
	}

	for i := 0; cfg.Frames == 0 || i < cfg.Frames; i++ {
		reason, err := ra.Advance()
		if err != nil {
			return fmt.Errorf("ampcore: run-ahead advance: %w", err)
		}
		if reason != debug.StopNone {
			log.Printf("ampcore: run-ahead replica stopped after %d frames: %s", replica.FrameCount(), reason)
			return nil
		}
	}
	return nil
}
