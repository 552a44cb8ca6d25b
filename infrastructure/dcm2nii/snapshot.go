package dcm2nii

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"
)

// snapshotter renders a quality-control image of a converted volume by
// shelling out to an external command. The command receives the volume
// path and the destination snapshot path as its two arguments.
type snapshotter struct {
	command string
}

// newSnapshotter returns nil when no command is configured, which
// disables snapshotting entirely.
func newSnapshotter(command string) *snapshotter {
	if command == "" {
		return nil
	}
	return &snapshotter{command: command}
}

// render produces the snapshot for one volume and returns its path.
func (s *snapshotter) render(ctx context.Context, volume, outputDir string) (string, error) {
	name := filepath.Base(volume)
	name = strings.TrimSuffix(strings.TrimSuffix(name, ".gz"), ".nii")
	snap := filepath.Join(outputDir, name+"_snap.pdf")

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, s.command, volume, snap)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		exitCode := -1
		if cmd.ProcessState != nil {
			exitCode = cmd.ProcessState.ExitCode()
		}
		return "", &ConversionError{
			Tool:     s.command,
			Args:     []string{volume, snap},
			ExitCode: exitCode,
			Stderr:   stderr.String(),
		}
	}
	return snap, nil
}
