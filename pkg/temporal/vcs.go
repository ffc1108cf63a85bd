package temporal

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/mu-kernel/mukernel/pkg/kernel"
)

// commitInfo is the subset of `git log` output a snapshot cares about.
type commitInfo struct {
	Hash    string
	Author  string
	Message string
	When    time.Time
}

// resolveHEAD shells out to the system git binary the way
// theRebelliousNerd-codenerd's world.ScanGitHistory does, rather than
// vendoring a pure-Go git implementation for a single read-only log call.
// Any failure (git missing, repoDir not a repository, no commits yet) is
// wrapped in kernel.ErrVCS.
func resolveHEAD(ctx context.Context, repoDir string) (commitInfo, error) {
	cmd := exec.CommandContext(ctx, "git", "log", "-1", "--pretty=format:%H%x1f%an%x1f%ct%x1f%s")
	cmd.Dir = repoDir
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return commitInfo{}, fmt.Errorf("git log in %s: %s: %w", repoDir, strings.TrimSpace(stderr.String()), kernel.ErrVCS)
	}
	fields := strings.SplitN(out.String(), "\x1f", 4)
	if len(fields) != 4 {
		return commitInfo{}, fmt.Errorf("unexpected git log output in %s: %w", repoDir, kernel.ErrVCS)
	}
	var unixSeconds int64
	if _, err := fmt.Sscanf(fields[2], "%d", &unixSeconds); err != nil {
		return commitInfo{}, fmt.Errorf("parse commit timestamp: %w", kernel.ErrVCS)
	}
	return commitInfo{
		Hash:    fields[0],
		Author:  fields[1],
		Message: fields[3],
		When:    time.Unix(unixSeconds, 0),
	}, nil
}
