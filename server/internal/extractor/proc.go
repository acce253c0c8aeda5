package extractor

import (
	"os"
	"os/exec"
	"syscall"
)

// SetProcessGroup makes the subprocess lead its own process group. yt-dlp
// spawns children (ffmpeg among them), so terminating only the parent would
// leave orphans behind.
func SetProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// KillGroup sends SIGKILL to the whole process group.
func KillGroup(p *os.Process) error {
	if p == nil {
		return nil
	}

	pgid, err := syscall.Getpgid(p.Pid)
	if err != nil {
		return p.Kill()
	}

	return syscall.Kill(-pgid, syscall.SIGKILL)
}
