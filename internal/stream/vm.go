package stream

import (
	"context"
	"strings"

	"github.com/virtcam/virtcam/internal/run"
)

// DetectVM reports whether the host is a virtual machine, using
// systemd-detect-virt. Absence of the tool or any failure means "not a VM";
// detection only ever lowers quality, never raises it.
func DetectVM(ctx context.Context, runner run.Runner) bool {
	res, err := runner.Run(ctx, "systemd-detect-virt")
	if err != nil || res.Code != 0 {
		return false
	}
	virt := strings.TrimSpace(res.Stdout)
	return virt != "" && virt != "none"
}
