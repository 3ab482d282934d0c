package supervisor

import (
	"context"
	"os"

	"github.com/shirou/gopsutil/v4/process"
)

// memoryUsageMB returns the resident set size of the supervising process in
// megabytes.
func memoryUsageMB(ctx context.Context) (float64, error) {
	proc, err := process.NewProcessWithContext(ctx, int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	info, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return float64(info.RSS) / (1024 * 1024), nil
}
