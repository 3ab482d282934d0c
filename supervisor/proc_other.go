//go:build !unix

package supervisor

import "os/exec"

func setProcessGroup(_ *exec.Cmd) {}
