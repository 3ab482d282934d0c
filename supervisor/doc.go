// Package supervisor runs crawl and index jobs as child processes and keeps
// their job records current.
//
// Overview
// The Supervisor owns a registry of running jobs keyed by job id. Launch
// registers a job and returns immediately; the job itself runs on its own
// goroutine together with a Heartbeat.
//
// Runner is a thin wrapper around os/exec:
//   - starts the process in its own process group
//   - drains stdout and stderr concurrently in fixed-size chunks
//   - reassembles lines through a LineBuffer per stream
//   - kills the whole group and closes the pipes when the deadline expires
//
// Data flow:
//
//	Launch ---> recordWriter(running) ---> Heartbeat{interval}
//	   |                                        |
//	   +------> Runner.Run(cmd) ---- Result ----+--> Stop() + await
//	                                            |
//	                              archive output log (optional)
//	                                            |
//	                              recordWriter(completed|failed)
//
// Invariants:
//   - At most one process per job id on a Supervisor.
//   - Every write of a job's record goes through that job's recordWriter.
//   - The heartbeat is stopped and awaited before the terminal write.
//   - Once a terminal status is written nothing else is written.
package supervisor
