// control/flags.go
// Author: momentics <momentics@gmail.com>

package control

import "github.com/spf13/pflag"

// BindFlags defines a flag per scalar configuration key. Only flags changed
// on the command line override file and environment values.
func BindFlags(flags *pflag.FlagSet) {
	def := DefaultConfig()
	flags.Int("worker_count", def.WorkerCount, "Number of worker threads")
	flags.Bool("steal_enabled_across_groups", def.StealAcrossGroups, "Allow stealing from non-exclusive foreign groups")
	flags.Int("idle_spin_iterations", def.IdleSpinIterations, "Yield-and-rescan rounds before an idle worker parks")
	flags.Duration("idle_park_timeout", def.IdleParkTimeout, "Upper bound of a single idle park")
	flags.Int("stall_threshold_ms", def.StallThresholdMS, "Report workers without progress for longer than this; 0 disables")
	flags.Duration("stall_check_interval", def.StallCheckInterval, "Stall detector scan period")
	flags.Int("queue_capacity", def.QueueCapacity, "Ring capacity per priority band")
	flags.Bool("pin_threads", def.PinThreads, "Pin worker threads to CPUs")
	flags.String("log.level", def.Log.Level, "Log level (debug, info, warn, error)")
	flags.String("log.format", def.Log.Format, "Log format (text, json)")
	flags.String("metrics.addr", def.Metrics.Addr, "Prometheus listen address, empty disables")
}
