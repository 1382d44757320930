package batch

import "github.com/strand-ml/strand/internal/device"

// SumCosts returns the summed Value reduce-sum across descriptors, visiting
// each one under its own device context so the reduction runs where the
// data lives. Descriptors without a Value contribute nothing. Training
// drivers call this to total the cost of a batch split across devices.
func SumCosts(args []*Argument) float32 {
	var total float32
	for _, arg := range args {
		if arg.Value == nil {
			continue
		}
		restore := device.Use(arg.DeviceID)
		total += arg.Value.Sum()
		restore()
	}
	return total
}
