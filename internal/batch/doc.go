// Package batch defines the unit of data exchanged between layers of a
// computation graph during one training or inference pass.
//
// The central type is Argument, a descriptor bundling:
//   - dense value/gradient/input matrices and id or string rows
//   - optional sequence and sub-sequence boundary vectors
//   - device affinity and a data-source id
//   - a readiness synchronizer for concurrent producers and consumers
//
// One Argument sits on each graph edge. The producing layer fills Value and
// calls NotifyValueReady; each of the edge's consumers calls WaitValueReady
// before reading. The backward pass runs the same protocol in reverse over
// Grad: every consumer contributes a gradient and calls NotifyGradReady, the
// producer's WaitGradReady returns once all contributions are in.
//
// Structural operators (SubArgFrom, Concat, ConcatSelected,
// ResizeAndCopyFrom, SplitByDataID, DegradeSequence) reshape batches for
// layer consumption. They share underlying storage wherever the destination
// layout allows it and copy only when gathering from non-contiguous sources.
//
// Example forward hand-off with two consumers:
//
//	arg := &batch.Argument{Value: out}
//	arg.SetAllCount(2)
//
//	go func() { // producer
//	    fill(out)
//	    arg.NotifyValueReady()
//	}()
//
//	// each consumer
//	arg.WaitValueReady()
//	use(arg.Value)
package batch
