// Package source provides data providers that yield batch descriptors.
//
// A Source produces one descriptor per Next call and reports exhaustion
// with io.EOF, after which Reset rewinds it for another epoch. Provided
// implementations:
//   - TextSource: encodes lines of text into token-id descriptors with
//     per-line sequence boundaries
//   - MatrixSource: yields dense row batches from an in-memory table
//   - Interleave: round-robin combination of sources, stamping each
//     descriptor with the index of the source that produced it
//
// Example usage:
//
//	enc, err := source.NewTikTokenEncoder("cl100k_base")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	src, err := source.NewTextSource("train", enc, lines, 32, 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for {
//	    arg, err := src.Next()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    // feed arg into the graph
//	}
package source
