// Package fileparser streams a delimited text file through a compiled line
// pattern.
//
// Open resolves the path, compiles the pattern and consumes the preamble:
// leading comment lines are buffered and, when WithHeader is set, the first
// non-comment line is split on the separator and kept as the header. Pattern
// and file errors surface from Open; decode errors surface per line.
//
// # Streaming
//
//	p, err := fileparser.Open("data.tsv", "$val:float|$val2:int", fileparser.WithHeader(true))
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	for {
//	    rec, err := p.Next()
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    if err != nil {
//	        var de *types.DecodeError
//	        if errors.As(err, &de) {
//	            continue // de.Line names the bad line
//	        }
//	        return err
//	    }
//	    use(rec)
//	}
//
// All wraps Next as a range-over-func iterator.
//
// # Collecting
//
// Collect drains the stream into one value list per field, in row order.
// Under the Abort policy the first bad line fails the call; under Skip it is
// dropped and reported by Skipped.
//
// A Parser is single-owner. Separate Parsers may run on separate goroutines
// and share a compiled pattern.
package fileparser
