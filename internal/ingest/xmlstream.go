package ingest

import (
	"context"
	"encoding/xml"
	"io"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// streamOperations incrementally decodes <Operation> elements from the
// registry export. Each element is decoded and released individually so
// peak memory stays flat regardless of export size. Both channels close
// when decoding completes.
func streamOperations(ctx context.Context, r io.Reader) (<-chan operation, <-chan error) {
	outCh := make(chan operation, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := xml.NewDecoder(r)
		decoder.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
			enc, err := htmlindex.Get(charset)
			if err != nil {
				return nil, eris.Wrapf(err, "ingest: unsupported charset %q", charset)
			}
			return enc.NewDecoder().Reader(input), nil
		}

		for {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "ingest: stream cancelled")
				return
			}

			tok, err := decoder.Token()
			if err == io.EOF {
				return
			}
			if err != nil {
				errCh <- eris.Wrap(err, "ingest: read token")
				return
			}

			se, ok := tok.(xml.StartElement)
			if !ok || se.Name.Local != operationElement {
				continue
			}

			var op operation
			if err := decoder.DecodeElement(&op, &se); err != nil {
				errCh <- eris.Wrap(err, "ingest: decode operation")
				return
			}

			select {
			case outCh <- op:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "ingest: stream cancelled")
				return
			}
		}
	}()

	return outCh, errCh
}
