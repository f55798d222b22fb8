package app

import (
	"bufio"
	"context"
	"io"

	"github.com/cockroachdb/errors"
)

// maxLineSize bounds a single protocol message.
const maxLineSize = 16 << 20

// Serve runs the JSON-lines protocol: one message per line on r, one event
// per line on w. It starts the core if needed and returns when r reaches
// EOF, the core fails or ctx is done.
func (app *Application) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	if !app.running.Load() {
		if err := app.Start(ctx); err != nil {
			return err
		}
	}
	app.out = newEmitter(w, app.log)
	defer func() { app.out = nil }()

	done := make(chan struct{})
	defer close(done)
	lines, readErr := readLines(r, done)

	for {
		select {
		case <-ctx.Done():
			app.host.Drain()
			return ctx.Err()

		case <-app.host.Wake():
			app.host.Drain()

		case line, ok := <-lines:
			if !ok {
				app.host.Drain()
				return <-readErr
			}
			if err := app.handleLine(line); err != nil {
				app.log.Debugw("rejected message", "error", err)
				app.out.error(err)
			}
		}

		if err := app.host.Err(); err != nil {
			return err
		}
	}
}

// readLines scans r on its own goroutine. The error channel receives nil
// on EOF.
func readLines(r io.Reader, done <-chan struct{}) (<-chan []byte, <-chan error) {
	lines := make(chan []byte)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
		for sc.Scan() {
			line := append([]byte(nil), sc.Bytes()...)
			if len(line) == 0 {
				continue
			}
			select {
			case lines <- line:
			case <-done:
				errc <- nil
				return
			}
		}
		errc <- errors.Wrap(sc.Err(), "reading input")
	}()
	return lines, errc
}
