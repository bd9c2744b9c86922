package app

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"

	"cloudpico-station/internal/input"
)

// readSimKeys turns keys read from r into button presses on the sim backend:
// 'a' presses button A and 'b' presses button B. Other bytes are ignored. It
// returns when r is exhausted or ctx is done.
func readSimKeys(ctx context.Context, r io.Reader, press func(input.Button) bool, logger *slog.Logger) {
	br := bufio.NewReader(r)
	for ctx.Err() == nil {
		c, err := br.ReadByte()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				logger.Warn("sim keys stopped", "error", err)
			}
			return
		}

		var b input.Button
		switch c {
		case 'a', 'A':
			b = input.ButtonA
		case 'b', 'B':
			b = input.ButtonB
		default:
			continue
		}
		if !press(b) {
			logger.Warn("sim press dropped", "button", b.String())
		}
	}
}
