package coordinator

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

// join implements §4.5's Join step: open the primary file for append,
// then for each part 1..N-1, stream-copy its part file onto the end
// and delete it, in index order.
func (c *Coordinator) join(log *slog.Logger) error {
	primary, err := os.OpenFile(c.cfg.OutFile, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("coordinator.join: open primary: %w", err)
	}
	defer primary.Close()

	for i := 1; i < c.cfg.N; i++ {
		path := c.partPath(i)
		log.Debug("appending part file", "path", path)

		part, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("coordinator.join: open %s: %w", path, err)
		}
		_, err = io.Copy(primary, part)
		part.Close()
		if err != nil {
			return fmt.Errorf("coordinator.join: copy %s: %w", path, err)
		}

		if err := os.Remove(path); err != nil {
			log.Warn("failed to remove part file after join", "path", path, "err", err)
		} else {
			log.Info("removed part file after join", "path", path)
		}
	}

	return nil
}
