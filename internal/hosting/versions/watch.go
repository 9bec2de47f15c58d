package versions

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/dropDatabas3/nshost/internal/observability/logger"
)

// Watch invalida el cache cuando cambia NS_HOME o algún directorio de
// versión. Bloquea hasta que ctx se cancele.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.home == "" {
		return nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(c.home); err != nil {
		return err
	}
	if entries, err := os.ReadDir(c.home); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				_ = w.Add(filepath.Join(c.home, e.Name()))
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
					_ = w.Add(ev.Name)
				}
			}
			c.Invalidate()
			c.log.Debug("versions cache invalidated", logger.File(ev.Name), logger.String("event", ev.Op.String()))
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			c.log.Warn("versions watcher error", logger.Err(err))
		}
	}
}
