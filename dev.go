package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/howeyc/fsnotify"
	"go.uber.org/zap"

	"github.com/nf/intcode/config"
	"github.com/nf/intcode/program"
)

// devMode runs the configured program and runs it again from scratch every
// time its file changes, until interrupted.
func devMode(cfg *config.Config, log *zap.Logger) error {
	progFile := filepath.Clean(cfg.Program)
	log = log.Named("dev")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Watch(filepath.Dir(progFile)); err != nil {
		return err
	}

	var (
		con    = newConsole(os.Stdin, os.Stdout, cfg.Run.ASCII)
		cancel = func() {}
		done   = make(chan bool)
		rerun  = time.After(1 * time.Millisecond)
	)
	close(done)
	for {
		select {
		case <-rerun:
			cancel()
			<-done

			image, err := program.ParseFile(progFile)
			if err != nil {
				log.Error("load", zap.Error(err))
				break
			}
			log.Info("start", zap.String("program", filepath.Base(progFile)), zap.Int("words", len(image)))

			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			done = make(chan bool)
			go func(done chan bool) {
				defer close(done)
				err := run(ctx, cfg, image, log, con)
				switch {
				case errors.Is(err, context.Canceled):
					log.Info("reset")
				case err != nil:
					log.Error("stopped", zap.Error(err))
				default:
					log.Info("halted")
				}
			}(done)
		case ev := <-watcher.Event:
			if filepath.Clean(ev.Name) == progFile && !ev.IsAttrib() {
				rerun = time.After(100 * time.Millisecond)
			}
		case err := <-watcher.Error:
			log.Warn("watcher", zap.Error(err))
		}
	}
}
