package rulesfile

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"paymonitor/internal/bootstrap/logging"
	domainpayment "paymonitor/internal/domain/payment"
	"paymonitor/internal/errs"
)

const defaultSettle = 200 * time.Millisecond

// Watcher reloads a rules file after it changes on disk. A file that fails to
// load is reported and the previous rules stay in effect.
type Watcher struct {
	path   string
	apply  func(*domainpayment.Rules)
	settle time.Duration
}

func NewWatcher(path string, apply func(*domainpayment.Rules)) (*Watcher, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("rules file path is required")
	}
	if apply == nil {
		return nil, errors.New("rules apply func is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errs.Wrapf(err, "resolve rules file %q", path)
	}
	return &Watcher{path: abs, apply: apply, settle: defaultSettle}, nil
}

// WithSettle sets how long the file must stay quiet before it is reloaded.
func (w *Watcher) WithSettle(d time.Duration) *Watcher {
	if d > 0 {
		w.settle = d
	}
	return w
}

// Run blocks until ctx is done. The parent directory is watched so editors
// that replace the file by rename are still picked up.
func (w *Watcher) Run(ctx context.Context) error {
	logCtx := logging.WithAttrs(
		logging.WithComponent(ctx, "infrastructure.rulesfile"),
		slog.String("path", w.path),
	)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errs.Wrap(err, "create fs watcher")
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return errs.Wrapf(err, "watch directory of %q", w.path)
	}
	logging.Info(logCtx, "watching rules file")

	timer := time.NewTimer(w.settle)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.settle)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logging.Warn(logCtx, "rules watcher error", slog.Any("err", errs.Loggable(err)))
		case <-timer.C:
			w.reload(logCtx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	rules, err := domainpayment.LoadRules(w.path)
	if err != nil {
		logging.Warn(ctx, "reload rules failed, keeping previous rules", slog.Any("err", errs.Loggable(err)))
		return
	}
	w.apply(rules)
	logging.Info(ctx, "rules reloaded", slog.Int("amount_rules", len(rules.AmountRules())))
}
