package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"signal-backtest-lab/internal/domain"
	"signal-backtest-lab/internal/idhash"
	"signal-backtest-lab/internal/storage"
)

// Manager stores extracted signals under named sessions.
// Re-importing the same signals is a no-op: signal IDs are deterministic
// and already stored IDs are skipped.
type Manager struct {
	sessionStore storage.SessionStore
	signalStore  storage.SignalStore
	logger       *zap.Logger
	now          func() time.Time
}

// ManagerOptions contains configuration for creating a Manager.
type ManagerOptions struct {
	SessionStore storage.SessionStore
	SignalStore  storage.SignalStore
	Logger       *zap.Logger
	Now          func() time.Time // defaults to time.Now
}

// NewManager creates a new ingestion manager.
func NewManager(opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		sessionStore: opts.SessionStore,
		signalStore:  opts.SignalStore,
		logger:       logger,
		now:          func() time.Time { return now().UTC() },
	}
}

// IngestSession adds signals to the named session, creating it if needed.
// Returns the updated session and the number of newly stored signals.
// Nil entries are ignored.
func (m *Manager) IngestSession(ctx context.Context, name string, signals []*domain.PricedSignal) (*domain.Session, int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, 0, fmt.Errorf("%w: empty session name", storage.ErrInvalidInput)
	}

	sess, err := m.ensureSession(ctx, name)
	if err != nil {
		return nil, 0, err
	}

	existing, err := m.signalStore.GetBySession(ctx, sess.SessionID)
	if err != nil {
		return nil, 0, fmt.Errorf("load signals of %s: %w", name, err)
	}
	stored := make(map[string]bool, len(existing)) // signal_id -> has window
	for _, ps := range existing {
		stored[ps.Signal.SignalID] = ps.Window != nil
	}

	seen := make(map[string]struct{}, len(signals))
	fresh := make([]*domain.PricedSignal, 0, len(signals))
	priced, duplicates, invalid := 0, 0, 0
	for _, ps := range signals {
		if ps == nil {
			invalid++
			continue
		}
		c := withIDs(ps, sess.SessionID)
		id := c.Signal.SignalID
		if _, dup := seen[id]; dup {
			duplicates++
			continue
		}
		seen[id] = struct{}{}

		hasWindow, exists := stored[id]
		if !exists {
			fresh = append(fresh, c)
			continue
		}
		// A later priced import fills windows of stored signals.
		if !hasWindow && c.Window != nil {
			if err := m.signalStore.SetWindow(ctx, id, *c.Window); err != nil {
				return nil, 0, fmt.Errorf("attach window to %s: %w", id, err)
			}
			priced++
			continue
		}
		duplicates++
	}
	SortPricedSignals(fresh)

	if err := m.signalStore.InsertBulk(ctx, fresh); err != nil {
		return nil, 0, fmt.Errorf("store signals of %s: %w", name, err)
	}

	count := len(existing) + len(fresh)
	if err := m.sessionStore.UpdateStats(ctx, sess.SessionID, count, m.now()); err != nil {
		return nil, 0, fmt.Errorf("update session %s: %w", name, err)
	}

	m.logger.Info("session ingested",
		zap.String("session", name),
		zap.Int("new_signals", len(fresh)),
		zap.Int("windows_attached", priced),
		zap.Int("skipped_duplicates", duplicates),
		zap.Int("skipped_invalid", invalid),
		zap.Int("signal_count", count),
	)

	sess, err = m.sessionStore.GetByID(ctx, sess.SessionID)
	if err != nil {
		return nil, 0, fmt.Errorf("reload session %s: %w", name, err)
	}
	return sess, len(fresh), nil
}

// ensureSession returns the named session, creating it when absent.
func (m *Manager) ensureSession(ctx context.Context, name string) (*domain.Session, error) {
	sess, err := m.sessionStore.GetByName(ctx, name)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load session %s: %w", name, err)
	}

	now := m.now()
	sess = &domain.Session{
		SessionID: uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := m.sessionStore.Insert(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session %s: %w", name, err)
	}
	return sess, nil
}

// withIDs returns a copy of ps bound to sessionID with its signal ID computed.
func withIDs(ps *domain.PricedSignal, sessionID string) *domain.PricedSignal {
	c := &domain.PricedSignal{Signal: ps.Signal}
	if ps.Window != nil {
		w := *ps.Window
		c.Window = &w
	}
	c.Signal.SessionID = sessionID
	c.Signal.SignalID = idhash.ComputeSignalID(
		sessionID,
		c.Signal.Coin,
		c.Signal.Direction,
		c.Signal.Timestamp.UnixMilli(),
		c.Signal.RawMessage,
	)
	return c
}

// ImportDir loads every *.csv file of dir as a session named after the file.
// Files are processed in name order; the first invalid file stops the import.
func (m *Manager) ImportDir(ctx context.Context, dir string) ([]*domain.Session, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	sort.Strings(paths)

	var sessions []*domain.Session
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return sessions, err
		}

		sess, err := m.importFile(ctx, path)
		if err != nil {
			return sessions, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func (m *Manager) importFile(ctx context.Context, path string) (*domain.Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	signals, err := ReadSessionCSV(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	sess, _, err := m.IngestSession(ctx, name, signals)
	return sess, err
}
