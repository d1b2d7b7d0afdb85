// internal/store/memory.go
package store

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/varga-labs/sherpa-cli/api/schemas"
)

// MemoryStore is the in-process RunStore used for local runs and tests.
type MemoryStore struct {
	mu      sync.Mutex
	logger  *zap.Logger
	runs    map[string]*memoryRun
	tokens  map[string]string // userID/service -> token
	models  map[string]string // userID/tier -> model
	signals map[string]*schemas.RunSignals
}

type memoryRun struct {
	userID string
	status schemas.RunStatus
	log    []schemas.RunLogEntry
}

var _ RunStore = (*MemoryStore)(nil)

func NewMemoryStore(logger *zap.Logger) *MemoryStore {
	return &MemoryStore{
		logger:  logger.Named("store"),
		runs:    make(map[string]*memoryRun),
		tokens:  make(map[string]string),
		models:  make(map[string]string),
		signals: make(map[string]*schemas.RunSignals),
	}
}

func (m *MemoryStore) CreateRun(_ context.Context, runID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.runs[runID]; exists {
		return fmt.Errorf("run %s already exists", runID)
	}
	m.runs[runID] = &memoryRun{userID: userID, status: schemas.RunPending}
	return nil
}

func (m *MemoryStore) SetStatus(_ context.Context, runID string, status schemas.RunStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return fmt.Errorf("unknown run %s", runID)
	}
	run.status = status
	return nil
}

// Status is a test and CLI convenience over the run table.
func (m *MemoryStore) Status(runID string) (schemas.RunStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return "", false
	}
	return run.status, true
}

func (m *MemoryStore) AppendLog(_ context.Context, entry schemas.RunLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[entry.RunID]
	if !ok {
		return fmt.Errorf("unknown run %s", entry.RunID)
	}
	run.log = append(run.log, entry)
	return nil
}

// Log returns a copy of the run's event log.
func (m *MemoryStore) Log(runID string) []schemas.RunLogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil
	}
	out := make([]schemas.RunLogEntry, len(run.log))
	copy(out, run.log)
	return out
}

func (m *MemoryStore) PollSignals(_ context.Context, runID string) (schemas.RunSignals, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sig, ok := m.signals[runID]
	if !ok {
		return schemas.RunSignals{}, nil
	}
	out := *sig
	// A redirect fires once; cancellation is sticky.
	sig.RedirectInstruction = ""
	return out, nil
}

// RequestCancel flags the run for cooperative cancellation.
func (m *MemoryStore) RequestCancel(runID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureSignals(runID).CancelRequested = true
}

// Redirect queues a one-shot redirect instruction for the run.
func (m *MemoryStore) Redirect(runID, instruction string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensureSignals(runID).RedirectInstruction = instruction
}

func (m *MemoryStore) ensureSignals(runID string) *schemas.RunSignals {
	sig, ok := m.signals[runID]
	if !ok {
		sig = &schemas.RunSignals{}
		m.signals[runID] = sig
	}
	return sig
}

func (m *MemoryStore) AccessToken(_ context.Context, userID, service string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[userID+"/"+service], nil
}

// SetAccessToken stores a service token for a user.
func (m *MemoryStore) SetAccessToken(userID, service, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[userID+"/"+service] = token
}

func (m *MemoryStore) FineTunedModel(_ context.Context, userID, tier string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.models[userID+"/"+tier], nil
}

// SetFineTunedModel stores a tuned model override for a user and tier.
func (m *MemoryStore) SetFineTunedModel(userID, tier, model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.models[userID+"/"+tier] = model
}

func (m *MemoryStore) Close() {}
