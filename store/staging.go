package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sevigo/gwdata/schema"
)

// Staging keeps a temporary dataset, produced by a download and still open to
// renaming, apart from the committed dataset that the rest of the
// application reads. The only path into committed is CommitTempDS.
type Staging struct {
	// mu orders staging writes against commits so a commit always pairs a
	// dataset with the name that was current at the same moment.
	mu sync.Mutex

	temporary     *Value[schema.TabularDataset]
	temporaryName *Value[string]
	committed     *Value[schema.Snapshot]

	now    func() time.Time
	logger *slog.Logger
}

func NewStaging(logger *slog.Logger) *Staging {
	if logger == nil {
		logger = slog.Default()
	}
	return &Staging{
		temporary:     NewValue(schema.TabularDataset{}),
		temporaryName: NewValue(""),
		committed:     NewValue(schema.Snapshot{}),
		now:           time.Now,
		logger:        logger.With("component", "staging"),
	}
}

// UpdateTempDS replaces the temporary dataset wholesale.
func (s *Staging) UpdateTempDS(ds schema.TabularDataset) {
	ds = ds.Clone()
	s.mu.Lock()
	listeners := s.temporary.store(ds)
	s.mu.Unlock()

	s.temporary.notify(ds, listeners)
}

func (s *Staging) UpdateTempName(name string) {
	s.mu.Lock()
	listeners := s.temporaryName.store(name)
	s.mu.Unlock()

	s.temporaryName.notify(name, listeners)
}

// CommitTempDS promotes a copy of the temporary dataset and its name to the
// committed slot. Committing an empty dataset is allowed; callers that want a
// guard check CanCommit first.
func (s *Staging) CommitTempDS() schema.Snapshot {
	s.mu.Lock()
	snapshot := schema.Snapshot{
		ID:          uuid.NewString(),
		Name:        s.temporaryName.Get(),
		Dataset:     s.temporary.Get().Clone(),
		CommittedAt: s.now(),
	}
	listeners := s.committed.store(snapshot)
	s.mu.Unlock()

	s.logger.Info("Dataset committed",
		"snapshot_id", snapshot.ID,
		"name", snapshot.Name,
		"rows", snapshot.Dataset.Len(),
		"fields", len(snapshot.Dataset.Fields),
	)
	s.committed.notify(snapshot, listeners)
	return snapshot
}

// ResetTemporary discards the staged dataset and its name.
func (s *Staging) ResetTemporary() {
	s.mu.Lock()
	dsListeners := s.temporary.store(schema.TabularDataset{})
	nameListeners := s.temporaryName.store("")
	s.mu.Unlock()

	s.temporary.notify(schema.TabularDataset{}, dsListeners)
	s.temporaryName.notify("", nameListeners)
}

// CanCommit reports whether the temporary dataset has both rows and fields.
func (s *Staging) CanCommit() bool {
	return !s.temporary.Get().IsEmpty()
}

// Temporary returns a copy of the staged dataset.
func (s *Staging) Temporary() schema.TabularDataset {
	return s.temporary.Get().Clone()
}

func (s *Staging) TemporaryName() string {
	return s.temporaryName.Get()
}

// Committed returns the current snapshot. The zero Snapshot means nothing has
// been committed yet.
func (s *Staging) Committed() schema.Snapshot {
	snap := s.committed.Get()
	snap.Dataset = snap.Dataset.Clone()
	return snap
}

func (s *Staging) SubscribeTemporary(fn func(schema.TabularDataset)) func() {
	return s.temporary.Subscribe(fn)
}

func (s *Staging) SubscribeTemporaryName(fn func(string)) func() {
	return s.temporaryName.Subscribe(fn)
}

// SubscribeCommitted notifies fn with every new snapshot. Consumers holding
// derived state should rebuild it from the snapshot they receive.
func (s *Staging) SubscribeCommitted(fn func(schema.Snapshot)) func() {
	return s.committed.Subscribe(fn)
}
