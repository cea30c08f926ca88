package session

import (
	"encoding/json"
	"fmt"

	"github.com/pivotlens/pivotlens/internal/ai"
	"github.com/pivotlens/pivotlens/internal/conversation"
	"github.com/pivotlens/pivotlens/internal/dataset"
	"github.com/pivotlens/pivotlens/internal/pivot"
	"github.com/pivotlens/pivotlens/internal/storage"
	"github.com/pivotlens/pivotlens/internal/table"
)

// snapshot is the persisted form of a session. Engines are rebuilt lazily on
// load; only data survives a restart.
type snapshot struct {
	ID       string                            `json:"id"`
	Datasets []datasetSnapshot                 `json:"datasets"`
	Views    []viewSnapshot                    `json:"views"`
	Logs     map[string][]conversation.Message `json:"logs"`
}

type datasetSnapshot struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	Table       *table.Table          `json:"table"`
	Kinds       map[string]table.Kind `json:"kinds"`
	Description string                `json:"description,omitempty"`
}

type viewSnapshot struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Source string       `json:"source"`
	Spec   pivot.Spec   `json:"spec"`
	Result *table.Table `json:"result"`
}

// Save serializes the session into the blob store under its ID.
func (s *Session) Save(store storage.BlobStore) error {
	snap := snapshot{
		ID:   s.ID,
		Logs: make(map[string][]conversation.Message, len(s.logs)),
	}
	for _, ds := range s.Registry.List() {
		snap.Datasets = append(snap.Datasets, datasetSnapshot{
			ID:          ds.ID,
			Name:        ds.Name,
			Table:       ds.Table,
			Kinds:       ds.Kinds,
			Description: ds.Description,
		})
	}
	for _, id := range s.viewOrder {
		v := s.views[id]
		snap.Views = append(snap.Views, viewSnapshot{
			ID:     v.ID,
			Name:   v.Name,
			Source: v.Source,
			Spec:   v.Spec,
			Result: v.Result,
		})
		snap.Logs[id] = s.logs[id].Messages()
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	return store.Store(s.ID, data)
}

// SaveRaw stores the original uploaded bytes for a dataset. The raw file is
// kept alongside the session snapshot so an ingest can be replayed later.
func SaveRaw(store storage.BlobStore, datasetID string, data []byte) error {
	return store.Store(rawKey(datasetID), data)
}

// LoadRaw retrieves the original uploaded bytes for a dataset.
func LoadRaw(store storage.BlobStore, datasetID string) ([]byte, error) {
	return store.Load(rawKey(datasetID))
}

func rawKey(datasetID string) string { return "raw-" + datasetID }

// Load restores a session previously written with Save. The LLM client is
// supplied fresh; it is never persisted.
func Load(store storage.BlobStore, id string, llm ai.Completer) (*Session, error) {
	data, err := store.Load(id)
	if err != nil {
		return nil, err
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}

	s := New(llm)
	s.ID = snap.ID
	for _, d := range snap.Datasets {
		s.Registry.Put(&dataset.Dataset{
			ID:          d.ID,
			Name:        d.Name,
			Table:       d.Table,
			Kinds:       d.Kinds,
			Description: d.Description,
		})
	}
	for _, v := range snap.Views {
		view := &pivot.View{
			ID:     v.ID,
			Name:   v.Name,
			Source: v.Source,
			Spec:   v.Spec,
			Result: v.Result,
		}
		s.addView(view)
		log := s.logs[view.ID]
		for _, m := range snap.Logs[view.ID] {
			log.Append(m)
		}
	}
	return s, nil
}
