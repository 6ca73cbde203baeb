package checkpoint

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/research-orchestrator/internal/model"
)

// Store persists checkpoint files, one per project, under a base directory.
type Store struct {
	dir string
}

// NewStore creates the checkpoint directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "checkpoint: create dir")
	}
	return &Store{dir: dir}, nil
}

// Path returns the checkpoint file path for a project.
func (s *Store) Path(projectID string) string {
	return filepath.Join(s.dir, projectID+".md")
}

// Save encodes and writes the checkpoint atomically: the new content lands
// in a temp file which replaces the old checkpoint only on a full write, so
// a failure mid-stage never clobbers the last good snapshot.
func (s *Store) Save(state *model.ResearchState) error {
	data, err := Encode(state)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, state.ProjectID+".*.tmp")
	if err != nil {
		return eris.Wrap(err, "checkpoint: create temp")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return eris.Wrap(err, "checkpoint: write temp")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "checkpoint: close temp")
	}

	if err := os.Rename(tmpName, s.Path(state.ProjectID)); err != nil {
		return eris.Wrap(err, "checkpoint: rename")
	}
	return nil
}

// Load reads and decodes the checkpoint for a project. A missing file
// returns (nil, nil) so callers can distinguish "no checkpoint yet" from a
// corrupt one.
func (s *Store) Load(projectID string) (*model.ResearchState, error) {
	data, err := os.ReadFile(s.Path(projectID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "checkpoint: read %s", projectID)
	}
	return Decode(data)
}

// Raw returns the current checkpoint bytes for a project, or nil when no
// checkpoint exists.
func (s *Store) Raw(projectID string) ([]byte, error) {
	data, err := os.ReadFile(s.Path(projectID))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "checkpoint: read %s", projectID)
	}
	return data, nil
}
