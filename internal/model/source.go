package model

import "context"

// SnapshotSource 提供当前配置快照。每次渲染都重新取一次，以便外部编辑即时生效。
type SnapshotSource interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// FileSource reads the snapshot from a YAML or JSON file on every call.
type FileSource struct {
	Path string
}

func (f FileSource) Snapshot(_ context.Context) (*Snapshot, error) {
	return LoadSnapshot(f.Path)
}

// StaticSource always returns the same snapshot.
type StaticSource struct {
	Snap *Snapshot
}

func (s StaticSource) Snapshot(_ context.Context) (*Snapshot, error) {
	if s.Snap == nil {
		return nil, ErrEmptySnapshot
	}
	return s.Snap, nil
}
