package data

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/jLantxa/mapache-sub000/internal/errors"
	"github.com/jLantxa/mapache-sub000/internal/objects"
)

// Snapshot is the state of a file or directory tree as recorded by a single
// backup run.
type Snapshot struct {
	Time     time.Time   `json:"time"`
	Parent   *objects.ID `json:"parent,omitempty"`
	Tree     *objects.ID `json:"tree"`
	Paths    []string    `json:"paths"`
	Hostname string      `json:"hostname,omitempty"`
	Username string      `json:"username,omitempty"`
	UID      uint32      `json:"uid,omitempty"`
	GID      uint32      `json:"gid,omitempty"`
	Excludes []string    `json:"excludes,omitempty"`
	Tags     []string    `json:"tags,omitempty"`

	// Original is set to the ID of a snapshot this one replaced, after an
	// in-place amend (e.g. --tag or --host edits) rewrote the manifest.
	Original *objects.ID `json:"original,omitempty"`

	ProgramVersion string `json:"program_version,omitempty"`

	id *objects.ID
}

// NewSnapshot returns a new snapshot for the given paths.
func NewSnapshot(paths []string, tags []string, hostname string, time time.Time) (*Snapshot, error) {
	absPaths := make([]string, 0, len(paths))
	for _, path := range paths {
		p, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		absPaths = append(absPaths, p)
	}

	return &Snapshot{
		Paths:    absPaths,
		Time:     time,
		Tags:     tags,
		Hostname: hostname,
	}, nil
}

func (sn Snapshot) String() string {
	id := "<no id>"
	if sn.id != nil {
		id = sn.id.Str()
	}
	return fmt.Sprintf("<Snapshot %s of %v at %s by %s@%s>",
		id, sn.Paths, sn.Time, sn.Username, sn.Hostname)
}

// ID returns the snapshot's ID, or nil if the snapshot has not been loaded
// from or saved to a repository yet.
func (sn *Snapshot) ID() *objects.ID {
	return sn.id
}

// HasPaths returns true if the snapshot has all of the given paths.
func (sn *Snapshot) HasPaths(paths []string) bool {
	for _, path := range paths {
		found := false
		for _, snPath := range sn.Paths {
			if path == snPath {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// HasTags returns true if the snapshot has all of the given tags. An empty
// string in tags matches a snapshot carrying no tags at all.
func (sn *Snapshot) HasTags(tags []string) bool {
	for _, tag := range tags {
		if tag == "" && len(sn.Tags) == 0 {
			continue
		}

		found := false
		for _, snTag := range sn.Tags {
			if tag == snTag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// TagList is a set of tags that must all be present (AND) for a snapshot to
// match.
type TagList []string

// TagLists is a list of TagList; a snapshot matches if it satisfies any one
// of them (OR).
type TagLists []TagList

// HasTagList returns true if the snapshot matches any of the given TagLists,
// or if l is empty.
func (sn *Snapshot) HasTagList(l TagLists) bool {
	if len(l) == 0 {
		return true
	}

	for _, tags := range l {
		if sn.HasTags(tags) {
			return true
		}
	}

	return false
}

// HasHostname returns true if the snapshot's hostname is in hostnames, or if
// hostnames is empty.
func (sn *Snapshot) HasHostname(hostnames []string) bool {
	if len(hostnames) == 0 {
		return true
	}

	for _, hostname := range hostnames {
		if sn.Hostname == hostname {
			return true
		}
	}

	return false
}

// Snapshots is a list of snapshots, sortable by time.
type Snapshots []*Snapshot

func (s Snapshots) Len() int           { return len(s) }
func (s Snapshots) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s Snapshots) Less(i, j int) bool { return s[i].Time.Before(s[j].Time) }

// LoadSnapshot loads the snapshot with the given id.
func LoadSnapshot(ctx context.Context, loader objects.LoaderUnpacked, id objects.ID) (*Snapshot, error) {
	buf, err := loader.LoadUnpacked(ctx, objects.SnapshotFile, id)
	if err != nil {
		return nil, err
	}

	sn := &Snapshot{id: &id}
	if err := json.Unmarshal(buf, sn); err != nil {
		return nil, errors.Wrap(err, "Unmarshal")
	}

	return sn, nil
}

// SaveSnapshot saves the snapshot sn and returns its ID.
func SaveSnapshot(ctx context.Context, saver objects.LoaderUnpacked, sn *Snapshot) (objects.ID, error) {
	buf, err := json.Marshal(sn)
	if err != nil {
		return objects.ID{}, errors.Wrap(err, "Marshal")
	}

	id, err := saver.SaveUnpacked(ctx, objects.SnapshotFile, buf)
	if err != nil {
		return objects.ID{}, err
	}

	sn.id = &id
	return id, nil
}

// ForAllSnapshots reads all snapshots and calls fn for each, in unspecified
// order. If a snapshot ID is in excludeIDs, it is skipped. If fn returns an
// error, that error is returned from ForAllSnapshots and processing stops.
func ForAllSnapshots(ctx context.Context, be objects.Lister, loader objects.LoaderUnpacked, excludeIDs objects.IDSet, fn func(objects.ID, *Snapshot, error) error) error {
	for name := range be.List(ctx, objects.SnapshotFile) {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		id, err := objects.ParseID(name)
		if err != nil {
			if err := fn(id, nil, err); err != nil {
				return err
			}
			continue
		}

		if excludeIDs.Has(id) {
			continue
		}

		sn, err := LoadSnapshot(ctx, loader, id)
		if err := fn(id, sn, err); err != nil {
			return err
		}
	}

	return nil
}
