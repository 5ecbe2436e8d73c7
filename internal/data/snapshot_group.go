package data

import (
	"sort"
	"strings"

	"github.com/jLantxa/mapache-sub000/internal/errors"
)

// SnapshotGroupByOptions determines how a collection of snapshots should be
// partitioned before a policy is applied independently to each partition.
type SnapshotGroupByOptions struct {
	Host bool
	Path bool
	Tag  bool
}

// Set parses a comma-separated list of grouping criteria. Both singular and
// plural forms are accepted (host/hosts, path/paths, tag/tags).
func (o *SnapshotGroupByOptions) Set(s string) error {
	var opts SnapshotGroupByOptions

	if s == "" {
		*o = opts
		return nil
	}

	for _, part := range strings.Split(s, ",") {
		switch part {
		case "host", "hosts":
			opts.Host = true
		case "path", "paths":
			opts.Path = true
		case "tag", "tags":
			opts.Tag = true
		default:
			return errors.Errorf("unknown grouping option %q", part)
		}
	}

	*o = opts
	return nil
}

// String returns the normalized, plural, comma-separated form of o.
func (o SnapshotGroupByOptions) String() string {
	var parts []string
	if o.Host {
		parts = append(parts, "host")
	}
	if o.Path {
		parts = append(parts, "paths")
	}
	if o.Tag {
		parts = append(parts, "tags")
	}
	return strings.Join(parts, ",")
}

// Type implements pflag.Value.
func (o SnapshotGroupByOptions) Type() string {
	return "snapshot-group-by"
}

// SnapshotGroupKey identifies one partition produced by grouping snapshots;
// it is comparable so it can be used as a map key.
type SnapshotGroupKey struct {
	Hostname string
	Paths    string
	Tags     string
}

// GroupSnapshots partitions list by the criteria in opts. When no criterion
// is set, every snapshot falls into a single group with a zero key.
func GroupSnapshots(list Snapshots, opts SnapshotGroupByOptions) map[SnapshotGroupKey]Snapshots {
	groups := make(map[SnapshotGroupKey]Snapshots)

	for _, sn := range list {
		var key SnapshotGroupKey
		if opts.Host {
			key.Hostname = sn.Hostname
		}
		if opts.Path {
			paths := append([]string{}, sn.Paths...)
			sort.Strings(paths)
			key.Paths = strings.Join(paths, "\x00")
		}
		if opts.Tag {
			tags := append([]string{}, sn.Tags...)
			sort.Strings(tags)
			key.Tags = strings.Join(tags, "\x00")
		}

		groups[key] = append(groups[key], sn)
	}

	return groups
}
