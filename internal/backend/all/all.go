package all

import (
	"github.com/jLantxa/mapache-sub000/internal/backend/local"
	"github.com/jLantxa/mapache-sub000/internal/backend/location"
	"github.com/jLantxa/mapache-sub000/internal/backend/sftp"
)

// Backends returns a registry populated with every storage backend this
// build supports.
func Backends() *location.Registry {
	backends := location.NewRegistry()
	backends.Register(local.NewFactory())
	backends.Register(sftp.NewFactory())
	return backends
}
