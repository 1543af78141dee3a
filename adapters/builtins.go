package adapters

import (
	"net/http"
	"os"
	"time"
)

// NOTE: If build bloat becomes a concern for unused backends
// look into build tags i.e. +build !nohttp

type BuiltInType = string

const (
	RawType   BuiltInType = "raw"
	FileType  BuiltInType = "file"
	HTTPType  BuiltInType = "http"
	HTTPSType BuiltInType = "https"
)

// Options configures the built-in providers. Zero values fall back to
// http.DefaultClient, time.Now() and the process uid/gid.
type Options struct {
	HTTPClient HTTPClient
	MountTime  time.Time
	Uid        *uint32
	Gid        *uint32
}

// RegisterBuiltins registers all built-in providers by default
// or only the specific ones if types are provided
func RegisterBuiltins(r *Registry, opts Options, types ...BuiltInType) {
	if len(types) == 0 {
		types = []BuiltInType{RawType, FileType, HTTPType, HTTPSType}
	}

	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	mountTime := opts.MountTime
	if mountTime.IsZero() {
		mountTime = time.Now()
	}
	uid := uint32(os.Getuid())
	if opts.Uid != nil {
		uid = *opts.Uid
	}
	gid := uint32(os.Getgid())
	if opts.Gid != nil {
		gid = *opts.Gid
	}

	for _, key := range types {
		switch key {
		case RawType:
			r.Register(RawType, &RawProvider{MountTime: mountTime, Uid: uid, Gid: gid})
		case FileType:
			r.Register(FileType, &LocalProvider{})
		case HTTPType, HTTPSType:
			r.Register(key, NewHTTPProvider(client, key, uid, gid))
		}
	}
}
