package server

import (
	"fmt"
	"net/http"

	"github.com/brettbedarf/manifestfs/adapters"
	"github.com/brettbedarf/manifestfs/config"
	"github.com/brettbedarf/manifestfs/filesystem"
	mfuse "github.com/brettbedarf/manifestfs/fuse"
	"github.com/brettbedarf/manifestfs/internal/util"
	"github.com/brettbedarf/manifestfs/manifest"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// ManifestFs contains the core filesystem state and operations with abstractions
// over the underlying FUSE wire protocol implementation
type ManifestFs struct {
	*filesystem.FileSystem
	cfg    *config.Config
	server *fuse.Server
}

// New wraps an already built filesystem for serving
func New(fs *filesystem.FileSystem) *ManifestFs {
	return &ManifestFs{
		FileSystem: fs,
		cfg:        fs.Config(),
	}
}

// NewRegistry returns a registry with every builtin descriptor type. Network
// backends share one client bounded by cfg.HTTPTimeout.
func NewRegistry(cfg *config.Config) *adapters.Registry {
	r := adapters.NewRegistry()
	adapters.RegisterBuiltins(r, adapters.Options{
		HTTPClient: &http.Client{Timeout: cfg.HTTPTimeoutDuration()},
	})
	return r
}

// Load reads the manifest at manifestPath and builds a ManifestFs from it.
// Any malformed entry fails the whole load; nothing is mounted.
func Load(cfg *config.Config, manifestPath string) (*ManifestFs, error) {
	logger := util.GetLogger("Load")

	v, err := manifest.ReadFile(manifestPath)
	if err != nil {
		return nil, err
	}
	fs, err := filesystem.Load(cfg, v, NewRegistry(cfg))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", manifestPath, err)
	}
	logger.Info().Str("manifest", manifestPath).Int("nodes", fs.Index().Len()).Msg("Manifest loaded")
	return New(fs), nil
}

// Serve mounts and serves the filesystem read-only at the given mountPoint.
// It returns once the mount is ready; requests are served in the background.
func (fs *ManifestFs) Serve(mountPoint string) error {
	raw := mfuse.NewFuseRaw(fs.FileSystem)
	opts := fs.cfg.MountOptions
	slogger := util.NewLogLogger("FuseServer", util.DebugLevel)
	srv, err := fuse.NewServer(raw, mountPoint, &fuse.MountOptions{
		Name:       opts.Name,
		FsName:     opts.FsName,
		AllowOther: opts.AllowOther,
		Debug:      opts.Debug || fs.cfg.LogLvl == util.TraceLevel,
		Logger:     slogger,
		Options:    []string{"ro"},
	})
	if err != nil {
		return err
	}
	fs.server = srv

	go srv.Serve()
	return srv.WaitMount()
}

// Wait blocks until the filesystem is unmounted
func (fs *ManifestFs) Wait() {
	if fs.server != nil {
		fs.server.Wait()
	}
}

// Unmount cleanly unmounts the filesystem.
func (fs *ManifestFs) Unmount() error {
	if fs.server == nil {
		return nil
	}
	return fs.server.Unmount()
}
