package config

// MountOptions holds high-level settings for mounting.
// No go-fuse types are exposed here.
type MountOptions struct {
	Debug      bool   // fuse debug logs
	FsName     string `validate:"required"` // mount's FsName (first column of /proc/mounts)
	Name       string `validate:"required"` // mount's Name (filesystem type suffix, fuse.<Name>)
	AllowOther bool   // let users other than the mounting user access the tree; needs user_allow_other
}
