package version

// Version is overridden at link time with -ldflags "-X .../internal/version.Version=...".
var Version = "1.5.0"

const PackageName = "clusterdock"
