package entities

// Pipeline is the root of a crucible.yml / crucible.toml file
type Pipeline struct {
	ProjectName string
	Dist        string
	Matrix      MatrixConfig
	Provision   ProvisionConfig
	Release     ReleaseConfig
}

// MatrixConfig describes how test names become jobs
type MatrixConfig struct {
	Tests          []string
	Command        string // text/template rendered per test, e.g. "spread -v {{ quote .Name }}"
	Concurrency    int    // 0 = unbounded
	TimeoutMinutes int    // 0 = no per-job timeout
	Env            map[string]string
}

// ProvisionConfig describes the environment prepared before each job
type ProvisionConfig struct {
	Packages    []string // distribution packages installed with the host package manager
	Environment string   // declarative dependency environment installer
	Runtime     string   // container/VM runtime setup
	WorkingDir  string
}

// Empty reports whether there is nothing to provision
func (p ProvisionConfig) Empty() bool {
	return len(p.Packages) == 0 && p.Environment == "" && p.Runtime == ""
}

// ReleaseConfig holds every release stage
type ReleaseConfig struct {
	Toolchain ToolchainConfig
	Build     BuildConfig
	Archive   ArchiveConfig
	Checksum  ChecksumConfig
	Sign      SignConfig
	Snapshot  SnapshotConfig
	Changelog ChangelogConfig
	Footer    string
	// Prerelease is "auto", "true" or "false"
	Prerelease string
}

// ToolchainConfig pins the compiler before building
type ToolchainConfig struct {
	Version string
	Command string // e.g. "rustup default {{ .Version }}"
}

// BuildConfig describes the cross-compilation step
type BuildConfig struct {
	Binary         string
	Command        string // e.g. "cross build --release --target {{ .Target.Triple }}"
	Output         string // e.g. "target/{{ .Target.Triple }}/release/{{ .Binary }}"
	Targets        []BuildTarget
	Parallelism    int
	TimeoutMinutes int
	Env            map[string]string
}

// ArchiveConfig describes how build outputs are packaged
type ArchiveConfig struct {
	Format       string
	NameTemplate string
	Files        []string
}

// ChecksumConfig describes the checksum manifest
type ChecksumConfig struct {
	NameTemplate string
	Algorithm    string // sha256 or sha512
}

// SignConfig describes OpenPGP signing of the checksum manifest
type SignConfig struct {
	KeyFile       string
	PassphraseEnv string
}

// Enabled reports whether signing was configured
func (s SignConfig) Enabled() bool {
	return s.KeyFile != ""
}

// SnapshotConfig describes provisional versions for untagged builds
type SnapshotConfig struct {
	VersionTemplate string
}

// ChangelogConfig describes release note filtering
type ChangelogConfig struct {
	Sort    string   // asc or desc
	Exclude []string // subject prefixes
	Disable bool
}
