package main

type Var string

// Target is a user task: shell commands run in order after its deps.
type Target struct {
	Run             []string `yaml:"run"`
	Deps            []string `yaml:"deps"`
	Onerror         string   `yaml:"onerror"`
	ContinueOnError bool     `yaml:"continue_on_error"`
}

// ToolsConfig overrides the executable names searched by the probe.
type ToolsConfig struct {
	Cache      string   `yaml:"cache"`
	Linkers    []string `yaml:"linkers"`
	Driver     string   `yaml:"driver"`
	LiveReload string   `yaml:"live_reload"`
	Watcher    string   `yaml:"watcher"`
}

type TestConfig struct {
	LogVar    string `yaml:"log_var"`
	LogLevel  string `yaml:"log_level"`
	Backtrace string `yaml:"backtrace"`
	Jobs      int    `yaml:"jobs"`
}

type MiriConfig struct {
	Package   string   `yaml:"package"`
	TotalJobs int      `yaml:"total_jobs"`
	Features  []string `yaml:"features"`
	Flags     []string `yaml:"flags"`
}

type DocConfig struct {
	Crate string `yaml:"crate"`
}

type ReleaseConfig struct {
	ChangelogConfig string `yaml:"changelog_config"`
	Changelog       string `yaml:"changelog"`
}

type Config struct {
	ContinueOnError bool              `yaml:"continue_on_error"`
	Includes        []string          `yaml:"include"`
	Vars            map[string]Var    `yaml:"vars"`
	Tools           ToolsConfig       `yaml:"tools"`
	Test            TestConfig        `yaml:"test"`
	Miri            MiriConfig        `yaml:"miri"`
	Doc             DocConfig         `yaml:"doc"`
	Release         ReleaseConfig     `yaml:"release"`
	Prologue        Target            `yaml:"prologue"`
	Targets         map[string]Target `yaml:"targets"`
	Epilogue        Target            `yaml:"epilogue"`
}
