// Package runinfo describes where an evaluation run executed.
package runinfo

import (
	"os"
	"regexp"
	"strings"
)

// EnvPrefix prefixes the explicit overrides, e.g. VQLBENCH_CI_COMMIT.
const EnvPrefix = "VQLBENCH_CI"

var githubPullRefPattern = regexp.MustCompile(`^refs/pull/([0-9]+)/`)

// BasicInfo captures CI metadata and the evaluated system for run.json.
type BasicInfo struct {
	CI          bool   `json:"ci,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Repository  string `json:"repository,omitempty"`
	Branch      string `json:"branch,omitempty"`
	Commit      string `json:"commit,omitempty"`
	Workflow    string `json:"workflow,omitempty"`
	Job         string `json:"job,omitempty"`
	RunID       string `json:"run_id,omitempty"`
	RunNumber   string `json:"run_number,omitempty"`
	Event       string `json:"event,omitempty"`
	PullRequest string `json:"pull_request,omitempty"`
	Actor       string `json:"actor,omitempty"`
	BuildURL    string `json:"build_url,omitempty"`
	// System names the text-to-VQL system whose output is being scored.
	System string `json:"system,omitempty"`
	Host   string `json:"host,omitempty"`
}

// field binds an environment suffix to a BasicInfo string field.
type field struct {
	suffix string
	get    func(*BasicInfo) *string
}

var fields = []field{
	{"PROVIDER", func(b *BasicInfo) *string { return &b.Provider }},
	{"REPOSITORY", func(b *BasicInfo) *string { return &b.Repository }},
	{"BRANCH", func(b *BasicInfo) *string { return &b.Branch }},
	{"COMMIT", func(b *BasicInfo) *string { return &b.Commit }},
	{"WORKFLOW", func(b *BasicInfo) *string { return &b.Workflow }},
	{"JOB", func(b *BasicInfo) *string { return &b.Job }},
	{"RUN_ID", func(b *BasicInfo) *string { return &b.RunID }},
	{"RUN_NUMBER", func(b *BasicInfo) *string { return &b.RunNumber }},
	{"EVENT", func(b *BasicInfo) *string { return &b.Event }},
	{"PULL_REQUEST", func(b *BasicInfo) *string { return &b.PullRequest }},
	{"ACTOR", func(b *BasicInfo) *string { return &b.Actor }},
	{"BUILD_URL", func(b *BasicInfo) *string { return &b.BuildURL }},
}

// genericSources lists fallback variables of other CI systems, first match wins.
var genericSources = map[string][]string{
	"PROVIDER":     {"CI_PROVIDER", "CI_SYSTEM"},
	"REPOSITORY":   {"CI_PROJECT_PATH", "BUILD_REPOSITORY_NAME"},
	"BRANCH":       {"CI_COMMIT_REF_NAME", "BRANCH_NAME", "GIT_BRANCH"},
	"COMMIT":       {"CI_COMMIT_SHA", "GIT_COMMIT", "BUILD_SOURCEVERSION"},
	"WORKFLOW":     {"CI_PIPELINE_SOURCE", "BUILD_DEFINITIONNAME"},
	"JOB":          {"CI_JOB_NAME", "JOB_NAME"},
	"RUN_ID":       {"CI_PIPELINE_ID", "BUILD_BUILDID", "BUILD_ID"},
	"RUN_NUMBER":   {"CI_PIPELINE_IID", "BUILD_BUILDNUMBER", "BUILD_NUMBER"},
	"EVENT":        {"CI_PIPELINE_SOURCE"},
	"PULL_REQUEST": {"SYSTEM_PULLREQUEST_PULLREQUESTNUMBER", "PR_NUMBER"},
	"ACTOR":        {"GITLAB_USER_LOGIN", "BUILD_REQUESTEDFOR"},
	"BUILD_URL":    {"CI_JOB_URL", "BUILD_URL", "BUILD_BUILDURI"},
}

// FromEnv builds run metadata from the environment, or nil when nothing is known.
// VQLBENCH_CI_* values take precedence over provider defaults.
func FromEnv() *BasicInfo {
	info := detectProvider()
	for _, f := range fields {
		setIfEmpty(f.get(&info), envFirst(genericSources[f.suffix]...))
	}
	applyOverrides(&info)
	normalize(&info)
	if info.IsZero() {
		return nil
	}
	if host, err := os.Hostname(); err == nil {
		info.Host = host
	}
	return &info
}

// IsZero reports whether no CI or system metadata was found.
func (b BasicInfo) IsZero() bool {
	if b.CI || b.System != "" {
		return false
	}
	for _, f := range fields {
		if *f.get(&b) != "" {
			return false
		}
	}
	return true
}

func detectProvider() BasicInfo {
	var info BasicInfo
	switch {
	case isTruthy(env("GITHUB_ACTIONS")):
		info = fromGitHub()
	case isTruthy(env("GITLAB_CI")):
		info = BasicInfo{CI: true, Provider: "gitlab_ci"}
	case isTruthy(env("BUILDKITE")):
		info = BasicInfo{CI: true, Provider: "buildkite"}
	case env("JENKINS_URL") != "":
		info = BasicInfo{CI: true, Provider: "jenkins"}
	}
	if isTruthy(env("CI")) {
		info.CI = true
	}
	return info
}

func fromGitHub() BasicInfo {
	info := BasicInfo{
		CI:          true,
		Provider:    "github_actions",
		Repository:  env("GITHUB_REPOSITORY"),
		Branch:      envFirst("GITHUB_HEAD_REF", "GITHUB_REF_NAME"),
		Commit:      env("GITHUB_SHA"),
		Workflow:    env("GITHUB_WORKFLOW"),
		Job:         env("GITHUB_JOB"),
		RunID:       env("GITHUB_RUN_ID"),
		RunNumber:   env("GITHUB_RUN_NUMBER"),
		Event:       env("GITHUB_EVENT_NAME"),
		Actor:       env("GITHUB_ACTOR"),
		PullRequest: env("GITHUB_PR_NUMBER"),
	}
	if info.Repository != "" && info.RunID != "" {
		server := envFirst("GITHUB_SERVER_URL")
		if server == "" {
			server = "https://github.com"
		}
		info.BuildURL = strings.TrimRight(server, "/") + "/" + info.Repository + "/actions/runs/" + info.RunID
	}
	return info
}

func applyOverrides(info *BasicInfo) {
	explicit := false
	for _, f := range fields {
		if value := env(EnvPrefix + "_" + f.suffix); value != "" {
			*f.get(info) = value
			explicit = true
		}
	}
	if system := env("VQLBENCH_SYSTEM"); system != "" {
		info.System = system
	}
	if v, ok := ciFlag(); ok {
		info.CI = v
	} else if explicit {
		info.CI = true
	}
}

func normalize(info *BasicInfo) {
	for _, f := range fields {
		p := f.get(info)
		*p = strings.TrimSpace(*p)
	}
	info.Provider = strings.ToLower(info.Provider)
	info.Branch = strings.TrimPrefix(strings.TrimPrefix(info.Branch, "refs/heads/"), "origin/")
	if info.PullRequest == "" {
		info.PullRequest = pullRequestFromRef(env("GITHUB_REF"))
	}
	explicitFalse := false
	if v, ok := ciFlag(); ok && !v {
		explicitFalse = true
	}
	if !info.CI && !explicitFalse && (info.Provider != "" || info.Repository != "" || info.RunID != "" || info.Commit != "") {
		info.CI = true
	}
	if info.CI && info.Provider == "" {
		info.Provider = "generic"
	}
}

// ciFlag reads VQLBENCH_CI; ok is false when it is unset or blank.
func ciFlag() (value bool, ok bool) {
	raw := env(EnvPrefix)
	if raw == "" {
		return false, false
	}
	return isTruthy(raw), true
}

func pullRequestFromRef(ref string) string {
	if m := githubPullRefPattern.FindStringSubmatch(strings.TrimSpace(ref)); len(m) > 1 {
		return m[1]
	}
	return ""
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envFirst(keys ...string) string {
	for _, key := range keys {
		if value := env(key); value != "" {
			return value
		}
	}
	return ""
}

func setIfEmpty(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}

func isTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
