package runinfo

import "testing"

func TestFromEnvGitHubActions(t *testing.T) {
	clearKnownEnv(t)
	t.Setenv("GITHUB_ACTIONS", "true")
	t.Setenv("GITHUB_REPOSITORY", "acme/vql-eval")
	t.Setenv("GITHUB_HEAD_REF", "refs/heads/feature/f1-scores")
	t.Setenv("GITHUB_REF", "refs/pull/31/merge")
	t.Setenv("GITHUB_SHA", "deadbeef")
	t.Setenv("GITHUB_RUN_ID", "123456")
	t.Setenv("GITHUB_ACTOR", "octo")

	info := FromEnv()
	if info == nil || !info.CI || info.Provider != "github_actions" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Branch != "feature/f1-scores" {
		t.Fatalf("branch=%q", info.Branch)
	}
	if info.PullRequest != "31" {
		t.Fatalf("pull_request=%q", info.PullRequest)
	}
	if info.BuildURL != "https://github.com/acme/vql-eval/actions/runs/123456" {
		t.Fatalf("build_url=%q", info.BuildURL)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	clearKnownEnv(t)
	t.Setenv("GITHUB_ACTIONS", "true")
	t.Setenv("GITHUB_SHA", "fromgithub")
	t.Setenv("VQLBENCH_CI_PROVIDER", "Manual")
	t.Setenv("VQLBENCH_CI_COMMIT", "abc123")
	t.Setenv("VQLBENCH_SYSTEM", "nl2vql-v2")

	info := FromEnv()
	if info == nil || !info.CI {
		t.Fatalf("expected ci run info, got %+v", info)
	}
	if info.Provider != "manual" || info.Commit != "abc123" || info.System != "nl2vql-v2" {
		t.Fatalf("overrides not applied: %+v", info)
	}
}

func TestFromEnvGenericFallbacks(t *testing.T) {
	clearKnownEnv(t)
	t.Setenv("CI_PROJECT_PATH", "group/project")
	t.Setenv("BUILD_NUMBER", "7")

	info := FromEnv()
	if info == nil || !info.CI || info.Provider != "generic" {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.Repository != "group/project" || info.RunNumber != "7" {
		t.Fatalf("fallbacks not applied: %+v", info)
	}
}

func TestFromEnvExplicitFalse(t *testing.T) {
	clearKnownEnv(t)
	t.Setenv("VQLBENCH_CI", "false")
	t.Setenv("VQLBENCH_CI_COMMIT", "abc123")

	info := FromEnv()
	if info == nil || info.CI || info.Provider != "" {
		t.Fatalf("expected non-ci info with commit, got %+v", info)
	}
}

func TestFromEnvEmpty(t *testing.T) {
	clearKnownEnv(t)
	if info := FromEnv(); info != nil {
		t.Fatalf("expected nil run info, got %+v", *info)
	}
}

func clearKnownEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"CI", "GITLAB_CI", "BUILDKITE", "JENKINS_URL", "VQLBENCH_CI", "VQLBENCH_SYSTEM",
		"GITHUB_ACTIONS", "GITHUB_SERVER_URL", "GITHUB_REPOSITORY", "GITHUB_REF", "GITHUB_REF_NAME",
		"GITHUB_HEAD_REF", "GITHUB_SHA", "GITHUB_WORKFLOW", "GITHUB_JOB", "GITHUB_RUN_ID",
		"GITHUB_RUN_NUMBER", "GITHUB_EVENT_NAME", "GITHUB_ACTOR", "GITHUB_PR_NUMBER",
	}
	for _, f := range fields {
		keys = append(keys, EnvPrefix+"_"+f.suffix)
		keys = append(keys, genericSources[f.suffix]...)
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
