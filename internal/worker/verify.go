package worker

import (
	"context"
	"strings"
	"sync"

	"github.com/harrison/undercity/internal/gitrepo"
)

// VerificationCommands is the set of project commands the Verification phase
// invokes. Commands left empty are treated as "not configured" and skipped
// (they never block a pass).
type VerificationCommands struct {
	Typecheck  string
	Lint       string
	Test       string
	Build      string
	Security   string // optional, non-blocking
	Spell      string // optional, non-blocking
	CodeHealth string // optional, non-blocking
}

// CheckResult is the outcome of a single verification command.
type CheckResult struct {
	Name    string
	Ran     bool
	Passed  bool
	Output  string
	Blocking bool
}

// VerificationReport is the full result of one verification pass.
type VerificationReport struct {
	FilesChanged   []string
	HasUntracked   bool
	Checks         []CheckResult
	Warnings       bool
}

// Passed reports whether the task satisfies spec §4.6.1 item 7's pass
// condition: files changed > 0 and every blocking check that ran passed.
func (r VerificationReport) Passed() bool {
	if len(r.FilesChanged) == 0 && !r.HasUntracked {
		return false
	}
	for _, c := range r.Checks {
		if c.Blocking && c.Ran && !c.Passed {
			return false
		}
	}
	return true
}

// FailingChecks returns the names of blocking checks that ran and failed.
func (r VerificationReport) FailingChecks() []string {
	var names []string
	for _, c := range r.Checks {
		if c.Blocking && c.Ran && !c.Passed {
			names = append(names, c.Name)
		}
	}
	return names
}

// Verify runs the full verification pipeline in workspaceDir: enumerate
// changes, then typecheck/lint/test in parallel, then build/security/spell
// /code-health sequentially. Tests run with UNDERCITY_SKIP_INTEGRATION=1 so
// integration tests are excluded from the blocking pass/fail decision.
func Verify(ctx context.Context, runner CommandRunner, workspaceDir string, cmds VerificationCommands) (VerificationReport, error) {
	repo := gitrepo.Open(workspaceDir)

	changed, err := repo.FilesChangedSince("")
	if err != nil {
		changed = nil
	}
	hasUntracked, _ := repo.HasChanges()

	report := VerificationReport{FilesChanged: changed, HasUntracked: hasUntracked}

	type parallelCheck struct {
		name, command string
	}
	parallelChecks := []parallelCheck{
		{"typecheck", cmds.Typecheck},
		{"lint", cmds.Lint},
		{"test", cmds.Test},
	}

	results := make([]CheckResult, len(parallelChecks))
	var wg sync.WaitGroup
	for i, check := range parallelChecks {
		if check.command == "" {
			results[i] = CheckResult{Name: check.name, Ran: false, Blocking: true}
			continue
		}
		wg.Add(1)
		go func(i int, name, command string) {
			defer wg.Done()
			results[i] = runCheck(ctx, runner, workspaceDir, name, command, true)
		}(i, check.name, check.command)
	}
	wg.Wait()
	report.Checks = append(report.Checks, results...)

	report.Checks = append(report.Checks, runCheck(ctx, runner, workspaceDir, "build", cmds.Build, true))

	nonBlocking := []parallelCheck{
		{"security", cmds.Security},
		{"spell", cmds.Spell},
		{"code_health", cmds.CodeHealth},
	}
	for _, check := range nonBlocking {
		result := runCheck(ctx, runner, workspaceDir, check.name, check.command, false)
		if result.Ran && !result.Passed {
			report.Warnings = true
		}
		report.Checks = append(report.Checks, result)
	}

	return report, nil
}

func runCheck(ctx context.Context, runner CommandRunner, dir, name, command string, blocking bool) CheckResult {
	if command == "" {
		return CheckResult{Name: name, Ran: false, Blocking: blocking}
	}
	withEnv := withSkipIntegration(name, command)
	output, err := runner.Run(ctx, dir, withEnv)
	return CheckResult{
		Name:     name,
		Ran:      true,
		Passed:   err == nil,
		Output:   strings.TrimSpace(output),
		Blocking: blocking,
	}
}

func withSkipIntegration(name, command string) string {
	if name != "test" {
		return command
	}
	return skipIntegrationEnvVar + "=1 " + command
}

const skipIntegrationEnvVar = "UNDERCITY_SKIP_INTEGRATION"
