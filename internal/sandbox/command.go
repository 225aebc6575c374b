package sandbox

import (
	"fmt"
	"os"
)

// MaxArgLength bounds each command argument.
const MaxArgLength = 1000

// CommandTimeoutSeconds and OutputBufferLimit are the sandboxed execution bounds.
const (
	CommandTimeoutSeconds = 120
	OutputBufferLimit     = 800 * 1024
)

// allowedPrograms is the fixed whitelist of build/test/dev tools.
var allowedPrograms = map[string]bool{
	"git": true, "rg": true, "ls": true, "cat": true, "pwd": true,
	"go": true, "gofmt": true,
	"npm": true, "npx": true, "pnpm": true, "yarn": true, "node": true,
	"python": true, "python3": true, "pip": true, "pip3": true, "pytest": true,
	"cargo": true, "rustc": true,
	"make": true,
	"mvn": true, "gradle": true,
	"dotnet": true,
	"ruby": true, "bundle": true, "rake": true,
	"tsc": true, "eslint": true, "prettier": true,
	"docker": true, "docker-compose": true,
}

// gitReadOnlySubcommands is the only subset of `git` allowed to run.
var gitReadOnlySubcommands = map[string]bool{
	"status": true, "diff": true, "show": true, "log": true,
	"rev-parse": true, "branch": true, "ls-files": true, "blame": true,
}

// deniedPackageManagerSubcommands blocks publishing/auth/account operations
// for npm/yarn/pnpm/pip/cargo-style package managers.
var deniedPackageManagerSubcommands = map[string]bool{
	"publish": true, "login": true, "logout": true, "adduser": true,
	"whoami": true, "owner": true, "token": true, "deprecate": true,
	"unpublish": true, "access": true,
}

var packageManagers = map[string]bool{
	"npm": true, "npx": true, "pnpm": true, "yarn": true,
	"pip": true, "pip3": true, "cargo": true, "bundle": true, "gradle": true, "mvn": true,
}

// allowedEnvKeys is the explicit allow-list forwarded into the sandboxed
// command environment, beyond NODE_ENV/CI/FORCE_COLOR. The sandbox never
// inherits the host's full environment.
var allowedEnvKeys = []string{
	"PATH", "HOME", "LANG", "LC_ALL", "TMPDIR", "TERM",
	"GOPATH", "GOCACHE", "GOMODCACHE", "GOROOT",
	"PYTHONPATH", "VIRTUAL_ENV",
}

// ValidateCommand checks a Command against the whitelist and per-argument
// bound, returning a PolicyViolation on rejection.
func ValidateCommand(program string, args []string) error {
	if !allowedPrograms[program] {
		return violation("program %q is not in the command whitelist", program)
	}
	for _, a := range args {
		if len(a) > MaxArgLength {
			return violation("argument exceeds %d characters", MaxArgLength)
		}
	}
	if program == "git" {
		if len(args) == 0 || !gitReadOnlySubcommands[args[0]] {
			sub := ""
			if len(args) > 0 {
				sub = args[0]
			}
			return violation("git subcommand %q is not read-only", sub)
		}
	}
	if packageManagers[program] {
		for _, a := range args {
			if deniedPackageManagerSubcommands[a] {
				return violation("%s subcommand %q is denied (publish/auth/account)", program, a)
			}
		}
	}
	return nil
}

// BuildEnv constructs the restricted environment for a sandboxed command:
// an explicit allow-list plus NODE_ENV (forced to production or test),
// CI=1, FORCE_COLOR=0. nodeEnv must be "production" or
// "test"; any other value is coerced to "production".
func BuildEnv(nodeEnv string) []string {
	if nodeEnv != "production" && nodeEnv != "test" {
		nodeEnv = "production"
	}
	env := []string{
		fmt.Sprintf("NODE_ENV=%s", nodeEnv),
		"CI=1",
		"FORCE_COLOR=0",
	}
	for _, key := range allowedEnvKeys {
		if v, ok := os.LookupEnv(key); ok {
			env = append(env, fmt.Sprintf("%s=%s", key, v))
		}
	}
	return env
}
