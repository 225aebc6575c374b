package sandbox

import "testing"

func TestValidatePathDeniesTraversal(t *testing.T) {
	if _, err := ValidatePath("/ws", "../etc/passwd"); err == nil {
		t.Fatal("expected traversal to be denied")
	}
}

func TestValidatePathDeniesDotGit(t *testing.T) {
	if _, err := ValidatePath("/ws", ".git/config"); err == nil {
		t.Fatal("expected .git to be denied")
	}
}

func TestValidatePathDeniesSecrets(t *testing.T) {
	for _, p := range []string{".env", "id_rsa", "keys/server.pem", "secrets/db.yaml"} {
		if _, err := ValidatePath("/ws", p); err == nil {
			t.Fatalf("expected %q to be denied", p)
		}
	}
}

func TestValidatePathAcceptsNormalFile(t *testing.T) {
	rel, err := ValidatePath("/ws", "src/main.go")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rel != "src/main.go" {
		t.Fatalf("got %q", rel)
	}
}

func TestValidatePathRejectsOverlongPath(t *testing.T) {
	long := make([]byte, MaxPathLength+10)
	for i := range long {
		long[i] = 'a'
	}
	if _, err := ValidatePath("/ws", string(long)); err == nil {
		t.Fatal("expected overlong path to be rejected")
	}
}

func TestValidateCommandWhitelist(t *testing.T) {
	if err := ValidateCommand("curl", nil); err == nil {
		t.Fatal("expected curl to be rejected")
	}
	if err := ValidateCommand("git", []string{"status"}); err != nil {
		t.Fatalf("expected git status to be allowed: %v", err)
	}
	if err := ValidateCommand("git", []string{"push"}); err == nil {
		t.Fatal("expected git push to be denied")
	}
	if err := ValidateCommand("npm", []string{"publish"}); err == nil {
		t.Fatal("expected npm publish to be denied")
	}
}

func TestBuildEnvForcesNodeEnv(t *testing.T) {
	env := BuildEnv("development")
	found := false
	for _, kv := range env {
		if kv == "NODE_ENV=production" {
			found = true
		}
		if kv == "NODE_ENV=development" {
			t.Fatal("NODE_ENV must never be development")
		}
	}
	if !found {
		t.Fatal("expected NODE_ENV to be coerced to production")
	}
}
