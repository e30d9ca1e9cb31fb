//go:build integration
// +build integration

package integration

import (
	"context"
	"os/exec"
	"testing"
)

func composeStorefront(t *testing.T, ctx context.Context, action string) {
	t.Helper()

	cmd := exec.CommandContext(ctx, "docker", "compose", action, "storefront")
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("docker compose %s storefront failed: %v\n%s", action, err, string(out))
	}
}
