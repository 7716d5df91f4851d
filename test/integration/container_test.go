package integration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	postgresImage = "postgres:16-alpine"
	readyTimeout  = 45 * time.Second
)

// startPostgres returns a connection string for a disposable database.
// SAHAYAK_TEST_DATABASE_URL points the suite at an existing server;
// otherwise a container is started with the Docker CLI and removed by the
// returned cleanup.
func startPostgres(ctx context.Context) (string, func(), error) {
	if url := os.Getenv("SAHAYAK_TEST_DATABASE_URL"); url != "" {
		return url, func() {}, waitForPostgres(ctx, url, readyTimeout)
	}

	out, err := exec.CommandContext(ctx, "docker", "run", "-d", "--rm",
		"--label", "sahayak.integration=true",
		"-p", "127.0.0.1::5432",
		"-e", "POSTGRES_USER=sahayak",
		"-e", "POSTGRES_PASSWORD=sahayak",
		"-e", "POSTGRES_DB=sahayak_test",
		postgresImage,
	).CombinedOutput()
	if err != nil {
		return "", nil, fmt.Errorf("docker run: %w: %s", err, out)
	}
	id := strings.TrimSpace(string(out))
	cleanup := func() { _ = exec.Command("docker", "rm", "-f", id).Run() }

	hostPort, err := publishedPort(ctx, id)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	url := fmt.Sprintf("postgres://sahayak:sahayak@%s/sahayak_test?sslmode=disable", hostPort)
	if err := waitForPostgres(ctx, url, readyTimeout); err != nil {
		cleanup()
		return "", nil, err
	}
	return url, cleanup, nil
}

// publishedPort asks Docker which host address 5432 was bound to.
func publishedPort(ctx context.Context, id string) (string, error) {
	out, err := exec.CommandContext(ctx, "docker", "port", id, "5432/tcp").Output()
	if err != nil {
		return "", fmt.Errorf("docker port: %w", err)
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	if line == "" {
		return "", fmt.Errorf("docker port: no binding for 5432 on %s", id)
	}
	return line, nil
}

// waitForPostgres polls until a single connection can run a query. The
// image restarts the server once after init, so one good ping is not enough.
func waitForPostgres(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	good := 0
	for good < 2 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres not ready after %v: %v", timeout, lastErr)
		case <-time.After(400 * time.Millisecond):
		}
		conn, err := pgx.Connect(ctx, url)
		if err == nil {
			var one int
			err = conn.QueryRow(ctx, "SELECT 1").Scan(&one)
			_ = conn.Close(ctx)
		}
		if err != nil {
			lastErr, good = err, 0
			continue
		}
		good++
	}
	return nil
}
