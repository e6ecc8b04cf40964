package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// validConfigYAML is a complete valid configuration.
const validConfigYAML = `
server:
  address: 127.0.0.1
  port: 9090
  readTimeout: 5s
  shutdownTimeout: 1s
logging:
  level: debug
  format: console
metrics:
  enabled: true
  path: /metrics
tracing:
  enabled: false
health:
  enabled: true
  readinessPath: /ready
static:
  - path: ./public
filters:
  cors:
    allowOrigins: ["https://app.example.com"]
    maxAge: 600
  basicAuth:
    realm: admin
    pathPrefix: /admin
    users:
      - username: alice
        passwordHash: "$$2a$$10$$abcdefghijklmnopqrstuuabcdefghijklmnopqrstuvwxyz12345"
  jwt:
    pathPrefix: /api
    issuer: https://issuer.example.com
    secret: ${AVAROUTE_TEST_JWT_SECRET:-0123456789abcdef0123456789abcdef}
    clockSkew: 1m
  rateLimit:
    requestsPerSecond: 100
    burst: 20
    perClient: true
    redis:
      address: localhost:6379
      window: 10s
  rules:
    - name: block-delete
      expression: request.method == "DELETE"
      status: 405
routes:
  - method: GET
    path: /hello/:name
    body: "Hello, {name}!"
  - method: POST
    path: /echo
    body: ok
`

// invalidConfigYAML fails validation.
const invalidConfigYAML = `
server:
  port: 70000
routes:
  - method: DELETE
    path: /x
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "avaroute.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
