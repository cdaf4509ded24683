//go:build tools

package tools

// The mocks under pkg/connection/mocks are generated by mockery v3, which
// is run as an installed binary rather than through go run, so it needs no
// blank import here. Regenerate them from the module root with: mockery
